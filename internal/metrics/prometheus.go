package metrics

import (
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Scheduler metrics
	ticksTotal           prometheus.Counter
	tickErrorsTotal      prometheus.Counter
	firesTotal           prometheus.Counter
	tickDuration         prometheus.Histogram
	firesCoalescedTotal  prometheus.Counter
	misfiresDroppedTotal prometheus.Counter

	// Fetch metrics
	fetchesTotal      *prometheus.CounterVec
	fetchDuration     prometheus.Histogram
	fetchRetriesTotal prometheus.Counter

	// Transform metrics
	transformsTotal   *prometheus.CounterVec
	transformDuration prometheus.Histogram

	// Delivery metrics
	deliveryAttemptsTotal *prometheus.CounterVec
	deliveryOutcomesTotal *prometheus.CounterVec
	deliveryDuration      prometheus.Histogram

	// Pipeline metrics
	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initSchedulerMetrics(reg)
	s.initFetchMetrics(reg)
	s.initTransformMetrics(reg)
	s.initDeliveryMetrics(reg)
	s.initRunMetrics(reg)
	return s
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyetl_scheduler_ticks_total",
		Help: "Total number of scheduler ticks processed.",
	})
	s.tickErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyetl_scheduler_tick_errors_total",
		Help: "Total number of scheduler tick errors.",
	})
	s.firesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyetl_scheduler_fires_total",
		Help: "Total number of job runs started by the scheduler.",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easyetl_scheduler_tick_duration_seconds",
		Help:    "Duration of each scheduler tick in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
	s.firesCoalescedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyetl_scheduler_fires_coalesced_total",
		Help: "Total number of fires skipped because the previous run was still in flight.",
	})
	s.misfiresDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyetl_scheduler_misfires_dropped_total",
		Help: "Total number of fires dropped for exceeding the misfire grace window.",
	})

	s.register(reg, s.ticksTotal, "easyetl_scheduler_ticks_total")
	s.register(reg, s.tickErrorsTotal, "easyetl_scheduler_tick_errors_total")
	s.register(reg, s.firesTotal, "easyetl_scheduler_fires_total")
	s.register(reg, s.tickDuration, "easyetl_scheduler_tick_duration_seconds")
	s.register(reg, s.firesCoalescedTotal, "easyetl_scheduler_fires_coalesced_total")
	s.register(reg, s.misfiresDroppedTotal, "easyetl_scheduler_misfires_dropped_total")
}

func (s *PrometheusSink) initFetchMetrics(reg prometheus.Registerer) {
	s.fetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyetl_fetch_total",
		Help: "Total number of source fetches.",
	}, []string{"source_type", "outcome"})

	s.fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easyetl_fetch_duration_seconds",
		Help:    "Source fetch latency in seconds (includes retry backoff).",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.fetchRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "easyetl_fetch_retries_total",
		Help: "Total number of fetch retry attempts (excludes first attempt).",
	})

	s.register(reg, s.fetchesTotal, "easyetl_fetch_total")
	s.register(reg, s.fetchDuration, "easyetl_fetch_duration_seconds")
	s.register(reg, s.fetchRetriesTotal, "easyetl_fetch_retries_total")
}

func (s *PrometheusSink) initTransformMetrics(reg prometheus.Registerer) {
	s.transformsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyetl_transform_total",
		Help: "Total number of transform evaluations.",
	}, []string{"outcome"})

	s.transformDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easyetl_transform_duration_seconds",
		Help:    "Transform evaluation latency in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 300},
	})

	s.register(reg, s.transformsTotal, "easyetl_transform_total")
	s.register(reg, s.transformDuration, "easyetl_transform_duration_seconds")
}

func (s *PrometheusSink) initDeliveryMetrics(reg prometheus.Registerer) {
	s.deliveryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyetl_delivery_attempts_total",
		Help: "Total number of mail delivery attempts.",
	}, []string{"attempt", "outcome"})

	s.deliveryOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyetl_delivery_outcomes_total",
		Help: "Total number of final delivery outcomes per notification.",
	}, []string{"outcome"})

	s.deliveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easyetl_delivery_duration_seconds",
		Help:    "SMTP send latency in seconds (excludes retry delay).",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.register(reg, s.deliveryAttemptsTotal, "easyetl_delivery_attempts_total")
	s.register(reg, s.deliveryOutcomesTotal, "easyetl_delivery_outcomes_total")
	s.register(reg, s.deliveryDuration, "easyetl_delivery_duration_seconds")
}

func (s *PrometheusSink) initRunMetrics(reg prometheus.Registerer) {
	s.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "easyetl_runs_total",
		Help: "Total number of completed pipeline runs by final stage and outcome.",
	}, []string{"stage", "outcome"})

	s.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "easyetl_run_duration_seconds",
		Help:    "End-to-end pipeline run latency in seconds.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
	})

	s.register(reg, s.runsTotal, "easyetl_runs_total")
	s.register(reg, s.runDuration, "easyetl_run_duration_seconds")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Scheduler metrics implementation

func (s *PrometheusSink) TickStarted() {
	s.ticksTotal.Inc()
}

func (s *PrometheusSink) TickCompleted(duration time.Duration, fired int, err error) {
	s.tickDuration.Observe(duration.Seconds())
	s.firesTotal.Add(float64(fired))
	if err != nil {
		s.tickErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) FireCoalesced() {
	s.firesCoalescedTotal.Inc()
}

func (s *PrometheusSink) MisfireDropped() {
	s.misfiresDroppedTotal.Inc()
}

// Fetch metrics implementation

func (s *PrometheusSink) FetchCompleted(sourceType, outcome string, duration time.Duration) {
	s.fetchesTotal.WithLabelValues(sourceType, outcome).Inc()
	s.fetchDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) FetchRetry() {
	s.fetchRetriesTotal.Inc()
}

// Transform metrics implementation

func (s *PrometheusSink) TransformCompleted(outcome string, duration time.Duration) {
	s.transformsTotal.WithLabelValues(outcome).Inc()
	s.transformDuration.Observe(duration.Seconds())
}

// Delivery metrics implementation

func (s *PrometheusSink) DeliveryAttemptCompleted(attempt int, outcome string, duration time.Duration) {
	s.deliveryAttemptsTotal.WithLabelValues(strconv.Itoa(attempt), outcome).Inc()
	s.deliveryDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) DeliveryOutcome(outcome string) {
	s.deliveryOutcomesTotal.WithLabelValues(outcome).Inc()
}

// Pipeline metrics implementation

func (s *PrometheusSink) RunCompleted(stage string, outcome string, duration time.Duration) {
	s.runsTotal.WithLabelValues(stage, outcome).Inc()
	s.runDuration.Observe(duration.Seconds())
}
