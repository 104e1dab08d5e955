// Package scheduler maintains one live trigger per job definition and
// fires the orchestrator at most once per trigger event.
//
// A tick loop evaluates every trigger against the current time. A job
// whose previous run is still in flight has its fire coalesced into a
// no-op (the next fire time still advances), so a slow job can never
// build a backlog. Fires that were missed by more than the misfire
// grace window are dropped rather than replayed as a burst.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/djlord-it/easy-etl/internal/domain"
)

// ErrInvalidSchedule is returned by Schedule when the job's cron
// expression cannot be parsed.
var ErrInvalidSchedule = errors.New("invalid schedule")

// CronParser turns a cron expression into a fire-time generator.
type CronParser interface {
	Parse(expression string) (CronSchedule, error)
}

type CronSchedule interface {
	Next(after time.Time) time.Time
}

// Runner executes one full pipeline run. Implementations must never
// return control by panicking; all failures are handled internally.
type Runner interface {
	Run(ctx context.Context, job domain.Job)
}

// MetricsSink records scheduler metrics. All methods are fire-and-forget.
type MetricsSink interface {
	TickStarted()
	TickCompleted(duration time.Duration, fired int, err error)
	FireCoalesced()
	MisfireDropped()
}

type Config struct {
	// TickInterval is how often triggers are evaluated. Default 1s.
	TickInterval time.Duration

	// MisfireGrace is how late a fire may be and still be honored once.
	// Default 5m.
	MisfireGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.MisfireGrace <= 0 {
		c.MisfireGrace = 5 * time.Minute
	}
	return c
}

type trigger struct {
	job   domain.Job
	sched CronSchedule
	next  time.Time
}

type Scheduler struct {
	config  Config
	parser  CronParser
	runner  Runner
	metrics MetricsSink // optional, nil = disabled
	log     zerolog.Logger
	clock   func() time.Time

	mu       sync.Mutex
	triggers map[string]*trigger
	inflight map[string]bool // job name -> run in progress
	started  bool
	cancel   context.CancelFunc
	loopDone chan struct{}
	runs     sync.WaitGroup
}

func New(config Config, parser CronParser, runner Runner, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		config:   config.withDefaults(),
		parser:   parser,
		runner:   runner,
		log:      log.With().Str("component", "scheduler").Logger(),
		clock:    time.Now,
		triggers: make(map[string]*trigger),
		inflight: make(map[string]bool),
	}
}

// WithMetrics attaches a metrics sink.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// Schedule registers or replaces the trigger for job.Name. The next
// fire time is computed from now; an in-flight run for the same name
// keeps suppressing fires until it finishes.
func (s *Scheduler) Schedule(job domain.Job) error {
	sched, err := s.parser.Parse(job.CronExpression)
	if err != nil {
		return fmt.Errorf("%w: job %q: %v", ErrInvalidSchedule, job.Name, err)
	}

	now := s.clock().UTC()
	t := &trigger{job: job, sched: sched, next: sched.Next(now)}

	s.mu.Lock()
	_, replaced := s.triggers[job.Name]
	s.triggers[job.Name] = t
	s.mu.Unlock()

	if replaced {
		s.log.Info().Str("job", job.Name).Time("next", t.next).Msg("trigger replaced")
	} else {
		s.log.Info().Str("job", job.Name).Time("next", t.next).Msg("trigger registered")
	}
	return nil
}

// Unschedule removes the trigger for name. Removal of an unknown name
// is logged and ignored; deletion races with the API are expected.
func (s *Scheduler) Unschedule(name string) {
	s.mu.Lock()
	_, ok := s.triggers[name]
	delete(s.triggers, name)
	s.mu.Unlock()

	if !ok {
		s.log.Warn().Str("job", name).Msg("unschedule: no such trigger")
		return
	}
	s.log.Info().Str("job", name).Msg("trigger removed")
}

// Jobs returns the names of all registered triggers.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.triggers))
	for name := range s.triggers {
		names = append(names, name)
	}
	return names
}

// Start begins the background firing loop. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.log.Warn().Msg("already started")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.loopDone = make(chan struct{})
	s.started = true
	go s.loop(ctx)
	s.log.Info().Dur("tick", s.config.TickInterval).Dur("misfire_grace", s.config.MisfireGrace).Msg("started")
}

// Stop ends the firing loop. With wait=true it blocks until every
// in-flight run has completed; with wait=false those runs are abandoned
// to finish on their own.
func (s *Scheduler) Stop(wait bool) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		s.log.Warn().Msg("not running")
		return
	}
	s.started = false
	cancel := s.cancel
	done := s.loopDone
	s.mu.Unlock()

	cancel()
	<-done
	if wait {
		s.log.Info().Msg("waiting for in-flight runs")
		s.runs.Wait()
	}
	s.log.Info().Bool("wait", wait).Msg("stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.loopDone)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processTick()
		}
	}
}

// processTick fires every due trigger once.
func (s *Scheduler) processTick() {
	if s.metrics != nil {
		s.metrics.TickStarted()
	}
	start := s.clock().UTC()
	fired := 0

	s.mu.Lock()
	due := make([]*trigger, 0)
	for name, t := range s.triggers {
		if t.next.After(start) {
			continue
		}
		late := start.Sub(t.next)

		// Advancing from start (not t.next) folds any pile-up of missed
		// times into at most one fire; there is never a catch-up burst.
		t.next = t.sched.Next(start)

		if late > s.config.MisfireGrace {
			s.log.Warn().Str("job", name).Dur("late", late).Msg("misfire beyond grace window, dropped")
			if s.metrics != nil {
				s.metrics.MisfireDropped()
			}
			continue
		}

		if s.inflight[name] {
			s.log.Info().Str("job", name).Msg("previous run still in flight, fire coalesced")
			if s.metrics != nil {
				s.metrics.FireCoalesced()
			}
			continue
		}

		s.inflight[name] = true
		due = append(due, t)
	}
	s.mu.Unlock()

	for _, t := range due {
		fired++
		s.runs.Add(1)
		job := t.job
		go func() {
			defer s.runs.Done()
			defer s.clearInflight(job.Name)
			// Runs use a fresh context so Stop(wait=false) abandons
			// them rather than cancelling them mid-pipeline.
			s.runner.Run(context.Background(), job)
		}()
		s.log.Info().Str("job", job.Name).Time("next", t.next).Msg("fired")
	}

	if s.metrics != nil {
		s.metrics.TickCompleted(s.clock().UTC().Sub(start), fired, nil)
	}
}

func (s *Scheduler) clearInflight(name string) {
	s.mu.Lock()
	delete(s.inflight, name)
	s.mu.Unlock()
}
