package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/djlord-it/easy-etl/internal/analytics"
	"github.com/djlord-it/easy-etl/internal/api"
	"github.com/djlord-it/easy-etl/internal/circuitbreaker"
	"github.com/djlord-it/easy-etl/internal/config"
	"github.com/djlord-it/easy-etl/internal/cron"
	"github.com/djlord-it/easy-etl/internal/executor"
	"github.com/djlord-it/easy-etl/internal/fetch"
	"github.com/djlord-it/easy-etl/internal/metrics"
	"github.com/djlord-it/easy-etl/internal/notify"
	"github.com/djlord-it/easy-etl/internal/scheduler"
	"github.com/djlord-it/easy-etl/internal/store"
	"github.com/djlord-it/easy-etl/internal/store/jsonfile"
	"github.com/djlord-it/easy-etl/internal/store/sqlite"
	"github.com/djlord-it/easy-etl/internal/transform"
)

// cronParserAdapter adapts internal/cron.Parser to scheduler.CronParser interface.
type cronParserAdapter struct {
	parser *cron.Parser
}

func (a *cronParserAdapter) Parse(expression string) (scheduler.CronSchedule, error) {
	sched, err := a.parser.Parse(expression)
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`easyetl - scheduled data transformation jobs

Usage:
  easyetl <command>

Commands:
  serve      Start the scheduler and job API
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  HTTP_ADDR                 HTTP server address (default: ":8080")
  TICK_INTERVAL             Scheduler tick interval (default: "1s")
  MISFIRE_GRACE             Max lateness before a fire is dropped (default: "5m")
  TRANSFORM_TIMEOUT         Transform evaluation budget (default: "5m")
  API_FETCH_TIMEOUT         Timeout per API source request (default: "30s")

  REGISTRY_BACKEND          Job store: "jsonfile" or "sqlite" (default: "jsonfile")
  REGISTRY_PATH             Store file path (default: "jobs.json" / "jobs.db")

  SMTP_HOST                 SMTP server host (required unless ENVIRONMENT=test)
  SMTP_PORT                 SMTP server port (default: "587")
  SMTP_USERNAME             SMTP auth username (optional)
  SMTP_PASSWORD             SMTP auth password (optional)
  SMTP_FROM                 Sender address (required unless ENVIRONMENT=test)
  SMTP_USE_TLS              Use STARTTLS (default: "true")
  NOTIFY_RETRY_DELAY        Delay before the delivery retry (default: "5s")

  ENVIRONMENT               "test" logs deliveries instead of sending
  LOG_LEVEL                 trace|debug|info|warn|error (default: "info")
  SHUTDOWN_WAIT_FOR_RUNS    Wait for in-flight runs on shutdown (default: "true")
  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_ADDR              Metrics server address (default: ":9090")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")

  REDIS_ADDR                Redis address for run analytics (optional)
  ANALYTICS_RETENTION       Analytics counter TTL (default: "168h")

  CIRCUIT_BREAKER_THRESHOLD Consecutive failures before a source is skipped
                            (default: "5", "0" disables)
  CIRCUIT_BREAKER_COOLDOWN  Open-state duration before a probe (default: "2m")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	registry, closeRegistry, err := openRegistry(cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to open job registry")
		return exitRuntimeError
	}
	defer closeRegistry()
	log.Info().Str("backend", cfg.RegistryBackend).Str("path", cfg.RegistryPath).Msg("job registry opened")

	// Metrics sink and server (optional)
	var metricsSink *metrics.PrometheusSink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metricsMux,
		}
		log.Info().Str("addr", cfg.MetricsAddr).Str("path", cfg.MetricsPath).Msg("metrics enabled")
	} else {
		log.Info().Msg("METRICS_ENABLED not set; metrics disabled")
	}

	breaker := circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown)

	fetcher := fetch.New(fetch.Config{APITimeout: cfg.APIFetchTimeout}, log).WithBreaker(breaker)
	transformer := transform.New(transform.Config{Timeout: cfg.TransformTimeout}, log)

	sender := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		UseTLS:   cfg.SMTPUseTLS,
	})
	notifier := notify.New(notify.Config{
		DryRun:     cfg.DryRun(),
		RetryDelay: cfg.NotifyRetryDelay,
	}, sender, log)
	if cfg.DryRun() {
		log.Info().Msg("ENVIRONMENT=test; deliveries are dry-run")
	}

	exec := executor.New(fetcher, transformer, notifier, registry, log)

	if metricsSink != nil {
		fetcher = fetcher.WithMetrics(metricsSink)
		transformer = transformer.WithMetrics(metricsSink)
		notifier = notifier.WithMetrics(metricsSink)
		exec = exec.WithMetrics(metricsSink)
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		sink := analytics.NewRedisSink(redisClient, analytics.Config{Retention: cfg.AnalyticsRetention})
		exec = exec.WithAnalytics(sink)
		log.Info().Str("redis", cfg.RedisAddr).Msg("analytics enabled")
	} else {
		log.Info().Msg("REDIS_ADDR not set; analytics disabled")
	}

	sched := scheduler.New(
		scheduler.Config{
			TickInterval: cfg.TickInterval,
			MisfireGrace: cfg.MisfireGrace,
		},
		&cronParserAdapter{parser: cron.NewParser()},
		exec,
		log,
	)
	if metricsSink != nil {
		sched = sched.WithMetrics(metricsSink)
	}

	// Register triggers for every persisted job before serving traffic.
	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	jobs, err := registry.List(startCtx)
	startCancel()
	if err != nil {
		log.Error().Err(err).Msg("failed to load jobs from registry")
		return exitRuntimeError
	}
	for _, job := range jobs {
		if err := sched.Schedule(job); err != nil {
			// A bad expression should never have passed the API; keep
			// serving the rest rather than refusing to start.
			log.Error().Str("job", job.Name).Err(err).Msg("could not schedule persisted job")
		}
	}
	log.Info().Int("jobs", len(jobs)).Msg("persisted jobs scheduled")

	sched.Start()

	apiHandler := api.NewHandler(registry, sched, exec)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiHandler,
	}

	var g errgroup.Group
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(func() error {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	log.Info().Str("version", version).Dur("tick", cfg.TickInterval).Msg("started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	log.Info().Str("signal", received.String()).Msg("shutting down")

	// Phase 1: stop the scheduler so no new runs start. With
	// SHUTDOWN_WAIT_FOR_RUNS this blocks until in-flight runs finish.
	sched.Stop(cfg.ShutdownWaitForRuns)

	// Phase 2: stop HTTP servers with graceful shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown error")
		}
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
		return exitRuntimeError
	}

	log.Info().Msg("stopped")
	return exitSuccess
}

func openRegistry(cfg config.Config) (store.Registry, func(), error) {
	switch cfg.RegistryBackend {
	case "sqlite":
		s, err := sqlite.Open(cfg.RegistryPath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return jsonfile.New(cfg.RegistryPath), func() {}, nil
	}
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("easyetl version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
