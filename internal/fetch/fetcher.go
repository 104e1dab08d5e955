// Package fetch retrieves a job's input dataset from its configured
// source: a local CSV/JSON file or a JSON HTTP API.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/djlord-it/easy-etl/internal/dataset"
	"github.com/djlord-it/easy-etl/internal/domain"
)

// ErrFetch wraps every failure leaving this package; callers classify
// with errors.Is and read the cause from the wrapped chain.
var ErrFetch = errors.New("fetch failed")

// maxAttempts is the total number of tries for API sources. File reads
// are never retried; local I/O failures are not transient.
const maxAttempts = 3

// Breaker short-circuits attempts against sources that keep failing.
type Breaker interface {
	Allow(key string) error
	RecordSuccess(key string)
	RecordFailure(key string)
}

// MetricsSink records fetch metrics. All methods are fire-and-forget.
type MetricsSink interface {
	FetchCompleted(sourceType string, outcome string, duration time.Duration)
	FetchRetry()
}

type Config struct {
	// APITimeout bounds a single HTTP request. Default 30s.
	APITimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.APITimeout <= 0 {
		c.APITimeout = 30 * time.Second
	}
	return c
}

type Fetcher struct {
	config  Config
	client  *http.Client
	breaker Breaker     // optional, nil = disabled
	metrics MetricsSink // optional, nil = disabled
	log     zerolog.Logger

	// sleep waits between retry attempts; injected for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(config Config, log zerolog.Logger) *Fetcher {
	cfg := config.withDefaults()
	return &Fetcher{
		config: cfg,
		client: &http.Client{Timeout: cfg.APITimeout},
		log:    log.With().Str("component", "fetch").Logger(),
		sleep:  sleepContext,
	}
}

// WithBreaker attaches a circuit breaker for API sources.
func (f *Fetcher) WithBreaker(b Breaker) *Fetcher {
	f.breaker = b
	return f
}

// WithMetrics attaches a metrics sink.
func (f *Fetcher) WithMetrics(sink MetricsSink) *Fetcher {
	f.metrics = sink
	return f
}

// Fetch retrieves the dataset described by source.
func (f *Fetcher) Fetch(ctx context.Context, source domain.Source) (*dataset.Dataset, error) {
	start := time.Now()
	var (
		d   *dataset.Dataset
		err error
	)
	switch source.Type {
	case domain.SourceTypeFile:
		d, err = f.fetchFile(source.Location, source.Format)
	case domain.SourceTypeAPI:
		d, err = f.fetchAPI(ctx, source.Location)
	default:
		err = fmt.Errorf("%w: unsupported source type %q", ErrFetch, source.Type)
	}

	if f.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		f.metrics.FetchCompleted(string(source.Type), outcome, time.Since(start))
	}
	return d, err
}

func (f *Fetcher) fetchFile(path string, format domain.FileFormat) (*dataset.Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrFetch, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer file.Close()

	var d *dataset.Dataset
	switch format {
	case domain.FileFormatCSV:
		d, err = dataset.ParseCSV(file)
	case domain.FileFormatJSON:
		d, err = dataset.ParseJSON(file)
	default:
		return nil, fmt.Errorf("%w: unsupported file format %q", ErrFetch, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s file %s: %v", ErrFetch, format, path, err)
	}

	f.log.Debug().Str("path", path).Int("rows", d.NumRows()).Msg("file read")
	return d, nil
}

// fetchAPI issues a GET against url, retrying transient failures with
// exponential backoff (2s after attempt 1, 4s after attempt 2).
func (f *Fetcher) fetchAPI(ctx context.Context, url string) (*dataset.Dataset, error) {
	if f.breaker != nil {
		if err := f.breaker.Allow(url); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrFetch, url, err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			f.log.Info().Str("url", url).Int("attempt", attempt).Dur("backoff", backoff).Msg("retrying")
			if f.metrics != nil {
				f.metrics.FetchRetry()
			}
			if err := f.sleep(ctx, backoff); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrFetch, err)
			}
		}

		d, err := f.requestOnce(ctx, url)
		if err == nil {
			if f.breaker != nil {
				f.breaker.RecordSuccess(url)
			}
			f.log.Debug().Str("url", url).Int("rows", d.NumRows()).Int("attempt", attempt).Msg("api fetched")
			return d, nil
		}

		lastErr = err
		if f.breaker != nil {
			f.breaker.RecordFailure(url)
		}
		f.log.Warn().Str("url", url).Int("attempt", attempt).Err(err).Msg("api fetch attempt failed")
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %v", ErrFetch, url, maxAttempts, lastErr)
}

func (f *Fetcher) requestOnce(ctx context.Context, url string) (*dataset.Dataset, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.APITimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	d, err := dataset.ParseJSON(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return d, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
