// Package analytics keeps per-job run counters in Redis for dashboard
// queries. Counters are bucketed per hour and expire after the
// configured retention, so the keyspace stays bounded without a
// cleanup job.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/djlord-it/easy-etl/internal/domain"
)

// Config controls counter bucketing and expiry.
type Config struct {
	// Retention is how long a bucket key lives. Default 7 days.
	Retention time.Duration

	// Window is the bucket width. Supported: time.Minute, time.Hour,
	// 24h. Default time.Hour.
	Window time.Duration
}

func (c Config) withDefaults() Config {
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
	if c.Window <= 0 {
		c.Window = time.Hour
	}
	return c
}

type RedisSink struct {
	client *redis.Client
	config Config
}

func NewRedisSink(client *redis.Client, config Config) *RedisSink {
	return &RedisSink{client: client, config: config.withDefaults()}
}

// RecordRun increments the outcome counter for the run's job in the
// bucket containing its finish time.
func (s *RedisSink) RecordRun(ctx context.Context, outcome domain.RunOutcome) error {
	status := "success"
	if !outcome.Success() {
		status = "failure"
	}
	key := buildKey(outcome.JobName, status, outcome.FinishedAt, s.config.Window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.config.Retention)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	return nil
}

func buildKey(jobName, status string, t time.Time, window time.Duration) string {
	return fmt.Sprintf("etl:j:%s:%s:%s", jobName, status, truncateToBucket(t, window))
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case 24 * time.Hour:
		return t.Format("20060102")
	case time.Hour:
		return t.Format("2006010215")
	default:
		return t.Format("2006010215")
	}
}
