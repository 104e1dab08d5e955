// Package notify delivers job results and failure notices to a job's
// recipient list over SMTP.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/djlord-it/easy-etl/internal/domain"
)

// ErrDelivery is returned once all delivery attempts are exhausted.
var ErrDelivery = errors.New("delivery failed")

const (
	maxAttempts       = 2
	defaultRetryDelay = 5 * time.Second
)

// Message is a fully composed notification ready for a Sender.
type Message struct {
	To      []string
	Subject string
	Body    string

	// Attachment is set on success deliveries only.
	Attachment *Attachment
}

type Attachment struct {
	Filename string
	Content  []byte
}

// Sender performs one delivery attempt.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// MetricsSink records delivery metrics. All methods are fire-and-forget.
type MetricsSink interface {
	DeliveryAttemptCompleted(attempt int, outcome string, duration time.Duration)
	DeliveryOutcome(outcome string)
}

type Config struct {
	// DryRun logs what would be sent instead of delivering. Driven by
	// ENVIRONMENT=test; used in test deployments.
	DryRun bool

	// RetryDelay is the fixed wait before the second attempt. Default 5s.
	RetryDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	return c
}

type Notifier struct {
	config  Config
	sender  Sender
	metrics MetricsSink // optional, nil = disabled
	log     zerolog.Logger
	clock   func() time.Time

	// sleep waits between attempts; injected for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(config Config, sender Sender, log zerolog.Logger) *Notifier {
	return &Notifier{
		config: config.withDefaults(),
		sender: sender,
		log:    log.With().Str("component", "notify").Logger(),
		clock:  time.Now,
		sleep:  sleepContext,
	}
}

// WithMetrics attaches a metrics sink.
func (n *Notifier) WithMetrics(sink MetricsSink) *Notifier {
	n.metrics = sink
	return n
}

// DeliverSuccess mails the formatted result to every recipient with the
// CSV attached.
func (n *Notifier) DeliverSuccess(ctx context.Context, jobName string, recipients []string, csvContent string) error {
	now := n.clock()
	msg := Message{
		To:      recipients,
		Subject: fmt.Sprintf("Job Results: %s - %s", jobName, now.Format("2006-01-02 15:04:05")),
		Body: fmt.Sprintf(`Hello,

The scheduled job '%s' has completed successfully.

Please find the results attached as a CSV file.

Execution Time: %s

Best regards,
easy-etl
`, jobName, now.Format("2006-01-02 15:04:05")),
		Attachment: &Attachment{
			Filename: fmt.Sprintf("%s_%s.csv", jobName, now.Format("20060102_150405")),
			Content:  []byte(csvContent),
		},
	}
	return n.deliver(ctx, jobName, msg)
}

// DeliverFailure mails a failure notice naming the stage that failed
// and the underlying error.
func (n *Notifier) DeliverFailure(ctx context.Context, jobName string, recipients []string, stage domain.Stage, message string) error {
	now := n.clock()
	msg := Message{
		To:      recipients,
		Subject: fmt.Sprintf("Job Failure: %s - %s", jobName, now.Format("2006-01-02 15:04:05")),
		Body: fmt.Sprintf(`Hello,

The scheduled job '%s' has failed during execution.

Execution Time: %s

Failed Stage: %s

Error Details:
%s

Please review the job configuration and data source, then contact your
system administrator if the issue persists.

Best regards,
easy-etl
`, jobName, now.Format("2006-01-02 15:04:05"), stage, message),
	}
	return n.deliver(ctx, jobName, msg)
}

func (n *Notifier) deliver(ctx context.Context, jobName string, msg Message) error {
	if n.config.DryRun {
		n.log.Info().
			Str("job", jobName).
			Str("subject", msg.Subject).
			Int("recipients", len(msg.To)).
			Bool("attachment", msg.Attachment != nil).
			Msg("dry-run: delivery skipped")
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			n.log.Info().Str("job", jobName).Dur("delay", n.config.RetryDelay).Msg("retrying delivery")
			if err := n.sleep(ctx, n.config.RetryDelay); err != nil {
				return fmt.Errorf("%w: %v", ErrDelivery, err)
			}
		}

		start := n.clock()
		err := n.sender.Send(ctx, msg)
		duration := n.clock().Sub(start)

		if n.metrics != nil {
			outcome := "success"
			if err != nil {
				outcome = "failure"
			}
			n.metrics.DeliveryAttemptCompleted(attempt, outcome, duration)
		}

		if err == nil {
			n.log.Info().Str("job", jobName).Int("recipients", len(msg.To)).Int("attempt", attempt).Msg("delivered")
			if n.metrics != nil {
				n.metrics.DeliveryOutcome("success")
			}
			return nil
		}
		lastErr = err
		n.log.Warn().Str("job", jobName).Int("attempt", attempt).Err(err).Msg("delivery attempt failed")
	}

	if n.metrics != nil {
		n.metrics.DeliveryOutcome("failure")
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrDelivery, maxAttempts, lastErr)
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
