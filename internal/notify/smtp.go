package notify

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// SMTPConfig configures the outbound mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool // STARTTLS when available
}

// SMTPSender delivers messages through an SMTP server using go-mail.
// A fresh client is dialed per send; delivery volume here is one mail
// per job run, not worth a persistent connection.
type SMTPSender struct {
	config SMTPConfig
}

func NewSMTPSender(config SMTPConfig) *SMTPSender {
	return &SMTPSender{config: config}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.config.From); err != nil {
		return fmt.Errorf("from address: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return fmt.Errorf("to addresses: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	if msg.Attachment != nil {
		if err := m.AttachReader(msg.Attachment.Filename, bytes.NewReader(msg.Attachment.Content)); err != nil {
			return fmt.Errorf("attach %s: %w", msg.Attachment.Filename, err)
		}
	}

	tlsPolicy := mail.NoTLS
	if s.config.UseTLS {
		tlsPolicy = mail.TLSOpportunistic
	}
	opts := []mail.Option{
		mail.WithPort(s.config.Port),
		mail.WithTLSPolicy(tlsPolicy),
	}
	if s.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
		)
	}

	client, err := mail.NewClient(s.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}
