package api

import (
	"fmt"
	"net/mail"
	"net/url"

	"github.com/robfig/cron/v3"
)

const maxNameLength = 100

func validateJobRequest(req JobRequest) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(req.Name) > maxNameLength {
		return fmt.Errorf("name exceeds %d characters", maxNameLength)
	}

	if req.CronExpression == "" {
		return fmt.Errorf("cron_expression is required")
	}
	if err := validateCron(req.CronExpression); err != nil {
		return fmt.Errorf("invalid cron_expression: %w", err)
	}

	if err := validateSource(req.Source); err != nil {
		return err
	}

	if req.Transform == "" {
		return fmt.Errorf("transform is required")
	}

	if len(req.Recipients) == 0 {
		return fmt.Errorf("recipients is required")
	}
	for _, r := range req.Recipients {
		if _, err := mail.ParseAddress(r); err != nil {
			return fmt.Errorf("invalid recipient %q: %w", r, err)
		}
	}

	return nil
}

func validateSource(src SourceRequest) error {
	if src.Location == "" {
		return fmt.Errorf("source.location is required")
	}
	switch src.Type {
	case "api":
		if src.Format != "" {
			return fmt.Errorf("source.format is not allowed for api sources")
		}
		return validateSourceURL(src.Location)
	case "file":
		if src.Format != "csv" && src.Format != "json" {
			return fmt.Errorf("source.format must be 'csv' or 'json' for file sources, got %q", src.Format)
		}
		return nil
	default:
		return fmt.Errorf("source.type must be 'api' or 'file', got %q", src.Type)
	}
}

func validateCron(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(expr)
	return err
}

func validateSourceURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid source.location: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("source.location scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("source.location host is required")
	}
	return nil
}
