package config

import (
	"fmt"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	// SMTP settings are required unless deliveries are dry-run.
	if !cfg.DryRun() {
		if cfg.SMTPHost == "" {
			errs = append(errs, ValidationError{
				Field:   "SMTP_HOST",
				Message: "required (or set ENVIRONMENT=test for dry-run)",
			})
		}
		if cfg.SMTPFrom == "" {
			errs = append(errs, ValidationError{
				Field:   "SMTP_FROM",
				Message: "required (or set ENVIRONMENT=test for dry-run)",
			})
		}
	}

	if cfg.RegistryBackend != "jsonfile" && cfg.RegistryBackend != "sqlite" {
		errs = append(errs, ValidationError{
			Field:   "REGISTRY_BACKEND",
			Message: fmt.Sprintf("must be 'jsonfile' or 'sqlite', got %q", cfg.RegistryBackend),
		})
	}

	errs = appendDurationErrors(errs, "TICK_INTERVAL", cfg.TickIntervalStr)
	errs = appendDurationErrors(errs, "MISFIRE_GRACE", cfg.MisfireGraceStr)
	errs = appendDurationErrors(errs, "TRANSFORM_TIMEOUT", cfg.TransformTimeoutStr)
	errs = appendDurationErrors(errs, "API_FETCH_TIMEOUT", cfg.APIFetchTimeoutStr)
	errs = appendDurationErrors(errs, "NOTIFY_RETRY_DELAY", cfg.NotifyRetryDelayStr)

	switch cfg.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "LOG_LEVEL",
			Message: fmt.Sprintf("must be one of trace, debug, info, warn, error; got %q", cfg.LogLevel),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func appendDurationErrors(errs ValidationErrors, field, value string) ValidationErrors {
	if value == "" {
		return errs
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid duration: %v", err),
		})
	}
	if d <= 0 {
		return append(errs, ValidationError{
			Field:   field,
			Message: "must be positive",
		})
	}
	return errs
}
