package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		HTTPAddr:        ":8080",
		TickIntervalStr: "1s",
		MisfireGraceStr: "5m",
		RegistryBackend: "jsonfile",
		SMTPHost:        "smtp.example.com",
		SMTPFrom:        "etl@example.com",
		LogLevel:        "info",
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestValidate_MissingSMTP_Required(t *testing.T) {
	cfg := validConfig()
	cfg.SMTPHost = ""
	cfg.SMTPFrom = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 2 {
		t.Fatalf("errors: got %d, want 2", len(verrs))
	}
	if !strings.Contains(err.Error(), "SMTP_HOST") || !strings.Contains(err.Error(), "SMTP_FROM") {
		t.Fatalf("error: got %q", err.Error())
	}
}

func TestValidate_MissingSMTP_OKInDryRun(t *testing.T) {
	cfg := validConfig()
	cfg.SMTPHost = ""
	cfg.SMTPFrom = ""
	cfg.Environment = "test"

	if err := Validate(cfg); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := validConfig()
	cfg.RegistryBackend = "postgres"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "REGISTRY_BACKEND") {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestValidate_BadDuration(t *testing.T) {
	cfg := validConfig()
	cfg.TickIntervalStr = "soon"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "TICK_INTERVAL") {
		t.Fatalf("expected duration error, got %v", err)
	}
}

func TestValidate_NonPositiveDuration(t *testing.T) {
	cfg := validConfig()
	cfg.MisfireGraceStr = "-1m"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "must be positive") {
		t.Fatalf("expected positivity error, got %v", err)
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "loud"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "LOG_LEVEL") {
		t.Fatalf("expected log level error, got %v", err)
	}
}

func TestValidationErrors_SingleAndMulti(t *testing.T) {
	single := ValidationErrors{{Field: "A", Message: "bad"}}
	if single.Error() != "A: bad" {
		t.Fatalf("single: got %q", single.Error())
	}

	multi := ValidationErrors{
		{Field: "A", Message: "bad"},
		{Field: "B", Message: "worse"},
	}
	msg := multi.Error()
	if !strings.HasPrefix(msg, "2 validation errors:") {
		t.Fatalf("multi: got %q", msg)
	}
	if !strings.Contains(msg, "A: bad") || !strings.Contains(msg, "B: worse") {
		t.Fatalf("multi: got %q", msg)
	}
}
