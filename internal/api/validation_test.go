package api

import (
	"strings"
	"testing"
)

func validRequest() JobRequest {
	return JobRequest{
		Name:           "daily-report",
		CronExpression: "0 9 * * *",
		Source:         SourceRequest{Type: "api", Location: "https://api.example.com/data"},
		Transform:      "output = input",
		Recipients:     []string{"ops@example.com"},
	}
}

func TestValidateJobRequest_Valid(t *testing.T) {
	if err := validateJobRequest(validRequest()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestValidateJobRequest_FileSource_Valid(t *testing.T) {
	req := validRequest()
	req.Source = SourceRequest{Type: "file", Location: "/data/in.csv", Format: "csv"}
	if err := validateJobRequest(req); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestValidateJobRequest_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*JobRequest)
		wantMsg string
	}{
		{
			name:    "missing name",
			mutate:  func(r *JobRequest) { r.Name = "" },
			wantMsg: "name is required",
		},
		{
			name:    "name too long",
			mutate:  func(r *JobRequest) { r.Name = strings.Repeat("x", 101) },
			wantMsg: "name exceeds",
		},
		{
			name:    "missing cron",
			mutate:  func(r *JobRequest) { r.CronExpression = "" },
			wantMsg: "cron_expression is required",
		},
		{
			name:    "six field cron",
			mutate:  func(r *JobRequest) { r.CronExpression = "0 0 9 * * *" },
			wantMsg: "invalid cron_expression",
		},
		{
			name:    "cron field out of range",
			mutate:  func(r *JobRequest) { r.CronExpression = "99 * * * *" },
			wantMsg: "invalid cron_expression",
		},
		{
			name:    "missing location",
			mutate:  func(r *JobRequest) { r.Source.Location = "" },
			wantMsg: "source.location is required",
		},
		{
			name:    "unknown source type",
			mutate:  func(r *JobRequest) { r.Source.Type = "ftp" },
			wantMsg: "source.type must be",
		},
		{
			name:    "api source with format",
			mutate:  func(r *JobRequest) { r.Source.Format = "csv" },
			wantMsg: "not allowed for api sources",
		},
		{
			name: "api source with bad scheme",
			mutate: func(r *JobRequest) {
				r.Source.Location = "ftp://example.com/data"
			},
			wantMsg: "scheme must be http or https",
		},
		{
			name: "api source without host",
			mutate: func(r *JobRequest) {
				r.Source.Location = "https:///data"
			},
			wantMsg: "host is required",
		},
		{
			name: "file source without format",
			mutate: func(r *JobRequest) {
				r.Source = SourceRequest{Type: "file", Location: "/data/in.csv"}
			},
			wantMsg: "source.format must be",
		},
		{
			name: "file source with bad format",
			mutate: func(r *JobRequest) {
				r.Source = SourceRequest{Type: "file", Location: "/data/in.xml", Format: "xml"}
			},
			wantMsg: "source.format must be",
		},
		{
			name:    "missing transform",
			mutate:  func(r *JobRequest) { r.Transform = "" },
			wantMsg: "transform is required",
		},
		{
			name:    "no recipients",
			mutate:  func(r *JobRequest) { r.Recipients = nil },
			wantMsg: "recipients is required",
		},
		{
			name:    "bad recipient address",
			mutate:  func(r *JobRequest) { r.Recipients = []string{"not-an-address"} },
			wantMsg: "invalid recipient",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := validateJobRequest(req)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error: got %q, want substring %q", err.Error(), tt.wantMsg)
			}
		})
	}
}
