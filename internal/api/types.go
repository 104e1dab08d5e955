package api

import "time"

type SourceRequest struct {
	Type     string `json:"type"`             // "api" or "file"
	Location string `json:"location"`         // URL or path
	Format   string `json:"format,omitempty"` // file sources only: "csv" or "json"
}

type JobRequest struct {
	Name           string        `json:"name"`
	CronExpression string        `json:"cron_expression"`
	Source         SourceRequest `json:"source"`
	Transform      string        `json:"transform"`
	Recipients     []string      `json:"recipients"`
}

type JobResponse struct {
	Name           string        `json:"name"`
	CronExpression string        `json:"cron_expression"`
	Source         SourceRequest `json:"source"`
	Transform      string        `json:"transform"`
	Recipients     []string      `json:"recipients"`
	CreatedAt      string        `json:"created_at"`
	LastRun        string        `json:"last_run,omitempty"`
}

type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// RunResponse is the result of a synchronous test run.
type RunResponse struct {
	Job string `json:"job"`
	CSV string `json:"csv"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
