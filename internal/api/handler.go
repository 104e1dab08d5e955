// Package api exposes the job management HTTP surface: CRUD on job
// definitions plus a synchronous test-run endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/djlord-it/easy-etl/internal/domain"
	"github.com/djlord-it/easy-etl/internal/store"
)

// Registry is the subset of job storage the API needs.
type Registry interface {
	Create(ctx context.Context, job domain.Job) error
	Update(ctx context.Context, job domain.Job) error
	Get(ctx context.Context, name string) (domain.Job, error)
	List(ctx context.Context) ([]domain.Job, error)
	Delete(ctx context.Context, name string) error
}

// Scheduler keeps live triggers in sync with registry mutations.
type Scheduler interface {
	Schedule(job domain.Job) error
	Unschedule(name string)
}

// Tester runs a job's pipeline once without delivering the result.
type Tester interface {
	Test(ctx context.Context, job domain.Job) (string, error)
}

type Handler struct {
	registry  Registry
	scheduler Scheduler
	tester    Tester
	clock     func() time.Time
}

func NewHandler(registry Registry, scheduler Scheduler, tester Tester) *Handler {
	return &Handler{
		registry:  registry,
		scheduler: scheduler,
		tester:    tester,
		clock:     time.Now,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case path == "/jobs" && r.Method == http.MethodPost:
		h.createJob(w, r)

	case path == "/jobs" && r.Method == http.MethodGet:
		h.listJobs(w, r)

	case strings.HasSuffix(path, "/run") && r.Method == http.MethodPost:
		h.runJob(w, r)

	case strings.HasPrefix(path, "/jobs/") && r.Method == http.MethodGet:
		h.getJob(w, r)

	case strings.HasPrefix(path, "/jobs/") && r.Method == http.MethodPut:
		h.updateJob(w, r)

	case strings.HasPrefix(path, "/jobs/") && r.Method == http.MethodDelete:
		h.deleteJob(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJobRequest(w, r)
	if !ok {
		return
	}

	job := domain.Job{
		Name:           req.Name,
		CronExpression: req.CronExpression,
		Source: domain.Source{
			Type:     domain.SourceType(req.Source.Type),
			Location: req.Source.Location,
			Format:   domain.FileFormat(req.Source.Format),
		},
		Transform:  req.Transform,
		Recipients: req.Recipients,
		CreatedAt:  h.clock().UTC(),
	}

	if err := h.registry.Create(r.Context(), job); err != nil {
		if errors.Is(err, store.ErrExists) {
			writeError(w, http.StatusConflict, "job already exists")
			return
		}
		log.Printf("api: create job error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	// The expression was validated above, so scheduling cannot fail for
	// a reason the client can fix.
	if err := h.scheduler.Schedule(job); err != nil {
		log.Printf("api: schedule job error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to schedule job")
		return
	}

	writeJSON(w, http.StatusCreated, toJobResponse(job))
}

func (h *Handler) updateJob(w http.ResponseWriter, r *http.Request) {
	name, ok := jobName(w, r, 2)
	if !ok {
		return
	}

	existing, err := h.registry.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		log.Printf("api: get job error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	req, ok := decodeJobRequest(w, r)
	if !ok {
		return
	}
	if req.Name != name {
		writeError(w, http.StatusBadRequest, "name in body must match path")
		return
	}

	job := domain.Job{
		Name:           name,
		CronExpression: req.CronExpression,
		Source: domain.Source{
			Type:     domain.SourceType(req.Source.Type),
			Location: req.Source.Location,
			Format:   domain.FileFormat(req.Source.Format),
		},
		Transform:  req.Transform,
		Recipients: req.Recipients,
		CreatedAt:  existing.CreatedAt,
		LastRun:    existing.LastRun,
	}

	if err := h.registry.Update(r.Context(), job); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		log.Printf("api: update job error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to update job")
		return
	}

	if err := h.scheduler.Schedule(job); err != nil {
		log.Printf("api: reschedule job error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to schedule job")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.registry.List(r.Context())
	if err != nil {
		log.Printf("api: list jobs error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, len(jobs))}
	for i, job := range jobs {
		resp.Jobs[i] = toJobResponse(job)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	name, ok := jobName(w, r, 2)
	if !ok {
		return
	}

	job, err := h.registry.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		log.Printf("api: get job error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (h *Handler) deleteJob(w http.ResponseWriter, r *http.Request) {
	name, ok := jobName(w, r, 2)
	if !ok {
		return
	}

	// Unschedule first so a fire cannot race the delete.
	h.scheduler.Unschedule(name)

	if err := h.registry.Delete(r.Context(), name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		log.Printf("api: delete job error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete job")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// runJob executes the pipeline synchronously and returns the CSV a
// scheduled run would deliver. Nothing is mailed and last_run is
// untouched.
func (h *Handler) runJob(w http.ResponseWriter, r *http.Request) {
	// Path: /jobs/{name}/run
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "jobs" || parts[2] != "run" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	name := parts[1]

	job, err := h.registry.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		log.Printf("api: get job error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	csvContent, err := h.tester.Test(r.Context(), job)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, RunResponse{Job: name, CSV: csvContent})
}

func decodeJobRequest(w http.ResponseWriter, r *http.Request) (JobRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return JobRequest{}, false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return JobRequest{}, false
	}

	if err := validateJobRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return JobRequest{}, false
	}
	return req, true
}

// jobName extracts the {name} segment from /jobs/{name} style paths.
func jobName(w http.ResponseWriter, r *http.Request, segments int) (string, bool) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != segments || parts[0] != "jobs" || parts[1] == "" {
		writeError(w, http.StatusNotFound, "not found")
		return "", false
	}
	return parts[1], true
}

func toJobResponse(job domain.Job) JobResponse {
	resp := JobResponse{
		Name:           job.Name,
		CronExpression: job.CronExpression,
		Source: SourceRequest{
			Type:     string(job.Source.Type),
			Location: job.Source.Location,
			Format:   string(job.Source.Format),
		},
		Transform:  job.Transform,
		Recipients: job.Recipients,
		CreatedAt:  formatTime(job.CreatedAt),
	}
	if job.LastRun != nil {
		resp.LastRun = formatTime(*job.LastRun)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
