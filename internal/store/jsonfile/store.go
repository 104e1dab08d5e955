// Package jsonfile implements the job registry as a single JSON array
// rewritten wholesale on every mutation. Acceptable at small job
// counts; the store.Registry interface keeps it swappable for the
// sqlite backend without touching the core.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/djlord-it/easy-etl/internal/domain"
	"github.com/djlord-it/easy-etl/internal/store"
)

type jobRecord struct {
	Name           string     `json:"name"`
	CronExpression string     `json:"cron_expression"`
	SourceType     string     `json:"source_type"`
	Location       string     `json:"location"`
	Format         string     `json:"format,omitempty"`
	Transform      string     `json:"transform"`
	Recipients     []string   `json:"recipients"`
	CreatedAt      time.Time  `json:"created_at"`
	LastRun        *time.Time `json:"last_run,omitempty"`
}

type Store struct {
	path string
	mu   sync.Mutex
}

// New creates a store backed by the JSON file at path. The parent
// directory is created on first write; a missing file reads as empty.
func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Create(ctx context.Context, job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.Name == job.Name {
			return fmt.Errorf("%w: %s", store.ErrExists, job.Name)
		}
	}
	records = append(records, toRecord(job))
	return s.write(records)
}

func (s *Store) Update(ctx context.Context, job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	for i, r := range records {
		if r.Name == job.Name {
			records[i] = toRecord(job)
			return s.write(records)
		}
	}
	return fmt.Errorf("%w: %s", store.ErrNotFound, job.Name)
}

func (s *Store) SetLastRun(ctx context.Context, name string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	for i, r := range records {
		if r.Name == name {
			ts := t.UTC()
			records[i].LastRun = &ts
			return s.write(records)
		}
	}
	return fmt.Errorf("%w: %s", store.ErrNotFound, name)
}

func (s *Store) Get(ctx context.Context, name string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return domain.Job{}, err
	}
	for _, r := range records {
		if r.Name == name {
			return fromRecord(r), nil
		}
	}
	return domain.Job{}, fmt.Errorf("%w: %s", store.ErrNotFound, name)
}

func (s *Store) List(ctx context.Context) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	jobs := make([]domain.Job, len(records))
	for i, r := range records {
		jobs[i] = fromRecord(r)
	}
	return jobs, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	kept := records[:0]
	found := false
	for _, r := range records {
		if r.Name == name {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	return s.write(kept)
}

func (s *Store) read() ([]jobRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []jobRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	return records, nil
}

// write replaces the registry file atomically via temp file + rename so
// a crash mid-write never leaves a truncated registry behind.
func (s *Store) write(records []jobRecord) error {
	if records == nil {
		records = []jobRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".jobs-*.json")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close registry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}

func toRecord(job domain.Job) jobRecord {
	return jobRecord{
		Name:           job.Name,
		CronExpression: job.CronExpression,
		SourceType:     string(job.Source.Type),
		Location:       job.Source.Location,
		Format:         string(job.Source.Format),
		Transform:      job.Transform,
		Recipients:     job.Recipients,
		CreatedAt:      job.CreatedAt.UTC(),
		LastRun:        job.LastRun,
	}
}

func fromRecord(r jobRecord) domain.Job {
	return domain.Job{
		Name:           r.Name,
		CronExpression: r.CronExpression,
		Source: domain.Source{
			Type:     domain.SourceType(r.SourceType),
			Location: r.Location,
			Format:   domain.FileFormat(r.Format),
		},
		Transform:  r.Transform,
		Recipients: r.Recipients,
		CreatedAt:  r.CreatedAt,
		LastRun:    r.LastRun,
	}
}
