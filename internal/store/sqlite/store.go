// Package sqlite implements the job registry on an embedded SQLite
// database. It is the "real store" alternative to the jsonfile backend,
// selected with REGISTRY_BACKEND=sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/djlord-it/easy-etl/internal/domain"
	"github.com/djlord-it/easy-etl/internal/store"
)

type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the database at path and prepares
// the schema. SQLite serializes writers itself, which matches the
// registry's whole-operation locking model.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection avoids SQLITE_BUSY between concurrent runs.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(querySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Create(ctx context.Context, job domain.Job) error {
	recipients, err := json.Marshal(job.Recipients)
	if err != nil {
		return fmt.Errorf("encode recipients: %w", err)
	}
	_, err = s.db.ExecContext(ctx, queryInsertJob,
		job.Name,
		job.CronExpression,
		string(job.Source.Type),
		job.Source.Location,
		string(job.Source.Format),
		job.Transform,
		string(recipients),
		job.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(job.LastRun),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrExists, job.Name)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, job domain.Job) error {
	recipients, err := json.Marshal(job.Recipients)
	if err != nil {
		return fmt.Errorf("encode recipients: %w", err)
	}
	res, err := s.db.ExecContext(ctx, queryUpdateJob,
		job.CronExpression,
		string(job.Source.Type),
		job.Source.Location,
		string(job.Source.Format),
		job.Transform,
		string(recipients),
		nullableTime(job.LastRun),
		job.Name,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return requireRow(res, job.Name)
}

func (s *Store) SetLastRun(ctx context.Context, name string, t time.Time) error {
	res, err := s.db.ExecContext(ctx, querySetLastRun, t.UTC().Format(time.RFC3339Nano), name)
	if err != nil {
		return fmt.Errorf("set last_run: %w", err)
	}
	return requireRow(res, name)
}

func (s *Store) Get(ctx context.Context, name string) (domain.Job, error) {
	row := s.db.QueryRowContext(ctx, queryGetJob, name)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return domain.Job{}, fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Job, error) {
	rows, err := s.db.QueryContext(ctx, queryListJobs)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, queryDeleteJob, name)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return requireRow(res, name)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (domain.Job, error) {
	var (
		job        domain.Job
		sourceType string
		format     string
		recipients string
		createdAt  string
		lastRun    sql.NullString
	)
	err := row.Scan(
		&job.Name,
		&job.CronExpression,
		&sourceType,
		&job.Source.Location,
		&format,
		&job.Transform,
		&recipients,
		&createdAt,
		&lastRun,
	)
	if err != nil {
		return domain.Job{}, err
	}

	job.Source.Type = domain.SourceType(sourceType)
	job.Source.Format = domain.FileFormat(format)
	if err := json.Unmarshal([]byte(recipients), &job.Recipients); err != nil {
		return domain.Job{}, fmt.Errorf("decode recipients: %w", err)
	}
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return domain.Job{}, fmt.Errorf("parse created_at: %w", err)
	}
	if lastRun.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastRun.String)
		if err != nil {
			return domain.Job{}, fmt.Errorf("parse last_run: %w", err)
		}
		job.LastRun = &t
	}
	return job, nil
}

func requireRow(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, name)
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
