// Package store defines the job registry interface. Backends provide
// durable keyed storage with whole-operation read-modify-write
// semantics: no lock is ever held across a network or transform
// suspension point.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/djlord-it/easy-etl/internal/domain"
)

var (
	ErrNotFound = errors.New("job not found")
	ErrExists   = errors.New("job already exists")
)

// Registry stores job definitions keyed by unique name.
type Registry interface {
	// Create adds a new job. Returns ErrExists for a duplicate name.
	Create(ctx context.Context, job domain.Job) error

	// Update replaces an existing job. Returns ErrNotFound.
	Update(ctx context.Context, job domain.Job) error

	// SetLastRun updates only the last-run timestamp of an existing
	// job. Returns ErrNotFound.
	SetLastRun(ctx context.Context, name string, t time.Time) error

	// Get returns the job named name. Returns ErrNotFound.
	Get(ctx context.Context, name string) (domain.Job, error)

	// List returns all jobs ordered by name.
	List(ctx context.Context) ([]domain.Job, error)

	// Delete removes the job named name. Returns ErrNotFound.
	Delete(ctx context.Context, name string) error
}
