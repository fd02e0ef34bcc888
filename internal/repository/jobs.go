// Package repository persists conversion job records. The Store interface is
// implemented by the Postgres repository here and by the in-memory store used
// in tests and single-process deployments.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/formatforge/formatforge/internal/model"
)

var (
	// ErrNotFound is returned when a job does not exist or has already been
	// swept by the retention janitor. Status pollers treat both the same.
	ErrNotFound = errors.New("job not found")
	// ErrNotClaimable is returned when a claim races a concurrent trigger or
	// the job is already terminal.
	ErrNotClaimable = errors.New("job not claimable")
)

// Store is the persistence contract the API server and dispatcher depend on.
type Store interface {
	Create(ctx context.Context, job *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)

	// ClaimQueued atomically transitions a queued job to processing and
	// returns the claimed record. It is the compare-and-swap that makes
	// dispatch idempotent under concurrent triggers.
	ClaimQueued(ctx context.Context, id string) (*model.Job, error)

	// SetProgress advances progress on a processing job. Regressions and
	// updates against non-processing jobs are silently dropped.
	SetProgress(ctx context.Context, id string, pct int) error

	MarkCompleted(ctx context.Context, id string, res model.Result) error
	MarkFailed(ctx context.Context, id string, jobErr model.JobError) error

	// DeleteExpired removes jobs created before the cutoff regardless of
	// status and returns the removed records so the caller can clean up
	// their stored objects.
	DeleteExpired(ctx context.Context, cutoff time.Time) ([]model.Job, error)
}
