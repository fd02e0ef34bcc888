package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/formatforge/formatforge/internal/repository"
)

// Janitor sweeps expired job records and their stored objects. Jobs expire a
// fixed window after creation regardless of status, bounding how long
// transient uploads and results occupy storage.
type Janitor struct {
	store     repository.Store
	objects   ObjectStore
	retention time.Duration
	interval  time.Duration
	log       *slog.Logger
}

// NewJanitor constructs a Janitor sweeping every interval.
func NewJanitor(store repository.Store, objects ObjectStore, retention, interval time.Duration, log *slog.Logger) *Janitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Janitor{
		store:     store,
		objects:   objects,
		retention: retention,
		interval:  interval,
		log:       log,
	}
}

// Run sweeps on a ticker until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
		}
	}
}

// Sweep removes one batch of expired jobs. Object removals are best effort;
// a missed object is retried implicitly by bucket lifecycle rules.
func (j *Janitor) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.retention)
	expired, err := j.store.DeleteExpired(ctx, cutoff)
	if err != nil {
		j.log.Error("retention sweep", "error", err)
		return
	}
	for _, job := range expired {
		if job.SourceKey != "" {
			if err := j.objects.RemoveSource(ctx, job.SourceKey); err != nil {
				j.log.Warn("remove expired source", "job", job.ID, "error", err)
			}
		}
		if job.Result != nil && job.Result.ObjectKey != "" {
			if err := j.objects.RemoveResult(ctx, job.Result.ObjectKey); err != nil {
				j.log.Warn("remove expired result", "job", job.ID, "error", err)
			}
		}
	}
	if len(expired) > 0 {
		j.log.Info("retention sweep", "removed", len(expired))
	}
}
