// Package processing provides the in-process dispatch pool used when the
// service runs without Redis: accepted jobs are handed straight to the
// dispatcher on a bounded channel instead of going through asynq.
package processing

import (
	"context"
	"log/slog"
)

// ProcessFunc runs one job to a terminal state.
type ProcessFunc func(ctx context.Context, jobID string) error

// OverflowFunc is invoked when the queue is full and a job cannot be
// accepted for processing.
type OverflowFunc func(ctx context.Context, jobID string)

// Pool consumes job ids and runs them on a fixed set of workers.
type Pool struct {
	process  ProcessFunc
	overflow OverflowFunc
	queue    chan string
	workers  int
	log      *slog.Logger
}

// NewPool builds a Pool with queue capacity tied to worker count.
func NewPool(process ProcessFunc, overflow OverflowFunc, workers int, log *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		process:  process,
		overflow: overflow,
		queue:    make(chan string, workers*4),
		workers:  workers,
		log:      log,
	}
}

// Start launches the worker goroutines. They exit when the context closes.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx)
	}
}

// Dispatch queues a job for asynchronous processing. When the buffer is full
// the job is not silently dropped: the overflow callback records the failure
// so the API reflects reality.
func (p *Pool) Dispatch(ctx context.Context, jobID string) error {
	select {
	case p.queue <- jobID:
		return nil
	default:
		p.log.Warn("dispatch queue full", "job", jobID)
		if p.overflow != nil {
			p.overflow(ctx, jobID)
		}
		return nil
	}
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-p.queue:
			if err := p.process(ctx, jobID); err != nil {
				p.log.Error("process job", "job", jobID, "error", err)
			}
		}
	}
}
