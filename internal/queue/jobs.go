package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// ProcessConversionTask is scheduled each time a conversion job is
	// accepted.
	ProcessConversionTask = "conversion:process"
)

// ProcessPayload is serialized into the task payload so the worker knows
// which job record to claim.
type ProcessPayload struct {
	JobID string `json:"job_id"`
}

// Client enqueues conversion tasks onto asynq.
type Client struct {
	inner   *asynq.Client
	timeout time.Duration
}

// NewClient wraps an asynq client. The timeout bounds how long a task may run
// before asynq abandons it; the dispatcher applies its own tighter per-job
// deadline.
func NewClient(inner *asynq.Client, timeout time.Duration) *Client {
	return &Client{inner: inner, timeout: timeout}
}

// Dispatch enqueues a conversion job for processing. The task never retries:
// the dispatcher records failures on the job record and a terminal job must
// not be reprocessed.
func (c *Client) Dispatch(ctx context.Context, jobID string) error {
	data, err := json.Marshal(ProcessPayload{JobID: jobID})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(ProcessConversionTask, data)
	opts := []asynq.Option{asynq.MaxRetry(0)}
	if c.timeout > 0 {
		// Leave headroom over the dispatcher deadline so the failure is
		// recorded by us, not by asynq.
		opts = append(opts, asynq.Timeout(c.timeout+time.Minute))
	}
	if _, err := c.inner.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue conversion task: %w", err)
	}
	return nil
}
