// Package model contains the job record shared across the API, repository,
// and worker packages.
package model

import (
	"errors"
	"time"
)

// Status describes the conversion job lifecycle. The machine is forward-only:
// queued -> processing -> completed|failed, with no transition out of a
// terminal state.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job error codes attached to failed jobs. Validation failures never reach a
// job; these cover only post-acceptance engine and infrastructure failures.
const (
	ErrCodeWorker      = "WORKER_ERROR"
	ErrCodeTimeout     = "TIMEOUT"
	ErrCodeUnavailable = "ENGINE_UNAVAILABLE"
)

var (
	// ErrInvalidTransition is returned when a state change would move the
	// machine backwards or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid job transition")
)

// Result holds the output artifact metadata, present only on completed jobs.
type Result struct {
	ObjectKey string `json:"-"`
	FileName  string `json:"fileName"`
	Size      int64  `json:"size"`
	MIME      string `json:"mime"`
}

// JobError describes a terminal failure, present only on failed jobs.
type JobError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Options carries conversion preferences. The core treats them as opaque and
// hands them to engines untouched.
type Options map[string]string

// Job represents one conversion request and its lifecycle record.
type Job struct {
	ID           string     `json:"id"`
	SourceName   string     `json:"sourceName"`
	SourceKey    string     `json:"-"`
	SourceSize   int64      `json:"sourceSize"`
	SourceMIME   string     `json:"sourceMime"`
	SourceFormat string     `json:"sourceFormat"`
	TargetFormat string     `json:"targetFormat"`
	Status       Status     `json:"status"`
	Progress     int        `json:"progress"`
	Options      Options    `json:"options,omitempty"`
	Result       *Result    `json:"result,omitempty"`
	Error        *JobError  `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// MarkProcessing claims the job for processing. Only a queued job can be
// claimed; the first claim stamps StartedAt.
func (j *Job) MarkProcessing(now time.Time) error {
	if j.Status != StatusQueued {
		return ErrInvalidTransition
	}
	j.Status = StatusProcessing
	if j.StartedAt == nil {
		t := now
		j.StartedAt = &t
	}
	j.UpdatedAt = now
	return nil
}

// SetProgress records progress on a processing job. Values are clamped to
// [0,99]; completion alone moves progress to 100. Regressions are dropped so
// progress stays monotonic as observed by any poller.
func (j *Job) SetProgress(pct int, now time.Time) error {
	if j.Status != StatusProcessing {
		return ErrInvalidTransition
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 99 {
		pct = 99
	}
	if pct <= j.Progress {
		return nil
	}
	j.Progress = pct
	j.UpdatedAt = now
	return nil
}

// Complete finalizes a processing job with its result. Completion forces
// progress to 100 and stamps CompletedAt.
func (j *Job) Complete(res Result, now time.Time) error {
	if j.Status != StatusProcessing {
		return ErrInvalidTransition
	}
	j.Status = StatusCompleted
	j.Progress = 100
	j.Result = &res
	if j.CompletedAt == nil {
		t := now
		j.CompletedAt = &t
	}
	j.UpdatedAt = now
	return nil
}

// Fail finalizes the job with an error. Failing is permitted from queued as
// well as processing so overflow and dispatch errors surface instead of
// leaving the job stuck; terminal states stay immutable.
func (j *Job) Fail(jobErr JobError, now time.Time) error {
	if j.Terminal() {
		return ErrInvalidTransition
	}
	j.Status = StatusFailed
	j.Error = &jobErr
	if j.CompletedAt == nil {
		t := now
		j.CompletedAt = &t
	}
	j.UpdatedAt = now
	return nil
}
