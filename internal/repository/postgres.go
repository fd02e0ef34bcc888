package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/formatforge/formatforge/internal/model"
)

const jobColumns = `id, source_name, source_key, source_size, source_mime, source_format,
	target_format, status, progress, options,
	result_key, result_name, result_size, result_mime,
	error_code, error_message, error_details,
	created_at, updated_at, started_at, completed_at`

// JobRepository wraps all SQL used by the API server and the worker.
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository constructs a repository.
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

var _ Store = (*JobRepository)(nil)

// Create inserts a queued job. Admission has already happened; only accepted
// conversions reach this point.
func (r *JobRepository) Create(ctx context.Context, job *model.Job) error {
	now := time.Now().UTC()
	job.Status = model.StatusQueued
	job.Progress = 0
	job.CreatedAt = now
	job.UpdatedAt = now
	options, err := encodeOptions(job.Options)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO jobs (id, source_name, source_key, source_size, source_mime, source_format,
			target_format, status, progress, options, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, job.ID, job.SourceName, job.SourceKey, job.SourceSize, job.SourceMIME, job.SourceFormat,
		job.TargetFormat, job.Status, job.Progress, options, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get returns a job by id.
func (r *JobRepository) Get(ctx context.Context, id string) (*model.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id=$1`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

// ClaimQueued performs the queued→processing compare-and-swap. When the
// update matches no row the job either does not exist or was already claimed;
// the two cases map to ErrNotFound and ErrNotClaimable respectively.
func (r *JobRepository) ClaimQueued(ctx context.Context, id string) (*model.Job, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		UPDATE jobs
		SET status=$2, started_at=COALESCE(started_at, $3), updated_at=$3
		WHERE id=$1 AND status=$4
		RETURNING `+jobColumns, id, model.StatusProcessing, now, model.StatusQueued)
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, ErrNotClaimable
}

// SetProgress advances progress while the job is processing. GREATEST keeps
// the value monotonic and LEAST holds it below 100 until completion.
func (r *JobRepository) SetProgress(ctx context.Context, id string, pct int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET progress = LEAST(GREATEST(progress, $2), 99), updated_at=$3
		WHERE id=$1 AND status=$4
	`, id, pct, time.Now().UTC(), model.StatusProcessing)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// MarkCompleted finalizes a processing job with its result metadata.
func (r *JobRepository) MarkCompleted(ctx context.Context, id string, res model.Result) error {
	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status=$2, progress=100,
			result_key=$3, result_name=$4, result_size=$5, result_mime=$6,
			completed_at=COALESCE(completed_at, $7), updated_at=$7
		WHERE id=$1 AND status=$8
	`, id, model.StatusCompleted, res.ObjectKey, res.FileName, res.Size, res.MIME, now, model.StatusProcessing)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotClaimable
	}
	return nil
}

// MarkFailed finalizes the job with an error. Failing is allowed from queued
// as well as processing; terminal rows are never touched.
func (r *JobRepository) MarkFailed(ctx context.Context, id string, jobErr model.JobError) error {
	now := time.Now().UTC()
	details, err := encodeDetails(jobErr.Details)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status=$2, error_code=$3, error_message=$4, error_details=$5,
			completed_at=COALESCE(completed_at, $6), updated_at=$6
		WHERE id=$1 AND status IN ($7, $8)
	`, id, model.StatusFailed, jobErr.Code, jobErr.Message, details, now,
		model.StatusQueued, model.StatusProcessing)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotClaimable
	}
	return nil
}

// DeleteExpired sweeps jobs past the retention cutoff and returns them so the
// janitor can remove the associated stored objects.
func (r *JobRepository) DeleteExpired(ctx context.Context, cutoff time.Time) ([]model.Job, error) {
	rows, err := r.pool.Query(ctx, `
		DELETE FROM jobs WHERE created_at < $1
		RETURNING `+jobColumns, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete expired jobs: %w", err)
	}
	defer rows.Close()
	var out []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired job: %w", err)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired jobs: %w", err)
	}
	return out, nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		job          model.Job
		options      sql.NullString
		resultKey    sql.NullString
		resultName   sql.NullString
		resultSize   sql.NullInt64
		resultMIME   sql.NullString
		errorCode    sql.NullString
		errorMessage sql.NullString
		errorDetails sql.NullString
		startedAt    sql.NullTime
		completedAt  sql.NullTime
	)
	if err := row.Scan(&job.ID, &job.SourceName, &job.SourceKey, &job.SourceSize, &job.SourceMIME,
		&job.SourceFormat, &job.TargetFormat, &job.Status, &job.Progress, &options,
		&resultKey, &resultName, &resultSize, &resultMIME,
		&errorCode, &errorMessage, &errorDetails,
		&job.CreatedAt, &job.UpdatedAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	if options.Valid && options.String != "" {
		if err := json.Unmarshal([]byte(options.String), &job.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
	}
	if resultKey.Valid {
		job.Result = &model.Result{
			ObjectKey: resultKey.String,
			FileName:  resultName.String,
			Size:      resultSize.Int64,
			MIME:      resultMIME.String,
		}
	}
	if errorCode.Valid {
		jobErr := &model.JobError{Code: errorCode.String, Message: errorMessage.String}
		if errorDetails.Valid && errorDetails.String != "" {
			if err := json.Unmarshal([]byte(errorDetails.String), &jobErr.Details); err != nil {
				return nil, fmt.Errorf("decode error details: %w", err)
			}
		}
		job.Error = jobErr
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

func encodeOptions(opts model.Options) (*string, error) {
	if len(opts) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("encode options: %w", err)
	}
	s := string(data)
	return &s, nil
}

func encodeDetails(details map[string]string) (*string, error) {
	if len(details) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("encode error details: %w", err)
	}
	s := string(data)
	return &s, nil
}
