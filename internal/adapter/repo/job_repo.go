package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// ErrNoJobAvailable is returned by Claim when the queue is empty.
var ErrNoJobAvailable = errors.New("no queued job available")

// JobRepositoryPG implements domain.JobRepository plus the worker-side
// claim operation.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a queued generation job.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.GenerationJob) error {
	query := `
INSERT INTO generation_jobs (id, user_id, kind, target_id, document_id, status, request_json)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.UserID,
		job.Kind,
		job.TargetID,
		job.DocumentID,
		job.Status,
		job.RequestJSON,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, kind, target_id, document_id, status, request_json,
       COALESCE(stages_json, '[]'::jsonb), COALESCE(error_message, ''), created_at, updated_at
FROM generation_jobs
WHERE id = $1;
`, jobID)
	var job domain.GenerationJob
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Kind,
		&job.TargetID,
		&job.DocumentID,
		&job.Status,
		&job.RequestJSON,
		&job.StagesJSON,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// UpdateStatus moves a job's lifecycle state and optionally records the
// error message and per-stage results.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string, stagesJSON []byte) error {
	query := `
UPDATE generation_jobs
SET status = $2,
    updated_at = NOW(),
    error_message = COALESCE($3, error_message),
    stages_json = COALESCE($4::jsonb, stages_json)
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, status, errMsg, nullableBytes(stagesJSON))
	return err
}

// Claim atomically takes the oldest queued job and marks it running.
// FOR UPDATE SKIP LOCKED keeps concurrent workers off the same row.
func (r *JobRepositoryPG) Claim(ctx context.Context) (*domain.GenerationJob, error) {
	row := r.pool.QueryRow(ctx, `
WITH next_job AS (
    SELECT id
    FROM generation_jobs
    WHERE status = 'QUEUED'
    ORDER BY created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
),
claimed AS (
    UPDATE generation_jobs
    SET status = 'RUNNING', updated_at = NOW()
    WHERE id IN (SELECT id FROM next_job)
    RETURNING id, user_id, kind, target_id, document_id, status, request_json, created_at, updated_at
)
SELECT * FROM claimed;
`)
	var job domain.GenerationJob
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Kind,
		&job.TargetID,
		&job.DocumentID,
		&job.Status,
		&job.RequestJSON,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoJobAvailable
		}
		return nil, err
	}
	return &job, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
