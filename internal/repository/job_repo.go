package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"classroom-backend/internal/models"
)

const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

type JobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

func (r *JobRepo) Create(ctx context.Context, j *models.Job) error {
	j.ID = uuid.New()
	j.Status = JobPending
	j.Stage = "idle"
	j.RetryCount = 0
	if j.MaxRetries == 0 {
		j.MaxRetries = 3
	}

	query := `INSERT INTO jobs (id, owner_email, kind, request_json, status, stage, retry_count, max_retries)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		j.ID, j.OwnerEmail, j.Kind, j.RequestJSON, j.Status, j.Stage, j.RetryCount, j.MaxRetries,
	).Scan(&j.CreatedAt)
}

func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j := &models.Job{}
	query := `SELECT id, owner_email, kind, request_json, status, stage, retry_count, max_retries,
		result_id, error_code, error_message, created_at, completed_at
		FROM jobs WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&j.ID, &j.OwnerEmail, &j.Kind, &j.RequestJSON, &j.Status, &j.Stage, &j.RetryCount, &j.MaxRetries,
		&j.ResultID, &j.ErrorCode, &j.ErrorMessage, &j.CreatedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (r *JobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if status == JobCompleted || status == JobFailed {
		_, err := r.pool.Exec(ctx,
			"UPDATE jobs SET status = $1, completed_at = $2 WHERE id = $3",
			status, time.Now(), id)
		return err
	}
	_, err := r.pool.Exec(ctx, "UPDATE jobs SET status = $1 WHERE id = $2", status, id)
	return err
}

func (r *JobRepo) UpdateStage(ctx context.Context, id uuid.UUID, stage string) error {
	_, err := r.pool.Exec(ctx, "UPDATE jobs SET stage = $1 WHERE id = $2", stage, id)
	return err
}

func (r *JobRepo) Complete(ctx context.Context, id uuid.UUID, resultID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, stage = 'done', result_id = $2, error_code = NULL,
		error_message = NULL, completed_at = $3 WHERE id = $4`,
		JobCompleted, resultID, time.Now(), id)
	return err
}

func (r *JobRepo) UpdateError(ctx context.Context, id uuid.UUID, code, errMsg string, retryCount int) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE jobs SET error_code = $1, error_message = $2, retry_count = $3 WHERE id = $4",
		code, errMsg, retryCount, id,
	)
	return err
}
