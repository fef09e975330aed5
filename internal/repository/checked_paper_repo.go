package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"classroom-backend/internal/models"
)

type CheckedPaperRepo struct {
	pool *pgxpool.Pool
}

func NewCheckedPaperRepo(pool *pgxpool.Pool) *CheckedPaperRepo {
	return &CheckedPaperRepo{pool: pool}
}

func (r *CheckedPaperRepo) Create(ctx context.Context, p *models.CheckedPaper) error {
	p.ID = uuid.New()
	query := `INSERT INTO checked_papers (id, checked_by, student_name, student_id, subject, result)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		p.ID, p.CheckedBy, p.StudentName, p.StudentID, p.Subject, p.Result,
	).Scan(&p.CreatedAt)
}

func (r *CheckedPaperRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.CheckedPaper, error) {
	p := &models.CheckedPaper{}
	query := `SELECT id, checked_by, student_name, student_id, subject, result, created_at
		FROM checked_papers WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.CheckedBy, &p.StudentName, &p.StudentID, &p.Subject, &p.Result, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *CheckedPaperRepo) ListByChecker(ctx context.Context, email string) ([]*models.CheckedPaper, error) {
	query := `SELECT id, checked_by, student_name, student_id, subject, result, created_at
		FROM checked_papers WHERE checked_by = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	papers := []*models.CheckedPaper{}
	for rows.Next() {
		p := &models.CheckedPaper{}
		if err := rows.Scan(&p.ID, &p.CheckedBy, &p.StudentName, &p.StudentID, &p.Subject, &p.Result, &p.CreatedAt); err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

func (r *CheckedPaperRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM checked_papers WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
