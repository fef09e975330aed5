package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"classroom-backend/internal/models"
)

type PresentationRepo struct {
	pool *pgxpool.Pool
}

func NewPresentationRepo(pool *pgxpool.Pool) *PresentationRepo {
	return &PresentationRepo{pool: pool}
}

func (r *PresentationRepo) Create(ctx context.Context, p *models.Presentation) error {
	p.ID = uuid.New()
	query := `INSERT INTO presentations (id, email, topic, tone, pages, description, slides)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		p.ID, p.Email, p.Topic, p.Tone, p.Pages, p.Description, p.Slides,
	).Scan(&p.CreatedAt)
}

// ListByEmail returns the owner's presentations, newest first.
func (r *PresentationRepo) ListByEmail(ctx context.Context, email string) ([]*models.Presentation, error) {
	query := `SELECT id, email, topic, tone, pages, description, slides, created_at
		FROM presentations WHERE email = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*models.Presentation{}
	for rows.Next() {
		p := &models.Presentation{}
		if err := rows.Scan(&p.ID, &p.Email, &p.Topic, &p.Tone, &p.Pages, &p.Description, &p.Slides, &p.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
