package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"classroom-backend/internal/models"
)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	c.ID = uuid.New()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversations (id, email, query, response, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Email, c.Query, c.Response, c.Timestamp,
	)
	return err
}

// ListByEmail returns at most limit exchanges, oldest first.
func (r *ConversationRepo) ListByEmail(ctx context.Context, email string, limit int) ([]*models.Conversation, error) {
	query := `SELECT id, email, query, response, created_at
		FROM conversations WHERE email = $1 ORDER BY created_at ASC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, email, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*models.Conversation{}
	for rows.Next() {
		c := &models.Conversation{}
		if err := rows.Scan(&c.ID, &c.Email, &c.Query, &c.Response, &c.Timestamp); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
