package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"classroom-backend/internal/models"
)

type ClassworkRepo struct {
	pool *pgxpool.Pool
}

func NewClassworkRepo(pool *pgxpool.Pool) *ClassworkRepo {
	return &ClassworkRepo{pool: pool}
}

const classworkColumns = `id, class_id, kind, number, topic, created_by, content, created_at`

func (r *ClassworkRepo) Create(ctx context.Context, c *models.Classwork) error {
	c.ID = uuid.New()
	query := `INSERT INTO classwork (id, class_id, kind, number, topic, created_by, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		c.ID, c.ClassID, c.Kind, c.Number, c.Topic, c.CreatedBy, c.Content,
	).Scan(&c.CreatedAt)
}

func (r *ClassworkRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Classwork, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+classworkColumns+` FROM classwork WHERE id = $1`, id)
	return scanClasswork(row)
}

// ListByClass returns the class's classwork of the given kinds, newest first.
func (r *ClassworkRepo) ListByClass(ctx context.Context, classID string, kinds []models.ContentKind) ([]*models.Classwork, error) {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	query := `SELECT ` + classworkColumns + ` FROM classwork
		WHERE class_id = $1 AND kind = ANY($2) ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, strings.TrimSpace(classID), names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*models.Classwork{}
	for rows.Next() {
		c, err := scanClasswork(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func (r *ClassworkRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM classwork WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanClasswork(row pgx.Row) (*models.Classwork, error) {
	c := &models.Classwork{}
	err := row.Scan(&c.ID, &c.ClassID, &c.Kind, &c.Number, &c.Topic, &c.CreatedBy, &c.Content, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}
