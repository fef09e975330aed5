package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"classroom-backend/internal/models"
)

type ModuleRepo struct {
	pool *pgxpool.Pool
}

func NewModuleRepo(pool *pgxpool.Pool) *ModuleRepo {
	return &ModuleRepo{pool: pool}
}

const moduleColumns = `id, email, name, content, chapter_count, progress, course_started_at, course_end_at, created_at`

func (r *ModuleRepo) Create(ctx context.Context, m *models.CourseModule) error {
	m.ID = uuid.New()
	if m.Progress == nil {
		m.Progress = []models.ChapterProgress{}
	}
	progress, err := json.Marshal(m.Progress)
	if err != nil {
		return err
	}

	query := `INSERT INTO course_modules (id, email, name, content, chapter_count, progress)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		m.ID, m.Email, m.Name, m.Content, m.ChapterCount, progress,
	).Scan(&m.CreatedAt)
}

// ListByEmail returns the owner's modules, newest first.
func (r *ModuleRepo) ListByEmail(ctx context.Context, email string) ([]*models.CourseModule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+moduleColumns+` FROM course_modules WHERE email = $1 ORDER BY created_at DESC`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*models.CourseModule{}
	for rows.Next() {
		m, err := scanModule(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func (r *ModuleRepo) GetForOwner(ctx context.Context, id uuid.UUID, email string) (*models.CourseModule, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+moduleColumns+` FROM course_modules WHERE id = $1 AND email = $2`, id, email)
	return scanModule(row)
}

// StartCourse sets course_started_at once; later calls keep the first value.
func (r *ModuleRepo) StartCourse(ctx context.Context, id uuid.UUID, email string, at time.Time) (*models.CourseModule, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE course_modules SET course_started_at = COALESCE(course_started_at, $3)
		WHERE id = $1 AND email = $2 RETURNING `+moduleColumns, id, email, at)
	return scanModule(row)
}

// SaveChapterProgress replaces any earlier entry for the same chapter.
func (r *ModuleRepo) SaveChapterProgress(ctx context.Context, id uuid.UUID, email string, p models.ChapterProgress) (*models.CourseModule, error) {
	entry, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx,
		`UPDATE course_modules SET progress = COALESCE(
			(SELECT jsonb_agg(e) FROM jsonb_array_elements(progress) e
			 WHERE (e->>'chapter_index')::int <> $3), '[]'::jsonb) || jsonb_build_array($4::jsonb)
		WHERE id = $1 AND email = $2 RETURNING `+moduleColumns,
		id, email, p.ChapterIndex, entry)
	return scanModule(row)
}

func (r *ModuleRepo) EndCourse(ctx context.Context, id uuid.UUID, email string, at time.Time) (*models.CourseModule, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE course_modules SET course_end_at = $3
		WHERE id = $1 AND email = $2 RETURNING `+moduleColumns, id, email, at)
	return scanModule(row)
}

func scanModule(row pgx.Row) (*models.CourseModule, error) {
	m := &models.CourseModule{}
	err := row.Scan(&m.ID, &m.Email, &m.Name, &m.Content, &m.ChapterCount, &m.Progress,
		&m.CourseStartedAt, &m.CourseEndAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}
