package categories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/newtube/backend/internal/models"
)

// Repository handles category persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a categories repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new category.
func (r *Repository) Create(ctx context.Context, cat *models.Category) error {
	const q = `INSERT INTO categories (id, name, description)
		VALUES (gen_random_uuid(), $1, $2)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, cat.Name, cat.Description).
		Scan(&cat.ID, &cat.CreatedAt, &cat.UpdatedAt)
}

// List returns all categories ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Category, error) {
	const q = `SELECT id, name, COALESCE(description,''), created_at, updated_at
		FROM categories ORDER BY name`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}
