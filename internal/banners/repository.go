package banners

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/database"
	"github.com/eduevent/backend/pkg/sentinel"
)

const columns = `id, title, description, image_path, button_text, button_link, is_active, sort_order, created_at, updated_at`

func scan(row pgx.Row, b *models.Banner) error {
	return row.Scan(&b.ID, &b.Title, &b.Description, &b.ImagePath, &b.ButtonText, &b.ButtonLink,
		&b.IsActive, &b.SortOrder, &b.CreatedAt, &b.UpdatedAt)
}

// Repository handles banner persistence.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates a banners repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns banners by sort order, only active ones when activeOnly is set.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]models.Banner, error) {
	q := `SELECT ` + columns + ` FROM banners`
	if activeOnly {
		q += ` WHERE is_active = TRUE`
	}
	q += ` ORDER BY sort_order ASC, created_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, database.MapError("list banners", err)
	}
	defer rows.Close()
	var list []models.Banner
	for rows.Next() {
		var b models.Banner
		if err := scan(rows, &b); err != nil {
			return nil, database.MapError("scan banner", err)
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// GetByID returns a banner by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Banner, error) {
	var b models.Banner
	if err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM banners WHERE id = $1`, id), &b); err != nil {
		return nil, database.MapError("get banner", err)
	}
	return &b, nil
}

// Create inserts a banner.
func (r *Repository) Create(ctx context.Context, b *models.Banner) error {
	const q = `INSERT INTO banners (id, title, description, image_path, button_text, button_link, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, b.ID, b.Title, b.Description, b.ImagePath, b.ButtonText, b.ButtonLink, b.IsActive, b.SortOrder).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	return database.MapError("insert banner", err)
}

// Update replaces the editable fields of a banner.
func (r *Repository) Update(ctx context.Context, b *models.Banner) error {
	const q = `UPDATE banners SET title = $2, description = $3, image_path = $4, button_text = $5, button_link = $6,
			is_active = $7, sort_order = $8, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, b.ID, b.Title, b.Description, b.ImagePath, b.ButtonText, b.ButtonLink, b.IsActive, b.SortOrder).
		Scan(&b.UpdatedAt)
	return database.MapError("update banner", err)
}

// ToggleActive flips is_active and returns the new value.
func (r *Repository) ToggleActive(ctx context.Context, id uuid.UUID) (bool, error) {
	var active bool
	err := r.pool.QueryRow(ctx, `UPDATE banners SET is_active = NOT is_active, updated_at = now() WHERE id = $1 RETURNING is_active`, id).
		Scan(&active)
	if err != nil {
		return false, database.MapError("toggle banner", err)
	}
	return active, nil
}

// Delete removes a banner.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM banners WHERE id = $1`, id)
	if err != nil {
		return database.MapError("delete banner", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
