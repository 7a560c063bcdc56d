package wishlist

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eduevent/backend/internal/events"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/database"
)

// Repository handles wishlist persistence.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates a wishlist repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Toggle deletes the entry or inserts it in one transaction. A missing event
// returns sentinel.ErrNotFound.
func (r *Repository) Toggle(ctx context.Context, userID, eventID uuid.UUID) (bool, error) {
	var added bool
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM wishlists WHERE user_id = $1 AND event_id = $2`, userID, eventID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
		_, err = tx.Exec(ctx, `INSERT INTO wishlists (id, user_id, event_id) VALUES ($1, $2, $3)
			ON CONFLICT (user_id, event_id) DO NOTHING`, uuid.New(), userID, eventID)
		added = err == nil
		return err
	})
	if err != nil {
		return false, database.MapError("toggle wishlist", err)
	}
	return added, nil
}

// Exists reports whether the user wishlisted the event.
func (r *Repository) Exists(ctx context.Context, userID, eventID uuid.UUID) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM wishlists WHERE user_id = $1 AND event_id = $2)`,
		userID, eventID).Scan(&ok)
	if err != nil {
		return false, database.MapError("check wishlist", err)
	}
	return ok, nil
}

// ListByUser returns the user's entries joined with their event. Entries of
// deleted events are removed by the foreign key cascade.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	q := `SELECT w.id, w.user_id, w.event_id, w.created_at, ` + events.Columns + `
		FROM wishlists w
		JOIN events e ON e.id = w.event_id
		WHERE w.user_id = $1
		ORDER BY w.created_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, database.MapError("list wishlist", err)
	}
	defer rows.Close()

	var out []models.WishlistItem
	for rows.Next() {
		var (
			it models.WishlistItem
			ev models.Event
		)
		evDest, finish := events.Dest(&ev)
		dest := append([]any{&it.ID, &it.UserID, &it.EventID, &it.CreatedAt}, evDest...)
		if err := rows.Scan(dest...); err != nil {
			return nil, database.MapError("scan wishlist", err)
		}
		finish()
		it.Event = &ev
		out = append(out, it)
	}
	return out, database.MapError("list wishlist", rows.Err())
}
