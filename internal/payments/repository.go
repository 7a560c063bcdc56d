package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/database"
)

const columns = `id, event_id, user_id, registration_id, order_id, amount, status, paid_at, created_at, updated_at`

// Repository reads payments. Rows are written by the registration transaction.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates a payments repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a payment by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	err := r.pool.QueryRow(ctx, `SELECT `+columns+` FROM payments WHERE id = $1`, id).Scan(
		&p.ID, &p.EventID, &p.UserID, &p.RegistrationID, &p.OrderID, &p.Amount, &p.Status, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, database.MapError("get payment", err)
	}
	return &p, nil
}
