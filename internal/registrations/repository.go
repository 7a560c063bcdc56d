package registrations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eduevent/backend/internal/events"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/database"
	"github.com/eduevent/backend/pkg/sentinel"
)

// Columns is the registration select list, aliased as r.
const Columns = `r.id, r.event_id, r.user_id, r.status, r.attendance_token, r.additional_info,
	r.registered_at, r.confirmed_at, r.cancelled_at, r.token_sent_at, r.created_at, r.updated_at`

// Dest returns scan destinations for the registration columns aliased as r.
func Dest(reg *models.Registration) []any {
	return []any{&reg.ID, &reg.EventID, &reg.UserID, &reg.Status, &reg.AttendanceToken, &reg.AdditionalInfo,
		&reg.RegisteredAt, &reg.ConfirmedAt, &reg.CancelledAt, &reg.TokenSentAt, &reg.CreatedAt, &reg.UpdatedAt}
}

func scan(row pgx.Row, reg *models.Registration) error {
	return row.Scan(Dest(reg)...)
}

// Repository handles registration persistence.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create locks the event row so concurrent registrations for one event are
// serialized, counts active registrations in a fresh statement, runs admit and
// inserts the registration with its payment.
func (r *Repository) Create(ctx context.Context, reg *models.Registration, admit Admission) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var id uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM events WHERE id = $1 FOR UPDATE`, reg.EventID).Scan(&id); err != nil {
			return database.MapError("lock event", err)
		}
		ev, err := events.Scan(tx.QueryRow(ctx, `SELECT `+events.Columns+` FROM events e WHERE e.id = $1`, reg.EventID))
		if err != nil {
			return database.MapError("load event", err)
		}

		var dup bool
		err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM registrations
			WHERE event_id = $1 AND user_id = $2 AND status <> 'cancelled')`, reg.EventID, reg.UserID).Scan(&dup)
		if err != nil {
			return database.MapError("check registration", err)
		}

		payment, err := admit(ev, ev.RegisteredCount)
		if err != nil {
			return err
		}
		if dup {
			return sentinel.ErrConflict
		}

		const q = `INSERT INTO registrations (id, event_id, user_id, status, attendance_token, additional_info,
				registered_at, confirmed_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		if _, err := tx.Exec(ctx, q, reg.ID, reg.EventID, reg.UserID, reg.Status, reg.AttendanceToken,
			reg.AdditionalInfo, reg.RegisteredAt, reg.ConfirmedAt, reg.CreatedAt, reg.UpdatedAt); err != nil {
			return database.MapError("insert registration", err)
		}
		if payment != nil {
			const pq = `INSERT INTO payments (id, event_id, user_id, registration_id, order_id, amount, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
			if _, err := tx.Exec(ctx, pq, payment.ID, payment.EventID, payment.UserID, payment.RegistrationID,
				payment.OrderID, payment.Amount, payment.Status, payment.CreatedAt, payment.UpdatedAt); err != nil {
				return database.MapError("insert payment", err)
			}
		}
		return nil
	})
}

// GetByID returns a registration by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	var reg models.Registration
	if err := scan(r.pool.QueryRow(ctx, `SELECT `+Columns+` FROM registrations r WHERE r.id = $1`, id), &reg); err != nil {
		return nil, database.MapError("get registration", err)
	}
	return &reg, nil
}

// GetLatestByEventAndUser prefers the active registration, then the newest cancelled one.
func (r *Repository) GetLatestByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error) {
	const q = `SELECT ` + Columns + ` FROM registrations r
		WHERE r.event_id = $1 AND r.user_id = $2
		ORDER BY (r.status = 'cancelled'), r.registered_at DESC
		LIMIT 1`
	var reg models.Registration
	if err := scan(r.pool.QueryRow(ctx, q, eventID, userID), &reg); err != nil {
		return nil, database.MapError("get registration", err)
	}
	return &reg, nil
}

// Cancel marks an active registration cancelled and voids its pending payment.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE registrations SET status = 'cancelled', cancelled_at = $2, updated_at = $2
			WHERE id = $1 AND status <> 'cancelled'`, id, at)
		if err != nil {
			return database.MapError("cancel registration", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM registrations WHERE id = $1)`, id).Scan(&exists); err != nil {
				return database.MapError("cancel registration", err)
			}
			if !exists {
				return sentinel.ErrNotFound
			}
			return sentinel.ErrConflict
		}
		_, err = tx.Exec(ctx, `UPDATE payments SET status = 'cancelled', updated_at = $2
			WHERE registration_id = $1 AND status = 'pending'`, id, at)
		return database.MapError("cancel payment", err)
	})
}

// MarkTokenSent records the last successful token delivery.
func (r *Repository) MarkTokenSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE registrations SET token_sent_at = $2, updated_at = $2 WHERE id = $1`, id, at)
	return database.MapError("mark token sent", err)
}

// WithEvent is a registration joined with its event.
type WithEvent struct {
	models.Registration
	Event models.Event `json:"event"`
}

// ListByUser returns the user's registrations with their events, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]WithEvent, error) {
	q := `SELECT ` + Columns + `, ` + events.Columns + `
		FROM registrations r JOIN events e ON e.id = r.event_id
		WHERE r.user_id = $1
		ORDER BY r.registered_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, database.MapError("list registrations", err)
	}
	defer rows.Close()

	var list []WithEvent
	for rows.Next() {
		var item WithEvent
		evDest, finish := events.Dest(&item.Event)
		if err := rows.Scan(append(Dest(&item.Registration), evDest...)...); err != nil {
			return nil, database.MapError("scan registration", err)
		}
		finish()
		list = append(list, item)
	}
	return list, rows.Err()
}

// Participant is one row of an event's participant export.
type Participant struct {
	RegistrationID  uuid.UUID                 `json:"registration_id"`
	FullName        string                    `json:"full_name"`
	Email           string                    `json:"email"`
	Phone           string                    `json:"phone"`
	Status          models.RegistrationStatus `json:"status"`
	AttendanceToken string                    `json:"attendance_token"`
	RegisteredAt    time.Time                 `json:"registered_at"`
	CheckedInAt     *time.Time                `json:"checked_in_at,omitempty"`
}

// ListParticipants returns every registration of an event with its user and check-in time.
func (r *Repository) ListParticipants(ctx context.Context, eventID uuid.UUID) ([]Participant, error) {
	const q = `SELECT r.id, u.full_name, u.email, u.phone, r.status, r.attendance_token, r.registered_at, a.checked_in_at
		FROM registrations r
		JOIN users u ON u.id = r.user_id
		LEFT JOIN attendances a ON a.registration_id = r.id
		WHERE r.event_id = $1
		ORDER BY r.registered_at ASC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, database.MapError("list participants", err)
	}
	defer rows.Close()

	var list []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.RegistrationID, &p.FullName, &p.Email, &p.Phone, &p.Status,
			&p.AttendanceToken, &p.RegisteredAt, &p.CheckedInAt); err != nil {
			return nil, database.MapError("scan participant", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}
