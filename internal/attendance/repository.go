package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/database"
	"github.com/eduevent/backend/pkg/sentinel"
)

const columns = `id, event_id, user_id, registration_id, status, checked_in_at, token_entered, notes, created_at`

func scan(row pgx.Row) (*models.Attendance, error) {
	var a models.Attendance
	err := row.Scan(&a.ID, &a.EventID, &a.UserID, &a.RegistrationID, &a.Status, &a.CheckedInAt, &a.TokenEntered, &a.Notes, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Repository handles attendance persistence.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates an attendance repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByRegistration returns the attendance of a registration.
func (r *Repository) GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*models.Attendance, error) {
	a, err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM attendances WHERE registration_id = $1`, registrationID))
	if err != nil {
		return nil, database.MapError("get attendance", err)
	}
	return a, nil
}

// Record locks the registration, inserts the attendance and completes the
// registration in one transaction.
func (r *Repository) Record(ctx context.Context, att *models.Attendance) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var status models.RegistrationStatus
		err := tx.QueryRow(ctx, `SELECT status FROM registrations WHERE id = $1 FOR UPDATE`, att.RegistrationID).Scan(&status)
		if err != nil {
			return database.MapError("lock registration", err)
		}
		if status == models.RegistrationCompleted {
			return sentinel.ErrConflict
		}
		if status != models.RegistrationConfirmed {
			return sentinel.ErrInvalidState
		}

		const q = `INSERT INTO attendances (id, event_id, user_id, registration_id, status, checked_in_at, token_entered, notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
		if _, err := tx.Exec(ctx, q, att.ID, att.EventID, att.UserID, att.RegistrationID, att.Status,
			att.CheckedInAt, att.TokenEntered, att.Notes, att.CreatedAt); err != nil {
			err = database.MapError("insert attendance", err)
			if errors.Is(err, sentinel.ErrConflict) {
				return sentinel.ErrConflict
			}
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE registrations SET status = 'completed', updated_at = $2 WHERE id = $1`,
			att.RegistrationID, att.CheckedInAt)
		return database.MapError("complete registration", err)
	})
}

// CheckIn is one row of an event's attendance list.
type CheckIn struct {
	AttendanceID   uuid.UUID `json:"attendance_id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	UserID         uuid.UUID `json:"user_id"`
	FullName       string    `json:"full_name"`
	Email          string    `json:"email"`
	CheckedInAt    time.Time `json:"checked_in_at"`
}

// ListByEvent returns an event's check-ins, latest first.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]CheckIn, error) {
	const q = `SELECT a.id, a.registration_id, a.user_id, u.full_name, u.email, a.checked_in_at
		FROM attendances a JOIN users u ON u.id = a.user_id
		WHERE a.event_id = $1
		ORDER BY a.checked_in_at DESC`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, database.MapError("list attendances", err)
	}
	defer rows.Close()

	var list []CheckIn
	for rows.Next() {
		var c CheckIn
		if err := rows.Scan(&c.AttendanceID, &c.RegistrationID, &c.UserID, &c.FullName, &c.Email, &c.CheckedInAt); err != nil {
			return nil, database.MapError("scan attendance", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
