package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eduevent/backend/internal/events"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/registrations"
	"github.com/eduevent/backend/pkg/database"
)

// Repository loads history records with one join query.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates a history repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByUser returns the user's registrations, newest first, with event,
// attendance, certificate and payment attached.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Record, error) {
	q := `SELECT ` + registrations.Columns + `, ` + events.Columns + `,
			a.id, a.status, a.checked_in_at,
			c.id, c.serial_number, c.status, c.issued_at,
			p.id, p.order_id, p.amount, p.status, p.paid_at
		FROM registrations r
		JOIN events e ON e.id = r.event_id
		LEFT JOIN attendances a ON a.registration_id = r.id
		LEFT JOIN certificates c ON c.registration_id = r.id
		LEFT JOIN payments p ON p.registration_id = r.id
		WHERE r.user_id = $1
		ORDER BY r.registered_at DESC`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, database.MapError("list history", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec                  Record
			attID, certID, payID pgtype.UUID
			attStatus            pgtype.Text
			checkedIn            pgtype.Timestamptz
			serial, certStatus   pgtype.Text
			issuedAt, paidAt     pgtype.Timestamptz
			orderID, payStatus   pgtype.Text
			amount               pgtype.Int8
		)
		evDest, finish := events.Dest(&rec.Event)
		dest := append(registrations.Dest(&rec.Registration), evDest...)
		dest = append(dest,
			&attID, &attStatus, &checkedIn,
			&certID, &serial, &certStatus, &issuedAt,
			&payID, &orderID, &amount, &payStatus, &paidAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, database.MapError("scan history", err)
		}
		finish()

		reg := &rec.Registration
		if attID.Valid {
			rec.Attendance = &models.Attendance{
				ID:             attID.Bytes,
				EventID:        reg.EventID,
				UserID:         reg.UserID,
				RegistrationID: reg.ID,
				Status:         models.AttendanceStatus(attStatus.String),
				CheckedInAt:    checkedIn.Time,
			}
		}
		if certID.Valid {
			rec.Certificate = &models.Certificate{
				ID:             certID.Bytes,
				EventID:        reg.EventID,
				UserID:         reg.UserID,
				RegistrationID: reg.ID,
				SerialNumber:   serial.String,
				Status:         models.CertificateStatus(certStatus.String),
				IssuedAt:       timePtr(issuedAt),
			}
		}
		if payID.Valid {
			rec.Payment = &models.Payment{
				ID:             payID.Bytes,
				EventID:        reg.EventID,
				UserID:         reg.UserID,
				RegistrationID: reg.ID,
				OrderID:        orderID.String,
				Amount:         amount.Int64,
				Status:         models.PaymentStatus(payStatus.String),
				PaidAt:         timePtr(paidAt),
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
