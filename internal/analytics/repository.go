package analytics

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/database"
)

// Repository runs the dashboard queries against Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates an analytics repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EventCounts returns all, published and created-in-year event counts.
func (r *Repository) EventCounts(ctx context.Context, year int) (total, published, thisYear int, err error) {
	const q = `SELECT COUNT(*),
			COUNT(*) FILTER (WHERE is_published),
			COUNT(*) FILTER (WHERE EXTRACT(YEAR FROM created_at) = $1)
		FROM events`
	err = r.pool.QueryRow(ctx, q, year).Scan(&total, &published, &thisYear)
	return total, published, thisYear, database.MapError("count events", err)
}

// RegistrationCounts returns non-cancelled registrations overall and in year.
func (r *Repository) RegistrationCounts(ctx context.Context, year int) (active, thisYear int, err error) {
	const q = `SELECT COUNT(*),
			COUNT(*) FILTER (WHERE EXTRACT(YEAR FROM registered_at) = $1)
		FROM registrations WHERE status <> 'cancelled'`
	err = r.pool.QueryRow(ctx, q, year).Scan(&active, &thisYear)
	return active, thisYear, database.MapError("count registrations", err)
}

// AttendanceCounts returns all attendance rows and distinct present users.
func (r *Repository) AttendanceCounts(ctx context.Context) (attendances, attendees int, err error) {
	const q = `SELECT COUNT(*), COUNT(DISTINCT user_id) FILTER (WHERE status = 'present') FROM attendances`
	err = r.pool.QueryRow(ctx, q).Scan(&attendances, &attendees)
	return attendances, attendees, database.MapError("count attendances", err)
}

// PaidRevenue sums settled payments.
func (r *Repository) PaidRevenue(ctx context.Context) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = 'paid'`).Scan(&total)
	return total, database.MapError("sum revenue", err)
}

// MonthlyEvents counts events created in each month of year.
func (r *Repository) MonthlyEvents(ctx context.Context, year int) ([12]int, error) {
	const q = `SELECT EXTRACT(MONTH FROM created_at)::int, COUNT(*)
		FROM events WHERE EXTRACT(YEAR FROM created_at) = $1
		GROUP BY 1`
	return r.monthly(ctx, "monthly events", q, year)
}

// MonthlyAttendees counts present check-ins in each month of year.
func (r *Repository) MonthlyAttendees(ctx context.Context, year int) ([12]int, error) {
	const q = `SELECT EXTRACT(MONTH FROM checked_in_at)::int, COUNT(*)
		FROM attendances WHERE status = 'present' AND EXTRACT(YEAR FROM checked_in_at) = $1
		GROUP BY 1`
	return r.monthly(ctx, "monthly attendees", q, year)
}

func (r *Repository) monthly(ctx context.Context, op, q string, year int) ([12]int, error) {
	var out [12]int
	rows, err := r.pool.Query(ctx, q, year)
	if err != nil {
		return out, database.MapError(op, err)
	}
	defer rows.Close()
	for rows.Next() {
		var month, count int
		if err := rows.Scan(&month, &count); err != nil {
			return out, database.MapError(op, err)
		}
		if month >= 1 && month <= 12 {
			out[month-1] = count
		}
	}
	return out, rows.Err()
}

// TopEvents ranks events by non-cancelled registrations.
func (r *Repository) TopEvents(ctx context.Context, limit int) ([]TopEvent, error) {
	const q = `SELECT e.id, e.title, e.event_date, e.category,
			(SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id AND r.status <> 'cancelled') AS registrations_count
		FROM events e
		ORDER BY registrations_count DESC, e.event_date DESC
		LIMIT $1`
	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, database.MapError("top events", err)
	}
	defer rows.Close()
	var list []TopEvent
	for rows.Next() {
		var (
			te   TopEvent
			date pgtype.Date
		)
		if err := rows.Scan(&te.ID, &te.Title, &date, &te.Category, &te.RegisteredCount); err != nil {
			return nil, database.MapError("scan top event", err)
		}
		if date.Valid {
			te.EventDate = models.NewDate(date.Time)
		}
		list = append(list, te)
	}
	return list, rows.Err()
}
