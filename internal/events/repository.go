package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/database"
	"github.com/eduevent/backend/pkg/sentinel"
)

// Columns selects an event aliased as e, with its non-cancelled registration count.
const Columns = `e.id, e.title, e.description, e.event_date, e.start_time, e.end_time, e.location,
	e.category, e.organizer, e.is_published, e.price, e.max_participants, e.flyer_path, e.created_by,
	(SELECT COUNT(*) FROM registrations rc WHERE rc.event_id = e.id AND rc.status <> 'cancelled'),
	e.created_at, e.updated_at`

// Scan reads a row selected with Columns.
func Scan(row pgx.Row) (*models.Event, error) {
	var ev models.Event
	dest, finish := Dest(&ev)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	finish()
	return &ev, nil
}

// Dest returns scan destinations for Columns, for queries that join other
// tables. Call finish after a successful Scan to populate ev.
func Dest(ev *models.Event) (dest []any, finish func()) {
	var (
		date       pgtype.Date
		start, end pgtype.Time
		maxP       pgtype.Int4
		count      int64
	)
	dest = []any{&ev.ID, &ev.Title, &ev.Description, &date, &start, &end, &ev.Location,
		&ev.Category, &ev.Organizer, &ev.IsPublished, &ev.Price, &maxP, &ev.FlyerPath, &ev.CreatedBy,
		&count, &ev.CreatedAt, &ev.UpdatedAt}
	finish = func() {
		ev.EventDate = models.Date{}
		if date.Valid {
			ev.EventDate = models.NewDate(date.Time)
		}
		ev.StartTime = timeOfDay(start)
		ev.EndTime = timeOfDay(end)
		ev.MaxParticipants = nil
		if maxP.Valid {
			n := int(maxP.Int32)
			ev.MaxParticipants = &n
		}
		ev.RegisteredCount = int(count)
	}
	return dest, finish
}

func timeOfDay(t pgtype.Time) *models.TimeOfDay {
	if !t.Valid {
		return nil
	}
	tod := models.TimeOfDayFromDuration(time.Duration(t.Microseconds) * time.Microsecond)
	return &tod
}

// DateParam encodes a calendar date for a DATE column.
func DateParam(d models.Date) pgtype.Date {
	if d.IsZero() {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Midnight(time.UTC), Valid: true}
}

// TimeParam encodes an optional time of day for a TIME column.
func TimeParam(t *models.TimeOfDay) pgtype.Time {
	if t == nil {
		return pgtype.Time{}
	}
	return pgtype.Time{Microseconds: t.Duration().Microseconds(), Valid: true}
}

func intParam(n *int) pgtype.Int4 {
	if n == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(*n), Valid: true}
}

// Sort orders of the public catalogue.
const (
	SortSoonest = "soonest"
	SortNewest  = "newest"
	SortOldest  = "oldest"
)

const maxPerPage = 100

// ListFilter selects events for the catalogue and the admin list.
type ListFilter struct {
	Query         string
	Category      models.EventCategory
	Sort          string
	Page          int
	PerPage       int
	PublishedOnly bool
}

func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = 12
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}
}

func (f ListFilter) orderBy() string {
	switch f.Sort {
	case SortNewest:
		return "e.created_at DESC"
	case SortOldest:
		return "e.created_at ASC"
	default:
		return "e.event_date ASC, e.start_time ASC NULLS FIRST, e.created_at DESC"
	}
}

// Repository handles event persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	ev, err := Scan(r.pool.QueryRow(ctx, `SELECT `+Columns+` FROM events e WHERE e.id = $1`, id))
	if err != nil {
		return nil, database.MapError("get event", err)
	}
	return ev, nil
}

// List returns one page of events and the total number matching f.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]models.Event, int, error) {
	f.normalize()
	var (
		conds []string
		args  []any
	)
	if f.PublishedOnly {
		conds = append(conds, "e.is_published")
	}
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("e.category = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(e.title ILIKE $%d OR e.description ILIKE $%d OR e.location ILIKE $%d)", n, n, n))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events e`+where, args...).Scan(&total); err != nil {
		return nil, 0, database.MapError("count events", err)
	}

	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)
	q := fmt.Sprintf(`SELECT %s FROM events e%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		Columns, where, f.orderBy(), len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, database.MapError("list events", err)
	}
	defer rows.Close()

	list := make([]models.Event, 0, f.PerPage)
	for rows.Next() {
		ev, err := Scan(rows)
		if err != nil {
			return nil, 0, database.MapError("scan event", err)
		}
		list = append(list, *ev)
	}
	return list, total, rows.Err()
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, ev *models.Event) error {
	const q = `INSERT INTO events (id, title, description, event_date, start_time, end_time, location,
			category, organizer, is_published, price, max_participants, flyer_path, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, q, ev.ID, ev.Title, ev.Description, DateParam(ev.EventDate),
		TimeParam(ev.StartTime), TimeParam(ev.EndTime), ev.Location, ev.Category, ev.Organizer,
		ev.IsPublished, ev.Price, intParam(ev.MaxParticipants), ev.FlyerPath, ev.CreatedBy).
		Scan(&ev.CreatedAt, &ev.UpdatedAt)
	return database.MapError("create event", err)
}

// Update overwrites the editable fields of an event.
func (r *Repository) Update(ctx context.Context, ev *models.Event) error {
	const q = `UPDATE events SET title = $2, description = $3, event_date = $4, start_time = $5,
			end_time = $6, location = $7, category = $8, organizer = $9, is_published = $10,
			price = $11, max_participants = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, q, ev.ID, ev.Title, ev.Description, DateParam(ev.EventDate),
		TimeParam(ev.StartTime), TimeParam(ev.EndTime), ev.Location, ev.Category, ev.Organizer,
		ev.IsPublished, ev.Price, intParam(ev.MaxParticipants)).Scan(&ev.UpdatedAt)
	return database.MapError("update event", err)
}

// SetPublished sets is_published.
func (r *Repository) SetPublished(ctx context.Context, id uuid.UUID, published bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE events SET is_published = $2, updated_at = NOW() WHERE id = $1`, id, published)
	if err != nil {
		return database.MapError("publish event", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// SetFlyer stores the flyer object key.
func (r *Repository) SetFlyer(ctx context.Context, id uuid.UUID, key string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE events SET flyer_path = $2, updated_at = NOW() WHERE id = $1`, id, key)
	if err != nil {
		return database.MapError("set flyer", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Delete removes an event with its registrations.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return database.MapError("delete event", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
