package certificates

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/database"
)

// Columns is the certificate select list, aliased as c.
const Columns = `c.id, c.event_id, c.user_id, c.registration_id, c.serial_number, c.status, c.issued_at, c.artifact_path, c.created_at`

// Dest returns scan destinations for Columns.
func Dest(c *models.Certificate) []any {
	return []any{&c.ID, &c.EventID, &c.UserID, &c.RegistrationID, &c.SerialNumber, &c.Status, &c.IssuedAt, &c.ArtifactPath, &c.CreatedAt}
}

// Repository handles certificate persistence.
type Repository struct {
	pool *pgxpool.Pool
}

var _ Store = (*Repository)(nil)

// NewRepository creates a certificates repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) get(ctx context.Context, where string, arg any) (*models.Certificate, error) {
	var c models.Certificate
	if err := r.pool.QueryRow(ctx, `SELECT `+Columns+` FROM certificates c WHERE `+where, arg).Scan(Dest(&c)...); err != nil {
		return nil, database.MapError("get certificate", err)
	}
	return &c, nil
}

// GetByID returns a certificate by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error) {
	return r.get(ctx, "c.id = $1", id)
}

// GetByRegistration returns the certificate of a registration.
func (r *Repository) GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*models.Certificate, error) {
	return r.get(ctx, "c.registration_id = $1", registrationID)
}

// GetBySerial returns a certificate by serial number, for public verification.
func (r *Repository) GetBySerial(ctx context.Context, serial string) (*models.Certificate, error) {
	return r.get(ctx, "c.serial_number = $1", serial)
}

// Create inserts cert unless the registration already has one. A concurrent
// issuer that lost the race gets the winner's row.
func (r *Repository) Create(ctx context.Context, cert *models.Certificate) (*models.Certificate, bool, error) {
	const q = `INSERT INTO certificates AS c (id, event_id, user_id, registration_id, serial_number, status, issued_at, artifact_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (registration_id) DO NOTHING
		RETURNING ` + Columns
	var stored models.Certificate
	err := r.pool.QueryRow(ctx, q, cert.ID, cert.EventID, cert.UserID, cert.RegistrationID, cert.SerialNumber,
		cert.Status, cert.IssuedAt, cert.ArtifactPath, cert.CreatedAt).Scan(Dest(&stored)...)
	switch {
	case err == nil:
		return &stored, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		existing, err := r.GetByRegistration(ctx, cert.RegistrationID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return nil, false, database.MapError("insert certificate", err)
}

// ListByUser returns the user's certificates, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Certificate, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+Columns+` FROM certificates c WHERE c.user_id = $1 ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, database.MapError("list certificates", err)
	}
	defer rows.Close()

	var list []*models.Certificate
	for rows.Next() {
		var c models.Certificate
		if err := rows.Scan(Dest(&c)...); err != nil {
			return nil, database.MapError("scan certificate", err)
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}
