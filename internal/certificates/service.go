// Package certificates issues proof-of-attendance certificates. Issuance is
// idempotent per registration: the artifact is rendered and stored before the
// record is created, and a second request returns the first certificate.
package certificates

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/metrics"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/sentinel"
)

const (
	// DefaultRenderTimeout bounds a single render call.
	DefaultRenderTimeout = 15 * time.Second
	// maxSerialAttempts bounds retries on a serial number collision.
	maxSerialAttempts = 3
	// folder is the storage prefix of certificate artifacts.
	folder = "certificates"
)

var serialEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// EventReader loads events.
type EventReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// RegistrationReader loads registrations.
type RegistrationReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
}

// AttendanceReader loads the attendance of a registration.
type AttendanceReader interface {
	GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*models.Attendance, error)
}

// Store persists certificates.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Certificate, error)
	GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*models.Certificate, error)
	GetBySerial(ctx context.Context, serial string) (*models.Certificate, error)
	// Create inserts cert unless the registration already has a certificate, in
	// which case the existing one is returned with created=false. A serial
	// number collision returns sentinel.ErrConflict.
	Create(ctx context.Context, cert *models.Certificate) (stored *models.Certificate, created bool, err error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Certificate, error)
}

// Renderer produces the certificate artifact.
type Renderer interface {
	Render(ctx context.Context, data RenderData) ([]byte, error)
	ContentType() string
	Extension() string
}

// ArtifactStore keeps rendered artifacts.
type ArtifactStore interface {
	Save(ctx context.Context, key string, body []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// RenderData is what a certificate shows.
type RenderData struct {
	SerialNumber    string
	ParticipantName string
	EventTitle      string
	EventDate       models.Date
	Location        string
	Organizer       string
	IssuedAt        time.Time
}

// StatusView answers whether a certificate exists or can be requested.
type StatusView struct {
	Eligible    bool                `json:"eligible"`
	Certificate *models.Certificate `json:"certificate,omitempty"`
}

// Service issues and serves certificates.
type Service struct {
	events        EventReader
	registrations RegistrationReader
	attendances   AttendanceReader
	store         Store
	renderer      Renderer
	artifacts     ArtifactStore
	renderTimeout time.Duration
	metrics       *metrics.Metrics
	logger        *zap.Logger
	now           func() time.Time
	newSerial     func(time.Time) (string, error)
}

type Option func(s *Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithRenderTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.renderTimeout = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSerialSource replaces NewSerial, for tests.
func WithSerialSource(fn func(time.Time) (string, error)) Option {
	return func(s *Service) { s.newSerial = fn }
}

// NewService constructs a Service.
func NewService(events EventReader, registrations RegistrationReader, attendances AttendanceReader, store Store, renderer Renderer, artifacts ArtifactStore, opts ...Option) *Service {
	s := &Service{
		events:        events,
		registrations: registrations,
		attendances:   attendances,
		store:         store,
		renderer:      renderer,
		artifacts:     artifacts,
		renderTimeout: DefaultRenderTimeout,
		logger:        zap.NewNop(),
		now:           time.Now,
		newSerial:     NewSerial,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// NewSerial returns CERT-<year>-<8 random base32 characters>.
func NewSerial(at time.Time) (string, error) {
	var b [5]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate serial: %w", err)
	}
	return fmt.Sprintf("CERT-%04d-%s", at.Year(), serialEncoding.EncodeToString(b[:])), nil
}

// ArtifactKey returns the storage key of a certificate artifact. Keys are per
// certificate id, so an attempt rejected by the store never touches the file
// of a certificate that shares its serial number.
func ArtifactKey(issuedAt time.Time, certificateID uuid.UUID, ext string) string {
	return path.Join(folder, fmt.Sprintf("%04d", issuedAt.Year()), certificateID.String()+ext)
}

// Issue returns the certificate for the actor's registration, creating it on
// first call. The boolean reports whether this call created it.
func (s *Service) Issue(ctx context.Context, registrationID uuid.UUID, actor models.Actor) (*models.Certificate, bool, error) {
	log := s.logger.With(zap.String("registration_id", registrationID.String()), zap.String("actor_id", actor.UserID.String()))

	reg, err := s.owned(ctx, registrationID, actor, log)
	if err != nil {
		return nil, false, err
	}

	att, err := s.attendances.GetByRegistration(ctx, reg.ID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		log.Error("load attendance", zap.Error(err))
		return nil, false, apperr.Wrap(apperr.KindStorageUnavailable, "load attendance", err)
	}
	if !att.IsPresent() {
		return nil, false, apperr.New(apperr.KindNotAttended, "attendance is required before a certificate can be issued")
	}

	existing, err := s.store.GetByRegistration(ctx, reg.ID)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, sentinel.ErrNotFound):
		log.Error("load certificate", zap.Error(err))
		return nil, false, apperr.Wrap(apperr.KindStorageUnavailable, "load certificate", err)
	}

	ev, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		log.Error("load event", zap.String("event_id", reg.EventID.String()), zap.Error(err))
		return nil, false, apperr.Wrap(apperr.KindStorageUnavailable, "load event", err)
	}

	for attempt := 1; ; attempt++ {
		cert, created, err := s.issueOnce(ctx, reg, ev, actor, log)
		if err == nil {
			if created {
				s.metrics.IncCertificateIssued()
				log.Info("certificate issued", zap.String("serial_number", cert.SerialNumber))
			}
			return cert, created, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) || attempt >= maxSerialAttempts {
			if _, ok := apperr.As(err); ok {
				return nil, false, err
			}
			log.Error("create certificate", zap.Int("attempt", attempt), zap.Error(err))
			return nil, false, apperr.Wrap(apperr.KindStorageUnavailable, "create certificate", err)
		}
		log.Warn("certificate serial collision, retrying", zap.Int("attempt", attempt))
	}
}

func (s *Service) issueOnce(ctx context.Context, reg *models.Registration, ev *models.Event, actor models.Actor, log *zap.Logger) (*models.Certificate, bool, error) {
	now := s.now()
	serial, err := s.newSerial(now)
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindInternal, "generate serial", err)
	}

	renderCtx, cancel := context.WithTimeout(ctx, s.renderTimeout)
	start := time.Now()
	body, err := s.renderer.Render(renderCtx, RenderData{
		SerialNumber:    serial,
		ParticipantName: actor.Name,
		EventTitle:      ev.Title,
		EventDate:       ev.EventDate,
		Location:        ev.Location,
		Organizer:       ev.Organizer,
		IssuedAt:        now,
	})
	cancel()
	s.metrics.ObserveRender(start)
	if err != nil {
		log.Error("render certificate", zap.Error(err))
		return nil, false, apperr.Wrap(apperr.KindRenderFailed, "render certificate", err)
	}

	id := uuid.New()
	key := ArtifactKey(now, id, s.renderer.Extension())
	if err := s.artifacts.Save(ctx, key, body, s.renderer.ContentType()); err != nil {
		log.Error("store certificate artifact", zap.String("key", key), zap.Error(err))
		return nil, false, apperr.Wrap(apperr.KindStorageUnavailable, "store certificate artifact", err)
	}

	issuedAt := now
	stored, created, err := s.store.Create(ctx, &models.Certificate{
		ID:             id,
		EventID:        reg.EventID,
		UserID:         reg.UserID,
		RegistrationID: reg.ID,
		SerialNumber:   serial,
		Status:         models.CertificateIssued,
		IssuedAt:       &issuedAt,
		ArtifactPath:   key,
		CreatedAt:      now,
	})
	if err != nil || !created {
		// No certificate row references key.
		if derr := s.artifacts.Delete(context.WithoutCancel(ctx), key); derr != nil {
			log.Warn("remove unused certificate artifact", zap.String("key", key), zap.Error(derr))
		}
	}
	return stored, created, err
}

// Status reports the certificate of a registration, or whether one may be requested.
func (s *Service) Status(ctx context.Context, registrationID uuid.UUID, actor models.Actor) (*StatusView, error) {
	log := s.logger.With(zap.String("registration_id", registrationID.String()), zap.String("actor_id", actor.UserID.String()))
	reg, err := s.owned(ctx, registrationID, actor, log)
	if err != nil {
		return nil, err
	}
	cert, err := s.store.GetByRegistration(ctx, reg.ID)
	if err == nil {
		return &StatusView{Eligible: true, Certificate: cert}, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		log.Error("load certificate", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "load certificate", err)
	}
	att, err := s.attendances.GetByRegistration(ctx, reg.ID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		log.Error("load attendance", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "load attendance", err)
	}
	return &StatusView{Eligible: att.IsPresent()}, nil
}

// ListMine returns the actor's certificates.
func (s *Service) ListMine(ctx context.Context, actor models.Actor) ([]*models.Certificate, error) {
	list, err := s.store.ListByUser(ctx, actor.UserID)
	if err != nil {
		s.logger.Error("list certificates", zap.String("actor_id", actor.UserID.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "list certificates", err)
	}
	if list == nil {
		list = []*models.Certificate{}
	}
	return list, nil
}

// Verification is the public answer for a serial number lookup.
type Verification struct {
	SerialNumber string      `json:"serial_number"`
	EventTitle   string      `json:"event_title"`
	EventDate    models.Date `json:"event_date"`
	IssuedAt     *time.Time  `json:"issued_at,omitempty"`
}

// Verify looks up an issued certificate by serial number.
func (s *Service) Verify(ctx context.Context, serial string) (*Verification, error) {
	cert, err := s.store.GetBySerial(ctx, serial)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "certificate not found")
		}
		s.logger.Error("load certificate by serial", zap.String("serial_number", serial), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "load certificate", err)
	}
	if cert.Status != models.CertificateIssued {
		return nil, apperr.New(apperr.KindNotFound, "certificate not found")
	}
	ev, err := s.events.GetByID(ctx, cert.EventID)
	if err != nil {
		s.logger.Error("load event", zap.String("event_id", cert.EventID.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "load event", err)
	}
	return &Verification{
		SerialNumber: cert.SerialNumber,
		EventTitle:   ev.Title,
		EventDate:    ev.EventDate,
		IssuedAt:     cert.IssuedAt,
	}, nil
}

// Artifact is an open certificate file. Callers must close Body.
type Artifact struct {
	Certificate *models.Certificate
	Body        io.ReadCloser
	ContentType string
	FileName    string
}

// Open returns the stored artifact of a certificate owned by actor (admins may
// open any certificate).
func (s *Service) Open(ctx context.Context, certificateID uuid.UUID, actor models.Actor) (*Artifact, error) {
	log := s.logger.With(zap.String("certificate_id", certificateID.String()), zap.String("actor_id", actor.UserID.String()))
	cert, err := s.store.GetByID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "certificate not found")
		}
		log.Error("load certificate", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "load certificate", err)
	}
	if cert.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, apperr.New(apperr.KindNotFound, "certificate not found")
	}
	if cert.Status != models.CertificateIssued || cert.ArtifactPath == "" {
		return nil, apperr.New(apperr.KindNotFound, "certificate file not found")
	}
	ok, err := s.artifacts.Exists(ctx, cert.ArtifactPath)
	if err != nil {
		log.Error("stat certificate artifact", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "stat certificate artifact", err)
	}
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "certificate file not found")
	}
	body, err := s.artifacts.Open(ctx, cert.ArtifactPath)
	if err != nil {
		log.Error("open certificate artifact", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "open certificate artifact", err)
	}
	return &Artifact{
		Certificate: cert,
		Body:        body,
		ContentType: s.renderer.ContentType(),
		FileName:    cert.SerialNumber + path.Ext(cert.ArtifactPath),
	}, nil
}

func (s *Service) owned(ctx context.Context, id uuid.UUID, actor models.Actor, log *zap.Logger) (*models.Registration, error) {
	reg, err := s.registrations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "registration not found")
		}
		log.Error("load registration", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "load registration", err)
	}
	if !reg.OwnedBy(actor.UserID) {
		return nil, apperr.New(apperr.KindNotFound, "registration not found")
	}
	return reg, nil
}
