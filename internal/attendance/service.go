// Package attendance records token-gated check-ins within an event's window.
package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/metrics"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/timewindow"
	"github.com/eduevent/backend/internal/token"
	"github.com/eduevent/backend/pkg/sentinel"
)

// publishTimeout bounds the live-feed notification after a check-in.
const publishTimeout = 3 * time.Second

// EventReader loads events.
type EventReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// RegistrationReader loads registrations.
type RegistrationReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	// GetLatestByEventAndUser prefers the non-cancelled registration and falls
	// back to the most recent cancelled one.
	GetLatestByEventAndUser(ctx context.Context, eventID, userID uuid.UUID) (*models.Registration, error)
}

// Store persists attendances.
type Store interface {
	GetByRegistration(ctx context.Context, registrationID uuid.UUID) (*models.Attendance, error)
	// Record inserts the attendance and moves the registration from confirmed to
	// completed in one transaction. It returns sentinel.ErrConflict when the
	// registration already has an attendance and sentinel.ErrInvalidState when
	// the registration is no longer confirmed.
	Record(ctx context.Context, att *models.Attendance) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]CheckIn, error)
}

// Publisher pushes check-ins to live dashboards.
type Publisher interface {
	PublishCheckIn(ctx context.Context, eventID uuid.UUID, payload CheckInNotice) error
}

// CheckInNotice is broadcast on every successful check-in.
type CheckInNotice struct {
	AttendanceID   uuid.UUID `json:"attendance_id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	UserID         uuid.UUID `json:"user_id"`
	Name           string    `json:"name,omitempty"`
	CheckedInAt    time.Time `json:"checked_in_at"`
}

// StatusView answers "can I check in right now?" for one registration.
type StatusView struct {
	Registered         bool                      `json:"registered"`
	RegistrationID     *uuid.UUID                `json:"registration_id,omitempty"`
	RegistrationStatus models.RegistrationStatus `json:"registration_status,omitempty"`
	CanCheckIn         bool                      `json:"can_attend"`
	HasAttended        bool                      `json:"has_attended"`
	WindowOpen         bool                      `json:"active"`
	WindowPassed       bool                      `json:"is_event_passed"`
	Phase              timewindow.Phase          `json:"phase"`
	OpensAt            time.Time                 `json:"opens_at"`
	ClosesAt           time.Time                 `json:"closes_at"`
	Attendance         *models.Attendance        `json:"attendance,omitempty"`
}

// Service implements check-in and its status query.
type Service struct {
	events        EventReader
	registrations RegistrationReader
	store         Store
	publisher     Publisher
	policy        timewindow.Policy
	metrics       *metrics.Metrics
	logger        *zap.Logger
	now           func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithPolicy(p timewindow.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a Service.
func NewService(events EventReader, registrations RegistrationReader, store Store, opts ...Option) *Service {
	s := &Service{
		events:        events,
		registrations: registrations,
		store:         store,
		policy:        timewindow.DefaultPolicy(time.UTC),
		logger:        zap.NewNop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// CheckIn records the actor's attendance for a registration. Preconditions are
// checked in order: ownership and confirmation, no prior check-in, token, window.
func (s *Service) CheckIn(ctx context.Context, registrationID uuid.UUID, actor models.Actor, submitted string) (*models.Attendance, error) {
	att, err := s.checkIn(ctx, registrationID, actor, submitted)
	if err != nil {
		s.metrics.IncCheckIn(string(apperr.KindOf(err)))
		return nil, err
	}
	s.metrics.IncCheckIn("ok")
	s.publish(ctx, att, actor)
	return att, nil
}

// CheckInForEvent resolves the actor's registration for eventID and checks in.
func (s *Service) CheckInForEvent(ctx context.Context, eventID uuid.UUID, actor models.Actor, submitted string) (*models.Attendance, error) {
	reg, err := s.registrations.GetLatestByEventAndUser(ctx, eventID, actor.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncCheckIn(string(apperr.KindNotConfirmed))
			return nil, apperr.New(apperr.KindNotConfirmed, "no confirmed registration for this event")
		}
		return nil, s.storageErr("load registration", err, zap.String("event_id", eventID.String()), zap.String("actor_id", actor.UserID.String()))
	}
	return s.CheckIn(ctx, reg.ID, actor, submitted)
}

func (s *Service) checkIn(ctx context.Context, registrationID uuid.UUID, actor models.Actor, submitted string) (*models.Attendance, error) {
	fields := []zap.Field{zap.String("registration_id", registrationID.String()), zap.String("actor_id", actor.UserID.String())}

	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotConfirmed, "registration not found or not confirmed")
		}
		return nil, s.storageErr("load registration", err, fields...)
	}
	if !reg.OwnedBy(actor.UserID) {
		return nil, apperr.New(apperr.KindNotConfirmed, "registration not found or not confirmed")
	}

	switch reg.Status {
	case models.RegistrationConfirmed:
	case models.RegistrationCompleted:
		return nil, apperr.New(apperr.KindAlreadyCheckedIn, "already checked in")
	default:
		return nil, apperr.New(apperr.KindNotConfirmed, "registration not found or not confirmed")
	}
	existing, err := s.store.GetByRegistration(ctx, reg.ID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.storageErr("load attendance", err, fields...)
	}
	if existing != nil {
		return nil, apperr.New(apperr.KindAlreadyCheckedIn, "already checked in")
	}

	if !token.Equal(submitted, reg.AttendanceToken) {
		return nil, apperr.New(apperr.KindInvalidToken, "invalid attendance token")
	}

	ev, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, s.storageErr("load event", err, append(fields, zap.String("event_id", reg.EventID.String()))...)
	}
	now := s.now()
	w := s.policy.For(ev)
	switch w.Phase(now) {
	case timewindow.PhaseNotOpen:
		return nil, apperr.WithReason(apperr.KindWindowClosed, string(timewindow.PhaseNotOpen), "check-in has not opened yet")
	case timewindow.PhasePassed:
		return nil, apperr.WithReason(apperr.KindWindowClosed, string(timewindow.PhasePassed), "check-in has closed")
	}

	att := &models.Attendance{
		ID:             uuid.New(),
		EventID:        reg.EventID,
		UserID:         reg.UserID,
		RegistrationID: reg.ID,
		Status:         models.AttendancePresent,
		CheckedInAt:    now,
		TokenEntered:   submitted,
		CreatedAt:      now,
	}
	if err := s.store.Record(ctx, att); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, apperr.New(apperr.KindAlreadyCheckedIn, "already checked in")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, apperr.New(apperr.KindNotConfirmed, "registration not found or not confirmed")
		}
		return nil, s.storageErr("record attendance", err, fields...)
	}
	return att, nil
}

// Status reports check-in eligibility for a registration. A registration that
// is missing or owned by someone else yields a not-registered view, never an error.
func (s *Service) Status(ctx context.Context, registrationID uuid.UUID, actor models.Actor) (*StatusView, error) {
	reg, err := s.registrations.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &StatusView{}, nil
		}
		return nil, s.storageErr("load registration", err, zap.String("registration_id", registrationID.String()))
	}
	if !reg.OwnedBy(actor.UserID) {
		return &StatusView{}, nil
	}
	ev, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &StatusView{}, nil
		}
		return nil, s.storageErr("load event", err, zap.String("event_id", reg.EventID.String()))
	}
	return s.view(ctx, reg, ev)
}

// StatusForEvent is Status keyed by event. Without a registration the window
// is still reported so clients can show when check-in opens.
func (s *Service) StatusForEvent(ctx context.Context, eventID uuid.UUID, actor models.Actor) (*StatusView, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "event not found")
		}
		return nil, s.storageErr("load event", err, zap.String("event_id", eventID.String()))
	}
	reg, err := s.registrations.GetLatestByEventAndUser(ctx, eventID, actor.UserID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.storageErr("load registration", err, zap.String("event_id", eventID.String()))
		}
		now := s.now()
		w := s.policy.For(ev)
		return &StatusView{
			WindowOpen:   w.IsOpen(now),
			WindowPassed: w.IsPassed(now),
			Phase:        w.Phase(now),
			OpensAt:      w.OpensAt,
			ClosesAt:     w.ClosesAt,
		}, nil
	}
	return s.view(ctx, reg, ev)
}

func (s *Service) view(ctx context.Context, reg *models.Registration, ev *models.Event) (*StatusView, error) {
	att, err := s.store.GetByRegistration(ctx, reg.ID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.storageErr("load attendance", err, zap.String("registration_id", reg.ID.String()))
		}
		att = nil
	}

	now := s.now()
	w := s.policy.For(ev)
	regID := reg.ID
	v := &StatusView{
		Registered:         reg.IsActive(),
		RegistrationID:     &regID,
		RegistrationStatus: reg.Status,
		HasAttended:        att != nil,
		WindowOpen:         w.IsOpen(now),
		WindowPassed:       w.IsPassed(now),
		Phase:              w.Phase(now),
		OpensAt:            w.OpensAt,
		ClosesAt:           w.ClosesAt,
		Attendance:         att,
	}
	v.CanCheckIn = reg.Status == models.RegistrationConfirmed && att == nil && v.WindowOpen
	return v, nil
}

// ListForEvent returns an event's check-ins, latest first.
func (s *Service) ListForEvent(ctx context.Context, eventID uuid.UUID) ([]CheckIn, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "event not found")
		}
		return nil, s.storageErr("load event", err, zap.String("event_id", eventID.String()))
	}
	list, err := s.store.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, s.storageErr("list attendances", err, zap.String("event_id", eventID.String()))
	}
	if list == nil {
		list = []CheckIn{}
	}
	return list, nil
}

func (s *Service) publish(ctx context.Context, att *models.Attendance, actor models.Actor) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	notice := CheckInNotice{
		AttendanceID:   att.ID,
		RegistrationID: att.RegistrationID,
		UserID:         att.UserID,
		Name:           actor.Name,
		CheckedInAt:    att.CheckedInAt,
	}
	if err := s.publisher.PublishCheckIn(pubCtx, att.EventID, notice); err != nil {
		s.logger.Warn("publish check-in", zap.String("event_id", att.EventID.String()), zap.Error(err))
	}
}

func (s *Service) storageErr(op string, err error, fields ...zap.Field) error {
	s.logger.Error(op, append(fields, zap.Error(err))...)
	return apperr.Wrap(apperr.KindStorageUnavailable, op, err)
}
