package registrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/metrics"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/notify"
	"github.com/eduevent/backend/internal/timewindow"
	"github.com/eduevent/backend/internal/token"
	"github.com/eduevent/backend/pkg/qr"
	"github.com/eduevent/backend/pkg/queue"
	"github.com/eduevent/backend/pkg/sentinel"
)

// WarningTokenDelivery is reported when the registration succeeded but the
// attendance token email could not be sent.
const WarningTokenDelivery = "token_delivery_failed"

// DefaultNotifyTimeout bounds a single token delivery attempt.
const DefaultNotifyTimeout = 10 * time.Second

// Admission decides, under the event lock, whether a registration is accepted.
// It may adjust the registration and returns the payment to create with it.
type Admission func(ev *models.Event, active int) (*models.Payment, error)

// EventReader loads events.
type EventReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Store persists registrations.
type Store interface {
	// Create locks the event, counts its non-cancelled registrations, runs admit
	// and inserts the registration (and payment, if any) in one transaction.
	// It returns sentinel.ErrNotFound for a missing event and sentinel.ErrConflict
	// when the user already holds a non-cancelled registration for the event.
	Create(ctx context.Context, reg *models.Registration, admit Admission) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	// Cancel moves a non-cancelled registration to cancelled and voids its
	// pending payment. It returns sentinel.ErrConflict if it was already cancelled.
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkTokenSent(ctx context.Context, id uuid.UUID, at time.Time) error
	// ListByUser returns the user's registrations with their events, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]WithEvent, error)
}

// UserReader resolves registrants for admin-initiated resends.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Notifier delivers the attendance token.
type Notifier interface {
	SendToken(ctx context.Context, msg notify.TokenEmail) error
}

// JobQueue defers email delivery to the worker.
type JobQueue interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Result is the outcome of Register.
type Result struct {
	Registration   *models.Registration `json:"registration"`
	Payment        *models.Payment      `json:"payment,omitempty"`
	TokenDelivered bool                 `json:"token_delivered"`
	Warning        string               `json:"warning,omitempty"`
}

// Service implements the registration ledger.
type Service struct {
	events        EventReader
	store         Store
	notifier      Notifier
	jobs          JobQueue
	users         UserReader
	policy        timewindow.Policy
	notifyTimeout time.Duration
	metrics       *metrics.Metrics
	logger        *zap.Logger
	now           func() time.Time
	newToken      func() (string, error)
}

type Option func(s *Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithJobQueue(q JobQueue) Option {
	return func(s *Service) { s.jobs = q }
}

func WithUsers(u UserReader) Option {
	return func(s *Service) { s.users = u }
}

func WithPolicy(p timewindow.Policy) Option {
	return func(s *Service) { s.policy = p }
}

func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTokenSource replaces token.Generate, for tests.
func WithTokenSource(fn func() (string, error)) Option {
	return func(s *Service) { s.newToken = fn }
}

// NewService constructs a Service.
func NewService(events EventReader, store Store, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		events:        events,
		store:         store,
		notifier:      notifier,
		policy:        timewindow.DefaultPolicy(time.UTC),
		notifyTimeout: DefaultNotifyTimeout,
		logger:        zap.NewNop(),
		now:           time.Now,
		newToken:      token.Generate,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Register creates a registration for actor on eventID. Token delivery is best
// effort: a failed send is reported as a warning and never undoes the registration.
func (s *Service) Register(ctx context.Context, eventID uuid.UUID, actor models.Actor, additionalInfo string) (*Result, error) {
	log := s.logger.With(zap.String("event_id", eventID.String()), zap.String("actor_id", actor.UserID.String()))

	tok, err := s.newToken()
	if err != nil {
		log.Error("generate attendance token", zap.Error(err))
		return nil, apperr.Wrap(apperr.KindInternal, "generate attendance token", err)
	}

	now := s.now()
	reg := &models.Registration{
		ID:              uuid.New(),
		EventID:         eventID,
		UserID:          actor.UserID,
		AttendanceToken: tok,
		AdditionalInfo:  additionalInfo,
		RegisteredAt:    now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var (
		ev      *models.Event
		payment *models.Payment
	)
	admit := func(locked *models.Event, active int) (*models.Payment, error) {
		ev = locked
		if !locked.CanRegister(active) {
			return nil, apperr.New(apperr.KindEventNotRegistrable, "event is not open for registration")
		}
		if locked.IsFree() {
			reg.Status = models.RegistrationConfirmed
			reg.ConfirmedAt = &now
			payment = nil
			return nil, nil
		}
		reg.Status = models.RegistrationPending
		payment = &models.Payment{
			ID:             uuid.New(),
			EventID:        locked.ID,
			UserID:         actor.UserID,
			RegistrationID: reg.ID,
			OrderID:        orderID(reg.ID, now),
			Amount:         locked.Price,
			Status:         models.PaymentPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return payment, nil
	}

	if err := s.store.Create(ctx, reg, admit); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, apperr.New(apperr.KindNotFound, "event not found")
		case errors.Is(err, sentinel.ErrConflict):
			return nil, apperr.New(apperr.KindAlreadyRegistered, "already registered for this event")
		}
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		log.Error("create registration", zap.String("registration_id", reg.ID.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "create registration", err)
	}
	s.metrics.IncRegistration(string(reg.Status))

	res := &Result{Registration: reg, Payment: payment}
	msg := s.tokenEmail(models.EmailTypeAttendanceToken, reg, ev, actor.Email, actor.Name)
	if err := s.deliver(ctx, msg); err != nil {
		log.Warn("attendance token delivery failed",
			zap.String("registration_id", reg.ID.String()), zap.Error(err))
		res.Warning = WarningTokenDelivery
		return res, nil
	}
	res.TokenDelivered = true
	return res, nil
}

// Cancel moves the actor's registration to cancelled. Cancellation is terminal.
func (s *Service) Cancel(ctx context.Context, registrationID uuid.UUID, actor models.Actor) (*models.Registration, error) {
	reg, err := s.owned(ctx, registrationID, actor)
	if err != nil {
		return nil, err
	}
	if reg.Status == models.RegistrationCancelled {
		return nil, apperr.New(apperr.KindAlreadyCancelled, "registration already cancelled")
	}

	now := s.now()
	if err := s.store.Cancel(ctx, reg.ID, now); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, apperr.New(apperr.KindAlreadyCancelled, "registration already cancelled")
		}
		s.logger.Error("cancel registration",
			zap.String("registration_id", reg.ID.String()),
			zap.String("actor_id", actor.UserID.String()),
			zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "cancel registration", err)
	}
	s.metrics.IncCancellation()

	reg.Status = models.RegistrationCancelled
	reg.CancelledAt = &now
	reg.UpdatedAt = now
	return reg, nil
}

// ResendToken schedules another delivery of the attendance token. With a job
// queue configured the worker sends it; otherwise it is sent inline.
func (s *Service) ResendToken(ctx context.Context, registrationID uuid.UUID, actor models.Actor) error {
	reg, err := s.owned(ctx, registrationID, actor)
	if err != nil {
		return err
	}
	return s.resend(ctx, reg, actor.Email, actor.Name)
}

// ResendTokenForEvent is the admin variant of ResendToken. The recipient is
// looked up from the registration's user.
func (s *Service) ResendTokenForEvent(ctx context.Context, eventID, registrationID uuid.UUID) error {
	reg, err := s.store.GetByID(ctx, registrationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "registration not found")
		}
		return apperr.Wrap(apperr.KindStorageUnavailable, "load registration", err)
	}
	if reg.EventID != eventID {
		return apperr.New(apperr.KindNotFound, "registration not found")
	}
	if s.users == nil {
		return apperr.New(apperr.KindInternal, "no user directory configured")
	}
	u, err := s.users.GetByID(ctx, reg.UserID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return apperr.New(apperr.KindNotFound, "registrant not found")
		}
		return apperr.Wrap(apperr.KindStorageUnavailable, "load registrant", err)
	}
	return s.resend(ctx, reg, u.Email, u.FullName)
}

func (s *Service) resend(ctx context.Context, reg *models.Registration, email, name string) error {
	if !reg.IsActive() {
		return apperr.New(apperr.KindAlreadyCancelled, "registration is cancelled")
	}
	payload := queue.EmailPayload{
		EmailType:      models.EmailTypeTokenResend,
		EventID:        reg.EventID,
		RegistrationID: reg.ID,
		RecipientEmail: email,
		RecipientName:  name,
	}
	if s.jobs != nil {
		if err := s.jobs.EnqueueEmail(ctx, payload); err != nil {
			s.logger.Error("enqueue token resend",
				zap.String("registration_id", reg.ID.String()),
				zap.Error(err))
			return apperr.Wrap(apperr.KindStorageUnavailable, "enqueue token email", err)
		}
		return nil
	}
	if err := s.DeliverToken(ctx, payload); err != nil {
		return apperr.Wrap(apperr.KindStorageUnavailable, "send token email", err)
	}
	return nil
}

// DeliverToken sends the attendance token for a queued job. Cancelled
// registrations are skipped without error so the job is not retried.
func (s *Service) DeliverToken(ctx context.Context, p queue.EmailPayload) error {
	reg, err := s.store.GetByID(ctx, p.RegistrationID)
	if err != nil {
		return fmt.Errorf("load registration %s: %w", p.RegistrationID, err)
	}
	if !reg.IsActive() {
		s.logger.Info("skip token delivery for cancelled registration", zap.String("registration_id", reg.ID.String()))
		return nil
	}
	ev, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		return fmt.Errorf("load event %s: %w", reg.EventID, err)
	}
	emailType := p.EmailType
	if emailType == "" {
		emailType = models.EmailTypeAttendanceToken
	}
	return s.deliver(ctx, s.tokenEmail(emailType, reg, ev, p.RecipientEmail, p.RecipientName))
}

func (s *Service) deliver(ctx context.Context, msg notify.TokenEmail) error {
	if s.notifier == nil {
		return errors.New("no notifier configured")
	}
	sendCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	if err := s.notifier.SendToken(sendCtx, msg); err != nil {
		s.metrics.IncNotificationFailure(msg.Type)
		return err
	}
	if err := s.store.MarkTokenSent(ctx, msg.RegistrationID, s.now()); err != nil {
		s.logger.Warn("mark token sent", zap.String("registration_id", msg.RegistrationID.String()), zap.Error(err))
	}
	return nil
}

func (s *Service) tokenEmail(emailType string, reg *models.Registration, ev *models.Event, email, name string) notify.TokenEmail {
	msg := notify.TokenEmail{
		Type:           emailType,
		EventID:        reg.EventID,
		RegistrationID: reg.ID,
		RecipientEmail: email,
		RecipientName:  name,
		Token:          reg.AttendanceToken,
		Status:         reg.Status,
	}
	if ev != nil {
		msg.EventTitle = ev.Title
		msg.EventDate = ev.EventDate
		msg.StartTime = ev.StartTime
		msg.EndTime = ev.EndTime
		msg.Location = ev.Location
		msg.CheckInOpensAt = s.policy.For(ev).OpensAt
	}
	return msg
}

// owned loads a registration visible to actor. Registrations of other users
// are reported as not found.
func (s *Service) owned(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Registration, error) {
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "registration not found")
		}
		s.logger.Error("load registration",
			zap.String("registration_id", id.String()),
			zap.String("actor_id", actor.UserID.String()),
			zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "load registration", err)
	}
	if !reg.OwnedBy(actor.UserID) {
		return nil, apperr.New(apperr.KindNotFound, "registration not found")
	}
	return reg, nil
}

// Get returns one of the actor's registrations.
func (s *Service) Get(ctx context.Context, registrationID uuid.UUID, actor models.Actor) (*models.Registration, error) {
	return s.owned(ctx, registrationID, actor)
}

// ListMine returns the actor's registrations, newest first.
func (s *Service) ListMine(ctx context.Context, actor models.Actor) ([]WithEvent, error) {
	list, err := s.store.ListByUser(ctx, actor.UserID)
	if err != nil {
		s.logger.Error("list registrations", zap.String("actor_id", actor.UserID.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "list registrations", err)
	}
	if list == nil {
		list = []WithEvent{}
	}
	return list, nil
}

// TokenQR renders the attendance token of an active registration as a PNG QR code.
func (s *Service) TokenQR(ctx context.Context, registrationID uuid.UUID, actor models.Actor) ([]byte, error) {
	reg, err := s.owned(ctx, registrationID, actor)
	if err != nil {
		return nil, err
	}
	if !reg.IsActive() {
		return nil, apperr.New(apperr.KindAlreadyCancelled, "registration is cancelled")
	}
	png, err := qr.PNG(reg.AttendanceToken, qr.DefaultSize)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "render token qr", err)
	}
	return png, nil
}

// orderID is the reference handed to a payment gateway.
func orderID(regID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("EVT-%s-%s", at.Format("20060102"), regID.String()[:8])
}
