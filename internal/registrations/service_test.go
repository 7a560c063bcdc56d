package registrations_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/memstore"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/notify"
	"github.com/eduevent/backend/internal/registrations"
	"github.com/eduevent/backend/internal/token"
	"github.com/eduevent/backend/pkg/queue"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.TokenEmail
	err  error
}

func (f *fakeNotifier) SendToken(_ context.Context, msg notify.TokenEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeQueue struct {
	jobs []queue.EmailPayload
	err  error
}

func (f *fakeQueue) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, p)
	return nil
}

type RegistrationSuite struct {
	suite.Suite
	db       *memstore.DB
	notifier *fakeNotifier
	svc      *registrations.Service
	now      time.Time
	actor    models.Actor
}

func TestRegistrationSuite(t *testing.T) {
	suite.Run(t, new(RegistrationSuite))
}

func (s *RegistrationSuite) SetupTest() {
	s.db = memstore.New()
	s.notifier = &fakeNotifier{}
	s.now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s.actor = models.Actor{UserID: uuid.New(), Email: "sari@example.com", Name: "Sari"}
	s.svc = registrations.NewService(s.db.Events(), s.db.Registrations(), s.notifier,
		registrations.WithClock(func() time.Time { return s.now }))
}

func (s *RegistrationSuite) event(mutate func(*models.Event)) *models.Event {
	ev := &models.Event{
		ID:          uuid.New(),
		Title:       "Workshop Go",
		EventDate:   models.Date{Year: 2025, Month: time.March, Day: 10},
		StartTime:   &models.TimeOfDay{Hour: 9},
		IsPublished: true,
	}
	if mutate != nil {
		mutate(ev)
	}
	s.db.PutEvent(ev)
	return ev
}

func capacity(n int) func(*models.Event) {
	return func(ev *models.Event) { ev.MaxParticipants = &n }
}

func (s *RegistrationSuite) TestFreeEventIsConfirmed() {
	ev := s.event(nil)

	res, err := s.svc.Register(context.Background(), ev.ID, s.actor, "")
	s.Require().NoError(err)

	reg := res.Registration
	s.Equal(models.RegistrationConfirmed, reg.Status)
	s.NotNil(reg.ConfirmedAt)
	s.True(token.Valid(reg.AttendanceToken))
	s.Nil(res.Payment)
	s.True(res.TokenDelivered)
	s.Empty(res.Warning)

	s.Require().Equal(1, s.notifier.count())
	msg := s.notifier.sent[0]
	s.Equal(reg.AttendanceToken, msg.Token)
	s.Equal("sari@example.com", msg.RecipientEmail)
	s.Equal(models.EmailTypeAttendanceToken, msg.Type)
	s.Equal("Workshop Go", msg.EventTitle)

	stored, err := s.db.Registrations().GetByID(context.Background(), reg.ID)
	s.Require().NoError(err)
	s.NotNil(stored.TokenSentAt)
}

func (s *RegistrationSuite) TestPaidEventIsPendingWithPayment() {
	ev := s.event(func(e *models.Event) { e.Price = 50000 })

	res, err := s.svc.Register(context.Background(), ev.ID, s.actor, "NIM 123")
	s.Require().NoError(err)

	s.Equal(models.RegistrationPending, res.Registration.Status)
	s.Nil(res.Registration.ConfirmedAt)
	s.Equal("NIM 123", res.Registration.AdditionalInfo)
	s.Require().NotNil(res.Payment)
	s.Equal(int64(50000), res.Payment.Amount)
	s.Equal(models.PaymentPending, res.Payment.Status)

	p, ok := s.db.PaymentFor(res.Registration.ID)
	s.Require().True(ok)
	s.Equal(res.Payment.ID, p.ID)
}

func (s *RegistrationSuite) TestUnpublishedEventIsNotRegistrable() {
	ev := s.event(func(e *models.Event) { e.IsPublished = false })

	_, err := s.svc.Register(context.Background(), ev.ID, s.actor, "")
	s.True(apperr.Is(err, apperr.KindEventNotRegistrable))
	s.Zero(s.notifier.count())
}

func (s *RegistrationSuite) TestUnknownEventIsNotFound() {
	_, err := s.svc.Register(context.Background(), uuid.New(), s.actor, "")
	s.True(apperr.Is(err, apperr.KindNotFound))
}

func (s *RegistrationSuite) TestCapacityCountsOnlyActiveRegistrations() {
	ev := s.event(capacity(2))
	ctx := context.Background()

	a := models.Actor{UserID: uuid.New()}
	b := models.Actor{UserID: uuid.New()}
	c := models.Actor{UserID: uuid.New()}

	resA, err := s.svc.Register(ctx, ev.ID, a, "")
	s.Require().NoError(err)
	_, err = s.svc.Register(ctx, ev.ID, b, "")
	s.Require().NoError(err)

	_, err = s.svc.Register(ctx, ev.ID, c, "")
	s.True(apperr.Is(err, apperr.KindEventNotRegistrable), "third registration should be refused, got %v", err)

	_, err = s.svc.Cancel(ctx, resA.Registration.ID, a)
	s.Require().NoError(err)

	_, err = s.svc.Register(ctx, ev.ID, c, "")
	s.NoError(err)
}

func (s *RegistrationSuite) TestDuplicateRegistrationIsRejected() {
	ev := s.event(nil)
	ctx := context.Background()

	_, err := s.svc.Register(ctx, ev.ID, s.actor, "")
	s.Require().NoError(err)

	_, err = s.svc.Register(ctx, ev.ID, s.actor, "")
	s.True(apperr.Is(err, apperr.KindAlreadyRegistered))
}

func (s *RegistrationSuite) TestReRegisterAfterCancel() {
	ev := s.event(nil)
	ctx := context.Background()

	first, err := s.svc.Register(ctx, ev.ID, s.actor, "")
	s.Require().NoError(err)
	_, err = s.svc.Cancel(ctx, first.Registration.ID, s.actor)
	s.Require().NoError(err)

	second, err := s.svc.Register(ctx, ev.ID, s.actor, "")
	s.Require().NoError(err)
	s.NotEqual(first.Registration.ID, second.Registration.ID)
	s.NotEqual(first.Registration.AttendanceToken, second.Registration.AttendanceToken)
}

func (s *RegistrationSuite) TestNotificationFailureKeepsRegistration() {
	ev := s.event(nil)
	s.notifier.err = errors.New("brevo: 503")

	res, err := s.svc.Register(context.Background(), ev.ID, s.actor, "")
	s.Require().NoError(err)
	s.False(res.TokenDelivered)
	s.Equal(registrations.WarningTokenDelivery, res.Warning)

	stored, err := s.db.Registrations().GetByID(context.Background(), res.Registration.ID)
	s.Require().NoError(err)
	s.Equal(models.RegistrationConfirmed, stored.Status)
	s.Nil(stored.TokenSentAt)
}

func (s *RegistrationSuite) TestStorageFailureIsReported() {
	ev := s.event(nil)
	s.db.Fail("registrations.create", errors.New("connection reset"))

	_, err := s.svc.Register(context.Background(), ev.ID, s.actor, "")
	s.True(apperr.Is(err, apperr.KindStorageUnavailable))
	s.Zero(s.notifier.count())
}

func (s *RegistrationSuite) TestCancelIsTerminal() {
	ev := s.event(func(e *models.Event) { e.Price = 10000 })
	ctx := context.Background()

	res, err := s.svc.Register(ctx, ev.ID, s.actor, "")
	s.Require().NoError(err)

	reg, err := s.svc.Cancel(ctx, res.Registration.ID, s.actor)
	s.Require().NoError(err)
	s.Equal(models.RegistrationCancelled, reg.Status)
	s.NotNil(reg.CancelledAt)

	p, _ := s.db.PaymentFor(res.Registration.ID)
	s.Equal(models.PaymentCancelled, p.Status)

	_, err = s.svc.Cancel(ctx, res.Registration.ID, s.actor)
	s.True(apperr.Is(err, apperr.KindAlreadyCancelled))
}

func (s *RegistrationSuite) TestCancelOtherUsersRegistrationIsNotFound() {
	ev := s.event(nil)
	res, err := s.svc.Register(context.Background(), ev.ID, s.actor, "")
	s.Require().NoError(err)

	_, err = s.svc.Cancel(context.Background(), res.Registration.ID, models.Actor{UserID: uuid.New()})
	s.True(apperr.Is(err, apperr.KindNotFound))
}

func (s *RegistrationSuite) TestResendTokenInline() {
	ev := s.event(nil)
	ctx := context.Background()
	res, err := s.svc.Register(ctx, ev.ID, s.actor, "")
	s.Require().NoError(err)

	s.Require().NoError(s.svc.ResendToken(ctx, res.Registration.ID, s.actor))
	s.Require().Equal(2, s.notifier.count())
	s.Equal(models.EmailTypeTokenResend, s.notifier.sent[1].Type)
	s.Equal(res.Registration.AttendanceToken, s.notifier.sent[1].Token)
}

func (s *RegistrationSuite) TestResendTokenQueued() {
	q := &fakeQueue{}
	svc := registrations.NewService(s.db.Events(), s.db.Registrations(), s.notifier, registrations.WithJobQueue(q))
	ev := s.event(nil)
	ctx := context.Background()
	res, err := svc.Register(ctx, ev.ID, s.actor, "")
	s.Require().NoError(err)

	s.Require().NoError(svc.ResendToken(ctx, res.Registration.ID, s.actor))
	s.Require().Len(q.jobs, 1)
	s.Equal(res.Registration.ID, q.jobs[0].RegistrationID)
	s.Equal("sari@example.com", q.jobs[0].RecipientEmail)

	q.err = errors.New("redis down")
	err = svc.ResendToken(ctx, res.Registration.ID, s.actor)
	s.True(apperr.Is(err, apperr.KindStorageUnavailable))
}

func (s *RegistrationSuite) TestResendTokenForCancelledRegistration() {
	ev := s.event(nil)
	ctx := context.Background()
	res, err := s.svc.Register(ctx, ev.ID, s.actor, "")
	s.Require().NoError(err)
	_, err = s.svc.Cancel(ctx, res.Registration.ID, s.actor)
	s.Require().NoError(err)

	err = s.svc.ResendToken(ctx, res.Registration.ID, s.actor)
	s.True(apperr.Is(err, apperr.KindAlreadyCancelled))
}

func (s *RegistrationSuite) TestDeliverTokenSkipsCancelled() {
	ev := s.event(nil)
	ctx := context.Background()
	res, err := s.svc.Register(ctx, ev.ID, s.actor, "")
	s.Require().NoError(err)
	_, err = s.svc.Cancel(ctx, res.Registration.ID, s.actor)
	s.Require().NoError(err)

	err = s.svc.DeliverToken(ctx, queue.EmailPayload{RegistrationID: res.Registration.ID, RecipientEmail: "sari@example.com"})
	s.NoError(err)
	s.Equal(1, s.notifier.count())
}

func TestConcurrentRegistrationsNeverExceedCapacity(t *testing.T) {
	db := memstore.New()
	n := 5
	ev := &models.Event{ID: uuid.New(), IsPublished: true, MaxParticipants: &n,
		EventDate: models.Date{Year: 2025, Month: time.March, Day: 10}}
	db.PutEvent(ev)
	svc := registrations.NewService(db.Events(), db.Registrations(), &fakeNotifier{})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		refused  int
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Register(context.Background(), ev.ID, models.Actor{UserID: uuid.New()}, "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
				return
			}
			if apperr.Is(err, apperr.KindEventNotRegistrable) {
				refused++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, n, accepted)
	assert.Equal(t, 40-n, refused)

	stored, err := db.Events().GetByID(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, n, stored.RegisteredCount)
}
