package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/registrations"
	"github.com/eduevent/backend/pkg/sentinel"
)

// TopEventsLimit is the length of the top events list.
const TopEventsLimit = 10

// Store runs the dashboard queries. Each method is independent so they can
// run concurrently.
type Store interface {
	EventCounts(ctx context.Context, year int) (total, published, thisYear int, err error)
	RegistrationCounts(ctx context.Context, year int) (active, thisYear int, err error)
	AttendanceCounts(ctx context.Context) (attendances, attendees int, err error)
	PaidRevenue(ctx context.Context) (int64, error)
	MonthlyEvents(ctx context.Context, year int) ([12]int, error)
	MonthlyAttendees(ctx context.Context, year int) ([12]int, error)
	TopEvents(ctx context.Context, limit int) ([]TopEvent, error)
}

// ParticipantLister loads the participants of an event for export.
type ParticipantLister interface {
	ListParticipants(ctx context.Context, eventID uuid.UUID) ([]registrations.Participant, error)
}

// EventReader checks that an event exists.
type EventReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Service answers admin reporting requests.
type Service struct {
	store        Store
	participants ParticipantLister
	events       EventReader
	adminShare   float64
	logger       *zap.Logger
	now          func() time.Time
}

// NewService creates an analytics service. adminShare is the platform's
// fraction of paid revenue.
func NewService(store Store, participants ParticipantLister, events EventReader, adminShare float64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:        store,
		participants: participants,
		events:       events,
		adminShare:   adminShare,
		logger:       logger,
		now:          time.Now,
	}
}

// SetClock replaces time.Now, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Dashboard gathers the overview for year (the current year when 0).
func (s *Service) Dashboard(ctx context.Context, year int) (*Dashboard, error) {
	if year == 0 {
		year = s.now().Year()
	}
	var (
		t                Totals
		monthlyEvents    [12]int
		monthlyAttendees [12]int
		top              []TopEvent
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		t.Events, t.PublishedEvents, t.EventsThisYear, err = s.store.EventCounts(gctx, year)
		return err
	})
	g.Go(func() (err error) {
		t.Registrations, t.RegistrationsThisYear, err = s.store.RegistrationCounts(gctx, year)
		return err
	})
	g.Go(func() (err error) {
		t.Attendances, t.Attendees, err = s.store.AttendanceCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		t.Revenue, err = s.store.PaidRevenue(gctx)
		return err
	})
	g.Go(func() (err error) {
		monthlyEvents, err = s.store.MonthlyEvents(gctx, year)
		return err
	})
	g.Go(func() (err error) {
		monthlyAttendees, err = s.store.MonthlyAttendees(gctx, year)
		return err
	})
	g.Go(func() (err error) {
		top, err = s.store.TopEvents(gctx, TopEventsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("build dashboard", zap.Int("year", year), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "build dashboard", err)
	}

	d := Summarize(t, s.adminShare)
	d.Year = year
	d.MonthlyEvents = Months(monthlyEvents)
	d.MonthlyAttendees = Months(monthlyAttendees)
	if top == nil {
		top = []TopEvent{}
	}
	d.TopEvents = top
	return &d, nil
}

// Participants returns the export rows of an event.
func (s *Service) Participants(ctx context.Context, eventID uuid.UUID) ([]registrations.Participant, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "event not found")
		}
		s.logger.Error("load event", zap.String("event_id", eventID.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "load event", err)
	}
	list, err := s.participants.ListParticipants(ctx, eventID)
	if err != nil {
		s.logger.Error("list participants", zap.String("event_id", eventID.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "list participants", err)
	}
	return list, nil
}
