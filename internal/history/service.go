package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/timewindow"
)

// Record is one registration of a user with everything attached to it.
type Record struct {
	Registration models.Registration
	Event        models.Event
	Attendance   *models.Attendance
	Certificate  *models.Certificate
	Payment      *models.Payment
}

// Store loads a user's registrations, newest first.
type Store interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Record, error)
}

// Item is one row of the history page.
type Item struct {
	Registration  models.Registration `json:"registration"`
	Event         models.Event        `json:"event"`
	Attendance    *models.Attendance  `json:"attendance,omitempty"`
	Certificate   *models.Certificate `json:"certificate,omitempty"`
	Payment       *models.Payment     `json:"payment,omitempty"`
	OverallStatus OverallStatus       `json:"overall_status"`
	Window        timewindow.Window   `json:"window"`
	CanCheckIn    bool                `json:"can_attend"`
}

// Page is the actor's history with statistics.
type Page struct {
	Items      []Item     `json:"items"`
	Statistics Statistics `json:"statistics"`
}

// Service builds history pages.
type Service struct {
	store  Store
	policy timewindow.Policy
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a history service.
func NewService(store Store, policy timewindow.Policy, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, policy: policy, logger: logger, now: time.Now}
}

// SetClock replaces time.Now, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// History resolves the overall status of each of the actor's registrations.
func (s *Service) History(ctx context.Context, actor models.Actor) (*Page, error) {
	records, err := s.store.ListByUser(ctx, actor.UserID)
	if err != nil {
		s.logger.Error("list history", zap.String("actor_id", actor.UserID.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "list history", err)
	}

	now := s.now()
	page := &Page{Items: make([]Item, 0, len(records))}
	statuses := make([]OverallStatus, 0, len(records))
	for i := range records {
		r := &records[i]
		w := s.policy.For(&r.Event)
		st := Resolve(&r.Registration, r.Attendance, r.Certificate, w, now)
		statuses = append(statuses, st)
		page.Items = append(page.Items, Item{
			Registration:  r.Registration,
			Event:         r.Event,
			Attendance:    r.Attendance,
			Certificate:   r.Certificate,
			Payment:       r.Payment,
			OverallStatus: st,
			Window:        w,
			CanCheckIn:    r.Registration.Status == models.RegistrationConfirmed && r.Attendance == nil && w.IsOpen(now),
		})
	}
	page.Statistics = Aggregate(statuses)
	return page, nil
}
