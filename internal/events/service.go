package events

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/timewindow"
	"github.com/eduevent/backend/pkg/sentinel"
	"github.com/eduevent/backend/pkg/storage"
)

// Store persists events.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	List(ctx context.Context, f ListFilter) ([]models.Event, int, error)
	Create(ctx context.Context, ev *models.Event) error
	Update(ctx context.Context, ev *models.Event) error
	SetPublished(ctx context.Context, id uuid.UUID, published bool) error
	SetFlyer(ctx context.Context, id uuid.UUID, key string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// View is an event as shown to clients.
type View struct {
	models.Event
	CanRegister    bool              `json:"can_register"`
	RemainingSeats *int              `json:"remaining_seats,omitempty"`
	FlyerURL       string            `json:"flyer_url,omitempty"`
	CheckIn        timewindow.Window `json:"check_in"`
	CheckInPhase   timewindow.Phase  `json:"check_in_phase"`
}

// Input holds the editable fields of an event.
type Input struct {
	Title           string
	Description     string
	EventDate       models.Date
	StartTime       *models.TimeOfDay
	EndTime         *models.TimeOfDay
	Location        string
	Category        models.EventCategory
	Organizer       string
	IsPublished     bool
	Price           int64
	MaxParticipants *int
}

func (in Input) validate() error {
	if in.EventDate.IsZero() {
		return apperr.WithReason(apperr.KindValidation, "event_date", "event date is required")
	}
	if !in.Category.Valid() {
		return apperr.WithReason(apperr.KindValidation, "category", "unknown category")
	}
	if in.Price < 0 {
		return apperr.WithReason(apperr.KindValidation, "price", "price must not be negative")
	}
	if in.MaxParticipants != nil && *in.MaxParticipants < 1 {
		return apperr.WithReason(apperr.KindValidation, "capacity", "capacity must be positive")
	}
	if in.StartTime != nil && in.EndTime != nil && in.EndTime.Duration() <= in.StartTime.Duration() {
		return apperr.WithReason(apperr.KindValidation, "end_before_start", "end time must be after start time")
	}
	return nil
}

func (in Input) apply(ev *models.Event) {
	ev.Title = strings.TrimSpace(in.Title)
	ev.Description = in.Description
	ev.EventDate = in.EventDate
	ev.StartTime = in.StartTime
	ev.EndTime = in.EndTime
	ev.Location = strings.TrimSpace(in.Location)
	ev.Category = in.Category
	ev.Organizer = strings.TrimSpace(in.Organizer)
	ev.IsPublished = in.IsPublished
	ev.Price = in.Price
	ev.MaxParticipants = in.MaxParticipants
}

// Service manages the event catalogue.
type Service struct {
	store  Store
	files  storage.FileStore
	policy timewindow.Policy
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates an events service. files may be nil when flyer uploads
// are disabled.
func NewService(store Store, files storage.FileStore, policy timewindow.Policy, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, files: files, policy: policy, logger: logger, now: time.Now}
}

// SetClock replaces time.Now, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// View decorates ev with its registration and check-in state.
func (s *Service) View(ev *models.Event) View {
	w := s.policy.For(ev)
	v := View{
		Event:        *ev,
		CanRegister:  ev.CanRegister(ev.RegisteredCount),
		CheckIn:      w,
		CheckInPhase: w.Phase(s.now()),
	}
	if n := ev.RemainingSeats(ev.RegisteredCount); n >= 0 {
		v.RemainingSeats = &n
	}
	if ev.FlyerPath != "" && s.files != nil {
		v.FlyerURL = s.files.URL(ev.FlyerPath)
	}
	return v
}

// List returns one page of the catalogue.
func (s *Service) List(ctx context.Context, f ListFilter) ([]View, int, error) {
	f.normalize()
	list, total, err := s.store.List(ctx, f)
	if err != nil {
		s.logger.Error("list events", zap.Error(err))
		return nil, 0, apperr.Wrap(apperr.KindStorageUnavailable, "list events", err)
	}
	out := make([]View, 0, len(list))
	for i := range list {
		out = append(out, s.View(&list[i]))
	}
	return out, total, nil
}

// Get returns an event. Unpublished events are only visible to admins.
func (s *Service) Get(ctx context.Context, id uuid.UUID, includeUnpublished bool) (*View, error) {
	ev, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ev.IsPublished && !includeUnpublished {
		return nil, apperr.New(apperr.KindNotFound, "event not found")
	}
	v := s.View(ev)
	return &v, nil
}

// Create adds an event authored by actor.
func (s *Service) Create(ctx context.Context, actor models.Actor, in Input) (*View, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	ev := &models.Event{ID: uuid.New()}
	in.apply(ev)
	if actor.UserID != uuid.Nil {
		by := actor.UserID
		ev.CreatedBy = &by
	}
	if err := s.store.Create(ctx, ev); err != nil {
		s.logger.Error("create event", zap.String("actor_id", actor.UserID.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "create event", err)
	}
	v := s.View(ev)
	return &v, nil
}

// Update replaces the editable fields of an event. Capacity cannot drop below
// the number of seats already taken.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*View, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	ev, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.MaxParticipants != nil && *in.MaxParticipants < ev.RegisteredCount {
		return nil, apperr.WithReason(apperr.KindValidation, "capacity_below_registered", "capacity is below current registrations")
	}
	in.apply(ev)
	if err := s.store.Update(ctx, ev); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "event not found")
		}
		s.logger.Error("update event", zap.String("event_id", id.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "update event", err)
	}
	v := s.View(ev)
	return &v, nil
}

// SetPublished publishes or unpublishes an event.
func (s *Service) SetPublished(ctx context.Context, id uuid.UUID, published bool) (*View, error) {
	if err := s.store.SetPublished(ctx, id, published); err != nil {
		return nil, s.mapErr("publish event", id, err)
	}
	return s.Get(ctx, id, true)
}

// Delete removes an event and its flyer.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	ev, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return s.mapErr("delete event", id, err)
	}
	s.removeFile(ctx, ev.FlyerPath)
	return nil
}

// UploadFlyer stores a flyer image and attaches it to the event, replacing any
// previous flyer.
func (s *Service) UploadFlyer(ctx context.Context, id uuid.UUID, filename, contentType string, body io.Reader) (*View, error) {
	if s.files == nil {
		return nil, apperr.New(apperr.KindStorageUnavailable, "file storage not configured")
	}
	ext, ok := storage.ImageExtension(contentType, filename)
	if !ok {
		return nil, apperr.WithReason(apperr.KindValidation, "file_type", "flyer must be an image")
	}
	data, err := storage.ReadLimited(body, storage.MaxImageSize)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, apperr.WithReason(apperr.KindValidation, "file_too_large", "flyer exceeds 5MB")
		}
		return nil, apperr.Wrap(apperr.KindValidation, "read flyer", err)
	}
	ev, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	key := storage.FlyerKey(id.String(), fmt.Sprintf("flyer-%d", s.now().UnixNano()), ext)
	if err := s.files.Save(ctx, key, data, storage.ContentTypeForFilename(key)); err != nil {
		s.logger.Error("save flyer", zap.String("event_id", id.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "save flyer", err)
	}
	if err := s.store.SetFlyer(ctx, id, key); err != nil {
		s.removeFile(ctx, key)
		return nil, s.mapErr("set flyer", id, err)
	}
	s.removeFile(ctx, ev.FlyerPath)
	ev.FlyerPath = key
	v := s.View(ev)
	return &v, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	ev, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapErr("load event", id, err)
	}
	return ev, nil
}

func (s *Service) mapErr(op string, id uuid.UUID, err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, "event not found")
	}
	s.logger.Error(op, zap.String("event_id", id.String()), zap.Error(err))
	return apperr.Wrap(apperr.KindStorageUnavailable, op, err)
}

func (s *Service) removeFile(ctx context.Context, key string) {
	if key == "" || s.files == nil {
		return
	}
	if err := s.files.Delete(ctx, key); err != nil {
		s.logger.Warn("delete file", zap.String("key", key), zap.Error(err))
	}
}
