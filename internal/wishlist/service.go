package wishlist

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/sentinel"
)

// EventReader loads events.
type EventReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Store persists wishlist entries. At most one entry exists per user and event.
type Store interface {
	// Toggle removes the entry if present and adds it otherwise. It reports
	// whether the entry exists afterwards.
	Toggle(ctx context.Context, userID, eventID uuid.UUID) (bool, error)
	Exists(ctx context.Context, userID, eventID uuid.UUID) (bool, error)
	// ListByUser returns the user's entries with their event, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error)
}

// Status tells whether an event is on the actor's wishlist.
type Status struct {
	EventID      uuid.UUID `json:"event_id"`
	IsWishlisted bool      `json:"is_wishlisted"`
}

// Service manages participants' wishlists.
type Service struct {
	events EventReader
	store  Store
	logger *zap.Logger
}

// NewService creates a wishlist service.
func NewService(events EventReader, store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{events: events, store: store, logger: logger}
}

// List returns the actor's wishlist, newest first.
func (s *Service) List(ctx context.Context, actor models.Actor) ([]models.WishlistItem, error) {
	items, err := s.store.ListByUser(ctx, actor.UserID)
	if err != nil {
		s.logger.Error("list wishlist", zap.String("actor_id", actor.UserID.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "list wishlist", err)
	}
	if items == nil {
		items = []models.WishlistItem{}
	}
	return items, nil
}

// Check reports whether eventID is on the actor's wishlist. Unknown events
// are simply not wishlisted.
func (s *Service) Check(ctx context.Context, actor models.Actor, eventID uuid.UUID) (*Status, error) {
	ok, err := s.store.Exists(ctx, actor.UserID, eventID)
	if err != nil {
		s.logger.Error("check wishlist", zap.String("event_id", eventID.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "check wishlist", err)
	}
	return &Status{EventID: eventID, IsWishlisted: ok}, nil
}

// Toggle adds the event to the actor's wishlist or removes it. Events the
// actor cannot see are not found.
func (s *Service) Toggle(ctx context.Context, actor models.Actor, eventID uuid.UUID) (*Status, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, s.mapErr("load event", eventID, err)
	}
	if !ev.IsPublished && !actor.IsAdmin() {
		return nil, apperr.New(apperr.KindNotFound, "event not found")
	}
	added, err := s.store.Toggle(ctx, actor.UserID, eventID)
	if err != nil {
		return nil, s.mapErr("toggle wishlist", eventID, err)
	}
	s.logger.Info("wishlist toggled",
		zap.String("actor_id", actor.UserID.String()),
		zap.String("event_id", eventID.String()),
		zap.Bool("added", added))
	return &Status{EventID: eventID, IsWishlisted: added}, nil
}

func (s *Service) mapErr(op string, eventID uuid.UUID, err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return apperr.New(apperr.KindNotFound, "event not found")
	}
	s.logger.Error(op, zap.String("event_id", eventID.String()), zap.Error(err))
	return apperr.Wrap(apperr.KindStorageUnavailable, op, err)
}
