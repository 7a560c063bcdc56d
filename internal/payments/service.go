// Package payments exposes the status of registration payments. Settlement
// happens in an external gateway; this service only reports.
package payments

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/sentinel"
)

// Store loads payments.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
}

// Service answers payment status requests.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a payments service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Status returns a payment owned by actor. Admins may read any payment.
func (s *Service) Status(ctx context.Context, id uuid.UUID, actor models.Actor) (*models.Payment, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "payment not found")
		}
		s.logger.Error("load payment", zap.String("payment_id", id.String()), zap.String("actor_id", actor.UserID.String()), zap.Error(err))
		return nil, apperr.Wrap(apperr.KindStorageUnavailable, "load payment", err)
	}
	if p.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, apperr.New(apperr.KindNotFound, "payment not found")
	}
	return p, nil
}
