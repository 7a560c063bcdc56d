// Package emaillogs exposes the delivery log of transactional email to admins.
package emaillogs

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/httperr"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/response"
)

// Store persists email logs.
type Store interface {
	Create(ctx context.Context, el *models.EmailLog) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.EmailLog, error)
}

// Resender schedules another attendance token email for a registration.
type Resender interface {
	ResendTokenForEvent(ctx context.Context, eventID, registrationID uuid.UUID) error
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	store    Store
	resender Resender
	resp     *httperr.Responder
	logger   *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(store Store, resender Resender, resp *httperr.Responder, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, resender: resender, resp: resp, logger: logger}
}

// ListByEvent handles GET /admin/events/:id/emails.
func (h *Handler) ListByEvent(c *gin.Context) {
	eventID, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	logs, err := h.store.ListByEvent(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("list email logs", zap.String("event_id", eventID.String()), zap.Error(err))
		h.resp.Error(c, apperr.Wrap(apperr.KindStorageUnavailable, "list email logs", err))
		return
	}
	if logs == nil {
		logs = []*models.EmailLog{}
	}
	response.OK(c, logs)
}

// ResendRequest is the body for POST /admin/events/:id/emails/resend.
type ResendRequest struct {
	RegistrationID string `json:"registration_id" binding:"required,uuid"`
}

// Resend handles POST /admin/events/:id/emails/resend.
func (h *Handler) Resend(c *gin.Context) {
	eventID, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	var body ResendRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.resp.Validation(c, err)
		return
	}
	if err := h.resender.ResendTokenForEvent(c.Request.Context(), eventID, uuid.MustParse(body.RegistrationID)); err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusAccepted, response.Body{Success: true, Message: h.resp.T(c, "registration.token_resent")})
}
