package registrations

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eduevent/backend/internal/httperr"
	"github.com/eduevent/backend/internal/middleware"
	"github.com/eduevent/backend/pkg/response"
)

// RegisterRequest is the body for POST /registrations.
type RegisterRequest struct {
	EventID        string `json:"event_id" binding:"required,uuid"`
	AdditionalInfo string `json:"additional_info" binding:"max=2000"`
}

// EventRegisterRequest is the body for POST /events/:id/register.
type EventRegisterRequest struct {
	AdditionalInfo string `json:"additional_info" binding:"max=2000"`
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc  *Service
	resp *httperr.Responder
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, resp *httperr.Responder) *Handler {
	return &Handler{svc: svc, resp: resp}
}

// Register handles POST /registrations.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.Validation(c, err)
		return
	}
	h.register(c, uuid.MustParse(req.EventID), req.AdditionalInfo)
}

// RegisterForEvent handles POST /events/:id/register.
func (h *Handler) RegisterForEvent(c *gin.Context) {
	eventID, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	var req EventRegisterRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.resp.Validation(c, err)
			return
		}
	}
	h.register(c, eventID, req.AdditionalInfo)
}

func (h *Handler) register(c *gin.Context, eventID uuid.UUID, info string) {
	res, err := h.svc.Register(c.Request.Context(), eventID, middleware.ActorFrom(c), info)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	msg := h.resp.T(c, "registration.success")
	if !res.TokenDelivered {
		msg = h.resp.T(c, "registration.success_no_email")
	}
	response.CreatedMessage(c, msg, res)
}

// Mine handles GET /me/registrations.
func (h *Handler) Mine(c *gin.Context) {
	list, err := h.svc.ListMine(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /registrations/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	reg, err := h.svc.Get(c.Request.Context(), id, middleware.ActorFrom(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, reg)
}

// Cancel handles POST /registrations/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	reg, err := h.svc.Cancel(c.Request.Context(), id, middleware.ActorFrom(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OKMessage(c, h.resp.T(c, "registration.cancelled"), reg)
}

// ResendToken handles POST /registrations/:id/resend-token.
func (h *Handler) ResendToken(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.ResendToken(c.Request.Context(), id, middleware.ActorFrom(c)); err != nil {
		h.resp.Error(c, err)
		return
	}
	c.JSON(http.StatusAccepted, response.Body{Success: true, Message: h.resp.T(c, "registration.token_resent")})
}

// QR handles GET /registrations/:id/qr.
func (h *Handler) QR(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	png, err := h.svc.TokenQR(c.Request.Context(), id, middleware.ActorFrom(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, "image/png", png)
}
