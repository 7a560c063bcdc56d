package attendance

import (
	"github.com/gin-gonic/gin"

	"github.com/eduevent/backend/internal/httperr"
	"github.com/eduevent/backend/internal/middleware"
	"github.com/eduevent/backend/pkg/response"
)

// CheckInRequest is the body for the check-in endpoints.
type CheckInRequest struct {
	Token string `json:"token" binding:"required,max=32"`
}

// Handler handles attendance HTTP endpoints.
type Handler struct {
	svc  *Service
	resp *httperr.Responder
}

// NewHandler creates an attendance handler.
func NewHandler(svc *Service, resp *httperr.Responder) *Handler {
	return &Handler{svc: svc, resp: resp}
}

// CheckIn handles POST /registrations/:id/attendance.
func (h *Handler) CheckIn(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.Validation(c, err)
		return
	}
	att, err := h.svc.CheckIn(c.Request.Context(), id, middleware.ActorFrom(c), req.Token)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OKMessage(c, h.resp.T(c, "attendance.success"), att)
}

// CheckInForEvent handles POST /events/:id/attendance.
func (h *Handler) CheckInForEvent(c *gin.Context) {
	eventID, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.Validation(c, err)
		return
	}
	att, err := h.svc.CheckInForEvent(c.Request.Context(), eventID, middleware.ActorFrom(c), req.Token)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OKMessage(c, h.resp.T(c, "attendance.success"), att)
}

// Status handles GET /registrations/:id/attendance.
func (h *Handler) Status(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	v, err := h.svc.Status(c.Request.Context(), id, middleware.ActorFrom(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, v)
}

// StatusForEvent handles GET /events/:id/attendance/status.
func (h *Handler) StatusForEvent(c *gin.Context) {
	eventID, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	v, err := h.svc.StatusForEvent(c.Request.Context(), eventID, middleware.ActorFrom(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, v)
}

// ListForEvent handles GET /admin/events/:id/attendances.
func (h *Handler) ListForEvent(c *gin.Context) {
	eventID, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.ListForEvent(c.Request.Context(), eventID)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, list)
}
