package payments

import (
	"github.com/gin-gonic/gin"

	"github.com/eduevent/backend/internal/httperr"
	"github.com/eduevent/backend/internal/middleware"
	"github.com/eduevent/backend/pkg/response"
)

// Handler handles payment HTTP endpoints.
type Handler struct {
	svc  *Service
	resp *httperr.Responder
}

// NewHandler creates a payments handler.
func NewHandler(svc *Service, resp *httperr.Responder) *Handler {
	return &Handler{svc: svc, resp: resp}
}

// Status handles GET /payments/:id/status.
func (h *Handler) Status(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Status(c.Request.Context(), id, middleware.ActorFrom(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, p)
}
