package history

import (
	"github.com/gin-gonic/gin"

	"github.com/eduevent/backend/internal/httperr"
	"github.com/eduevent/backend/internal/middleware"
	"github.com/eduevent/backend/pkg/response"
)

// Handler serves the participant's event history.
type Handler struct {
	svc  *Service
	resp *httperr.Responder
}

// NewHandler creates a history handler.
func NewHandler(svc *Service, resp *httperr.Responder) *Handler {
	return &Handler{svc: svc, resp: resp}
}

// History handles GET /me/history (and the legacy GET /user/event-history).
func (h *Handler) History(c *gin.Context) {
	page, err := h.svc.History(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, page)
}
