package wishlist

import (
	"github.com/gin-gonic/gin"

	"github.com/eduevent/backend/internal/httperr"
	"github.com/eduevent/backend/internal/middleware"
	"github.com/eduevent/backend/pkg/response"
)

// Handler handles wishlist HTTP endpoints.
type Handler struct {
	svc  *Service
	resp *httperr.Responder
}

// NewHandler creates a wishlist handler.
func NewHandler(svc *Service, resp *httperr.Responder) *Handler {
	return &Handler{svc: svc, resp: resp}
}

// List handles GET /me/wishlist (and the legacy GET /wishlist).
func (h *Handler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Check handles GET /wishlist/check/:id.
func (h *Handler) Check(c *gin.Context) {
	eventID, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	st, err := h.svc.Check(c.Request.Context(), middleware.ActorFrom(c), eventID)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, st)
}

// Toggle handles POST /events/:id/wishlist.
func (h *Handler) Toggle(c *gin.Context) {
	eventID, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	st, err := h.svc.Toggle(c.Request.Context(), middleware.ActorFrom(c), eventID)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	key := "wishlist.removed"
	if st.IsWishlisted {
		key = "wishlist.added"
	}
	response.OKMessage(c, h.resp.T(c, key), st)
}
