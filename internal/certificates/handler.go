package certificates

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eduevent/backend/internal/httperr"
	"github.com/eduevent/backend/internal/middleware"
	"github.com/eduevent/backend/pkg/response"
)

// Handler handles certificate HTTP endpoints.
type Handler struct {
	svc  *Service
	resp *httperr.Responder
}

// NewHandler creates a certificates handler.
func NewHandler(svc *Service, resp *httperr.Responder) *Handler {
	return &Handler{svc: svc, resp: resp}
}

// Issue handles POST /registrations/:id/certificate. A first issuance answers
// 201, a repeated request 200 with the same certificate.
func (h *Handler) Issue(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	cert, created, err := h.svc.Issue(c.Request.Context(), id, middleware.ActorFrom(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	if created {
		response.CreatedMessage(c, h.resp.T(c, "certificate.issued"), cert)
		return
	}
	response.OK(c, cert)
}

// Status handles GET /registrations/:id/certificate.
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

// Mine handles GET /me/certificates.
func (h *Handler) Mine(c *gin.Context) {
	list, err := h.svc.ListMine(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Download handles GET /certificates/:id/download and streams the stored artifact.
func (h *Handler) Download(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	art, err := h.svc.Open(c.Request.Context(), id, middleware.ActorFrom(c))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	defer art.Body.Close()

	c.Header("Content-Disposition", `attachment; filename="`+art.FileName+`"`)
	c.Header("Content-Type", art.ContentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, art.Body); err != nil {
		_ = c.Error(err)
	}
}

// Verify handles GET /certificates/verify/:serial. It is public.
func (h *Handler) Verify(c *gin.Context) {
	serial := strings.ToUpper(strings.TrimSpace(c.Param("serial")))
	v, err := h.svc.Verify(c.Request.Context(), serial)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, v)
}
