package banners

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/httperr"
	"github.com/eduevent/backend/pkg/response"
)

// BannerRequest is the multipart form for creating or updating a banner. The
// image travels in the "image" file field.
type BannerRequest struct {
	Title       string `form:"title" binding:"required,max=255"`
	Description string `form:"description" binding:"max=1000"`
	ButtonText  string `form:"button_text" binding:"max=100"`
	ButtonLink  string `form:"button_link" binding:"omitempty,url"`
	IsActive    *bool  `form:"is_active"`
	SortOrder   int    `form:"sort_order" binding:"min=0"`
}

func (r BannerRequest) input() Input {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return Input{
		Title:       r.Title,
		Description: r.Description,
		ButtonText:  r.ButtonText,
		ButtonLink:  r.ButtonLink,
		IsActive:    active,
		SortOrder:   r.SortOrder,
	}
}

// Handler handles banner HTTP endpoints.
type Handler struct {
	svc  *Service
	resp *httperr.Responder
}

// NewHandler creates a banners handler.
func NewHandler(svc *Service, resp *httperr.Responder) *Handler {
	return &Handler{svc: svc, resp: resp}
}

// ListActive handles GET /banners.
func (h *Handler) ListActive(c *gin.Context) {
	list, err := h.svc.ListActive(c.Request.Context())
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, list)
}

// ListAll handles GET /admin/banners.
func (h *Handler) ListAll(c *gin.Context) {
	list, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /admin/banners.
func (h *Handler) Create(c *gin.Context) {
	var req BannerRequest
	if err := c.ShouldBind(&req); err != nil {
		h.resp.Validation(c, err)
		return
	}
	fh, err := c.FormFile("image")
	if err != nil {
		h.resp.Error(c, apperr.WithReason(apperr.KindValidation, "file_missing", "banner image is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.resp.Error(c, apperr.Wrap(apperr.KindValidation, "open upload", err))
		return
	}
	defer f.Close()

	b, err := h.svc.Create(c.Request.Context(), req.input(), imageFrom(fh, f))
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.Created(c, b)
}

// Update handles PUT /admin/banners/:id. The image is optional.
func (h *Handler) Update(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	var req BannerRequest
	if err := c.ShouldBind(&req); err != nil {
		h.resp.Validation(c, err)
		return
	}
	var img *Image
	fh, err := c.FormFile("image")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			h.resp.Error(c, apperr.Wrap(apperr.KindValidation, "open upload", err))
			return
		}
		defer f.Close()
		i := imageFrom(fh, f)
		img = &i
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		h.resp.Validation(c, err)
		return
	}

	b, err := h.svc.Update(c.Request.Context(), id, req.input(), img)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, b)
}

// Toggle handles POST /admin/banners/:id/toggle.
func (h *Handler) Toggle(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	active, err := h.svc.Toggle(c.Request.Context(), id)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": id, "is_active": active})
}

// Delete handles DELETE /admin/banners/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.resp.Error(c, err)
		return
	}
	response.NoContent(c)
}

func imageFrom(fh *multipart.FileHeader, f multipart.File) Image {
	return Image{Filename: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Body: f}
}
