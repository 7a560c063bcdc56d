package events

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/httperr"
	"github.com/eduevent/backend/internal/middleware"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/response"
)

// EventRequest is the body for POST /admin/events and PUT /admin/events/:id.
type EventRequest struct {
	Title           string `json:"title" binding:"required,max=255"`
	Description     string `json:"description"`
	EventDate       string `json:"event_date" binding:"required,datetime=2006-01-02"`
	StartTime       string `json:"start_time" binding:"omitempty,timeofday"`
	EndTime         string `json:"end_time" binding:"omitempty,timeofday"`
	Location        string `json:"location" binding:"required,max=255"`
	Category        string `json:"category" binding:"required,eventcategory"`
	Organizer       string `json:"organizer" binding:"max=255"`
	IsPublished     bool   `json:"is_published"`
	Price           int64  `json:"price" binding:"min=0"`
	MaxParticipants *int   `json:"max_participants" binding:"omitempty,min=1"`
}

func (r EventRequest) input() (Input, error) {
	date, err := models.ParseDate(r.EventDate)
	if err != nil {
		return Input{}, err
	}
	in := Input{
		Title:           r.Title,
		Description:     r.Description,
		EventDate:       date,
		Location:        r.Location,
		Category:        models.EventCategory(r.Category),
		Organizer:       r.Organizer,
		IsPublished:     r.IsPublished,
		Price:           r.Price,
		MaxParticipants: r.MaxParticipants,
	}
	if in.StartTime, err = optionalTime(r.StartTime); err != nil {
		return Input{}, err
	}
	if in.EndTime, err = optionalTime(r.EndTime); err != nil {
		return Input{}, err
	}
	return in, nil
}

func optionalTime(s string) (*models.TimeOfDay, error) {
	if s == "" {
		return nil, nil
	}
	t, err := models.ParseTimeOfDay(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// PublishRequest is the body for POST /admin/events/:id/publish.
type PublishRequest struct {
	IsPublished *bool `json:"is_published" binding:"required"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	svc  *Service
	resp *httperr.Responder
}

// NewHandler creates an events handler.
func NewHandler(svc *Service, resp *httperr.Responder) *Handler {
	return &Handler{svc: svc, resp: resp}
}

func filterFrom(c *gin.Context) ListFilter {
	page, _ := strconv.Atoi(c.Query("page"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	return ListFilter{
		Query:    c.Query("q"),
		Category: models.EventCategory(c.Query("category")),
		Sort:     c.Query("sort"),
		Page:     page,
		PerPage:  perPage,
	}
}

// List handles GET /events. Only published events are listed.
func (h *Handler) List(c *gin.Context) {
	h.list(c, true)
}

// AdminList handles GET /admin/events.
func (h *Handler) AdminList(c *gin.Context) {
	h.list(c, false)
}

func (h *Handler) list(c *gin.Context, publishedOnly bool) {
	f := filterFrom(c)
	f.PublishedOnly = publishedOnly
	f.normalize()
	list, total, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.Paged(c, list, f.Page, f.PerPage, total)
}

// Get handles GET /events/:id.
func (h *Handler) Get(c *gin.Context) {
	h.get(c, false)
}

// AdminGet handles GET /admin/events/:id.
func (h *Handler) AdminGet(c *gin.Context) {
	h.get(c, true)
}

func (h *Handler) get(c *gin.Context, includeUnpublished bool) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	v, err := h.svc.Get(c.Request.Context(), id, includeUnpublished)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, v)
}

// Create handles POST /admin/events.
func (h *Handler) Create(c *gin.Context) {
	in, ok := h.bind(c)
	if !ok {
		return
	}
	v, err := h.svc.Create(c.Request.Context(), middleware.ActorFrom(c), in)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.Created(c, v)
}

// Update handles PUT /admin/events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	in, ok := h.bind(c)
	if !ok {
		return
	}
	v, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, v)
}

func (h *Handler) bind(c *gin.Context) (Input, bool) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.Validation(c, err)
		return Input{}, false
	}
	in, err := req.input()
	if err != nil {
		h.resp.Validation(c, err)
		return Input{}, false
	}
	return in, true
}

// Publish handles POST /admin/events/:id/publish.
func (h *Handler) Publish(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.resp.Validation(c, err)
		return
	}
	v, err := h.svc.SetPublished(c.Request.Context(), id, *req.IsPublished)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, v)
}

// Delete handles DELETE /admin/events/:id.
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

// UploadFlyer handles POST /admin/events/:id/flyer (multipart field "flyer").
func (h *Handler) UploadFlyer(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	fh, err := c.FormFile("flyer")
	if err != nil {
		h.resp.Error(c, apperr.WithReason(apperr.KindValidation, "file_missing", "flyer file is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.resp.Error(c, apperr.Wrap(apperr.KindValidation, "open upload", err))
		return
	}
	defer f.Close()

	v, err := h.svc.UploadFlyer(c.Request.Context(), id, fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, v)
}

// Categories handles GET /events/categories.
func (h *Handler) Categories(c *gin.Context) {
	response.OK(c, models.Categories)
}
