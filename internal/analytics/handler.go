package analytics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/httperr"
	"github.com/eduevent/backend/pkg/response"
)

// Handler serves the admin dashboard and exports.
type Handler struct {
	svc  *Service
	resp *httperr.Responder
	loc  *time.Location
}

// NewHandler creates an analytics handler. loc is the zone export timestamps are written in.
func NewHandler(svc *Service, resp *httperr.Responder, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{svc: svc, resp: resp, loc: loc}
}

// Dashboard handles GET /admin/dashboard?year=.
func (h *Handler) Dashboard(c *gin.Context) {
	year := 0
	if v := c.Query("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 2000 || y > 9999 {
			h.resp.Error(c, apperr.WithReason(apperr.KindValidation, "year", "invalid year"))
			return
		}
		year = y
	}
	d, err := h.svc.Dashboard(c.Request.Context(), year)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	response.OK(c, d)
}

// Export handles GET /admin/events/:id/export as a CSV download.
func (h *Handler) Export(c *gin.Context) {
	id, ok := h.resp.ParamID(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.Participants(c.Request.Context(), id)
	if err != nil {
		h.resp.Error(c, err)
		return
	}
	filename := fmt.Sprintf("participants-%s-%s.csv", id.String()[:8], time.Now().In(h.loc).Format("2006-01-02"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Status(http.StatusOK)
	if err := WriteParticipantsCSV(c.Writer, list, h.loc); err != nil {
		_ = c.Error(err)
	}
}
