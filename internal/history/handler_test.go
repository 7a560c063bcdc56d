package history_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduevent/backend/internal/history"
	"github.com/eduevent/backend/internal/httperr"
	"github.com/eduevent/backend/internal/i18n"
	"github.com/eduevent/backend/internal/memstore"
	"github.com/eduevent/backend/internal/middleware"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/timewindow"
)

func TestHandlerHistory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := memstore.New()
	actor := models.Actor{UserID: uuid.New(), Role: models.RoleParticipant}
	ev := &models.Event{ID: uuid.New(), Title: "Seminar", EventDate: models.Date{Year: 2025, Month: time.May, Day: 5}}
	db.PutEvent(ev)
	db.PutRegistration(&models.Registration{
		ID: uuid.New(), EventID: ev.ID, UserID: actor.UserID, Status: models.RegistrationConfirmed,
	})

	svc := history.NewService(db.History(), timewindow.DefaultPolicy(time.UTC), nil)
	svc.SetClock(func() time.Time { return time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC) })
	tr, err := i18n.NewTranslator(i18n.ID)
	require.NoError(t, err)
	h := history.NewHandler(svc, httperr.NewResponder(tr, nil))

	r := gin.New()
	r.GET("/me/history", func(c *gin.Context) {
		c.Set(middleware.ContextActor, actor)
		c.Next()
	}, h.History)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me/history", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			Items []struct {
				OverallStatus string `json:"overall_status"`
			} `json:"items"`
			Statistics history.Statistics `json:"statistics"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data.Items, 1)
	assert.Equal(t, "upcoming", body.Data.Items[0].OverallStatus)
	assert.Equal(t, 1, body.Data.Statistics.Upcoming)

	db.Fail("history.list", assert.AnError)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me/history", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
