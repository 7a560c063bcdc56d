package registrations_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduevent/backend/internal/httperr"
	"github.com/eduevent/backend/internal/i18n"
	"github.com/eduevent/backend/internal/memstore"
	"github.com/eduevent/backend/internal/middleware"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/registrations"
	"github.com/eduevent/backend/pkg/response"
)

type handlerFixture struct {
	db       *memstore.DB
	notifier *fakeNotifier
	router   *gin.Engine
	actor    models.Actor
	event    *models.Event
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &handlerFixture{
		db:       memstore.New(),
		notifier: &fakeNotifier{},
		actor:    models.Actor{UserID: uuid.New(), Email: "dewi@example.com", Name: "Dewi", Role: models.RoleParticipant},
		event: &models.Event{
			ID:          uuid.New(),
			Title:       "Workshop Go",
			EventDate:   models.Date{Year: 2025, Month: time.April, Day: 2},
			Category:    models.CategoryTechnology,
			IsPublished: true,
		},
	}
	f.db.PutEvent(f.event)

	svc := registrations.NewService(f.db.Events(), f.db.Registrations(), f.notifier)
	tr, err := i18n.NewTranslator(i18n.ID)
	require.NoError(t, err)
	h := registrations.NewHandler(svc, httperr.NewResponder(tr, nil))

	r := gin.New()
	authed := r.Group("/", func(c *gin.Context) {
		c.Set(middleware.ContextActor, f.actor)
		c.Next()
	})
	authed.POST("/registrations", h.Register)
	authed.POST("/events/:id/register", h.RegisterForEvent)
	authed.GET("/me/registrations", h.Mine)
	authed.GET("/registrations/:id", h.Get)
	authed.POST("/registrations/:id/cancel", h.Cancel)
	authed.POST("/registrations/:id/resend-token", h.ResendToken)
	authed.GET("/registrations/:id/qr", h.QR)
	f.router = r
	return f
}

func (f *handlerFixture) do(method, path string, body any) (*httptest.ResponseRecorder, response.Body) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "en")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	var out response.Body
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func registrationID(t *testing.T, body response.Body) string {
	t.Helper()
	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	reg, ok := data["registration"].(map[string]any)
	require.True(t, ok)
	return reg["id"].(string)
}

func TestHandlerRegisterAndCancel(t *testing.T) {
	f := newHandlerFixture(t)

	w, body := f.do(http.MethodPost, "/registrations", map[string]string{"event_id": f.event.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Registration successful! Your attendance token has been emailed to you", body.Message)
	id := registrationID(t, body)

	w, body = f.do(http.MethodPost, "/events/"+f.event.ID.String()+"/register", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "already_registered", body.Code)

	w, body = f.do(http.MethodGet, "/me/registrations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := body.Data.([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "Workshop Go", list[0].(map[string]any)["event"].(map[string]any)["title"])

	w, _ = f.do(http.MethodGet, "/registrations/"+id+"/qr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")))

	w, _ = f.do(http.MethodPost, "/registrations/"+id+"/resend-token", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 2, f.notifier.count())

	w, body = f.do(http.MethodPost, "/registrations/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cancelled", body.Data.(map[string]any)["status"])

	w, body = f.do(http.MethodPost, "/registrations/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "already_cancelled", body.Code)

	w, body = f.do(http.MethodGet, "/registrations/"+id+"/qr", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "already_cancelled", body.Code)
}

func TestHandlerRegisterWarnsOnDeliveryFailure(t *testing.T) {
	f := newHandlerFixture(t)
	f.notifier.err = errors.New("smtp down")

	w, body := f.do(http.MethodPost, "/registrations", map[string]string{"event_id": f.event.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, registrations.WarningTokenDelivery, body.Data.(map[string]any)["warning"])
	assert.Contains(t, body.Message, "could not be sent")
}

func TestHandlerRegisterValidation(t *testing.T) {
	f := newHandlerFixture(t)

	w, _ := f.do(http.MethodPost, "/registrations", map[string]string{"event_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := f.do(http.MethodPost, "/registrations", map[string]string{"event_id": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body.Code)

	w, _ = f.do(http.MethodGet, "/registrations/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerForeignRegistrationIsHidden(t *testing.T) {
	f := newHandlerFixture(t)
	other := &models.Registration{
		ID: uuid.New(), EventID: f.event.ID, UserID: uuid.New(),
		Status: models.RegistrationConfirmed, AttendanceToken: "ABCDE12345",
	}
	f.db.PutRegistration(other)

	w, _ := f.do(http.MethodGet, "/registrations/"+other.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = f.do(http.MethodPost, "/registrations/"+other.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
