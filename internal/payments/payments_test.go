package payments_test

import (
	"context"
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

	"github.com/eduevent/backend/internal/apperr"
	"github.com/eduevent/backend/internal/httperr"
	"github.com/eduevent/backend/internal/i18n"
	"github.com/eduevent/backend/internal/memstore"
	"github.com/eduevent/backend/internal/middleware"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/notify"
	"github.com/eduevent/backend/internal/payments"
	"github.com/eduevent/backend/internal/registrations"
	"github.com/eduevent/backend/pkg/response"
)

type noopNotifier struct{}

func (noopNotifier) SendToken(context.Context, notify.TokenEmail) error { return nil }

// paidRegistration registers owner for a paid event and returns the pending payment.
func paidRegistration(t *testing.T, db *memstore.DB, owner models.Actor) *models.Payment {
	t.Helper()
	ev := &models.Event{
		ID:          uuid.New(),
		Title:       "Konser Amal",
		EventDate:   models.Date{Year: 2025, Month: time.June, Day: 1},
		Price:       50000,
		IsPublished: true,
	}
	db.PutEvent(ev)
	svc := registrations.NewService(db.Events(), db.Registrations(), noopNotifier{})
	res, err := svc.Register(context.Background(), ev.ID, owner, "")
	require.NoError(t, err)
	require.NotNil(t, res.Payment)
	return res.Payment
}

func TestStatus(t *testing.T) {
	db := memstore.New()
	owner := models.Actor{UserID: uuid.New(), Role: models.RoleParticipant}
	p := paidRegistration(t, db, owner)
	svc := payments.NewService(db.Payments(), nil)
	ctx := context.Background()

	got, err := svc.Status(ctx, p.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, got.Status)
	assert.Equal(t, int64(50000), got.Amount)

	_, err = svc.Status(ctx, p.ID, models.Actor{UserID: uuid.New()})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.Status(ctx, p.ID, models.Actor{UserID: uuid.New(), Role: models.RoleAdmin})
	assert.NoError(t, err)

	db.Fail("payments.get", errors.New("conn reset"))
	_, err = svc.Status(ctx, p.ID, owner)
	assert.True(t, apperr.Is(err, apperr.KindStorageUnavailable))
}

func TestHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := memstore.New()
	owner := models.Actor{UserID: uuid.New(), Role: models.RoleParticipant}
	p := paidRegistration(t, db, owner)
	tr, err := i18n.NewTranslator(i18n.ID)
	require.NoError(t, err)
	h := payments.NewHandler(payments.NewService(db.Payments(), nil), httperr.NewResponder(tr, nil))

	r := gin.New()
	r.GET("/payments/:id/status", func(c *gin.Context) {
		c.Set(middleware.ContextActor, owner)
		c.Next()
	}, h.Status)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payments/"+p.ID.String()+"/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "pending", body.Data.(map[string]any)["status"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/payments/bad/status", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
