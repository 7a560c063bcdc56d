package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduevent/backend/internal/metrics"
	"github.com/eduevent/backend/internal/models"
)

type stubValidator map[string]models.Actor

func (v stubValidator) Actor(token string) (models.Actor, error) {
	a, ok := v[token]
	if !ok {
		return models.Actor{}, errors.New("invalid")
	}
	return a, nil
}

func newRouter(t *testing.T) (*gin.Engine, models.Actor, models.Actor) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	admin := models.Actor{UserID: uuid.New(), Role: models.RoleAdmin}
	user := models.Actor{UserID: uuid.New(), Role: models.RoleParticipant}
	v := stubValidator{"admin-token": admin, "user-token": user}

	r := gin.New()
	r.Use(Logger(zap.NewNop()))
	authed := r.Group("/", JWT(v))
	authed.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, ActorFrom(c).UserID.String())
	})
	authed.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r, admin, user
}

func do(r http.Handler, path, auth string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	r, _, user := newRouter(t)

	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/me", "Bearer nope").Code)

	w := do(r, "/me", "Bearer user-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.UserID.String(), w.Body.String())

	w = do(r, "/me?token=user-token", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole(t *testing.T) {
	r, _, _ := newRouter(t)
	assert.Equal(t, http.StatusForbidden, do(r, "/admin", "Bearer user-token").Code)
	assert.Equal(t, http.StatusOK, do(r, "/admin", "Bearer admin-token").Code)
}

func TestActorFromWithoutJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, models.Actor{}, ActorFrom(c))
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://localhost:3000"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSWildcardExposesDisposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("*"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Disposition", w.Header().Get("Access-Control-Expose-Headers"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Accept-Language")
}

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New(prometheus.NewRegistry())
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/events/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, "/events/1", "")
	do(r, "/events/2", "")
	do(r, "/missing", "")

	assert.Equal(t, 2, testutil.CollectAndCount(m.HTTPDuration))
}
