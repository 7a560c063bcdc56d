package realtime_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduevent/backend/internal/attendance"
	"github.com/eduevent/backend/internal/middleware"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/realtime"
)

func TestServeWsDeliversCheckIns(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := realtime.NewHub(nil, nil, nil)
	r := gin.New()
	r.GET("/admin/events/:id/live", func(c *gin.Context) {
		c.Set(middleware.ContextActor, models.Actor{UserID: uuid.New(), Role: models.RoleAdmin})
		c.Next()
	}, realtime.ServeWs(hub, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	eventID := uuid.New()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/admin/events/" + eventID.String() + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Watchers(eventID) == 1 }, 2*time.Second, 10*time.Millisecond)

	var msg realtime.WSMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, realtime.EventWatchers, msg.Event)

	require.NoError(t, hub.PublishCheckIn(context.Background(), eventID, attendance.CheckInNotice{Name: "Sari"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, realtime.EventCheckIn, msg.Event)
	assert.Contains(t, string(msg.Data), `"name":"Sari"`)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Watchers(eventID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWsRejectsBadEventID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin/events/:id/live", realtime.ServeWs(realtime.NewHub(nil, nil, nil), nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/admin/events/nope/live", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}
