package notify_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduevent/backend/internal/i18n"
	"github.com/eduevent/backend/internal/memstore"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/internal/notify"
)

func TestBrevoMailerSend(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<1@brevo>"}`))
	}))
	defer srv.Close()

	m := notify.NewBrevoMailer("secret", notify.Sender{Name: "EduEvent", Email: "no-reply@eduevent.id"}, time.Second).
		WithEndpoint(srv.URL)
	err := m.Send(context.Background(), notify.Message{
		ToEmail: "sari@example.com", ToName: "Sari", Subject: "Hi", HTML: "<p>hi</p>",
		Attachments: []notify.Attachment{{Name: "a.png", Content: []byte("png")}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hi", got["subject"])
	assert.Equal(t, "no-reply@eduevent.id", got["sender"].(map[string]any)["email"])
	to := got["to"].([]any)[0].(map[string]any)
	assert.Equal(t, "sari@example.com", to["email"])
	att := got["attachment"].([]any)[0].(map[string]any)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("png")), att["content"])
}

func TestBrevoMailerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":"unauthorized","message":"Key not found"}`))
	}))
	defer srv.Close()

	m := notify.NewBrevoMailer("bad", notify.Sender{Email: "x@example.com"}, time.Second).WithEndpoint(srv.URL)
	err := m.Send(context.Background(), notify.Message{ToEmail: "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "Key not found")
}

type captureMailer struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return m.err
}

func tokenEmail() notify.TokenEmail {
	return notify.TokenEmail{
		Type:           models.EmailTypeAttendanceToken,
		EventID:        uuid.New(),
		RegistrationID: uuid.New(),
		RecipientEmail: "sari@example.com",
		RecipientName:  "Sari",
		EventTitle:     "Workshop <Go>",
		EventDate:      models.Date{Year: 2025, Month: time.March, Day: 10},
		StartTime:      &models.TimeOfDay{Hour: 9},
		Location:       "Aula",
		Token:          "ABCDE12345",
		Status:         models.RegistrationConfirmed,
		CheckInOpensAt: time.Date(2025, 3, 10, 1, 30, 0, 0, time.UTC),
	}
}

func newNotifier(t *testing.T, mailer notify.Mailer, db *memstore.DB) *notify.TokenNotifier {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.EN)
	require.NoError(t, err)
	wib := time.FixedZone("WIB", 7*3600)
	return notify.NewTokenNotifier(mailer, db.EmailLogs(), tr, wib, nil)
}

func TestTokenNotifierSends(t *testing.T) {
	db := memstore.New()
	mailer := &captureMailer{}
	n := newNotifier(t, mailer, db)
	msg := tokenEmail()

	require.NoError(t, n.SendToken(context.Background(), msg))
	require.Len(t, mailer.msgs, 1)
	out := mailer.msgs[0]
	assert.Equal(t, "Attendance Token - Workshop <Go>", out.Subject)
	assert.Contains(t, out.HTML, "ABCDE12345")
	assert.Contains(t, out.HTML, "Workshop &lt;Go&gt;")
	assert.Contains(t, out.HTML, "10 March 2025")
	assert.Contains(t, out.HTML, "10-03-2025 08:30 WIB")
	assert.NotContains(t, out.HTML, "awaiting payment")
	require.Len(t, out.Attachments, 1)
	assert.True(t, strings.HasPrefix(string(out.Attachments[0].Content), "\x89PNG"))

	logs, err := db.EmailLogs().ListByEvent(context.Background(), msg.EventID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.EmailLogStatusSent, logs[0].Status)
	assert.NotNil(t, logs[0].SentAt)
	assert.Equal(t, msg.RegistrationID, *logs[0].RegistrationID)
}

func TestTokenNotifierPendingNote(t *testing.T) {
	mailer := &captureMailer{}
	n := newNotifier(t, mailer, memstore.New())
	msg := tokenEmail()
	msg.Status = models.RegistrationPending

	out, err := n.Render(msg)
	require.NoError(t, err)
	assert.Contains(t, out.HTML, "awaiting payment")
}

func TestTokenNotifierFailureIsLogged(t *testing.T) {
	db := memstore.New()
	mailer := &captureMailer{err: errors.New("brevo status 500")}
	n := newNotifier(t, mailer, db)
	msg := tokenEmail()

	err := n.SendToken(context.Background(), msg)
	require.Error(t, err)

	logs, err := db.EmailLogs().ListByEvent(context.Background(), msg.EventID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.EmailLogStatusFailed, logs[0].Status)
	assert.Equal(t, "brevo status 500", logs[0].ErrorMessage)
	assert.Nil(t, logs[0].SentAt)
}

func TestTokenNotifierLogStoreFailureDoesNotFailDelivery(t *testing.T) {
	db := memstore.New()
	db.Fail("email_logs.create", assert.AnError)
	n := newNotifier(t, &captureMailer{}, db)
	assert.NoError(t, n.SendToken(context.Background(), tokenEmail()))
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, notify.NewLogMailer(nil).Send(context.Background(), notify.Message{ToEmail: "a@example.com"}))
}
