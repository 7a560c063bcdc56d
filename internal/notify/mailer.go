package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// BrevoEndpoint is the transactional email endpoint of the Brevo API.
const BrevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// Mailer sends one message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Sender is the From identity of outgoing email.
type Sender struct {
	Name  string
	Email string
}

// BrevoMailer sends email through the Brevo HTTP API.
type BrevoMailer struct {
	apiKey   string
	endpoint string
	from     Sender
	client   *http.Client
}

// NewBrevoMailer creates a Brevo client. timeout bounds each request.
func NewBrevoMailer(apiKey string, from Sender, timeout time.Duration) *BrevoMailer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BrevoMailer{
		apiKey:   apiKey,
		endpoint: BrevoEndpoint,
		from:     from,
		client:   &http.Client{Timeout: timeout},
	}
}

// WithEndpoint points the mailer at another URL, for tests.
func (m *BrevoMailer) WithEndpoint(url string) *BrevoMailer {
	m.endpoint = url
	return m
}

type brevoContact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoAttachment struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type brevoRequest struct {
	Sender      brevoContact      `json:"sender"`
	To          []brevoContact    `json:"to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"htmlContent"`
	Attachment  []brevoAttachment `json:"attachment,omitempty"`
}

type brevoError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Send posts msg to Brevo. Any non-2xx answer is an error carrying Brevo's message.
func (m *BrevoMailer) Send(ctx context.Context, msg Message) error {
	body := brevoRequest{
		Sender:      brevoContact{Name: m.from.Name, Email: m.from.Email},
		To:          []brevoContact{{Name: msg.ToName, Email: msg.ToEmail}},
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
	}
	for _, a := range msg.Attachments {
		body.Attachment = append(body.Attachment, brevoAttachment{
			Name:    a.Name,
			Content: base64.StdEncoding.EncodeToString(a.Content),
		})
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode brevo request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build brevo request: %w", err)
	}
	req.Header.Set("api-key", m.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("brevo request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var be brevoError
	if json.Unmarshal(respBody, &be) == nil && be.Message != "" {
		return fmt.Errorf("brevo status %d (%s): %s", resp.StatusCode, be.Code, be.Message)
	}
	return fmt.Errorf("brevo status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no Brevo key is configured.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email not sent, no provider configured",
		zap.String("to", msg.ToEmail),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)))
	return nil
}
