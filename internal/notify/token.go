package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduevent/backend/internal/i18n"
	"github.com/eduevent/backend/internal/models"
	"github.com/eduevent/backend/pkg/qr"
)

// LogStore records delivery attempts.
type LogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
}

// QRAttachmentName is the file name of the token QR code attached to the email.
const QRAttachmentName = "attendance-token.png"

var tokenTemplate = template.Must(template.New("token").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <p>{{.Greeting}}</p>
  <p>{{.Intro}}</p>
  <h2>{{.EventTitle}}</h2>
  <p>{{.Date}}{{if .Time}} &middot; {{.Time}}{{end}}{{if .Location}}<br>{{.Location}}{{end}}</p>
  <p style="font-size: 28px; letter-spacing: 4px; font-weight: bold;">{{.Token}}</p>
  {{if .OpensAt}}<p>{{.OpensLabel}}: {{.OpensAt}}</p>{{end}}
  {{if .Pending}}<p><em>{{.PendingNote}}</em></p>{{end}}
</body>
</html>
`))

type tokenView struct {
	Lang        string
	Greeting    string
	Intro       string
	EventTitle  string
	Date        string
	Time        string
	Location    string
	Token       string
	OpensLabel  string
	OpensAt     string
	Pending     bool
	PendingNote string
}

// TokenNotifier renders the attendance-token email, sends it and logs the attempt.
type TokenNotifier struct {
	mailer Mailer
	logs   LogStore
	tr     *i18n.Translator
	lang   i18n.Language
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewTokenNotifier creates a TokenNotifier. logs may be nil to skip email_logs rows.
func NewTokenNotifier(mailer Mailer, logs LogStore, tr *i18n.Translator, loc *time.Location, logger *zap.Logger) *TokenNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TokenNotifier{
		mailer: mailer,
		logs:   logs,
		tr:     tr,
		lang:   tr.Default(),
		loc:    loc,
		logger: logger,
		now:    time.Now,
	}
}

// SendToken delivers msg. The email_logs row is written whatever the outcome;
// a failure to write it is logged and does not fail the delivery.
func (n *TokenNotifier) SendToken(ctx context.Context, msg TokenEmail) error {
	out, err := n.Render(msg)
	if err != nil {
		return err
	}
	sendErr := n.mailer.Send(ctx, out)
	n.record(ctx, msg, out.Subject, sendErr)
	if sendErr != nil {
		return fmt.Errorf("send token email: %w", sendErr)
	}
	return nil
}

// Render builds the message without sending it.
func (n *TokenNotifier) Render(msg TokenEmail) (Message, error) {
	t := func(key string) string { return n.tr.T(n.lang, key) }

	view := tokenView{
		Lang:        n.lang.String(),
		Greeting:    fmt.Sprintf(t("email.token.greeting"), msg.RecipientName),
		Intro:       t("email.token.intro"),
		EventTitle:  msg.EventTitle,
		Date:        n.tr.FormatDate(n.lang, msg.EventDate),
		Location:    msg.Location,
		Token:       msg.Token,
		OpensLabel:  t("email.token.opens"),
		Pending:     msg.Status == models.RegistrationPending,
		PendingNote: t("email.token.pending"),
	}
	if msg.StartTime != nil {
		view.Time = msg.StartTime.String()
		if msg.EndTime != nil {
			view.Time += " - " + msg.EndTime.String()
		}
	}
	if !msg.CheckInOpensAt.IsZero() {
		view.OpensAt = msg.CheckInOpensAt.In(n.loc).Format("02-01-2006 15:04 MST")
	}

	var buf bytes.Buffer
	if err := tokenTemplate.Execute(&buf, view); err != nil {
		return Message{}, fmt.Errorf("render token email: %w", err)
	}
	png, err := qr.PNG(msg.Token, qr.DefaultSize)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ToEmail:     msg.RecipientEmail,
		ToName:      msg.RecipientName,
		Subject:     fmt.Sprintf(t("email.token.subject"), msg.EventTitle),
		HTML:        buf.String(),
		Attachments: []Attachment{{Name: QRAttachmentName, Content: png}},
	}, nil
}

func (n *TokenNotifier) record(ctx context.Context, msg TokenEmail, subject string, sendErr error) {
	if n.logs == nil {
		return
	}
	el := &models.EmailLog{
		ID:             uuid.New(),
		EventID:        &msg.EventID,
		RegistrationID: &msg.RegistrationID,
		EmailType:      msg.Type,
		RecipientEmail: msg.RecipientEmail,
		Subject:        subject,
		Status:         models.EmailLogStatusSent,
	}
	if sendErr != nil {
		el.Status = models.EmailLogStatusFailed
		el.ErrorMessage = sendErr.Error()
	} else {
		sentAt := n.now()
		el.SentAt = &sentAt
	}
	if err := n.logs.Create(context.WithoutCancel(ctx), el); err != nil {
		n.logger.Warn("record email log",
			zap.String("registration_id", msg.RegistrationID.String()),
			zap.Error(err))
	}
}
