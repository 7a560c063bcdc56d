package certificates

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/eduevent/backend/internal/i18n"
	"github.com/eduevent/backend/pkg/qr"
)

//go:embed templates/certificate.html
var certificateTemplate string

// HTMLRenderer renders a printable HTML certificate with a QR code of the serial number.
type HTMLRenderer struct {
	tmpl   *template.Template
	tr     *i18n.Translator
	lang   i18n.Language
	verify string
}

// NewHTMLRenderer parses the embedded template. verifyURL, when set, is
// prefixed to the serial number in the QR code.
func NewHTMLRenderer(tr *i18n.Translator, lang i18n.Language, verifyURL string) (*HTMLRenderer, error) {
	tmpl, err := template.New("certificate").Parse(certificateTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse certificate template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl, tr: tr, lang: lang, verify: verifyURL}, nil
}

func (r *HTMLRenderer) ContentType() string { return "text/html; charset=utf-8" }

func (r *HTMLRenderer) Extension() string { return ".html" }

// Render executes the template. It honours ctx cancellation before and after the
// QR encoding, which dominates render time.
func (r *HTMLRenderer) Render(ctx context.Context, data RenderData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	code, err := qr.DataURI(r.verify+data.SerialNumber, 200)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	view := struct {
		RenderData
		Lang        string
		Title       string
		PresentedTo string
		ForAttend   string
		SerialLabel string
		DateText    string
		IssuedText  string
		QR          template.URL
	}{
		RenderData:  data,
		Lang:        r.lang.String(),
		Title:       r.tr.T(r.lang, "certificate.title"),
		PresentedTo: r.tr.T(r.lang, "certificate.presented_to"),
		ForAttend:   r.tr.T(r.lang, "certificate.for_attending"),
		SerialLabel: r.tr.T(r.lang, "certificate.serial"),
		DateText:    r.tr.FormatDate(r.lang, data.EventDate),
		IssuedText:  data.IssuedAt.Format("2006-01-02"),
		QR:          template.URL(code),
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("execute certificate template: %w", err)
	}
	return buf.Bytes(), nil
}
