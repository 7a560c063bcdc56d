package i18n

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduevent/backend/internal/models"
)

func newTranslator(t *testing.T) *Translator {
	t.Helper()
	tr, err := NewTranslator(ID)
	require.NoError(t, err)
	return tr
}

func TestT(t *testing.T) {
	tr := newTranslator(t)

	assert.Equal(t, "Token tidak valid", tr.T(ID, "invalid_token"))
	assert.Equal(t, "Invalid attendance token", tr.T(EN, "invalid_token"))
	assert.Equal(t, "Token tidak valid", tr.T(Language("fr"), "invalid_token"))
	assert.Equal(t, "no.such.key", tr.T(EN, "no.such.key"))
}

func TestEveryKeyTranslated(t *testing.T) {
	tr := newTranslator(t)
	for key := range tr.translations[ID] {
		_, ok := tr.translations[EN][key]
		assert.True(t, ok, "missing en translation for %q", key)
	}
	for key := range tr.translations[EN] {
		_, ok := tr.translations[ID][key]
		assert.True(t, ok, "missing id translation for %q", key)
	}
}

func TestNegotiate(t *testing.T) {
	tr := newTranslator(t)

	assert.Equal(t, EN, tr.Negotiate("en-US,en;q=0.9"))
	assert.Equal(t, ID, tr.Negotiate("id-ID"))
	assert.Equal(t, EN, tr.Negotiate("fr-FR, en;q=0.5"))
	assert.Equal(t, ID, tr.Negotiate(""))
}

func TestFormatDate(t *testing.T) {
	tr := newTranslator(t)
	d := models.Date{Year: 2025, Month: time.March, Day: 10}

	assert.Equal(t, "10 Maret 2025", tr.FormatDate(ID, d))
	assert.Equal(t, "10 March 2025", tr.FormatDate(EN, d))
	assert.Equal(t, "", tr.FormatDate(EN, models.Date{}))
}
