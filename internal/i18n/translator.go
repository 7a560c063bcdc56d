// Package i18n localizes API messages. Translations are embedded JSON files,
// one per language, keyed by message key.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/eduevent/backend/internal/models"
)

//go:embed translations/*.json
var translationsFS embed.FS

type Language string

const (
	ID Language = "id"
	EN Language = "en"
)

func (l Language) String() string {
	return string(l)
}

func ParseLanguage(lang string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "id":
		return ID, nil
	case "en":
		return EN, nil
	default:
		return "", fmt.Errorf("unsupported language: %s", lang)
	}
}

type Translations map[string]string

type Translator struct {
	translations map[Language]Translations
	defaultLang  Language
}

// NewTranslator loads the embedded translations.
func NewTranslator(defaultLang Language) (*Translator, error) {
	t := &Translator{
		translations: make(map[Language]Translations),
		defaultLang:  defaultLang,
	}
	entries, err := translationsFS.ReadDir("translations")
	if err != nil {
		return nil, fmt.Errorf("read translations: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".json" {
			continue
		}
		lang, err := ParseLanguage(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			return nil, fmt.Errorf("translation file %s: %w", e.Name(), err)
		}
		raw, err := translationsFS.ReadFile("translations/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		var tr Translations
		if err := json.Unmarshal(raw, &tr); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Name(), err)
		}
		t.translations[lang] = tr
	}
	if _, ok := t.translations[defaultLang]; !ok {
		return nil, fmt.Errorf("no translations for default language %s", defaultLang)
	}
	return t, nil
}

// Default returns the fallback language.
func (t *Translator) Default() Language { return t.defaultLang }

// T returns the message for key in lang, falling back to the default language
// and finally to the key itself.
func (t *Translator) T(lang Language, key string) string {
	if tr, ok := t.translations[lang]; ok {
		if v, ok := tr[key]; ok {
			return v
		}
	}
	if v, ok := t.translations[t.defaultLang][key]; ok {
		return v
	}
	return key
}

// Negotiate picks the first supported language of an Accept-Language header.
func (t *Translator) Negotiate(acceptLanguage string) Language {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		tag = strings.SplitN(tag, "-", 2)[0]
		if lang, err := ParseLanguage(tag); err == nil {
			if _, ok := t.translations[lang]; ok {
				return lang
			}
		}
	}
	return t.defaultLang
}

// FormatDate renders d as "10 March 2025" using the language's month names.
func (t *Translator) FormatDate(lang Language, d models.Date) string {
	if d.IsZero() {
		return ""
	}
	month := t.T(lang, fmt.Sprintf("month.%d", int(d.Month)))
	return fmt.Sprintf("%d %s %d", d.Day, month, d.Year)
}
