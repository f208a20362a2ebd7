// Package i18n localizes bot messages from embedded YAML catalogs.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"strings"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var locales embed.FS

// Translator renders message ids in the configured languages.
type Translator struct {
	fallback   string
	languages  []string
	localizers map[string]*goi18n.Localizer
}

// New loads the embedded catalogs. Every language in languages must have a
// catalog, and fallback must be one of them.
func New(fallback string, languages []string) (*Translator, error) {
	tag, err := language.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("parse default language %q: %w", fallback, err)
	}

	bundle := goi18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}
	available := make(map[string]bool, len(entries))
	for _, entry := range entries {
		name := path.Join("locales", entry.Name())
		data, err := locales.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, name); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		available[strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))] = true
	}

	t := &Translator{
		fallback:   fallback,
		localizers: make(map[string]*goi18n.Localizer),
	}
	for _, lang := range languages {
		if !available[lang] {
			return nil, fmt.Errorf("no catalog for language %q", lang)
		}
		t.languages = append(t.languages, lang)
		t.localizers[lang] = goi18n.NewLocalizer(bundle, lang, fallback)
	}
	if _, ok := t.localizers[fallback]; !ok {
		return nil, fmt.Errorf("default language %q is not enabled", fallback)
	}
	return t, nil
}

// Supports reports whether lang is enabled.
func (t *Translator) Supports(lang string) bool {
	_, ok := t.localizers[lang]
	return ok
}

// Languages returns the enabled languages.
func (t *Translator) Languages() []string {
	return t.languages
}

// Default returns the fallback language.
func (t *Translator) Default() string {
	return t.fallback
}

// T renders the message id in lang. Unknown languages use the fallback and
// unknown ids render as the id itself.
func (t *Translator) T(lang, id string, data map[string]any) string {
	localizer, ok := t.localizers[lang]
	if !ok {
		localizer = t.localizers[t.fallback]
	}
	msg, err := localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if err != nil {
		return id
	}
	return msg
}
