// Package i18n translates the site pages. Messages are embedded YAML files
// per language; the request's Accept-Language picks the language.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Translator holds the parsed messages of every language.
type Translator struct {
	bundle   *i18n.Bundle
	fallback string
}

// New parses the embedded messages. defaultLang is used when a request
// accepts no supported language.
func New(defaultLang string) (*Translator, error) {
	tag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", defaultLang, err)
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + f.Name())
		if err != nil {
			return nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(data, f.Name()); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.Name(), err)
		}
	}
	return &Translator{bundle: bundle, fallback: tag.String()}, nil
}

// Languages lists the languages with messages.
func (t *Translator) Languages() []string {
	tags := t.bundle.LanguageTags()
	out := make([]string, len(tags))
	for i, tag := range tags {
		out[i] = tag.String()
	}
	return out
}

// Localizer returns a localizer for an Accept-Language header value.
func (t *Translator) Localizer(acceptLanguage string) *Localizer {
	return &Localizer{l: i18n.NewLocalizer(t.bundle, acceptLanguage, t.fallback)}
}

// Localizer translates messages into one language.
type Localizer struct {
	l *i18n.Localizer
}

// T translates messageID. Unknown ids are returned unchanged.
func (l *Localizer) T(messageID string) string {
	msg, err := l.l.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		return messageID
	}
	return msg
}

// Tf translates messageID with template data.
func (l *Localizer) Tf(messageID string, data map[string]any) string {
	msg, err := l.l.Localize(&i18n.LocalizeConfig{MessageID: messageID, TemplateData: data})
	if err != nil {
		return messageID
	}
	return msg
}

// Plural translates messageID choosing the plural form for count.
func (l *Localizer) Plural(messageID string, count int) string {
	msg, err := l.l.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
	if err != nil {
		return messageID
	}
	return msg
}

// Language returns the language the localizer resolved to for messageID.
func (l *Localizer) Language(messageID string) string {
	_, tag, err := l.l.LocalizeWithTag(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		return ""
	}
	return tag.String()
}
