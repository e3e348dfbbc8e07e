// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package i18n localises page strings and outgoing login emails.
package i18n

import (
	"context"
	"embed"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed translations/*.toml
var translationFS embed.FS

// Supported lists the languages with a translation file, default first.
var Supported = []language.Tag{language.English, language.German}

var (
	mu      sync.RWMutex
	bundle  *i18n.Bundle
	matcher = language.NewMatcher(Supported)
)

type localeContextKey struct{}
type localizerContextKey struct{}

// Init loads the embedded translations. It is safe to call more than once.
func Init() error {
	b := i18n.NewBundle(Supported[0])
	b.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, tag := range Supported {
		if _, err := b.LoadMessageFileFS(translationFS, "translations/active."+tag.String()+".toml"); err != nil {
			return err
		}
	}

	mu.Lock()
	bundle = b
	mu.Unlock()
	return nil
}

func currentBundle() *i18n.Bundle {
	mu.RLock()
	defer mu.RUnlock()
	return bundle
}

// WithLocale adds the locale and a matching localizer to the context.
func WithLocale(ctx context.Context, lang language.Tag) context.Context {
	base, _ := lang.Base()
	locale := base.String()
	ctx = context.WithValue(ctx, localeContextKey{}, locale)
	if b := currentBundle(); b != nil {
		ctx = context.WithValue(ctx, localizerContextKey{}, i18n.NewLocalizer(b, locale))
	}
	return ctx
}

// GetLocale returns the current locale from context.
func GetLocale(ctx context.Context) string {
	if locale, ok := ctx.Value(localeContextKey{}).(string); ok {
		return locale
	}
	return "en"
}

// T translates a message by ID.
func T(ctx context.Context, messageID string) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: messageID})
}

// TData translates a message with template data.
func TData(ctx context.Context, messageID string, data map[string]any) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: messageID, TemplateData: data})
}

// TPlural translates a message with plural support.
func TPlural(ctx context.Context, messageID string, count int) string {
	return localize(ctx, &i18n.LocalizeConfig{
		MessageID:    messageID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}

// MatchLanguage matches the best language from Accept-Language header.
func MatchLanguage(acceptLanguage string) language.Tag {
	tag, _ := language.MatchStrings(matcher, acceptLanguage)
	return tag
}

// localize falls back to the message ID when the bundle is not loaded or
// the message is unknown.
func localize(ctx context.Context, cfg *i18n.LocalizeConfig) string {
	localizer, ok := ctx.Value(localizerContextKey{}).(*i18n.Localizer)
	if !ok {
		b := currentBundle()
		if b == nil {
			return cfg.MessageID
		}
		localizer = i18n.NewLocalizer(b, GetLocale(ctx))
	}
	msg, err := localizer.Localize(cfg)
	if err != nil {
		return cfg.MessageID
	}
	return msg
}
