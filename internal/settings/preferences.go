// Package settings persists user preferences through the same key-value store
// the history cache uses.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raysh454/medtriage/internal/kvstore"
	"github.com/raysh454/medtriage/internal/logging"
)

// ThemeKey is the store key holding the theme preference.
const ThemeKey = "theme"

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts "light" or "dark" in any case.
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	}
	return "", fmt.Errorf("unknown theme %q (want light or dark)", s)
}

// Preferences reads and writes the theme preference.
type Preferences struct {
	store  kvstore.Store
	logger logging.Logger
}

func NewPreferences(store kvstore.Store, logger logging.Logger) (*Preferences, error) {
	if logger == nil {
		return nil, errors.New("settings: nil logger provided")
	}
	if store == nil {
		return nil, errors.New("settings: nil store provided")
	}
	return &Preferences{store: store, logger: logger.With(logging.Field{Key: "component", Value: "settings"})}, nil
}

// Theme returns the stored theme. Anything other than a stored "dark" reads
// as light, including read failures.
func (p *Preferences) Theme(ctx context.Context) Theme {
	v, ok, err := p.store.Get(ctx, ThemeKey)
	if err != nil {
		p.logger.Warn("theme unreadable, using light", logging.Err(err))
		return ThemeLight
	}
	if ok && v == string(ThemeDark) {
		return ThemeDark
	}
	return ThemeLight
}

func (p *Preferences) SetTheme(ctx context.Context, t Theme) error {
	if t != ThemeLight && t != ThemeDark {
		return fmt.Errorf("unknown theme %q", t)
	}
	if err := p.store.Set(ctx, ThemeKey, string(t)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	p.logger.Debug("theme saved", logging.Field{Key: "theme", Value: string(t)})
	return nil
}

// ToggleTheme flips the stored theme and returns the new value.
func (p *Preferences) ToggleTheme(ctx context.Context) (Theme, error) {
	next := ThemeDark
	err := p.store.Update(ctx, ThemeKey, func(old string, ok bool) (string, error) {
		next = ThemeDark
		if ok && old == string(ThemeDark) {
			next = ThemeLight
		}
		return string(next), nil
	})
	if err != nil {
		return "", fmt.Errorf("toggle theme: %w", err)
	}
	p.logger.Debug("theme saved", logging.Field{Key: "theme", Value: string(next)})
	return next, nil
}
