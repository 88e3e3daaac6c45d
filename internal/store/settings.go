package store

import (
	"context"
	"fmt"
)

const (
	SettingTheme    = "theme"
	SettingLocale   = "locale"
	SettingCurrency = "currency"
)

// Settings are the per-user preferences.
type Settings struct {
	Theme    string
	Locale   string
	Currency string
}

// DefaultSettings apply to keys a user never set.
var DefaultSettings = Settings{Theme: "light", Locale: "fr-FR", Currency: "EUR"}

// SettingsUpdate holds the keys to change.
type SettingsUpdate struct {
	Theme    *string
	Locale   *string
	Currency *string
}

func (s *Store) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM user_settings WHERE user_id = ? ORDER BY key`, userID)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	out := DefaultSettings
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		switch key {
		case SettingTheme:
			out.Theme = value
		case SettingLocale:
			out.Locale = value
		case SettingCurrency:
			out.Currency = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) UpdateSettings(ctx context.Context, userID string, u SettingsUpdate) (*Settings, error) {
	values := map[string]string{}
	if u.Theme != nil {
		if *u.Theme != "light" && *u.Theme != "dark" {
			return nil, invalid(SettingTheme, "must be light or dark")
		}
		values[SettingTheme] = *u.Theme
	}
	if u.Locale != nil {
		if *u.Locale != DefaultSettings.Locale {
			return nil, invalid(SettingLocale, "only %s is supported", DefaultSettings.Locale)
		}
		values[SettingLocale] = *u.Locale
	}
	if u.Currency != nil {
		if *u.Currency != DefaultSettings.Currency {
			return nil, invalid(SettingCurrency, "only %s is supported", DefaultSettings.Currency)
		}
		values[SettingCurrency] = *u.Currency
	}

	for key, value := range values {
		if err := s.setSetting(ctx, userID, key, value); err != nil {
			return nil, err
		}
	}
	return s.GetSettings(ctx, userID)
}

func (s *Store) setSetting(ctx context.Context, userID, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value`,
		userID, key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}
