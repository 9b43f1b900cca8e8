package localstore

import (
	"errors"
	"fmt"
)

type Preferences struct {
	Theme    string
	FontSize string
	LastView string
}

var preferenceDefaults = Preferences{Theme: "light", FontSize: "16", LastView: "home"}

// LoadPreferences reads the stored preferences, falling back to defaults for
// keys that were never written.
func LoadPreferences(s Store) (Preferences, error) {
	prefs := preferenceDefaults

	for key, dst := range map[string]*string{
		KeyTheme:    &prefs.Theme,
		KeyFontSize: &prefs.FontSize,
		KeyLastView: &prefs.LastView,
	} {
		v, err := s.Get(key)
		if errors.Is(err, ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return Preferences{}, err
		}
		*dst = v
	}

	return prefs, nil
}

// SavePreferences writes the non-empty fields of prefs.
func SavePreferences(s Store, prefs Preferences) error {
	for key, v := range map[string]string{
		KeyTheme:    prefs.Theme,
		KeyFontSize: prefs.FontSize,
		KeyLastView: prefs.LastView,
	} {
		if v == "" {
			continue
		}
		if err := s.Set(key, v); err != nil {
			return fmt.Errorf("error saving preference %s: %w", key, err)
		}
	}
	return nil
}
