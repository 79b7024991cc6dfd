// Package settings reads and writes the user preference file (settings.json).
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultTheme is used when the file is missing or carries no usable theme.
const DefaultTheme = "light"

// Settings holds the recognized preferences.
type Settings struct {
	Theme string `koanf:"theme"`
}

// Default returns the settings used when nothing is stored.
func Default() Settings {
	return Settings{Theme: DefaultTheme}
}

// Load reads path. A missing, unreadable or malformed file yields Default;
// Load never fails so it cannot hold up catalog operations.
func Load(path string) Settings {
	s := Default()
	if path == "" {
		return s
	}
	if _, err := os.Stat(path); err != nil {
		return s
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), json.Parser()); err != nil {
		return s
	}

	var loaded Settings
	if err := k.Unmarshal("", &loaded); err != nil {
		return s
	}
	if theme := strings.TrimSpace(loaded.Theme); theme != "" {
		s.Theme = theme
	}
	return s
}

// Save writes s to path as JSON, creating the parent directory.
func Save(path string, s Settings) error {
	theme := strings.TrimSpace(s.Theme)
	if theme == "" {
		theme = DefaultTheme
	}

	k := koanf.New(".")
	if err := k.Set("theme", theme); err != nil {
		return fmt.Errorf("set theme: %w", err)
	}
	data, err := k.Marshal(json.Parser())
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
