// Package config loads go-nede settings: process settings from the
// environment, and experiment and level descriptions from YAML files.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings are the process-wide settings read from the environment.
type Settings struct {
	LogLevel     string  `env:"NEDE_LOG_LEVEL" envDefault:"info"`
	DataDir      string  `env:"NEDE_DATA_DIR" envDefault:"."`
	MonitorPort  string  `env:"NEDE_MONITOR_PORT" envDefault:"8080"`
	RelayPort    string  `env:"NEDE_RELAY_PORT" envDefault:"8090"`
	FrameRate    int     `env:"NEDE_FRAME_RATE" envDefault:"60"`
	ScreenWidth  float64 `env:"NEDE_SCREEN_WIDTH" envDefault:"1920"`
	ScreenHeight float64 `env:"NEDE_SCREEN_HEIGHT" envDefault:"1080"`
}

// LoadSettings parses Settings from the environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the settings.
func (s Settings) Validate() error {
	switch {
	case s.FrameRate <= 0:
		return fmt.Errorf("%w: frame rate %d", ErrInvalidSettings, s.FrameRate)
	case s.ScreenWidth <= 0 || s.ScreenHeight <= 0:
		return fmt.Errorf("%w: screen %vx%v", ErrInvalidSettings, s.ScreenWidth, s.ScreenHeight)
	}
	return nil
}

// FrameInterval returns the duration of one frame.
func (s Settings) FrameInterval() time.Duration {
	return time.Second / time.Duration(s.FrameRate)
}

// LevelPath returns where the level named name is kept.
func (s Settings) LevelPath(name string) string {
	return filepath.Join(s.DataDir, "levels", name+".yaml")
}

// CatalogPath returns the asset catalog path.
func (s Settings) CatalogPath() string {
	return filepath.Join(s.DataDir, "assets.yaml")
}
