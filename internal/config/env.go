package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverlay lists the environment variables that override file settings.
type envOverlay struct {
	ProjectID string `env:"BOARDSYNC_PROJECT_ID"`
	GroupBy   string `env:"BOARDSYNC_GROUP_BY"`
	RemoteURL string `env:"BOARDSYNC_REMOTE_URL"`
	HTTPBind  string `env:"BOARDSYNC_HTTP_BIND"`
	LogLevel  string `env:"BOARDSYNC_LOG_LEVEL"`
	Debug     *bool  `env:"BOARDSYNC_DEBUG"`
	DBPath    string `env:"BOARDSYNC_DB_PATH"`
}

// ApplyEnv overlays BOARDSYNC_* variables on cfg and validates the result.
func ApplyEnv(cfg Config) (Config, error) {
	var overlay envOverlay
	if err := env.Parse(&overlay); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	set := func(dst *string, value string) {
		if value = strings.TrimSpace(value); value != "" {
			*dst = value
		}
	}
	set(&cfg.Board.ProjectID, overlay.ProjectID)
	set(&cfg.Board.GroupBy, overlay.GroupBy)
	set(&cfg.Sync.RemoteURL, overlay.RemoteURL)
	set(&cfg.Server.HTTPBind, overlay.HTTPBind)
	set(&cfg.Logging.Level, overlay.LogLevel)
	set(&cfg.Database.Path, overlay.DBPath)
	if overlay.Debug != nil {
		cfg.Debug = *overlay.Debug
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
