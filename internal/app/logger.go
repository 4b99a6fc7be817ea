package app

import (
	"strings"

	"github.com/vitotech/website-api/pkg/logger"
)

// ConfigureLogging initialises the global logger from the server config.
func ConfigureLogging(cfg ServerConfig) error {
	level := strings.TrimSpace(cfg.LogLevel)
	if level == "" {
		level = "info"
	}
	return logger.Init(level, cfg.LogFormat)
}
