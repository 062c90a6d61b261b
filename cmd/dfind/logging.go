package main

import (
	"fmt"

	"github.com/jamesainslie/dfind/pkg/dfind/config"
	"github.com/jamesainslie/dfind/pkg/dfind/logging"
	"github.com/jamesainslie/dfind/pkg/dfind/types"
)

// parseRotationConfig converts the configured rotation settings. An empty
// or invalid size falls back to the logging default.
func parseRotationConfig(cfg config.RotationConfig) logging.RotationConfig {
	maxSize := logging.DefaultRotationConfig().MaxSize
	if cfg.MaxSize != "" {
		if n, err := types.ParseSize(cfg.MaxSize); err == nil && n > 0 {
			maxSize = n
		}
	}
	return logging.RotationConfig{
		MaxSize:    maxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
		Daily:      cfg.Daily,
	}
}

// initLogging starts file logging; --verbose adds debug output on stderr.
func initLogging(cfg *config.Config) error {
	lc := logging.Config{
		Level:    cfg.LogLevel,
		Path:     cfg.LogFile,
		Rotation: parseRotationConfig(cfg.Rotation()),
	}
	if verbose && !quiet {
		lc.ConsoleLevel = "debug"
	}
	if err := logging.Init(lc); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	return nil
}
