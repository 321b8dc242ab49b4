package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapmetric/pkg/core"
	"github.com/leapstack-labs/leapmetric/pkg/sqlgen"
)

// Validate checks option values. The dialect must name a registered generator.
func (c *Config) Validate() error {
	if c.CatalogDir == "" {
		return fmt.Errorf("catalog_dir is required")
	}
	if _, err := sqlgen.New(core.DataSourceType(c.Dialect)); err != nil {
		return fmt.Errorf("invalid dialect: %w", err)
	}
	switch c.OutputFormat {
	case OutputAuto, OutputText, OutputMarkdown, OutputJSON:
	default:
		return fmt.Errorf("invalid output format %q, must be one of: auto, text, markdown, json", c.OutputFormat)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	return nil
}

// ParseLogLevel converts a level name such as "debug" or "warn".
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return level, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return level, nil
}
