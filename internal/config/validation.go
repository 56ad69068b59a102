package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("nil config")
	}
	switch strings.ToLower(c.App.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid app.log_level: %q", c.App.LogLevel)
	}
	if !strings.HasPrefix(c.App.HTTPAddr, ":") && !strings.Contains(c.App.HTTPAddr, ":") {
		return fmt.Errorf("invalid app.http_addr: %q", c.App.HTTPAddr)
	}
	if c.Quote.TimeoutSeconds > 30 {
		return fmt.Errorf("quote.timeout_seconds too large: %v", c.Quote.TimeoutSeconds)
	}
	return nil
}
