package app

import (
	"fmt"
	"log/slog"

	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/link-shortener/internal/config"
)

const serviceName = "link-shortener"

// NewLogger builds the request logger whose embedded slog.Logger is shared
// with the background components.
func NewLogger(cfg config.Log) (*httplog.Logger, error) {
	const op = "app.NewLogger"

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("%s: invalid log level %q: %w", op, cfg.Level, err)
	}

	return httplog.NewLogger(serviceName, httplog.Options{
		LogLevel: level,
		JSON:     cfg.JSON,
		Concise:  cfg.Concise,
	}), nil
}
