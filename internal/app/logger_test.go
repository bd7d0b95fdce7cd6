package app

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/link-shortener/internal/config"
)

func TestNewLogger(t *testing.T) {
	t.Run("invalid level", func(t *testing.T) {
		logger, err := NewLogger(config.Log{Level: "loud"})

		assert.Error(t, err)
		assert.Nil(t, logger)
	})

	t.Run("success", func(t *testing.T) {
		logger, err := NewLogger(config.Log{Level: "warn", JSON: true})

		require.NoError(t, err)
		require.NotNil(t, logger)
		assert.NotNil(t, logger.Logger)
		assert.Equal(t, slog.LevelWarn, logger.Options.LogLevel)
	})
}

func TestNewRateLimiter(t *testing.T) {
	var cfg config.Config
	cfg.RateLimit = config.RateLimit{Requests: 1, Window: time.Minute, Burst: 1}

	l, closeLimiter, err := newRateLimiter(context.Background(), &cfg)
	require.NoError(t, err)
	defer closeLimiter()

	ok, err := l.Allow(context.Background(), "redirect:10.0.0.1")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Allow(context.Background(), "redirect:10.0.0.1")
	assert.NoError(t, err)
	assert.False(t, ok)
}
