package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
)

type rateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// rateLimit rejects clients that exceeded their quota for scope. Limiter
// failures let the request through.
func rateLimit(limiter rateLimiter, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), scope+":"+clientIP(r))
			if err != nil {
				httplog.LogEntrySetField(r.Context(), "rate_limit_err", slog.AnyValue(err))
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, tooManyRequestsResponse)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
