// Package http provides the HTTP delivery layer for the link shortener service.
// This package contains the HTTP handlers and related types used for processing
// incoming requests, verifying callers, validating input, and formatting responses.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/link-shortener/docs"
	"github.com/vadimbarashkov/link-shortener/pkg/middleware/recoverer"

	httpSwagger "github.com/swaggo/http-swagger"
)

type routerOptions struct {
	baseURL string
	limiter rateLimiter
}

type RouterOption func(*routerOptions)

// WithBaseURL sets the prefix short URLs are built from.
func WithBaseURL(baseURL string) RouterOption {
	return func(o *routerOptions) {
		o.baseURL = baseURL
	}
}

// WithRateLimiter limits the public create and redirect routes per client IP.
func WithRateLimiter(limiter rateLimiter) RouterOption {
	return func(o *routerOptions) {
		o.limiter = limiter
	}
}

// NewRouter initializes and returns a new Chi router configured with middleware and routes for the link shortener API.
func NewRouter(logger *httplog.Logger, linkUseCase linkUseCase, verifier identityVerifier, opts ...RouterOption) *chi.Mux {
	o := routerOptions{
		baseURL: "http://localhost:8080",
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer.New(logger.Logger))

	r.Get("/health", handleHealth)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, docs.FS, "swagger.yml")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ping", handlePing)
	})

	h := newLinkHandler(linkUseCase, verifier, validator.New(), o.baseURL)

	r.With(rateLimit(o.limiter, "create")).Post("/create", h.createLink)

	r.Route("/{shortCode}", func(r chi.Router) {
		r.With(rateLimit(o.limiter, "redirect")).Get("/", h.redirect)
		r.Patch("/", h.updateLink)
		r.Get("/statistics", h.getStats)
		r.Get("/qrcode", h.getQRCode)
	})

	return r
}
