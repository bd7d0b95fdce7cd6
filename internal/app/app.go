// Package app wires the configured adapters into a running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/link-shortener/internal/adapter/auth"
	"github.com/vadimbarashkov/link-shortener/internal/adapter/ratelimit"
	"github.com/vadimbarashkov/link-shortener/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/link-shortener/internal/config"
	"github.com/vadimbarashkov/link-shortener/internal/usecase"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/link-shortener/internal/adapter/delivery/http"
	pgpkg "github.com/vadimbarashkov/link-shortener/pkg/postgres"
)

const shutdownTimeout = 10 * time.Second

// Run serves the API until ctx is done, then stops accepting requests and
// flushes the queued click events before returning.
func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgpkg.New(
		ctx,
		cfg.Postgres.DSN(),
		pgpkg.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pgpkg.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pgpkg.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pgpkg.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := pgpkg.MigrateUp(cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	svc, err := newService(ctx, cfg, db, logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer svc.close()

	accounting := svc.accounting

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        svc.handler,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
	}

	// The workers outlive ctx so the final drain happens after the server stopped.
	accountingCtx, stopAccounting := context.WithCancel(context.Background())
	defer stopAccounting()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return accounting.Run(accountingCtx)
	})

	g.Go(func() error {
		logger.Info("starting server", slog.String("addr", server.Addr), slog.String("env", cfg.Env))

		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		defer stopAccounting()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	err = g.Wait()

	logger.Info("server stopped",
		slog.Int64("clicks_dropped", accounting.Dropped()),
		slog.Int64("clicks_failed", accounting.Failed()),
	)

	return err
}

type service struct {
	handler    http.Handler
	accounting *usecase.ClickAccounting
	close      func()
}

// newService assembles the use cases and the router on top of db. The caller
// runs the accounting workers.
func newService(ctx context.Context, cfg *config.Config, db *sqlx.DB, logger *httplog.Logger) (*service, error) {
	routerOpts := []delivery.RouterOption{delivery.WithBaseURL(cfg.BaseURL)}
	closeLimiter := func() {}

	if cfg.RateLimit.Requests > 0 {
		limiter, closeFn, err := newRateLimiter(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to set up rate limiter: %w", err)
		}
		closeLimiter = closeFn

		routerOpts = append(routerOpts, delivery.WithRateLimiter(limiter))
	}

	accounting := usecase.NewClickAccounting(
		postgres.NewClickRepository(db),
		logger.Logger,
		usecase.AccountingOptions{
			QueueSize:     cfg.Accounting.QueueSize,
			Workers:       cfg.Accounting.Workers,
			BatchSize:     cfg.Accounting.BatchSize,
			FlushInterval: cfg.Accounting.FlushInterval,
			WriteTimeout:  cfg.Accounting.WriteTimeout,
		},
	)

	linkUseCase := usecase.NewLinkUseCase(
		postgres.NewLinkRepository(db),
		usecase.NewNanoIDGenerator(cfg.ShortCode.Length),
		accounting,
		usecase.WithMaxAttempts(cfg.ShortCode.MaxAttempts),
		usecase.WithOperationTimeout(cfg.Link.OperationTimeout),
	)

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, auth.WithIssuer(cfg.Auth.Issuer))

	return &service{
		handler:    delivery.NewRouter(logger, linkUseCase, verifier, routerOpts...),
		accounting: accounting,
		close:      closeLimiter,
	}, nil
}

type limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// newRateLimiter prefers the shared Redis limiter when an address is configured.
func newRateLimiter(ctx context.Context, cfg *config.Config) (limiter, func(), error) {
	if cfg.Redis.Addr == "" {
		return ratelimit.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst), func() {}, nil
	}

	client, err := ratelimit.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}

	l := ratelimit.NewRedisLimiter(
		client,
		ratelimit.NewKeyBuilder(cfg.Redis.KeyPrefix),
		cfg.RateLimit.Requests,
		cfg.RateLimit.Window,
	)

	return l, func() { client.Close() }, nil
}
