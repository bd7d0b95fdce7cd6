// Package usecase implements the link lifecycle: short code generation,
// redirects with click accounting, authorized target updates and usage
// statistics. It depends only on small consumer-side interfaces so the
// storage and transport adapters stay replaceable.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/link-shortener/internal/entity"
)

const (
	defaultMaxAttempts = 5
	maxTargetURLLen    = 2048
	maxHourlyRange     = 31 * 24 * time.Hour
)

type linkRepository interface {
	Save(ctx context.Context, shortCode, targetURL, ownerID string) (*entity.Link, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.Link, error)
	RetrieveAndCountClick(ctx context.Context, shortCode string) (*entity.Link, error)
	UpdateTarget(ctx context.Context, shortCode, targetURL, ownerID string) (*entity.Link, error)
}

type shortCodeGenerator interface {
	Generate() (string, error)
}

type clickAccounting interface {
	Record(shortCode string, occurredAt time.Time, cc entity.ClickContext) bool
	Stats(ctx context.Context, link *entity.Link, q entity.StatsQuery) (*entity.Stats, error)
}

type Option func(*LinkUseCase)

// WithMaxAttempts bounds the number of short codes tried per ShortenURL call.
func WithMaxAttempts(n int) Option {
	return func(uc *LinkUseCase) {
		if n > 0 {
			uc.maxAttempts = n
		}
	}
}

// WithOperationTimeout bounds every operation. Zero disables the bound.
func WithOperationTimeout(d time.Duration) Option {
	return func(uc *LinkUseCase) {
		uc.timeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(uc *LinkUseCase) {
		uc.now = now
	}
}

type LinkUseCase struct {
	repo        linkRepository
	gen         shortCodeGenerator
	clicks      clickAccounting
	validate    *validator.Validate
	maxAttempts int
	timeout     time.Duration
	now         func() time.Time
}

func NewLinkUseCase(repo linkRepository, gen shortCodeGenerator, clicks clickAccounting, opts ...Option) *LinkUseCase {
	uc := &LinkUseCase{
		repo:        repo,
		gen:         gen,
		clicks:      clicks,
		validate:    validator.New(),
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// ShortenURL stores targetURL under a freshly generated short code. Collisions
// are retried with new codes up to the configured number of attempts. An empty
// ownerID creates an anonymous link.
func (uc *LinkUseCase) ShortenURL(ctx context.Context, targetURL, ownerID string) (*entity.Link, error) {
	const op = "usecase.LinkUseCase.ShortenURL"

	if err := uc.validateTargetURL(targetURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	for i := 0; i < uc.maxAttempts; i++ {
		shortCode, err := uc.gen.Generate()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		link, err := uc.repo.Save(ctx, shortCode, targetURL, ownerID)
		if err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				continue
			}

			return nil, wrapErr(op, "failed to shorten url", err)
		}

		return link, nil
	}

	return nil, fmt.Errorf("%s: %w", op, entity.ErrMaxRetriesExceeded)
}

// ResolveShortCode returns the link to redirect to and records the click.
// Malformed and unknown codes both yield entity.ErrLinkNotFound.
func (uc *LinkUseCase) ResolveShortCode(ctx context.Context, shortCode string, cc entity.ClickContext) (*entity.Link, error) {
	const op = "usecase.LinkUseCase.ResolveShortCode"

	if !ValidShortCode(shortCode) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	link, err := uc.repo.RetrieveAndCountClick(ctx, shortCode)
	if err != nil {
		return nil, wrapErr(op, "failed to resolve short code", err)
	}

	uc.clicks.Record(link.ShortCode, uc.now(), cc)

	return link, nil
}

// GetLink returns the link without recording a click.
func (uc *LinkUseCase) GetLink(ctx context.Context, shortCode string) (*entity.Link, error) {
	const op = "usecase.LinkUseCase.GetLink"

	if !ValidShortCode(shortCode) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	link, err := uc.repo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, wrapErr(op, "failed to get link", err)
	}

	return link, nil
}

// ModifyURL points shortCode to targetURL on behalf of id.
func (uc *LinkUseCase) ModifyURL(ctx context.Context, shortCode, targetURL string, id entity.Identity) (*entity.Link, error) {
	const op = "usecase.LinkUseCase.ModifyURL"

	if err := uc.validateTargetURL(targetURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !ValidShortCode(shortCode) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	link, err := uc.repo.UpdateTarget(ctx, shortCode, targetURL, id.Subject)
	if err != nil {
		return nil, wrapErr(op, "failed to modify url", err)
	}

	return link, nil
}

// GetLinkStats aggregates the clicks of shortCode on behalf of id. Zero bounds
// in q leave the range open and the granularity defaults to day. Hourly
// statistics without a start cover the last 31 days.
func (uc *LinkUseCase) GetLinkStats(ctx context.Context, shortCode string, id entity.Identity, q entity.StatsQuery) (*entity.Stats, error) {
	const op = "usecase.LinkUseCase.GetLinkStats"

	if !ValidShortCode(shortCode) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	ctx, cancel := uc.withTimeout(ctx)
	defer cancel()

	link, err := uc.repo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, wrapErr(op, "failed to get link", err)
	}

	if !link.AccessibleBy(id) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrForbidden)
	}

	q, err = uc.normalizeStatsQuery(q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stats, err := uc.clicks.Stats(ctx, link, q)
	if err != nil {
		return nil, wrapErr(op, "failed to get link stats", err)
	}

	return stats, nil
}

func (uc *LinkUseCase) validateTargetURL(targetURL string) error {
	if err := uc.validate.Var(targetURL, "required,url"); err != nil {
		return fmt.Errorf("%w: target url must be an absolute http(s) url", entity.ErrInvalidInput)
	}

	u, err := url.Parse(targetURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: target url must be an absolute http(s) url", entity.ErrInvalidInput)
	}

	if len(targetURL) > maxTargetURLLen {
		return fmt.Errorf("%w: target url exceeds %d characters", entity.ErrInvalidInput, maxTargetURLLen)
	}

	return nil
}

// normalizeStatsQuery leaves zero bounds open so the range never mixes the
// database clock that stamps links with the clock that stamps clicks.
func (uc *LinkUseCase) normalizeStatsQuery(q entity.StatsQuery) (entity.StatsQuery, error) {
	if q.Granularity == "" {
		q.Granularity = entity.GranularityDay
	}
	if !q.Granularity.Valid() {
		return q, fmt.Errorf("%w: unsupported granularity %q", entity.ErrInvalidInput, q.Granularity)
	}

	q.From, q.To = q.From.UTC(), q.To.UTC()

	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return q, fmt.Errorf("%w: range start is after its end", entity.ErrInvalidInput)
	}

	if q.Granularity == entity.GranularityHour {
		end := q.To
		if end.IsZero() {
			end = uc.now().UTC()
		}

		switch {
		case q.From.IsZero():
			q.From = end.Add(-maxHourlyRange)
		case end.Sub(q.From) > maxHourlyRange:
			return q, fmt.Errorf("%w: hourly statistics are limited to %s", entity.ErrInvalidInput, maxHourlyRange)
		}
	}

	return q, nil
}

func (uc *LinkUseCase) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if uc.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, uc.timeout)
}

// wrapErr adds op context and reports expired deadlines as transient failures.
func wrapErr(op, msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, entity.ErrTransient) {
		return fmt.Errorf("%s: %s: %w: %w", op, msg, entity.ErrTransient, err)
	}
	return fmt.Errorf("%s: %s: %w", op, msg, err)
}
