package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/vadimbarashkov/link-shortener/internal/entity"
)

const maxClickContextLen = 512

type clickRepository interface {
	SaveClicks(ctx context.Context, events []entity.ClickEvent) error
	ClickBuckets(ctx context.Context, shortCode string, q entity.StatsQuery) ([]entity.Bucket, error)
	ClickSources(ctx context.Context, shortCode string, q entity.StatsQuery) ([]entity.Source, error)
}

// AccountingOptions tunes the click accounting pipeline.
type AccountingOptions struct {
	QueueSize     int
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration
}

var defaultAccountingOptions = AccountingOptions{
	QueueSize:     4096,
	Workers:       2,
	BatchSize:     100,
	FlushInterval: time.Second,
	WriteTimeout:  5 * time.Second,
}

// ClickAccounting records redirect events on a best-effort basis.
//
// Record never blocks: events go to a bounded queue drained by the workers
// started with Run, and are dropped when the queue is full or Run has
// returned. Persist failures are logged and swallowed so redirects never
// depend on accounting.
type ClickAccounting struct {
	repo    clickRepository
	logger  *slog.Logger
	opts    AccountingOptions
	queue   chan entity.ClickEvent
	dropped atomic.Int64
	failed  atomic.Int64

	// mu orders enqueues before the final drain.
	mu     sync.RWMutex
	closed bool
}

func NewClickAccounting(repo clickRepository, logger *slog.Logger, opts AccountingOptions) *ClickAccounting {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultAccountingOptions.QueueSize
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultAccountingOptions.Workers
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultAccountingOptions.BatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultAccountingOptions.FlushInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultAccountingOptions.WriteTimeout
	}

	return &ClickAccounting{
		repo:   repo,
		logger: logger,
		opts:   opts,
		queue:  make(chan entity.ClickEvent, opts.QueueSize),
	}
}

// Record enqueues a click event. It reports false when the event was dropped.
func (a *ClickAccounting) Record(shortCode string, occurredAt time.Time, cc entity.ClickContext) bool {
	ev := entity.ClickEvent{
		ShortCode:  shortCode,
		OccurredAt: occurredAt.UTC(),
		ClickContext: entity.ClickContext{
			Referrer:  truncate(cc.Referrer, maxClickContextLen),
			UserAgent: truncate(cc.UserAgent, maxClickContextLen),
			IPAddress: truncate(cc.IPAddress, maxClickContextLen),
		},
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		a.drop(shortCode, "click accounting is stopped, event dropped")
		return false
	}

	select {
	case a.queue <- ev:
		return true
	default:
		a.drop(shortCode, "click accounting queue is full, event dropped")
		return false
	}
}

func (a *ClickAccounting) drop(shortCode, msg string) {
	n := a.dropped.Add(1)
	a.logger.Warn(msg,
		slog.String("short_code", shortCode),
		slog.Int64("dropped_total", n),
	)
}

// Dropped returns the number of events discarded because the queue was full
// or accounting had stopped.
func (a *ClickAccounting) Dropped() int64 {
	return a.dropped.Load()
}

// Failed returns the number of events lost because they could not be persisted.
func (a *ClickAccounting) Failed() int64 {
	return a.failed.Load()
}

// Run starts the workers and blocks until ctx is done and every event queued
// so far has been flushed. Events recorded after that are dropped.
func (a *ClickAccounting) Run(ctx context.Context) error {
	stop := make(chan struct{})

	var wg sync.WaitGroup

	for i := 0; i < a.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.work(stop)
		}()
	}

	<-ctx.Done()

	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	close(stop)
	wg.Wait()

	return nil
}

func (a *ClickAccounting) work(stop <-chan struct{}) {
	batch := make([]entity.ClickEvent, 0, a.opts.BatchSize)

	ticker := time.NewTicker(a.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		a.persist(batch)
		batch = batch[:0]
	}

	for {
		select {
		case ev := <-a.queue:
			batch = append(batch, ev)
			if len(batch) >= a.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-stop:
			for {
				select {
				case ev := <-a.queue:
					batch = append(batch, ev)
					if len(batch) >= a.opts.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (a *ClickAccounting) persist(batch []entity.ClickEvent) {
	const op = "usecase.ClickAccounting.persist"

	// Detached from the Run context so the final drain still reaches the store.
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.WriteTimeout)
	defer cancel()

	if err := a.repo.SaveClicks(ctx, batch); err != nil {
		n := a.failed.Add(int64(len(batch)))
		a.logger.Error("failed to persist click events",
			slog.String("op", op),
			slog.Int("batch_size", len(batch)),
			slog.Int64("failed_total", n),
			slog.Any("err", err),
		)
	}
}

// Stats aggregates the clicks of link within q. The caller is responsible for
// checking that the link exists.
func (a *ClickAccounting) Stats(ctx context.Context, link *entity.Link, q entity.StatsQuery) (*entity.Stats, error) {
	const op = "usecase.ClickAccounting.Stats"

	buckets, err := a.repo.ClickBuckets(ctx, link.ShortCode, q)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to count clicks: %w", op, err)
	}

	sources, err := a.repo.ClickSources(ctx, link.ShortCode, q)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to group clicks by source: %w", op, err)
	}

	stats := &entity.Stats{
		Link:    link,
		Query:   q,
		Buckets: nonNil(buckets),
		Sources: nonNil(sources),
	}
	for _, b := range stats.Buckets {
		stats.TotalCount += b.Count
	}

	return stats, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
