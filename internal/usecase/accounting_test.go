package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/link-shortener/internal/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func runAccounting(t testing.TB, a *ClickAccounting) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		a.Run(ctx)
	}()

	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("click accounting did not stop")
		}
	}
}

func TestClickAccounting_Record(t *testing.T) {
	t.Run("queue full", func(t *testing.T) {
		repo := new(MockClickRepository)
		a := NewClickAccounting(repo, discardLogger(), AccountingOptions{QueueSize: 1})

		assert.True(t, a.Record("abc1234", time.Now(), entity.ClickContext{}))
		assert.False(t, a.Record("abc1234", time.Now(), entity.ClickContext{}))
		assert.Equal(t, int64(1), a.Dropped())
		repo.AssertExpectations(t)
	})

	t.Run("flushed on shutdown", func(t *testing.T) {
		var (
			mu    sync.Mutex
			saved []entity.ClickEvent
		)

		repo := new(MockClickRepository)
		repo.On("SaveClicks", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				mu.Lock()
				defer mu.Unlock()
				saved = append(saved, args.Get(1).([]entity.ClickEvent)...)
			}).
			Return(nil)

		a := NewClickAccounting(repo, discardLogger(), AccountingOptions{
			BatchSize:     2,
			FlushInterval: time.Hour,
		})
		stop := runAccounting(t, a)

		at := time.Date(2024, 10, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
		cc := entity.ClickContext{Referrer: "https://news.example", UserAgent: "curl/8.0", IPAddress: "10.0.0.1"}
		for i := 0; i < 3; i++ {
			require.True(t, a.Record("abc1234", at, cc))
		}

		stop()

		mu.Lock()
		defer mu.Unlock()

		require.Len(t, saved, 3)
		for _, ev := range saved {
			assert.Equal(t, "abc1234", ev.ShortCode)
			assert.Equal(t, time.UTC, ev.OccurredAt.Location())
			assert.True(t, at.Equal(ev.OccurredAt))
			assert.Equal(t, cc, ev.ClickContext)
		}
		assert.Zero(t, a.Dropped())
		repo.AssertExpectations(t)
	})

	t.Run("flushed by interval", func(t *testing.T) {
		flushed := make(chan int, 1)

		repo := new(MockClickRepository)
		repo.On("SaveClicks", mock.Anything, mock.Anything).
			Once().
			Run(func(args mock.Arguments) {
				flushed <- len(args.Get(1).([]entity.ClickEvent))
			}).
			Return(nil)

		a := NewClickAccounting(repo, discardLogger(), AccountingOptions{
			Workers:       1,
			BatchSize:     100,
			FlushInterval: 10 * time.Millisecond,
		})
		stop := runAccounting(t, a)
		defer stop()

		a.Record("abc1234", time.Now(), entity.ClickContext{})

		select {
		case n := <-flushed:
			assert.Equal(t, 1, n)
		case <-time.After(5 * time.Second):
			t.Fatal("click events were not flushed")
		}
	})

	t.Run("persist error is swallowed", func(t *testing.T) {
		repo := new(MockClickRepository)
		repo.On("SaveClicks", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

		a := NewClickAccounting(repo, discardLogger(), AccountingOptions{Workers: 1})
		stop := runAccounting(t, a)

		a.Record("abc1234", time.Now(), entity.ClickContext{})
		a.Record("abc1234", time.Now(), entity.ClickContext{})
		stop()

		assert.Equal(t, int64(2), a.Failed())
		repo.AssertExpectations(t)
	})

	t.Run("dropped after shutdown", func(t *testing.T) {
		repo := new(MockClickRepository)
		a := NewClickAccounting(repo, discardLogger(), AccountingOptions{Workers: 1})

		stop := runAccounting(t, a)
		stop()

		assert.False(t, a.Record("abc1234", time.Now(), entity.ClickContext{}))
		assert.Equal(t, int64(1), a.Dropped())
		assert.Zero(t, a.Failed())
		assert.Empty(t, a.queue)
		repo.AssertNotCalled(t, "SaveClicks", mock.Anything, mock.Anything)
	})

	t.Run("context is truncated", func(t *testing.T) {
		repo := new(MockClickRepository)
		a := NewClickAccounting(repo, discardLogger(), AccountingOptions{})

		long := strings.Repeat("ж", maxClickContextLen)
		a.Record("abc1234", time.Now(), entity.ClickContext{UserAgent: long})

		ev := <-a.queue
		assert.LessOrEqual(t, len(ev.UserAgent), maxClickContextLen)
		assert.True(t, utf8.ValidString(ev.UserAgent))
	})
}

func TestClickAccounting_Stats(t *testing.T) {
	link := &entity.Link{ShortCode: "abc1234"}
	q := entity.StatsQuery{
		From:        time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
		To:          time.Date(2024, 10, 3, 0, 0, 0, 0, time.UTC),
		Granularity: entity.GranularityDay,
	}

	t.Run("buckets error", func(t *testing.T) {
		errUnknown := errors.New("unknown error")
		repo := new(MockClickRepository)
		repo.On("ClickBuckets", mock.Anything, "abc1234", q).Once().Return(nil, errUnknown)

		a := NewClickAccounting(repo, discardLogger(), AccountingOptions{})
		stats, err := a.Stats(context.Background(), link, q)

		assert.ErrorIs(t, err, errUnknown)
		assert.Nil(t, stats)
		repo.AssertExpectations(t)
	})

	t.Run("no clicks", func(t *testing.T) {
		repo := new(MockClickRepository)
		repo.On("ClickBuckets", mock.Anything, "abc1234", q).Once().Return(nil, nil)
		repo.On("ClickSources", mock.Anything, "abc1234", q).Once().Return(nil, nil)

		a := NewClickAccounting(repo, discardLogger(), AccountingOptions{})
		stats, err := a.Stats(context.Background(), link, q)

		require.NoError(t, err)
		assert.Zero(t, stats.TotalCount)
		assert.NotNil(t, stats.Buckets)
		assert.Empty(t, stats.Buckets)
		assert.Empty(t, stats.Sources)
		repo.AssertExpectations(t)
	})

	t.Run("success", func(t *testing.T) {
		buckets := []entity.Bucket{
			{Start: q.From, Count: 2},
			{Start: q.From.AddDate(0, 0, 1), Count: 1},
		}
		sources := []entity.Source{{Referrer: "https://news.example", UserAgent: "curl/8.0", Count: 3}}

		repo := new(MockClickRepository)
		repo.On("ClickBuckets", mock.Anything, "abc1234", q).Once().Return(buckets, nil)
		repo.On("ClickSources", mock.Anything, "abc1234", q).Once().Return(sources, nil)

		a := NewClickAccounting(repo, discardLogger(), AccountingOptions{})
		stats, err := a.Stats(context.Background(), link, q)

		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.TotalCount)
		assert.Equal(t, buckets, stats.Buckets)
		assert.Equal(t, sources, stats.Sources)
		assert.Same(t, link, stats.Link)
		repo.AssertExpectations(t)
	})
}
