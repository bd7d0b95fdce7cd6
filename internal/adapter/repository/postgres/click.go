package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/link-shortener/internal/entity"
)

const maxSources = 50

type clickDB struct {
	ShortCode  string    `db:"short_code"`
	OccurredAt time.Time `db:"occurred_at"`
	Referrer   string    `db:"referrer"`
	UserAgent  string    `db:"user_agent"`
	IPAddress  string    `db:"ip_address"`
}

type bucketDB struct {
	Start time.Time `db:"bucket_start"`
	Count int64     `db:"count"`
}

type sourceDB struct {
	Referrer  string `db:"referrer"`
	UserAgent string `db:"user_agent"`
	Count     int64  `db:"count"`
}

// rangeBound turns a zero bound into NULL, which the queries treat as open.
func rangeBound(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

type ClickRepository struct {
	db *sqlx.DB
}

func NewClickRepository(db *sqlx.DB) *ClickRepository {
	return &ClickRepository{db: db}
}

// SaveClicks inserts the events with one multi-row statement.
func (r *ClickRepository) SaveClicks(ctx context.Context, events []entity.ClickEvent) error {
	const op = "adapter.repository.postgres.ClickRepository.SaveClicks"
	const query = `INSERT INTO click_events(short_code, occurred_at, referrer, user_agent, ip_address)
		VALUES (:short_code, :occurred_at, :referrer, :user_agent, :ip_address)`

	if len(events) == 0 {
		return nil
	}

	rows := make([]clickDB, len(events))
	for i, ev := range events {
		rows[i] = clickDB{
			ShortCode:  ev.ShortCode,
			OccurredAt: ev.OccurredAt,
			Referrer:   ev.Referrer,
			UserAgent:  ev.UserAgent,
			IPAddress:  ev.IPAddress,
		}
	}

	if _, err := r.db.NamedExecContext(ctx, query, rows); err != nil {
		return wrapErr(op, "failed to insert into click_events table", err)
	}

	return nil
}

// ClickBuckets counts clicks per UTC hour or day within the inclusive range.
// A zero bound leaves that side of the range open.
// Empty buckets are omitted.
func (r *ClickRepository) ClickBuckets(ctx context.Context, shortCode string, q entity.StatsQuery) ([]entity.Bucket, error) {
	const op = "adapter.repository.postgres.ClickRepository.ClickBuckets"
	const query = `SELECT date_trunc($2, occurred_at AT TIME ZONE 'UTC') AS bucket_start, count(*) AS count
		FROM click_events
		WHERE short_code = $1
			AND ($3::timestamptz IS NULL OR occurred_at >= $3)
			AND ($4::timestamptz IS NULL OR occurred_at <= $4)
		GROUP BY bucket_start
		ORDER BY bucket_start`

	var rows []bucketDB

	if err := r.db.SelectContext(ctx, &rows, query, shortCode, string(q.Granularity), rangeBound(q.From), rangeBound(q.To)); err != nil {
		return nil, wrapErr(op, "failed to select from click_events table", err)
	}

	buckets := make([]entity.Bucket, len(rows))
	for i, row := range rows {
		buckets[i] = entity.Bucket{
			Start: row.Start.UTC(),
			Count: row.Count,
		}
	}

	return buckets, nil
}

// ClickSources groups clicks within the inclusive range by referrer and user
// agent, most frequent first.
func (r *ClickRepository) ClickSources(ctx context.Context, shortCode string, q entity.StatsQuery) ([]entity.Source, error) {
	const op = "adapter.repository.postgres.ClickRepository.ClickSources"
	const query = `SELECT referrer, user_agent, count(*) AS count
		FROM click_events
		WHERE short_code = $1
			AND ($2::timestamptz IS NULL OR occurred_at >= $2)
			AND ($3::timestamptz IS NULL OR occurred_at <= $3)
		GROUP BY referrer, user_agent
		ORDER BY count DESC, referrer, user_agent
		LIMIT $4`

	var rows []sourceDB

	if err := r.db.SelectContext(ctx, &rows, query, shortCode, rangeBound(q.From), rangeBound(q.To), maxSources); err != nil {
		return nil, wrapErr(op, "failed to select from click_events table", err)
	}

	sources := make([]entity.Source, len(rows))
	for i, row := range rows {
		sources[i] = entity.Source(row)
	}

	return sources, nil
}
