package entity

import "time"

// ClickContext is the request metadata captured with a redirect.
// The core stores it as is and never interprets it.
type ClickContext struct {
	Referrer  string
	UserAgent string
	IPAddress string
}

// ClickEvent is a single redirect occurrence.
type ClickEvent struct {
	ShortCode  string
	OccurredAt time.Time
	ClickContext
}

// Granularity is the width of a statistics bucket.
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
)

// Valid reports whether g is a supported bucket width.
func (g Granularity) Valid() bool {
	return g == GranularityHour || g == GranularityDay
}

// StatsQuery selects the clicks that statistics are computed from.
// From and To are inclusive. A zero bound leaves that side of the range open.
type StatsQuery struct {
	From        time.Time
	To          time.Time
	Granularity Granularity
}

// Contains reports whether t falls within the range.
func (q StatsQuery) Contains(t time.Time) bool {
	if !q.From.IsZero() && t.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && t.After(q.To) {
		return false
	}
	return true
}

// Bucket holds the number of clicks that happened within one time slot.
type Bucket struct {
	Start time.Time
	Count int64
}

// Source holds the number of clicks sharing a referrer and user agent.
type Source struct {
	Referrer  string
	UserAgent string
	Count     int64
}

// Stats is the usage summary of a link over a StatsQuery range.
type Stats struct {
	Link       *Link
	Query      StatsQuery
	TotalCount int64
	Buckets    []Bucket
	Sources    []Source
}
