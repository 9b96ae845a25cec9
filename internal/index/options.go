// ABOUTME: Functional options for the page store and its operations.
// ABOUTME: Covers the clock, insert metadata, and query exclude/threshold/limit.
package index

import "time"

// Query defaults.
const (
	DefaultThreshold = 0.7
	DefaultLimit     = 10
	RecentPagesLimit = 5
	ListSummaryChars = 200
)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for default timestamps and lastUpdated.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

type insertOptions struct {
	title     string
	timestamp int64
	hasTime   bool
}

// InsertOption sets optional record metadata.
type InsertOption func(*insertOptions)

// WithTitle sets the record title. An empty title falls back to models.DefaultTitle.
func WithTitle(title string) InsertOption {
	return func(o *insertOptions) {
		o.title = title
	}
}

// WithTimestamp sets the record timestamp in seconds since epoch.
func WithTimestamp(ts int64) InsertOption {
	return func(o *insertOptions) {
		o.timestamp = ts
		o.hasTime = true
	}
}

type queryOptions struct {
	exclude   string
	threshold float64
	limit     int
}

// QueryOption adjusts a similarity query.
type QueryOption func(*queryOptions)

// WithExclude omits the record with this key from results.
func WithExclude(key string) QueryOption {
	return func(o *queryOptions) {
		o.exclude = key
	}
}

// WithThreshold sets the minimum similarity (inclusive). Zero matches every record.
func WithThreshold(threshold float64) QueryOption {
	return func(o *queryOptions) {
		o.threshold = threshold
	}
}

// WithLimit caps the number of results. Non-positive values keep the default.
func WithLimit(n int) QueryOption {
	return func(o *queryOptions) {
		if n > 0 {
			o.limit = n
		}
	}
}
