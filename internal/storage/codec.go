// ABOUTME: Interface definition for page store persistence.
// ABOUTME: A Codec loads and saves a full snapshot of records in one operation.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389-research/pagemem/internal/logging"
	"github.com/2389-research/pagemem/internal/models"
)

// Snapshot is the full persisted state of the page store.
type Snapshot struct {
	Records     map[string]models.Record
	LastUpdated time.Time
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Records: make(map[string]models.Record)}
}

// Codec defines whole-snapshot persistence for the page store.
type Codec interface {
	// Load reads the persisted snapshot. A missing store yields an empty
	// snapshot and no error; unreadable or undecodable state yields an error.
	Load(ctx context.Context) (*Snapshot, error)

	// Save replaces the persisted state with snap.
	Save(ctx context.Context, snap *Snapshot) error

	// Close releases any resources held by the codec.
	Close() error
}

// Option configures optional codec dependencies.
type Option func(*options)

type options struct {
	logger *slog.Logger
	now    func() time.Time
}

// WithLogger sets the logger used to report dropped records.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the time source used for missing timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func newOptions(opts ...Option) options {
	o := options{
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open returns the codec for the named backend ("json" or "sqlite") at path.
func Open(backend, path string, opts ...Option) (Codec, error) {
	switch backend {
	case "", "json":
		return NewJSONCodec(path, opts...), nil
	case "sqlite":
		return OpenSQLiteCodec(path, opts...)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
