// ABOUTME: In-memory similarity store for page summaries backed by a persistence codec.
// ABOUTME: Embeds summaries on insert and answers brute-force cosine similarity queries.
package index

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/2389-research/pagemem/internal/embeddings"
	"github.com/2389-research/pagemem/internal/logging"
	"github.com/2389-research/pagemem/internal/models"
	"github.com/2389-research/pagemem/internal/storage"
)

// Provider maps text to embeddings. *embeddings.Provider satisfies it.
type Provider interface {
	// Embed never fails; it returns a zero vector when the model is unavailable.
	Embed(ctx context.Context, text string) []float32

	// ModelLoaded reports whether embeddings are meaningful.
	ModelLoaded(ctx context.Context) bool
}

// Store owns the URL to record mapping. It is safe for concurrent use.
// Every mutation rewrites the persisted snapshot while holding the write lock.
type Store struct {
	provider Provider
	codec    storage.Codec
	logger   *slog.Logger
	now      func() time.Time

	mu          sync.RWMutex
	records     map[string]models.Record
	lastUpdated time.Time
	dirty       bool
}

// New creates an empty store. Call Open to load persisted state.
func New(provider Provider, codec storage.Codec, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Store{
		provider: provider,
		codec:    codec,
		logger:   logger,
		now:      time.Now,
		records:  make(map[string]models.Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the persisted snapshot. If it cannot be read or decoded the store
// stays empty and usable, and the returned error has kind ErrPersistence.
func (s *Store) Open(ctx context.Context) (err error) {
	defer recoverOp("open", &err)

	snap, loadErr := s.codec.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if loadErr != nil {
		s.logger.Error("failed to load page store, starting empty", "error", loadErr)
		s.records = make(map[string]models.Record)
		return persistenceError("open", loadErr)
	}

	s.records = snap.Records
	if s.records == nil {
		s.records = make(map[string]models.Record)
	}
	s.lastUpdated = snap.LastUpdated
	s.dirty = false
	s.logger.Info("page store loaded", "pages", len(s.records))
	return nil
}

// Insert embeds summary and writes or overwrites the record for key.
// Persistence failures are logged and retried on the next write or Close.
func (s *Store) Insert(ctx context.Context, key, summary string, opts ...InsertOption) (err error) {
	defer recoverOp("insert", &err)

	if key == "" {
		return validationError("insert", "url is required")
	}
	if strings.TrimSpace(summary) == "" {
		return validationError("insert", "summary is required")
	}

	o := insertOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.title == "" {
		o.title = models.DefaultTitle
	}
	if !o.hasTime {
		o.timestamp = s.now().Unix()
	}

	if !s.provider.ModelLoaded(ctx) {
		s.logger.Warn("embedding model not loaded, storing zero vector", "url", key)
	}
	vec := s.provider.Embed(ctx, summary)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = models.Record{
		Key:       key,
		Title:     o.title,
		Summary:   summary,
		Timestamp: o.timestamp,
		Embedding: vec,
	}
	s.persistLocked(ctx)

	s.logger.Info("stored page", "url", key, "title", o.title)
	return nil
}

// Query returns records whose cosine similarity to summary is at least the
// threshold, best first. Equal scores order newest first, then by key.
func (s *Store) Query(ctx context.Context, summary string, opts ...QueryOption) (matches []models.Match, err error) {
	defer recoverOp("query", &err)

	o := queryOptions{threshold: DefaultThreshold, limit: DefaultLimit}
	for _, opt := range opts {
		opt(&o)
	}

	if strings.TrimSpace(summary) == "" {
		return nil, validationError("query", "summary is required")
	}
	if math.IsNaN(o.threshold) {
		return nil, validationError("query", "threshold must be a number")
	}
	if !s.provider.ModelLoaded(ctx) {
		return nil, &Error{Kind: ErrUnavailable, Op: "query"}
	}

	vec := s.provider.Embed(ctx, summary)

	s.mu.RLock()
	matches = make([]models.Match, 0)
	for key, rec := range s.records {
		if key == o.exclude {
			continue
		}
		if len(rec.Embedding) != len(vec) {
			s.logger.Warn("skipping stored page with mismatched embedding dimension",
				"url", key, "got", len(rec.Embedding), "want", len(vec))
			continue
		}
		sim := embeddings.CosineSimilarity(vec, rec.Embedding)
		if sim < o.threshold {
			continue
		}
		matches = append(matches, models.Match{
			Key:        key,
			Title:      rec.Title,
			Summary:    rec.Summary,
			Similarity: sim,
			Timestamp:  rec.Timestamp,
		})
	}
	s.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		if a.Timestamp != b.Timestamp {
			return a.Timestamp > b.Timestamp
		}
		return a.Key < b.Key
	})

	if len(matches) > o.limit {
		matches = matches[:o.limit]
	}

	s.logger.Debug("similarity query", "matches", len(matches), "threshold", o.threshold)
	return matches, nil
}

// Get returns a copy of the record for key.
func (s *Store) Get(key string) (models.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return models.Record{}, false
	}
	return rec.Clone(), true
}

// ModelLoaded reports whether the embedding model is available.
func (s *Store) ModelLoaded(ctx context.Context) bool {
	return s.provider.ModelLoaded(ctx)
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// ClearAll removes every record and persists the empty store.
func (s *Store) ClearAll(ctx context.Context) (err error) {
	defer recoverOp("clear", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.records)
	s.records = make(map[string]models.Record)
	s.persistLocked(ctx)

	s.logger.Info("cleared page store", "removed", n)
	return nil
}

// Flush writes the store if a previous persist failed.
func (s *Store) Flush(ctx context.Context) (err error) {
	defer recoverOp("flush", &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	if err := s.saveLocked(ctx); err != nil {
		return persistenceError("flush", err)
	}
	return nil
}

// Close flushes pending state and releases the codec.
func (s *Store) Close(ctx context.Context) error {
	flushErr := s.Flush(ctx)
	if err := s.codec.Close(); err != nil {
		return errors.Join(flushErr, persistenceError("close", err))
	}
	return flushErr
}

// persistLocked saves the snapshot, logging failures. Caller holds s.mu.
func (s *Store) persistLocked(ctx context.Context) {
	if err := s.saveLocked(ctx); err != nil {
		s.logger.Error("failed to persist page store", "error", persistenceError("save", err))
	}
}

// saveLocked writes every record. Caller holds s.mu.
func (s *Store) saveLocked(ctx context.Context) error {
	snap := storage.NewSnapshot()
	for key, rec := range s.records {
		snap.Records[key] = rec
	}
	snap.LastUpdated = s.now()

	if err := s.codec.Save(ctx, snap); err != nil {
		s.dirty = true
		return err
	}
	s.dirty = false
	s.lastUpdated = snap.LastUpdated
	return nil
}
