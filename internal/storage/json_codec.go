// ABOUTME: Single-file JSON persistence for the page store.
// ABOUTME: Rewrites the whole file atomically and tolerates older or partial layouts.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/2389-research/pagemem/internal/models"
)

// JSONCodec stores every record, embeddings included, in one JSON file.
type JSONCodec struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// fileRecord is the on-disk form of one record. Title and timestamp may be
// absent in files written by older versions.
type fileRecord struct {
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Timestamp *float64  `json:"timestamp,omitempty"`
	Embedding []float32 `json:"embedding"`
}

// fileSnapshot is the top-level persisted structure.
type fileSnapshot struct {
	Records     map[string]fileRecord `json:"records"`
	LastUpdated string                `json:"lastUpdated,omitempty"`

	// Webpages is the older layout keyed by "webpages".
	Webpages map[string]fileRecord `json:"webpages,omitempty"`
}

// lastUpdatedLayouts are tried in order when parsing lastUpdated.
var lastUpdatedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// NewJSONCodec creates a codec for the file at path.
func NewJSONCodec(path string, opts ...Option) *JSONCodec {
	o := newOptions(opts...)
	return &JSONCodec{path: path, logger: o.logger, now: o.now}
}

// Path returns the file location.
func (c *JSONCodec) Path() string {
	return c.path
}

// Load reads the snapshot from disk. Returns an empty snapshot if the file doesn't exist.
func (c *JSONCodec) Load(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store file: %w", err)
	}

	var fs fileSnapshot
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("decode store file: %w", err)
	}

	raw := fs.Records
	if raw == nil && fs.Webpages != nil {
		raw = fs.Webpages
	}

	snap := NewSnapshot()
	snap.LastUpdated = parseLastUpdated(fs.LastUpdated)

	loadTime := c.now().Unix()
	for key, fr := range raw {
		if key == "" {
			c.logger.Warn("dropping stored record with empty key")
			continue
		}
		if len(fr.Embedding) == 0 {
			c.logger.Warn("dropping stored record without embedding", "url", key)
			continue
		}
		ts := loadTime
		if fr.Timestamp != nil {
			ts = int64(*fr.Timestamp)
		}
		snap.Records[key] = models.Record{
			Key:       key,
			Title:     fr.Title,
			Summary:   fr.Summary,
			Timestamp: ts,
			Embedding: fr.Embedding,
		}
	}

	return snap, nil
}

// Save writes the snapshot to disk, replacing the previous file atomically.
func (c *JSONCodec) Save(_ context.Context, snap *Snapshot) error {
	fs := fileSnapshot{
		Records:     make(map[string]fileRecord, len(snap.Records)),
		LastUpdated: snap.LastUpdated.UTC().Format(time.RFC3339Nano),
	}
	for key, rec := range snap.Records {
		ts := float64(rec.Timestamp)
		fs.Records[key] = fileRecord{
			Title:     rec.Title,
			Summary:   rec.Summary,
			Timestamp: &ts,
			Embedding: rec.Embedding,
		}
	}

	data, err := json.Marshal(fs)
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	if err := AtomicWrite(c.path, data); err != nil {
		return fmt.Errorf("write store file: %w", err)
	}
	return nil
}

// Close implements Codec.
func (c *JSONCodec) Close() error {
	return nil
}

func parseLastUpdated(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range lastUpdatedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// AtomicWrite writes data to a temp file in the target directory and renames it
// over path, so readers never observe a partially written file.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
