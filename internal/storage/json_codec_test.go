// ABOUTME: Tests for the single-file JSON codec.
// ABOUTME: Covers roundtrip, missing files, corrupt files, defaults, and the legacy layout.
package storage

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/2389-research/pagemem/internal/models"
)

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func sampleSnapshot() *Snapshot {
	snap := NewSnapshot()
	snap.LastUpdated = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	snap.Records["https://example.com/cats"] = models.Record{
		Key:       "https://example.com/cats",
		Title:     "Cats",
		Summary:   "cats are great pets",
		Timestamp: 1700000000,
		Embedding: []float32{0.1, 0.2, 0.3, 0.123456789},
	}
	snap.Records["https://example.com/stocks"] = models.Record{
		Key:       "https://example.com/stocks",
		Title:     "Markets",
		Summary:   "the stock market fell today",
		Timestamp: 1700000100,
		Embedding: []float32{-0.5, 0, 0.25, 1},
	}
	return snap
}

func TestJSONCodecRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pages.json")
	codec := NewJSONCodec(path)
	ctx := context.Background()

	want := sampleSnapshot()
	if err := codec.Save(ctx, want); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, err := codec.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !reflect.DeepEqual(got.Records, want.Records) {
		t.Errorf("records mismatch:\ngot  %+v\nwant %+v", got.Records, want.Records)
	}
	if !got.LastUpdated.Equal(want.LastUpdated) {
		t.Errorf("LastUpdated = %v, want %v", got.LastUpdated, want.LastUpdated)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat store file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}
}

func TestJSONCodecMissingFile(t *testing.T) {
	codec := NewJSONCodec(filepath.Join(t.TempDir(), "absent.json"))
	snap, err := codec.Load(context.Background())
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if len(snap.Records) != 0 {
		t.Errorf("expected empty snapshot, got %d records", len(snap.Records))
	}
}

func TestJSONCodecCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.json")
	if err := os.WriteFile(path, []byte(`{"records": [oops`), 0600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	if _, err := NewJSONCodec(path).Load(context.Background()); err == nil {
		t.Error("expected decode error for corrupt file")
	}
}

func TestJSONCodecDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pages.json")
	data := `{"records": {
		"https://a.example": {"summary": "no title or timestamp", "embedding": [1, 0]},
		"https://b.example": {"title": "No embedding", "summary": "dropped"}
	}}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	snap, err := NewJSONCodec(path, WithClock(fixedClock(1234))).Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if len(snap.Records) != 1 {
		t.Fatalf("expected record without embedding to be dropped, got %d records", len(snap.Records))
	}
	rec := snap.Records["https://a.example"]
	if rec.Title != "" {
		t.Errorf("expected empty title default, got %q", rec.Title)
	}
	if rec.Timestamp != 1234 {
		t.Errorf("expected timestamp from clock, got %d", rec.Timestamp)
	}
	if rec.Key != "https://a.example" {
		t.Errorf("expected key populated from map key, got %q", rec.Key)
	}
	if !snap.LastUpdated.IsZero() {
		t.Errorf("expected zero LastUpdated, got %v", snap.LastUpdated)
	}
}

func TestJSONCodecLegacyLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webpage_data.json")
	data := `{
		"webpages": {
			"https://old.example": {"title": "Old", "summary": "legacy summary", "timestamp": 1690000000, "embedding": [0.5, 0.5]}
		},
		"embeddings": {"https://old.example": [0.5, 0.5]},
		"lastUpdated": "2024-03-01T10:20:30.123456"
	}`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	snap, err := NewJSONCodec(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	rec, ok := snap.Records["https://old.example"]
	if !ok {
		t.Fatal("expected legacy record to load")
	}
	if rec.Timestamp != 1690000000 || rec.Title != "Old" {
		t.Errorf("unexpected legacy record %+v", rec)
	}
	if snap.LastUpdated.Year() != 2024 {
		t.Errorf("expected legacy lastUpdated to parse, got %v", snap.LastUpdated)
	}
}

func TestJSONCodecSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	codec := NewJSONCodec(filepath.Join(dir, "pages.json"))
	for i := 0; i < 3; i++ {
		if err := codec.Save(context.Background(), sampleSnapshot()); err != nil {
			t.Fatalf("Save error: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("unexpected temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one file, got %d", len(entries))
	}
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()

	c, err := Open("json", filepath.Join(dir, "pages.json"))
	if err != nil {
		t.Fatalf("Open(json) error: %v", err)
	}
	if _, ok := c.(*JSONCodec); !ok {
		t.Errorf("expected *JSONCodec, got %T", c)
	}

	c, err = Open("sqlite", filepath.Join(dir, "pages.db"))
	if err != nil {
		t.Fatalf("Open(sqlite) error: %v", err)
	}
	defer func() { _ = c.Close() }()
	if _, ok := c.(*SQLiteCodec); !ok {
		t.Errorf("expected *SQLiteCodec, got %T", c)
	}

	if _, err := Open("bolt", filepath.Join(dir, "pages.bolt")); err == nil {
		t.Error("expected error for unknown backend")
	}
}
