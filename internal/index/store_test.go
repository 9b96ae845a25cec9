// ABOUTME: Tests for page store insert, query, clear, and persistence behaviour.
// ABOUTME: Uses the concept embedder and in-memory codec from helpers_test.go.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/2389-research/pagemem/internal/embeddings"
	"github.com/2389-research/pagemem/internal/models"
	"github.com/2389-research/pagemem/internal/storage"
)

func TestInsertDefaults(t *testing.T) {
	s, codec := newTestStore(t)
	mustInsert(t, s, "https://a.example", "cats are great pets")

	rec, ok := s.Get("https://a.example")
	if !ok {
		t.Fatal("expected record to exist")
	}
	if rec.Title != models.DefaultTitle {
		t.Errorf("Title = %q, want %q", rec.Title, models.DefaultTitle)
	}
	if rec.Timestamp != 1_700_000_000 {
		t.Errorf("Timestamp = %d, want clock time", rec.Timestamp)
	}
	if len(rec.Embedding) != conceptDim {
		t.Errorf("embedding length = %d, want %d", len(rec.Embedding), conceptDim)
	}
	if codec.saves != 1 {
		t.Errorf("expected one save after insert, got %d", codec.saves)
	}
	if _, ok := codec.saved().Records["https://a.example"]; !ok {
		t.Error("expected record in persisted snapshot")
	}
}

func TestInsertValidation(t *testing.T) {
	s, codec := newTestStore(t)
	tests := []struct {
		name    string
		key     string
		summary string
	}{
		{"empty key", "", "cats"},
		{"empty summary", "https://a.example", ""},
		{"blank summary", "https://a.example", "   \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Insert(context.Background(), tt.key, tt.summary)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var opErr *Error
			if !errors.As(err, &opErr) || opErr.Op != "insert" {
				t.Errorf("expected *Error with op insert, got %#v", err)
			}
		})
	}
	if s.Len() != 0 || codec.saves != 0 {
		t.Errorf("rejected inserts must not change state: len=%d saves=%d", s.Len(), codec.saves)
	}
}

func TestInsertOverwrites(t *testing.T) {
	s, _ := newTestStore(t)
	mustInsert(t, s, "https://a.example", "cats", WithTitle("Old"), WithTimestamp(10))
	mustInsert(t, s, "https://a.example", "dogs", WithTitle("New"))

	rec, _ := s.Get("https://a.example")
	if rec.Title != "New" || rec.Summary != "dogs" {
		t.Errorf("expected full overwrite, got %+v", rec)
	}
	if rec.Timestamp == 10 {
		t.Error("expected timestamp to be replaced, not merged")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestInsertIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	mustInsert(t, s, "https://a.example", "cats are great pets", WithTitle("Cats"), WithTimestamp(100))
	first, _ := s.Get("https://a.example")
	firstStats := s.Stats(ctx)

	mustInsert(t, s, "https://a.example", "cats are great pets", WithTitle("Cats"), WithTimestamp(100))
	second, _ := s.Get("https://a.example")
	secondStats := s.Stats(ctx)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("record changed:\nfirst  %+v\nsecond %+v", first, second)
	}
	firstStats.LastUpdated, secondStats.LastUpdated = "", ""
	if !reflect.DeepEqual(firstStats, secondStats) {
		t.Errorf("stats changed:\nfirst  %+v\nsecond %+v", firstStats, secondStats)
	}
}

func TestInsertDegradedStoresZeroVector(t *testing.T) {
	s := New(&conceptEmbedder{unloaded: true}, &memCodec{}, nil)
	mustInsert(t, s, "https://a.example", "cats")

	rec, _ := s.Get("https://a.example")
	for _, v := range rec.Embedding {
		if v != 0 {
			t.Fatalf("expected zero vector, got %v", rec.Embedding)
		}
	}
}

func TestQueryExcludesKey(t *testing.T) {
	s, _ := newTestStore(t)
	summaries := map[string]string{
		"https://a.example": "cats are great pets",
		"https://b.example": "cats and kitten",
		"https://c.example": "dogs are loyal companions",
	}
	for key, summary := range summaries {
		mustInsert(t, s, key, summary)
	}

	for key, summary := range summaries {
		matches, err := s.Query(context.Background(), summary, WithExclude(key), WithThreshold(0))
		if err != nil {
			t.Fatalf("Query error: %v", err)
		}
		for _, m := range matches {
			if m.Key == key {
				t.Errorf("excluded key %s returned", key)
			}
		}
		if len(matches) != len(summaries)-1 {
			t.Errorf("threshold 0 should return every other record, got %v", matchKeys(matches))
		}
	}
}

func TestQuerySelfSimilarity(t *testing.T) {
	s, _ := newTestStore(t)
	mustInsert(t, s, "https://a.example", "rocket to space", WithTitle("Launch"))
	mustInsert(t, s, "https://b.example", "the stock market")

	matches, err := s.Query(context.Background(), "rocket to space", WithThreshold(1-1e-9))
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(matches) != 1 || matches[0].Key != "https://a.example" {
		t.Fatalf("expected only the identical record, got %v", matchKeys(matches))
	}
	m := matches[0]
	if math.Abs(m.Similarity-1) > 1e-9 {
		t.Errorf("self similarity = %v, want 1", m.Similarity)
	}
	if m.Title != "Launch" || m.Summary != "rocket to space" {
		t.Errorf("match metadata not populated: %+v", m)
	}
}

func TestQueryScenario(t *testing.T) {
	s, _ := newTestStore(t)
	mustInsert(t, s, "https://cats.example", "cats are great pets")
	mustInsert(t, s, "https://dogs.example", "dogs are loyal companions")
	mustInsert(t, s, "https://stocks.example", "the stock market fell today")

	matches, err := s.Query(context.Background(), "I love my pet cat", WithThreshold(0.3))
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}

	want := []string{"https://cats.example", "https://dogs.example"}
	if got := matchKeys(matches); !reflect.DeepEqual(got, want) {
		t.Errorf("matches = %v, want %v", got, want)
	}
}

func TestQueryOrdering(t *testing.T) {
	s, _ := newTestStore(t)
	mustInsert(t, s, "https://old.example", "cats", WithTimestamp(100))
	mustInsert(t, s, "https://new.example", "cats", WithTimestamp(300))
	mustInsert(t, s, "https://mid.example", "cats", WithTimestamp(200))
	mustInsert(t, s, "https://mixed.example", "cats and dogs", WithTimestamp(999))
	mustInsert(t, s, "https://tie-b.example", "cats", WithTimestamp(200))

	matches, err := s.Query(context.Background(), "cats", WithThreshold(0))
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}

	want := []string{
		"https://new.example",
		"https://mid.example",
		"https://tie-b.example",
		"https://old.example",
		"https://mixed.example",
	}
	if got := matchKeys(matches); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	for i := 1; i < len(matches); i++ {
		prev, cur := matches[i-1], matches[i]
		if cur.Similarity > prev.Similarity {
			t.Errorf("similarity increased at %d", i)
		}
		if cur.Similarity == prev.Similarity && cur.Timestamp > prev.Timestamp {
			t.Errorf("timestamp increased within a tie at %d", i)
		}
	}
}

func TestQueryThresholdBoundary(t *testing.T) {
	s, _ := newTestStore(t)
	mustInsert(t, s, "https://a.example", "cats")

	e := &conceptEmbedder{}
	ctx := context.Background()
	exact := embeddings.CosineSimilarity(e.Embed(ctx, "cat pet"), e.Embed(ctx, "cats"))

	matches, err := s.Query(ctx, "cat pet", WithThreshold(exact))
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("record at exactly the threshold should match, got %d", len(matches))
	}

	matches, err = s.Query(ctx, "cat pet", WithThreshold(exact+1e-6))
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("record just below the threshold should not match, got %d", len(matches))
	}
}

func TestQueryDefaultThresholdAndLimit(t *testing.T) {
	s, _ := newTestStore(t)
	for i := 0; i < 15; i++ {
		mustInsert(t, s, fmt.Sprintf("https://%02d.example", i), "birds")
	}
	mustInsert(t, s, "https://far.example", "birds and cats and dogs")

	matches, err := s.Query(context.Background(), "birds")
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(matches) != DefaultLimit {
		t.Errorf("expected %d matches, got %d", DefaultLimit, len(matches))
	}
	for _, m := range matches {
		if m.Key == "https://far.example" {
			t.Error("record below the default threshold returned")
		}
	}

	matches, err = s.Query(context.Background(), "birds", WithLimit(3))
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(matches) != 3 {
		t.Errorf("WithLimit(3) returned %d matches", len(matches))
	}
}

func TestQueryErrors(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Query(ctx, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("empty summary: expected ErrValidation, got %v", err)
	}
	if _, err := s.Query(ctx, "cats", WithThreshold(math.NaN())); !errors.Is(err, ErrValidation) {
		t.Errorf("NaN threshold: expected ErrValidation, got %v", err)
	}

	degraded := New(&conceptEmbedder{unloaded: true}, &memCodec{}, nil)
	mustInsert(t, degraded, "https://a.example", "cats")
	_, err := degraded.Query(ctx, "cats", WithThreshold(0))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("unloaded model: expected ErrUnavailable, got %v", err)
	}
	if errors.Is(err, ErrValidation) {
		t.Error("unavailable error should not match ErrValidation")
	}
}

func TestQueryEmptyStore(t *testing.T) {
	s, _ := newTestStore(t)
	matches, err := s.Query(context.Background(), "cats", WithThreshold(0))
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if matches == nil || len(matches) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", matches)
	}
}

func TestQuerySkipsMismatchedDimensions(t *testing.T) {
	codec := &memCodec{snap: storage.NewSnapshot()}
	codec.snap.Records["https://legacy.example"] = models.Record{
		Key: "https://legacy.example", Summary: "cats", Timestamp: 1, Embedding: []float32{1, 0},
	}
	s := New(&conceptEmbedder{}, codec, nil)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open error: %v", err)
	}
	mustInsert(t, s, "https://a.example", "cats")

	matches, err := s.Query(context.Background(), "cats", WithThreshold(0))
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if got := matchKeys(matches); !reflect.DeepEqual(got, []string{"https://a.example"}) {
		t.Errorf("expected mismatched record skipped, got %v", got)
	}
}

func TestQueryZeroVectorScoresZero(t *testing.T) {
	s, _ := newTestStore(t)
	mustInsert(t, s, "https://unknown.example", "words the embedder ignores")

	matches, err := s.Query(context.Background(), "cats", WithThreshold(0))
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(matches) != 1 || matches[0].Similarity != 0 {
		t.Errorf("expected one match with similarity 0, got %+v", matches)
	}
}

func TestClearAll(t *testing.T) {
	s, codec := newTestStore(t)
	ctx := context.Background()
	mustInsert(t, s, "https://a.example", "cats")
	mustInsert(t, s, "https://b.example", "dogs")

	if err := s.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll error: %v", err)
	}

	st := s.Stats(ctx)
	if st.TotalPages != 0 || st.AvgSummaryLength != 0 || len(st.RecentPages) != 0 {
		t.Errorf("expected empty stats, got %+v", st)
	}
	if n := len(codec.saved().Records); n != 0 {
		t.Errorf("expected empty persisted snapshot, got %d records", n)
	}
}

func TestPersistenceFailureDoesNotFailInsert(t *testing.T) {
	s, codec := newTestStore(t)
	ctx := context.Background()
	codec.setFailSave(true)

	if err := s.Insert(ctx, "https://a.example", "cats"); err != nil {
		t.Fatalf("Insert should succeed despite save failure, got %v", err)
	}
	if _, ok := s.Get("https://a.example"); !ok {
		t.Fatal("in-memory store should keep the record")
	}

	if err := s.Flush(ctx); !errors.Is(err, ErrPersistence) {
		t.Errorf("Flush with failing codec: expected ErrPersistence, got %v", err)
	}

	codec.setFailSave(false)
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, ok := codec.saved().Records["https://a.example"]; !ok {
		t.Error("Close should flush the pending record")
	}
	if !codec.closed {
		t.Error("Close should close the codec")
	}
}

func TestCloseSkipsCleanFlush(t *testing.T) {
	s, codec := newTestStore(t)
	mustInsert(t, s, "https://a.example", "cats")
	saves := codec.saves

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if codec.saves != saves {
		t.Errorf("clean store should not be rewritten on Close")
	}
}

func TestOpenLoadFailureStartsEmpty(t *testing.T) {
	codec := &memCodec{loadErr: errors.New("decode store file: unexpected EOF")}
	s := New(&conceptEmbedder{}, codec, nil)

	err := s.Open(context.Background())
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if s.Stats(context.Background()).TotalPages != 0 {
		t.Error("expected empty store after failed load")
	}
	mustInsert(t, s, "https://a.example", "cats")
}

func TestPanicBecomesPersistenceError(t *testing.T) {
	s := New(&conceptEmbedder{panicMsg: "bad tensor shape"}, &memCodec{}, nil)

	err := s.Insert(context.Background(), "https://a.example", "cats")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence from recovered panic, got %v", err)
	}
	if s.Len() != 0 {
		t.Error("failed insert should not store a record")
	}
}

func TestMissingFileRoundtrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pages.json")
	provider := embeddings.NewProvider(embeddings.LoaderFor(embeddings.Settings{Provider: "local"}))

	s := New(provider, storage.NewJSONCodec(path), nil)
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if s.Stats(ctx).TotalPages != 0 {
		t.Fatal("expected empty store for missing file")
	}

	mustInsert(t, s, "https://a.example", "cats are great pets", WithTitle("Cats"), WithTimestamp(1_700_000_123))
	want, _ := s.Get("https://a.example")
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	reopened := New(provider, storage.NewJSONCodec(path), nil)
	if err := reopened.Open(ctx); err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	got, ok := reopened.Get("https://a.example")
	if !ok {
		t.Fatal("record missing after reload")
	}
	if got.Summary != want.Summary || got.Title != want.Title || got.Timestamp != want.Timestamp {
		t.Errorf("metadata mismatch: got %+v, want %+v", got, want)
	}
	if len(got.Embedding) != len(want.Embedding) {
		t.Fatalf("embedding length %d, want %d", len(got.Embedding), len(want.Embedding))
	}
	for i := range got.Embedding {
		if math.Abs(float64(got.Embedding[i]-want.Embedding[i])) > 1e-6 {
			t.Fatalf("embedding[%d] = %v, want %v", i, got.Embedding[i], want.Embedding[i])
		}
	}
}

func TestConcurrentInsertAndQuery(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pages.json")
	s := New(&conceptEmbedder{}, storage.NewJSONCodec(path), nil)
	if err := s.Open(ctx); err != nil {
		t.Fatalf("Open error: %v", err)
	}

	const workers = 8
	const perWorker = 10
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("https://%d-%d.example", w, i)
				if err := s.Insert(ctx, key, "cats and dogs"); err != nil {
					t.Errorf("Insert error: %v", err)
					return
				}
				if _, err := s.Query(ctx, "cats", WithThreshold(0)); err != nil {
					t.Errorf("Query error: %v", err)
					return
				}
				_ = s.Stats(ctx)
			}
		}(w)
	}
	wg.Wait()

	snap, err := storage.NewJSONCodec(path).Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(snap.Records) != workers*perWorker {
		t.Errorf("persisted %d records, want %d", len(snap.Records), workers*perWorker)
	}
}
