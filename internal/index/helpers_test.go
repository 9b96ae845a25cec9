// ABOUTME: Test doubles for the page store: a concept embedder and an in-memory codec.
// ABOUTME: The concept embedder maps known words to fixed axes so similarities are exact.
package index

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2389-research/pagemem/internal/models"
	"github.com/2389-research/pagemem/internal/storage"
)

const conceptDim = 6

// conceptAxes maps words to the axis they increment.
var conceptAxes = map[string]int{
	"cat": 0, "cats": 0, "kitten": 0,
	"dog": 1, "dogs": 1, "puppy": 1,
	"pet": 2, "pets": 2, "loyal": 2, "companions": 2,
	"stock": 3, "market": 3, "shares": 3,
	"bird": 4, "birds": 4,
	"rocket": 5, "space": 5,
}

// conceptEmbedder is a deterministic Provider for tests. Unknown words are ignored.
type conceptEmbedder struct {
	unloaded bool
	panicMsg string
}

func (e *conceptEmbedder) Embed(_ context.Context, text string) []float32 {
	if e.panicMsg != "" {
		panic(e.panicMsg)
	}
	vec := make([]float32, conceptDim)
	if e.unloaded {
		return vec
	}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if axis, ok := conceptAxes[strings.Trim(w, ".,!?")]; ok {
			vec[axis]++
		}
	}
	return vec
}

func (e *conceptEmbedder) ModelLoaded(context.Context) bool {
	return !e.unloaded
}

// memCodec is an in-memory storage.Codec that can be told to fail.
type memCodec struct {
	mu       sync.Mutex
	snap     *storage.Snapshot
	loadErr  error
	failSave bool
	saves    int
	closed   bool
}

var errDiskFull = errors.New("disk full")

func (c *memCodec) Load(context.Context) (*storage.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loadErr != nil {
		return nil, c.loadErr
	}
	if c.snap == nil {
		return storage.NewSnapshot(), nil
	}
	return copySnapshot(c.snap), nil
}

func (c *memCodec) Save(_ context.Context, snap *storage.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSave {
		return errDiskFull
	}
	c.saves++
	c.snap = copySnapshot(snap)
	return nil
}

func (c *memCodec) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *memCodec) saved() *storage.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

func (c *memCodec) setFailSave(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSave = fail
}

func copySnapshot(in *storage.Snapshot) *storage.Snapshot {
	out := storage.NewSnapshot()
	out.LastUpdated = in.LastUpdated
	for k, r := range in.Records {
		out.Records[k] = r.Clone()
	}
	return out
}

// testClock returns a clock that advances one second per call, starting at start.
func testClock(start int64) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := time.Unix(next, 0)
		next++
		return t
	}
}

func newTestStore(t *testing.T) (*Store, *memCodec) {
	t.Helper()
	codec := &memCodec{}
	s := New(&conceptEmbedder{}, codec, nil, WithClock(testClock(1_700_000_000)))
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open error: %v", err)
	}
	return s, codec
}

func mustInsert(t *testing.T, s *Store, key, summary string, opts ...InsertOption) {
	t.Helper()
	if err := s.Insert(context.Background(), key, summary, opts...); err != nil {
		t.Fatalf("Insert(%q) error: %v", key, err)
	}
}

func matchKeys(matches []models.Match) []string {
	keys := make([]string, len(matches))
	for i, m := range matches {
		keys[i] = m.Key
	}
	return keys
}
