// ABOUTME: Core data models for stored page summaries and similarity results.
// ABOUTME: Shared by the index, persistence codecs, and the CLI/HTTP/MCP surfaces.
package models

import (
	"unicode/utf8"
)

// DefaultTitle is used when a page is stored without a title.
const DefaultTitle = "Unknown Title"

// Record is the stored unit for one page, keyed by URL.
type Record struct {
	Key       string
	Title     string
	Summary   string
	Timestamp int64 // seconds since epoch
	Embedding []float32
}

// Clone returns a deep copy of the record so callers cannot mutate stored embeddings.
func (r Record) Clone() Record {
	out := r
	if r.Embedding != nil {
		out.Embedding = make([]float32, len(r.Embedding))
		copy(out.Embedding, r.Embedding)
	}
	return out
}

// Match is a single similarity search hit.
type Match struct {
	Key        string  `json:"url"`
	Title      string  `json:"title"`
	Summary    string  `json:"summary"`
	Similarity float64 `json:"similarity"`
	Timestamp  int64   `json:"timestamp"`
}

// RecentPage is the reduced view of a record used in stats.
type RecentPage struct {
	Key       string `json:"url"`
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"`
}

// Stats aggregates the store contents.
type Stats struct {
	TotalPages       int          `json:"totalPages"`
	TotalSummaries   int          `json:"totalSummaries"`
	AvgSummaryLength float64      `json:"avgSummaryLength"`
	Status           string       `json:"status"`
	ModelLoaded      bool         `json:"modelLoaded"`
	LastUpdated      string       `json:"lastUpdated,omitempty"`
	RecentPages      []RecentPage `json:"recentPages"`
}

// Status values reported in Stats.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// PageListing is a record summary for listing, without the embedding.
type PageListing struct {
	Key       string `json:"url"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Timestamp int64  `json:"timestamp"`
}

// TruncateRunes shortens s to maxLen runes, adding "..." if truncated.
func TruncateRunes(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
