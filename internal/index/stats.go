// ABOUTME: Aggregate statistics and listings over the page store.
// ABOUTME: Reports counts, average summary length, model status, and recent pages.
package index

import (
	"context"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/2389-research/pagemem/internal/models"
)

// Stats summarizes the store. Status is online only when the model is loaded.
func (s *Store) Stats(ctx context.Context) models.Stats {
	loaded := s.provider.ModelLoaded(ctx)

	s.mu.RLock()
	defer s.mu.RUnlock()

	st := models.Stats{
		TotalPages:  len(s.records),
		Status:      models.StatusOffline,
		ModelLoaded: loaded,
		RecentPages: make([]models.RecentPage, 0, RecentPagesLimit),
	}
	if loaded {
		st.Status = models.StatusOnline
	}
	if !s.lastUpdated.IsZero() {
		st.LastUpdated = s.lastUpdated.UTC().Format(time.RFC3339)
	}

	var totalChars int
	for _, rec := range s.records {
		if rec.Summary != "" {
			st.TotalSummaries++
		}
		totalChars += utf8.RuneCountInString(rec.Summary)
	}
	if st.TotalPages > 0 {
		st.AvgSummaryLength = float64(totalChars) / float64(st.TotalPages)
	}

	for i, rec := range s.newestLocked() {
		if i == RecentPagesLimit {
			break
		}
		st.RecentPages = append(st.RecentPages, models.RecentPage{
			Key:       rec.Key,
			Title:     rec.Title,
			Timestamp: rec.Timestamp,
		})
	}

	return st
}

// List returns every record newest first, with summaries shortened for display.
func (s *Store) List(_ context.Context) []models.PageListing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.PageListing, 0, len(s.records))
	for _, rec := range s.newestLocked() {
		out = append(out, models.PageListing{
			Key:       rec.Key,
			Title:     rec.Title,
			Summary:   models.TruncateRunes(rec.Summary, ListSummaryChars),
			Timestamp: rec.Timestamp,
		})
	}
	return out
}

// newestLocked returns records ordered by timestamp descending, then key.
// Caller holds s.mu.
func (s *Store) newestLocked() []models.Record {
	recs := make([]models.Record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Timestamp != recs[j].Timestamp {
			return recs[i].Timestamp > recs[j].Timestamp
		}
		return recs[i].Key < recs[j].Key
	})
	return recs
}
