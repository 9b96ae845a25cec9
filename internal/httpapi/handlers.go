// ABOUTME: Request handlers for the page store HTTP API.
// ABOUTME: Decodes JSON bodies, calls the store, and maps store errors to status codes.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/2389-research/pagemem/internal/index"
	"github.com/2389-research/pagemem/internal/models"
)

type storeRequest struct {
	URL       string   `json:"url"`
	Summary   string   `json:"summary"`
	Title     string   `json:"title"`
	Timestamp *float64 `json:"timestamp"`
}

type similarRequest struct {
	Summary    string   `json:"summary"`
	CurrentURL string   `json:"currentUrl"`
	Threshold  *float64 `json:"threshold"`
	Limit      int      `json:"limit"`
}

type healthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	ModelLoaded bool   `json:"model_loaded"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type similarResponse struct {
	Success      bool           `json:"success"`
	SimilarPages []models.Match `json:"similarPages"`
	TotalFound   int            `json:"totalFound"`
}

type statsResponse struct {
	Success bool         `json:"success"`
	Stats   models.Stats `json:"stats"`
}

type webpagesResponse struct {
	Success  bool                 `json:"success"`
	Webpages []models.PageListing `json:"webpages"`
	Total    int                  `json:"total"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		Timestamp:   s.now().UTC().Format(time.RFC3339),
		ModelLoaded: s.store.ModelLoaded(r.Context()),
	})
}

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if !s.decode(w, r, &req) {
		return
	}

	var opts []index.InsertOption
	if req.Title != "" {
		opts = append(opts, index.WithTitle(req.Title))
	}
	if req.Timestamp != nil {
		opts = append(opts, index.WithTimestamp(int64(*req.Timestamp)))
	}

	if err := s.store.Insert(r.Context(), req.URL, req.Summary, opts...); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Webpage stored successfully"})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if !s.decode(w, r, &req) {
		return
	}

	opts := []index.QueryOption{index.WithExclude(req.CurrentURL)}
	if req.Threshold != nil {
		opts = append(opts, index.WithThreshold(*req.Threshold))
	}
	if req.Limit > 0 {
		opts = append(opts, index.WithLimit(req.Limit))
	}

	matches, err := s.store.Query(r.Context(), req.Summary, opts...)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, similarResponse{
		Success:      true,
		SimilarPages: matches,
		TotalFound:   len(matches),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{Success: true, Stats: s.store.Stats(r.Context())})
}

func (s *Server) handleWebpages(w http.ResponseWriter, r *http.Request) {
	pages := s.store.List(r.Context())
	writeJSON(w, http.StatusOK, webpagesResponse{Success: true, Webpages: pages, Total: len(pages)})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearAll(r.Context()); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "All data cleared successfully"})
}

// decode reads a JSON body into v, writing a 400 response on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Debug("rejecting request body", "error", err, "request_id", requestIDFrom(r.Context()))
		writeError(w, http.StatusBadRequest, "No data provided")
		return false
	}
	return true
}

// writeStoreError maps store error kinds to HTTP status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, index.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, index.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err, "request_id", requestIDFrom(r.Context()))
	}
	writeError(w, status, errorMessage(err))
}

// errorMessage returns the client-facing text for a store error.
func errorMessage(err error) string {
	var opErr *index.Error
	if errors.As(err, &opErr) && opErr.Err != nil {
		return opErr.Err.Error()
	}
	if errors.Is(err, index.ErrUnavailable) {
		return "Model not loaded"
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}
