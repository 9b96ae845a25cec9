// ABOUTME: MCP tool implementations for page memory operations.
// ABOUTME: Registers store_page, find_similar_pages, page_stats, list_pages, clear_pages.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/pagemem/internal/index"
)

func (s *Server) registerPageTools() {
	s.mcp.AddTool(&gomcp.Tool{
		Name:        "store_page",
		Description: "Remember a web page by its URL and a short summary. Storing the same URL again replaces the previous summary.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "Page URL, used as the unique key"},
				"summary": {"type": "string", "description": "Summary text to embed and search against"},
				"title": {"type": "string", "description": "Display title (default: Unknown Title)"},
				"timestamp": {"type": "integer", "description": "Seconds since epoch (default: now)"}
			},
			"required": ["url", "summary"]
		}`),
	}, s.handleStorePage)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "find_similar_pages",
		Description: "Find remembered pages whose summaries are semantically similar to the given text. Returns matches ranked by cosine similarity.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"summary": {"type": "string", "description": "Text to compare against stored summaries"},
				"exclude_url": {"type": "string", "description": "URL to leave out of the results, usually the current page"},
				"threshold": {"type": "number", "description": "Minimum similarity, inclusive (default 0.7)"},
				"limit": {"type": "integer", "minimum": 1, "description": "Maximum number of results (default 10)"}
			},
			"required": ["summary"]
		}`),
	}, s.handleFindSimilarPages)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "page_stats",
		Description: "Show how many pages are remembered, the average summary length, model status, and the most recent pages.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	}, s.handlePageStats)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "list_pages",
		Description: "List remembered pages, newest first, with shortened summaries.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"limit": {"type": "integer", "minimum": 0, "description": "Maximum number of pages to return (default: all)"}
			}
		}`),
	}, s.handleListPages)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "clear_pages",
		Description: "Forget every remembered page. This cannot be undone; pass confirm=true.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"confirm": {"type": "boolean", "description": "Must be true to clear"}
			},
			"required": ["confirm"]
		}`),
	}, s.handleClearPages)
}

func (s *Server) handleStorePage(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		URL       string   `json:"url"`
		Summary   string   `json:"summary"`
		Title     string   `json:"title"`
		Timestamp *float64 `json:"timestamp"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	var opts []index.InsertOption
	if args.Title != "" {
		opts = append(opts, index.WithTitle(args.Title))
	}
	if args.Timestamp != nil {
		opts = append(opts, index.WithTimestamp(int64(*args.Timestamp)))
	}

	if err := s.store.Insert(ctx, args.URL, args.Summary, opts...); err != nil {
		return storeError(err), nil
	}

	text := fmt.Sprintf("Stored page: %s", args.URL)
	if !s.store.ModelLoaded(ctx) {
		text += "\nWarning: embedding model not loaded; this page will not match searches until it is stored again."
	}
	return textResult(text), nil
}

func (s *Server) handleFindSimilarPages(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Summary    string   `json:"summary"`
		ExcludeURL string   `json:"exclude_url"`
		Threshold  *float64 `json:"threshold"`
		Limit      int      `json:"limit"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	opts := []index.QueryOption{index.WithExclude(args.ExcludeURL), index.WithLimit(args.Limit)}
	if args.Threshold != nil {
		opts = append(opts, index.WithThreshold(*args.Threshold))
	}

	matches, err := s.store.Query(ctx, args.Summary, opts...)
	if err != nil {
		return storeError(err), nil
	}

	if len(matches) == 0 {
		return textResult("No similar pages found."), nil
	}

	var sb strings.Builder
	for i, m := range matches {
		if i > 0 {
			sb.WriteString("\n---\n")
		}
		sb.WriteString(fmt.Sprintf("%.3f  %s\n", m.Similarity, m.Title))
		sb.WriteString(fmt.Sprintf("URL: %s\n", m.Key))
		sb.WriteString(fmt.Sprintf("Date: %s\n", formatUnix(m.Timestamp)))
		sb.WriteString(m.Summary)
		sb.WriteString("\n")
	}

	return textResult(sb.String()), nil
}

func (s *Server) handlePageStats(ctx context.Context, _ *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	st := s.store.Stats(ctx)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Status: %s\n", st.Status))
	sb.WriteString(fmt.Sprintf("Pages: %d\n", st.TotalPages))
	sb.WriteString(fmt.Sprintf("Summaries: %d\n", st.TotalSummaries))
	sb.WriteString(fmt.Sprintf("Average summary length: %.1f\n", st.AvgSummaryLength))
	if st.LastUpdated != "" {
		sb.WriteString(fmt.Sprintf("Last updated: %s\n", st.LastUpdated))
	}
	if len(st.RecentPages) > 0 {
		sb.WriteString("\nRecent pages:\n")
		for _, p := range st.RecentPages {
			sb.WriteString(fmt.Sprintf("- %s %s (%s)\n", formatUnix(p.Timestamp), p.Title, p.Key))
		}
	}

	return textResult(sb.String()), nil
}

func (s *Server) handleListPages(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Limit int `json:"limit"`
	}
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return toolError("invalid arguments: %v", err), nil
		}
	}

	pages := s.store.List(ctx)
	if len(pages) == 0 {
		return textResult("No pages stored."), nil
	}
	if args.Limit > 0 && len(pages) > args.Limit {
		pages = pages[:args.Limit]
	}

	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString(fmt.Sprintf("- %s %s (%s)\n  %s\n", formatUnix(p.Timestamp), p.Title, p.Key, p.Summary))
	}

	return textResult(sb.String()), nil
}

func (s *Server) handleClearPages(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Confirm bool `json:"confirm"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}
	if !args.Confirm {
		return toolError("confirm must be true to clear all pages"), nil
	}

	n := s.store.Len()
	if err := s.store.ClearAll(ctx); err != nil {
		return storeError(err), nil
	}
	s.logger.Info("cleared pages via mcp", "removed", n)

	return textResult(fmt.Sprintf("Cleared %d pages.", n)), nil
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).Format("2006-01-02 15:04:05")
}

func textResult(text string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: text}},
	}
}

// storeError turns a store failure into a tool error, naming the kind of failure.
func storeError(err error) *gomcp.CallToolResult {
	switch {
	case errors.Is(err, index.ErrValidation):
		return toolError("invalid request: %v", err)
	case errors.Is(err, index.ErrUnavailable):
		return toolError("embedding model not loaded; similarity search is unavailable")
	default:
		return toolError("page store error: %v", err)
	}
}

// toolError creates an error result for MCP tool responses.
func toolError(format string, args ...interface{}) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
