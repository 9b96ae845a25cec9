// ABOUTME: Connection validation for the configured embedding backend.
// ABOUTME: Builds the backend and embeds a probe text to confirm it responds.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/2389-research/pagemem/internal/embeddings"
)

// ValidateConnection checks that the backend described by s can produce an embedding.
// The context allows cancellation when the user quits during validation.
func ValidateConnection(ctx context.Context, s embeddings.Settings) error {
	if err := embeddings.Probe(ctx, s); err != nil {
		return fmt.Errorf("%s backend: %w", providerName(s.Provider), err)
	}
	return nil
}

// NormalizeBaseURL trims whitespace and trailing slashes. Ollama URLs also lose
// a trailing /api since the backend appends its own path.
func NormalizeBaseURL(provider, baseURL string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if provider == "ollama" {
		baseURL = strings.TrimSuffix(baseURL, "/api")
	}
	return baseURL
}

func providerName(p string) string {
	if p == "" {
		return DefaultProvider
	}
	return p
}
