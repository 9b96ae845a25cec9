// ABOUTME: Ollama embedding backend using the /api/embed HTTP endpoint.
// ABOUTME: Talks to a local or remote Ollama server with a request timeout.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama defaults.
const (
	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
)

// ollamaEmbedRequest is the request body for Ollama's /api/embed endpoint.
type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// ollamaEmbedResponse is the response from Ollama's /api/embed endpoint.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// OllamaBackend embeds text through an Ollama server.
type OllamaBackend struct {
	host       string
	model      string
	dim        int
	httpClient *http.Client
}

// NewOllamaBackend creates an Ollama backend. Empty host and model use the defaults.
func NewOllamaBackend(host, model string, dim int, httpClient *http.Client) *OllamaBackend {
	if host == "" {
		host = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &OllamaBackend{
		host:       strings.TrimRight(host, "/"),
		model:      model,
		dim:        dim,
		httpClient: httpClient,
	}
}

// Embed returns the embedding vector for the given text.
func (b *OllamaBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: b.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, fmt.Errorf("ollama embed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama returned empty embeddings")
	}

	return result.Embeddings[0], nil
}

// Dimension returns the configured dimension. The real dimension is learned by
// the Provider's probe.
func (b *OllamaBackend) Dimension() int {
	return b.dim
}
