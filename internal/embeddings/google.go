// ABOUTME: Gemini embedding backend built on the generative-ai-go client.
// ABOUTME: Uses the EmbeddingModel API with an API key.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	genaiopt "google.golang.org/api/option"
)

// DefaultGoogleModel is used when no model is configured.
const DefaultGoogleModel = "text-embedding-004"

// GoogleBackend embeds text through the Gemini API.
type GoogleBackend struct {
	client *genai.Client
	model  string
	dim    int
}

// NewGoogleBackend creates a Gemini backend.
func NewGoogleBackend(ctx context.Context, apiKey, model string, dim int) (*GoogleBackend, error) {
	if apiKey == "" {
		return nil, errors.New("google embedding backend requires an api key")
	}
	if model == "" {
		model = DefaultGoogleModel
	}

	client, err := genai.NewClient(ctx, genaiopt.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GoogleBackend{client: client, model: model, dim: dim}, nil
}

// Embed implements Embedder.
func (b *GoogleBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	model := b.client.EmbeddingModel(b.model)
	rsp, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}

	if rsp == nil || rsp.Embedding == nil || len(rsp.Embedding.Values) == 0 {
		return nil, errors.New("no response from Google")
	}

	return rsp.Embedding.Values, nil
}

// Dimension implements Embedder.
func (b *GoogleBackend) Dimension() int {
	return b.dim
}

// Close releases the underlying client.
func (b *GoogleBackend) Close() error {
	return b.client.Close()
}
