// ABOUTME: OpenAI-compatible embedding backend built on go-openai.
// ABOUTME: Requests reduced dimensions for text-embedding-3 models.
package embeddings

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = string(openai.SmallEmbedding3)

// OpenAIBackend embeds text through the OpenAI embeddings API or a compatible server.
type OpenAIBackend struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAIBackend creates an OpenAI backend. baseURL may point at any
// OpenAI-compatible server; empty uses the public API.
func NewOpenAIBackend(apiKey, baseURL, model string, dim int, httpClient *http.Client) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, errors.New("openai embedding backend requires an api key")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}

	return &OpenAIBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		dim:    dim,
	}, nil
}

// Embed implements Embedder.
func (b *OpenAIBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(b.model),
	}
	// Only the v3 models accept a dimensions parameter.
	if b.dim > 0 && strings.HasPrefix(b.model, "text-embedding-3") {
		req.Dimensions = b.dim
	}

	rsp, err := b.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}

	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	return rsp.Data[0].Embedding, nil
}

// Dimension implements Embedder.
func (b *OpenAIBackend) Dimension() int {
	return b.dim
}
