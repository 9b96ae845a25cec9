// ABOUTME: Embedding interface and backend selection for page summaries.
// ABOUTME: Builds local, Ollama, OpenAI, or Gemini backends from settings.
package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// Embed returns a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// Settings selects and configures an embedding backend.
type Settings struct {
	Provider   string // local, ollama, openai, google
	BaseURL    string
	Model      string
	APIKey     string
	Dimension  int
	HTTPClient *http.Client
}

// probeText is embedded once when a backend is loaded to confirm it works.
const probeText = "pagemem embedding probe"

// NewBackend constructs the backend named by s.Provider.
func NewBackend(ctx context.Context, s Settings) (Embedder, error) {
	switch strings.ToLower(s.Provider) {
	case "local":
		return NewLocalBackend(s.Dimension), nil
	case "", "ollama":
		return NewOllamaBackend(s.BaseURL, s.Model, s.Dimension, s.HTTPClient), nil
	case "openai":
		return NewOpenAIBackend(s.APIKey, s.BaseURL, s.Model, s.Dimension, s.HTTPClient)
	case "google":
		return NewGoogleBackend(ctx, s.APIKey, s.Model, s.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", s.Provider)
	}
}

// LoaderFor returns a Loader that builds the backend described by s.
func LoaderFor(s Settings) Loader {
	return func(ctx context.Context) (Embedder, error) {
		return NewBackend(ctx, s)
	}
}

// Probe builds the backend described by s and embeds a short text to check that
// the model is reachable. Used by the setup wizard.
func Probe(ctx context.Context, s Settings) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	backend, err := NewBackend(ctx, s)
	if err != nil {
		return err
	}
	defer closeBackend(backend)

	vec, err := backend.Embed(ctx, probeText)
	if err != nil {
		return fmt.Errorf("probe embedding failed: %w", err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("probe embedding returned an empty vector")
	}
	return nil
}

func closeBackend(e Embedder) {
	if c, ok := e.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
