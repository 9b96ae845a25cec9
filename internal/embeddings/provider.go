// ABOUTME: Lazily loaded embedding provider with graceful degradation.
// ABOUTME: Truncates input, and returns zero vectors when the model is unavailable.
package embeddings

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/2389-research/pagemem/internal/logging"
)

// Provider defaults.
const (
	DefaultMaxInputChars = 1000
	DefaultDimension     = 384
)

// Loader constructs the backing Embedder. It runs at most once per Provider.
type Loader func(ctx context.Context) (Embedder, error)

// Provider maps text to fixed-dimension vectors. The backend is loaded on first
// use; if loading or the probe embedding fails, the Provider stays usable but
// returns zero vectors and reports ModelLoaded() == false.
type Provider struct {
	load        Loader
	logger      *slog.Logger
	maxChars    int
	loadTimeout time.Duration

	once    sync.Once
	backend Embedder
	loaded  bool
	dim     int
}

// ProviderOption configures optional Provider settings.
type ProviderOption func(*Provider)

// WithMaxInputChars sets the input truncation bound in characters.
func WithMaxInputChars(n int) ProviderOption {
	return func(p *Provider) {
		if n > 0 {
			p.maxChars = n
		}
	}
}

// WithDimension sets the dimension used for zero vectors when the model never loads.
func WithDimension(dim int) ProviderOption {
	return func(p *Provider) {
		if dim > 0 {
			p.dim = dim
		}
	}
}

// WithLogger sets the logger for load and embed failures.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithLoadTimeout bounds how long loading and probing the backend may take.
func WithLoadTimeout(d time.Duration) ProviderOption {
	return func(p *Provider) {
		if d > 0 {
			p.loadTimeout = d
		}
	}
}

// NewProvider creates a provider around a backend loader.
func NewProvider(load Loader, opts ...ProviderOption) *Provider {
	p := &Provider{
		load:        load,
		logger:      logging.Discard(),
		maxChars:    DefaultMaxInputChars,
		loadTimeout: 60 * time.Second,
		dim:         DefaultDimension,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ensureLoaded runs the loader and probe exactly once.
func (p *Provider) ensureLoaded(ctx context.Context) {
	p.once.Do(func() {
		// The load result is cached, so it outlives the first caller's cancellation.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.loadTimeout)
		defer cancel()

		if p.load == nil {
			p.logger.Error("embedding model not loaded", "error", "no loader configured")
			return
		}

		backend, err := p.load(ctx)
		if err != nil {
			p.logger.Error("embedding model not loaded", "error", err)
			return
		}

		vec, err := backend.Embed(ctx, probeText)
		if err != nil || len(vec) == 0 {
			if err == nil {
				err = errEmptyVector
			}
			p.logger.Error("embedding model probe failed", "error", err)
			closeBackend(backend)
			return
		}

		p.backend = backend
		p.dim = len(vec)
		p.loaded = true
		p.logger.Info("embedding model loaded", "dimension", p.dim)
	})
}

// ModelLoaded reports whether the backend loaded and passed its probe.
func (p *Provider) ModelLoaded(ctx context.Context) bool {
	p.ensureLoaded(ctx)
	return p.loaded
}

// Dimension returns the output dimension D.
func (p *Provider) Dimension(ctx context.Context) int {
	p.ensureLoaded(ctx)
	return p.dim
}

// MaxInputChars returns the truncation bound.
func (p *Provider) MaxInputChars() int {
	return p.maxChars
}

// Embed returns the embedding for text, truncated to MaxInputChars characters.
// It never fails: when the model is unavailable or a call errors, it returns
// the zero vector of dimension D.
func (p *Provider) Embed(ctx context.Context, text string) []float32 {
	p.ensureLoaded(ctx)
	if !p.loaded {
		return make([]float32, p.dim)
	}

	vec, err := p.backend.Embed(ctx, p.truncate(text))
	if err != nil {
		p.logger.Warn("embedding failed, using zero vector", "error", err)
		return make([]float32, p.dim)
	}
	if len(vec) != p.dim {
		p.logger.Warn("embedding dimension mismatch, using zero vector", "got", len(vec), "want", p.dim)
		return make([]float32, p.dim)
	}
	return vec
}

// truncate trims surrounding whitespace and caps text at maxChars runes.
func (p *Provider) truncate(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= p.maxChars {
		return text
	}
	return string([]rune(text)[:p.maxChars])
}

// Close releases the backend if it holds resources.
func (p *Provider) Close() error {
	if p.backend == nil {
		return nil
	}
	if c, ok := p.backend.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

var errEmptyVector = errors.New("probe returned an empty vector")
