package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/libris/internal/core/domain"
	"github.com/custodia-labs/libris/internal/core/ports/driven"
	"github.com/custodia-labs/libris/internal/logger"
)

// MaxEmbedInputChars is the rune limit applied to text before embedding.
const MaxEmbedInputChars = 8000

// DefaultBatchDelay is the minimum spacing between embedding requests.
const DefaultBatchDelay = 100 * time.Millisecond

// EmbeddingProvider wraps an embedding backend with input cleaning,
// zero vectors for empty text, paced batching and per-item fallback.
type EmbeddingProvider struct {
	backend   driven.EmbeddingService
	dims      int
	batchSize int
	limiter   *rate.Limiter
}

// EmbeddingOption configures an EmbeddingProvider.
type EmbeddingOption func(*EmbeddingProvider)

// WithBatchSize sets the number of texts per backend request.
func WithBatchSize(n int) EmbeddingOption {
	return func(p *EmbeddingProvider) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithBatchDelay sets the minimum spacing between backend requests.
// A non-positive delay disables pacing.
func WithBatchDelay(d time.Duration) EmbeddingOption {
	return func(p *EmbeddingProvider) {
		if d <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		p.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewEmbeddingProvider creates a provider producing vectors of dims components.
// When dims is not positive the backend's own dimension is used.
func NewEmbeddingProvider(backend driven.EmbeddingService, dims int, opts ...EmbeddingOption) *EmbeddingProvider {
	if dims <= 0 {
		dims = backend.Dimensions()
	}
	p := &EmbeddingProvider{
		backend:   backend,
		dims:      dims,
		batchSize: domain.DefaultEmbeddingBatchSize,
		limiter:   rate.NewLimiter(rate.Every(DefaultBatchDelay), 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dimensions returns the configured vector size.
func (p *EmbeddingProvider) Dimensions() int {
	return p.dims
}

// ModelName returns the backend model name.
func (p *EmbeddingProvider) ModelName() string {
	return p.backend.ModelName()
}

// Ping checks the backend is reachable.
func (p *EmbeddingProvider) Ping(ctx context.Context) error {
	if err := p.backend.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return nil
}

// Close releases the backend.
func (p *EmbeddingProvider) Close() error {
	return p.backend.Close()
}

// prepare collapses whitespace and truncates overly long input.
func prepare(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(cleaned) > MaxEmbedInputChars {
		logger.Warn("embedding input truncated to %d characters", MaxEmbedInputChars)
		cleaned = string([]rune(cleaned)[:MaxEmbedInputChars])
	}
	return cleaned
}

// EmbedOne returns the embedding of text.
// Empty or whitespace-only text yields a zero vector without a backend call.
// A backend failure returns an error wrapping domain.ErrEmbeddingUnavailable.
// A vector of unexpected length is logged and returned unchanged.
func (p *EmbeddingProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	cleaned := prepare(text)
	if cleaned == "" {
		return domain.ZeroVector(p.dims), nil
	}

	vec, err := p.backend.Embed(ctx, cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	p.checkDims(vec)
	return vec, nil
}

// EmbedMany returns one vector per input text, in input order.
// Texts are sent in batches paced by the provider's limiter. Empty texts
// get zero vectors and are never sent. When a batch fails, its texts are
// embedded one at a time and individual failures become zero vectors.
// Only context cancellation fails the whole call.
func (p *EmbeddingProvider) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))

		var (
			inputs []string
			slots  []int
		)
		for i := start; i < end; i++ {
			cleaned := prepare(texts[i])
			if cleaned == "" {
				out[i] = domain.ZeroVector(p.dims)
				continue
			}
			inputs = append(inputs, cleaned)
			slots = append(slots, i)
		}
		if len(inputs) == 0 {
			continue
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vecs, err := p.backend.EmbedBatch(ctx, inputs)
		if err == nil && len(vecs) == len(inputs) {
			for j, slot := range slots {
				p.checkDims(vecs[j])
				out[slot] = vecs[j]
			}
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if err != nil {
			logger.Warn("embedding batch %d-%d failed, retrying individually: %v", start, end, err)
		} else {
			logger.Warn("embedding batch %d-%d returned %d vectors for %d texts, retrying individually",
				start, end, len(vecs), len(inputs))
		}

		for j, slot := range slots {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			vec, err := p.EmbedOne(ctx, inputs[j])
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				logger.Warn("embedding text %d failed, using zero vector: %v", slot, err)
				vec = domain.ZeroVector(p.dims)
			}
			out[slot] = vec
		}
	}

	return out, nil
}

func (p *EmbeddingProvider) checkDims(vec []float32) {
	if len(vec) != p.dims {
		logger.Warn("embedding dimension %d does not match configured %d", len(vec), p.dims)
	}
}
