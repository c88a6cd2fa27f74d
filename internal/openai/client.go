package openai

import (
	"context"
	"errors"
	"time"

	"github.com/corpusworks/corpusd/internal/domain"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sethvargo/go-retry"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from text-embedding-3-small
	DefaultEmbeddingDimensions = 1536

	defaultMaxRetries     = 3
	defaultInitialBackoff = 500 * time.Millisecond
)

// ErrEmptyBatch is returned when no texts are supplied.
var ErrEmptyBatch = errors.New("embedding batch cannot be empty")

// EmbeddingAPI defines the interface for the embedding backend call.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIAdapter translates batch requests into OpenAI embedding calls.
type OpenAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIAdapter(apiKey string, model string) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OpenAIAdapter{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings for a batch of texts.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

type Config struct {
	APIKey              string
	EmbeddingModel      string
	EmbeddingDimensions int
	MaxRetries          uint64
}

// Client wraps the embedding backend with dimension validation and bounded
// retries. It holds no local state beyond configuration: each call is a pure
// translation from texts to vectors.
type Client struct {
	api        EmbeddingAPI
	dimensions int
	maxRetries uint64
}

// NewClient creates a new embedding client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new embedding client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	return &Client{
		api:        NewOpenAIAdapter(cfg.APIKey, cfg.EmbeddingModel),
		dimensions: dimensions,
		maxRetries: maxRetries,
	}
}

// NewClientWithAPI creates a client over a caller-supplied backend.
func NewClientWithAPI(api EmbeddingAPI, dimensions int) *Client {
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Client{
		api:        api,
		dimensions: dimensions,
		maxRetries: defaultMaxRetries,
	}
}

// Dimensions returns the expected vector width.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// EmbedBatch returns one vector per input text, in input order. Transient
// backend failures are retried with exponential backoff; structural failures
// (wrong vector count or width) surface immediately as EMBEDDING_FAILED.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyBatch
	}

	var vectors [][]float32
	backoff := retry.NewExponential(defaultInitialBackoff)
	err := retry.Do(ctx, retry.WithMaxRetries(c.maxRetries, backoff), func(ctx context.Context) error {
		out, err := c.api.CreateEmbeddings(ctx, texts)
		if err != nil {
			if isTransient(err) {
				return retry.RetryableError(domain.NewDomainErrorWithCause(
					domain.ErrCodeServiceUnavailable, "embedding service unreachable", err))
			}
			return domain.NewDomainErrorWithCause(
				domain.ErrCodeEmbeddingFailed, "embedding request rejected", err)
		}
		vectors = out
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, domain.NewDomainError(domain.ErrCodeEmbeddingFailed, "embedding count does not match input count")
	}
	for _, v := range vectors {
		if len(v) != c.dimensions {
			return nil, domain.NewDomainError(domain.ErrCodeEmbeddingFailed, "embedding has wrong dimensions")
		}
	}

	return vectors, nil
}

// Embed returns the vector for a single text via the same batch call path.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// isTransient reports whether the backend failure is worth retrying.
// Structural API rejections (4xx other than 429) are permanent.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}

	// Connection-level failures arrive as transport errors, not APIErrors.
	return true
}
