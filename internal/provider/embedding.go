package provider

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/avelar/docindex/internal/config"
	"github.com/avelar/docindex/internal/domain"
)

// Embedder generates fixed-dimension vectors for text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
}

// EmbeddingClient calls an OpenAI-compatible embeddings endpoint.
type EmbeddingClient struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
	batchSize  int
}

// NewEmbeddingClient creates an embedding client from configuration.
// Parameters:
//   - cfg: embedding provider configuration.
// Returns:
//   - *EmbeddingClient: configured client.
func NewEmbeddingClient(cfg *config.EmbeddingConfig) *EmbeddingClient {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	return &EmbeddingClient{
		client:     client,
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  batchSize,
	}
}

// Model returns the model name being used
func (c *EmbeddingClient) Model() string {
	return c.model
}

// Dimensions returns the configured vector dimension
func (c *EmbeddingClient) Dimensions() int {
	return c.dimensions
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// EmbedBatch generates embeddings for multiple texts, splitting the
// input into provider-sized batches. The returned slice is aligned with
// the input order; every vector is validated against the configured
// dimension.
func (c *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := start + c.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, batch...)
	}
	return embeddings, nil
}

func (c *EmbeddingClient) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	req := embeddingRequest{
		Model:      c.model,
		Input:      texts,
		Dimensions: c.dimensions,
	}

	var resp embeddingResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(c.endpoint)

	if err != nil {
		return nil, fmt.Errorf("failed to call embedding API: %w", err)
	}

	status := httpResp.StatusCode()
	if status == 429 || status >= 500 {
		return nil, &domain.TransientProviderError{
			Provider:   "embedding",
			StatusCode: status,
			Err:        fmt.Errorf("embedding API returned status %d", status),
		}
	}
	if status != 200 {
		if resp.Error.Message != "" {
			return nil, fmt.Errorf("embedding API error: %s", resp.Error.Message)
		}
		return nil, fmt.Errorf("embedding API error: status %d", status)
	}

	if len(resp.Data) != len(texts) {
		return nil, domain.NewValidationError("unexpected number of embeddings: got %d, expected %d", len(resp.Data), len(texts))
	}

	// Sort by index to ensure correct order
	embeddings := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, domain.NewValidationError("embedding index %d out of range", item.Index)
		}
		if c.dimensions > 0 && len(item.Embedding) != c.dimensions {
			return nil, domain.NewValidationError("embedding dimension mismatch: got %d, expected %d", len(item.Embedding), c.dimensions)
		}
		embeddings[item.Index] = item.Embedding
	}

	return embeddings, nil
}
