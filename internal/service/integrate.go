package service

import (
	"context"
	"fmt"

	"github.com/avelar/docindex/internal/domain"
	"github.com/avelar/docindex/internal/logger"
	"github.com/avelar/docindex/internal/repository"
)

// VectorIndex is where active embeddings are published for search.
type VectorIndex interface {
	UpsertBatch(ctx context.Context, embeddings []domain.Embedding) error
	DeleteByFile(ctx context.Context, fileID string) error
}

// IntegrateStage validates referential consistency between chunks and
// embeddings, then publishes the active vectors to the search index.
type IntegrateStage struct {
	chunks     *repository.ChunkRepository
	embeddings *repository.EmbeddingRepository
	index      VectorIndex
}

// NewIntegrateStage creates the integrate stage adapter.
func NewIntegrateStage(chunks *repository.ChunkRepository, embeddings *repository.EmbeddingRepository, index VectorIndex) *IntegrateStage {
	return &IntegrateStage{
		chunks:     chunks,
		embeddings: embeddings,
		index:      index,
	}
}

// IntegrateOutput reports what was verified and published.
type IntegrateOutput struct {
	ChunkCount     int64
	EmbeddingCount int64
	Upserted       int
}

// Run verifies chunk/embedding consistency and upserts the vectors.
// Parameters:
//   - ctx: stage context.
//   - job: owning job.
// Returns:
//   - *IntegrateOutput: verified counts.
//   - error: ValidationError when counts or references disagree.
func (s *IntegrateStage) Run(ctx context.Context, job *domain.Job) (*IntegrateOutput, error) {
	chunkCount, err := s.chunks.CountByFile(ctx, job.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	embeddingCount, err := s.embeddings.CountActiveByFile(ctx, job.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to count embeddings: %w", err)
	}

	if chunkCount == 0 {
		return nil, domain.NewValidationError("file %s has no chunks to integrate", job.FileID)
	}
	if chunkCount != embeddingCount {
		return nil, domain.NewValidationError("file %s has %d chunks but %d active embeddings", job.FileID, chunkCount, embeddingCount)
	}

	chunks, err := s.chunks.ListByFile(ctx, job.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	live := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		live[chunk.ID] = struct{}{}
	}

	embeddings, err := s.embeddings.ListActiveByFile(ctx, job.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	for _, embedding := range embeddings {
		if _, ok := live[embedding.ChunkID]; !ok {
			return nil, domain.NewValidationError("embedding %s references missing chunk %s", embedding.ID, embedding.ChunkID)
		}
	}

	// Points from a previous chunk set carry stale embedding IDs, so the
	// file's slice of the index is replaced, not appended to.
	if err := s.index.DeleteByFile(ctx, job.FileID); err != nil {
		return nil, fmt.Errorf("failed to clear stale vectors: %w", err)
	}
	if err := s.index.UpsertBatch(ctx, embeddings); err != nil {
		return nil, fmt.Errorf("failed to publish vectors to search index: %w", err)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"chunks":     chunkCount,
		"embeddings": embeddingCount,
	}).Debug("Integrated embeddings into search index")

	return &IntegrateOutput{
		ChunkCount:     chunkCount,
		EmbeddingCount: embeddingCount,
		Upserted:       len(embeddings),
	}, nil
}
