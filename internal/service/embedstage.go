package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avelar/docindex/internal/domain"
	"github.com/avelar/docindex/internal/logger"
	"github.com/avelar/docindex/internal/provider"
	"github.com/avelar/docindex/internal/repository"
)

// EmbedStage turns chunks into embedding records. A selector narrows
// the run to an explicit chunk ID list or a contiguous index range,
// which supports partial re-embedding; the default is every chunk of
// the file. Chunks that already have an active embedding for the model
// are skipped.
type EmbedStage struct {
	embedder   provider.Embedder
	chunks     *repository.ChunkRepository
	embeddings *repository.EmbeddingRepository
}

// NewEmbedStage creates the embed stage adapter.
func NewEmbedStage(embedder provider.Embedder, chunks *repository.ChunkRepository, embeddings *repository.EmbeddingRepository) *EmbedStage {
	return &EmbedStage{
		embedder:   embedder,
		chunks:     chunks,
		embeddings: embeddings,
	}
}

// ChunkSelector narrows an embed run to a subset of a file's chunks.
// ChunkIDs wins over the index range; a nil selector means all chunks.
type ChunkSelector struct {
	ChunkIDs   []string
	IndexStart *int
	IndexEnd   *int
}

// EmbedInput selects the chunks to embed.
type EmbedInput struct {
	FileID   string
	Selector *ChunkSelector
}

// EmbedOutput reports the embed run. Skipped is always derived as
// Total - Embedded.
type EmbedOutput struct {
	Total    int
	Embedded int
	Skipped  int
}

// Run embeds the selected chunks, skipping those already covered.
// Parameters:
//   - ctx: stage context.
//   - job: owning job.
//   - in: chunk selection.
// Returns:
//   - *EmbedOutput: totals for the run.
//   - error: ValidationError on bad selection or dimension mismatch,
//     provider or persistence failure otherwise.
func (s *EmbedStage) Run(ctx context.Context, job *domain.Job, in *EmbedInput) (*EmbedOutput, error) {
	chunks, err := s.selectChunks(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, domain.NewValidationError("no chunks selected for file %s", in.FileID)
	}

	model := s.embedder.Model()

	// Idempotency: keep only chunks without an active embedding for
	// this model.
	pending := make([]domain.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		exists, err := s.embeddings.ExistsActive(ctx, chunk.ID, model)
		if err != nil {
			return nil, fmt.Errorf("failed idempotency check for chunk %s: %w", chunk.ID, err)
		}
		if !exists {
			pending = append(pending, chunk)
		}
	}

	out := &EmbedOutput{Total: len(chunks)}
	if len(pending) == 0 {
		out.Skipped = out.Total - out.Embedded
		return out, nil
	}

	texts := make([]string, len(pending))
	for i, chunk := range pending {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(pending) {
		return nil, domain.NewValidationError("embedder returned %d vectors for %d chunks", len(vectors), len(pending))
	}

	dimension := s.embedder.Dimensions()
	now := time.Now().UTC()
	records := make([]domain.Embedding, len(pending))
	for i, chunk := range pending {
		if dimension > 0 && len(vectors[i]) != dimension {
			return nil, domain.NewValidationError("vector for chunk %s has dimension %d, expected %d", chunk.ID, len(vectors[i]), dimension)
		}
		records[i] = domain.Embedding{
			ID:             uuid.New().String(),
			FileID:         chunk.FileID,
			ChunkID:        chunk.ID,
			ChunkIndex:     chunk.ChunkIndex,
			EmbeddingModel: model,
			Vector:         domain.Vector(vectors[i]),
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	if err := s.embeddings.BulkInsert(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to persist embeddings: %w", err)
	}

	out.Embedded = len(records)
	out.Skipped = out.Total - out.Embedded

	logger.FromContext(ctx).WithFields(logger.Fields{
		"total":    out.Total,
		"embedded": out.Embedded,
		"skipped":  out.Skipped,
	}).Debug("Embedded chunks")

	return out, nil
}

func (s *EmbedStage) selectChunks(ctx context.Context, in *EmbedInput) ([]domain.Chunk, error) {
	if in.FileID == "" {
		return nil, domain.NewValidationError("file ID is required for embedding")
	}
	sel := in.Selector
	switch {
	case sel != nil && len(sel.ChunkIDs) > 0:
		return s.chunks.ListByIDs(ctx, sel.ChunkIDs)
	case sel != nil && (sel.IndexStart != nil || sel.IndexEnd != nil):
		if sel.IndexStart == nil || sel.IndexEnd == nil {
			return nil, domain.NewValidationError("chunk index range requires both start and end")
		}
		if *sel.IndexStart < 0 || *sel.IndexEnd < *sel.IndexStart {
			return nil, domain.NewValidationError("invalid chunk index range [%d, %d]", *sel.IndexStart, *sel.IndexEnd)
		}
		return s.chunks.ListByIndexRange(ctx, in.FileID, *sel.IndexStart, *sel.IndexEnd)
	default:
		return s.chunks.ListByFile(ctx, in.FileID)
	}
}
