package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avelar/docindex/internal/domain"
	"github.com/avelar/docindex/internal/logger"
	"github.com/avelar/docindex/internal/repository"
	"github.com/avelar/docindex/internal/storage"
)

// ChunkStage reads the converted text and persists it as a dense,
// ordered set of chunk records. Re-chunking replaces the previous set
// for the file and soft-deactivates any embeddings built on it.
type ChunkStage struct {
	chunks     *repository.ChunkRepository
	embeddings *repository.EmbeddingRepository
	store      storage.BlobStore
	chunker    *Chunker
}

// NewChunkStage creates the chunk stage adapter.
func NewChunkStage(chunks *repository.ChunkRepository, embeddings *repository.EmbeddingRepository, store storage.BlobStore, chunker *Chunker) *ChunkStage {
	return &ChunkStage{
		chunks:     chunks,
		embeddings: embeddings,
		store:      store,
		chunker:    chunker,
	}
}

// ChunkInput locates the text to split.
type ChunkInput struct {
	TextURI string
	// Page attribution from OCR; zero when the text came from convert.
	TotalPages int
}

// ChunkOutput reports the persisted chunk set.
type ChunkOutput struct {
	Chunks      []domain.Chunk
	TotalTokens int
	Deactivated int64
}

// Run splits the cached text and persists the chunk records in bulk.
// Parameters:
//   - ctx: stage context.
//   - job: owning job.
//   - in: cached text location.
// Returns:
//   - *ChunkOutput: persisted chunks and token totals.
//   - error: ValidationError on malformed input, otherwise I/O failure.
func (s *ChunkStage) Run(ctx context.Context, job *domain.Job, in *ChunkInput) (*ChunkOutput, error) {
	if _, _, err := storage.ParseURI(in.TextURI); err != nil {
		return nil, err
	}

	raw, err := s.store.Read(ctx, in.TextURI)
	if err != nil {
		return nil, fmt.Errorf("failed to read text for chunking: %w", err)
	}

	spans := s.chunker.Split(string(raw))
	if len(spans) == 0 {
		return nil, domain.NewValidationError("document %s produced no text to chunk", job.FileID)
	}

	now := time.Now().UTC()
	chunks := make([]domain.Chunk, len(spans))
	for i, span := range spans {
		chunks[i] = domain.Chunk{
			ID:         uuid.New().String(),
			FileID:     job.FileID,
			ChunkIndex: i,
			Text:       span.Text,
			TokenCount: span.TokenCount,
			Metadata: domain.JSONMap{
				"job_id":   job.ID,
				"text_uri": in.TextURI,
			},
			CreatedAt: now,
		}
		if in.TotalPages > 0 {
			start, end := pageSpan(i, len(spans), in.TotalPages)
			chunks[i].SourcePageStart = &start
			chunks[i].SourcePageEnd = &end
		}
	}

	// Stale embeddings refer to the chunk set being replaced.
	deactivated, err := s.embeddings.DeactivateByFile(ctx, job.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate stale embeddings: %w", err)
	}

	if err := s.chunks.ReplaceForFile(ctx, job.FileID, chunks); err != nil {
		return nil, fmt.Errorf("failed to persist chunks: %w", err)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		logger.FieldCount: len(chunks),
		"deactivated":     deactivated,
	}).Debug("Chunked document")

	return &ChunkOutput{
		Chunks:      chunks,
		TotalTokens: totalTokens(chunks),
		Deactivated: deactivated,
	}, nil
}

// pageSpan attributes chunk i of n to a contiguous page range, assuming
// text is distributed roughly evenly across pages.
func pageSpan(i, n, totalPages int) (int, int) {
	start := i*totalPages/n + 1
	end := (i+1)*totalPages/n + 1
	if end > totalPages {
		end = totalPages
	}
	if start > end {
		start = end
	}
	return start, end
}
