package repository

import (
	"context"

	"github.com/avelar/docindex/internal/domain"
	"gorm.io/gorm"
)

// ChunkRepository handles document chunk persistence.
type ChunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository creates a new ChunkRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ChunkRepository: repository instance bound to db.
func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceForFile deletes any existing chunks for the file and inserts the
// new set in bulk. Re-chunking on retry replaces the set, keeping
// (file_id, chunk_index) dense.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fileID: file whose chunk set is replaced.
//   - chunks: new chunk records, ordered by chunk index.
// Returns:
//   - error: non-nil if delete or insert fails.
func (r *ChunkRepository) ReplaceForFile(ctx context.Context, fileID string, chunks []domain.Chunk) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("file_id = ?", fileID).Delete(&domain.Chunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, 200).Error
	})
}

// ListByFile retrieves all chunks for a file ordered by chunk index.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fileID: file to load chunks for.
// Returns:
//   - []domain.Chunk: ordered chunk records.
//   - error: non-nil if the query fails.
func (r *ChunkRepository) ListByFile(ctx context.Context, fileID string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	if err := r.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

// ListByIDs retrieves chunks by explicit ID list.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ids: chunk IDs to load.
// Returns:
//   - []domain.Chunk: matching chunks ordered by chunk index.
//   - error: non-nil if the query fails.
func (r *ChunkRepository) ListByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return []domain.Chunk{}, nil
	}
	var chunks []domain.Chunk
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

// ListByIndexRange retrieves a file's chunks within an inclusive index range.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fileID: file to load chunks for.
//   - start: first chunk index, inclusive.
//   - end: last chunk index, inclusive.
// Returns:
//   - []domain.Chunk: matching chunks ordered by chunk index.
//   - error: non-nil if the query fails.
func (r *ChunkRepository) ListByIndexRange(ctx context.Context, fileID string, start, end int) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	if err := r.db.WithContext(ctx).
		Where("file_id = ? AND chunk_index >= ? AND chunk_index <= ?", fileID, start, end).
		Order("chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

// CountByFile counts chunks for a file.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fileID: file to count chunks for.
// Returns:
//   - int64: number of chunks.
//   - error: non-nil if the query fails.
func (r *ChunkRepository) CountByFile(ctx context.Context, fileID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Chunk{}).
		Where("file_id = ?", fileID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
