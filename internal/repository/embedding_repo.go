package repository

import (
	"context"
	"time"

	"github.com/avelar/docindex/internal/domain"
	"gorm.io/gorm"
)

// EmbeddingRepository handles embedding persistence. Rows are append-only;
// superseded embeddings are soft-deactivated, never deleted.
type EmbeddingRepository struct {
	db *gorm.DB
}

// NewEmbeddingRepository creates a new EmbeddingRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *EmbeddingRepository: repository instance bound to db.
func NewEmbeddingRepository(db *gorm.DB) *EmbeddingRepository {
	return &EmbeddingRepository{db: db}
}

// BulkInsert persists embedding records in batches.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - embeddings: records to insert.
// Returns:
//   - error: non-nil if the insert fails.
func (r *EmbeddingRepository) BulkInsert(ctx context.Context, embeddings []domain.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(embeddings, 100).Error
}

// ExistsActive checks whether an active embedding already exists for the
// (chunk, model) pair. Used for the idempotency check before insert.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - chunkID: owning chunk ID.
//   - model: embedding model identifier.
// Returns:
//   - bool: true if an active record exists.
//   - error: non-nil if the lookup fails.
func (r *EmbeddingRepository) ExistsActive(ctx context.Context, chunkID, model string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Embedding{}).
		Where("chunk_id = ? AND embedding_model = ? AND is_active = ?", chunkID, model, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListActiveByFile retrieves active embeddings for a file ordered by chunk index.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fileID: file to load embeddings for.
// Returns:
//   - []domain.Embedding: active embedding records.
//   - error: non-nil if the query fails.
func (r *EmbeddingRepository) ListActiveByFile(ctx context.Context, fileID string) ([]domain.Embedding, error) {
	var embeddings []domain.Embedding
	if err := r.db.WithContext(ctx).
		Where("file_id = ? AND is_active = ?", fileID, true).
		Order("chunk_index ASC").
		Find(&embeddings).Error; err != nil {
		return nil, err
	}
	return embeddings, nil
}

// CountActiveByFile counts active embeddings for a file.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fileID: file to count embeddings for.
// Returns:
//   - int64: number of active embeddings.
//   - error: non-nil if the query fails.
func (r *EmbeddingRepository) CountActiveByFile(ctx context.Context, fileID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Embedding{}).
		Where("file_id = ? AND is_active = ?", fileID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// DeactivateByFile soft-deactivates all active embeddings for a file.
// Called when a re-chunk invalidates the previous embedding set.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fileID: file whose embeddings are deactivated.
// Returns:
//   - int64: number of rows deactivated.
//   - error: non-nil if the update fails.
func (r *EmbeddingRepository) DeactivateByFile(ctx context.Context, fileID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Embedding{}).
		Where("file_id = ? AND is_active = ?", fileID, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
