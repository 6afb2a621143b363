package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Vector is a fixed-dimension float32 vector stored as a JSON array column.
type Vector []float32

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded representation of the vector.
//   - error: non-nil if marshaling fails.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = Vector{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan Vector")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, v)
}

// Embedding represents one (chunk, embedding model) vector.
// (ChunkID, EmbeddingModel) is unique among active rows; rows are never
// mutated, only soft-deactivated when superseded.
type Embedding struct {
	ID             string    `gorm:"type:text;primaryKey" json:"embedding_id"`
	FileID         string    `gorm:"type:text;not null;index:idx_embeddings_file_active" json:"file_id"`
	ChunkID        string    `gorm:"type:text;not null;index:idx_embeddings_chunk" json:"chunk_id"`
	ChunkIndex     int       `gorm:"not null" json:"chunk_index"`
	EmbeddingModel string    `gorm:"type:text;not null" json:"embedding_model"`
	Vector         Vector    `gorm:"type:text;not null" json:"vector"`
	IsActive       bool      `gorm:"not null;default:true;index:idx_embeddings_file_active" json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for Embedding.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Embedding) TableName() string {
	return "document_embeddings"
}
