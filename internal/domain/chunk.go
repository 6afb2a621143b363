package domain

import "time"

// Chunk represents one bounded text fragment extracted from a document.
// (FileID, ChunkIndex) is unique and ChunkIndex ordering matches document
// order; re-chunking a file replaces the whole set.
type Chunk struct {
	ID              string    `gorm:"type:text;primaryKey" json:"chunk_id"`
	FileID          string    `gorm:"type:text;not null;uniqueIndex:idx_chunks_file_index" json:"file_id"`
	ChunkIndex      int       `gorm:"not null;uniqueIndex:idx_chunks_file_index" json:"chunk_index"`
	Text            string    `gorm:"type:text;not null" json:"text"`
	TokenCount      int       `gorm:"not null;default:0" json:"token_count"`
	SourcePageStart *int      `json:"source_page_start,omitempty"`
	SourcePageEnd   *int      `json:"source_page_end,omitempty"`
	Metadata        JSONMap   `gorm:"type:text" json:"metadata"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName returns the database table name for Chunk.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Chunk) TableName() string {
	return "document_chunks"
}
