package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// EmbeddingDim is the fixed dimension of chunk embedding vectors
// (bge-small-en-v1.5 output). Any stored vector of a different dimension
// is a data-integrity error.
const EmbeddingDim = 384

// DocumentChunk is a bounded span of a document's extracted text,
// independently retrievable and embeddable. Chunks belong to exactly one
// document and are wholly replaced on re-ingestion, never patched.
type DocumentChunk struct {
	ID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`

	DocumentID string `gorm:"type:uuid;not null;index" json:"document_id"`

	// ChunkIndex is the zero-based position within the page-extraction
	// pass; equal-relevance retrieval ties break on it.
	ChunkIndex int `gorm:"not null;default:0" json:"chunk_index"`

	// Page is the source page number, when the extractor knows it.
	Page *int `json:"page"`

	// Content is never empty after creation.
	Content string `gorm:"type:text;not null" json:"content"`

	// TokenCount is a rough whitespace-split estimate.
	TokenCount int `json:"token_count"`

	// Embedding is nil when the embedding capability was unavailable at
	// ingestion time. The column only exists when pgvector is installed.
	Embedding *pgvector.Vector `gorm:"type:vector(384)" json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
