package services

import (
	"fmt"
	"log"

	model "github.com/grantline/HousingCopilot/models"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultSearchTopK bounds how many chunks a retrieval call returns.
const DefaultSearchTopK = 5

// MaxQuoteLength caps the quote carried in a search result so the prompt
// and the citation payload stay bounded.
const MaxQuoteLength = 200

// ProbeVectorCapability checks once at startup whether pgvector is usable:
// the extension installs and the embedding column exists. When the probe
// fails the service runs with retrieval degraded to recency ordering, and
// chunk writes must skip the embedding column entirely.
func ProbeVectorCapability(db *gorm.DB) bool {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		log.Printf("pgvector extension unavailable, semantic search disabled: %v", err)
		return false
	}
	err := db.Exec(fmt.Sprintf(
		"ALTER TABLE document_chunks ADD COLUMN IF NOT EXISTS embedding vector(%d)",
		model.EmbeddingDim)).Error
	if err != nil {
		log.Printf("Failed to ensure embedding column, semantic search disabled: %v", err)
		return false
	}
	log.Println("pgvector capability enabled")
	return true
}

// StoreDocumentChunks chunks one page of extracted text, embeds the batch,
// and inserts the chunk rows starting at startIndex. Embedding failure is
// not an ingestion failure: the text is stored without vectors and the
// document still becomes searchable through the degraded path. Returns the
// number of chunks written.
func (s *DocumentService) StoreDocumentChunks(documentID string, page int, text string, startIndex int) (int, error) {
	chunks := ChunkText(text, ChunkSize, ChunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	var vectors [][]float32
	if s.hasVector {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}
		vectors = EmbedTexts(texts)
		if vectors == nil {
			log.Printf("StoreDocumentChunks: embeddings unavailable for document %s page %d, storing text only", documentID, page)
		}
	}

	rows := make([]model.DocumentChunk, len(chunks))
	for i, c := range chunks {
		p := page
		rows[i] = model.DocumentChunk{
			DocumentID: documentID,
			ChunkIndex: startIndex + c.Index,
			Page:       &p,
			Content:    c.Content,
			TokenCount: EstimateTokens(c.Content),
		}
		if vectors != nil {
			v := pgvector.NewVector(vectors[i])
			rows[i].Embedding = &v
		}
	}

	tx := s.db
	if !s.hasVector {
		// Column does not exist without the extension.
		tx = tx.Omit("Embedding")
	}
	if err := tx.Create(&rows).Error; err != nil {
		return 0, fmt.Errorf("failed to insert chunks for document %s: %w", documentID, err)
	}
	return len(rows), nil
}

// ChunkSearchResult is one retrieval hit with everything a citation needs.
type ChunkSearchResult struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Doc        string  `json:"doc"`
	DocType    string  `json:"doc_type"`
	Page       *int    `json:"page"`
	ChunkIndex int     `json:"chunk_index"`
	ChunkToken string  `json:"chunk"`
	Quote      string  `json:"quote"`
	Score      float64 `json:"score"`

	// Degraded marks results produced by the recency fallback rather than
	// similarity ranking. Score is 0 on that path.
	Degraded bool `json:"degraded"`
}

type chunkRow struct {
	ID         string
	DocumentID string
	Filename   string
	DocType    string
	Page       *int
	ChunkIndex int
	Content    string
	Distance   float64
}

// SearchSimilarChunks retrieves the topK most relevant chunks for the query
// across the given documents. Ranking is cosine distance over pgvector when
// both the capability and a query embedding are available; otherwise it
// falls back to most-recent-first. The fallback never raises: a suggestion
// with weak grounding beats an outage.
func (s *DocumentService) SearchSimilarChunks(query, ownerID string, docIDs []string, topK int) []ChunkSearchResult {
	if topK <= 0 {
		topK = DefaultSearchTopK
	}

	if s.hasVector {
		if qv := EmbedSingle(query); qv != nil {
			results, err := s.searchByVector(qv, ownerID, docIDs, topK)
			if err == nil {
				return results
			}
			log.Printf("Vector search failed, falling back to recency: %v", err)
		}
	}
	return s.searchByRecency(ownerID, docIDs, topK)
}

func (s *DocumentService) searchByVector(qv []float32, ownerID string, docIDs []string, topK int) ([]ChunkSearchResult, error) {
	query := s.db.Model(&model.DocumentChunk{}).
		Select("document_chunks.id, document_chunks.document_id, documents.filename, documents.doc_type, document_chunks.page, document_chunks.chunk_index, document_chunks.content, document_chunks.embedding <=> ? AS distance", pgvector.NewVector(qv)).
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("documents.owner_id = ? AND documents.status = ?", ownerID, model.DocumentStatusReady).
		Where("document_chunks.embedding IS NOT NULL")
	if len(docIDs) > 0 {
		query = query.Where("document_chunks.document_id IN ?", docIDs)
	}

	var rows []chunkRow
	err := query.Clauses(clause.OrderBy{
		Expression: clause.Expr{
			SQL:                "document_chunks.embedding <=> ?, document_chunks.chunk_index asc",
			Vars:               []interface{}{pgvector.NewVector(qv)},
			WithoutParentheses: true,
		},
	}).Limit(topK).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("vector similarity query failed: %w", err)
	}

	results := make([]ChunkSearchResult, 0, len(rows))
	for _, r := range rows {
		score := 1 - r.Distance
		if score < 0 {
			score = 0
		}
		results = append(results, newSearchResult(r, score, false))
	}
	return results, nil
}

func (s *DocumentService) searchByRecency(ownerID string, docIDs []string, topK int) []ChunkSearchResult {
	query := s.db.Model(&model.DocumentChunk{}).
		Select("document_chunks.id, document_chunks.document_id, documents.filename, documents.doc_type, document_chunks.page, document_chunks.chunk_index, document_chunks.content").
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("documents.owner_id = ? AND documents.status = ?", ownerID, model.DocumentStatusReady)
	if len(docIDs) > 0 {
		query = query.Where("document_chunks.document_id IN ?", docIDs)
	}

	var rows []chunkRow
	err := query.Order("document_chunks.created_at desc, document_chunks.chunk_index asc").
		Limit(topK).Scan(&rows).Error
	if err != nil {
		log.Printf("Recency fallback query failed: %v", err)
		return nil
	}

	results := make([]ChunkSearchResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, newSearchResult(r, 0, true))
	}
	return results
}

func newSearchResult(r chunkRow, score float64, degraded bool) ChunkSearchResult {
	return ChunkSearchResult{
		ChunkID:    r.ID,
		DocumentID: r.DocumentID,
		Doc:        r.Filename,
		DocType:    r.DocType,
		Page:       r.Page,
		ChunkIndex: r.ChunkIndex,
		ChunkToken: ChunkToken(r.ChunkIndex),
		Quote:      TruncateQuote(r.Content),
		Score:      score,
		Degraded:   degraded,
	}
}

// ChunkToken renders the stable citation token for a chunk index.
func ChunkToken(chunkIndex int) string {
	return fmt.Sprintf("chk_%05d", chunkIndex)
}

// TruncateQuote bounds a chunk excerpt for citation payloads.
func TruncateQuote(content string) string {
	runes := []rune(content)
	if len(runes) <= MaxQuoteLength {
		return content
	}
	return string(runes[:MaxQuoteLength])
}
