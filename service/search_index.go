package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	model "github.com/grantline/HousingCopilot/models"
)

const chunkIndexName = "document_chunks"

// indexDocumentChunks pushes the document's chunks into the keyword index.
// Indexing is best-effort: a missing client or a failed request is logged
// and ingestion continues.
func (s *DocumentService) indexDocumentChunks(doc *model.Document) {
	if s.esClient == nil {
		log.Println("Elasticsearch client not initialized. Skipping chunk indexing.")
		return
	}

	var chunks []model.DocumentChunk
	if err := s.db.Where("document_id = ?", doc.ID).Order("chunk_index asc").Find(&chunks).Error; err != nil {
		log.Printf("Failed to load chunks of %s for indexing: %v", doc.ID, err)
		return
	}

	for _, chunk := range chunks {
		entry := map[string]interface{}{
			"chunk_id":    chunk.ID,
			"document_id": doc.ID,
			"owner_id":    doc.OwnerID,
			"filename":    doc.Filename,
			"doc_type":    doc.DocType,
			"page":        chunk.Page,
			"chunk_index": chunk.ChunkIndex,
			"content":     chunk.Content,
			"timestamp":   time.Now().UTC(),
		}
		body, err := json.Marshal(entry)
		if err != nil {
			log.Printf("Failed to marshal chunk %s for indexing: %v", chunk.ID, err)
			continue
		}

		res, err := s.esClient.Index(
			chunkIndexName,
			bytes.NewReader(body),
			s.esClient.Index.WithDocumentID(chunk.ID),
			s.esClient.Index.WithContext(context.Background()),
		)
		if err != nil {
			log.Printf("Elasticsearch indexing error for chunk %s: %v", chunk.ID, err)
			continue
		}
		res.Body.Close()
		if res.IsError() {
			log.Printf("Elasticsearch indexing failed for chunk %s: %s", chunk.ID, res.String())
		}
	}
	log.Printf("Indexed %d chunks of document %s", len(chunks), doc.ID)
}

// removeChunksFromSearchIndex deletes a document's chunks from the keyword
// index. Best-effort, like indexing.
func (s *DocumentService) removeChunksFromSearchIndex(documentID string) {
	if s.esClient == nil {
		return
	}

	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"document_id": documentID,
			},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		log.Printf("Failed to marshal index cleanup query: %v", err)
		return
	}

	res, err := s.esClient.DeleteByQuery(
		[]string{chunkIndexName},
		bytes.NewReader(body),
		s.esClient.DeleteByQuery.WithContext(context.Background()),
	)
	if err != nil {
		log.Printf("Elasticsearch cleanup error for document %s: %v", documentID, err)
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Printf("Elasticsearch cleanup failed for document %s: %s", documentID, res.String())
	}
}

// KeywordSearch runs a keyword query over the owner's indexed chunks.
// Unlike similarity retrieval this endpoint has no fallback; without a
// configured index the capability is simply unavailable.
func (s *DocumentService) KeywordSearch(ownerID, query string, limit int) ([]map[string]interface{}, error) {
	if s.esClient == nil {
		return nil, ErrSearchUnavailable
	}
	if limit <= 0 {
		limit = DefaultSearchTopK
	}

	searchQuery := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  query,
						"fields": []string{"content", "filename"},
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{
						"owner_id": ownerID,
					},
				},
			},
		},
	}
	body, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	res, err := s.esClient.Search(
		s.esClient.Search.WithContext(context.Background()),
		s.esClient.Search.WithIndex(chunkIndexName),
		s.esClient.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search failed: %s", res.String())
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hitsMap, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid hits structure in search response")
	}
	hitsArray, ok := hitsMap["hits"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid hits array in search response")
	}

	var matches []map[string]interface{}
	for _, hit := range hitsArray {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}
		matches = append(matches, source)
	}
	return matches, nil
}
