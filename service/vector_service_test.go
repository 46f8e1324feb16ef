package services

import (
	"strings"
	"testing"
	"time"

	model "github.com/grantline/HousingCopilot/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB builds an in-memory database with the schema laid out by hand.
// The production migrations are Postgres-only (uuid defaults, vector column),
// so tests create equivalent tables and always set ids explicitly.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := []string{
		`CREATE TABLE documents (
			id text PRIMARY KEY,
			owner_id text NOT NULL,
			filename text NOT NULL,
			doc_type text NOT NULL,
			status text NOT NULL DEFAULT 'pending',
			pages integer,
			storage_path text,
			content_type text,
			size_bytes integer DEFAULT 0,
			etag text,
			created_at datetime,
			updated_at datetime
		)`,
		`CREATE TABLE document_chunks (
			id text PRIMARY KEY DEFAULT (lower(hex(randomblob(16)))),
			document_id text NOT NULL,
			chunk_index integer NOT NULL DEFAULT 0,
			page integer,
			content text NOT NULL,
			token_count integer,
			created_at datetime
		)`,
		`CREATE TABLE ingestion_jobs (
			id text PRIMARY KEY,
			document_id text NOT NULL,
			owner_id text NOT NULL,
			status text NOT NULL DEFAULT 'queued',
			idempotency_key text NOT NULL,
			retry_count integer NOT NULL DEFAULT 0,
			error_message text,
			started_at datetime,
			finished_at datetime,
			created_at datetime,
			updated_at datetime
		)`,
	}
	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func createReadyDocument(t *testing.T, db *gorm.DB, ownerID, filename, docType string) model.Document {
	t.Helper()
	doc := model.Document{
		ID:       uuid.NewString(),
		OwnerID:  ownerID,
		Filename: filename,
		DocType:  docType,
		Status:   model.DocumentStatusReady,
	}
	require.NoError(t, db.Create(&doc).Error)
	return doc
}

func createChunk(t *testing.T, db *gorm.DB, docID string, index int, content string, createdAt time.Time) {
	t.Helper()
	page := 1
	chunk := model.DocumentChunk{
		ID:         uuid.NewString(),
		DocumentID: docID,
		ChunkIndex: index,
		Page:       &page,
		Content:    content,
		TokenCount: EstimateTokens(content),
		CreatedAt:  createdAt,
	}
	require.NoError(t, db.Omit("Embedding").Create(&chunk).Error)
}

func TestStoreDocumentChunksWithoutVectorCapability(t *testing.T) {
	db := newTestDB(t)
	svc := &DocumentService{db: db, hasVector: false, maxIngestBytes: defaultMaxIngestBytes}
	doc := createReadyDocument(t, db, uuid.NewString(), "lease.txt", "lease")

	text := strings.Repeat("The tenant agrees to pay monthly rent of $1,200. ", 30)
	n, err := svc.StoreDocumentChunks(doc.ID, 1, text, 0)

	assert.NoError(t, err)
	assert.Greater(t, n, 0)

	var count int64
	require.NoError(t, db.Model(&model.DocumentChunk{}).Where("document_id = ?", doc.ID).Count(&count).Error)
	assert.Equal(t, int64(n), count)
}

func TestStoreDocumentChunksEmptyText(t *testing.T) {
	db := newTestDB(t)
	svc := &DocumentService{db: db, hasVector: false, maxIngestBytes: defaultMaxIngestBytes}

	n, err := svc.StoreDocumentChunks(uuid.NewString(), 1, "   ", 0)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestStoreDocumentChunksHonorsStartIndex(t *testing.T) {
	db := newTestDB(t)
	svc := &DocumentService{db: db, hasVector: false, maxIngestBytes: defaultMaxIngestBytes}
	doc := createReadyDocument(t, db, uuid.NewString(), "lease.txt", "lease")

	_, err := svc.StoreDocumentChunks(doc.ID, 2, "Second page content about utilities.", 7)
	require.NoError(t, err)

	var chunk model.DocumentChunk
	require.NoError(t, db.Where("document_id = ?", doc.ID).First(&chunk).Error)
	assert.Equal(t, 7, chunk.ChunkIndex)
	require.NotNil(t, chunk.Page)
	assert.Equal(t, 2, *chunk.Page)
}

func TestSearchSimilarChunksRecencyFallback(t *testing.T) {
	db := newTestDB(t)
	svc := &DocumentService{db: db, hasVector: false, maxIngestBytes: defaultMaxIngestBytes}

	owner := uuid.NewString()
	doc := createReadyDocument(t, db, owner, "lease.pdf", "lease")
	base := time.Now().Add(-time.Hour)
	createChunk(t, db, doc.ID, 0, "Older chunk about the lease term.", base)
	createChunk(t, db, doc.ID, 1, "Newer chunk listing the monthly rent.", base.Add(30*time.Minute))

	results := svc.SearchSimilarChunks("monthly rent", owner, nil, 5)

	require.Len(t, results, 2)
	// Most recent first on the fallback path, with zero scores.
	assert.Equal(t, "chk_00001", results[0].ChunkToken)
	assert.True(t, results[0].Degraded)
	assert.Zero(t, results[0].Score)
	assert.Equal(t, "lease.pdf", results[0].Doc)
	assert.Equal(t, "lease", results[0].DocType)
}

func TestSearchSimilarChunksScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	svc := &DocumentService{db: db, hasVector: false, maxIngestBytes: defaultMaxIngestBytes}

	mine := uuid.NewString()
	theirs := uuid.NewString()
	myDoc := createReadyDocument(t, db, mine, "paystub.pdf", "paystub")
	theirDoc := createReadyDocument(t, db, theirs, "other.pdf", "lease")
	createChunk(t, db, myDoc.ID, 0, "Gross pay $5,000 monthly.", time.Now())
	createChunk(t, db, theirDoc.ID, 0, "Someone else's lease.", time.Now())

	results := svc.SearchSimilarChunks("income", mine, nil, 5)

	require.Len(t, results, 1)
	assert.Equal(t, myDoc.ID, results[0].DocumentID)
}

func TestSearchSimilarChunksDocumentFilter(t *testing.T) {
	db := newTestDB(t)
	svc := &DocumentService{db: db, hasVector: false, maxIngestBytes: defaultMaxIngestBytes}

	owner := uuid.NewString()
	docA := createReadyDocument(t, db, owner, "lease.pdf", "lease")
	docB := createReadyDocument(t, db, owner, "paystub.pdf", "paystub")
	createChunk(t, db, docA.ID, 0, "Lease content.", time.Now())
	createChunk(t, db, docB.ID, 0, "Paystub content.", time.Now())

	results := svc.SearchSimilarChunks("content", owner, []string{docB.ID}, 5)

	require.Len(t, results, 1)
	assert.Equal(t, docB.ID, results[0].DocumentID)
}

func TestSearchSimilarChunksExcludesUnreadyDocuments(t *testing.T) {
	db := newTestDB(t)
	svc := &DocumentService{db: db, hasVector: false, maxIngestBytes: defaultMaxIngestBytes}

	owner := uuid.NewString()
	doc := model.Document{
		ID:       uuid.NewString(),
		OwnerID:  owner,
		Filename: "processing.pdf",
		DocType:  "lease",
		Status:   model.DocumentStatusProcessing,
	}
	require.NoError(t, db.Create(&doc).Error)
	createChunk(t, db, doc.ID, 0, "Half-ingested content.", time.Now())

	results := svc.SearchSimilarChunks("content", owner, nil, 5)
	assert.Empty(t, results)
}

func TestChunkToken(t *testing.T) {
	assert.Equal(t, "chk_00000", ChunkToken(0))
	assert.Equal(t, "chk_00007", ChunkToken(7))
	assert.Equal(t, "chk_12345", ChunkToken(12345))
}

func TestTruncateQuote(t *testing.T) {
	short := "short quote"
	assert.Equal(t, short, TruncateQuote(short))

	long := strings.Repeat("a", 500)
	truncated := TruncateQuote(long)
	assert.Equal(t, MaxQuoteLength, len([]rune(truncated)))

	// Truncation counts runes so multibyte content is never split.
	multibyte := strings.Repeat("é", 300)
	assert.Equal(t, MaxQuoteLength, len([]rune(TruncateQuote(multibyte))))
}
