package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestParseSuggestionPayload(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
		value   string
	}{
		{
			name:    "plain json object",
			content: `{"value": "Jane Doe", "confidence": 0.9, "citations": [{"chunk": "chk_00000"}], "warnings": []}`,
			value:   "Jane Doe",
		},
		{
			name: "json fenced with markdown",
			content: "```json\n" +
				`{"value": "1200", "confidence": 0.7, "citations": [], "warnings": []}` +
				"\n```",
			value: "1200",
		},
		{
			name: "bare fence without language tag",
			content: "```\n" +
				`{"value": "IL", "confidence": 0.8, "citations": [], "warnings": []}` +
				"\n```",
			value: "IL",
		},
		{
			name:    "prose instead of json is an error",
			content: "The applicant's name appears to be Jane Doe.",
			wantErr: true,
		},
		{
			name:    "empty output is an error",
			content: "   ",
			wantErr: true,
		},
		{
			name:    "wrong value type is an error",
			content: `{"value": 1200, "confidence": 0.7, "citations": [], "warnings": []}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := parseSuggestionPayload(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.value, payload.Value)
		})
	}
}

func TestNormalizeSuggestion(t *testing.T) {
	page := 2
	results := []ChunkSearchResult{
		{
			ChunkID:    "c1",
			DocumentID: "d1",
			Doc:        "lease.pdf",
			DocType:    "lease",
			Page:       &page,
			ChunkIndex: 0,
			ChunkToken: "chk_00000",
			Quote:      "Tenant: Jane Doe",
		},
	}

	t.Run("resolves known citation tokens", func(t *testing.T) {
		payload := &suggestionPayload{Value: "Jane Doe", Confidence: 0.9}
		payload.Citations = append(payload.Citations, struct {
			Chunk string `json:"chunk"`
		}{Chunk: "chk_00000"})

		resp := normalizeSuggestion("full_name", payload, results)
		assert.Len(t, resp.Citations, 1)
		assert.Equal(t, "lease.pdf", resp.Citations[0].Doc)
		assert.Equal(t, "d1", resp.Citations[0].DocumentID)
		assert.Equal(t, "Tenant: Jane Doe", resp.Citations[0].Quote)
	})

	t.Run("drops fabricated citation tokens", func(t *testing.T) {
		payload := &suggestionPayload{Value: "Jane Doe", Confidence: 0.9}
		payload.Citations = append(payload.Citations, struct {
			Chunk string `json:"chunk"`
		}{Chunk: "chk_99999"})

		resp := normalizeSuggestion("full_name", payload, results)
		assert.Empty(t, resp.Citations)
	})

	t.Run("clamps confidence into unit range", func(t *testing.T) {
		resp := normalizeSuggestion("full_name", &suggestionPayload{Value: "x", Confidence: 1.7}, nil)
		assert.Equal(t, 1.0, resp.Confidence)

		resp = normalizeSuggestion("full_name", &suggestionPayload{Value: "x", Confidence: -0.3}, nil)
		assert.Equal(t, 0.0, resp.Confidence)
	})

	t.Run("empty value without warnings gains an insufficient evidence flag", func(t *testing.T) {
		resp := normalizeSuggestion("dob", &suggestionPayload{Value: "", Confidence: 0}, nil)
		assert.Len(t, resp.Flags, 1)
		assert.Equal(t, "INSUFFICIENT_EVIDENCE", resp.Flags[0].Code)
		assert.Equal(t, SeverityWarning, resp.Flags[0].Severity)
		assert.NotEmpty(t, resp.Flags[0].Message)
	})

	t.Run("warning codes become structured flags", func(t *testing.T) {
		payload := &suggestionPayload{Value: "1200", Confidence: 0.6, Warnings: []string{"AMBIGUOUS_EVIDENCE"}}
		resp := normalizeSuggestion("monthly_rent", payload, nil)
		assert.Len(t, resp.Flags, 1)
		assert.Equal(t, "AMBIGUOUS_EVIDENCE", resp.Flags[0].Code)
	})

	t.Run("slices are never nil", func(t *testing.T) {
		resp := normalizeSuggestion("dob", &suggestionPayload{Value: "1990-01-01", Confidence: 0.6}, nil)
		assert.NotNil(t, resp.Citations)
		assert.NotNil(t, resp.Flags)
	})
}

func TestConfidenceLabel(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{0.95, "High"},
		{0.8, "High"},
		{0.79, "Medium"},
		{0.5, "Medium"},
		{0.49, "Low"},
		{0.01, "Low"},
		{0, "Very Low"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ConfidenceLabel(tt.confidence))
	}
}

func TestSuggestFieldUnknownField(t *testing.T) {
	s := &DocumentService{}
	_, err := s.SuggestField("owner-1", "favorite_color", nil, nil)
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestSuggestFieldNoReadyDocumentsFailsBeforeProviderCall(t *testing.T) {
	db := newTestDB(t)
	s := &DocumentService{db: db, maxIngestBytes: defaultMaxIngestBytes}

	// No documents exist for this owner, so the precondition trips before
	// any provider configuration is even consulted.
	_, err := s.SuggestField(uuid.NewString(), "full_name", nil, nil)
	assert.ErrorIs(t, err, ErrNoReadyDocuments)
}

func TestRetrievalQueryIncludesDocTypes(t *testing.T) {
	field, ok := FieldByID("monthly_rent")
	assert.True(t, ok)

	q := retrievalQuery(field)
	assert.Contains(t, q, "Monthly rent")
	assert.Contains(t, q, "lease")
}

func TestFieldByID(t *testing.T) {
	field, ok := FieldByID("zip")
	assert.True(t, ok)
	assert.Equal(t, "ZIP code", field.Label)

	_, ok = FieldByID("nope")
	assert.False(t, ok)
}

func TestFormSchemaShape(t *testing.T) {
	assert.Len(t, FormSchema, 15)

	seen := make(map[string]bool)
	for _, f := range FormSchema {
		assert.False(t, seen[f.ID], "duplicate field id %s", f.ID)
		seen[f.ID] = true
		if f.Evidence {
			assert.NotEmpty(t, f.DocTypes, "evidence field %s needs doc types", f.ID)
		}
	}

	employer, _ := FieldByID("employer_name")
	assert.False(t, employer.Required)
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	assert.True(t, rl.Allow("k"))
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))
	// Independent keys do not share a budget.
	assert.True(t, rl.Allow("other"))
}
