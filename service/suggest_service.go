package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	groqEndpoint = "https://api.groq.com/openai/v1/chat/completions"
	groqModel    = "llama-3.3-70b-versatile"
)

// RateLimiter manages local API call rate limiting per operation key.
type RateLimiter struct {
	mu           sync.Mutex
	requestCount map[string]int
	limit        int
	window       time.Duration
	lastReset    time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requestCount: make(map[string]int),
		limit:        limit,
		window:       window,
		lastReset:    time.Now(),
	}
}

// Allow checks if a request is allowed based on rate limit
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if time.Since(rl.lastReset) > rl.window {
		rl.requestCount = make(map[string]int)
		rl.lastReset = time.Now()
	}

	rl.requestCount[key]++
	return rl.requestCount[key] <= rl.limit
}

// groqRateLimiter bounds outbound LLM calls across all requests.
var groqRateLimiter = NewRateLimiter(50, 1*time.Minute)

// Citation points a suggested value at the exact evidence span behind it.
type Citation struct {
	DocumentID string `json:"document_id,omitempty"`
	Doc        string `json:"doc"`
	DocType    string `json:"doc_type,omitempty"`
	Page       *int   `json:"page"`
	Chunk      string `json:"chunk"`
	Quote      string `json:"quote,omitempty"`
}

// Usage reports the token spend of one suggestion call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// FlagItem is a structured warning attached to a suggestion.
type FlagItem struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// SuggestResponse is one field suggestion with its grounding.
type SuggestResponse struct {
	FieldID         string     `json:"field_id"`
	Value           string     `json:"value"`
	Confidence      float64    `json:"confidence"`
	ConfidenceLabel string     `json:"confidence_label"`
	Rationale       string     `json:"rationale"`
	Citations       []Citation `json:"citations"`
	Flags           []FlagItem `json:"flags"`

	// Degraded is set when retrieval fell back to recency ordering.
	Degraded bool   `json:"degraded,omitempty"`
	Model    string `json:"model"`
	Usage    Usage  `json:"usage"`
}

// FieldOutcome is one entry of a suggest-all run. Err is set instead of
// Suggestion when that field failed; other fields still get answers.
type FieldOutcome struct {
	FieldID    string           `json:"field_id"`
	Suggestion *SuggestResponse `json:"suggestion,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// suggestionPayload is the strict shape the model must return.
type suggestionPayload struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
	Citations  []struct {
		Chunk string `json:"chunk"`
	} `json:"citations"`
	Warnings []string `json:"warnings"`
}

// LLMAvailable reports whether the suggestion provider is configured.
func LLMAvailable() bool {
	return os.Getenv("GROQ_API_KEY") != ""
}

// SuggestField produces a grounded suggestion for one form field. The hard
// preconditions are checked in order before any provider call: the field
// must exist, at least one ready document must be in scope, and the
// provider must be configured.
func (s *DocumentService) SuggestField(ownerID, fieldID string, formData map[string]string, docIDs []string) (*SuggestResponse, error) {
	field, ok := FieldByID(fieldID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, fieldID)
	}

	docs, err := s.ResolveDocumentSet(ownerID, docIDs)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNoReadyDocuments
	}

	if !LLMAvailable() {
		return nil, ErrLLMUnavailable
	}
	if !groqRateLimiter.Allow("suggest") {
		return nil, fmt.Errorf("%w: local rate limit exceeded", ErrLLMUnavailable)
	}

	scopedIDs := make([]string, len(docs))
	for i, d := range docs {
		scopedIDs[i] = d.ID
	}

	results := s.SearchSimilarChunks(retrievalQuery(field), ownerID, scopedIDs, DefaultSearchTopK)
	degraded := false
	for _, r := range results {
		if r.Degraded {
			degraded = true
			break
		}
	}

	content, usage, err := s.callSuggestionModel(field, formData, results)
	if err != nil {
		return nil, err
	}

	payload, err := parseSuggestionPayload(content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLLMOutput, err)
	}

	resp := normalizeSuggestion(fieldID, payload, results)
	resp.Degraded = degraded
	resp.Model = groqModel
	resp.Usage = usage

	log.Printf("Suggestion for field %s: confidence=%.2f citations=%d flags=%d",
		fieldID, resp.Confidence, len(resp.Citations), len(resp.Flags))
	return resp, nil
}

// SuggestAllFields runs SuggestField for every schema field sequentially.
// A per-field failure is recorded in its outcome and the run continues.
func (s *DocumentService) SuggestAllFields(ownerID string, formData map[string]string, docIDs []string) []FieldOutcome {
	outcomes := make([]FieldOutcome, 0, len(FormSchema))
	for _, field := range FormSchema {
		outcome := FieldOutcome{FieldID: field.ID}
		suggestion, err := s.SuggestField(ownerID, field.ID, formData, docIDs)
		if err != nil {
			log.Printf("SuggestAllFields: field %s failed: %v", field.ID, err)
			outcome.Error = err.Error()
		} else {
			outcome.Suggestion = suggestion
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func retrievalQuery(field FormField) string {
	parts := []string{strings.ReplaceAll(field.ID, "_", " "), field.Label}
	if len(field.DocTypes) > 0 {
		parts = append(parts, strings.Join(field.DocTypes, " "))
	}
	return strings.Join(parts, " ")
}

const suggestSystemPrompt = `You are a form-filling assistant for a housing grant application.
You answer ONLY from the evidence excerpts provided. Never invent, infer, or
pull values from general knowledge. If the evidence does not clearly support
a value for the field, return an empty string value, confidence 0, and an
"INSUFFICIENT_EVIDENCE" warning. Every non-empty value must cite the chunk
tokens of the excerpts it came from.`

func (s *DocumentService) callSuggestionModel(field FormField, formData map[string]string, results []ChunkSearchResult) (string, Usage, error) {
	var evidence strings.Builder
	for _, r := range results {
		page := 0
		if r.Page != nil {
			page = *r.Page
		}
		fmt.Fprintf(&evidence, "[%s | %s | page %d | %s]\n%s\n\n", r.Doc, r.DocType, page, r.ChunkToken, r.Quote)
	}

	var context strings.Builder
	for k, v := range formData {
		if v != "" {
			fmt.Fprintf(&context, "%s: %s\n", k, v)
		}
	}

	prompt := fmt.Sprintf(`Field to fill: %q (id: %s)

Current form values:
%s
Evidence excerpts:
%s
Return a JSON object with exactly these keys:
{
  "value": "<string, empty if the evidence is insufficient>",
  "confidence": <number between 0 and 1>,
  "rationale": "<one sentence explaining which evidence supports the value>",
  "citations": [{"chunk": "<chunk token from an excerpt header>"}],
  "warnings": ["<warning code>", ...]
}`, field.Label, field.ID, context.String(), evidence.String())

	reqBody, err := json.Marshal(map[string]interface{}{
		"messages": []map[string]string{
			{"role": "system", "content": suggestSystemPrompt},
			{"role": "user", "content": prompt},
		},
		"model":       groqModel,
		"temperature": 0.0,
		"max_tokens":  500,
		"response_format": map[string]string{
			"type": "json_object",
		},
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("failed to create request body: %w", err)
	}

	apiKey := os.Getenv("GROQ_API_KEY")
	client := &http.Client{Timeout: 30 * time.Second}

	// Retry on transport errors and provider rate limiting.
	var resp *http.Response
	const maxRetries = 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		req, reqErr := http.NewRequest("POST", groqEndpoint, bytes.NewBuffer(reqBody))
		if reqErr != nil {
			return "", Usage{}, fmt.Errorf("failed to create Groq request: %w", reqErr)
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err = client.Do(req)
		if err == nil && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		if err != nil {
			log.Printf("Groq API request attempt %d failed: %v", attempt+1, err)
		} else {
			log.Printf("Groq rate limit hit (attempt %d), status: %s", attempt+1, resp.Status)
			resp.Body.Close()
		}
		if attempt < maxRetries-1 {
			time.Sleep(time.Duration(attempt+1) * time.Second)
		}
	}
	if err != nil {
		return "", Usage{}, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", Usage{}, fmt.Errorf("%w: non-200 status code %d: %s", ErrLLMUnavailable, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("failed to read Groq response: %w", err)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", Usage{}, fmt.Errorf("%w: failed to parse provider response: %v", ErrMalformedLLMOutput, err)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", Usage{}, fmt.Errorf("%w: provider returned no content", ErrMalformedLLMOutput)
	}

	usage := Usage{
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
	}
	return result.Choices[0].Message.Content, usage, nil
}

// parseSuggestionPayload decodes the model output into the strict payload
// shape. Markdown code fences around the JSON are tolerated; anything else
// that does not decode is the caller's error, not a silent default.
func parseSuggestionPayload(content string) (*suggestionPayload, error) {
	cleaned := strings.TrimSpace(content)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	if cleaned == "" {
		return nil, fmt.Errorf("empty model output")
	}

	var payload suggestionPayload
	decoder := json.NewDecoder(strings.NewReader(cleaned))
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("model output is not valid suggestion JSON: %v", err)
	}
	return &payload, nil
}

// normalizeSuggestion clamps confidence, resolves citation tokens against
// the retrieved chunks, and guarantees non-nil slices in the response.
func normalizeSuggestion(fieldID string, payload *suggestionPayload, results []ChunkSearchResult) *SuggestResponse {
	confidence := payload.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	byToken := make(map[string]ChunkSearchResult, len(results))
	for _, r := range results {
		byToken[r.ChunkToken] = r
	}

	citations := make([]Citation, 0, len(payload.Citations))
	for _, c := range payload.Citations {
		r, ok := byToken[c.Chunk]
		if !ok {
			log.Printf("Dropping citation with unknown chunk token %q for field %s", c.Chunk, fieldID)
			continue
		}
		citations = append(citations, Citation{
			DocumentID: r.DocumentID,
			Doc:        r.Doc,
			DocType:    r.DocType,
			Page:       r.Page,
			Chunk:      r.ChunkToken,
			Quote:      r.Quote,
		})
	}

	warnings := payload.Warnings
	if payload.Value == "" && len(warnings) == 0 {
		warnings = append(warnings, "INSUFFICIENT_EVIDENCE")
	}
	flags := make([]FlagItem, 0, len(warnings))
	for _, code := range warnings {
		flags = append(flags, FlagItem{
			Code:     code,
			Severity: SeverityWarning,
			Message:  warningMessage(code),
		})
	}

	return &SuggestResponse{
		FieldID:         fieldID,
		Value:           payload.Value,
		Confidence:      confidence,
		ConfidenceLabel: ConfidenceLabel(confidence),
		Rationale:       payload.Rationale,
		Citations:       citations,
		Flags:           flags,
	}
}

func warningMessage(code string) string {
	switch code {
	case "INSUFFICIENT_EVIDENCE":
		return "The uploaded documents do not clearly support a value for this field."
	default:
		return code
	}
}

// ConfidenceLabel maps a numeric confidence to its display bucket.
func ConfidenceLabel(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return "High"
	case confidence >= 0.5:
		return "Medium"
	case confidence > 0:
		return "Low"
	default:
		return "Very Low"
	}
}
