package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	model "github.com/grantline/HousingCopilot/models"
)

// embeddingClient talks to an OpenAI-compatible /embeddings endpoint.
// The process keeps a single shared instance, constructed on first use;
// a construction failure (missing key) is cached so callers are not
// retrying an expensive setup on every chunk batch.
type embeddingClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

var (
	embedOnce      sync.Once
	sharedEmbedder *embeddingClient
)

func getEmbedder() *embeddingClient {
	embedOnce.Do(func() {
		apiKey := os.Getenv("EMBEDDINGS_API_KEY")
		if apiKey == "" {
			log.Println("EMBEDDINGS_API_KEY not set — embeddings disabled")
			return
		}
		baseURL := os.Getenv("EMBEDDINGS_BASE_URL")
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		embedModel := os.Getenv("EMBEDDINGS_MODEL")
		if embedModel == "" {
			embedModel = "BAAI/bge-small-en-v1.5"
		}
		sharedEmbedder = &embeddingClient{
			baseURL:    baseURL,
			apiKey:     apiKey,
			model:      embedModel,
			httpClient: &http.Client{Timeout: 30 * time.Second},
		}
		log.Printf("Embeddings client initialized: model=%s", embedModel)
	})
	return sharedEmbedder
}

// EmbeddingAvailable reports whether the embedding capability is
// configured. Callers branch on this flag, not on call failures.
func EmbeddingAvailable() bool {
	return getEmbedder() != nil
}

// EmbedTexts maps a batch of texts to fixed-dimension vectors. The batch is
// all-or-nothing: any transport error, short response, or dimension
// mismatch yields a nil result for the whole batch. Callers treat a nil
// result as capability-degraded, not as an error — chunk text is stored
// either way.
func EmbedTexts(texts []string) [][]float32 {
	if len(texts) == 0 {
		return nil
	}
	client := getEmbedder()
	if client == nil {
		return nil
	}

	vectors, err := client.embed(texts)
	if err != nil {
		log.Printf("Embedding generation failed: %v", err)
		return nil
	}
	return vectors
}

// EmbedSingle embeds one text, returning nil when embeddings are
// unavailable or the call fails.
func EmbedSingle(text string) []float32 {
	vectors := EmbedTexts([]string{text})
	if len(vectors) == 0 {
		return nil
	}
	return vectors[0]
}

func (c *embeddingClient) embed(texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embeddings request: %w", err)
	}

	req, err := http.NewRequest("POST", c.baseURL+"/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("non-200 status code: %d, response: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embeddings response: %w", err)
	}

	var result struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse embeddings response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(result.Data), len(texts))
	}

	vectors := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		if len(d.Embedding) != model.EmbeddingDim {
			return nil, fmt.Errorf("embedding dimension %d does not match expected %d", len(d.Embedding), model.EmbeddingDim)
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
