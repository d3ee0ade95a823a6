package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// EmbeddingDim is the fixed dimension of the embedding vectors produced by
// the Gemini embedding model.
const EmbeddingDim = 768

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultEmbeddingModel = "models/embedding-001"
)

// GeminiEmbedderConfig configures the Gemini embedding client.
type GeminiEmbedderConfig struct {
	APIKey     string
	BaseURL    string       // defaults to the public Gemini endpoint
	Model      string       // defaults to models/embedding-001
	HTTPClient *http.Client // defaults to a client with a 30s timeout
}

// GeminiEmbedder produces embeddings via the Gemini embedContent REST API.
type GeminiEmbedder struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGeminiEmbedder creates a Gemini embedding client.
func NewGeminiEmbedder(cfg GeminiEmbedderConfig, logger *slog.Logger) *GeminiEmbedder {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultEmbeddingModel
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &GeminiEmbedder{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}
}

type embedRequest struct {
	Model    string       `json:"model"`
	Content  embedContent `json:"content"`
	TaskType string       `json:"taskType,omitempty"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding vector for a search query. Rate limits, 5xx
// responses and transport errors are marked transient; other failures are
// permanent.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, "RETRIEVAL_QUERY")
}

// EmbedDocument returns the embedding vector for a document chunk. Queries
// and documents use different task types so the model optimizes each side of
// the retrieval pair.
func (e *GeminiEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, "RETRIEVAL_DOCUMENT")
}

func (e *GeminiEmbedder) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", ErrEmbeddingUnavailable)
	}

	body := embedRequest{
		Model:    e.model,
		Content:  embedContent{Parts: []embedPart{{Text: text}}},
		TaskType: taskType,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode embed request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:embedContent?key=%s", e.baseURL, e.model, e.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build embed request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, Transient(fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err))
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			e.logger.Warn("failed to close embed response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		wrapped := fmt.Errorf("%w: status %d: %s", ErrEmbeddingUnavailable, resp.StatusCode, string(detail))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return nil, Transient(wrapped)
		}

		return nil, wrapped
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, Transient(fmt.Errorf("%w: failed to decode response: %w", ErrEmbeddingUnavailable, err))
	}

	if len(decoded.Embedding.Values) != EmbeddingDim {
		return nil, fmt.Errorf("%w: expected embedding dim %d, got %d",
			ErrEmbeddingUnavailable, EmbeddingDim, len(decoded.Embedding.Values))
	}

	return decoded.Embedding.Values, nil
}
