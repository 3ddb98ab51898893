// Package embeddings turns summary text into unit vectors.
package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/codesmriti/codesmriti/internal/errs"
	"github.com/codesmriti/codesmriti/pkg/config"
)

// Prefixes required by the embedding model's asymmetric training: documents
// and queries are encoded into the same space through different prefixes.
const (
	DocumentPrefix = "search_document: "
	QueryPrefix    = "search_query: "
)

// UnitTolerance bounds the acceptable deviation of a stored vector's L2
// norm from 1.
const UnitTolerance = 1e-3

// Encoder is the embedding backend contract. Implementations must return
// vectors of exactly Dims() length; the pipeline normalizes at its own
// boundary regardless of what the backend promises.
type Encoder interface {
	// EncodeDocuments embeds already-prefixed, already-truncated inputs.
	EncodeDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EncodeQuery embeds one prefixed query string.
	EncodeQuery(ctx context.Context, text string) ([]float32, error)
	Dims() int
}

// Client is the HTTP embedding backend.
type Client struct {
	cfg        *config.EmbeddingsConfig
	httpClient *http.Client
	baseURL    string
}

// NewClient creates an embedding client.
func NewClient(cfg *config.EmbeddingsConfig) *Client {
	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(cfg.Endpoint, "/"),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// EncodeDocuments embeds a batch of texts.
func (c *Client) EncodeDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.encode(ctx, texts)
}

// EncodeQuery embeds one query string.
func (c *Client) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.encode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Dims returns the configured dimensionality.
func (c *Client) Dims() int {
	return c.cfg.Dims
}

func (c *Client) encode(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(embedRequest{Model: c.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	url := c.baseURL + "/api/embed"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.Transient("embed request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(resp.Body)
		return nil, errs.Transient("embed request", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding backend returned status %d: %s", resp.StatusCode, string(body))
	}

	var response embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}

	if len(response.Embeddings) != len(texts) {
		return nil, errs.Invariant("embedding count mismatch: sent %d inputs, got %d vectors",
			len(texts), len(response.Embeddings))
	}

	return response.Embeddings, nil
}

// PrepareDocument applies the document prefix and the per-item byte cap,
// truncating at a whitespace boundary.
func PrepareDocument(text string, maxBytes int) string {
	return DocumentPrefix + truncateAtWhitespace(text, maxBytes)
}

// PrepareQuery applies the query prefix and the per-item byte cap.
func PrepareQuery(text string, maxBytes int) string {
	return QueryPrefix + truncateAtWhitespace(text, maxBytes)
}

func truncateAtWhitespace(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := s[:max]
	if idx := strings.LastIndexAny(cut, " \t\n"); idx > 0 {
		cut = cut[:idx]
	}
	return cut
}

// Normalize L2-normalizes v in place and returns it. This runs at the
// pipeline boundary on every vector, whatever the backend claims about its
// own normalization.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1.0 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// CheckUnit verifies the unit-vector invariant at the given dimensionality.
func CheckUnit(v []float32, dims int) error {
	if len(v) != dims {
		return errs.Invariant("embedding has %d dims, want %d", len(v), dims)
	}
	if math.Abs(Norm(v)-1) >= UnitTolerance {
		return errs.Invariant("embedding norm %f outside unit tolerance", Norm(v))
	}
	return nil
}
