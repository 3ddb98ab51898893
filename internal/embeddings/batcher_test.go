package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/codesmriti/codesmriti/internal/errs"
	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/pkg/config"
)

// fakeEncoder hashes inputs into fixed small vectors and records calls.
type fakeEncoder struct {
	mu        sync.Mutex
	dims      int
	batches   [][]string
	failLeft  int
	badDims   bool
	lastQuery string
}

func (f *fakeEncoder) EncodeDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLeft > 0 {
		f.failLeft--
		return nil, errs.Transient("fake encode", fmt.Errorf("down"))
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vector(text)
	}
	return out, nil
}

func (f *fakeEncoder) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.lastQuery = text
	f.mu.Unlock()
	return f.vector(text), nil
}

func (f *fakeEncoder) Dims() int { return f.dims }

func (f *fakeEncoder) vector(text string) []float32 {
	dims := f.dims
	if f.badDims {
		dims++
	}
	v := make([]float32, dims)
	for i := range v {
		v[i] = float32(len(text)%7 + i + 1)
	}
	return v
}

func testBatcher(enc *fakeEncoder, batchSize int) *Batcher {
	cfg := config.DefaultConfig()
	cfg.Embeddings.Dims = enc.dims
	cfg.Embeddings.BatchSize = batchSize
	b := NewBatcher(&cfg.Embeddings, enc, slog.Default())
	b.retry.BaseDelay = 0
	return b
}

func summaryDocs(n int) []models.Document {
	docs := make([]models.Document, n)
	for i := range docs {
		docs[i] = models.Document{
			ID:          fmt.Sprintf("acme:payments:file_index:src/f%d.py", i),
			SummaryText: fmt.Sprintf("Summary number %d with some words.", i),
		}
	}
	return docs
}

func TestEmbedDocumentsBatchesAndNormalizes(t *testing.T) {
	enc := &fakeEncoder{dims: 4}
	b := testBatcher(enc, 3)

	docs := summaryDocs(7)
	if err := b.EmbedDocuments(context.Background(), docs); err != nil {
		t.Fatalf("EmbedDocuments: %v", err)
	}

	if len(enc.batches) != 3 {
		t.Errorf("batches = %d, want 3 (3+3+1)", len(enc.batches))
	}
	for _, doc := range docs {
		if len(doc.Embedding) != 4 {
			t.Fatalf("doc %s embedding dims = %d", doc.ID, len(doc.Embedding))
		}
		if math.Abs(Norm(doc.Embedding)-1) >= UnitTolerance {
			t.Errorf("doc %s norm = %f", doc.ID, Norm(doc.Embedding))
		}
	}
}

func TestEmbedDocumentsAppliesDocumentPrefix(t *testing.T) {
	enc := &fakeEncoder{dims: 4}
	b := testBatcher(enc, 8)

	if err := b.EmbedDocuments(context.Background(), summaryDocs(2)); err != nil {
		t.Fatalf("EmbedDocuments: %v", err)
	}
	for _, text := range enc.batches[0] {
		if !strings.HasPrefix(text, DocumentPrefix) {
			t.Errorf("input missing document prefix: %q", text)
		}
	}
}

func TestEmbedDocumentsRetriesTransientFailures(t *testing.T) {
	enc := &fakeEncoder{dims: 4, failLeft: 2}
	b := testBatcher(enc, 8)

	if err := b.EmbedDocuments(context.Background(), summaryDocs(2)); err != nil {
		t.Fatalf("EmbedDocuments after retries: %v", err)
	}
}

func TestEmbedDocumentsDimsMismatchIsFatal(t *testing.T) {
	enc := &fakeEncoder{dims: 4, badDims: true}
	b := testBatcher(enc, 8)

	err := b.EmbedDocuments(context.Background(), summaryDocs(1))
	if !errors.Is(err, errs.ErrInvariantViolation) {
		t.Errorf("dims mismatch error = %v, want invariant violation", err)
	}
}

func TestEmbedQueryAppliesQueryPrefix(t *testing.T) {
	enc := &fakeEncoder{dims: 4}
	b := testBatcher(enc, 8)

	vec, err := b.EmbedQuery(context.Background(), "how does auth work")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if !strings.HasPrefix(enc.lastQuery, QueryPrefix) {
		t.Errorf("query input = %q", enc.lastQuery)
	}
	if math.Abs(Norm(vec)-1) >= UnitTolerance {
		t.Errorf("query norm = %f", Norm(vec))
	}
}

func TestTruncateAtWhitespace(t *testing.T) {
	tests := []struct {
		in  string
		max int
	}{
		{"short", 100},
		{"several words that exceed the limit", 15},
		{"nowhitespaceatallinthisstring", 10},
	}
	for _, tt := range tests {
		got := truncateAtWhitespace(tt.in, tt.max)
		if len(got) > tt.max {
			t.Errorf("truncate(%q, %d) = %q, over cap", tt.in, tt.max, got)
		}
		if len(tt.in) <= tt.max && got != tt.in {
			t.Errorf("truncate altered in-budget string: %q", got)
		}
	}
	if got := truncateAtWhitespace("alpha beta gamma", 12); got != "alpha beta" {
		t.Errorf("whitespace boundary: %q", got)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	Normalize(v)
	for _, x := range v {
		if x != 0 {
			t.Errorf("zero vector changed: %v", v)
		}
	}
}
