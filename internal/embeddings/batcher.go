package embeddings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codesmriti/codesmriti/internal/errs"
	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/pkg/config"
)

// Batcher drives one encoder with fixed-size batches. Batch preparation
// (prefixing, truncation) overlaps with the in-flight encode call; the
// encoder itself is never called concurrently.
type Batcher struct {
	cfg     *config.EmbeddingsConfig
	encoder Encoder
	retry   errs.RetryConfig
	log     *slog.Logger
}

// NewBatcher creates a batcher over enc.
func NewBatcher(cfg *config.EmbeddingsConfig, enc Encoder, log *slog.Logger) *Batcher {
	return &Batcher{
		cfg:     cfg,
		encoder: enc,
		retry:   errs.DefaultRetryConfig(),
		log:     log,
	}
}

type preparedBatch struct {
	start int
	texts []string
}

// EmbedDocuments encodes every document's summary and stores the vector on
// the document, normalized and dimension-checked. One failed batch fails
// the call; callers decide what that means for the job.
func (b *Batcher) EmbedDocuments(ctx context.Context, docs []models.Document) error {
	if len(docs) == 0 {
		return nil
	}

	batches := make(chan preparedBatch, 1)
	go func() {
		defer close(batches)
		for start := 0; start < len(docs); start += b.cfg.BatchSize {
			end := start + b.cfg.BatchSize
			if end > len(docs) {
				end = len(docs)
			}
			texts := make([]string, 0, end-start)
			for _, doc := range docs[start:end] {
				texts = append(texts, PrepareDocument(doc.SummaryText, b.cfg.MaxItemBytes))
			}
			select {
			case batches <- preparedBatch{start: start, texts: texts}:
			case <-ctx.Done():
				return
			}
		}
	}()

	for batch := range batches {
		vectors, err := errs.RetryWithResult(ctx, b.retry, func() ([][]float32, error) {
			return b.encoder.EncodeDocuments(ctx, batch.texts)
		})
		if err != nil {
			return fmt.Errorf("embed batch at offset %d: %w", batch.start, err)
		}

		for i, vec := range vectors {
			Normalize(vec)
			if err := CheckUnit(vec, b.encoder.Dims()); err != nil {
				return fmt.Errorf("document %s: %w", docs[batch.start+i].ID, err)
			}
			docs[batch.start+i].Embedding = vec
		}
	}

	return ctx.Err()
}

// EmbedQuery encodes one query string with the query prefix.
func (b *Batcher) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := errs.RetryWithResult(ctx, b.retry, func() ([]float32, error) {
		return b.encoder.EncodeQuery(ctx, PrepareQuery(text, b.cfg.MaxItemBytes))
	})
	if err != nil {
		return nil, err
	}
	Normalize(vec)
	if err := CheckUnit(vec, b.encoder.Dims()); err != nil {
		return nil, err
	}
	return vec, nil
}
