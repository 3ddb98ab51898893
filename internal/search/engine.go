package search

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/internal/storage"
	"github.com/codesmriti/codesmriti/pkg/config"
)

const defaultLimit = 10

// QueryEncoder embeds query text. The embeddings batcher satisfies this.
type QueryEncoder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Engine executes search requests: route the level, embed the query,
// run the pre-filtered kNN and defensively post-filter the hits.
type Engine struct {
	cfg     *config.SearchConfig
	store   storage.Store
	encoder QueryEncoder
	cache   *lru.Cache[string, []float32]
	log     *slog.Logger
}

// NewEngine creates a search engine with an LRU cache over query
// embeddings.
func NewEngine(cfg *config.SearchConfig, store storage.Store, encoder QueryEncoder, log *slog.Logger) (*Engine, error) {
	cache, err := lru.New[string, []float32](cfg.QueryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}
	return &Engine{
		cfg:     cfg,
		store:   store,
		encoder: encoder,
		cache:   cache,
		log:     log,
	}, nil
}

// Search runs one retrieval query.
func (e *Engine) Search(ctx context.Context, req models.SearchRequest) ([]models.SearchHit, error) {
	if req.TenantID == "" {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if req.QueryText == "" {
		return nil, fmt.Errorf("query_text is required")
	}

	level := req.Level
	if level == "" {
		level = ClassifyIntent(req.QueryText)
		e.log.Debug("routed query level", "level", level, "query", req.QueryText)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	vector, err := e.encodeQuery(ctx, req.QueryText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := e.store.HybridSearch(ctx, storage.SearchParams{
		Vector:   vector,
		TenantID: req.TenantID,
		RepoID:   req.RepoFilter,
		Type:     level.DocType(),
		Limit:    limit * e.cfg.Oversample,
	})
	if err != nil {
		return nil, err
	}

	filtered := e.postFilter(hits, req.TenantID, level.DocType(), limit)

	if req.PreviewMode {
		for i := range filtered {
			filtered[i].Document.SummaryText = preview(filtered[i].Document.SummaryText, e.cfg.PreviewChars)
		}
	}

	return filtered, nil
}

// encodeQuery returns the cached embedding for a query, encoding on miss.
func (e *Engine) encodeQuery(ctx context.Context, query string) ([]float32, error) {
	if vector, ok := e.cache.Get(query); ok {
		return vector, nil
	}
	vector, err := e.encoder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	e.cache.Add(query, vector)
	return vector, nil
}

// postFilter re-checks what the store's pre-filter already promised and
// drops thin summaries. Oversampled hits are cut back to the limit.
func (e *Engine) postFilter(hits []models.SearchHit, tenantID string, docType models.DocType, limit int) []models.SearchHit {
	filtered := make([]models.SearchHit, 0, limit)
	for _, hit := range hits {
		if hit.Document.TenantID != tenantID || hit.Document.Type != docType {
			e.log.Warn("dropped hit failing post-filter",
				"id", hit.Document.ID, "tenant", hit.Document.TenantID, "type", hit.Document.Type)
			continue
		}
		if len(hit.Document.SummaryText) < e.cfg.MinSummaryBytes {
			continue
		}
		filtered = append(filtered, hit)
		if len(filtered) == limit {
			break
		}
	}
	return filtered
}

// preview cuts text to at most maxChars bytes, backing up to a rune
// boundary so a multi-byte character is never split.
func preview(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
