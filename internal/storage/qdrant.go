package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/codesmriti/codesmriti/internal/errs"
	"github.com/codesmriti/codesmriti/internal/models"
	"github.com/codesmriti/codesmriti/pkg/config"
)

// QdrantStore implements Store against a Qdrant collection. Documents are
// points: the embedding is the vector, everything else is payload. Point
// ids are UUIDs derived deterministically from document ids.
type QdrantStore struct {
	cfg        *config.StorageConfig
	dims       int
	client     *qdrant.Client
	collection string
	log        *slog.Logger
}

// NewQdrantStore connects to Qdrant over gRPC.
func NewQdrantStore(cfg *config.StorageConfig, dims int, log *slog.Logger) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	return &QdrantStore{
		cfg:        cfg,
		dims:       dims,
		client:     client,
		collection: cfg.Collection,
		log:        log,
	}, nil
}

// indexedFields are the payload keys every filter in the engine touches.
var indexedFields = []string{"tenant_id", "repo_id", "type", "path", "parent_id"}

// Initialize creates the collection and its payload indexes when absent.
func (s *QdrantStore) Initialize(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: &qdrant.VectorsConfig{
				Config: &qdrant.VectorsConfig_Params{
					Params: &qdrant.VectorParams{
						Size:     uint64(s.dims),
						Distance: qdrant.Distance_Dot,
					},
				},
			},
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		s.log.Info("created collection", "collection", s.collection, "dims", s.dims)
	}

	fieldType := qdrant.FieldType_FieldTypeKeyword
	for _, field := range indexedFields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      &fieldType,
		})
		if err != nil {
			// Index creation is idempotent on the server; anything else is real.
			if !strings.Contains(err.Error(), "already exists") {
				return fmt.Errorf("failed to create payload index on %s: %w", field, err)
			}
		}
	}

	return nil
}

// UpsertDocuments writes a batch of documents. A failed write is retried
// per document once; documents that still fail are reported by id, and the
// rest of the batch lands.
func (s *QdrantStore) UpsertDocuments(ctx context.Context, docs []models.Document) (UpsertStats, error) {
	var stats UpsertStats
	if len(docs) == 0 {
		return stats, nil
	}

	now := time.Now().UTC()
	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i := range docs {
		doc := &docs[i]
		if doc.Type != models.DocTypeRepoSummary && doc.ParentID == "" {
			return stats, errs.Invariant("document %s has no parent", doc.ID)
		}
		if len(doc.Embedding) != s.dims {
			return stats, errs.Invariant("document %s embedding has %d dims, want %d", doc.ID, len(doc.Embedding), s.dims)
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		doc.UpdatedAt = now
		points = append(points, s.toPoint(*doc))
	}

	for start := 0; start < len(points); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(points) {
			end = len(points)
		}
		batch := points[start:end]

		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         batch,
		})
		if err == nil {
			stats.Upserted += len(batch)
			continue
		}

		// The batch failed as a whole; retry each document once so one bad
		// point cannot sink its neighbors.
		s.log.Warn("batch upsert failed, retrying per document", "error", err, "batch_size", len(batch))
		for i, point := range batch {
			_, retryErr := s.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: s.collection,
				Points:         []*qdrant.PointStruct{point},
			})
			if retryErr != nil {
				stats.Failed = append(stats.Failed, docs[start+i].ID)
				continue
			}
			stats.Upserted++
		}
	}

	return stats, nil
}

func (s *QdrantStore) toPoint(doc models.Document) *qdrant.PointStruct {
	vector := make([]float32, len(doc.Embedding))
	copy(vector, doc.Embedding)

	return &qdrant.PointStruct{
		Id: &qdrant.PointId{
			PointIdOptions: &qdrant.PointId_Uuid{Uuid: models.PointID(doc.ID)},
		},
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{
				Vector: &qdrant.Vector{Data: vector},
			},
		},
		Payload: toPayload(doc),
	}
}

// MutateEmbedding replaces the vector of an existing point in place.
func (s *QdrantStore) MutateEmbedding(ctx context.Context, docID string, vector []float32) error {
	if len(vector) != s.dims {
		return errs.Invariant("replacement embedding has %d dims, want %d", len(vector), s.dims)
	}

	_, err := s.client.UpdateVectors(ctx, &qdrant.UpdatePointVectors{
		CollectionName: s.collection,
		Points: []*qdrant.PointVectors{
			{
				Id: &qdrant.PointId{
					PointIdOptions: &qdrant.PointId_Uuid{Uuid: models.PointID(docID)},
				},
				Vectors: &qdrant.Vectors{
					VectorsOptions: &qdrant.Vectors_Vector{
						Vector: &qdrant.Vector{Data: vector},
					},
				},
			},
		},
	})
	if err != nil {
		return errs.Transient("update vector", err)
	}
	return nil
}

// GetFileCommits bulk-reads the stored file state of a repo in one scroll.
func (s *QdrantStore) GetFileCommits(ctx context.Context, tenantID, repoID string) (map[string]FileRecord, error) {
	points, err := s.scroll(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{
			keywordMatch("tenant_id", tenantID),
			keywordMatch("repo_id", repoID),
			keywordMatch("type", string(models.DocTypeFileIndex)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read file state: %w", err)
	}

	records := make(map[string]FileRecord, len(points))
	for _, point := range points {
		payload := point.GetPayload()
		path := payload["path"].GetStringValue()
		records[path] = FileRecord{
			ID:      payload["id"].GetStringValue(),
			Path:    path,
			Commit:  payload["file_commit"].GetStringValue(),
			Summary: payload["summary_text"].GetStringValue(),
		}
	}
	return records, nil
}

// GetModuleRecords bulk-reads the stored module state of a repo.
func (s *QdrantStore) GetModuleRecords(ctx context.Context, tenantID, repoID string) (map[string]ModuleRecord, error) {
	points, err := s.scroll(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{
			keywordMatch("tenant_id", tenantID),
			keywordMatch("repo_id", repoID),
			keywordMatch("type", string(models.DocTypeModuleSummary)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read module state: %w", err)
	}

	records := make(map[string]ModuleRecord, len(points))
	for _, point := range points {
		payload := point.GetPayload()
		path := payload["path"].GetStringValue()
		records[path] = ModuleRecord{
			ID:          payload["id"].GetStringValue(),
			Path:        path,
			ContentHash: payload["content_hash"].GetStringValue(),
			Summary:     payload["summary_text"].GetStringValue(),
		}
	}
	return records, nil
}

// DeleteByFile removes a file document and its symbols. Symbol documents
// carry the containing file's path, so one path filter covers the cascade.
func (s *QdrantStore) DeleteByFile(ctx context.Context, tenantID, repoID, path string) error {
	return s.deleteByFilter(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{
			keywordMatch("tenant_id", tenantID),
			keywordMatch("repo_id", repoID),
			keywordMatch("path", path),
		},
	})
}

// DeleteModule removes one module_summary document. The type condition
// keeps a file that happens to share the module's path untouched.
func (s *QdrantStore) DeleteModule(ctx context.Context, tenantID, repoID, path string) error {
	return s.deleteByFilter(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{
			keywordMatch("tenant_id", tenantID),
			keywordMatch("repo_id", repoID),
			keywordMatch("type", string(models.DocTypeModuleSummary)),
			keywordMatch("path", path),
		},
	})
}

// DeleteByRepo removes every document of a repo.
func (s *QdrantStore) DeleteByRepo(ctx context.Context, tenantID, repoID string) error {
	return s.deleteByFilter(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{
			keywordMatch("tenant_id", tenantID),
			keywordMatch("repo_id", repoID),
		},
	})
}

func (s *QdrantStore) deleteByFilter(ctx context.Context, filter *qdrant.Filter) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return errs.Transient("delete points", err)
	}
	return nil
}

// HybridSearch runs one kNN query restricted by mandatory keyword filters.
// The filter is applied before scoring, so results never leak across
// tenants or document kinds.
func (s *QdrantStore) HybridSearch(ctx context.Context, params SearchParams) ([]models.SearchHit, error) {
	must := []*qdrant.Condition{
		keywordMatch("type", string(params.Type)),
		keywordMatch("tenant_id", params.TenantID),
	}
	if params.RepoID != "" {
		must = append(must, keywordMatch("repo_id", params.RepoID))
	}

	limit := uint64(params.Limit)
	query := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(params.Vector...),
		Filter:         &qdrant.Filter{Must: must},
		Limit:          &limit,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	}

	results, err := s.client.Query(ctx, query)
	if err != nil {
		// One retry; a missing collection will not heal, everything else
		// gets a second chance.
		if isMissingCollection(err) {
			return nil, fmt.Errorf("%w: %s", errs.ErrIndexUnavailable, s.collection)
		}
		results, err = s.client.Query(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errs.ErrSearchUnavailable, err)
		}
	}

	hits := make([]models.SearchHit, 0, len(results))
	for _, result := range results {
		hits = append(hits, models.SearchHit{
			Document: fromPayload(result.GetPayload()),
			Score:    float64(result.GetScore()),
		})
	}
	return hits, nil
}

// FetchDocument reads one document by id. Returns nil when absent.
func (s *QdrantStore) FetchDocument(ctx context.Context, docID string) (*models.Document, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids: []*qdrant.PointId{
			{PointIdOptions: &qdrant.PointId_Uuid{Uuid: models.PointID(docID)}},
		},
		WithPayload: &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, errs.Transient("get point", err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	doc := fromPayload(points[0].GetPayload())
	return &doc, nil
}

// FetchChildren reads the direct children of a document.
func (s *QdrantStore) FetchChildren(ctx context.Context, parentID string) ([]models.Document, error) {
	points, err := s.scroll(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{keywordMatch("parent_id", parentID)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read children: %w", err)
	}

	docs := make([]models.Document, 0, len(points))
	for _, point := range points {
		docs = append(docs, fromPayload(point.GetPayload()))
	}
	return docs, nil
}

// ListRepoSummaries reads every repo_summary document of a tenant.
func (s *QdrantStore) ListRepoSummaries(ctx context.Context, tenantID string) ([]models.Document, error) {
	points, err := s.scroll(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{
			keywordMatch("tenant_id", tenantID),
			keywordMatch("type", string(models.DocTypeRepoSummary)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list repos: %w", err)
	}

	docs := make([]models.Document, 0, len(points))
	for _, point := range points {
		docs = append(docs, fromPayload(point.GetPayload()))
	}
	return docs, nil
}

func (s *QdrantStore) scroll(ctx context.Context, filter *qdrant.Filter) ([]*qdrant.RetrievedPoint, error) {
	limit := uint32(s.cfg.ScrollLimit)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         filter,
		Limit:          &limit,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, errs.Transient("scroll", err)
	}
	return points, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func isMissingCollection(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "doesn't exist") || strings.Contains(msg, "not found")
}
