package storage

import (
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/codesmriti/codesmriti/internal/models"
)

// toPayload flattens a document into the Qdrant payload. The embedding
// lives in the point vector, never in the payload; everything else the
// document carries is stored so FetchDocument can rebuild it.
func toPayload(doc models.Document) map[string]*qdrant.Value {
	payload := map[string]*qdrant.Value{
		"id":           qdrant.NewValueString(doc.ID),
		"tenant_id":    qdrant.NewValueString(doc.TenantID),
		"repo_id":      qdrant.NewValueString(doc.RepoID),
		"type":         qdrant.NewValueString(string(doc.Type)),
		"summary_text": qdrant.NewValueString(doc.SummaryText),
		"parent_id":    qdrant.NewValueString(doc.ParentID),
		"content_hash": qdrant.NewValueString(doc.ContentHash),
		"path":         qdrant.NewValueString(doc.Path),
		"created_at":   qdrant.NewValueString(doc.CreatedAt.UTC().Format(time.RFC3339)),
		"updated_at":   qdrant.NewValueString(doc.UpdatedAt.UTC().Format(time.RFC3339)),
	}

	if len(doc.ChildrenIDs) > 0 {
		payload["children_ids"] = stringListValue(doc.ChildrenIDs)
	}

	switch doc.Type {
	case models.DocTypeFileIndex:
		payload["language"] = qdrant.NewValueString(doc.Language)
		payload["line_count"] = qdrant.NewValueInt(int64(doc.LineCount))
		payload["file_commit"] = qdrant.NewValueString(doc.FileCommit)
	case models.DocTypeSymbolIndex:
		payload["language"] = qdrant.NewValueString(doc.Language)
		payload["symbol_name"] = qdrant.NewValueString(doc.SymbolName)
		payload["symbol_kind"] = qdrant.NewValueString(string(doc.SymbolKind))
		payload["start_line"] = qdrant.NewValueInt(int64(doc.StartLine))
		payload["end_line"] = qdrant.NewValueInt(int64(doc.EndLine))
		if doc.ParentClass != "" {
			payload["parent_class"] = qdrant.NewValueString(doc.ParentClass)
		}
	case models.DocTypeRepoSummary:
		if len(doc.Languages) > 0 {
			payload["languages"] = stringListValue(doc.Languages)
		}
		if len(doc.DocCounts) > 0 {
			fields := make(map[string]*qdrant.Value, len(doc.DocCounts))
			for k, v := range doc.DocCounts {
				fields[k] = qdrant.NewValueInt(int64(v))
			}
			payload["doc_counts"] = &qdrant.Value{
				Kind: &qdrant.Value_StructValue{StructValue: &qdrant.Struct{Fields: fields}},
			}
		}
	}

	if doc.SummaryDegraded {
		payload["summary_degraded"] = qdrant.NewValueBool(true)
	}
	if doc.AggregationTruncated {
		payload["aggregation_truncated"] = qdrant.NewValueBool(true)
	}
	if doc.ParseDegraded {
		payload["parse_degraded"] = qdrant.NewValueBool(true)
	}

	return payload
}

// fromPayload rebuilds a document from a point payload.
func fromPayload(payload map[string]*qdrant.Value) models.Document {
	doc := models.Document{
		ID:          payload["id"].GetStringValue(),
		TenantID:    payload["tenant_id"].GetStringValue(),
		RepoID:      payload["repo_id"].GetStringValue(),
		Type:        models.DocType(payload["type"].GetStringValue()),
		SummaryText: payload["summary_text"].GetStringValue(),
		ParentID:    payload["parent_id"].GetStringValue(),
		ContentHash: payload["content_hash"].GetStringValue(),
		Path:        payload["path"].GetStringValue(),
		Language:    payload["language"].GetStringValue(),
		LineCount:   int(payload["line_count"].GetIntegerValue()),
		FileCommit:  payload["file_commit"].GetStringValue(),
		SymbolName:  payload["symbol_name"].GetStringValue(),
		SymbolKind:  models.SymbolKind(payload["symbol_kind"].GetStringValue()),
		StartLine:   int(payload["start_line"].GetIntegerValue()),
		EndLine:     int(payload["end_line"].GetIntegerValue()),
		ParentClass: payload["parent_class"].GetStringValue(),

		SummaryDegraded:      payload["summary_degraded"].GetBoolValue(),
		AggregationTruncated: payload["aggregation_truncated"].GetBoolValue(),
		ParseDegraded:        payload["parse_degraded"].GetBoolValue(),
	}

	doc.ChildrenIDs = stringList(payload["children_ids"])
	doc.Languages = stringList(payload["languages"])

	if counts := payload["doc_counts"].GetStructValue().GetFields(); len(counts) > 0 {
		doc.DocCounts = make(map[string]int, len(counts))
		for k, v := range counts {
			doc.DocCounts[k] = int(v.GetIntegerValue())
		}
	}

	if ts, err := time.Parse(time.RFC3339, payload["created_at"].GetStringValue()); err == nil {
		doc.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339, payload["updated_at"].GetStringValue()); err == nil {
		doc.UpdatedAt = ts
	}

	return doc
}

func stringListValue(items []string) *qdrant.Value {
	values := make([]*qdrant.Value, len(items))
	for i, item := range items {
		values[i] = qdrant.NewValueString(item)
	}
	return &qdrant.Value{
		Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}},
	}
}

func stringList(v *qdrant.Value) []string {
	values := v.GetListValue().GetValues()
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, item := range values {
		out = append(out, item.GetStringValue())
	}
	return out
}

// keywordMatch builds one exact-match filter condition.
func keywordMatch(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
