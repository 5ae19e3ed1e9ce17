package vectorstore

import (
	"AskArchive/backend/go/internal/archive_service/archive/interfaces"
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/internal/database/milvus"
	"AskArchive/backend/go/pkg/logger"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// milvusAPI is the subset of client.Client the store uses.
type milvusAPI interface {
	Upsert(ctx context.Context, collName string, partitionName string, columns ...entity.Column) (entity.Column, error)
	Delete(ctx context.Context, collName string, partitionName string, expr string) error
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string, vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int, sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
}

var outputFields = []string{
	milvus.FieldUserID,
	milvus.FieldSource,
	milvus.FieldSourceType,
	milvus.FieldDisplayName,
	milvus.FieldText,
	milvus.FieldStart,
	milvus.FieldEnd,
}

// MilvusStore keeps every namespace in one collection and scopes each
// operation with a namespace == "<ns>" expression.
type MilvusStore struct {
	log         *logger.Logger
	client      milvusAPI
	collection  string
	vectorField string
	metric      entity.MetricType
	searchParam func(topK int) (entity.SearchParam, error)
}

// NewMilvusStore wraps an initialized MilvusClient.
func NewMilvusStore(mc *milvus.MilvusClient, log *logger.Logger) (*MilvusStore, error) {
	if mc == nil || mc.Client == nil {
		return nil, fmt.Errorf("milvus client is not initialized")
	}
	return &MilvusStore{
		log:         log,
		client:      mc.Client,
		collection:  mc.Config.Schema.CollectionName,
		vectorField: mc.Config.Schema.VectorField,
		metric:      mc.MetricType(),
		searchParam: mc.SearchParam,
	}, nil
}

// Upsert writes records as columns. Repeated IDs overwrite the stored row.
func (s *MilvusStore) Upsert(ctx context.Context, namespace string, records []schema.VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	dim := len(records[0].Values)
	n := len(records)
	ids := make([]string, n)
	namespaces := make([]string, n)
	users := make([]string, n)
	sources := make([]string, n)
	types := make([]string, n)
	names := make([]string, n)
	texts := make([]string, n)
	starts := make([]float64, n)
	ends := make([]float64, n)
	vectors := make([][]float32, n)

	for i, r := range records {
		if len(r.Values) != dim {
			return 0, fmt.Errorf("record %s has dimension %d, expected %d", r.ID, len(r.Values), dim)
		}
		ids[i] = r.ID
		namespaces[i] = namespace
		users[i] = str(r.Metadata[schema.MetaUserID])
		sources[i] = str(r.Metadata[schema.MetaSource])
		types[i] = str(r.Metadata[schema.MetaSourceType])
		names[i] = str(r.Metadata[schema.MetaDisplayName])
		texts[i] = str(r.Metadata[schema.MetaText])
		starts[i] = num(r.Metadata[schema.MetaStart])
		ends[i] = num(r.Metadata[schema.MetaEnd])
		vectors[i] = r.Values
	}

	_, err := s.client.Upsert(ctx, s.collection, "",
		entity.NewColumnVarChar(milvus.FieldID, ids),
		entity.NewColumnVarChar(milvus.FieldNamespace, namespaces),
		entity.NewColumnVarChar(milvus.FieldUserID, users),
		entity.NewColumnVarChar(milvus.FieldSource, sources),
		entity.NewColumnVarChar(milvus.FieldSourceType, types),
		entity.NewColumnVarChar(milvus.FieldDisplayName, names),
		entity.NewColumnVarChar(milvus.FieldText, texts),
		entity.NewColumnDouble(milvus.FieldStart, starts),
		entity.NewColumnDouble(milvus.FieldEnd, ends),
		entity.NewColumnFloatVector(s.vectorField, dim, vectors),
	)
	if err != nil {
		return 0, fmt.Errorf("milvus upsert into %s: %w", namespace, err)
	}
	s.log.WithField("namespace", namespace).WithField("count", n).Debug("upserted records")
	return n, nil
}

// Query runs a similarity search restricted to namespace and filter.
func (s *MilvusStore) Query(ctx context.Context, namespace string, vector []float32, topK int, filter schema.Filter) ([]schema.Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	sp, err := s.searchParam(topK)
	if err != nil {
		return nil, fmt.Errorf("build search param: %w", err)
	}
	expr, err := buildExpr(namespace, filter)
	if err != nil {
		return nil, err
	}

	results, err := s.client.Search(ctx, s.collection, nil, expr, outputFields,
		[]entity.Vector{entity.FloatVector(vector)}, s.vectorField, s.metric, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search in %s: %w", namespace, err)
	}

	var matches []schema.Match
	for _, res := range results {
		if res.Err != nil {
			return nil, fmt.Errorf("milvus search in %s: %w", namespace, res.Err)
		}
		for i := 0; i < res.ResultCount; i++ {
			id, _ := res.IDs.GetAsString(i)
			meta := make(map[string]any, len(outputFields))
			for _, name := range []string{milvus.FieldUserID, milvus.FieldSource, milvus.FieldSourceType, milvus.FieldDisplayName, milvus.FieldText} {
				if col := res.Fields.GetColumn(name); col != nil {
					v, _ := col.GetAsString(i)
					meta[name] = v
				}
			}
			for _, name := range []string{milvus.FieldStart, milvus.FieldEnd} {
				if col := res.Fields.GetColumn(name); col != nil {
					v, _ := col.GetAsDouble(i)
					meta[name] = v
				}
			}
			var score float32
			if i < len(res.Scores) {
				score = s.similarity(res.Scores[i])
			}
			matches = append(matches, schema.Match{ID: id, Score: score, Metadata: meta})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	return matches, nil
}

// Delete removes rows matching filter inside namespace. An empty filter requires DeleteAll.
func (s *MilvusStore) Delete(ctx context.Context, namespace string, req schema.DeleteRequest) error {
	if len(req.Filter) == 0 && !req.DeleteAll {
		return fmt.Errorf("refusing to delete without a filter; set DeleteAll to clear namespace %s", namespace)
	}
	expr, err := buildExpr(namespace, req.Filter)
	if err != nil {
		return err
	}
	if err := s.client.Delete(ctx, s.collection, "", expr); err != nil {
		return fmt.Errorf("milvus delete in %s: %w", namespace, err)
	}
	s.log.WithField("namespace", namespace).WithField("expr", expr).Info("deleted vectors")
	return nil
}

// similarity maps raw scores so that larger always means closer.
func (s *MilvusStore) similarity(raw float32) float32 {
	if s.metric == entity.L2 {
		return 1 / (1 + raw)
	}
	return raw
}

var filterFields = map[string]bool{
	schema.MetaUserID:     true,
	schema.MetaSource:     true,
	schema.MetaSourceType: true,
}

// buildExpr renders namespace and equality filters as a boolean expression.
// Keys are emitted in sorted order so the expression is deterministic.
func buildExpr(namespace string, filter schema.Filter) (string, error) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		if !filterFields[k] {
			return "", fmt.Errorf("unsupported filter field %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := []string{milvus.FieldNamespace + " == " + strconv.Quote(namespace)}
	for _, k := range keys {
		parts = append(parts, k+" == "+strconv.Quote(filter[k]))
	}
	return strings.Join(parts, " and "), nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

var _ interfaces.VectorStore = (*MilvusStore)(nil)
