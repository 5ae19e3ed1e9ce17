package vectorstore

import (
	"AskArchive/backend/go/internal/archive_service/archive/interfaces"
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is a brute-force cosine similarity index kept in process memory.
// It backs tests and the "memory" vector store provider for single-node setups.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]map[string]schema.VectorRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{namespaces: make(map[string]map[string]schema.VectorRecord)}
}

// Upsert stores copies of records, replacing any with the same ID.
func (s *MemoryStore) Upsert(ctx context.Context, namespace string, records []schema.VectorRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]schema.VectorRecord)
		s.namespaces[namespace] = ns
	}
	for _, r := range records {
		if r.ID == "" {
			return 0, fmt.Errorf("record without id")
		}
		values := make([]float32, len(r.Values))
		copy(values, r.Values)
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		ns[r.ID] = schema.VectorRecord{ID: r.ID, Values: values, Metadata: meta}
	}
	return len(records), nil
}

// Query scores every record in namespace that passes filter and returns the best topK.
func (s *MemoryStore) Query(ctx context.Context, namespace string, vector []float32, topK int, filter schema.Filter) ([]schema.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]schema.Match, 0)
	for _, r := range s.namespaces[namespace] {
		if !matchesFilter(r.Metadata, filter) {
			continue
		}
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		matches = append(matches, schema.Match{ID: r.ID, Score: cosine(vector, r.Values), Metadata: meta})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete removes matching records. An empty filter requires DeleteAll.
func (s *MemoryStore) Delete(ctx context.Context, namespace string, req schema.DeleteRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(req.Filter) == 0 && !req.DeleteAll {
		return fmt.Errorf("refusing to delete without a filter; set DeleteAll to clear namespace %s", namespace)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.DeleteAll && len(req.Filter) == 0 {
		delete(s.namespaces, namespace)
		return nil
	}
	for id, r := range s.namespaces[namespace] {
		if matchesFilter(r.Metadata, req.Filter) {
			delete(s.namespaces[namespace], id)
		}
	}
	return nil
}

// Count returns the number of records in namespace.
func (s *MemoryStore) Count(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.namespaces[namespace])
}

// Get returns the record stored under id in namespace.
func (s *MemoryStore) Get(namespace, id string) (schema.VectorRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.namespaces[namespace][id]
	return r, ok
}

func matchesFilter(meta map[string]any, filter schema.Filter) bool {
	for k, want := range filter {
		got, ok := meta[k].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ interfaces.VectorStore = (*MemoryStore)(nil)
