package pipeline

import (
	"AskArchive/backend/go/internal/archive_service/archive/schema"
	"AskArchive/backend/go/internal/models"
	"context"
	"errors"
	"sort"
	"sync"
)

// callLog records the order in which collaborators are touched.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeEmbedder struct {
	log      *callLog
	err      error
	short    bool
	inputs   [][]string
	vectorOf func(text string) []float32
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.log.add("embed")
	f.inputs = append(f.inputs, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if f.vectorOf != nil {
			out = append(out, f.vectorOf(t))
		} else {
			out = append(out, []float32{float32(len(t)), 1})
		}
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

type fakeVectorStore struct {
	log *callLog
	// failOnBatch makes the n-th Upsert call (1-based) fail.
	failOnBatch int
	deleteErr   error
	queryErr    error

	upserts    int
	records    map[string]map[string]schema.VectorRecord
	batchSizes []int
	deletes    []schema.DeleteRequest
	queries    []fakeQuery
	matches    []schema.Match
}

type fakeQuery struct {
	namespace string
	topK      int
	filter    schema.Filter
}

func newFakeVectorStore(log *callLog) *fakeVectorStore {
	return &fakeVectorStore{log: log, records: map[string]map[string]schema.VectorRecord{}}
}

func (f *fakeVectorStore) Upsert(_ context.Context, namespace string, records []schema.VectorRecord) (int, error) {
	f.log.add("upsert")
	f.upserts++
	if f.failOnBatch == f.upserts {
		return 0, errors.New("index unavailable")
	}
	f.batchSizes = append(f.batchSizes, len(records))
	if f.records[namespace] == nil {
		f.records[namespace] = map[string]schema.VectorRecord{}
	}
	for _, r := range records {
		f.records[namespace][r.ID] = r
	}
	return len(records), nil
}

func (f *fakeVectorStore) Query(_ context.Context, namespace string, _ []float32, topK int, filter schema.Filter) ([]schema.Match, error) {
	f.log.add("query")
	f.queries = append(f.queries, fakeQuery{namespace: namespace, topK: topK, filter: filter})
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.matches, nil
}

func (f *fakeVectorStore) Delete(_ context.Context, namespace string, req schema.DeleteRequest) error {
	f.log.add("vector_delete")
	f.deletes = append(f.deletes, req)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if req.DeleteAll {
		delete(f.records, namespace)
		return nil
	}
	for id, r := range f.records[namespace] {
		if r.Metadata[schema.MetaSource] == req.Filter[schema.MetaSource] {
			delete(f.records[namespace], id)
		}
	}
	return nil
}

func (f *fakeVectorStore) ids(namespace string) []string {
	var ids []string
	for id := range f.records[namespace] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type fakeMetadataStore struct {
	log         *callLog
	existsErr   error
	registerErr error
	deleteErr   error
	rows        map[string]*models.IngestionSource
}

func newFakeMetadataStore(log *callLog) *fakeMetadataStore {
	return &fakeMetadataStore{log: log, rows: map[string]*models.IngestionSource{}}
}

func key(userID, sourceID string) string { return userID + "/" + sourceID }

func (f *fakeMetadataStore) Exists(_ context.Context, userID, sourceID string) (bool, error) {
	f.log.add("exists")
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.rows[key(userID, sourceID)]
	return ok, nil
}

func (f *fakeMetadataStore) RegisterSource(_ context.Context, s *models.IngestionSource) error {
	f.log.add("register")
	if f.registerErr != nil {
		return f.registerErr
	}
	if _, ok := f.rows[key(s.UserID, s.SourceID)]; !ok {
		f.rows[key(s.UserID, s.SourceID)] = s
	}
	return nil
}

func (f *fakeMetadataStore) ListSources(_ context.Context, userID string) ([]*models.IngestionSource, error) {
	f.log.add("list")
	var out []*models.IngestionSource
	for _, s := range f.rows {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeMetadataStore) DeleteSource(_ context.Context, userID, sourceID string) (int64, error) {
	f.log.add("relational_delete")
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	if _, ok := f.rows[key(userID, sourceID)]; !ok {
		return 0, nil
	}
	delete(f.rows, key(userID, sourceID))
	return 1, nil
}

func (f *fakeMetadataStore) DeleteUserSources(_ context.Context, userID string) (int64, error) {
	f.log.add("relational_delete")
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	var n int64
	for k, s := range f.rows {
		if s.UserID == userID {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}

type fakeReporter struct {
	events []*models.SyncEvent
}

func (f *fakeReporter) Report(_ context.Context, e *models.SyncEvent) error {
	f.events = append(f.events, e)
	return nil
}

type fakeGenerator struct {
	prompt string
	answer string
	err    error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.answer, f.err
}
