package catalog

import (
	"context"
	"testing"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/db"
	domcat "github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/catalog"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/query"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/scope"
)

const testDims = 4

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn   func(ctx context.Context, cmd *db.KNNCommand) (*db.SearchResult, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)

	searchCalls int
}

func (m *mockStore) SearchKNN(ctx context.Context, cmd *db.KNNCommand) (*db.SearchResult, error) {
	m.searchCalls++
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, cmd)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return true, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, Config{IndexName: "catalog:idx", KeyPrefix: "catalog:", Dimensions: testDims})
	return repo, ms
}

func testVector() []float32 {
	return []float32{0.1, 0.2, 0.3, 0.4}
}

func ptr[T any](v T) *T { return &v }

func mustComponents(t *testing.T, semantic string, lo, hi *float64) query.Components {
	t.Helper()
	c, err := query.New(semantic, lo, hi, nil)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return c
}

func mustScope(t *testing.T, org string, types []string, limit int) scope.Scope {
	t.Helper()
	sc, err := scope.New(org, types, &limit, domcat.DefaultTypes())
	if err != nil {
		t.Fatalf("scope.New: %v", err)
	}
	return sc
}

func entry(key string, distance float64, fields map[string]string) db.SearchEntry {
	return db.SearchEntry{Key: key, Distance: distance, Fields: fields}
}
