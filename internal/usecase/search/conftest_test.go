package search

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain"
	domcat "github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/catalog"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/candidate"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/present"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/query"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/scope"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/repository/catalog"
)

const testDims = 4

// --- Mocks ---

type mockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	errs    map[string]error
	err     error
	block   bool
	blockOn map[string]bool
	calls   []string
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.mu.Unlock()

	if m.block || m.blockOn[text] {
		<-ctx.Done()
		return domain.EmbeddingResult{}, ctx.Err()
	}
	if err, ok := m.errs[text]; ok {
		return domain.EmbeddingResult{}, err
	}
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return domain.EmbeddingResult{Embedding: v, TotalTokens: 3}, nil
	}
	return domain.EmbeddingResult{Embedding: []float32{0.5, 0.5, 0.5, 0.5}, TotalTokens: 3}, nil
}

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockCatalog builds real queries and serves canned candidates.
type mockCatalog struct {
	repo       *catalog.Repo
	results    []candidate.Candidate
	err        error
	block      bool
	buildCalls int
	execCalls  int
	last       catalog.Query
}

func newMockCatalog(results ...candidate.Candidate) *mockCatalog {
	return &mockCatalog{
		repo:    catalog.New(nil, catalog.Config{Dimensions: testDims}),
		results: results,
	}
}

func (m *mockCatalog) Build(comps query.Components, sc scope.Scope, vector []float32) (catalog.Query, error) {
	m.buildCalls++
	return m.repo.Build(comps, sc, vector)
}

func (m *mockCatalog) Execute(ctx context.Context, q catalog.Query) ([]candidate.Candidate, error) {
	m.execCalls++
	m.last = q
	if q.Dimensions() != testDims {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, q.Dimensions(), testDims)
	}
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	out := m.results
	if len(out) > q.Limit() {
		out = out[:q.Limit()]
	}
	return out, nil
}

// --- Helpers ---

func ptr[T any](v T) *T { return &v }

func product(id, name, description string, price float64, distance float64) candidate.Candidate {
	return candidate.New(domcat.Entity{
		ID:          id,
		OrgID:       "org-1",
		Type:        domcat.TypeProduct,
		Name:        name,
		Description: description,
		Price:       ptr(price),
		Active:      true,
	}, distance)
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func newLexicalFilter(t *testing.T) *NegationFilter {
	t.Helper()
	f, err := NewNegationFilter(NegationConfig{Strategy: StrategyLexical}, nil, nil)
	if err != nil {
		t.Fatalf("NewNegationFilter: %v", err)
	}
	t.Cleanup(f.Release)
	return f
}

func newTestService(t *testing.T, emb *mockEmbedder, cat *mockCatalog, cfg Config) *Service {
	t.Helper()
	s := New(cfg, emb, cat, newLexicalFilter(t), present.NewFormatter(present.DefaultConfig(), fixedNow))
	return s
}

func ids(rs []present.Result) []string {
	out := make([]string, len(rs))
	for i := range rs {
		out[i] = rs[i].Candidate.ID()
	}
	return out
}
