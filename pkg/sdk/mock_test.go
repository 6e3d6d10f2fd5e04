package cwfsearch

import (
	"context"

	healthuc "github.com/whiteboxllms/clever-widget-factory-sub018/internal/usecase/health"
	searchuc "github.com/whiteboxllms/clever-widget-factory-sub018/internal/usecase/search"
)

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn         func(ctx context.Context, req searchuc.Request) (*searchuc.Response, error)
	conversationalFn func(ctx context.Context, req searchuc.Request) (*searchuc.ConversationalResponse, error)
}

func (m *mockSearchUC) Search(ctx context.Context, req searchuc.Request) (*searchuc.Response, error) {
	return m.searchFn(ctx, req)
}

func (m *mockSearchUC) SearchConversational(
	ctx context.Context, req searchuc.Request,
) (*searchuc.ConversationalResponse, error) {
	return m.conversationalFn(ctx, req)
}

// --- indexManager mock ---

type mockIndex struct {
	ensureFn func(ctx context.Context) (bool, error)
	dropFn   func(ctx context.Context) error
	readyFn  func(ctx context.Context) (bool, error)
}

func (m *mockIndex) EnsureIndex(ctx context.Context) (bool, error) { return m.ensureFn(ctx) }

func (m *mockIndex) DropIndex(ctx context.Context) error { return m.dropFn(ctx) }

func (m *mockIndex) IndexReady(ctx context.Context) (bool, error) { return m.readyFn(ctx) }

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(context.Context) healthuc.Report { return m.report }

// --- Embedder mock ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

// --- helpers ---

func testClient(searchSvc searchUseCase, index indexManager, health healthUseCase) *Client {
	return &Client{
		searchSvc: searchSvc,
		index:     index,
		healthSvc: health,
	}
}
