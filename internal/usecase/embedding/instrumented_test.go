package embedding

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain"
)

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return m.result, m.err
}

type healthyEmbedder struct {
	mockEmbedder
	healthErr error
}

func (m *healthyEmbedder) HealthCheck(context.Context) error { return m.healthErr }

func TestInstrumentedEmbedder_Success(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding: []float32{0.1, 0.2, 0.3},
	}}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", zap.NewNop())

	result, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(result.Embedding))
	}
}

func TestInstrumentedEmbedder_RecordsUsage(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2},
		PromptTokens: 7,
		TotalTokens:  7,
	}}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", nil)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	for i := 0; i < 2; i++ {
		if _, err := p.Embed(ctx, "hello"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if usage.TotalTokens != 14 || !usage.Used {
		t.Fatalf("expected 14 used tokens, got %+v", usage)
	}
}

func TestInstrumentedEmbedder_CacheHitMarksUsed(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", nil)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	if _, err := p.Embed(ctx, "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !usage.Used || usage.TotalTokens != 0 {
		t.Fatalf("expected used with zero tokens, got %+v", usage)
	}
}

func TestInstrumentedEmbedder_NoCollector(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}, TotalTokens: 3}}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", nil)

	if _, err := p.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInstrumentedEmbedder_Error(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEmbeddingUnavailable}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())
	_, err := p.Embed(ctx, "hello")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if usage.Used {
		t.Error("failed calls must not be recorded as usage")
	}
}

func TestInstrumentedEmbedder_HealthCheck(t *testing.T) {
	down := errors.New("provider down")
	p := NewInstrumentedEmbedder(&healthyEmbedder{healthErr: down}, "test", "test-model", nil)
	if err := p.HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Errorf("expected delegated health error, got %v", err)
	}

	plain := NewInstrumentedEmbedder(&mockEmbedder{}, "test", "test-model", nil)
	if err := plain.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected nil for embedder without health check, got %v", err)
	}
}
