package cwfsearch

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain"
)

func TestNew_NoAddress(t *testing.T) {
	_, err := New(context.Background())
	if err == nil {
		t.Fatal("expected error when no address provided")
	}
}

func TestNew_InvalidDimensions(t *testing.T) {
	_, err := New(context.Background(), WithRedis("localhost:6379", ""), WithVectorDimensions(0))
	if err == nil {
		t.Fatal("expected error for zero dimensions")
	}
}

func TestWireClient_UnknownNegationStrategy(t *testing.T) {
	cfg := &clientConfig{vectorDimensions: 4, negationStrategy: "fuzzy"}
	if _, err := wireClient(nil, cfg, nil); err == nil {
		t.Fatal("expected error for unknown negation strategy")
	}
}

func TestWireClient_SemanticNeedsNoEmbedderAtWiring(t *testing.T) {
	// The noop embedder stands in until WithEmbedder is given.
	cfg := &clientConfig{vectorDimensions: 4, negationStrategy: "semantic"}
	c, err := wireClient(nil, cfg, nil)
	if err != nil {
		t.Fatalf("wireClient: %v", err)
	}
	c.release()
}

func TestNoopEmbedder(t *testing.T) {
	noop := noopEmbedder{}
	_, err := noop.Embed(context.Background(), "test")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
}

func TestEmbedderAdapter(t *testing.T) {
	called := false
	mock := &mockEmbedder{
		fn: func(_ context.Context, text string) (EmbeddingResult, error) {
			called = true
			return EmbeddingResult{
				Embedding:    []float32{1, 2, 3},
				PromptTokens: 5,
				TotalTokens:  10,
			}, nil
		},
	}

	adapter := &embedderAdapter{inner: mock}
	result, err := adapter.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("inner embedder was not called")
	}
	if len(result.Embedding) != 3 {
		t.Errorf("embedding len = %d, want 3", len(result.Embedding))
	}
	if result.TotalTokens != 10 {
		t.Errorf("total tokens = %d, want 10", result.TotalTokens)
	}
}

func TestEmbedderAdapter_Error(t *testing.T) {
	mock := &mockEmbedder{
		fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
			return EmbeddingResult{}, errors.New("provider down")
		},
	}

	adapter := &embedderAdapter{inner: mock}
	_, err := adapter.Embed(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error from adapter")
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithRedis("localhost:6379", "secret").apply(cfg)
	if len(cfg.addrs) != 1 || cfg.addrs[0] != "localhost:6379" {
		t.Errorf("addrs = %v, want [localhost:6379]", cfg.addrs)
	}
	if cfg.password != "secret" {
		t.Errorf("password = %q, want secret", cfg.password)
	}

	WithCluster("pass", "a:6379", "b:6379").apply(cfg)
	if len(cfg.addrs) != 2 || cfg.password != "pass" {
		t.Errorf("cluster = (%v, %q)", cfg.addrs, cfg.password)
	}

	WithVectorDimensions(768).apply(cfg)
	if cfg.vectorDimensions != 768 {
		t.Errorf("vectorDimensions = %d, want 768", cfg.vectorDimensions)
	}

	WithHNSW(16, 200).apply(cfg)
	if cfg.hnswM != 16 || cfg.hnswEFConstruct != 200 {
		t.Errorf("hnsw = (%d, %d), want (16, 200)", cfg.hnswM, cfg.hnswEFConstruct)
	}

	WithIndex("shop:idx", "shop:").apply(cfg)
	if cfg.indexName != "shop:idx" || cfg.keyPrefix != "shop:" {
		t.Errorf("index = (%q, %q)", cfg.indexName, cfg.keyPrefix)
	}

	WithNegation("semantic", 0.8).apply(cfg)
	if cfg.negationStrategy != "semantic" || cfg.negationThreshold != 0.8 {
		t.Errorf("negation = (%q, %v)", cfg.negationStrategy, cfg.negationThreshold)
	}

	WithTimeouts(time.Second, 500*time.Millisecond).apply(cfg)
	if cfg.embedTimeout != time.Second || cfg.storeTimeout != 500*time.Millisecond {
		t.Errorf("timeouts = (%v, %v)", cfg.embedTimeout, cfg.storeTimeout)
	}

	WithEntityTypes("tool", "product").apply(cfg)
	if len(cfg.entityTypes) != 2 {
		t.Errorf("entityTypes = %v", cfg.entityTypes)
	}

	WithCurrencySymbol("$").apply(cfg)
	if cfg.currencySymbol != "$" {
		t.Errorf("currencySymbol = %q", cfg.currencySymbol)
	}

	logger := slog.Default()
	WithLogger(logger).apply(cfg)
	if cfg.logger != logger {
		t.Error("expected logger to be set")
	}

	reg := prometheus.NewRegistry()
	WithPrometheus(reg).apply(cfg)
	if cfg.metricsReg != reg {
		t.Error("expected metricsReg to be set")
	}
}

func TestClient_Close_NilStore(t *testing.T) {
	c := &Client{store: nil}
	c.Close()
}

func TestWithEmbedder(t *testing.T) {
	mock := &mockEmbedder{
		fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
			return EmbeddingResult{}, nil
		},
	}
	cfg := &clientConfig{}
	WithEmbedder(mock).apply(cfg)
	if cfg.embedder == nil {
		t.Error("expected non-nil embedder")
	}
}

func TestObserver_NilSafe(t *testing.T) {
	var obs *observer
	obs.observe("test", time.Now(), nil)
	obs.observe("test", time.Now(), errors.New("err"))
	obs.observeResults(3)
}

func TestObserver_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("search", time.Now().Add(-10*time.Millisecond), nil)
	obs.observe("search", time.Now(), domain.ErrStoreUnavailable)
	obs.observeResults(4)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := map[string]int{}
	for _, f := range families {
		found[f.GetName()] = len(f.GetMetric())
	}
	if found["cwf_sdk_operations_total"] != 2 {
		t.Errorf("expected ok and StoreUnavailable samples, got %d", found["cwf_sdk_operations_total"])
	}
	if found["cwf_sdk_search_results"] != 1 {
		t.Errorf("expected search_results histogram, got %v", found)
	}
}

func TestObserver_ReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("first newObserver: %v", err)
	}
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("second newObserver must reuse collectors: %v", err)
	}
}

func TestObserver_WithLogger(t *testing.T) {
	obs, err := newObserver(slog.Default(), nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	obs.observe("test.op", time.Now(), nil)
	obs.observe("test.op", time.Now(), errors.New("test error"))
}
