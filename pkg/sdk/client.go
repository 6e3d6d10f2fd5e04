package cwfsearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/db"
	dbRedis "github.com/whiteboxllms/clever-widget-factory-sub018/internal/db/redis"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain"
	domcat "github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/catalog"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/present"
	catalogrepo "github.com/whiteboxllms/clever-widget-factory-sub018/internal/repository/catalog"
	healthuc "github.com/whiteboxllms/clever-widget-factory-sub018/internal/usecase/health"
	searchuc "github.com/whiteboxllms/clever-widget-factory-sub018/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultDimensions       = 1536
)

// searchUseCase is the internal interface for the search pipeline.
type searchUseCase interface {
	Search(ctx context.Context, req searchuc.Request) (*searchuc.Response, error)
	SearchConversational(ctx context.Context, req searchuc.Request) (*searchuc.ConversationalResponse, error)
}

// Client is the embedded catalog search entry point.
type Client struct {
	store     db.Store
	searchSvc searchUseCase
	index     indexManager
	healthSvc healthUseCase
	release   func()
	obs       *observer
}

// New creates a Client and connects to the database.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		vectorDimensions: defaultDimensions,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("cwfsearch: database address required (use WithRedis)")
	}
	if cfg.vectorDimensions <= 0 {
		return nil, fmt.Errorf("cwfsearch: vector dimensions must be positive, got %d", cfg.vectorDimensions)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("cwfsearch: create store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("cwfsearch: database not ready: %w", err)
	}

	c, err := wireClient(store, cfg, obs)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	repo := catalogrepo.New(store, catalogrepo.Config{
		IndexName:  cfg.indexName,
		KeyPrefix:  cfg.keyPrefix,
		Dimensions: cfg.vectorDimensions,
		HNSW: catalogrepo.HNSWConfig{
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		},
	})

	// Embedder: noop if not set (ParseQuery still works, Search fails)
	var emb domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		emb = &embedderAdapter{inner: cfg.embedder}
	}

	strategy, err := searchuc.ParseStrategy(cfg.negationStrategy)
	if err != nil {
		return nil, fmt.Errorf("cwfsearch: %w", err)
	}
	var negationEmbedder searchuc.Embedder
	if strategy == searchuc.StrategySemantic {
		negationEmbedder = emb
	}
	negator, err := searchuc.NewNegationFilter(searchuc.NegationConfig{
		Strategy:     strategy,
		Threshold:    cfg.negationThreshold,
		EmbedTimeout: cfg.embedTimeout,
	}, negationEmbedder, nil)
	if err != nil {
		return nil, fmt.Errorf("cwfsearch: %w", err)
	}

	known := make([]domcat.EntityType, 0, len(cfg.entityTypes))
	for _, t := range cfg.entityTypes {
		known = append(known, domcat.EntityType(t))
	}

	fmtCfg := present.DefaultConfig()
	if cfg.currencySymbol != "" {
		fmtCfg.CurrencySymbol = cfg.currencySymbol
	}
	formatter := present.NewFormatter(fmtCfg, nil)
	searchSvc := searchuc.New(searchuc.Config{
		EmbedTimeout: cfg.embedTimeout,
		StoreTimeout: cfg.storeTimeout,
		KnownTypes:   known,
	}, emb, repo, negator, formatter)

	var embCheck healthuc.EmbeddingChecker
	if hc, ok := cfg.embedder.(domain.HealthChecker); ok {
		embCheck = hc
	}

	return &Client{
		store:     store,
		searchSvc: searchSvc,
		index:     repo,
		healthSvc: healthuc.New(store, repo, embCheck),
		release:   negator.Release,
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.release != nil {
		c.release()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopEmbedder returns an error on Embed call (used when no embedder configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, fmt.Errorf(
		"%w: embedder not configured (use WithEmbedder)", domain.ErrEmbeddingUnavailable,
	)
}
