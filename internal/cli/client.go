package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/config"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain"
	openaiEmb "github.com/whiteboxllms/clever-widget-factory-sub018/internal/transport/openai"
	cwfsearch "github.com/whiteboxllms/clever-widget-factory-sub018/pkg/sdk"
)

// openClient connects an embedded search client configured like the service.
func openClient(ctx context.Context, cfg config.Config, verbose bool) (*cwfsearch.Client, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []cwfsearch.Option{
		cwfsearch.WithCluster(cfg.Database.Password, cfg.Database.Addrs...),
		cwfsearch.WithVectorDimensions(cfg.Embedding.Dimensions),
		cwfsearch.WithIndex(cfg.Index.Name, cfg.Index.KeyPrefix),
		cwfsearch.WithHNSW(cfg.Index.HNSWM, cfg.Index.HNSWEFConstruct),
		cwfsearch.WithEntityTypes(cfg.Search.EntityTypes...),
		cwfsearch.WithNegation(cfg.Negation.Strategy, cfg.Negation.Threshold),
		cwfsearch.WithTimeouts(
			time.Duration(cfg.Search.EmbedTimeoutMS)*time.Millisecond,
			time.Duration(cfg.Search.StoreTimeoutMS)*time.Millisecond,
		),
		cwfsearch.WithCurrencySymbol(cfg.Format.CurrencySymbol),
		cwfsearch.WithLogger(logger),
	}
	if cfg.Embedding.APIKey != "" {
		var emb domain.Embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
		})
		if cfg.Embedding.QueryInstruction != "" {
			emb = domain.NewInstructionEmbedder(emb, cfg.Embedding.QueryInstruction)
		}
		opts = append(opts, cwfsearch.WithEmbedder(&providerEmbedder{inner: emb}))
	}

	client, err := cwfsearch.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return client, nil
}

// providerEmbedder exposes a domain embedder through the SDK Embedder interface.
type providerEmbedder struct {
	inner domain.Embedder
}

func (p *providerEmbedder) Embed(ctx context.Context, text string) (cwfsearch.EmbeddingResult, error) {
	r, err := p.inner.Embed(ctx, text)
	if err != nil {
		return cwfsearch.EmbeddingResult{}, err
	}
	return cwfsearch.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (p *providerEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
