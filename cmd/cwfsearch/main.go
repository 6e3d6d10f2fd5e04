package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/config"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/db"
	dbRedis "github.com/whiteboxllms/clever-widget-factory-sub018/internal/db/redis"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain"
	domcat "github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/catalog"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/domain/search/present"
	logpkg "github.com/whiteboxllms/clever-widget-factory-sub018/internal/logger"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/metrics"
	catalogrepo "github.com/whiteboxllms/clever-widget-factory-sub018/internal/repository/catalog"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/repository/embcache"
	chiTransport "github.com/whiteboxllms/clever-widget-factory-sub018/internal/transport/chi"
	openaiEmb "github.com/whiteboxllms/clever-widget-factory-sub018/internal/transport/openai"
	embeddinguc "github.com/whiteboxllms/clever-widget-factory-sub018/internal/usecase/embedding"
	healthuc "github.com/whiteboxllms/clever-widget-factory-sub018/internal/usecase/health"
	searchuc "github.com/whiteboxllms/clever-widget-factory-sub018/internal/usecase/search"
	"github.com/whiteboxllms/clever-widget-factory-sub018/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting catalog search API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("index", cfg.Index.Name),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	// Wait for database to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	queryEmbedder := buildEmbedder(cfg.Embedding, store, logger)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	catalogRepo := catalogrepo.New(store, catalogrepo.Config{
		IndexName:  cfg.Index.Name,
		KeyPrefix:  cfg.Index.KeyPrefix,
		Dimensions: cfg.Embedding.Dimensions,
		HNSW: catalogrepo.HNSWConfig{
			M:           cfg.Index.HNSWM,
			EFConstruct: cfg.Index.HNSWEFConstruct,
		},
	})
	if cfg.Index.EnsureOnStart {
		created, err := catalogRepo.EnsureIndex(ctx)
		if err != nil {
			logger.Fatal("Failed to ensure catalog index", zap.Error(err))
		}
		logger.Info("Catalog index ready", zap.String("index", cfg.Index.Name), zap.Bool("created", created))
	}

	negator, err := buildNegationFilter(cfg.Negation, cfg.Search, queryEmbedder, logger)
	if err != nil {
		logger.Fatal("Failed to create negation filter", zap.Error(err))
	}
	defer negator.Release()

	formatter := present.NewFormatter(formatterConfig(cfg.Format), nil)

	knownTypes := make([]domcat.EntityType, 0, len(cfg.Search.EntityTypes))
	for _, t := range cfg.Search.EntityTypes {
		knownTypes = append(knownTypes, domcat.EntityType(t))
	}

	searchSvc := searchuc.New(searchuc.Config{
		EmbedTimeout:   time.Duration(cfg.Search.EmbedTimeoutMS) * time.Millisecond,
		StoreTimeout:   time.Duration(cfg.Search.StoreTimeoutMS) * time.Millisecond,
		MaxQueryLength: cfg.Search.MaxQueryLength,
		KnownTypes:     knownTypes,
	}, queryEmbedder, catalogRepo, negator, formatter)

	healthSvc := healthuc.New(store, catalogRepo, newEmbeddingHealthChecker(queryEmbedder))

	server := chiTransport.NewServer(searchSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys, cfg.Auth.DefaultOrg))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction
func buildEmbedder(embCfg config.EmbeddingConfig, store db.KVStore, logger *zap.Logger) domain.Embedder {
	// Base provider (with transport metrics built-in)
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     embCfg.APIKey,
		BaseURL:    embCfg.BaseURL,
		Model:      embCfg.Model,
		Dimensions: embCfg.Dimensions,
		Provider:   embCfg.Provider,
		Logger:     logger,
	})

	// Cached, keyed by model and dimension
	var embedder domain.Embedder = base
	if embCfg.CacheTTLSec >= 0 {
		embedder = embcache.New(base, store, embcache.Options{
			Model:      embCfg.Model,
			Dimensions: embCfg.Dimensions,
			TTL:        time.Duration(embCfg.CacheTTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	// Instrumented (usage + metrics)
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, embCfg.Provider, embCfg.Model, logger)

	// Instruction prefix (outermost, cache key includes instruction)
	if embCfg.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, embCfg.QueryInstruction)
	}

	return embedder
}

// formatterConfig overlays the configured presentation settings on the
// defaults. Unset thresholds keep their default; an explicit 0 is kept.
func formatterConfig(f config.FormatConfig) present.Config {
	out := present.DefaultConfig()
	out.CurrencySymbol = f.CurrencySymbol
	out.TopBand = f.TopBand
	out.GoodBand = f.GoodBand
	out.MaxSellingPoints = f.MaxSellingPoints
	out.MaxComplements = f.MaxComplements
	if f.LowStockThreshold != nil {
		out.LowStockThreshold = *f.LowStockThreshold
	}
	if f.FreshDays != nil {
		out.FreshDays = *f.FreshDays
	}
	if f.ExpiringDays != nil {
		out.ExpiringDays = *f.ExpiringDays
	}
	return out
}

func buildNegationFilter(
	negCfg config.NegationConfig, searchCfg config.SearchConfig, embedder domain.Embedder, logger *zap.Logger,
) (*searchuc.NegationFilter, error) {
	strategy, err := searchuc.ParseStrategy(negCfg.Strategy)
	if err != nil {
		return nil, err
	}
	var negationEmbedder searchuc.Embedder
	if strategy == searchuc.StrategySemantic {
		negationEmbedder = embedder
	}
	return searchuc.NewNegationFilter(searchuc.NegationConfig{
		Strategy:     strategy,
		Threshold:    negCfg.Threshold,
		PoolSize:     negCfg.PoolSize,
		EmbedTimeout: time.Duration(searchCfg.EmbedTimeoutMS) * time.Millisecond,
	}, negationEmbedder, logger)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Error: "internal error",
						Code:  domain.CodeInternal,
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			}
			if tokens := ww.Header().Get("X-Embedding-Tokens"); tokens != "" {
				fields = append(fields, zap.String("embedding_tokens", tokens))
			}

			// Canonical log line, one per request
			reqLogger.Info("http_request", fields...)
		})
	}
}
