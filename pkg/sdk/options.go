package cwfsearch

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	embedder Embedder

	vectorDimensions int
	indexName        string
	keyPrefix        string
	hnswM            int
	hnswEFConstruct  int
	entityTypes      []string

	negationStrategy  string
	negationThreshold float64

	embedTimeout   time.Duration
	storeTimeout   time.Duration
	currencySymbol string

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithRedis configures the client to connect to a Redis or Valkey instance
// with the search module loaded.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithCluster configures several seed addresses.
func WithCluster(password string, addrs ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = addrs
		c.password = password
	})
}

// WithEmbedder sets the query embedding provider. Without one every search
// fails with ErrEmbeddingUnavailable.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithVectorDimensions sets the catalog vector dimension.
// Defaults to 1536 (text-embedding-3-small).
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithIndex overrides the index name and the hash key prefix it covers.
func WithIndex(name, keyPrefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexName = name
		c.keyPrefix = keyPrefix
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
// Used only by EnsureIndex.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithEntityTypes replaces the set of entity types a search may request.
func WithEntityTypes(types ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.entityTypes = types
	})
}

// WithNegation selects the negation strategy ("lexical" or "semantic") and
// the similarity above which a candidate is excluded. The threshold must be
// in (0, 1); 0 keeps the default of 0.7.
func WithNegation(strategy string, threshold float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.negationStrategy = strategy
		c.negationThreshold = threshold
	})
}

// WithTimeouts bounds the embedding call and the store query separately.
func WithTimeouts(embed, store time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedTimeout = embed
		c.storeTimeout = store
	})
}

// WithCurrencySymbol sets the symbol used in price selling points.
func WithCurrencySymbol(symbol string) Option {
	return optionFunc(func(c *clientConfig) {
		c.currencySymbol = symbol
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
