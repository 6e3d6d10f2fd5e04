package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the catalog search service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Negation  NegationConfig  `yaml:"negation"`
	Format    FormatConfig    `yaml:"format"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig maps API keys to organizations.
type AuthConfig struct {
	APIKeys    map[string]string `yaml:"api_keys"` // key -> organization ID
	DefaultOrg string            `yaml:"default_org"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds vector store connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig describes the catalog vector index.
type IndexConfig struct {
	Name            string `yaml:"name"`
	KeyPrefix       string `yaml:"key_prefix"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	EnsureOnStart   bool   `yaml:"ensure_on_start"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"`
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
	CacheTTLSec      int    `yaml:"cache_ttl_sec"` // 0 = no expiry, -1 = cache disabled
}

// SearchConfig holds pipeline settings.
type SearchConfig struct {
	EmbedTimeoutMS int      `yaml:"embed_timeout_ms"`
	StoreTimeoutMS int      `yaml:"store_timeout_ms"`
	MaxQueryLength int      `yaml:"max_query_length"`
	EntityTypes    []string `yaml:"entity_types"`
}

// NegationConfig holds negation filter settings.
type NegationConfig struct {
	Strategy  string  `yaml:"strategy"`  // lexical (default) | semantic
	Threshold float64 `yaml:"threshold"` // in (0, 1); 0 selects 0.7
	PoolSize  int     `yaml:"pool_size"`
}

// FormatConfig holds result presentation settings.
type FormatConfig struct {
	CurrencySymbol    string  `yaml:"currency_symbol"`
	TopBand           float64 `yaml:"top_band"`
	GoodBand          float64 `yaml:"good_band"`
	LowStockThreshold *int    `yaml:"low_stock_threshold"` // unset: 5
	FreshDays         *int    `yaml:"fresh_days"`          // unset: 3
	ExpiringDays      *int    `yaml:"expiring_days"`       // unset: 2
	MaxSellingPoints  int     `yaml:"max_selling_points"`
	MaxComplements    int     `yaml:"max_complements"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded first.
func Load(env string) (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Index.Name == "" {
		c.Index.Name = "catalog:idx"
	}
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "catalog:"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Search.EmbedTimeoutMS <= 0 {
		c.Search.EmbedTimeoutMS = 5000
	}
	if c.Search.StoreTimeoutMS <= 0 {
		c.Search.StoreTimeoutMS = 2000
	}
	if c.Search.MaxQueryLength <= 0 {
		c.Search.MaxQueryLength = 500
	}
	if len(c.Search.EntityTypes) == 0 {
		c.Search.EntityTypes = []string{"tool", "part", "product"}
	}
	if c.Negation.Strategy == "" {
		c.Negation.Strategy = "lexical"
	}
	if c.Negation.Threshold == 0 {
		c.Negation.Threshold = 0.7
	}
	if c.Negation.PoolSize <= 0 {
		c.Negation.PoolSize = 16
	}
	if c.Format.MaxSellingPoints <= 0 {
		c.Format.MaxSellingPoints = 3
	}
	if c.Format.MaxComplements <= 0 {
		c.Format.MaxComplements = 3
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return errors.New("database.addrs is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	switch c.Negation.Strategy {
	case "lexical", "semantic":
	default:
		return fmt.Errorf("negation.strategy must be \"lexical\" or \"semantic\", got %q", c.Negation.Strategy)
	}
	if c.Negation.Threshold <= 0 || c.Negation.Threshold >= 1 {
		return fmt.Errorf("negation.threshold must be in (0, 1), got %g", c.Negation.Threshold)
	}
	for name, v := range map[string]*int{
		"format.low_stock_threshold": c.Format.LowStockThreshold,
		"format.fresh_days":          c.Format.FreshDays,
		"format.expiring_days":       c.Format.ExpiringDays,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, *v)
		}
	}
	if c.Format.TopBand != 0 && c.Format.GoodBand != 0 && c.Format.GoodBand > c.Format.TopBand {
		return fmt.Errorf("format.good_band %g exceeds format.top_band %g", c.Format.GoodBand, c.Format.TopBand)
	}
	for _, t := range c.Search.EntityTypes {
		if strings.TrimSpace(t) == "" {
			return errors.New("search.entity_types must not contain empty names")
		}
	}
	for key, org := range c.Auth.APIKeys {
		if key == "" || strings.TrimSpace(org) == "" {
			return errors.New("auth.api_keys entries need a key and an organization")
		}
	}
	if len(c.Auth.APIKeys) == 0 && strings.TrimSpace(c.Auth.DefaultOrg) == "" {
		return errors.New("auth.default_org is required when auth.api_keys is empty")
	}
	return nil
}

// loadDotEnv loads variables from path without overriding ones already set.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
