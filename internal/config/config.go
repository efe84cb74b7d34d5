package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Vector store backends.
const (
	BackendRedis  = "redis"
	BackendValkey = "valkey"
	BackendQdrant = "qdrant"
)

// Reformulation cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds the catalogsearch configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Indexing  IndexingConfig  `yaml:"indexing"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// CatalogConfig holds the Postgres product catalog settings.
type CatalogConfig struct {
	DSN            string `yaml:"dsn"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// VectorConfig selects and configures the vector store.
type VectorConfig struct {
	Backend          string   `yaml:"backend"` // redis, valkey, qdrant (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	IndexName        string   `yaml:"index_name"`
	QdrantAddr       string   `yaml:"qdrant_addr"`
	Collection       string   `yaml:"collection"`
	Dimensions       int      `yaml:"dimensions"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// UsesRedis reports whether the vector store speaks the Redis protocol.
func (v VectorConfig) UsesRedis() bool {
	return v.Backend == BackendRedis || v.Backend == BackendValkey
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider      string       `yaml:"provider"`
	APIKey        string       `yaml:"api_key"`
	BaseURL       string       `yaml:"base_url"`
	Model         string       `yaml:"model"`
	MaxBatchSize  int          `yaml:"max_batch_size"`
	CacheTTLHours int          `yaml:"cache_ttl_hours"` // 0 disables the embedding cache
	Budget        BudgetConfig `yaml:"budget"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// Enabled reports whether any limit is set.
func (b BudgetConfig) Enabled() bool {
	return b.DailyTokenLimit > 0 || b.MonthlyTokenLimit > 0
}

// LLMConfig holds chat completion settings. An empty APIKey disables the model.
type LLMConfig struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	Temperature       float32 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
}

// SearchConfig holds search cascade settings.
type SearchConfig struct {
	BreakerIntervalSec int     `yaml:"breaker_interval_sec"`
	CacheTTLHours      int     `yaml:"cache_ttl_hours"`
	CacheBackend       string  `yaml:"cache_backend"` // memory, redis (default: memory)
	CacheMaxEntries    int     `yaml:"cache_max_entries"`
	DefaultTopK        int     `yaml:"default_top_k"`
	DefaultThreshold   float64 `yaml:"default_threshold"`
}

// BreakerInterval returns the breaker reset interval.
func (s SearchConfig) BreakerInterval() time.Duration {
	return time.Duration(s.BreakerIntervalSec) * time.Second
}

// CacheTTL returns the reformulation cache TTL.
func (s SearchConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLHours) * time.Hour
}

// IndexingConfig holds batch indexing settings.
type IndexingConfig struct {
	BatchSize        int  `yaml:"batch_size"`
	MaxRetries       int  `yaml:"max_retries"`
	InitialBackoffMs int  `yaml:"initial_backoff_ms"`
	MaxJitterMs      int  `yaml:"max_jitter_ms"`
	IndexOnStartup   bool `yaml:"index_on_startup"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands environment variables in data, decodes it, applies
// defaults and validates the result.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	cfg := Config{
		Catalog:  CatalogConfig{MigrateOnStart: true},
		Search:   SearchConfig{DefaultThreshold: -1},
		Indexing: IndexingConfig{IndexOnStartup: true, MaxRetries: -1},
	}
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
// Indexing.MaxRetries and Search.DefaultThreshold are defaulted only when
// negative, since 0 is a meaningful value for both.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}

	if c.Vector.Backend == "" {
		c.Vector.Backend = BackendRedis
	}
	if c.Vector.ReadinessTimeout <= 0 {
		c.Vector.ReadinessTimeout = 10
	}
	if c.Vector.KeyPrefix == "" {
		c.Vector.KeyPrefix = "catalogsearch:"
	}
	if c.Vector.IndexName == "" {
		c.Vector.IndexName = "products-idx"
	}
	if c.Vector.Collection == "" {
		c.Vector.Collection = "products"
	}
	if c.Vector.Dimensions <= 0 {
		c.Vector.Dimensions = 1536
	}
	if c.Vector.HNSWM <= 0 {
		c.Vector.HNSWM = 16
	}
	if c.Vector.HNSWEFConstruct <= 0 {
		c.Vector.HNSWEFConstruct = 200
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}

	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-3.5-turbo"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = c.Embedding.BaseURL
	}

	if c.Search.BreakerIntervalSec <= 0 {
		c.Search.BreakerIntervalSec = 60
	}
	if c.Search.CacheTTLHours <= 0 {
		c.Search.CacheTTLHours = 24
	}
	if c.Search.CacheBackend == "" {
		c.Search.CacheBackend = CacheMemory
	}
	if c.Search.CacheMaxEntries <= 0 {
		c.Search.CacheMaxEntries = 10000
	}
	if c.Search.DefaultTopK <= 0 {
		c.Search.DefaultTopK = 5
	}
	if c.Search.DefaultThreshold < 0 {
		c.Search.DefaultThreshold = 0.6
	}

	if c.Indexing.BatchSize <= 0 {
		c.Indexing.BatchSize = 20
	}
	if c.Indexing.MaxRetries < 0 {
		c.Indexing.MaxRetries = 3
	}
	if c.Indexing.InitialBackoffMs <= 0 {
		c.Indexing.InitialBackoffMs = 2000
	}
	if c.Indexing.MaxJitterMs <= 0 {
		c.Indexing.MaxJitterMs = 500
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Catalog.DSN == "" {
		return fmt.Errorf("catalog.dsn is required")
	}

	switch c.Vector.Backend {
	case BackendRedis, BackendValkey:
		if len(c.Vector.Addrs) == 0 {
			return fmt.Errorf("vector.addrs is required for backend %q", c.Vector.Backend)
		}
	case BackendQdrant:
		if c.Vector.QdrantAddr == "" {
			return fmt.Errorf("vector.qdrant_addr is required for backend %q", c.Vector.Backend)
		}
	default:
		return fmt.Errorf("vector.backend must be \"redis\", \"valkey\" or \"qdrant\", got %q", c.Vector.Backend)
	}

	if c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key is required")
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"embedding.budget.action must be \"warn\" or \"reject\", got %q",
			c.Embedding.Budget.Action,
		)
	}

	switch c.Search.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if len(c.Vector.Addrs) == 0 {
			return fmt.Errorf("search.cache_backend %q requires vector.addrs", CacheRedis)
		}
	default:
		return fmt.Errorf("search.cache_backend must be \"memory\" or \"redis\", got %q", c.Search.CacheBackend)
	}
	if c.Search.DefaultThreshold > 1 {
		return fmt.Errorf("search.default_threshold must be within [0, 1], got %v", c.Search.DefaultThreshold)
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
