package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported drivers and providers.
const (
	PersistenceFile   = "file"
	PersistenceRedis  = "redis"
	PersistenceMemory = "memory"

	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
)

// Config holds the courtside configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Router      RouterConfig      `yaml:"router"`
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
	MaxBodyBytes    int `yaml:"max_body_bytes"`
}

// EmbeddingConfig holds encoder settings.
type EmbeddingConfig struct {
	Provider            string      `yaml:"provider"` // openai, hashing (default: hashing)
	APIKey              string      `yaml:"api_key"`
	BaseURL             string      `yaml:"base_url"`
	Model               string      `yaml:"model"`
	Dimensions          int         `yaml:"dimensions"`
	Retries             uint        `yaml:"retries"`
	RetryDelayMs        int         `yaml:"retry_delay_ms"`
	MaxBatchSize        int         `yaml:"max_batch_size"`
	DocumentInstruction string      `yaml:"document_instruction"`
	QueryInstruction    string      `yaml:"query_instruction"`
	Cache               CacheConfig `yaml:"cache"`
}

// CacheConfig holds embedding cache settings. The cache needs the redis persistence driver's connection.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"` // 0 = no expiry
}

// PersistenceConfig holds snapshot storage settings.
type PersistenceConfig struct {
	Driver           string   `yaml:"driver"` // file, redis, memory (default: file)
	DataDir          string   `yaml:"data_dir"`
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// RetrievalConfig holds search settings.
type RetrievalConfig struct {
	DefaultK        int `yaml:"default_k"`
	MaxK            int `yaml:"max_k"`
	OverfetchFactor int `yaml:"overfetch_factor"`
	MaxIngestBatch  int `yaml:"max_ingest_batch"`
}

// RouterConfig holds query routing settings. Empty lists use built-in defaults.
type RouterConfig struct {
	CatalogMode      string   `yaml:"catalog_mode"` // live, static (default: live)
	KnownModels      []string `yaml:"known_models"`
	Brands           []string `yaml:"brands"`
	PriceKeywords    []string `yaml:"price_keywords"`
	TemporalKeywords []string `yaml:"temporal_keywords"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
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

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 8 << 20
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderHashing
	}
	if c.Embedding.Dimensions <= 0 && c.Embedding.Provider == ProviderHashing {
		c.Embedding.Dimensions = 256
	}
	if c.Embedding.Retries == 0 {
		c.Embedding.Retries = 3
	}
	if c.Embedding.RetryDelayMs <= 0 {
		c.Embedding.RetryDelayMs = 200
	}
	if c.Embedding.MaxBatchSize <= 0 {
		c.Embedding.MaxBatchSize = 256
	}
	if c.Persistence.Driver == "" {
		c.Persistence.Driver = PersistenceFile
	}
	if c.Persistence.DataDir == "" {
		c.Persistence.DataDir = "data"
	}
	if c.Persistence.KeyPrefix == "" {
		c.Persistence.KeyPrefix = "courtside:"
	}
	if c.Persistence.ReadinessTimeout <= 0 {
		c.Persistence.ReadinessTimeout = 10
	}
	if c.Retrieval.DefaultK <= 0 {
		c.Retrieval.DefaultK = 5
	}
	if c.Retrieval.MaxK <= 0 {
		c.Retrieval.MaxK = 100
	}
	if c.Retrieval.OverfetchFactor <= 0 {
		c.Retrieval.OverfetchFactor = 2
	}
	if c.Retrieval.MaxIngestBatch <= 0 {
		c.Retrieval.MaxIngestBatch = 100
	}
	if c.Router.CatalogMode == "" {
		c.Router.CatalogMode = "live"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Embedding.Provider {
	case ProviderHashing:
	case ProviderOpenAI:
		if c.Embedding.Model == "" {
			return fmt.Errorf("embedding.model is required for provider %q", ProviderOpenAI)
		}
	default:
		return fmt.Errorf("embedding.provider must be %q or %q, got %q",
			ProviderOpenAI, ProviderHashing, c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}

	switch c.Persistence.Driver {
	case PersistenceFile, PersistenceMemory:
	case PersistenceRedis:
		if len(c.Persistence.Addrs) == 0 {
			return fmt.Errorf("persistence.addrs is required for driver %q", PersistenceRedis)
		}
	default:
		return fmt.Errorf("persistence.driver must be %q, %q or %q, got %q",
			PersistenceFile, PersistenceRedis, PersistenceMemory, c.Persistence.Driver)
	}
	if c.Embedding.Cache.Enabled && c.Persistence.Driver != PersistenceRedis {
		return fmt.Errorf("embedding.cache requires persistence.driver %q", PersistenceRedis)
	}

	if c.Retrieval.DefaultK > c.Retrieval.MaxK {
		return fmt.Errorf("retrieval.default_k (%d) must not exceed retrieval.max_k (%d)",
			c.Retrieval.DefaultK, c.Retrieval.MaxK)
	}

	switch c.Router.CatalogMode {
	case "live", "static":
	default:
		return fmt.Errorf("router.catalog_mode must be \"live\" or \"static\", got %q", c.Router.CatalogMode)
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
