package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/custodia-labs/faqbot/internal/core/domain"
)

// EnvPrefix prefixes every environment variable override (FAQBOT_SERVER_PORT, ...)
const EnvPrefix = "FAQBOT"

// Config holds all configuration for the FAQ bot
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// AuthSecret enables bearer token auth on /ask when set
	AuthSecret   string        `mapstructure:"auth_secret"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Address returns host:port for the listener
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// PathsConfig locates documents and the index
type PathsConfig struct {
	// SourceDir holds the raw files read by preprocess
	SourceDir     string `mapstructure:"source_dir"`
	// DataDir receives preprocessed markdown and is what ingest reads.
	// preprocess empties it first.
	DataDir       string `mapstructure:"data_dir"`
	IndexLocation string `mapstructure:"index_location"`
}

// IngestConfig tunes index building
type IngestConfig struct {
	Globs       []string `mapstructure:"globs"`
	BatchSize   int      `mapstructure:"batch_size"`
	Concurrency int      `mapstructure:"concurrency"`
	RateLimit   float64  `mapstructure:"rate_limit"`
	// LockTTL is the ingestion lock lease; a running build renews it every third.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// ChunkingConfig sizes chunks in bytes
type ChunkingConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LLMConfig selects the generative model
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RetrievalConfig tunes question answering
type RetrievalConfig struct {
	TopK           int           `mapstructure:"top_k"`
	MinScore       float64       `mapstructure:"min_score"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Refusal        string        `mapstructure:"refusal"`
}

// StorageConfig selects where indexes are persisted
type StorageConfig struct {
	Backend     string `mapstructure:"backend"` // file, postgres, redis, sqlite
	DatabaseURL string `mapstructure:"database_url"`
	RedisURL    string `mapstructure:"redis_url"`
	SQLitePath  string `mapstructure:"sqlite_path"`
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// Storage backends
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.auth_secret", "")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)

	v.SetDefault("paths.source_dir", "source_documents")
	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("paths.index_location", "vector_store/index.json")

	v.SetDefault("ingest.globs", []string{"*.md", "*.txt"})
	v.SetDefault("ingest.batch_size", 32)
	v.SetDefault("ingest.concurrency", 4)
	v.SetDefault("ingest.rate_limit", 0.0)
	v.SetDefault("ingest.lock_ttl", 30*time.Minute)

	v.SetDefault("chunking.size", 1000)
	v.SetDefault("chunking.overlap", 200)

	v.SetDefault("embedding.provider", string(domain.AIProviderHashing))
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.timeout", 60*time.Second)

	v.SetDefault("llm.provider", string(domain.AIProviderGemini))
	v.SetDefault("llm.model", "gemini-1.5-flash-latest")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.timeout", 60*time.Second)

	v.SetDefault("retrieval.top_k", domain.DefaultTopK)
	v.SetDefault("retrieval.min_score", 0.05)
	v.SetDefault("retrieval.request_timeout", 60*time.Second)
	v.SetDefault("retrieval.refusal", domain.DefaultRefusal)

	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.database_url", "")
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("storage.sqlite_path", "vector_store/index.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, in increasing precedence. A .env file in the working
// directory is loaded into the environment first.
// With an empty path, faqbot.yaml is looked up in . and ./config and may be absent.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("faqbot")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider SDK conventions
	_ = v.BindEnv("llm.api_key", EnvPrefix+"_LLM_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("embedding.api_key", EnvPrefix+"_EMBEDDING_API_KEY", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if strings.TrimSpace(c.Paths.IndexLocation) == "" {
		errs = append(errs, errors.New("paths.index_location is required"))
	}
	if c.Chunking.Size <= 0 {
		errs = append(errs, fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap))
	}
	if c.Ingest.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("ingest.batch_size must be positive, got %d", c.Ingest.BatchSize))
	}
	if c.Ingest.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("ingest.concurrency must be positive, got %d", c.Ingest.Concurrency))
	}
	if c.Ingest.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("ingest.rate_limit must not be negative, got %v", c.Ingest.RateLimit))
	}
	if c.Ingest.LockTTL <= 0 {
		errs = append(errs, errors.New("ingest.lock_ttl must be positive"))
	}
	if c.Retrieval.TopK < 1 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be at least 1, got %d", c.Retrieval.TopK))
	}
	if c.Retrieval.RequestTimeout <= 0 {
		errs = append(errs, errors.New("retrieval.request_timeout must be positive"))
	}
	if !domain.AIProvider(c.Embedding.Provider).IsValid() {
		errs = append(errs, fmt.Errorf("embedding.provider %q is not supported", c.Embedding.Provider))
	}
	if p := domain.AIProvider(c.LLM.Provider); !p.IsValid() || p == domain.AIProviderHashing {
		errs = append(errs, fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider))
	}

	switch c.Storage.Backend {
	case BackendFile:
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("storage.database_url is required for the postgres backend"))
		}
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("storage.redis_url is required for the redis backend"))
		}
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q is not one of file, postgres, redis, sqlite", c.Storage.Backend))
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// EmbeddingSettings converts the embedding section for the AI factory
func (c *Config) EmbeddingSettings() domain.EmbeddingSettings {
	return domain.EmbeddingSettings{
		Provider:   domain.AIProvider(c.Embedding.Provider),
		Model:      c.Embedding.Model,
		APIKey:     c.Embedding.APIKey,
		BaseURL:    c.Embedding.BaseURL,
		Dimensions: c.Embedding.Dimensions,
		Timeout:    c.Embedding.Timeout,
	}
}

// LLMSettings converts the llm section for the AI factory
func (c *Config) LLMSettings() domain.LLMSettings {
	return domain.LLMSettings{
		Provider:    domain.AIProvider(c.LLM.Provider),
		Model:       c.LLM.Model,
		APIKey:      c.LLM.APIKey,
		BaseURL:     c.LLM.BaseURL,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
		Timeout:     c.LLM.Timeout,
	}
}
