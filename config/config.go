package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the agent system.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Semantic  SemanticConfig  `mapstructure:"semantic"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Security  SecurityConfig  `mapstructure:"security"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address      string   `mapstructure:"address"`
	AllowOrigins []string `mapstructure:"allow_origins"`
	Debug        bool     `mapstructure:"debug"`
}

// LLMConfig configures the completion backend (OpenAI-compatible API).
type LLMConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Model          string        `mapstructure:"model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	Temperature    float64       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model is required")
	}
	if l.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be greater than zero")
	}
	return nil
}

// SemanticConfig configures the embeddings backend.
type SemanticConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SourcesConfig groups the content source adapters.
type SourcesConfig struct {
	Reddit  RedditConfig  `mapstructure:"reddit"`
	Twitter TwitterConfig `mapstructure:"twitter"`
}

// RedditConfig configures the forum-style source.
type RedditConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	MaxResults int           `mapstructure:"max_results"`
	MinScore   int           `mapstructure:"min_score"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// TwitterConfig configures the microblog source. SerperAPIKey enables the
// web-search baseline; ScraperBinary enables the subprocess secondary.
type TwitterConfig struct {
	SerperAPIKey   string        `mapstructure:"serper_api_key"`
	ScraperBinary  string        `mapstructure:"scraper_binary"`
	MaxResults     int           `mapstructure:"max_results"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ScraperTimeout time.Duration `mapstructure:"scraper_timeout"`
}

// CacheConfig sizes the three cache classes and the optional redis backend
// for the query cache.
type CacheConfig struct {
	QueryMaxSize  int           `mapstructure:"query_max_size"`
	QueryTTL      time.Duration `mapstructure:"query_ttl"`
	PostMaxSize   int           `mapstructure:"post_max_size"`
	PostTTL       time.Duration `mapstructure:"post_ttl"`
	AIMaxSize     int           `mapstructure:"ai_max_size"`
	AITTL         time.Duration `mapstructure:"ai_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

// RedisConfig enables the shared query-result cache when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c CacheConfig) Validate() error {
	if c.QueryMaxSize <= 0 || c.PostMaxSize <= 0 || c.AIMaxSize <= 0 {
		return fmt.Errorf("cache sizes must be greater than zero")
	}
	if c.QueryTTL <= 0 || c.PostTTL <= 0 || c.AITTL <= 0 {
		return fmt.Errorf("cache TTLs must be greater than zero")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("cache.sweep_interval must be greater than zero")
	}
	return nil
}

// EndpointLimit is a sliding-window rate limit for one endpoint.
type EndpointLimit struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// SecurityConfig declares the request-boundary defaults.
type SecurityConfig struct {
	DefaultLimit     EndpointLimit            `mapstructure:"default_limit"`
	EndpointLimits   map[string]EndpointLimit `mapstructure:"endpoint_limits"`
	FailureThreshold uint32                   `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration            `mapstructure:"recovery_timeout"`
}

func (s SecurityConfig) Validate() error {
	if s.DefaultLimit.MaxRequests <= 0 || s.DefaultLimit.Window <= 0 {
		return fmt.Errorf("security.default_limit must set max_requests and window")
	}
	if s.FailureThreshold == 0 {
		return fmt.Errorf("security.failure_threshold must be greater than zero")
	}
	if s.RecoveryTimeout <= 0 {
		return fmt.Errorf("security.recovery_timeout must be greater than zero")
	}
	return nil
}

// TelemetryConfig contains monitoring settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from file, with SOCIALECHO_* env overrides.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("server.address", ":8000")
	viper.SetDefault("server.allow_origins", []string{"*"})
	viper.SetDefault("llm.base_url", "https://api.fireworks.ai/inference/v1")
	viper.SetDefault("llm.model", "accounts/fireworks/models/llama-v3p1-70b-instruct")
	viper.SetDefault("llm.embedding_model", "nomic-ai/nomic-embed-text-v1.5")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.max_tokens", 500)
	viper.SetDefault("llm.timeout", "30s")
	viper.SetDefault("semantic.base_url", "https://api.jina.ai/v1")
	viper.SetDefault("semantic.model", "jina-embeddings-v3")
	viper.SetDefault("semantic.timeout", "30s")
	viper.SetDefault("sources.reddit.base_url", "https://api.pushshift.io")
	viper.SetDefault("sources.reddit.max_results", 10)
	viper.SetDefault("sources.reddit.min_score", 1)
	viper.SetDefault("sources.reddit.timeout", "30s")
	viper.SetDefault("sources.twitter.scraper_binary", "snscrape")
	viper.SetDefault("sources.twitter.max_results", 10)
	viper.SetDefault("sources.twitter.timeout", "30s")
	viper.SetDefault("sources.twitter.scraper_timeout", "60s")
	viper.SetDefault("cache.query_max_size", 500)
	viper.SetDefault("cache.query_ttl", "5m")
	viper.SetDefault("cache.post_max_size", 1000)
	viper.SetDefault("cache.post_ttl", "10m")
	viper.SetDefault("cache.ai_max_size", 200)
	viper.SetDefault("cache.ai_ttl", "30m")
	viper.SetDefault("cache.sweep_interval", "1m")
	viper.SetDefault("security.default_limit.max_requests", 60)
	viper.SetDefault("security.default_limit.window", "1m")
	viper.SetDefault("security.endpoint_limits.assist.max_requests", 30)
	viper.SetDefault("security.endpoint_limits.assist.window", "1m")
	viper.SetDefault("security.endpoint_limits.health.max_requests", 120)
	viper.SetDefault("security.endpoint_limits.health.window", "1m")
	viper.SetDefault("security.endpoint_limits.info.max_requests", 60)
	viper.SetDefault("security.endpoint_limits.info.window", "1m")
	viper.SetDefault("security.endpoint_limits.stats.max_requests", 10)
	viper.SetDefault("security.endpoint_limits.stats.window", "1m")
	viper.SetDefault("security.endpoint_limits.security.max_requests", 10)
	viper.SetDefault("security.endpoint_limits.security.window", "1m")
	viper.SetDefault("security.failure_threshold", 5)
	viper.SetDefault("security.recovery_timeout", "60s")
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SOCIALECHO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Missing config file is fine: defaults plus env cover every key.
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := cfg.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := cfg.Cache.Validate(); err != nil {
		panic(err)
	}
	if err := cfg.Security.Validate(); err != nil {
		panic(err)
	}
	return &cfg
}
