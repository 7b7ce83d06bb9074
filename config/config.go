package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Analyzer  AnalyzerConfig
	Cache     CacheConfig
	Store     StoreConfig
	RateLimit RateLimitConfig
	ESG       ESGConfig
	Client    ClientConfig
	Log       LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TaskRetention   time.Duration `mapstructure:"task_retention"`
}

// AnalyzerConfig holds the analysis service configuration
type AnalyzerConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// StoreConfig holds product store configuration
type StoreConfig struct {
	Type string `mapstructure:"type"` // "memory", "postgres" or "sqlite"
	DSN  string `mapstructure:"dsn"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP    int `mapstructure:"per_ip"`   // requests per minute
	Analyzer int `mapstructure:"analyzer"` // requests per hour
}

// ESGConfig locates the brand dataset. An empty path uses the built-in dataset.
type ESGConfig struct {
	Path string `mapstructure:"path"`
}

// ClientConfig holds the client host configuration
type ClientConfig struct {
	BackendURL        string        `mapstructure:"backend_url"`
	SubmitTimeout     time.Duration `mapstructure:"submit_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	PollAttempts      int           `mapstructure:"poll_attempts"`
	UseStream         bool          `mapstructure:"use_stream"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	InitialDelay      time.Duration `mapstructure:"initial_delay"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	URLPollInterval   time.Duration `mapstructure:"url_poll_interval"`
	TabCacheTTL       time.Duration `mapstructure:"tab_cache_ttl"`
	SettingsPath      string        `mapstructure:"settings_path"`
	UserAgent         string        `mapstructure:"user_agent"`
	FetchTimeout      time.Duration `mapstructure:"fetch_timeout"`
	RespectRobots     bool          `mapstructure:"respect_robots"`
	Headless          bool          `mapstructure:"headless"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Load loads the server configuration from environment variables and config files
func Load() (*Config, error) {
	config, err := read()
	if err != nil {
		return nil, err
	}

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadClient loads the client host configuration. Server-only settings such as
// the analyzer key are not required.
func LoadClient() (*Config, error) {
	config, err := read()
	if err != nil {
		return nil, err
	}

	if err := validateClient(&config.Client); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadEnvFile loads a .env file from the working directory into the process
// environment. Variables already set are not overridden; a missing file is not an error.
func LoadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("error loading .env file: %w", err)
	}
	return nil
}

func read() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ecoshop/")

	// Environment variable settings, e.g. ECOSHOP_CACHE_REDIS_URL for cache.redis_url
	v.SetEnvPrefix("ECOSHOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
// Every key needs a default so that AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*", "http://localhost:*"})
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.task_retention", "1h")

	// Analyzer defaults
	v.SetDefault("analyzer.api_key", "")
	v.SetDefault("analyzer.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("analyzer.model", "llama3-70b-8192")
	v.SetDefault("analyzer.temperature", 0.2)
	v.SetDefault("analyzer.max_tokens", 1024)
	v.SetDefault("analyzer.timeout", "60s")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "720h") // 30 days

	// Store defaults
	v.SetDefault("store.type", "sqlite")
	v.SetDefault("store.dsn", "ecoshop.db")

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)
	v.SetDefault("ratelimit.analyzer", 1000)

	v.SetDefault("esg.path", "")

	// Client defaults
	v.SetDefault("client.backend_url", "http://localhost:5000")
	v.SetDefault("client.submit_timeout", "8s")
	v.SetDefault("client.poll_interval", "2s")
	v.SetDefault("client.poll_attempts", 30)
	v.SetDefault("client.use_stream", false)
	v.SetDefault("client.requests_per_second", 5)
	v.SetDefault("client.initial_delay", "1500ms")
	v.SetDefault("client.retry_delay", "4s")
	v.SetDefault("client.url_poll_interval", "1s")
	v.SetDefault("client.tab_cache_ttl", "30m")
	v.SetDefault("client.settings_path", "~/.ecoshop/settings.yaml")
	v.SetDefault("client.user_agent", "EcoShop/1.0")
	v.SetDefault("client.fetch_timeout", "20s")
	v.SetDefault("client.respect_robots", true)
	v.SetDefault("client.headless", true)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// validate validates the server configuration
func validate(config *Config) error {
	if config.Analyzer.APIKey == "" {
		return fmt.Errorf("analyzer API key is required (set ECOSHOP_ANALYZER_API_KEY)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	switch config.Store.Type {
	case "memory":
	case "postgres", "sqlite":
		if config.Store.DSN == "" {
			return fmt.Errorf("store DSN is required when store type is '%s'", config.Store.Type)
		}
	default:
		return fmt.Errorf("store type must be 'memory', 'postgres' or 'sqlite', got: %s", config.Store.Type)
	}

	if config.RateLimit.PerIP <= 0 || config.RateLimit.Analyzer <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	return nil
}

// validateClient validates the client host configuration
func validateClient(client *ClientConfig) error {
	if client.BackendURL == "" {
		return fmt.Errorf("backend URL is required (set ECOSHOP_CLIENT_BACKEND_URL)")
	}

	if client.SubmitTimeout <= 0 || client.PollInterval <= 0 {
		return fmt.Errorf("submit timeout and poll interval must be positive")
	}

	if client.PollAttempts < 1 {
		return fmt.Errorf("poll attempts must be at least 1, got: %d", client.PollAttempts)
	}

	if client.InitialDelay < 0 || client.RetryDelay < 0 || client.URLPollInterval <= 0 {
		return fmt.Errorf("extraction delays must not be negative and the URL poll interval must be positive")
	}

	return nil
}
