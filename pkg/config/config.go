package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for kindergarten-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (query cache backend)
	Redis RedisConfig `yaml:"redis"`

	// AI provider endpoints
	AI AIConfig `yaml:"ai"`

	// Query cache behavior
	Cache CacheConfig `yaml:"cache"`

	// SQL execution limits
	Executor ExecutorConfig `yaml:"executor"`

	// Query routing thresholds
	Router RouterConfig `yaml:"router"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development without auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"kindergarten"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"kindergarten_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis configuration for the query cache.
// An empty host disables Redis; the cache degrades to the in-process layer.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// AIConfig holds model provider endpoints and credentials.
type AIConfig struct {
	// OpenAIBaseURL points at any OpenAI-compatible endpoint.
	OpenAIBaseURL string `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	OpenAIAPIKey  string `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML

	AnthropicBaseURL string `yaml:"anthropic_base_url" env:"ANTHROPIC_BASE_URL" env-default:""`
	AnthropicAPIKey  string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML

	// EmbeddingModel is used by the semantic tier.
	EmbeddingModel string `yaml:"embedding_model" env:"AI_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
}

// CacheConfig holds query cache behavior settings.
type CacheConfig struct {
	// TTL is how long a cached query result stays valid.
	TTL time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"5m"`
	// LocalSize bounds the in-process cache layer (entries).
	LocalSize int `yaml:"local_size" env:"CACHE_LOCAL_SIZE" env-default:"512"`
}

// ExecutorConfig holds limits applied to generated SQL execution.
type ExecutorConfig struct {
	// MaxRows truncates result sets beyond this count.
	MaxRows int `yaml:"max_rows" env:"EXECUTOR_MAX_ROWS" env-default:"1000"`
	// Timeout bounds a single statement's execution.
	Timeout time.Duration `yaml:"timeout" env:"EXECUTOR_TIMEOUT" env-default:"30s"`
}

// RouterConfig holds query routing thresholds.
type RouterConfig struct {
	// MaxQueryLength rejects raw query text longer than this.
	MaxQueryLength int `yaml:"max_query_length" env:"ROUTER_MAX_QUERY_LENGTH" env-default:"1000"`
	// ComplexityThreshold forces the complex tier when the deterministic
	// complexity score meets or exceeds it.
	ComplexityThreshold int `yaml:"complexity_threshold" env:"ROUTER_COMPLEXITY_THRESHOLD" env-default:"6"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Environment variables override YAML values. Secrets (PGPASSWORD, API keys)
// must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	// Inside a container, localhost backends live on the host.
	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)
	cfg.Redis.Host = ResolveHostForDocker(cfg.Redis.Host)

	return cfg, nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, "=")
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
