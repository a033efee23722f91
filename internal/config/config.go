package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/praxislearn/curricula/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Server    models.ServerConfig            `yaml:"server"`
	Providers map[string]models.ProviderConfig `yaml:"providers"`
	Synthesis models.SynthesisConfig         `yaml:"synthesis"`
	Cache     models.CacheConfig             `yaml:"cache"`
	Retrieval models.RetrievalConfig         `yaml:"retrieval"`
	RedisURL  string                         `yaml:"redis_url"` // Circuit breaker state and redis cache backend
	Database  *models.DatabaseConfig         `yaml:"database,omitempty"`

	// Classifier holds optional extra routing rules, keyed by content type,
	// each value a regex tried before the built-in table.
	Classifier map[string]string `yaml:"classifier,omitempty"`
}

// LoadFromFile loads configuration from a YAML file with environment variable substitution
func LoadFromFile(configPath string) (*Config, error) {
	// Validate and clean the file path to prevent directory traversal
	cleanPath := filepath.Clean(configPath)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	return Parse(data)
}

// Parse parses YAML config bytes after substituting environment variables.
func Parse(data []byte) (*Config, error) {
	content := substituteEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Normalize provider map keys to lowercase for case-insensitive lookups
	if config.Providers != nil {
		normalized := make(map[string]models.ProviderConfig, len(config.Providers))
		for key, value := range config.Providers {
			normalized[strings.ToLower(key)] = value
		}
		config.Providers = normalized
	}

	config.applyDefaults()
	return &config, nil
}

// LoadEnvFiles loads environment variables from .env files in order of precedence
// Loads files in the order provided (first has highest priority)
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fmt.Printf("Loaded environment variables from %s\n", envFile)
			}
		}
	}
}

// New creates a new Config instance by loading from the specified config file path
func New(configPath string) (*Config, error) {
	return LoadFromFile(configPath)
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Synthesis.TimeoutMs <= 0 {
		c.Synthesis.TimeoutMs = 60000
	}
	if c.Synthesis.QueueDelayMs <= 0 {
		c.Synthesis.QueueDelayMs = 500
	}
	if c.Synthesis.HistoryWindow <= 0 {
		c.Synthesis.HistoryWindow = 4
	}
	if c.Synthesis.TokenBudget <= 0 {
		c.Synthesis.TokenBudget = 6000
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 3600
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("no providers configured")
	}

	enabled := 0
	for name, p := range c.Providers {
		switch p.Kind {
		case models.ProviderKindOpenAI, models.ProviderKindGemini, models.ProviderKindAnthropic:
		default:
			return fmt.Errorf("provider %s: unknown kind %q", name, p.Kind)
		}
		if p.Model == "" {
			return fmt.Errorf("provider %s: model is required", name)
		}
		if p.Kind == models.ProviderKindOpenAI && p.BaseURL == "" {
			return fmt.Errorf("provider %s: base_url is required for openai-compatible providers", name)
		}
		if p.APIKey != "" {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("no provider has an API key configured")
	}

	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case models.CacheBackendMemory:
			if c.Cache.Capacity <= 0 {
				return fmt.Errorf("cache: capacity is required for the memory backend")
			}
		case models.CacheBackendRedis:
			if c.Cache.RedisURL == "" && c.RedisURL == "" {
				return fmt.Errorf("cache: redis_url is required for the redis backend")
			}
		default:
			return fmt.Errorf("cache: unsupported backend %q (supported: redis, memory)", c.Cache.Backend)
		}
		if c.Cache.Semantic && c.Cache.OpenAIAPIKey == "" {
			return fmt.Errorf("cache: openai_api_key is required when the semantic layer is enabled")
		}
	}

	if c.Retrieval.Enabled {
		if c.Retrieval.BaseURL == "" {
			return fmt.Errorf("retrieval: base_url is required")
		}
		if c.Retrieval.APIKey == "" {
			return fmt.Errorf("retrieval: api_key is required")
		}
	}

	return nil
}

// GetProviderConfig returns the configuration for a specific provider
func (c *Config) GetProviderConfig(provider string) (models.ProviderConfig, bool) {
	cfg, exists := c.Providers[strings.ToLower(provider)]
	return cfg, exists
}

// GetProviderAPIKey returns the API key for a specific provider
func (c *Config) GetProviderAPIKey(provider string) string {
	if cfg, exists := c.GetProviderConfig(provider); exists {
		return cfg.APIKey
	}
	return ""
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// CacheRedisURL resolves the redis URL for the cache backend, falling back to
// the top-level redis_url.
func (c *Config) CacheRedisURL() string {
	if c.Cache.RedisURL != "" {
		return c.Cache.RedisURL
	}
	return c.RedisURL
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with environment variables
func substituteEnvVars(content string) string {
	// Pattern matches ${VAR_NAME} or ${VAR_NAME:-default_value}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		submatches := re.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""

		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}
