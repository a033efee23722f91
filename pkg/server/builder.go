package server

import (
	"time"

	"github.com/praxislearn/curricula/internal/config"
	"github.com/praxislearn/curricula/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Builder assembles a server configuration programmatically, for embedders
// that do not ship a YAML file.
type Builder struct {
	cfg             *config.Config
	middlewares     []fiber.Handler
	rateLimitConfig *models.RateLimitConfig
	timeoutConfig   *models.TimeoutConfig
}

func NewBuilder() *Builder {
	return &Builder{
		cfg: &config.Config{
			Server: models.ServerConfig{
				Port:           "8080",
				AllowedOrigins: "*",
				Environment:    "development",
				LogLevel:       "info",
			},
			Providers: make(map[string]models.ProviderConfig),
			Synthesis: models.SynthesisConfig{
				TimeoutMs:     60000,
				QueueDelayMs:  500,
				HistoryWindow: 4,
				TokenBudget:   6000,
			},
		},
	}
}

// FromYAML seeds a builder from a YAML config file, loading env files first.
func FromYAML(path string, envFiles []string) (*Builder, error) {
	if len(envFiles) > 0 {
		config.LoadEnvFiles(envFiles)
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg}, nil
}

func (b *Builder) Build() *config.Config {
	return b.cfg
}

func (b *Builder) GetMiddlewares() []fiber.Handler {
	return b.middlewares
}

func (b *Builder) GetRateLimitConfig() *models.RateLimitConfig {
	return b.rateLimitConfig
}

func (b *Builder) GetTimeoutConfig() *models.TimeoutConfig {
	return b.timeoutConfig
}

func (b *Builder) Port(port string) *Builder {
	b.cfg.Server.Port = port
	return b
}

func (b *Builder) AllowedOrigins(origins string) *Builder {
	b.cfg.Server.AllowedOrigins = origins
	return b
}

func (b *Builder) Environment(env string) *Builder {
	b.cfg.Server.Environment = env
	return b
}

func (b *Builder) LogLevel(level string) *Builder {
	b.cfg.Server.LogLevel = level
	return b
}

// AddProvider registers one upstream model provider.
func (b *Builder) AddProvider(name string, cfg models.ProviderConfig) *Builder {
	b.cfg.Providers[name] = cfg
	return b
}

func (b *Builder) WithRedis(url string) *Builder {
	b.cfg.RedisURL = url
	return b
}

func (b *Builder) WithDatabase(cfg models.DatabaseConfig) *Builder {
	b.cfg.Database = &cfg
	return b
}

func (b *Builder) WithCache(cfg models.CacheConfig) *Builder {
	b.cfg.Cache = cfg
	return b
}

func (b *Builder) WithRetrieval(cfg models.RetrievalConfig) *Builder {
	b.cfg.Retrieval = cfg
	return b
}

func (b *Builder) WithSynthesis(cfg models.SynthesisConfig) *Builder {
	b.cfg.Synthesis = cfg
	return b
}

// WithClassifierRule adds a regex routing rule tried before the built-ins.
func (b *Builder) WithClassifierRule(contentType, pattern string) *Builder {
	if b.cfg.Classifier == nil {
		b.cfg.Classifier = make(map[string]string)
	}
	b.cfg.Classifier[contentType] = pattern
	return b
}

// WithRateLimit overrides the HTTP limiter middleware settings.
func (b *Builder) WithRateLimit(max int, expiration time.Duration, keyFunc ...func(*fiber.Ctx) string) *Builder {
	cfg := &models.RateLimitConfig{Max: max, Expiration: expiration}
	if len(keyFunc) > 0 {
		cfg.KeyFunc = keyFunc[0]
	}
	b.rateLimitConfig = cfg
	return b
}

// WithTimeout overrides the per-request HTTP deadline.
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeoutConfig = &models.TimeoutConfig{Timeout: timeout}
	return b
}

func (b *Builder) WithMiddleware(middleware fiber.Handler) *Builder {
	b.middlewares = append(b.middlewares, middleware)
	return b
}
