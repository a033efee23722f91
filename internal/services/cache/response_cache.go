// Package cache stores synthesized answers so repeated curriculum questions
// skip the provider fleet entirely. An exact layer (hashed prompt+history) is
// always on; a semantic layer can match paraphrased questions.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/praxislearn/curricula/internal/models"

	"github.com/botirk38/semanticcache"
	"github.com/botirk38/semanticcache/options"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	defaultSemanticThreshold = 0.95
	defaultEmbeddingModel    = "text-embedding-3-small"
	defaultCapacity          = 1000
)

// ResponseCache is the synthesizer-facing cache facade.
type ResponseCache struct {
	exact             ExactStore
	semantic          *semanticcache.SemanticCache[string, models.SynthesisResponse]
	semanticThreshold float32
	historyWindow     int
}

// New builds the response cache from configuration. redisURL is the resolved
// URL for the redis backend (may come from the top-level redis config).
func New(cfg models.CacheConfig, redisURL string, historyWindow int) (*ResponseCache, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("cache is disabled")
	}

	ttl := time.Duration(cfg.TTLSeconds) * time.Second

	backend := cfg.Backend
	if backend == "" {
		backend = models.CacheBackendMemory
		fiberlog.Warn("ResponseCache: backend not specified, defaulting to memory")
	}

	rc := &ResponseCache{historyWindow: historyWindow}

	switch backend {
	case models.CacheBackendMemory:
		capacity := cfg.Capacity
		if capacity <= 0 {
			capacity = defaultCapacity
			fiberlog.Warnf("ResponseCache: invalid or missing capacity, using default %d", capacity)
		}
		fiberlog.Debugf("ResponseCache: using in-memory LRU backend with capacity=%d, ttl=%s", capacity, ttl)
		rc.exact = newMemoryStore(capacity, ttl)

	case models.CacheBackendRedis:
		if redisURL == "" {
			return nil, fmt.Errorf("redis URL not set for redis backend")
		}
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		fiberlog.Debugf("ResponseCache: using redis backend, ttl=%s", ttl)
		rc.exact = newRedisStore(redis.NewClient(opts), ttl)

	default:
		return nil, fmt.Errorf("unsupported cache backend: %s (supported: redis, memory)", backend)
	}

	if cfg.Semantic {
		if err := rc.initSemantic(cfg, redisURL); err != nil {
			return nil, err
		}
	} else {
		fiberlog.Info("ResponseCache: semantic layer disabled, exact matching only")
	}

	return rc, nil
}

func (rc *ResponseCache) initSemantic(cfg models.CacheConfig, redisURL string) error {
	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("OpenAI API key not set for the semantic cache layer")
	}

	threshold := cfg.SemanticThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = defaultSemanticThreshold
		fiberlog.Warnf("ResponseCache: invalid semantic threshold %.2f, using default %.2f", cfg.SemanticThreshold, defaultSemanticThreshold)
	}
	rc.semanticThreshold = float32(threshold)

	embedModel := cfg.EmbeddingModel
	if embedModel == "" {
		embedModel = defaultEmbeddingModel
	}

	var (
		sc  *semanticcache.SemanticCache[string, models.SynthesisResponse]
		err error
	)

	switch cfg.Backend {
	case models.CacheBackendRedis:
		sc, err = semanticcache.New(
			options.WithOpenAIProvider[string, models.SynthesisResponse](cfg.OpenAIAPIKey, embedModel),
			options.WithRedisBackend[string, models.SynthesisResponse](redisURL, 0),
		)
	default:
		capacity := cfg.Capacity
		if capacity <= 0 {
			capacity = defaultCapacity
		}
		sc, err = semanticcache.New(
			options.WithOpenAIProvider[string, models.SynthesisResponse](cfg.OpenAIAPIKey, embedModel),
			options.WithLRUBackend[string, models.SynthesisResponse](capacity),
		)
	}
	if err != nil {
		return fmt.Errorf("failed to create semantic cache: %w", err)
	}

	rc.semantic = sc
	fiberlog.Infof("ResponseCache: semantic layer initialized (threshold=%.2f, model=%s)", threshold, embedModel)
	return nil
}

// Lookup checks the exact layer, then the semantic layer. It returns the hit,
// the cache tier it came from, and whether anything was found.
func (rc *ResponseCache) Lookup(ctx context.Context, req *models.SynthesisRequest, requestID string) (*models.SynthesisResponse, string, bool) {
	key := Key(req, rc.historyWindow)

	if resp, found, err := rc.exact.Get(ctx, key); err == nil && found {
		fiberlog.Infof("[%s] ResponseCache: exact cache hit", requestID)
		return resp, models.CacheTierExact, true
	} else if err != nil {
		fiberlog.Errorf("[%s] ResponseCache: exact lookup error: %v", requestID, err)
	}

	if rc.semantic == nil {
		return nil, "", false
	}

	if hit, found, err := rc.semantic.Get(ctx, key); found && err == nil {
		fiberlog.Infof("[%s] ResponseCache: semantic exact hit", requestID)
		return &hit, models.CacheTierSemanticExact, true
	} else if err != nil {
		fiberlog.Errorf("[%s] ResponseCache: semantic exact lookup error: %v", requestID, err)
	}

	if match, err := rc.semantic.Lookup(ctx, req.Query, rc.semanticThreshold); err == nil && match != nil {
		fiberlog.Infof("[%s] ResponseCache: semantic similarity hit", requestID)
		return &match.Value, models.CacheTierSemanticSimilar, true
	} else if err != nil {
		fiberlog.Errorf("[%s] ResponseCache: semantic similarity lookup error: %v", requestID, err)
	}

	fiberlog.Debugf("[%s] ResponseCache: miss", requestID)
	return nil, "", false
}

// Store writes the response to every configured layer. Failures are logged,
// not returned: caching is best-effort.
func (rc *ResponseCache) Store(ctx context.Context, req *models.SynthesisRequest, resp *models.SynthesisResponse, requestID string) {
	key := Key(req, rc.historyWindow)

	if err := rc.exact.Set(ctx, key, resp); err != nil {
		fiberlog.Errorf("[%s] ResponseCache: exact store failed: %v", requestID, err)
	}

	if rc.semantic != nil {
		if err := rc.semantic.Set(ctx, key, req.Query, *resp); err != nil {
			fiberlog.Errorf("[%s] ResponseCache: semantic store failed: %v", requestID, err)
		}
	}
}
