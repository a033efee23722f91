// Package synthesis orchestrates one curriculum answer end to end: cache
// lookup, retrieval, prompt assembly, provider selection with failover, and
// usage accounting.
package synthesis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/praxislearn/curricula/internal/models"
	"github.com/praxislearn/curricula/internal/services/circuitbreaker"
	"github.com/praxislearn/curricula/internal/services/classifier"
	"github.com/praxislearn/curricula/internal/services/prompts"
	"github.com/praxislearn/curricula/internal/services/queue"
	"github.com/praxislearn/curricula/internal/services/quota"
	"github.com/praxislearn/curricula/internal/services/registry"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Retriever fetches grounding chunks for a query.
type Retriever interface {
	Query(ctx context.Context, text string, topK int) ([]models.Chunk, error)
}

// ProviderInvoker executes one generation against a provider.
type ProviderInvoker interface {
	Invoke(ctx context.Context, desc registry.Descriptor, prompt prompts.Prompt, requestID string) (*models.Generation, error)
}

// ResponseCache is the multi-tier response cache consulted before generation.
type ResponseCache interface {
	Lookup(ctx context.Context, req *models.SynthesisRequest, requestID string) (*models.SynthesisResponse, string, bool)
	Store(ctx context.Context, req *models.SynthesisRequest, resp *models.SynthesisResponse, requestID string)
}

// UsageRecorder persists one usage row. Implementations must not block.
type UsageRecorder interface {
	RecordSynthesis(params models.RecordSynthesisParams)
}

// Service runs the synthesis pipeline.
type Service struct {
	cfg        models.SynthesisConfig
	registry   *registry.Registry
	limiter    *quota.Limiter
	queue      *queue.Queue
	cache      ResponseCache
	retriever  Retriever
	invoker    ProviderInvoker
	classifier *classifier.Classifier
	builder    *prompts.Builder
	usage      UsageRecorder
	topK       int

	breakerCfg  circuitbreaker.Config
	redisClient *redis.Client
	breakerMu   sync.Mutex
	breakers    map[string]*circuitbreaker.CircuitBreaker
}

// Options bundles the collaborators the service is wired with. Cache,
// retriever, usage recorder, and redis client are optional; the pipeline
// degrades around a missing one.
type Options struct {
	Config      models.SynthesisConfig
	Registry    *registry.Registry
	Limiter     *quota.Limiter
	Cache       ResponseCache
	Retriever   Retriever
	Invoker     ProviderInvoker
	Classifier  *classifier.Classifier
	Usage       UsageRecorder
	RedisClient *redis.Client
	TopK        int
}

// New wires a synthesis service.
func New(opts Options) *Service {
	queueDelay := time.Duration(opts.Config.QueueDelayMs) * time.Millisecond

	return &Service{
		cfg:         opts.Config,
		registry:    opts.Registry,
		limiter:     opts.Limiter,
		queue:       queue.New(queueDelay),
		cache:       opts.Cache,
		retriever:   opts.Retriever,
		invoker:     opts.Invoker,
		classifier:  opts.Classifier,
		builder:     prompts.NewBuilder(opts.Config.TokenBudget),
		usage:       opts.Usage,
		topK:        opts.TopK,
		breakerCfg:  circuitbreaker.FromModel(opts.Config.CircuitBreaker),
		redisClient: opts.RedisClient,
		breakers:    make(map[string]*circuitbreaker.CircuitBreaker),
	}
}

// Synthesize answers one curriculum query. It returns a cached response when
// one matches, otherwise it walks the eligible providers in priority order
// until one succeeds.
func (s *Service) Synthesize(ctx context.Context, req *models.SynthesisRequest) (*models.SynthesisResponse, error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, models.NewValidationError("query must not be empty", nil)
	}

	requestID := uuid.NewString()
	start := time.Now()

	if s.cfg.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	if s.cache != nil && !req.SkipCache {
		if cached, tier, ok := s.cache.Lookup(ctx, req, requestID); ok {
			cached.CacheTier = tier
			s.recordUsage(models.RecordSynthesisParams{
				RequestID:   requestID,
				Provider:    cached.ProviderUsed,
				Model:       cached.Model,
				ContentType: cached.ContentType,
				GradeBand:   req.GradeBand,
				Latency:     time.Since(start),
				CacheTier:   tier,
			})
			return cached, nil
		}
	}

	contentType := models.ContentTypeGeneral
	if s.classifier != nil {
		contentType = s.classifier.Classify(req.Query)
	}

	chunks := s.retrieve(ctx, req, requestID)
	prompt := s.builder.Build(req, chunks, contentType)

	candidates := s.registry.Candidates(req.PreferredProvider)
	if len(candidates) == 0 {
		return nil, models.NewExhaustedError(0, errors.New("no providers configured with credentials"))
	}

	var lastErr error
	attempts := 0

	for _, desc := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, s.failUsage(requestID, req, contentType, len(chunks), start,
				models.NewTimeoutError("synthesize", errors.Join(err, lastErr)))
		}

		if !s.breakerAllows(desc.Name) {
			fiberlog.Debugf("[%s] Synthesis: provider %s skipped, circuit open", requestID, desc.Name)
			continue
		}
		if !s.limiter.Allow(desc.Name, desc.RateLimitRPM, desc.RateLimitRPD) {
			fiberlog.Debugf("[%s] Synthesis: provider %s skipped, quota exhausted", requestID, desc.Name)
			continue
		}

		if err := s.queue.Wait(ctx); err != nil {
			return nil, s.failUsage(requestID, req, contentType, len(chunks), start,
				models.NewTimeoutError("queue wait", errors.Join(err, lastErr)))
		}

		attempts++
		s.limiter.Record(desc.Name)

		gen, err := s.invoker.Invoke(ctx, desc, prompt, requestID)
		if err != nil {
			lastErr = errors.Join(lastErr, err)
			s.breakerFailure(desc.Name)
			fiberlog.Warnf("[%s] Synthesis: provider %s failed: %v", requestID, desc.Name, err)
			continue
		}
		s.breakerSuccess(desc.Name)

		resp := s.buildResponse(req, desc, gen, chunks, contentType)
		if s.cache != nil && !req.SkipCache {
			s.cache.Store(ctx, req, resp, requestID)
		}
		s.recordUsage(models.RecordSynthesisParams{
			RequestID:        requestID,
			Provider:         desc.Name,
			Model:            desc.Model,
			ContentType:      contentType,
			GradeBand:        req.GradeBand,
			PromptTokens:     gen.Usage.PromptTokens,
			CompletionTokens: gen.Usage.CompletionTokens,
			Latency:          time.Since(start),
			ChunksRetrieved:  len(chunks),
		})
		fiberlog.Infof("[%s] Synthesis: answered by %s after %d attempt(s) in %v",
			requestID, desc.Name, attempts, time.Since(start))
		return resp, nil
	}

	return nil, s.failUsage(requestID, req, contentType, len(chunks), start,
		models.NewExhaustedError(attempts, lastErr))
}

// retrieve fetches grounding chunks, degrading to an ungrounded answer on
// retriever failure.
func (s *Service) retrieve(ctx context.Context, req *models.SynthesisRequest, requestID string) []models.Chunk {
	if s.retriever == nil {
		return nil
	}
	chunks, err := s.retriever.Query(ctx, req.Query, s.topK)
	if err != nil {
		fiberlog.Warnf("[%s] Synthesis: retrieval failed, answering ungrounded: %v", requestID, err)
		return nil
	}
	return chunks
}

func (s *Service) buildResponse(req *models.SynthesisRequest, desc registry.Descriptor, gen *models.Generation, chunks []models.Chunk, contentType models.ContentType) *models.SynthesisResponse {
	return &models.SynthesisResponse{
		Text:         gen.Text,
		ProviderUsed: desc.Name,
		Model:        desc.Model,
		ContentType:  contentType,
		SLOCodes:     collectSLOCodes(req.Query, chunks),
		Sources:      collectSources(chunks),
		Usage:        gen.Usage,
	}
}

// collectSLOCodes merges codes found in the query with codes carried by the
// retrieved chunks, deduplicated in first-occurrence order.
func collectSLOCodes(query string, chunks []models.Chunk) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(codes []string) {
		for _, code := range codes {
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			out = append(out, code)
		}
	}
	add(classifier.ExtractSLOCodes(query))
	for _, chunk := range chunks {
		add(chunk.SLOCodes)
	}
	return out
}

// collectSources cites each distinct document once, keeping its best score.
func collectSources(chunks []models.Chunk) []models.Source {
	index := make(map[string]int)
	var out []models.Source
	for _, chunk := range chunks {
		if chunk.Document == "" {
			continue
		}
		if i, ok := index[chunk.Document]; ok {
			if chunk.Score > out[i].Score {
				out[i].Score = chunk.Score
			}
			continue
		}
		index[chunk.Document] = len(out)
		out = append(out, models.Source{Document: chunk.Document, Score: chunk.Score})
	}
	return out
}

// breakerFor lazily builds the per-provider circuit breaker. Without a redis
// client breakers are disabled and every provider is considered executable.
func (s *Service) breakerFor(provider string) *circuitbreaker.CircuitBreaker {
	if s.redisClient == nil {
		return nil
	}
	s.breakerMu.Lock()
	defer s.breakerMu.Unlock()
	cb, ok := s.breakers[provider]
	if !ok {
		cb = circuitbreaker.NewForProvider(s.redisClient, provider, s.breakerCfg)
		s.breakers[provider] = cb
	}
	return cb
}

func (s *Service) breakerAllows(provider string) bool {
	cb := s.breakerFor(provider)
	return cb == nil || cb.CanExecute()
}

func (s *Service) breakerSuccess(provider string) {
	if cb := s.breakerFor(provider); cb != nil {
		cb.RecordSuccess()
	}
}

func (s *Service) breakerFailure(provider string) {
	if cb := s.breakerFor(provider); cb != nil {
		cb.RecordFailure()
	}
}

// BreakerState reports the circuit state for a provider, for status surfaces.
func (s *Service) BreakerState(provider string) circuitbreaker.State {
	cb := s.breakerFor(provider)
	if cb == nil {
		return circuitbreaker.Closed
	}
	return cb.GetState()
}

func (s *Service) recordUsage(params models.RecordSynthesisParams) {
	if s.usage == nil {
		return
	}
	s.usage.RecordSynthesis(params)
}

func (s *Service) failUsage(requestID string, req *models.SynthesisRequest, contentType models.ContentType, chunks int, start time.Time, err *models.AppError) *models.AppError {
	s.recordUsage(models.RecordSynthesisParams{
		RequestID:       requestID,
		ContentType:     contentType,
		GradeBand:       req.GradeBand,
		Latency:         time.Since(start),
		ChunksRetrieved: chunks,
		Error:           err.Message,
	})
	return err
}
