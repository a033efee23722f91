package synthesis

import (
	"context"
	"errors"
	"testing"

	"github.com/praxislearn/curricula/internal/models"
	"github.com/praxislearn/curricula/internal/services/classifier"
	"github.com/praxislearn/curricula/internal/services/prompts"
	"github.com/praxislearn/curricula/internal/services/quota"
	"github.com/praxislearn/curricula/internal/services/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInvoker struct {
	calls   []string
	results map[string]*models.Generation
	errs    map[string]error
}

func (s *stubInvoker) Invoke(_ context.Context, desc registry.Descriptor, _ prompts.Prompt, _ string) (*models.Generation, error) {
	s.calls = append(s.calls, desc.Name)
	if err, ok := s.errs[desc.Name]; ok {
		return nil, err
	}
	if gen, ok := s.results[desc.Name]; ok {
		return gen, nil
	}
	return &models.Generation{Text: "answer from " + desc.Name}, nil
}

type stubRetriever struct {
	chunks []models.Chunk
	err    error
	calls  int
}

func (s *stubRetriever) Query(context.Context, string, int) ([]models.Chunk, error) {
	s.calls++
	return s.chunks, s.err
}

type stubCache struct {
	hit     *models.SynthesisResponse
	tier    string
	stored  []*models.SynthesisResponse
	lookups int
}

func (s *stubCache) Lookup(context.Context, *models.SynthesisRequest, string) (*models.SynthesisResponse, string, bool) {
	s.lookups++
	if s.hit == nil {
		return nil, "", false
	}
	return s.hit, s.tier, true
}

func (s *stubCache) Store(_ context.Context, _ *models.SynthesisRequest, resp *models.SynthesisResponse, _ string) {
	s.stored = append(s.stored, resp)
}

type stubRecorder struct {
	records []models.RecordSynthesisParams
}

func (s *stubRecorder) RecordSynthesis(params models.RecordSynthesisParams) {
	s.records = append(s.records, params)
}

func twoProviders() *registry.Registry {
	return registry.New(map[string]models.ProviderConfig{
		"gemini": {Kind: models.ProviderKindGemini, APIKey: "k1", Model: "gemini-2.0-flash", Tier: 1},
		"groq":   {Kind: models.ProviderKindOpenAI, APIKey: "k2", Model: "llama-3.3-70b", Tier: 2},
	})
}

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	if opts.Registry == nil {
		opts.Registry = twoProviders()
	}
	if opts.Limiter == nil {
		opts.Limiter = quota.NewLimiter()
		t.Cleanup(opts.Limiter.Close)
	}
	if opts.Invoker == nil {
		opts.Invoker = &stubInvoker{}
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.New(nil)
	}
	return New(opts)
}

func TestSynthesizeRejectsEmptyQuery(t *testing.T) {
	svc := newTestService(t, Options{})

	_, err := svc.Synthesize(context.Background(), &models.SynthesisRequest{Query: "   "})

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.ErrorTypeValidation, appErr.Type)
}

func TestSynthesizeReturnsCacheHitWithoutInvoking(t *testing.T) {
	invoker := &stubInvoker{}
	cache := &stubCache{
		hit:  &models.SynthesisResponse{Text: "cached", ProviderUsed: "gemini"},
		tier: models.CacheTierExact,
	}
	recorder := &stubRecorder{}
	svc := newTestService(t, Options{Invoker: invoker, Cache: cache, Usage: recorder})

	resp, err := svc.Synthesize(context.Background(), &models.SynthesisRequest{Query: "what is photosynthesis"})
	require.NoError(t, err)

	assert.Equal(t, "cached", resp.Text)
	assert.Equal(t, models.CacheTierExact, resp.CacheTier)
	assert.Empty(t, invoker.calls)
	require.Len(t, recorder.records, 1)
	assert.Equal(t, models.CacheTierExact, recorder.records[0].CacheTier)
}

func TestSynthesizeSkipCacheBypassesLookupAndStore(t *testing.T) {
	cache := &stubCache{hit: &models.SynthesisResponse{Text: "cached"}, tier: models.CacheTierExact}
	svc := newTestService(t, Options{Cache: cache})

	resp, err := svc.Synthesize(context.Background(), &models.SynthesisRequest{
		Query:     "explain fractions",
		SkipCache: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "answer from gemini", resp.Text)
	assert.Zero(t, cache.lookups)
	assert.Empty(t, cache.stored)
}

func TestSynthesizeGroundsAnswerAndCitesSources(t *testing.T) {
	retriever := &stubRetriever{chunks: []models.Chunk{
		{ID: "c1", Text: "chunk one", Score: 0.9, Document: "unit3.pdf", SLOCodes: []string{"RI.5.2"}},
		{ID: "c2", Text: "chunk two", Score: 0.7, Document: "unit3.pdf", SLOCodes: []string{"RI.5.2", "W.5.1"}},
		{ID: "c3", Text: "chunk three", Score: 0.6, Document: "unit4.pdf"},
	}}
	cache := &stubCache{}
	svc := newTestService(t, Options{Retriever: retriever, Cache: cache, TopK: 5})

	resp, err := svc.Synthesize(context.Background(), &models.SynthesisRequest{
		Query: "plan a lesson on main idea for CCSS.ELA-LITERACY.RI.5.2",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, retriever.calls)
	assert.Equal(t, "gemini", resp.ProviderUsed)

	// documents deduplicated, best score kept
	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "unit3.pdf", resp.Sources[0].Document)
	assert.InDelta(t, 0.9, resp.Sources[0].Score, 1e-9)
	assert.Equal(t, "unit4.pdf", resp.Sources[1].Document)

	// query codes first, then chunk codes, deduplicated
	assert.Equal(t, []string{"CCSS.ELA-LITERACY.RI.5.2", "RI.5.2", "W.5.1"}, resp.SLOCodes)

	require.Len(t, cache.stored, 1)
	assert.Equal(t, resp, cache.stored[0])
}

func TestSynthesizeDegradesWhenRetrievalFails(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("index unavailable")}
	svc := newTestService(t, Options{Retriever: retriever})

	resp, err := svc.Synthesize(context.Background(), &models.SynthesisRequest{Query: "explain erosion"})
	require.NoError(t, err)

	assert.Equal(t, "answer from gemini", resp.Text)
	assert.Empty(t, resp.Sources)
}

func TestSynthesizeFailsOverToNextProvider(t *testing.T) {
	invoker := &stubInvoker{errs: map[string]error{"gemini": errors.New("upstream 500")}}
	svc := newTestService(t, Options{Invoker: invoker})

	resp, err := svc.Synthesize(context.Background(), &models.SynthesisRequest{Query: "explain erosion"})
	require.NoError(t, err)

	assert.Equal(t, []string{"gemini", "groq"}, invoker.calls)
	assert.Equal(t, "groq", resp.ProviderUsed)
}

func TestSynthesizeHonorsPreferredProvider(t *testing.T) {
	invoker := &stubInvoker{}
	svc := newTestService(t, Options{Invoker: invoker})

	resp, err := svc.Synthesize(context.Background(), &models.SynthesisRequest{
		Query:             "explain erosion",
		PreferredProvider: "groq",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"groq"}, invoker.calls)
	assert.Equal(t, "groq", resp.ProviderUsed)
}

func TestSynthesizeReportsExhaustionWhenAllProvidersFail(t *testing.T) {
	errGemini := errors.New("upstream 500")
	errGroq := errors.New("upstream 503")
	invoker := &stubInvoker{errs: map[string]error{
		"gemini": errGemini,
		"groq":   errGroq,
	}}
	recorder := &stubRecorder{}
	svc := newTestService(t, Options{Invoker: invoker, Usage: recorder})

	_, err := svc.Synthesize(context.Background(), &models.SynthesisRequest{Query: "explain erosion"})

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.ErrorTypeExhausted, appErr.Type)
	assert.Contains(t, appErr.Error(), "2 candidate providers")

	// every provider's failure stays reachable through the joined cause,
	// not just the last one
	assert.ErrorIs(t, err, errGemini)
	assert.ErrorIs(t, err, errGroq)

	require.Len(t, recorder.records, 1)
	assert.NotEmpty(t, recorder.records[0].Error)
}

func TestSynthesizeSkipsQuotaExhaustedProvider(t *testing.T) {
	reg := registry.New(map[string]models.ProviderConfig{
		"gemini": {Kind: models.ProviderKindGemini, APIKey: "k1", Tier: 1, RateLimitRPM: 1},
		"groq":   {Kind: models.ProviderKindOpenAI, APIKey: "k2", Tier: 2},
	})
	limiter := quota.NewLimiter()
	defer limiter.Close()
	limiter.Record("gemini") // minute window already spent

	invoker := &stubInvoker{}
	svc := newTestService(t, Options{Registry: reg, Limiter: limiter, Invoker: invoker})

	resp, err := svc.Synthesize(context.Background(), &models.SynthesisRequest{Query: "explain erosion"})
	require.NoError(t, err)

	assert.Equal(t, []string{"groq"}, invoker.calls)
	assert.Equal(t, "groq", resp.ProviderUsed)
}

func TestSynthesizeClassifiesContentType(t *testing.T) {
	recorder := &stubRecorder{}
	svc := newTestService(t, Options{Usage: recorder})

	resp, err := svc.Synthesize(context.Background(), &models.SynthesisRequest{
		Query: "write a lesson plan about the water cycle for 3rd grade",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ContentTypeLessonPlan, resp.ContentType)
	require.Len(t, recorder.records, 1)
	assert.Equal(t, models.ContentTypeLessonPlan, recorder.records[0].ContentType)
}

func TestSynthesizeStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	invoker := &stubInvoker{}
	svc := newTestService(t, Options{Invoker: invoker})

	_, err := svc.Synthesize(ctx, &models.SynthesisRequest{Query: "explain erosion"})

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.ErrorTypeTimeout, appErr.Type)
	assert.Empty(t, invoker.calls)
}
