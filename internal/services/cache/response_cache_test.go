package cache

import (
	"context"
	"testing"
	"time"

	"github.com/praxislearn/curricula/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memCache(t *testing.T, ttlSeconds int) *ResponseCache {
	t.Helper()
	rc, err := New(models.CacheConfig{
		Enabled:    true,
		Backend:    models.CacheBackendMemory,
		Capacity:   8,
		TTLSeconds: ttlSeconds,
	}, "", 2)
	require.NoError(t, err)
	return rc
}

func TestKeyNormalization(t *testing.T) {
	a := &models.SynthesisRequest{Query: "Explain  Fractions\nto third graders"}
	b := &models.SynthesisRequest{Query: "explain fractions to third graders"}
	c := &models.SynthesisRequest{Query: "explain decimals to third graders"}

	assert.Equal(t, Key(a, 4), Key(b, 4))
	assert.NotEqual(t, Key(a, 4), Key(c, 4))
}

func TestKeyUsesOnlyRecentHistory(t *testing.T) {
	history := []models.HistoryTurn{
		{Role: "user", Content: "old turn"},
		{Role: "assistant", Content: "old answer"},
		{Role: "user", Content: "recent turn"},
		{Role: "assistant", Content: "recent answer"},
	}
	a := &models.SynthesisRequest{Query: "next", History: history}
	b := &models.SynthesisRequest{Query: "next", History: history[2:]}

	assert.Equal(t, Key(a, 2), Key(b, 2))
	assert.NotEqual(t, Key(a, 4), Key(b, 4))
}

func TestMemoryLookupAndStore(t *testing.T) {
	rc := memCache(t, 60)
	ctx := context.Background()

	req := &models.SynthesisRequest{Query: "what is an SLO?"}

	_, _, found := rc.Lookup(ctx, req, "req-1")
	assert.False(t, found)

	resp := &models.SynthesisResponse{Text: "a student learning objective", ProviderUsed: "groq"}
	rc.Store(ctx, req, resp, "req-1")

	got, tier, found := rc.Lookup(ctx, req, "req-2")
	require.True(t, found)
	assert.Equal(t, models.CacheTierExact, tier)
	assert.Equal(t, "a student learning objective", got.Text)
}

func TestMemoryTTLEviction(t *testing.T) {
	rc, err := New(models.CacheConfig{
		Enabled:    true,
		Backend:    models.CacheBackendMemory,
		Capacity:   8,
		TTLSeconds: 1,
	}, "", 2)
	require.NoError(t, err)

	ctx := context.Background()
	req := &models.SynthesisRequest{Query: "short lived"}
	rc.Store(ctx, req, &models.SynthesisResponse{Text: "x"}, "req-1")

	_, _, found := rc.Lookup(ctx, req, "req-1")
	require.True(t, found)

	time.Sleep(1100 * time.Millisecond)
	_, _, found = rc.Lookup(ctx, req, "req-1")
	assert.False(t, found)
}

func TestMemoryCapacityBound(t *testing.T) {
	rc, err := New(models.CacheConfig{
		Enabled:    true,
		Backend:    models.CacheBackendMemory,
		Capacity:   2,
		TTLSeconds: 60,
	}, "", 2)
	require.NoError(t, err)

	ctx := context.Background()
	first := &models.SynthesisRequest{Query: "first"}
	rc.Store(ctx, first, &models.SynthesisResponse{Text: "1"}, "r")
	rc.Store(ctx, &models.SynthesisRequest{Query: "second"}, &models.SynthesisResponse{Text: "2"}, "r")
	rc.Store(ctx, &models.SynthesisRequest{Query: "third"}, &models.SynthesisResponse{Text: "3"}, "r")

	// oldest entry was evicted
	_, _, found := rc.Lookup(ctx, first, "r")
	assert.False(t, found)
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)

	rc, err := New(models.CacheConfig{
		Enabled:    true,
		Backend:    models.CacheBackendRedis,
		TTLSeconds: 60,
	}, "redis://"+mr.Addr(), 2)
	require.NoError(t, err)

	ctx := context.Background()
	req := &models.SynthesisRequest{Query: "photosynthesis lesson plan"}
	resp := &models.SynthesisResponse{Text: "plan", ProviderUsed: "gemini", ContentType: models.ContentTypeLessonPlan}

	rc.Store(ctx, req, resp, "req-1")

	got, tier, found := rc.Lookup(ctx, req, "req-2")
	require.True(t, found)
	assert.Equal(t, models.CacheTierExact, tier)
	assert.Equal(t, models.ContentTypeLessonPlan, got.ContentType)

	// TTL expiry
	mr.FastForward(2 * time.Minute)
	_, _, found = rc.Lookup(ctx, req, "req-3")
	assert.False(t, found)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(models.CacheConfig{Enabled: false}, "", 2)
	assert.Error(t, err)

	_, err = New(models.CacheConfig{Enabled: true, Backend: "memcached"}, "", 2)
	assert.Error(t, err)

	_, err = New(models.CacheConfig{Enabled: true, Backend: models.CacheBackendRedis}, "", 2)
	assert.Error(t, err)
}
