package circuitbreaker

import (
	"testing"
	"time"

	"github.com/praxislearn/curricula/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreaker(t *testing.T, cfg Config) *CircuitBreaker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewForProvider(client, "groq", cfg)
}

func TestStartsClosed(t *testing.T) {
	cb := testBreaker(t, DefaultConfig())
	assert.Equal(t, Closed, cb.GetState())
	assert.True(t, cb.CanExecute())
}

func TestOpensAfterFailureThreshold(t *testing.T) {
	cb := testBreaker(t, Config{FailureThreshold: 3, SuccessThreshold: 2, Timeout: time.Minute})

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, Closed, cb.GetState())
	assert.True(t, cb.CanExecute())

	cb.RecordFailure()
	assert.Equal(t, Open, cb.GetState())
	assert.False(t, cb.CanExecute())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := testBreaker(t, Config{FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute})

	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	assert.Equal(t, Closed, cb.GetState())
}

func TestHalfOpenProbeAfterTimeout(t *testing.T) {
	cb := testBreaker(t, Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Millisecond})

	cb.RecordFailure()
	require.Equal(t, Open, cb.GetState())
	assert.False(t, cb.CanExecute())

	time.Sleep(20 * time.Millisecond)

	// timeout elapsed: breaker lets a probe through half-open
	assert.True(t, cb.CanExecute())
	assert.Equal(t, HalfOpen, cb.GetState())

	// one success is not enough to close with threshold 2
	cb.RecordSuccess()
	assert.Equal(t, HalfOpen, cb.GetState())

	cb.RecordSuccess()
	assert.Equal(t, Closed, cb.GetState())
}

func TestOpenHoldsForSubSecondTimeout(t *testing.T) {
	cb := testBreaker(t, Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: 250 * time.Millisecond})

	cb.RecordFailure()
	require.Equal(t, Open, cb.GetState())

	// The failure timestamp carries millisecond resolution, so a timeout
	// shorter than a second must still be waited out in full.
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		assert.False(t, cb.CanExecute())
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, Open, cb.GetState())

	time.Sleep(250 * time.Millisecond)
	assert.True(t, cb.CanExecute())
	assert.Equal(t, HalfOpen, cb.GetState())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := testBreaker(t, Config{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Millisecond})

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.True(t, cb.CanExecute())
	require.Equal(t, HalfOpen, cb.GetState())

	cb.RecordFailure()
	assert.Equal(t, Open, cb.GetState())
	assert.False(t, cb.CanExecute())
}

func TestResetForcesClosed(t *testing.T) {
	cb := testBreaker(t, Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute})

	cb.RecordFailure()
	require.Equal(t, Open, cb.GetState())

	cb.Reset()
	assert.Equal(t, Closed, cb.GetState())
	assert.True(t, cb.CanExecute())
}

func TestFromModel(t *testing.T) {
	cfg := FromModel(nil)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg = FromModel(&models.CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		TimeoutMs:        45000,
	})
	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, 1, cfg.SuccessThreshold)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
}
