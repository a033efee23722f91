// Package circuitbreaker keeps the per-provider failure blacklist. A provider
// that keeps erroring is opened (skipped by selection) for a timeout, then
// probed half-open before being trusted again. State lives in Redis so every
// instance of the backend shares the same view of a flapping provider.
package circuitbreaker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/praxislearn/curricula/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "HalfOpen"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Config tunes one provider's breaker.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration // How long an opened provider stays blacklisted
}

// DefaultConfig matches free-tier provider behavior: trip fast, retry after
// half a minute.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
	}
}

// FromModel converts the YAML-level circuit breaker settings.
func FromModel(cfg *models.CircuitBreakerConfig) Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	if cfg.FailureThreshold > 0 {
		out.FailureThreshold = cfg.FailureThreshold
	}
	if cfg.SuccessThreshold > 0 {
		out.SuccessThreshold = cfg.SuccessThreshold
	}
	if cfg.TimeoutMs > 0 {
		out.Timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	return out
}

const (
	breakerKeyPrefix   = "synthesis:breaker:"
	stateKey           = "state"
	failureCountKey    = "failure_count"
	successCountKey    = "success_count"
	lastFailureTimeKey = "last_failure_time"
	lastStateChangeKey = "last_state_change"
	opTimeout          = 1 * time.Second
	maxRetries         = 3
)

// Lua scripts for atomic state transitions.
const (
	// recordSuccessScript atomically records success and handles state transitions
	// KEYS[1]: state key
	// KEYS[2]: failure_count key
	// KEYS[3]: success_count key
	// KEYS[4]: last_state_change key
	// ARGV[1]: success threshold (int)
	// ARGV[2]: current timestamp (unix milliseconds)
	recordSuccessScript = `
		local state = tonumber(redis.call('GET', KEYS[1]) or '0')
		redis.call('SET', KEYS[2], 0)  -- Reset failure count

		if state == 2 then  -- HalfOpen state
			local count = redis.call('INCR', KEYS[3])
			if count >= tonumber(ARGV[1]) then
				redis.call('SET', KEYS[1], 0)  -- Transition to Closed
				redis.call('SET', KEYS[3], 0)  -- Reset success count
				redis.call('SET', KEYS[4], ARGV[2])
				return 2  -- Transitioned to Closed
			end
			return 1  -- Success recorded in HalfOpen
		end
		return 0  -- Success recorded in other state
	`

	// recordFailureScript atomically records failure and handles state transitions
	// KEYS[1]: state key
	// KEYS[2]: failure_count key
	// KEYS[3]: last_failure_time key
	// KEYS[4]: last_state_change key
	// KEYS[5]: success_count key
	// ARGV[1]: failure threshold (int)
	// ARGV[2]: current timestamp (unix milliseconds)
	recordFailureScript = `
		local state = tonumber(redis.call('GET', KEYS[1]) or '0')
		local failureCount = redis.call('INCR', KEYS[2])
		redis.call('SET', KEYS[3], ARGV[2])

		local shouldOpen = (state == 0 and failureCount >= tonumber(ARGV[1])) or state == 2

		if shouldOpen then
			redis.call('SET', KEYS[1], 1)  -- Transition to Open
			redis.call('SET', KEYS[4], ARGV[2])
			redis.call('SET', KEYS[5], '0')  -- Reset success counter
			return 1  -- Transitioned to Open
		end
		return 0  -- Failure recorded, no transition
	`
)

// CircuitBreaker is the blacklist entry for one provider.
type CircuitBreaker struct {
	redisClient *redis.Client
	provider    string
	config      Config
	keyPrefix   string
}

type keyBuilder struct {
	prefix string
}

func (kb *keyBuilder) state() string        { return kb.prefix + stateKey }
func (kb *keyBuilder) failureCount() string { return kb.prefix + failureCountKey }
func (kb *keyBuilder) successCount() string { return kb.prefix + successCountKey }
func (kb *keyBuilder) lastFailure() string  { return kb.prefix + lastFailureTimeKey }
func (kb *keyBuilder) lastChange() string   { return kb.prefix + lastStateChangeKey }

// NewForProvider creates a breaker scoped to one provider name.
func NewForProvider(redisClient *redis.Client, provider string, config Config) *CircuitBreaker {
	keyPrefix := breakerKeyPrefix + provider + ":"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		fiberlog.Errorf("Redis connection failed for circuit breaker %s: %v", provider, err)
	}

	cb := &CircuitBreaker{
		redisClient: redisClient,
		provider:    provider,
		config:      config,
		keyPrefix:   keyPrefix,
	}

	cb.initializeState()
	return cb
}

func (cb *CircuitBreaker) initializeState() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	exists, err := cb.redisClient.Exists(ctx, cb.keyPrefix+stateKey).Result()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to check state existence: %v", err)
		return
	}

	if exists == 0 {
		pipe := cb.redisClient.Pipeline()
		pipe.Set(ctx, cb.keyPrefix+stateKey, int(Closed), 0)
		pipe.Set(ctx, cb.keyPrefix+failureCountKey, 0, 0)
		pipe.Set(ctx, cb.keyPrefix+successCountKey, 0, 0)
		pipe.Set(ctx, cb.keyPrefix+lastStateChangeKey, time.Now().UnixMilli(), 0)

		if _, err := pipe.Exec(ctx); err != nil {
			fiberlog.Errorf("CircuitBreaker: failed to initialize state: %v", err)
		} else {
			fiberlog.Debugf("CircuitBreaker: initialized state for provider %s", cb.provider)
		}
	}
}

// CanExecute reports whether the provider may be tried. An open breaker whose
// timeout has elapsed transitions to half-open and allows one probe through.
func (cb *CircuitBreaker) CanExecute() bool {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	state, err := cb.getState(ctx)
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to get state, allowing execution: %v", err)
		return true
	}

	switch state {
	case Closed:
		return true
	case Open:
		lastFailureTime, err := cb.redisClient.Get(ctx, cb.keyPrefix+lastFailureTimeKey).Int64()
		if err != nil {
			fiberlog.Errorf("CircuitBreaker: failed to get last failure time: %v", err)
			return false
		}

		// Millisecond resolution, matching what RecordFailure stores. Unix
		// seconds would truncate and let sub-second timeouts elapse early.
		if time.Since(time.UnixMilli(lastFailureTime)) > cb.config.Timeout {
			if cb.transitionToState(HalfOpen) {
				return true
			}
		}
		return false
	case HalfOpen:
		return true
	default:
		return false
	}
}

// RecordSuccess clears the failure count and, in half-open state, counts
// toward closing the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	kb := &keyBuilder{prefix: cb.keyPrefix}

	keys := []string{kb.state(), kb.failureCount(), kb.successCount(), kb.lastChange()}
	args := []any{cb.config.SuccessThreshold, time.Now().UnixMilli()}

	result, err := cb.redisClient.Eval(ctx, recordSuccessScript, keys, args...).Int()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to record success: %v", err)
		return
	}

	switch result {
	case 2:
		fiberlog.Infof("CircuitBreaker: provider %s closed after recovery", cb.provider)
	case 1:
		fiberlog.Infof("CircuitBreaker: provider %s recorded success in HalfOpen state", cb.provider)
	default:
		fiberlog.Debugf("CircuitBreaker: provider %s recorded success", cb.provider)
	}
}

// RecordFailure counts a failure and opens the breaker when the threshold is
// reached, or immediately when a half-open probe fails.
func (cb *CircuitBreaker) RecordFailure() {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	kb := &keyBuilder{prefix: cb.keyPrefix}

	keys := []string{kb.state(), kb.failureCount(), kb.lastFailure(), kb.lastChange(), kb.successCount()}
	args := []any{cb.config.FailureThreshold, time.Now().UnixMilli()}

	result, err := cb.redisClient.Eval(ctx, recordFailureScript, keys, args...).Int()
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to record failure: %v", err)
		return
	}

	if result == 1 {
		fiberlog.Warnf("CircuitBreaker: provider %s opened, blacklisted for %s", cb.provider, cb.config.Timeout)
	} else {
		fiberlog.Debugf("CircuitBreaker: provider %s recorded failure", cb.provider)
	}
}

// GetState returns the current breaker state, defaulting to Closed on error.
func (cb *CircuitBreaker) GetState() State {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	state, err := cb.getState(ctx)
	if err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to get state, returning Closed: %v", err)
		return Closed
	}
	return state
}

// Reset forces the breaker back to Closed.
func (cb *CircuitBreaker) Reset() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pipe := cb.redisClient.Pipeline()
	pipe.Set(ctx, cb.keyPrefix+stateKey, int(Closed), 0)
	pipe.Set(ctx, cb.keyPrefix+failureCountKey, 0, 0)
	pipe.Set(ctx, cb.keyPrefix+successCountKey, 0, 0)
	pipe.Set(ctx, cb.keyPrefix+lastStateChangeKey, time.Now().UnixMilli(), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		fiberlog.Errorf("CircuitBreaker: failed to reset state: %v", err)
	} else {
		fiberlog.Infof("CircuitBreaker: reset breaker for provider %s", cb.provider)
	}
}

func (cb *CircuitBreaker) getState(ctx context.Context) (State, error) {
	kb := &keyBuilder{prefix: cb.keyPrefix}
	stateStr, err := cb.redisClient.Get(ctx, kb.state()).Result()
	if err != nil {
		return Closed, fmt.Errorf("failed to get circuit breaker state: %w", err)
	}

	stateInt, err := strconv.Atoi(stateStr)
	if err != nil {
		return Closed, fmt.Errorf("invalid state value '%s': %w", stateStr, err)
	}

	return State(stateInt), nil
}

func (cb *CircuitBreaker) transitionToState(newState State) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	kb := &keyBuilder{prefix: cb.keyPrefix}

	// Optimistic locking with retries
	for attempt := range maxRetries {
		err := cb.redisClient.Watch(ctx, func(tx *redis.Tx) error {
			currentState, err := cb.getState(ctx)
			if err != nil {
				return err
			}

			if currentState == newState {
				return nil
			}

			pipe := tx.TxPipeline()
			pipe.Set(ctx, kb.state(), int(newState), 0)
			pipe.Set(ctx, kb.lastChange(), time.Now().UnixMilli(), 0)

			if newState != HalfOpen {
				pipe.Set(ctx, kb.successCount(), 0, 0)
			}

			_, err = pipe.Exec(ctx)
			return err
		}, kb.state())

		if err == nil {
			fiberlog.Debugf("CircuitBreaker: provider %s transitioned to %s", cb.provider, newState)
			return true
		}

		if err != redis.TxFailedErr {
			fiberlog.Errorf("CircuitBreaker: provider %s state transition failed: %v", cb.provider, err)
			return false
		}

		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}

	fiberlog.Errorf("CircuitBreaker: provider %s state transition failed after %d attempts", cb.provider, maxRetries)
	return false
}
