// Package queue serializes upstream provider calls through a single lane with
// a fixed inter-request delay, so bursts of user traffic do not trip upstream
// throttling.
package queue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Queue is the single-lane serializer. Wait blocks callers one at a time and
// paces admissions at one request per configured delay.
type Queue struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// New creates a queue admitting one request per delay. A non-positive delay
// disables pacing but keeps the serialization.
func New(delay time.Duration) *Queue {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Queue{
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Wait blocks until this caller holds the lane and the pacing interval has
// elapsed, or the context is done.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.limiter.Wait(ctx)
}
