package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitPacesRequests(t *testing.T) {
	const delay = 20 * time.Millisecond
	q := New(delay)

	start := time.Now()
	for range 3 {
		require.NoError(t, q.Wait(context.Background()))
	}
	elapsed := time.Since(start)

	// first admission is free, the next two are paced
	assert.GreaterOrEqual(t, elapsed, 2*delay)
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	q := New(time.Minute)
	require.NoError(t, q.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := q.Wait(ctx)
	assert.Error(t, err)
}

func TestWaitSerializesConcurrentCallers(t *testing.T) {
	const delay = 5 * time.Millisecond
	q := New(delay)

	var mu sync.Mutex
	var stamps []time.Time

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, q.Wait(context.Background()))
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, stamps, 4)
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, delay/2)
	}
}
