package transcode

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(2)
	var running, peak int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !assert.NoError(t, pool.Acquire(context.Background())) {
				return
			}
			defer pool.Release()
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, 0, pool.ActiveWorkers())
	assert.Equal(t, 0, pool.Waiting())
}

func TestPoolAcquireCancelled(t *testing.T) {
	pool := NewPool(1)
	require.NoError(t, pool.Acquire(context.Background()))
	defer pool.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, pool.ActiveWorkers())
	assert.Equal(t, 0, pool.Waiting())
}

func TestNewPoolDefault(t *testing.T) {
	assert.Positive(t, NewPool(0).MaxWorkers())
	assert.Equal(t, 3, NewPool(3).MaxWorkers())
}

func TestTailBuffer(t *testing.T) {
	tail := newTailBuffer(8)
	_, _ = tail.Write([]byte("hello "))
	_, _ = tail.Write([]byte("world"))
	assert.Equal(t, "...lo world", tail.String())

	big := newTailBuffer(4)
	_, _ = big.Write([]byte("abcdefgh"))
	assert.Equal(t, "...efgh", big.String())

	small := newTailBuffer(64)
	_, _ = small.Write([]byte("  short\n"))
	assert.Equal(t, "short", small.String())
}
