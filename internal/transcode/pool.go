package transcode

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Pool bounds the number of engine processes running at once.
// Callers beyond the limit wait in Acquire until a slot frees up or their
// context ends.
type Pool struct {
	maxWorkers int
	semaphore  chan struct{}

	mu      sync.Mutex
	active  int
	waiting int
}

// NewPool creates a pool with maxWorkers slots. Non-positive values default
// to the number of CPUs.
func NewPool(maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	return &Pool{
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
	}
}

// Acquire blocks until a worker slot is available.
func (p *Pool) Acquire(ctx context.Context) error {
	p.mu.Lock()
	p.waiting++
	p.mu.Unlock()

	select {
	case p.semaphore <- struct{}{}:
		p.mu.Lock()
		p.waiting--
		p.active++
		p.mu.Unlock()
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		p.waiting--
		p.mu.Unlock()
		return fmt.Errorf("engine slot acquire cancelled: %w", ctx.Err())
	}
}

// Release frees a worker slot.
func (p *Pool) Release() {
	p.mu.Lock()
	p.active--
	p.mu.Unlock()
	<-p.semaphore
}

// ActiveWorkers returns the number of running engine processes.
func (p *Pool) ActiveWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Waiting returns the number of callers queued in Acquire.
func (p *Pool) Waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiting
}

// MaxWorkers returns the slot count.
func (p *Pool) MaxWorkers() int {
	return p.maxWorkers
}
