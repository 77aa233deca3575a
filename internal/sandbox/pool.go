package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stackpad/preview/internal/logging"
)

var (
	ErrPoolClosed = errors.New("sandbox pool is closed")
	ErrTimeout    = errors.New("sandbox acquisition timeout")
)

// Pool manages reusable runtimes. Rebuild passes acquire a fresh runtime,
// load the new document into it, and release the previous pass's runtime
// back for reset and reuse.
type Pool struct {
	config   Config
	bridge   *Bridge
	log      *logging.Logger
	runtimes chan *Runtime
	size     int
	mu       sync.RWMutex
	closed   bool
}

// NewPool creates a pool of size pre-created runtimes sharing one bridge.
func NewPool(config Config, size int, bridge *Bridge, log *logging.Logger) (*Pool, error) {
	if size <= 0 {
		size = 2
	}

	pool := &Pool{
		config:   config,
		bridge:   bridge,
		log:      log,
		runtimes: make(chan *Runtime, size),
		size:     size,
	}

	for i := 0; i < size; i++ {
		rt, err := New(config, bridge, log)
		if err != nil {
			pool.Close()
			return nil, err
		}
		pool.runtimes <- rt
	}

	return pool, nil
}

// Acquire gets a runtime with a timeout.
func (p *Pool) Acquire(ctx context.Context) (*Runtime, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	select {
	case rt := <-p.runtimes:
		return rt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		return nil, ErrTimeout
	}
}

// Release resets a runtime and returns it to the pool. A runtime that fails
// to reset is discarded and replaced.
func (p *Pool) Release(rt *Runtime) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return rt.Close()
	}

	if err := rt.Reset(); err != nil {
		rt.Close()
		if fresh, err := New(p.config, p.bridge, p.log); err == nil {
			p.runtimes <- fresh
		}
		return err
	}

	select {
	case p.runtimes <- rt:
		return nil
	default:
		return rt.Close()
	}
}

// Close closes the pool and all runtimes.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.runtimes)

	for rt := range p.runtimes {
		rt.Close()
	}
	return nil
}

// Stats returns pool occupancy.
func (p *Pool) Stats() map[string]interface{} {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return map[string]interface{}{
		"size":      p.size,
		"available": len(p.runtimes),
		"in_use":    p.size - len(p.runtimes),
		"closed":    p.closed,
	}
}
