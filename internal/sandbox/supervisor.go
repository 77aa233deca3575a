package sandbox

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/stackpad/preview/internal/logging"
)

// Supervisor keeps exactly one runtime current. Loading a new document
// swaps runtimes: the previous one goes back to the pool only after the new
// one is live, so the active document is never torn down early.
type Supervisor struct {
	pool   *Pool
	bridge *Bridge
	log    *logging.Logger

	mu      sync.Mutex
	current *Runtime
	seq     uint64 // latest load attempt; stale completions never swap in
}

// NewSupervisor creates a supervisor over a runtime pool.
func NewSupervisor(pool *Pool, bridge *Bridge, log *logging.Logger) *Supervisor {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Supervisor{pool: pool, bridge: bridge, log: log}
}

// Load executes a composed document in a fresh runtime and makes it current.
// Returning nil is the sandbox's load confirmation. A load overtaken by a
// newer one is abandoned: its runtime goes back to the pool and it never
// becomes current.
func (s *Supervisor) Load(ctx context.Context, passID string, html string) error {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	rt, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire runtime: %w", err)
	}

	if err := rt.LoadDocument(ctx, html); err != nil {
		s.pool.Release(rt)
		return fmt.Errorf("failed to load document: %w", err)
	}

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		if err := s.pool.Release(rt); err != nil {
			s.log.Warn("abandoned runtime release failed", zap.Error(err))
		}
		s.log.Debug("superseded load discarded", zap.String("pass", passID))
		return fmt.Errorf("load superseded by a newer pass")
	}
	prev := s.current
	s.current = rt
	s.mu.Unlock()

	if prev != nil {
		if err := s.pool.Release(prev); err != nil {
			s.log.Warn("previous runtime release failed", zap.Error(err))
		}
	}

	s.bridge.Post(Envelope{Loaded: true, PassID: passID})
	s.log.Debug("document loaded", zap.String("pass", passID))
	return nil
}

// Exec routes an ad-hoc command to the current runtime.
func (s *Supervisor) Exec(ctx context.Context, code string) error {
	s.mu.Lock()
	rt := s.current
	s.mu.Unlock()

	if rt == nil {
		return fmt.Errorf("no document loaded")
	}
	rt.Exec(ctx, code)
	return nil
}

// Close releases the current runtime and the pool.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	rt := s.current
	s.current = nil
	s.mu.Unlock()

	if rt != nil {
		rt.Close()
	}
	return s.pool.Close()
}
