// Package lifecycle orchestrates preview rebuild passes.
//
// Each pass moves through Idle → Assembling → Materialized → Loaded →
// Superseded. Store mutations are debounced on the trailing edge so a burst
// of edits produces one rebuild. Handle release is deliberately lazy: the
// previous Loaded pass's handles are released only once the new pass is
// confirmed loaded, because the sandbox may still be fetching late resources
// (fonts, lazy images) from the old document until then. A pass superseded
// before it loads releases immediately, since the sandbox never consumed it.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stackpad/preview/internal/assemble"
	"github.com/stackpad/preview/internal/logging"
	"github.com/stackpad/preview/internal/monitoring"
	"github.com/stackpad/preview/internal/shared/id"
	"github.com/stackpad/preview/internal/vfs"
)

// State is the rebuild state machine position.
type State int

const (
	StateIdle State = iota
	StateAssembling
	StateMaterialized
	StateLoaded
	StateSuperseded
)

func (s State) String() string {
	switch s {
	case StateAssembling:
		return "assembling"
	case StateMaterialized:
		return "materialized"
	case StateLoaded:
		return "loaded"
	case StateSuperseded:
		return "superseded"
	default:
		return "idle"
	}
}

// Loader hands a composed document to the sandbox. A nil return is the
// sandbox's load confirmation.
type Loader interface {
	Load(ctx context.Context, passID string, html string) error
}

// Releaser frees asset handles.
type Releaser interface {
	ReleaseAll(handles []string)
}

type pass struct {
	id  id.PassID
	doc *assemble.Document
}

// Manager serializes rebuild passes over the store.
type Manager struct {
	store     *vfs.Store
	assembler *assemble.Assembler
	loader    Loader
	releaser  Releaser
	entryPath string
	interval  time.Duration
	metrics   *monitoring.Metrics
	log       *logging.Logger

	mu      sync.Mutex
	timer   *time.Timer
	state   State
	pending *pass // materialized, not yet confirmed loaded
	loaded  *pass // active sandbox content

	rebuildMu sync.Mutex // serializes whole rebuild passes
}

// NewManager creates a lifecycle manager. Call Start to begin watching the
// store.
func NewManager(
	store *vfs.Store,
	assembler *assemble.Assembler,
	loader Loader,
	releaser Releaser,
	entryPath string,
	interval time.Duration,
	metrics *monitoring.Metrics,
	log *logging.Logger,
) *Manager {
	if log == nil {
		log = logging.NewDefault()
	}
	if interval <= 0 {
		interval = 300 * time.Millisecond
	}
	return &Manager{
		store:     store,
		assembler: assembler,
		loader:    loader,
		releaser:  releaser,
		entryPath: entryPath,
		interval:  interval,
		metrics:   metrics,
		log:       log,
	}
}

// Start subscribes to store mutations.
func (m *Manager) Start() {
	m.store.Subscribe(m.ProjectChanged)
}

// ProjectChanged schedules a debounced rebuild. Trailing edge: the timer
// resets on every call, so a burst of edits coalesces into one pass.
func (m *Manager) ProjectChanged() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.interval, m.rebuild)
}

// RebuildNow bypasses the debounce, for the initial build and tests.
func (m *Manager) RebuildNow() {
	m.rebuild()
}

// rebuild runs one full pass. Passes are serialized: only one is in flight.
func (m *Manager) rebuild() {
	m.rebuildMu.Lock()
	defer m.rebuildMu.Unlock()

	m.mu.Lock()
	// A pending pass that never loaded is superseded; the sandbox never
	// consumed it, so its handles can go immediately.
	if m.pending != nil {
		superseded := m.pending
		m.pending = nil
		m.state = StateSuperseded
		m.mu.Unlock()

		m.releaser.ReleaseAll(superseded.doc.Handles)
		if m.metrics != nil {
			m.metrics.PassesSuperseded.Inc()
		}
		m.log.Debug("pass superseded before load", zap.String("pass", superseded.id.String()))

		m.mu.Lock()
	}
	m.state = StateAssembling
	m.mu.Unlock()

	start := time.Now()
	snap := m.store.Snapshot()
	doc := m.assembler.Assemble(m.entryPath, snap)
	passID := id.NewPassID()

	m.mu.Lock()
	m.pending = &pass{id: passID, doc: doc}
	m.state = StateMaterialized
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RebuildsTotal.Inc()
		m.metrics.RebuildDuration.Observe(time.Since(start).Seconds())
	}
	m.log.Info("pass materialized",
		zap.String("pass", passID.String()),
		zap.Int("handles", len(doc.Handles)),
		zap.Bool("fallback", doc.Fallback),
	)

	go func() {
		if err := m.loader.Load(context.Background(), passID.String(), doc.HTML); err != nil {
			// The pass stays pending; its handles are released when the
			// next rebuild supersedes it.
			m.log.Warn("sandbox load failed", zap.String("pass", passID.String()), zap.Error(err))
			return
		}
		m.ConfirmLoaded(passID.String())
	}()
}

// ConfirmLoaded marks the pending pass as the active sandbox content. Only
// now are the previous Loaded pass's handles released. Stale confirmations
// (from a pass already superseded) are ignored.
func (m *Manager) ConfirmLoaded(passID string) {
	m.mu.Lock()
	if m.pending == nil || m.pending.id.String() != passID {
		m.mu.Unlock()
		return
	}
	prev := m.loaded
	m.loaded = m.pending
	m.pending = nil
	m.state = StateLoaded
	m.mu.Unlock()

	if prev != nil {
		m.releaser.ReleaseAll(prev.doc.Handles)
	}
	m.log.Debug("pass loaded", zap.String("pass", passID))
}

// State returns the current state machine position.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentDocument returns the active composed document: the loaded pass, or
// the materialized one while the first load is in flight.
func (m *Manager) CurrentDocument() *assemble.Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded != nil {
		return m.loaded.doc
	}
	if m.pending != nil {
		return m.pending.doc
	}
	return nil
}
