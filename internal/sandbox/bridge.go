package sandbox

import (
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/stackpad/preview/internal/logging"
)

// Bridge is the asynchronous message channel from sandbox to host. Messages
// on the bridge preserve send order; the host consumes them from Outbound.
type Bridge struct {
	out    chan []byte
	log    *logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewBridge creates a bridge with a bounded buffer. A full buffer drops the
// message rather than blocking the sandbox.
func NewBridge(buffer int, log *logging.Logger) *Bridge {
	if buffer <= 0 {
		buffer = 256
	}
	if log == nil {
		log = logging.NewDefault()
	}
	return &Bridge{
		out: make(chan []byte, buffer),
		log: log,
	}
}

// Post marshals and enqueues an envelope.
func (b *Bridge) Post(env Envelope) {
	data, err := sonic.Marshal(env)
	if err != nil {
		b.log.Error("envelope marshal failed", zap.Error(err))
		return
	}
	b.Forward(data)
}

// Forward enqueues a pre-marshaled message, as posted by sandbox-side code.
func (b *Bridge) Forward(raw []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	select {
	case b.out <- raw:
	default:
		b.log.Warn("bridge buffer full, message dropped")
	}
}

// Outbound returns the host-side read end of the bridge.
func (b *Bridge) Outbound() <-chan []byte {
	return b.out
}

// Close stops the bridge. Close after the sandbox has shut down; messages
// posted afterwards are discarded.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.out)
}
