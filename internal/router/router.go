// Package router classifies sandbox messages and decides when they reach
// the UI.
//
// Messages arrive on three inbound channels: structured bridge messages,
// window error events, and unhandled-rejection events. A known-benign
// diagnostic (the ResizeObserver loop warning) is filtered at the earliest
// point on all three so it never reaches the UI. While an autonomous edit
// session is active, error-class messages are buffered and replayed when the
// session completes, so error UI never interleaves with rapid automated
// edits; console output always renders live. Malformed messages become a
// generic notice rather than disappearing.
package router

import (
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/stackpad/preview/internal/logging"
	"github.com/stackpad/preview/internal/monitoring"
	"github.com/stackpad/preview/internal/sandbox"
)

// EventKind classifies a rendered event.
type EventKind string

const (
	KindConsole          EventKind = "console"
	KindRuntimeError     EventKind = "runtimeError"
	KindPromiseRejection EventKind = "promiseRejection"
	KindResourceBlocked  EventKind = "resourceBlocked"
	KindExecResult       EventKind = "execResult"
	KindLoaded           EventKind = "loaded"
	KindNotice           EventKind = "notice"
)

// Event is a classified, UI-ready message.
type Event struct {
	Kind        EventKind `json:"kind"`
	Level       string    `json:"level,omitempty"`
	Text        string    `json:"text,omitempty"`
	URL         string    `json:"url,omitempty"`
	Source      string    `json:"source,omitempty"`
	Line        int       `json:"line,omitempty"`
	Col         int       `json:"col,omitempty"`
	Stack       string    `json:"stack,omitempty"`
	PassID      string    `json:"passId,omitempty"`
	Interactive bool      `json:"interactive,omitempty"` // replayed after a session
}

// Sink renders classified events.
type Sink interface {
	Render(Event)
}

// benignNoiseToken marks the ResizeObserver loop warning, a harmless
// browser diagnostic that would otherwise spam the error feed.
const benignNoiseToken = "ResizeObserver loop"

// Router is the host-side message classifier.
type Router struct {
	sink      Sink
	sanitizer *bluemonday.Policy
	metrics   *monitoring.Metrics
	log       *logging.Logger

	mu            sync.Mutex
	sessionActive bool
	buffer        []Event
}

// New creates a router rendering into sink.
func New(sink Sink, metrics *monitoring.Metrics, log *logging.Logger) *Router {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Router{
		sink:      sink,
		sanitizer: bluemonday.StrictPolicy(),
		metrics:   metrics,
		log:       log,
	}
}

// HandleSandboxMessage ingests one structured message from the bridge.
func (r *Router) HandleSandboxMessage(raw []byte) {
	var env sandbox.Envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		r.dispatch(Event{Kind: KindNotice, Text: "unrecognized sandbox message"})
		r.log.Debug("malformed sandbox message", zap.Error(err), zap.ByteString("raw", raw))
		return
	}

	switch {
	case env.Console:
		if isBenignNoise(env.Text) {
			return
		}
		r.dispatch(Event{Kind: KindConsole, Level: env.Level, Text: r.clean(env.Text)})

	case env.RuntimeError:
		event := Event{Kind: KindRuntimeError}
		if env.Payload != nil {
			event.Text = r.clean(env.Payload.Message)
			event.Source = env.Payload.Filename
			event.Line = env.Payload.Lineno
			event.Col = env.Payload.Colno
			event.Stack = env.Payload.Stack
		}
		if isBenignNoise(event.Text) {
			return
		}
		if r.metrics != nil {
			r.metrics.SandboxErrors.Inc()
		}
		r.dispatch(event)

	case env.PromiseRejection:
		if isBenignNoise(env.Message) {
			return
		}
		if r.metrics != nil {
			r.metrics.SandboxErrors.Inc()
		}
		r.dispatch(Event{Kind: KindPromiseRejection, Text: r.clean(env.Message), Stack: env.Stack})

	case env.ResourceBlocked:
		r.dispatch(Event{Kind: KindResourceBlocked, URL: env.URL})

	case env.ExecResult:
		event := Event{Kind: KindExecResult, Text: r.clean(env.Value)}
		if env.Error != "" {
			event.Level = "error"
			event.Text = r.clean(env.Error)
		}
		r.dispatch(event)

	case env.Loaded:
		r.dispatch(Event{Kind: KindLoaded, PassID: env.PassID})

	case env.ShimReady:
		// Internal readiness signal, not rendered.

	default:
		r.dispatch(Event{Kind: KindNotice, Text: "unrecognized sandbox message"})
	}
}

// HandleWindowError ingests a window error event.
func (r *Router) HandleWindowError(message, source string, line, col int) {
	if isBenignNoise(message) {
		return
	}
	r.dispatch(Event{
		Kind:   KindRuntimeError,
		Text:   r.clean(message),
		Source: source,
		Line:   line,
		Col:    col,
	})
}

// HandleUnhandledRejection ingests an unhandled-rejection event.
func (r *Router) HandleUnhandledRejection(message, stack string) {
	if isBenignNoise(message) {
		return
	}
	r.dispatch(Event{Kind: KindPromiseRejection, Text: r.clean(message), Stack: stack})
}

// StartSession begins buffering error-class events for an autonomous edit
// session.
func (r *Router) StartSession() {
	r.mu.Lock()
	r.sessionActive = true
	r.mu.Unlock()
	r.log.Debug("agent session started, buffering errors")
}

// EndSession replays buffered events as interactive items.
func (r *Router) EndSession() {
	r.mu.Lock()
	r.sessionActive = false
	buffered := r.buffer
	r.buffer = nil
	r.mu.Unlock()

	for _, event := range buffered {
		event.Interactive = true
		r.sink.Render(event)
	}
	r.log.Debug("agent session ended", zap.Int("replayed", len(buffered)))
}

// SessionActive reports whether a session is buffering.
func (r *Router) SessionActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionActive
}

// dispatch renders an event, or buffers error-class events during a session.
// Console output is never buffered.
func (r *Router) dispatch(event Event) {
	if event.Kind == KindRuntimeError || event.Kind == KindPromiseRejection {
		r.mu.Lock()
		if r.sessionActive {
			r.buffer = append(r.buffer, event)
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()
	}
	r.sink.Render(event)
}

// clean strips any markup from text headed for the UI.
func (r *Router) clean(text string) string {
	if !strings.ContainsAny(text, "<>") {
		return text
	}
	return r.sanitizer.Sanitize(text)
}

func isBenignNoise(text string) bool {
	return strings.Contains(text, benignNoiseToken)
}
