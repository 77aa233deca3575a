package router

import (
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpad/preview/internal/logging"
	"github.com/stackpad/preview/internal/sandbox"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Render(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *captureSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func newTestRouter() (*Router, *captureSink) {
	sink := &captureSink{}
	return New(sink, nil, logging.NewNop()), sink
}

func marshal(t *testing.T, env sandbox.Envelope) []byte {
	t.Helper()
	raw, err := sonic.Marshal(env)
	require.NoError(t, err)
	return raw
}

func TestClassifiesConsole(t *testing.T) {
	r, sink := newTestRouter()

	r.HandleSandboxMessage(marshal(t, sandbox.Envelope{Console: true, Level: "warn", Text: "careful"}))

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, KindConsole, events[0].Kind)
	assert.Equal(t, "warn", events[0].Level)
	assert.Equal(t, "careful", events[0].Text)
}

func TestClassifiesRuntimeError(t *testing.T) {
	r, sink := newTestRouter()

	r.HandleSandboxMessage(marshal(t, sandbox.Envelope{
		RuntimeError: true,
		Payload:      &sandbox.ErrorPayload{Message: "boom", Filename: "app.js", Lineno: 3},
	}))

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, KindRuntimeError, events[0].Kind)
	assert.Equal(t, "boom", events[0].Text)
	assert.Equal(t, "app.js", events[0].Source)
	assert.Equal(t, 3, events[0].Line)
}

// The benign ResizeObserver warning is dropped at every inbound channel.
func TestBenignNoiseFilteredEverywhere(t *testing.T) {
	r, sink := newTestRouter()
	noise := "ResizeObserver loop completed with undelivered notifications."

	r.HandleSandboxMessage(marshal(t, sandbox.Envelope{Console: true, Level: "error", Text: noise}))
	r.HandleSandboxMessage(marshal(t, sandbox.Envelope{
		RuntimeError: true,
		Payload:      &sandbox.ErrorPayload{Message: noise},
	}))
	r.HandleSandboxMessage(marshal(t, sandbox.Envelope{PromiseRejection: true, Message: noise}))
	r.HandleWindowError(noise, "", 0, 0)
	r.HandleUnhandledRejection(noise, "")

	assert.Empty(t, sink.all())
}

func TestMalformedMessageBecomesNotice(t *testing.T) {
	r, sink := newTestRouter()

	r.HandleSandboxMessage([]byte("{not json"))
	r.HandleSandboxMessage(marshal(t, sandbox.Envelope{})) // no variant tag set

	events := sink.all()
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, KindNotice, e.Kind)
	}
}

func TestShimReadyNotRendered(t *testing.T) {
	r, sink := newTestRouter()
	r.HandleSandboxMessage(marshal(t, sandbox.Envelope{ShimReady: true}))
	assert.Empty(t, sink.all())
}

// During a session, error-class events buffer; console stays live. Ending
// the session replays buffered events marked interactive.
func TestSessionBuffersErrors(t *testing.T) {
	r, sink := newTestRouter()
	r.StartSession()
	assert.True(t, r.SessionActive())

	r.HandleSandboxMessage(marshal(t, sandbox.Envelope{Console: true, Level: "log", Text: "live"}))
	r.HandleWindowError("deferred error", "app.js", 1, 1)
	r.HandleUnhandledRejection("deferred rejection", "")

	events := sink.all()
	require.Len(t, events, 1, "only console renders during a session")
	assert.Equal(t, KindConsole, events[0].Kind)

	r.EndSession()
	assert.False(t, r.SessionActive())

	events = sink.all()
	require.Len(t, events, 3)
	assert.Equal(t, KindRuntimeError, events[1].Kind)
	assert.True(t, events[1].Interactive)
	assert.Equal(t, KindPromiseRejection, events[2].Kind)
	assert.True(t, events[2].Interactive)
}

func TestEndSessionWithoutBuffer(t *testing.T) {
	r, sink := newTestRouter()
	r.StartSession()
	r.EndSession()
	assert.Empty(t, sink.all())
}

func TestSanitizesMarkupInText(t *testing.T) {
	r, sink := newTestRouter()

	r.HandleSandboxMessage(marshal(t, sandbox.Envelope{
		Console: true, Level: "log", Text: `<img src=x onerror=alert(1)>done`,
	}))

	events := sink.all()
	require.Len(t, events, 1)
	assert.NotContains(t, events[0].Text, "<img")
	assert.Contains(t, events[0].Text, "done")
}

func TestExecResultRouting(t *testing.T) {
	r, sink := newTestRouter()

	r.HandleSandboxMessage(marshal(t, sandbox.Envelope{ExecResult: true, Value: "42"}))
	r.HandleSandboxMessage(marshal(t, sandbox.Envelope{ExecResult: true, Error: "boom"}))

	events := sink.all()
	require.Len(t, events, 2)
	assert.Equal(t, "42", events[0].Text)
	assert.Equal(t, "error", events[1].Level)
	assert.Equal(t, "boom", events[1].Text)
}

func TestLoadedRouting(t *testing.T) {
	r, sink := newTestRouter()

	r.HandleSandboxMessage(marshal(t, sandbox.Envelope{Loaded: true, PassID: "pass-01"}))

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, KindLoaded, events[0].Kind)
	assert.Equal(t, "pass-01", events[0].PassID)
}
