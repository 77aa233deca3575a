package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/stackpad/preview/internal/logging"
)

func newTestRuntime(t *testing.T, config Config) (*Runtime, *Bridge) {
	t.Helper()
	bridge := NewBridge(64, logging.NewNop())
	rt, err := New(config, bridge, logging.NewNop())
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	t.Cleanup(func() { rt.Close() })
	return rt, bridge
}

func drainEnvelopes(t *testing.T, bridge *Bridge) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case raw := <-bridge.Outbound():
			var env Envelope
			if err := sonic.Unmarshal(raw, &env); err != nil {
				t.Fatalf("bad envelope %q: %v", raw, err)
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestRuntimeExec(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		wantValue string
		wantError bool
	}{
		{name: "number", code: "40 + 2", wantValue: "42"},
		{name: "string", code: "'hello'.toUpperCase()", wantValue: "HELLO"},
		{name: "undefined", code: "void 0", wantValue: "undefined"},
		{name: "throw", code: "throw new Error('boom')", wantError: true},
		{name: "syntax error", code: "((", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, bridge := newTestRuntime(t, DefaultConfig())
			rt.Exec(context.Background(), tt.code)

			envs := drainEnvelopes(t, bridge)
			if len(envs) != 1 || !envs[len(envs)-1].ExecResult {
				t.Fatalf("expected one execResult envelope, got %+v", envs)
			}
			env := envs[0]
			if tt.wantError {
				if env.Error == "" {
					t.Errorf("expected error, got value %q", env.Value)
				}
				return
			}
			if env.Value != tt.wantValue {
				t.Errorf("Exec(%q) value = %q, want %q", tt.code, env.Value, tt.wantValue)
			}
		})
	}
}

func TestRuntimeConsoleCapture(t *testing.T) {
	rt, bridge := newTestRuntime(t, DefaultConfig())

	rt.Exec(context.Background(), "console.log('a', 1); console.error('bad')")

	envs := drainEnvelopes(t, bridge)
	var console []Envelope
	for _, e := range envs {
		if e.Console {
			console = append(console, e)
		}
	}
	if len(console) != 2 {
		t.Fatalf("expected 2 console envelopes, got %d", len(console))
	}
	if console[0].Level != "log" || console[0].Text != "a 1" {
		t.Errorf("console[0] = %+v", console[0])
	}
	if console[1].Level != "error" || console[1].Text != "bad" {
		t.Errorf("console[1] = %+v", console[1])
	}
}

func TestRuntimeSecurity(t *testing.T) {
	dangerous := []struct {
		name string
		code string
	}{
		{name: "require blocked", code: "require('fs')"},
		{name: "process blocked", code: "process.exit(1)"},
		{name: "module blocked", code: "module.exports = {}"},
	}

	for _, tt := range dangerous {
		t.Run(tt.name, func(t *testing.T) {
			rt, bridge := newTestRuntime(t, DefaultConfig())
			rt.Exec(context.Background(), tt.code)

			envs := drainEnvelopes(t, bridge)
			if len(envs) == 0 || envs[len(envs)-1].Error == "" {
				t.Errorf("dangerous code %q did not fail: %+v", tt.code, envs)
			}
		})
	}
}

func TestRuntimeTimeout(t *testing.T) {
	config := DefaultConfig()
	config.Timeout = 100 * time.Millisecond
	rt, bridge := newTestRuntime(t, config)

	start := time.Now()
	rt.Exec(context.Background(), "while(true){}")
	elapsed := time.Since(start)

	if elapsed > 5*time.Second {
		t.Fatalf("interrupt took %v", elapsed)
	}
	envs := drainEnvelopes(t, bridge)
	if len(envs) != 1 || envs[0].Error == "" {
		t.Fatalf("expected an exec error envelope, got %+v", envs)
	}
	if !strings.Contains(envs[0].Error, "timeout") {
		t.Errorf("error = %q, want timeout interrupt", envs[0].Error)
	}
}

func TestLoadDocumentRunsScriptsInOrder(t *testing.T) {
	rt, bridge := newTestRuntime(t, DefaultConfig())
	html := `<html><body>
		<script>console.log('first')</script>
		<script>console.log('second')</script>
	</body></html>`

	if err := rt.LoadDocument(context.Background(), html); err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}

	var texts []string
	for _, e := range drainEnvelopes(t, bridge) {
		if e.Console {
			texts = append(texts, e.Text)
		}
	}
	if len(texts) != 2 || texts[0] != "first" || texts[1] != "second" {
		t.Errorf("console order = %v", texts)
	}
}

// A failing script must not abort the document load; later scripts still run
// and the failure surfaces as a runtime error message.
func TestLoadDocumentSurvivesScriptError(t *testing.T) {
	rt, bridge := newTestRuntime(t, DefaultConfig())
	html := `<html><body>
		<script>throw new Error('script one broke')</script>
		<script>console.log('still ran')</script>
	</body></html>`

	if err := rt.LoadDocument(context.Background(), html); err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}

	envs := drainEnvelopes(t, bridge)
	var sawError, sawConsole bool
	for _, e := range envs {
		if e.RuntimeError && e.Payload != nil && strings.Contains(e.Payload.Message, "script one broke") {
			sawError = true
		}
		if e.Console && e.Text == "still ran" {
			sawConsole = true
		}
	}
	if !sawError {
		t.Error("runtime error was not reported")
	}
	if !sawConsole {
		t.Error("second script did not run")
	}
}

func TestLoadDocumentDispatchesLifecycleEvents(t *testing.T) {
	rt, bridge := newTestRuntime(t, DefaultConfig())
	html := `<html><body><script>
		window.addEventListener('DOMContentLoaded', function(){ console.log('dcl') });
		window.addEventListener('load', function(){ console.log('loaded') });
	</script></body></html>`

	if err := rt.LoadDocument(context.Background(), html); err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}

	var texts []string
	for _, e := range drainEnvelopes(t, bridge) {
		if e.Console {
			texts = append(texts, e.Text)
		}
	}
	if len(texts) != 2 || texts[0] != "dcl" || texts[1] != "loaded" {
		t.Errorf("lifecycle events = %v", texts)
	}
}

func TestRuntimeFetchDereference(t *testing.T) {
	config := DefaultConfig()
	config.Dereference = func(url string) ([]byte, string, bool) {
		if url == "/api/assets/01TEST" {
			return []byte("payload"), "text/plain", true
		}
		return nil, "", false
	}
	rt, bridge := newTestRuntime(t, config)

	rt.Exec(context.Background(), `
		var got = '';
		fetch('/api/assets/01TEST').then(function(res){ return res.text() })
			.then(function(body){ got = body; });
		got
	`)

	// goja runs promise jobs to completion before RunString returns, so the
	// handler has fired. Verify through a second exec.
	rt.Exec(context.Background(), "got")

	envs := drainEnvelopes(t, bridge)
	last := envs[len(envs)-1]
	if !last.ExecResult || last.Value != "payload" {
		t.Errorf("fetch result = %+v", last)
	}
}

// Unresolvable network fetches are blocked and reported, never performed.
func TestRuntimeFetchBlocksNetwork(t *testing.T) {
	rt, bridge := newTestRuntime(t, DefaultConfig())

	rt.Exec(context.Background(), `fetch('https://example.com/x').catch(function(){}); 0`)

	var blocked bool
	for _, e := range drainEnvelopes(t, bridge) {
		if e.ResourceBlocked && e.URL == "https://example.com/x" {
			blocked = true
		}
	}
	if !blocked {
		t.Error("expected a resourceBlocked envelope")
	}
}

func TestRuntimeUnhandledRejection(t *testing.T) {
	rt, bridge := newTestRuntime(t, DefaultConfig())

	rt.Exec(context.Background(), `Promise.reject(new Error('ignored')); 0`)

	var saw bool
	for _, e := range drainEnvelopes(t, bridge) {
		if e.PromiseRejection && strings.Contains(e.Message, "ignored") {
			saw = true
		}
	}
	if !saw {
		t.Error("expected a promiseRejection envelope")
	}
}

func TestRuntimeResetClearsState(t *testing.T) {
	rt, bridge := newTestRuntime(t, DefaultConfig())

	rt.Exec(context.Background(), "var leaked = 'value'; leaked")
	if err := rt.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	drainEnvelopes(t, bridge)

	rt.Exec(context.Background(), "typeof leaked")
	envs := drainEnvelopes(t, bridge)
	if len(envs) != 1 || envs[0].Value != "undefined" {
		t.Errorf("state leaked across Reset: %+v", envs)
	}
}
