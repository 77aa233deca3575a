package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/stackpad/preview/internal/logging"
)

// Runtime wraps a goja VM with isolation controls and the preview browser
// surface.
type Runtime struct {
	vm     *goja.Runtime
	config Config
	bridge *Bridge
	log    *logging.Logger
	mu     sync.Mutex
}

// New creates a sandboxed runtime posting to bridge.
func New(config Config, bridge *Bridge, log *logging.Logger) (*Runtime, error) {
	if bridge == nil {
		return nil, fmt.Errorf("bridge required")
	}
	if log == nil {
		log = logging.NewDefault()
	}

	r := &Runtime{
		vm:     goja.New(),
		config: config,
		bridge: bridge,
		log:    log,
	}

	if err := r.setupGlobals(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadDocument executes the composed document's inline scripts in document
// order. Script failures are reported as runtime errors and never abort the
// load; the document stays up with whatever executed successfully.
func (r *Runtime) LoadDocument(ctx context.Context, html string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.injectDocument(ParseDOM(html))

	scripts, err := extractScripts(html)
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}

	for i, script := range scripts {
		if _, err := r.run(ctx, script); err != nil {
			r.postScriptError(err)
			r.log.Debug("document script failed",
				zap.Int("index", i),
				zap.Error(err),
			)
		}
	}

	// Late listeners registered by the scripts themselves.
	for _, event := range []string{"DOMContentLoaded", "load"} {
		if _, err := r.run(ctx, fmt.Sprintf("__dispatchEvent(%q, {})", event)); err != nil {
			r.postScriptError(err)
		}
	}

	return nil
}

// Exec evaluates an ad-hoc code string in sandbox scope and reports the
// result or error through the exec-result channel. Evaluation failures are
// reported, never returned: a bad command must not disturb the host.
func (r *Runtime) Exec(ctx context.Context, code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	val, err := r.run(ctx, code)
	if err != nil {
		r.bridge.Post(Envelope{ExecResult: true, Error: err.Error()})
		return
	}

	text := "undefined"
	if val != nil && !goja.IsUndefined(val) && !goja.IsNull(val) {
		text = fmt.Sprintf("%v", val.Export())
	}
	r.bridge.Post(Envelope{ExecResult: true, Value: text})
}

// run executes script with the configured timeout interrupt.
func (r *Runtime) run(ctx context.Context, script string) (goja.Value, error) {
	timer := time.NewTimer(r.config.Timeout)
	defer timer.Stop()
	done := make(chan struct{})

	go func() {
		select {
		case <-timer.C:
			r.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	val, err := r.vm.RunString(script)
	close(done)
	return val, err
}

// Reset clears all state by replacing the VM.
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = goja.New()
	return r.setupGlobals()
}

// Close releases the VM.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = nil
	return nil
}

// setupGlobals configures isolation and the browser surface.
func (r *Runtime) setupGlobals() error {
	if r.config.MaxCallStack > 0 {
		r.vm.SetMaxCallStackSize(r.config.MaxCallStack)
	}

	// Remove Node-style escape hatches.
	r.vm.Set("require", goja.Undefined())
	r.vm.Set("process", goja.Undefined())
	r.vm.Set("module", goja.Undefined())
	r.vm.Set("exports", goja.Undefined())

	// Host message channel. Sandbox-side code posts pre-marshaled JSON.
	host := r.vm.NewObject()
	host.Set("postMessage", func(raw string) {
		r.bridge.Forward([]byte(raw))
	})
	r.vm.Set("__host", host)

	// Console forwards directly; the __forwarded flag tells the shim not to
	// wrap it a second time.
	if r.config.EnableConsole {
		console := r.vm.NewObject()
		for _, level := range []string{"log", "info", "warn", "error", "debug"} {
			console.Set(level, r.makeConsoleFunc(level))
		}
		console.Set("__forwarded", true)
		r.vm.Set("console", console)
	}

	// Offline fetch backend: asset handles and data URIs only.
	r.vm.Set("__goFetch", func(url string) map[string]interface{} {
		if r.config.Dereference != nil {
			if data, mime, ok := r.config.Dereference(url); ok {
				return map[string]interface{}{"ok": true, "body": string(data), "mime": mime}
			}
		}
		lower := strings.ToLower(url)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			r.bridge.Post(Envelope{ResourceBlocked: true, URL: url})
		}
		return map[string]interface{}{"ok": false}
	})

	// Unhandled rejections surface as their own message variant.
	r.vm.SetPromiseRejectionTracker(func(p *goja.Promise, op goja.PromiseRejectionOperation) {
		if op != goja.PromiseRejectionReject {
			return
		}
		msg := "unhandled promise rejection"
		var stack string
		if result := p.Result(); result != nil && !goja.IsUndefined(result) && !goja.IsNull(result) {
			if obj, ok := result.(*goja.Object); ok {
				if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
					msg = m.String()
				}
				if s := obj.Get("stack"); s != nil && !goja.IsUndefined(s) {
					stack = s.String()
				}
			} else {
				msg = result.String()
			}
		}
		r.bridge.Post(Envelope{PromiseRejection: true, Message: msg, Stack: stack})
	})

	if _, err := r.vm.RunString(bootstrapJS); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	return nil
}

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		r.bridge.Post(Envelope{Console: true, Level: level, Text: strings.Join(parts, " ")})
		return goja.Undefined()
	}
}

// postScriptError reports an uncaught script failure. Goja exceptions carry
// the thrown value; interrupts and syntax errors only have a message.
func (r *Runtime) postScriptError(err error) {
	payload := &ErrorPayload{Type: "error", Message: err.Error()}
	if ex, ok := err.(*goja.Exception); ok {
		payload.Message = ex.Error()
		payload.Stack = ex.String()
	}
	r.bridge.Post(Envelope{RuntimeError: true, Payload: payload})

	// Document scripts may have installed their own error listeners.
	r.vm.Set("__lastErrorMessage", payload.Message)
	_, _ = r.vm.RunString(`__dispatchEvent('error', { message: __lastErrorMessage })`)
}

// injectDocument exposes the parsed document proxy to sandbox scripts.
func (r *Runtime) injectDocument(dom *DOM) {
	doc := r.vm.Get("document")
	obj, ok := doc.(*goja.Object)
	if !ok || obj == nil {
		return
	}

	obj.Set("getElementById", func(id string) interface{} {
		if elem := dom.ByID(id); elem != nil {
			return r.elementProxy(elem)
		}
		return nil
	})
	obj.Set("querySelector", func(selector string) interface{} {
		if elems := dom.Query(selector); len(elems) > 0 {
			return r.elementProxy(elems[0])
		}
		return nil
	})
	obj.Set("querySelectorAll", func(selector string) []interface{} {
		elems := dom.Query(selector)
		out := make([]interface{}, len(elems))
		for i, e := range elems {
			out[i] = r.elementProxy(e)
		}
		return out
	})
}

// elementProxy exposes one document element to scripts.
func (r *Runtime) elementProxy(elem *Element) map[string]interface{} {
	return map[string]interface{}{
		"tagName":     strings.ToUpper(elem.TagName),
		"id":          elem.ID,
		"className":   elem.ClassName,
		"textContent": elem.TextContent,
		"getAttribute": func(name string) interface{} {
			if v, ok := elem.Attributes[name]; ok {
				return v
			}
			return nil
		},
		"setAttribute": func(name, value string) {
			elem.SetAttribute(name, value)
		},
	}
}

// extractScripts returns inline script bodies in document order. Scripts
// with an unresolved src are skipped; the assembler inlines every
// store-local script before the document reaches the sandbox.
func extractScripts(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var scripts []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, hasSrc := s.Attr("src"); hasSrc {
			return
		}
		if t, ok := s.Attr("type"); ok && t != "" && !strings.Contains(t, "javascript") && t != "module" {
			return
		}
		if body := s.Text(); strings.TrimSpace(body) != "" {
			scripts = append(scripts, body)
		}
	})
	return scripts, nil
}
