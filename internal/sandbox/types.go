package sandbox

import "time"

// DereferenceFunc resolves a handle URL (an /api/assets path or a data URI)
// to bytes and a MIME type. Returning false means the reference is not
// locally dereferenceable.
type DereferenceFunc func(url string) ([]byte, string, bool)

// Config defines sandbox configuration.
type Config struct {
	Timeout       time.Duration // per-script execution timeout
	MaxCallStack  int           // goja call stack limit
	EnableConsole bool
	Dereference   DereferenceFunc
}

// DefaultConfig returns a production-ready sandbox configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		MaxCallStack:  1024,
		EnableConsole: true,
	}
}

// Envelope mirrors the cross-context message shapes. Exactly one of the
// boolean tags is set per message.
type Envelope struct {
	Console          bool `json:"console,omitempty"`
	RuntimeError     bool `json:"runtimeError,omitempty"`
	PromiseRejection bool `json:"promiseRejection,omitempty"`
	ResourceBlocked  bool `json:"resourceBlocked,omitempty"`
	ExecResult       bool `json:"execResult,omitempty"`
	Loaded           bool `json:"loaded,omitempty"`
	ShimReady        bool `json:"shimReady,omitempty"`

	Level   string        `json:"level,omitempty"`
	Text    string        `json:"text,omitempty"`
	URL     string        `json:"url,omitempty"`
	Value   string        `json:"value,omitempty"`
	Error   string        `json:"error,omitempty"`
	Message string        `json:"message,omitempty"`
	Stack   string        `json:"stack,omitempty"`
	Payload *ErrorPayload `json:"payload,omitempty"`
	PassID  string        `json:"passId,omitempty"`
}

// ErrorPayload carries runtime error details.
type ErrorPayload struct {
	Type     string `json:"type,omitempty"`
	Message  string `json:"message"`
	Filename string `json:"filename,omitempty"`
	Lineno   int    `json:"lineno,omitempty"`
	Colno    int    `json:"colno,omitempty"`
	Stack    string `json:"stack,omitempty"`
}
