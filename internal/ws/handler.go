// Package ws streams preview events to connected editor clients and accepts
// exec and session commands from them.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/stackpad/preview/internal/logging"
	"github.com/stackpad/preview/internal/monitoring"
	"github.com/stackpad/preview/internal/router"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

// Executor runs an ad-hoc command in the current sandbox document.
type Executor interface {
	Exec(ctx context.Context, code string) error
}

// Sessioner controls agent-session buffering on the message router.
type Sessioner interface {
	StartSession()
	EndSession()
}

// Message is an inbound client command.
type Message struct {
	Type string `json:"type"`
	Code string `json:"code,omitempty"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes
}

func (c *client) send(data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(data)
}

// Handler manages WebSocket connections and fans preview events out to all
// of them. It is the router's sink.
type Handler struct {
	executor  Executor
	sessioner Sessioner
	metrics   *monitoring.Metrics
	log       *logging.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHandler creates a WebSocket handler. The sessioner is attached
// afterwards with SetSessioner, since the message router takes this handler
// as its sink.
func NewHandler(executor Executor, metrics *monitoring.Metrics, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Handler{
		executor: executor,
		metrics:  metrics,
		log:      log,
		clients:  make(map[*client]struct{}),
	}
}

// SetSessioner attaches the session controller. Must be called before the
// handler accepts connections.
func (h *Handler) SetSessioner(s Sessioner) {
	h.sessioner = s
}

// Render broadcasts a classified preview event to every connected client.
func (h *Handler) Render(event router.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if err := c.send(map[string]interface{}{
			"type":      "preview_event",
			"event":     event,
			"timestamp": time.Now().Unix(),
		}); err != nil {
			h.log.Debug("event broadcast failed", zap.Error(err))
			continue
		}
		if h.metrics != nil {
			h.metrics.WSMessages.WithLabelValues("out").Inc()
		}
	}
}

// HandleConnection handles WebSocket upgrade and messages.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
	}

	defer func() {
		h.mu.Lock()
		delete(h.clients, cl)
		h.mu.Unlock()
		if h.metrics != nil {
			h.metrics.WSConnections.Dec()
		}
		conn.Close()
	}()

	reqCtx := c.Request.Context()

	cl.send(map[string]interface{}{
		"type":    "system",
		"message": "Connected to preview runtime",
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			h.log.Debug("websocket read error", zap.Error(err))
			break
		}
		if h.metrics != nil {
			h.metrics.WSMessages.WithLabelValues("in").Inc()
		}

		switch msg.Type {
		case "exec":
			h.handleExec(cl, msg, reqCtx)
		case "session_start":
			if h.sessioner != nil {
				h.sessioner.StartSession()
			}
			cl.send(map[string]interface{}{"type": "session_started"})
		case "session_end":
			if h.sessioner != nil {
				h.sessioner.EndSession()
			}
			cl.send(map[string]interface{}{"type": "session_ended"})
		case "ping":
			cl.send(map[string]interface{}{"type": "pong"})
		default:
			h.sendError(cl, "unknown message type")
		}
	}
}

func (h *Handler) handleExec(cl *client, msg Message, reqCtx context.Context) {
	if msg.Code == "" {
		h.sendError(cl, "exec requires code")
		return
	}
	if h.metrics != nil {
		h.metrics.SandboxExecs.Inc()
	}

	ctx, cancel := context.WithTimeout(reqCtx, 30*time.Second)
	defer cancel()

	if err := h.executor.Exec(ctx, msg.Code); err != nil {
		h.sendError(cl, err.Error())
	}
	// The result arrives asynchronously as an execResult preview event.
}

func (h *Handler) sendError(cl *client, msg string) error {
	return cl.send(map[string]interface{}{
		"type":      "error",
		"message":   msg,
		"timestamp": time.Now().Unix(),
	})
}
