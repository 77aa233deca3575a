package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpad/preview/internal/logging"
	"github.com/stackpad/preview/internal/router"
)

type fakeExecutor struct{ code chan string }

func (f *fakeExecutor) Exec(ctx context.Context, code string) error {
	f.code <- code
	return nil
}

type fakeSessioner struct{ started, ended chan struct{} }

func (f *fakeSessioner) StartSession() { f.started <- struct{}{} }
func (f *fakeSessioner) EndSession()   { f.ended <- struct{}{} }

type wsFixture struct {
	handler   *Handler
	executor  *fakeExecutor
	sessioner *fakeSessioner
	server    *httptest.Server
	conn      *websocket.Conn
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	executor := &fakeExecutor{code: make(chan string, 1)}
	sessioner := &fakeSessioner{started: make(chan struct{}, 1), ended: make(chan struct{}, 1)}
	handler := NewHandler(executor, nil, logging.NewNop())
	handler.SetSessioner(sessioner)

	engine := gin.New()
	engine.GET("/stream", handler.HandleConnection)
	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Consume the welcome message.
	var welcome map[string]interface{}
	require.NoError(t, conn.ReadJSON(&welcome))
	require.Equal(t, "system", welcome["type"])

	return &wsFixture{handler: handler, executor: executor, sessioner: sessioner, server: server, conn: conn}
}

func (f *wsFixture) read(t *testing.T) map[string]interface{} {
	t.Helper()
	f.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]interface{}
	require.NoError(t, f.conn.ReadJSON(&msg))
	return msg
}

func TestPingPong(t *testing.T) {
	f := newWSFixture(t)

	require.NoError(t, f.conn.WriteJSON(Message{Type: "ping"}))
	assert.Equal(t, "pong", f.read(t)["type"])
}

func TestExecCommand(t *testing.T) {
	f := newWSFixture(t)

	require.NoError(t, f.conn.WriteJSON(Message{Type: "exec", Code: "1+1"}))
	select {
	case code := <-f.executor.code:
		assert.Equal(t, "1+1", code)
	case <-time.After(2 * time.Second):
		t.Fatal("exec never reached the executor")
	}
}

func TestExecRequiresCode(t *testing.T) {
	f := newWSFixture(t)

	require.NoError(t, f.conn.WriteJSON(Message{Type: "exec"}))
	assert.Equal(t, "error", f.read(t)["type"])
}

func TestSessionCommands(t *testing.T) {
	f := newWSFixture(t)

	require.NoError(t, f.conn.WriteJSON(Message{Type: "session_start"}))
	assert.Equal(t, "session_started", f.read(t)["type"])
	<-f.sessioner.started

	require.NoError(t, f.conn.WriteJSON(Message{Type: "session_end"}))
	assert.Equal(t, "session_ended", f.read(t)["type"])
	<-f.sessioner.ended
}

func TestUnknownMessageType(t *testing.T) {
	f := newWSFixture(t)

	require.NoError(t, f.conn.WriteJSON(Message{Type: "bogus"}))
	assert.Equal(t, "error", f.read(t)["type"])
}

// Render fans a classified preview event out to connected clients.
func TestRenderBroadcast(t *testing.T) {
	f := newWSFixture(t)

	f.handler.Render(router.Event{Kind: router.KindConsole, Level: "log", Text: "hello"})

	msg := f.read(t)
	require.Equal(t, "preview_event", msg["type"])
	event, ok := msg["event"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "console", event["kind"])
	assert.Equal(t, "hello", event["text"])
}
