// Package server wires the preview runtime together: store, assembler,
// sandbox pool, lifecycle manager, message router, and the HTTP/WebSocket
// surfaces.
package server

import (
	"context"
	"encoding/base64"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/stackpad/preview/internal/api/http"
	"github.com/stackpad/preview/internal/api/middleware"
	"github.com/stackpad/preview/internal/assemble"
	"github.com/stackpad/preview/internal/infrastructure/config"
	"github.com/stackpad/preview/internal/lifecycle"
	"github.com/stackpad/preview/internal/logging"
	"github.com/stackpad/preview/internal/materialize"
	"github.com/stackpad/preview/internal/monitoring"
	"github.com/stackpad/preview/internal/router"
	"github.com/stackpad/preview/internal/sandbox"
	"github.com/stackpad/preview/internal/shim"
	"github.com/stackpad/preview/internal/vfs"
	"github.com/stackpad/preview/internal/ws"
)

// Server wraps the HTTP server and all runtime dependencies.
type Server struct {
	engine     *gin.Engine
	httpServer *stdhttp.Server

	store      *vfs.Store
	registry   *materialize.Registry
	supervisor *sandbox.Supervisor
	manager    *lifecycle.Manager
	msgRouter  *router.Router
	bridge     *sandbox.Bridge

	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics

	pumpDone chan struct{}
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing preview runtime",
		zap.String("port", cfg.Server.Port),
		zap.String("entry", cfg.Preview.EntryPath),
		zap.Duration("debounce", cfg.Preview.DebounceInterval),
	)

	metrics := monitoring.NewMetrics()

	store := vfs.NewStore(logger)
	registry := materialize.NewRegistry(logger)
	materializer := materialize.New(registry, logger)
	assembler := assemble.New(materializer, shim.Options{
		EnableBackendMock: cfg.Preview.EnableBackendMock,
	}, logger)

	bridge := sandbox.NewBridge(256, logger)

	sandboxCfg := sandbox.Config{
		Timeout:       cfg.Preview.SandboxTimeout,
		MaxCallStack:  1024,
		EnableConsole: true,
		Dereference:   dereferencer(registry),
	}
	pool, err := sandbox.NewPool(sandboxCfg, cfg.Preview.SandboxPoolSize, bridge, logger)
	if err != nil {
		return nil, err
	}
	supervisor := sandbox.NewSupervisor(pool, bridge, logger)

	manager := lifecycle.NewManager(
		store, assembler, supervisor, registry,
		cfg.Preview.EntryPath, cfg.Preview.DebounceInterval,
		metrics, logger,
	)
	manager.Start()

	// The WebSocket handler is the router's sink; the router is the
	// handler's session controller.
	wsHandler := ws.NewHandler(supervisor, metrics, logger)
	msgRouter := router.New(wsHandler, metrics, logger)
	wsHandler.SetSessioner(msgRouter)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(metrics.Middleware())
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		engine.Use(middleware.RateLimit(cfg.RateLimit))
	}

	handlers := apihttp.NewHandlers(store, manager, registry, supervisor, msgRouter, metrics, logger)

	engine.GET("/", handlers.Root)
	engine.GET("/health", handlers.Health)
	engine.GET("/metrics", metrics.Handler())

	api := engine.Group("/api")
	{
		api.GET("/files", handlers.ListFiles)
		api.PUT("/files/*path", handlers.PutFile)
		api.GET("/files/*path", handlers.GetFile)
		api.DELETE("/files/*path", handlers.DeleteFile)
		api.POST("/rename", handlers.RenameFile)

		api.GET("/preview/document", handlers.PreviewDocument)
		api.GET("/preview/state", handlers.PreviewState)
		api.POST("/preview/rebuild", handlers.Rebuild)

		api.GET("/assets/:id", handlers.ServeAsset)

		api.POST("/exec", handlers.Exec)
		api.POST("/session/start", handlers.StartSession)
		api.POST("/session/end", handlers.EndSession)

		api.GET("/project/export", handlers.ExportProject)
		api.POST("/project/import", handlers.ImportProject)
	}

	engine.GET("/stream", wsHandler.HandleConnection)

	srv := &Server{
		engine:     engine,
		store:      store,
		registry:   registry,
		supervisor: supervisor,
		manager:    manager,
		msgRouter:  msgRouter,
		bridge:     bridge,
		logger:     logger,
		config:     cfg,
		metrics:    metrics,
		pumpDone:   make(chan struct{}),
	}
	go srv.pumpBridge()

	logger.Info("Server initialized successfully")
	return srv, nil
}

// pumpBridge drains sandbox messages into the router until the bridge
// channel closes.
func (s *Server) pumpBridge() {
	defer close(s.pumpDone)
	for raw := range s.bridge.Outbound() {
		s.msgRouter.HandleSandboxMessage(raw)
		s.metrics.HandlesLive.Set(float64(s.registry.Len()))
	}
}

// Run starts the HTTP server and blocks until it stops.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))

	s.httpServer = &stdhttp.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpServer.ListenAndServe()
	if err == stdhttp.ErrServerClosed {
		return nil
	}
	return err
}

// Close gracefully shuts down the server and the sandbox.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTP shutdown incomplete", zap.Error(err))
		}
	}

	if err := s.supervisor.Close(); err != nil {
		s.logger.Warn("Sandbox shutdown failed", zap.Error(err))
	}
	s.bridge.Close()
	<-s.pumpDone

	s.logger.Sync()
	return nil
}

// dereferencer adapts the handle registry into the sandbox fetch resolver.
// It serves registry handles (by scheme or HTTP path) and inline data URIs.
func dereferencer(registry *materialize.Registry) sandbox.DereferenceFunc {
	return func(url string) ([]byte, string, bool) {
		switch {
		case materialize.IsRegistryHandle(url):
			return registry.Dereference(url)
		case strings.HasPrefix(url, "/api/assets/"):
			return registry.DereferenceID(strings.TrimPrefix(url, "/api/assets/"))
		case strings.HasPrefix(url, "data:"):
			return decodeDataURI(url)
		default:
			return nil, "", false
		}
	}
}

func decodeDataURI(uri string) ([]byte, string, bool) {
	rest := strings.TrimPrefix(uri, "data:")
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return nil, "", false
	}

	mime := "text/plain"
	base64Encoded := false
	for i, part := range strings.Split(meta, ";") {
		if part == "base64" {
			base64Encoded = true
		} else if i == 0 && part != "" {
			mime = part
		}
	}

	if base64Encoded {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", false
		}
		return data, mime, true
	}
	return []byte(payload), mime, true
}
