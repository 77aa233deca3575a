// Package http contains the REST handlers for files, preview state, assets,
// and project transfer.
package http

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/stackpad/preview/internal/assemble"
	"github.com/stackpad/preview/internal/lifecycle"
	"github.com/stackpad/preview/internal/logging"
	"github.com/stackpad/preview/internal/materialize"
	"github.com/stackpad/preview/internal/monitoring"
	"github.com/stackpad/preview/internal/vfs"
)

// maxImportSize caps project archive uploads at 32 MiB decompressed input.
const maxImportSize = 32 << 20

// Executor runs an ad-hoc command in the current sandbox document.
type Executor interface {
	Exec(ctx context.Context, code string) error
}

// Sessioner controls agent-session buffering on the message router.
type Sessioner interface {
	StartSession()
	EndSession()
	SessionActive() bool
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	store     *vfs.Store
	manager   *lifecycle.Manager
	registry  *materialize.Registry
	executor  Executor
	sessioner Sessioner
	metrics   *monitoring.Metrics
	log       *logging.Logger
}

// NewHandlers creates a new handler set.
func NewHandlers(
	store *vfs.Store,
	manager *lifecycle.Manager,
	registry *materialize.Registry,
	executor Executor,
	sessioner Sessioner,
	metrics *monitoring.Metrics,
	log *logging.Logger,
) *Handlers {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Handlers{
		store:     store,
		manager:   manager,
		registry:  registry,
		executor:  executor,
		sessioner: sessioner,
		metrics:   metrics,
		log:       log,
	}
}

// Root handles health check.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Preview Runtime (Go)",
		"version": "0.3.0",
	})
}

// Health handles detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"files":   h.store.Len(),
		"handles": h.registry.Len(),
		"state":   h.manager.State().String(),
		"session": h.sessioner.SessionActive(),
	})
}

// ListFiles lists all project file paths.
func (h *Handlers) ListFiles(c *gin.Context) {
	snap := h.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"paths": snap.Paths(),
		"count": len(snap.Files),
	})
}

// PutFile creates or replaces a file.
func (h *Handlers) PutFile(c *gin.Context) {
	path := filePath(c)
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file path required"})
		return
	}

	var req struct {
		Content        string `json:"content"`
		Language       string `json:"language,omitempty"`
		ExternalHandle string `json:"externalHandle,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f := vfs.File{
		Path:           path,
		Content:        req.Content,
		Language:       req.Language,
		ExternalHandle: req.ExternalHandle,
	}
	if err := h.store.Put(f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"path": path, "success": true})
}

// GetFile returns one file.
func (h *Handlers) GetFile(c *gin.Context) {
	path := filePath(c)
	f, ok := h.store.Get(path)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no file at " + path})
		return
	}
	c.JSON(http.StatusOK, f)
}

// DeleteFile removes a file.
func (h *Handlers) DeleteFile(c *gin.Context) {
	path := filePath(c)
	ok := h.store.Delete(path)
	c.JSON(http.StatusOK, gin.H{"path": path, "success": ok})
}

// RenameFile moves a file to a new path.
func (h *Handlers) RenameFile(c *gin.Context) {
	var req struct {
		From string `json:"from" binding:"required"`
		To   string `json:"to" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.store.Rename(req.From, req.To); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": req.From, "to": req.To, "success": true})
}

// PreviewDocument returns the current composed document.
func (h *Handlers) PreviewDocument(c *gin.Context) {
	doc := h.manager.CurrentDocument()
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no preview built yet"})
		return
	}
	c.Header("X-Preview-Fallback", boolString(doc.Fallback))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(doc.HTML))
}

// PreviewState reports the lifecycle position and asset map of the current
// pass.
func (h *Handlers) PreviewState(c *gin.Context) {
	resp := gin.H{
		"state":   h.manager.State().String(),
		"handles": h.registry.Len(),
	}
	if doc := h.manager.CurrentDocument(); doc != nil {
		resp["fallback"] = doc.Fallback
		resp["assets"] = assetSummary(doc)
	}
	c.JSON(http.StatusOK, resp)
}

// Rebuild forces an immediate rebuild pass, bypassing the debounce.
func (h *Handlers) Rebuild(c *gin.Context) {
	h.manager.RebuildNow()
	c.JSON(http.StatusOK, gin.H{"state": h.manager.State().String()})
}

// ServeAsset streams materialized bytes for a live handle.
func (h *Handlers) ServeAsset(c *gin.Context) {
	assetID := c.Param("id")
	data, mime, ok := h.registry.DereferenceID(assetID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown or released asset"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, mime, data)
}

// Exec forwards an ad-hoc command to the current sandbox document. The
// result arrives asynchronously on the event feed.
func (h *Handlers) Exec(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.metrics != nil {
		h.metrics.SandboxExecs.Inc()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	if err := h.executor.Exec(ctx, req.Code); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// StartSession begins buffering error events for an autonomous edit session.
func (h *Handlers) StartSession(c *gin.Context) {
	h.sessioner.StartSession()
	c.JSON(http.StatusOK, gin.H{"session": true})
}

// EndSession ends the session and replays buffered events.
func (h *Handlers) EndSession(c *gin.Context) {
	h.sessioner.EndSession()
	c.JSON(http.StatusOK, gin.H{"session": false})
}

// projectArchive is the export/import wire format, gzip-compressed JSON.
type projectArchive struct {
	Version int        `json:"version"`
	Files   []vfs.File `json:"files"`
}

// ExportProject streams the store as a gzip archive.
func (h *Handlers) ExportProject(c *gin.Context) {
	snap := h.store.Snapshot()
	archive := projectArchive{Version: 1, Files: snap.Files}

	payload, err := sonic.Marshal(archive)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "application/gzip")
	c.Header("Content-Disposition", `attachment; filename="project.json.gz"`)
	c.Status(http.StatusOK)

	gw := gzip.NewWriter(c.Writer)
	if _, err := gw.Write(payload); err != nil {
		h.log.Warn("export write failed", zap.Error(err))
	}
	gw.Close()
}

// ImportProject replaces the store with an uploaded archive. The swap fires
// a single change event, so one rebuild covers the whole import.
func (h *Handlers) ImportProject(c *gin.Context) {
	gr, err := gzip.NewReader(http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "not a gzip archive"})
		return
	}
	defer gr.Close()

	payload, err := io.ReadAll(io.LimitReader(gr, maxImportSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var archive projectArchive
	if err := sonic.Unmarshal(payload, &archive); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed project archive"})
		return
	}

	h.store.Replace(archive.Files)
	c.JSON(http.StatusOK, gin.H{"files": len(archive.Files), "success": true})
}

// filePath extracts the wildcard path parameter without its leading slash.
func filePath(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("path"), "/")
}

func assetSummary(doc *assemble.Document) []gin.H {
	out := make([]gin.H, 0, len(doc.AssetMap.Paths()))
	for _, p := range doc.AssetMap.Paths() {
		a, _ := doc.AssetMap.Get(p)
		out = append(out, gin.H{"path": a.Path, "url": a.URL, "mime": a.MIME})
	}
	return out
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
