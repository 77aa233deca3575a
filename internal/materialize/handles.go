package materialize

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/stackpad/preview/internal/logging"
	"github.com/stackpad/preview/internal/shared/id"
)

// HandleScheme prefixes registry-backed handles.
const HandleScheme = "preview://asset/"

// entry holds the materialized bytes behind one handle.
type entry struct {
	data []byte
	mime string
}

// Registry holds materialized asset bytes, addressable by handle. It is the
// object-URL analog on the host: documents reference the handle's HTTP path
// and the registry serves the bytes until the handle is released.
type Registry struct {
	mu      sync.RWMutex
	entries map[id.AssetID]entry
	log     *logging.Logger
}

// NewRegistry creates an empty handle registry.
func NewRegistry(log *logging.Logger) *Registry {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Registry{
		entries: make(map[id.AssetID]entry),
		log:     log,
	}
}

// Create registers data under a fresh handle and returns it.
func (r *Registry) Create(data []byte, mime string) string {
	aid := id.NewAssetID()

	r.mu.Lock()
	r.entries[aid] = entry{data: data, mime: mime}
	r.mu.Unlock()

	return HandleScheme + aid.String()
}

// Dereference returns the bytes and MIME type behind a handle.
func (r *Registry) Dereference(handle string) ([]byte, string, bool) {
	aid, ok := parseHandle(handle)
	if !ok {
		return nil, "", false
	}

	r.mu.RLock()
	e, ok := r.entries[aid]
	r.mu.RUnlock()
	if !ok {
		return nil, "", false
	}
	return e.data, e.mime, true
}

// DereferenceID looks up by the bare asset ID, as the HTTP layer sees it.
func (r *Registry) DereferenceID(assetID string) ([]byte, string, bool) {
	return r.Dereference(HandleScheme + assetID)
}

// Release frees the bytes behind a handle. Releasing an unknown or inline
// handle is a no-op.
func (r *Registry) Release(handle string) {
	aid, ok := parseHandle(handle)
	if !ok {
		return
	}

	r.mu.Lock()
	delete(r.entries, aid)
	r.mu.Unlock()
}

// ReleaseAll frees every handle in the slice.
func (r *Registry) ReleaseAll(handles []string) {
	for _, h := range handles {
		r.Release(h)
	}
	if len(handles) > 0 {
		r.log.Debug("handles released", zap.Int("count", len(handles)))
	}
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IsRegistryHandle reports whether s is a registry-backed handle rather than
// an inline payload.
func IsRegistryHandle(s string) bool {
	return strings.HasPrefix(s, HandleScheme)
}

// HTTPPath returns the path at which a registry handle is served. Inline
// handles (data URIs, external URLs) are returned unchanged.
func HTTPPath(handle string) string {
	if aid, ok := parseHandle(handle); ok {
		return "/api/assets/" + aid.String()
	}
	return handle
}

func parseHandle(handle string) (id.AssetID, bool) {
	rest, ok := strings.CutPrefix(handle, HandleScheme)
	if !ok || rest == "" {
		return "", false
	}
	return id.AssetID(rest), true
}
