package materialize

import (
	"sort"

	"github.com/bytedance/sonic"

	"github.com/stackpad/preview/internal/resolve"
	"github.com/stackpad/preview/internal/vfs"
)

// AssetMap is the derived mapping from every reference variant to a
// dereferenceable asset. It is rebuilt from a store snapshot and never
// edited in place; two builds from identical snapshots differ only in the
// generated handle IDs.
type AssetMap struct {
	assets  map[string]Asset  // canonical path -> asset
	byRef   map[string]string // reference variant -> canonical path
	paths   []string          // canonical paths, sorted
	handles []string          // registry handles created for this map
}

// BuildAssetMap materializes every file in the snapshot.
func BuildAssetMap(m *Materializer, snap vfs.Snapshot) *AssetMap {
	am := &AssetMap{
		assets: make(map[string]Asset, len(snap.Files)),
		byRef:  make(map[string]string),
	}

	for _, f := range snap.Files {
		asset := m.Materialize(f)
		am.assets[f.Path] = asset
		am.paths = append(am.paths, f.Path)
		if IsRegistryHandle(asset.Handle) {
			am.handles = append(am.handles, asset.Handle)
		}
	}
	sort.Strings(am.paths)

	// Earlier (sorted-first) paths win conflicting variants, matching the
	// resolver's deterministic iteration order.
	for i := len(am.paths) - 1; i >= 0; i-- {
		p := am.paths[i]
		am.byRef["./"+p] = p
		am.byRef["/"+p] = p
		am.byRef[resolve.Basename(p)] = p
	}
	// Exact keys last: a canonical path always resolves to its own file, even
	// when it doubles as another file's basename.
	for _, p := range am.paths {
		am.byRef[p] = p
	}

	return am
}

// Lookup resolves a reference to its asset. Variant map first, then the full
// cascading resolver for partially qualified forms.
func (am *AssetMap) Lookup(ref string) (Asset, bool) {
	if resolve.Passthrough(ref) {
		return Asset{}, false
	}
	if p, ok := am.byRef[ref]; ok {
		return am.assets[p], true
	}
	if p, ok := am.byRef[resolve.Normalize(ref)]; ok {
		return am.assets[p], true
	}
	if p, ok := resolve.Resolve(ref, am.paths); ok {
		return am.assets[p], true
	}
	return Asset{}, false
}

// Get returns the asset at a canonical path.
func (am *AssetMap) Get(path string) (Asset, bool) {
	a, ok := am.assets[path]
	return a, ok
}

// Paths returns the canonical paths in sorted order.
func (am *AssetMap) Paths() []string {
	return am.paths
}

// PathsLongestFirst returns the canonical paths ordered by descending length,
// for longest-match-first document rewriting. Ties break lexicographically.
func (am *AssetMap) PathsLongestFirst() []string {
	paths := make([]string, len(am.paths))
	copy(paths, am.paths)
	sort.Slice(paths, func(i, j int) bool {
		if len(paths[i]) != len(paths[j]) {
			return len(paths[i]) > len(paths[j])
		}
		return paths[i] < paths[j]
	})
	return paths
}

// Handles returns the registry handles this map created.
func (am *AssetMap) Handles() []string {
	return am.handles
}

// MarshalForSandbox serializes path -> URL for the sandbox's independently
// constructed copy of the map. Only the serialized form crosses the
// host/sandbox boundary.
func (am *AssetMap) MarshalForSandbox() (string, error) {
	urls := make(map[string]string, len(am.paths))
	for _, p := range am.paths {
		urls[p] = am.assets[p].URL
	}
	// ConfigStd sorts map keys so the serialized map is deterministic.
	data, err := sonic.ConfigStd.Marshal(urls)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
