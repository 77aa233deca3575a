package materialize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpad/preview/internal/logging"
	"github.com/stackpad/preview/internal/vfs"
)

func buildTestMap(t *testing.T, files ...vfs.File) *AssetMap {
	t.Helper()
	m := newTestMaterializer()
	store := vfs.NewStore(logging.NewNop())
	for _, f := range files {
		require.NoError(t, store.Put(f))
	}
	return BuildAssetMap(m, store.Snapshot())
}

func TestAssetMapLookupVariants(t *testing.T) {
	am := buildTestMap(t,
		vfs.File{Path: "assets/logo.png", Content: "data:image/png;base64,AA=="},
		vfs.File{Path: "index.html", Content: "<html></html>"},
	)

	for _, ref := range []string{
		"assets/logo.png",
		"./assets/logo.png",
		"/assets/logo.png",
		"logo.png",
		"public/assets/logo.png", // suffix containment via resolver
	} {
		asset, ok := am.Lookup(ref)
		require.True(t, ok, "ref %q", ref)
		assert.Equal(t, "assets/logo.png", asset.Path, "ref %q", ref)
	}

	_, ok := am.Lookup("missing.css")
	assert.False(t, ok)
	_, ok = am.Lookup("https://example.com/logo.png")
	assert.False(t, ok, "pass-through references never resolve")
}

// A canonical path always resolves to its own file, even when another file's
// basename spells the same string.
func TestAssetMapExactKeyBeatsBasename(t *testing.T) {
	am := buildTestMap(t,
		vfs.File{Path: "assets/logo.png", Content: "data:image/png;base64,AA=="},
		vfs.File{Path: "logo.png", Content: "data:image/png;base64,BB=="},
	)

	asset, ok := am.Lookup("logo.png")
	require.True(t, ok)
	assert.Equal(t, "logo.png", asset.Path)

	asset, ok = am.Lookup("./logo.png")
	require.True(t, ok)
	assert.Equal(t, "logo.png", asset.Path)

	asset, ok = am.Lookup("assets/logo.png")
	require.True(t, ok)
	assert.Equal(t, "assets/logo.png", asset.Path)
}

// When two files share a basename, the sorted-first path owns the bare
// variant. Repeated builds must agree.
func TestAssetMapConflictDeterminism(t *testing.T) {
	for i := 0; i < 20; i++ {
		am := buildTestMap(t,
			vfs.File{Path: "b/img.png", Content: "data:image/png;base64,BB=="},
			vfs.File{Path: "a/img.png", Content: "data:image/png;base64,AA=="},
		)
		asset, ok := am.Lookup("img.png")
		require.True(t, ok)
		assert.Equal(t, "a/img.png", asset.Path)
	}
}

func TestAssetMapPathsLongestFirst(t *testing.T) {
	am := buildTestMap(t,
		vfs.File{Path: "a.js"},
		vfs.File{Path: "assets/deep/a.js"},
		vfs.File{Path: "b.css"},
	)

	assert.Equal(t, []string{"assets/deep/a.js", "b.css", "a.js"}, am.PathsLongestFirst())
}

func TestAssetMapHandlesOnlyRegistryBacked(t *testing.T) {
	// One registry-backed text file, one inline data URI, one external handle.
	am := buildTestMap(t,
		vfs.File{Path: "app.js", Content: "console.log(1)"},
		vfs.File{Path: "logo.png", Content: "data:image/png;base64,AA=="},
		vfs.File{Path: "video.mp4", ExternalHandle: "https://cdn.example.com/v"},
	)

	assert.Len(t, am.Handles(), 1)
	assert.True(t, IsRegistryHandle(am.Handles()[0]))
}

// The serialized sandbox map is deterministic for identical content.
func TestAssetMapMarshalDeterministicShape(t *testing.T) {
	am := buildTestMap(t,
		vfs.File{Path: "z.png", Content: "data:image/png;base64,AA=="},
		vfs.File{Path: "a.png", Content: "data:image/png;base64,BB=="},
	)

	first, err := am.MarshalForSandbox()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := am.MarshalForSandbox()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	// Sorted keys: a.png serializes before z.png.
	assert.Less(t, strings.Index(first, "a.png"), strings.Index(first, "z.png"))
}
