package shim

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackpad/preview/internal/resolve"
)

// evalShim installs the shim into a bare goja VM and returns a resolver
// function calling the sandbox-side __resolveAsset.
func evalShim(t *testing.T, assetMapJSON string) func(ref string) string {
	t.Helper()
	vm := goja.New()
	_, err := vm.RunString("var window = globalThis;")
	require.NoError(t, err)
	_, err = vm.RunString(Generate(assetMapJSON, Options{}))
	require.NoError(t, err)

	fn, ok := goja.AssertFunction(vm.Get("__resolveAsset"))
	require.True(t, ok, "__resolveAsset not exported")

	return func(ref string) string {
		out, err := fn(goja.Undefined(), vm.ToValue(ref))
		require.NoError(t, err)
		return out.String()
	}
}

// The sandbox-side resolver must agree with the host-side resolver on every
// reference shape, since both run against the same asset map.
func TestShimResolverParityWithHost(t *testing.T) {
	paths := []string{"assets/logo.png", "index.html", "js/app.js"}
	urls := map[string]string{
		"assets/logo.png": "/api/assets/01A",
		"index.html":      "/api/assets/01B",
		"js/app.js":       "/api/assets/01C",
	}
	assetMapJSON := `{"assets/logo.png":"/api/assets/01A","index.html":"/api/assets/01B","js/app.js":"/api/assets/01C"}`
	jsResolve := evalShim(t, assetMapJSON)

	refs := []string{
		"assets/logo.png",
		"./assets/logo.png",
		"/assets/logo.png",
		"logo.png",
		"public/js/app.js",
		"app.js",
		"index.html",
		"missing.svg",
		"https://cdn.example.com/x.js",
		"data:image/png;base64,AA==",
	}

	for _, ref := range refs {
		t.Run(ref, func(t *testing.T) {
			jsOut := jsResolve(ref)

			path, ok := resolve.Resolve(ref, paths)
			if !ok {
				assert.Equal(t, ref, jsOut, "host misses must stay untouched in the sandbox")
				return
			}
			assert.Equal(t, urls[path], jsOut, "sandbox resolution diverged from host")
		})
	}
}

func TestShimResolverNonString(t *testing.T) {
	jsResolve := evalShim(t, `{"a.js":"/api/assets/01A"}`)
	// Numbers and the like pass through untouched.
	assert.Equal(t, "42", jsResolve("42"))
}
