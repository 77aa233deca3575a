package shim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateDeterministic(t *testing.T) {
	json := `{"app.js":"/api/assets/01A","img.png":"data:image/png;base64,AA=="}`

	first := Generate(json, Options{EnableBackendMock: true})
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Generate(json, Options{EnableBackendMock: true}))
	}
}

func TestGenerateEmbedsAssetMap(t *testing.T) {
	json := `{"app.js":"/api/assets/01A"}`
	out := Generate(json, Options{})

	assert.Contains(t, out, json)
	assert.Contains(t, out, "__resolveAsset")
	assert.Contains(t, out, "shimReady")
}

func TestGenerateEmptyMap(t *testing.T) {
	out := Generate("", Options{})
	assert.Contains(t, out, "var __assets = {};")
}

func TestGenerateBackendMockToggle(t *testing.T) {
	with := Generate("{}", Options{EnableBackendMock: true})
	without := Generate("{}", Options{})

	assert.Contains(t, with, "g.backend")
	assert.NotContains(t, without, "g.backend")
}

func TestScriptTag(t *testing.T) {
	tag := ScriptTag("{}", Options{})
	assert.True(t, strings.HasPrefix(tag, "<script>"))
	assert.True(t, strings.HasSuffix(tag, "</script>"))
}

// The shim source must not itself contain a closing script tag sequence,
// which would terminate the injected element early.
func TestGenerateNoEarlyScriptClose(t *testing.T) {
	out := Generate(`{"a.js":"/api/assets/01A"}`, Options{EnableBackendMock: true})
	assert.NotContains(t, strings.ToLower(out), "</script")
}
