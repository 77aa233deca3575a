package materialize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stackpad/preview/internal/vfs"
)

func TestClassifyPrecedence(t *testing.T) {
	longBase64 := strings.Repeat("QUJD", 30)

	tests := []struct {
		name string
		file vfs.File
		want Kind
	}{
		{
			name: "external handle wins over everything",
			file: vfs.File{Path: "a.png", Content: BinaryMarker + "\ndata:image/png;base64,AA==", ExternalHandle: "https://cdn.example.com/a.png"},
			want: KindExternal,
		},
		{
			name: "wrapped binary beats data URI",
			file: vfs.File{Path: "a.png", Content: BinaryMarker + "\ndata:image/png;base64,AA=="},
			want: KindWrappedBinary,
		},
		{
			name: "bare data URI",
			file: vfs.File{Path: "a.png", Content: "data:image/png;base64,AA=="},
			want: KindDataURI,
		},
		{
			name: "long base64 blob",
			file: vfs.File{Path: "a.bin", Content: longBase64},
			want: KindBase64,
		},
		{
			name: "short base64-looking string stays text",
			file: vfs.File{Path: "a.txt", Content: "SGVsbG8="},
			want: KindText,
		},
		{
			name: "ordinary source",
			file: vfs.File{Path: "app.js", Content: "console.log('hi');"},
			want: KindText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.file))
		})
	}
}

func TestUnwrapBinaryMarker(t *testing.T) {
	uri, ok := UnwrapBinaryMarker(BinaryMarker + "\ndata:image/png;base64,AA==")
	assert.True(t, ok)
	assert.Equal(t, "data:image/png;base64,AA==", uri)

	// CRLF content survives.
	uri, ok = UnwrapBinaryMarker(BinaryMarker + "\r\ndata:image/gif;base64,BB==")
	assert.True(t, ok)
	assert.Equal(t, "data:image/gif;base64,BB==", uri)

	// Marker without a data URI body is malformed.
	_, ok = UnwrapBinaryMarker(BinaryMarker + "\nnot a data uri")
	assert.False(t, ok)

	_, ok = UnwrapBinaryMarker("plain text")
	assert.False(t, ok)
}

// Unwrapping is not applied twice: the unwrapped value is a plain data URI
// with no marker left to strip.
func TestUnwrapIdempotent(t *testing.T) {
	uri, ok := UnwrapBinaryMarker(BinaryMarker + "\ndata:image/png;base64,AA==")
	assert.True(t, ok)

	_, again := UnwrapBinaryMarker(uri)
	assert.False(t, again)
}

func TestLooksLikeBase64(t *testing.T) {
	assert.True(t, looksLikeBase64(strings.Repeat("QUJD", 30)))
	assert.True(t, looksLikeBase64(strings.Repeat("QUJD", 30)+"\n"), "whitespace is ignored")
	assert.False(t, looksLikeBase64("QUJD"), "below minimum length")
	assert.False(t, looksLikeBase64(strings.Repeat("QUJD", 30)+"!"), "invalid character")
}
