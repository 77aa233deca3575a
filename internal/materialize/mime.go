package materialize

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Fixed extension -> MIME table for common web, image, audio, video, font and
// document types.
var mimeByExtension = map[string]string{
	".html":  "text/html",
	".htm":   "text/html",
	".css":   "text/css",
	".js":    "application/javascript",
	".mjs":   "application/javascript",
	".json":  "application/json",
	".txt":   "text/plain",
	".md":    "text/markdown",
	".xml":   "application/xml",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".bmp":   "image/bmp",
	".mp3":   "audio/mpeg",
	".wav":   "audio/wav",
	".ogg":   "audio/ogg",
	".m4a":   "audio/mp4",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".mov":   "video/quicktime",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".pdf":   "application/pdf",
	".wasm":  "application/wasm",
}

const (
	defaultBinaryMIME = "application/octet-stream"
	defaultTextMIME   = "text/plain; charset=utf-8"
)

// MIMEForPath infers a MIME type from the file extension. Unknown extensions
// default per the binary flag.
func MIMEForPath(p string, binary bool) string {
	ext := strings.ToLower(path.Ext(p))
	if m, ok := mimeByExtension[ext]; ok {
		return m
	}
	if binary {
		return defaultBinaryMIME
	}
	return defaultTextMIME
}

// SniffMIME inspects decoded bytes when the extension gives no answer.
// Detection never fails; mimetype falls back to application/octet-stream.
func SniffMIME(data []byte) string {
	return mimetype.Detect(data).String()
}

// IsTextMIME reports whether a MIME type carries textual content.
func IsTextMIME(m string) bool {
	if strings.HasPrefix(m, "text/") {
		return true
	}
	switch {
	case strings.Contains(m, "javascript"),
		strings.Contains(m, "json"),
		strings.Contains(m, "xml"),
		strings.Contains(m, "svg"):
		return true
	}
	return false
}
