package materialize

import (
	"regexp"
	"strings"

	"github.com/stackpad/preview/internal/vfs"
)

// Kind tags a file's content representation.
type Kind int

const (
	KindText Kind = iota
	KindExternal
	KindWrappedBinary
	KindDataURI
	KindBase64
)

func (k Kind) String() string {
	switch k {
	case KindExternal:
		return "external"
	case KindWrappedBinary:
		return "wrapped-binary"
	case KindDataURI:
		return "data-uri"
	case KindBase64:
		return "base64"
	default:
		return "text"
	}
}

// BinaryMarker is the fixed single-line prefix that signals "this text field
// holds binary content". The marker line is followed by a newline and a data
// URI occupying the remainder of the content.
const BinaryMarker = "/*__BINARY_ASSET__*/"

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)

// base64MinLength guards the heuristic against classifying short identifiers
// as binary. Long minified sources with no whitespace can still slip through;
// that false positive is accepted.
const base64MinLength = 100

// Classify determines a file's content representation. Evaluated once per
// materialization; precedence matches the materialization contract.
func Classify(f vfs.File) Kind {
	if f.ExternalHandle != "" {
		return KindExternal
	}
	if strings.HasPrefix(f.Content, BinaryMarker) {
		return KindWrappedBinary
	}
	if strings.HasPrefix(f.Content, "data:") {
		return KindDataURI
	}
	if looksLikeBase64(f.Content) {
		return KindBase64
	}
	return KindText
}

// UnwrapBinaryMarker strips the marker line and returns the nested data URI.
func UnwrapBinaryMarker(content string) (string, bool) {
	rest, ok := strings.CutPrefix(content, BinaryMarker)
	if !ok {
		return "", false
	}
	rest = strings.TrimPrefix(rest, "\r")
	rest, ok = strings.CutPrefix(rest, "\n")
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, "data:") {
		return "", false
	}
	return rest, true
}

func looksLikeBase64(content string) bool {
	stripped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, content)

	if len(stripped) < base64MinLength {
		return false
	}
	return base64Pattern.MatchString(stripped)
}
