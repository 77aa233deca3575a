package materialize

import (
	"encoding/base64"
	"strings"

	"github.com/saintfish/chardet"
	"go.uber.org/zap"

	"github.com/stackpad/preview/internal/logging"
	"github.com/stackpad/preview/internal/vfs"
)

// Asset is the result of materializing one virtual file.
type Asset struct {
	Path   string // canonical store path
	Handle string // registry handle, data URI, or external URL
	URL    string // dereferenceable form usable inside a document
	MIME   string
}

// Materializer converts file records into assets.
type Materializer struct {
	registry *Registry
	detector *chardet.Detector
	log      *logging.Logger
}

// New creates a materializer backed by the given registry.
func New(registry *Registry, log *logging.Logger) *Materializer {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Materializer{
		registry: registry,
		detector: chardet.NewTextDetector(),
		log:      log,
	}
}

// Registry exposes the backing handle registry.
func (m *Materializer) Registry() *Registry {
	return m.registry
}

// Materialize converts f into a dereferenceable asset. It never fails:
// decode errors degrade to plain-text treatment.
func (m *Materializer) Materialize(f vfs.File) Asset {
	switch Classify(f) {
	case KindExternal:
		return Asset{
			Path:   f.Path,
			Handle: f.ExternalHandle,
			URL:    f.ExternalHandle,
			MIME:   MIMEForPath(f.Path, true),
		}

	case KindWrappedBinary:
		uri, ok := UnwrapBinaryMarker(f.Content)
		if !ok {
			// Marker present but malformed; fall back to text.
			m.log.Warn("malformed binary marker", zap.String("path", f.Path))
			return m.materializeText(f)
		}
		return m.materializeDataURI(f.Path, uri)

	case KindDataURI:
		return m.materializeDataURI(f.Path, f.Content)

	case KindBase64:
		data, err := base64.StdEncoding.DecodeString(stripWhitespace(f.Content))
		if err != nil {
			m.log.Debug("base64 decode failed, treating as text",
				zap.String("path", f.Path), zap.Error(err))
			return m.materializeText(f)
		}
		mime := MIMEForPath(f.Path, true)
		if mime == defaultBinaryMIME {
			mime = SniffMIME(data)
		}
		handle := m.registry.Create(data, mime)
		return Asset{
			Path:   f.Path,
			Handle: handle,
			URL:    HTTPPath(handle),
			MIME:   mime,
		}

	default:
		return m.materializeText(f)
	}
}

// materializeDataURI uses the URI directly as an inline handle. MIME comes
// from the URI itself when present, the extension table otherwise.
func (m *Materializer) materializeDataURI(path, uri string) Asset {
	mime := mimeFromDataURI(uri)
	if mime == "" {
		mime = MIMEForPath(path, true)
	}
	return Asset{
		Path:   path,
		Handle: uri,
		URL:    uri,
		MIME:   mime,
	}
}

func (m *Materializer) materializeText(f vfs.File) Asset {
	mime := MIMEForPath(f.Path, false)

	// Flag unusual encodings; content is still served as-is.
	if best, err := m.detector.DetectBest([]byte(f.Content)); err == nil {
		if best.Charset != "UTF-8" && best.Charset != "ISO-8859-1" && best.Confidence > 80 {
			m.log.Debug("non-UTF-8 text asset",
				zap.String("path", f.Path),
				zap.String("charset", best.Charset),
			)
		}
	}

	handle := m.registry.Create([]byte(f.Content), mime)
	return Asset{
		Path:   f.Path,
		Handle: handle,
		URL:    HTTPPath(handle),
		MIME:   mime,
	}
}

func mimeFromDataURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return ""
	}
	end := strings.IndexAny(rest, ";,")
	if end <= 0 {
		return ""
	}
	return rest[:end]
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}
