package assemble

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/stackpad/preview/internal/logging"
	"github.com/stackpad/preview/internal/materialize"
	"github.com/stackpad/preview/internal/resolve"
	"github.com/stackpad/preview/internal/shim"
	"github.com/stackpad/preview/internal/vfs"
)

// Document is the immutable result of one assembly pass.
type Document struct {
	HTML     string
	Handle   string   // registry handle for the composed HTML itself
	Handles  []string // every registry handle this document depends on
	AssetMap *materialize.AssetMap
	Fallback bool // true when the built-in error document was produced
}

// Assembler composes preview documents.
type Assembler struct {
	mat  *materialize.Materializer
	opts shim.Options
	log  *logging.Logger
}

// New creates an assembler.
func New(mat *materialize.Materializer, opts shim.Options, log *logging.Logger) *Assembler {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Assembler{mat: mat, opts: opts, log: log}
}

// transfer-marker tokens that flag content as unsafe to inline literally.
var unsafeInlineTokens = []string{
	materialize.BinaryMarker,
	"<<<<<<<",
	">>>>>>>",
}

var cssURLPattern = regexp.MustCompile(`url\(\s*(['"]?)([^'")]+)['"]?\s*\)`)

// Assemble builds a composed document from the entry file and a store
// snapshot. It never fails: an unusable entry yields the fallback document.
func (a *Assembler) Assemble(entryPath string, snap vfs.Snapshot) *Document {
	am := materialize.BuildAssetMap(a.mat, snap)

	entry, ok := snap.Get(entryPath)
	if !ok || materialize.Classify(entry) != materialize.KindText {
		a.log.Warn("entry file unusable, serving fallback",
			zap.String("entry", entryPath),
			zap.Bool("present", ok),
		)
		return a.finish(fallbackDocument(entryPath), am, true)
	}

	html := entry.Content
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		a.log.Warn("entry parse failed, serving fallback", zap.Error(err))
		return a.finish(fallbackDocument(entryPath), am, true)
	}

	a.inlineStylesheets(doc, snap, am)
	a.inlineScripts(doc, snap, am)

	rendered, err := doc.Html()
	if err != nil {
		a.log.Warn("render failed, serving fallback", zap.Error(err))
		return a.finish(fallbackDocument(entryPath), am, true)
	}

	rendered = rewriteReferences(rendered, am)
	return a.finish(rendered, am, false)
}

// finish appends the shim, registers the composed HTML and collects handles.
func (a *Assembler) finish(html string, am *materialize.AssetMap, fallback bool) *Document {
	assetJSON, err := am.MarshalForSandbox()
	if err != nil {
		a.log.Error("asset map serialization failed", zap.Error(err))
		assetJSON = "{}"
	}
	html = injectBeforeBodyClose(html, shim.ScriptTag(assetJSON, a.opts))

	docHandle := a.mat.Registry().Create([]byte(html), "text/html; charset=utf-8")
	handles := append([]string{docHandle}, am.Handles()...)

	return &Document{
		HTML:     html,
		Handle:   docHandle,
		Handles:  handles,
		AssetMap: am,
		Fallback: fallback,
	}
}

// inlineStylesheets replaces store-local <link rel=stylesheet> tags with
// inline style blocks, rewriting url(...) references inside the CSS first.
func (a *Assembler) inlineStylesheets(doc *goquery.Document, snap vfs.Snapshot, am *materialize.AssetMap) {
	paths := am.Paths()
	doc.Find(`link[rel='stylesheet'][href]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		path, ok := resolve.Resolve(href, paths)
		if !ok {
			return
		}
		file, ok := snap.Get(path)
		if !ok {
			return
		}
		if !safeToInline(file) {
			// Leave a comment instead of inlining structurally unsafe content.
			s.ReplaceWithHtml("<!-- stylesheet " + path + " skipped: not literal source -->")
			a.log.Debug("stylesheet inline skipped", zap.String("path", path))
			return
		}

		css := rewriteCSSURLs(file.Content, am)
		s.ReplaceWithHtml("<style>\n" + css + "\n</style>")
	})
}

// inlineScripts replaces store-local <script src> tags with inline script
// blocks, rewriting literal path occurrences inside the source first.
func (a *Assembler) inlineScripts(doc *goquery.Document, snap vfs.Snapshot, am *materialize.AssetMap) {
	paths := am.Paths()
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		path, ok := resolve.Resolve(src, paths)
		if !ok {
			return
		}
		file, ok := snap.Get(path)
		if !ok {
			return
		}
		if !safeToInline(file) {
			s.ReplaceWithHtml("<!-- script " + path + " skipped: not literal source -->")
			a.log.Debug("script inline skipped", zap.String("path", path))
			return
		}

		js := rewriteReferences(file.Content, am)
		s.ReplaceWithHtml("<script>\n" + js + "\n</script>")
	})
}

func safeToInline(f vfs.File) bool {
	if materialize.Classify(f) != materialize.KindText {
		return false
	}
	for _, token := range unsafeInlineTokens {
		if strings.Contains(f.Content, token) {
			return false
		}
	}
	return true
}

// rewriteCSSURLs rewrites url(...) references inside stylesheet content.
func rewriteCSSURLs(css string, am *materialize.AssetMap) string {
	return cssURLPattern.ReplaceAllStringFunc(css, func(match string) string {
		groups := cssURLPattern.FindStringSubmatch(match)
		if len(groups) < 3 {
			return match
		}
		quote, ref := groups[1], groups[2]
		asset, ok := am.Lookup(ref)
		if !ok {
			return match
		}
		return "url(" + quote + asset.URL + quote + ")"
	})
}

// rewriteReferences rewrites every known asset path occurrence in text,
// longest path first so short paths never clobber longer ones sharing a
// suffix. Only delimited occurrences (quotes or parentheses) are touched.
func rewriteReferences(text string, am *materialize.AssetMap) string {
	for _, path := range am.PathsLongestFirst() {
		asset, ok := am.Get(path)
		if !ok {
			continue
		}
		for _, variant := range []string{"./" + path, "/" + path, path} {
			for _, d := range [][2]string{{`"`, `"`}, {`'`, `'`}, {"`", "`"}, {"(", ")"}} {
				text = strings.ReplaceAll(text, d[0]+variant+d[1], d[0]+asset.URL+d[1])
			}
		}
	}
	return text
}

// injectBeforeBodyClose inserts fragment immediately before </body>, or at
// the end when no such tag exists.
func injectBeforeBodyClose(html, fragment string) string {
	lower := strings.ToLower(html)
	if i := strings.LastIndex(lower, "</body>"); i >= 0 {
		return html[:i] + fragment + "\n" + html[i:]
	}
	return html + "\n" + fragment
}
