package sandbox

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// DOM is a lightweight document proxy built from the composed document's
// markup, so sandboxed scripts can query the elements the document declares.
type DOM struct {
	mu   sync.RWMutex
	root *Element
}

// Element represents one document element.
type Element struct {
	TagName     string
	ID          string
	ClassName   string
	TextContent string
	Attributes  map[string]string
	Children    []*Element
	Parent      *Element
}

// ParseDOM builds a DOM proxy from HTML markup. Parse failures yield an
// empty document rather than an error; scripts then see no elements, the
// same degraded behavior a malformed document gets in a real browser.
func ParseDOM(html string) *DOM {
	root := &Element{
		TagName:    "document",
		Attributes: make(map[string]string),
	}
	d := &DOM{root: root}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return d
	}

	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		if node == nil {
			return
		}
		elem := &Element{
			TagName:     node.Data,
			TextContent: strings.TrimSpace(s.Text()),
			Attributes:  make(map[string]string),
		}
		for _, attr := range node.Attr {
			elem.Attributes[attr.Key] = attr.Val
			switch attr.Key {
			case "id":
				elem.ID = attr.Val
			case "class":
				elem.ClassName = attr.Val
			}
		}
		root.AddElement(elem)
	})

	return d
}

// Query finds elements by a simplified selector: #id, .class, or tag.
func (d *DOM) Query(selector string) []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch {
	case strings.HasPrefix(selector, "#"):
		if elem := d.findByID(d.root, selector[1:]); elem != nil {
			return []*Element{elem}
		}
		return nil
	case strings.HasPrefix(selector, "."):
		return d.findByClass(d.root, selector[1:])
	default:
		return d.findByTag(d.root, selector)
	}
}

// ByID finds a single element by its id attribute.
func (d *DOM) ByID(id string) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.findByID(d.root, id)
}

// GetAttribute retrieves an attribute value.
func (e *Element) GetAttribute(name string) string {
	return e.Attributes[name]
}

// SetAttribute sets an attribute value.
func (e *Element) SetAttribute(name, value string) {
	e.Attributes[name] = value
}

// AddElement appends a child element.
func (e *Element) AddElement(child *Element) {
	child.Parent = e
	e.Children = append(e.Children, child)
}

func (d *DOM) findByID(elem *Element, id string) *Element {
	if elem.ID == id {
		return elem
	}
	for _, child := range elem.Children {
		if found := d.findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func (d *DOM) findByClass(elem *Element, class string) []*Element {
	var result []*Element
	for _, c := range strings.Fields(elem.ClassName) {
		if c == class {
			result = append(result, elem)
			break
		}
	}
	for _, child := range elem.Children {
		result = append(result, d.findByClass(child, class)...)
	}
	return result
}

func (d *DOM) findByTag(elem *Element, tag string) []*Element {
	var result []*Element
	if strings.EqualFold(elem.TagName, tag) {
		result = append(result, elem)
	}
	for _, child := range elem.Children {
		result = append(result, d.findByTag(child, tag)...)
	}
	return result
}
