package theme

import (
	"fmt"
	"html"
	"strings"
	"sync"
)

// Section is the part of the document an element is appended to.
type Section string

const (
	SectionHead Section = "head"
	SectionBody Section = "body"
)

// Status is the load state of an element.
type Status string

const (
	StatusPending Status = "pending"
	StatusLoaded  Status = "loaded"
	StatusFailed  Status = "failed"
)

// Element is a <link rel="stylesheet"> or <script async> element.
type Element struct {
	ID      string  `json:"id"`
	Tag     string  `json:"tag"`
	Section Section `json:"section"`
	Rel     string  `json:"rel,omitempty"`
	Href    string  `json:"href,omitempty"`
	Src     string  `json:"src,omitempty"`
	Async   bool    `json:"async,omitempty"`
	Status  Status  `json:"status"`

	// Fingerprint is the content hash recorded once the resource loaded.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Document models the resource elements of the admin shell's head and body.
type Document struct {
	mu   sync.RWMutex
	head []Element
	body []Element
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{}
}

// Append adds el to the end of its section.
func (d *Document) Append(el Element) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el.Status == "" {
		el.Status = StatusPending
	}
	if el.Section == SectionBody {
		d.body = append(d.body, el)
	} else {
		d.head = append(d.head, el)
	}
}

// Remove deletes the element with id. It reports whether one was found.
func (d *Document) Remove(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	var ok bool
	d.head, ok = removeElement(d.head, id)
	if ok {
		return true
	}
	d.body, ok = removeElement(d.body, id)
	return ok
}

func removeElement(elems []Element, id string) ([]Element, bool) {
	for i, el := range elems {
		if el.ID == id {
			return append(elems[:i], elems[i+1:]...), true
		}
	}
	return elems, false
}

// SetStatus updates the load state of the element with id. Removed elements
// are ignored.
func (d *Document) SetStatus(id string, status Status, fingerprint string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, section := range [][]Element{d.head, d.body} {
		for i := range section {
			if section[i].ID == id {
				section[i].Status = status
				section[i].Fingerprint = fingerprint
				return
			}
		}
	}
}

// Head returns a copy of the head elements.
func (d *Document) Head() []Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Element(nil), d.head...)
}

// Body returns a copy of the body elements.
func (d *Document) Body() []Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Element(nil), d.body...)
}

// Count returns the number of elements with the given tag.
func (d *Document) Count(tag string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	for _, section := range [][]Element{d.head, d.body} {
		for _, el := range section {
			if el.Tag == tag {
				n++
			}
		}
	}
	return n
}

// RenderHead returns the head elements as HTML.
func (d *Document) RenderHead() string {
	return renderElements(d.Head())
}

// RenderBody returns the body elements as HTML.
func (d *Document) RenderBody() string {
	return renderElements(d.Body())
}

func renderElements(elems []Element) string {
	var sb strings.Builder
	for _, el := range elems {
		switch el.Tag {
		case "link":
			fmt.Fprintf(&sb, `<link id="%s" rel="%s" href="%s">`,
				html.EscapeString(el.ID), html.EscapeString(el.Rel), html.EscapeString(el.Href))
		case "script":
			async := ""
			if el.Async {
				async = " async"
			}
			fmt.Fprintf(&sb, `<script id="%s" src="%s"%s></script>`,
				html.EscapeString(el.ID), html.EscapeString(el.Src), async)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
