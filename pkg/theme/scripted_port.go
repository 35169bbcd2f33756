package theme

import (
	"fmt"
	"sync"
)

// ScriptedPort is an in-memory ResourcePort for tests and headless runs.
// Loads succeed immediately unless a URL was scripted to fail or held.
type ScriptedPort struct {
	mu       sync.Mutex
	seq      int
	failures map[string]error
	held     map[string][]*Attachment
	holds    map[string]bool
	attached []Handle
	appended []Handle
	detached []Handle
}

// NewScriptedPort creates a port where every load succeeds.
func NewScriptedPort() *ScriptedPort {
	return &ScriptedPort{
		failures: make(map[string]error),
		held:     make(map[string][]*Attachment),
		holds:    make(map[string]bool),
	}
}

// Fail makes every later load of url fail with err.
func (p *ScriptedPort) Fail(url string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[url] = err
}

// Hold leaves later loads of url pending until Release.
func (p *ScriptedPort) Hold(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.holds[url] = true
}

// Release resolves every pending load of url with err and stops holding it.
func (p *ScriptedPort) Release(url string, err error) {
	p.mu.Lock()
	pending := p.held[url]
	delete(p.held, url)
	delete(p.holds, url)
	p.mu.Unlock()

	for _, a := range pending {
		a.Resolve(err)
	}
}

// Pending returns the number of held loads for url.
func (p *ScriptedPort) Pending(url string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.held[url])
}

func (p *ScriptedPort) AttachStyle(url string) *Attachment {
	return p.attach(KindStyle, url)
}

func (p *ScriptedPort) AttachScript(url string) *Attachment {
	return p.attach(KindScript, url)
}

func (p *ScriptedPort) attach(kind Kind, url string) *Attachment {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	h := Handle{ID: fmt.Sprintf("%s-%d", kind, p.seq), Kind: kind, URL: url}
	p.attached = append(p.attached, h)
	p.appended = append(p.appended, h)

	a := NewAttachment(h)
	switch {
	case p.holds[url]:
		p.held[url] = append(p.held[url], a)
	case p.failures[url] != nil:
		a.Resolve(p.failures[url])
	default:
		a.Resolve(nil)
	}
	return a
}

func (p *ScriptedPort) DetachAll(handles []Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, h := range handles {
		for i, cur := range p.attached {
			if cur.ID == h.ID {
				p.attached = append(p.attached[:i], p.attached[i+1:]...)
				p.detached = append(p.detached, h)
				break
			}
		}
	}
}

// Attached returns the handles currently in the document.
func (p *ScriptedPort) Attached() []Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Handle(nil), p.attached...)
}

// Appended returns every handle ever attached, in attach order.
func (p *ScriptedPort) Appended() []Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Handle(nil), p.appended...)
}

// Detached returns every handle removed, in removal order.
func (p *ScriptedPort) Detached() []Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Handle(nil), p.detached...)
}

// Count returns the number of currently attached handles of kind.
func (p *ScriptedPort) Count(kind Kind) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, h := range p.attached {
		if h.Kind == kind {
			n++
		}
	}
	return n
}
