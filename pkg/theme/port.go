package theme

import (
	"context"
	"sync"
)

// Kind is the type of a theme resource.
type Kind string

const (
	KindStyle  Kind = "style"
	KindScript Kind = "script"
)

// Handle identifies an element attached to the host document.
type Handle struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
	URL  string `json:"url"`
}

// ResourcePort attaches and detaches theme resources in a host document.
// Attach calls add the element synchronously and report the load outcome
// through the returned Attachment.
type ResourcePort interface {
	AttachStyle(url string) *Attachment
	AttachScript(url string) *Attachment
	DetachAll(handles []Handle)
}

// Attachment is the pending load of one attached element.
type Attachment struct {
	handle Handle
	done   chan struct{}
	once   sync.Once
	err    error
}

// NewAttachment creates an unresolved attachment for h.
func NewAttachment(h Handle) *Attachment {
	return &Attachment{handle: h, done: make(chan struct{})}
}

// Resolve records the load outcome. Only the first call has any effect.
func (a *Attachment) Resolve(err error) {
	a.once.Do(func() {
		a.err = err
		close(a.done)
	})
}

// Handle returns the element handle.
func (a *Attachment) Handle() Handle {
	return a.handle
}

// Done is closed once the load outcome is known.
func (a *Attachment) Done() <-chan struct{} {
	return a.done
}

// Wait blocks until the load resolves or ctx is done.
func (a *Attachment) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
