package theme

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Fetcher confirms that a resource URL loads and returns its content
// fingerprint.
type Fetcher interface {
	Fetch(ctx context.Context, kind Kind, url string) (string, error)
}

// DefaultLoadTimeout bounds a single resource load in DocumentPort.
const DefaultLoadTimeout = 15 * time.Second

// DocumentPort is the ResourcePort backed by a Document. Elements are
// appended immediately and marked loaded or failed once the Fetcher returns.
type DocumentPort struct {
	doc     *Document
	fetcher Fetcher
	logger  *zap.Logger
	timeout time.Duration
}

// NewDocumentPort creates a port that appends to doc and fetches resources
// with fetcher. A zero timeout uses DefaultLoadTimeout.
func NewDocumentPort(doc *Document, fetcher Fetcher, logger *zap.Logger, timeout time.Duration) *DocumentPort {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	return &DocumentPort{
		doc:     doc,
		fetcher: fetcher,
		logger:  logger.Named("document"),
		timeout: timeout,
	}
}

// AttachStyle appends a <link rel="stylesheet"> to the head.
func (p *DocumentPort) AttachStyle(url string) *Attachment {
	return p.attach(Element{
		ID:      uuid.NewString(),
		Tag:     "link",
		Section: SectionHead,
		Rel:     "stylesheet",
		Href:    url,
	}, KindStyle, url)
}

// AttachScript appends an async <script> to the body.
func (p *DocumentPort) AttachScript(url string) *Attachment {
	return p.attach(Element{
		ID:      uuid.NewString(),
		Tag:     "script",
		Section: SectionBody,
		Src:     url,
		Async:   true,
	}, KindScript, url)
}

func (p *DocumentPort) attach(el Element, kind Kind, url string) *Attachment {
	p.doc.Append(el)
	a := NewAttachment(Handle{ID: el.ID, Kind: kind, URL: url})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		fingerprint, err := p.fetcher.Fetch(ctx, kind, url)
		if err != nil {
			p.doc.SetStatus(el.ID, StatusFailed, "")
			p.logger.Debug("Resource failed to load",
				zap.String("kind", string(kind)),
				zap.String("url", url),
				zap.Error(err))
		} else {
			p.doc.SetStatus(el.ID, StatusLoaded, fingerprint)
		}
		a.Resolve(err)
	}()

	return a
}

// DetachAll removes the elements for handles from the document.
func (p *DocumentPort) DetachAll(handles []Handle) {
	for _, h := range handles {
		if !p.doc.Remove(h.ID) {
			p.logger.Debug("Detach of unknown element", zap.String("id", h.ID))
		}
	}
}

// Document returns the underlying document.
func (p *DocumentPort) Document() *Document {
	return p.doc
}
