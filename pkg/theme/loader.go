package theme

import (
	"context"
	"errors"
	"sync"

	"pressadmin/pkg/observable"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Span attribute keys.
const (
	AttrThemeName    = "theme.name"
	AttrThemeVersion = "theme.version"
	AttrResourceKind = "theme.resource.kind"
	AttrResourceURL  = "theme.resource.url"
)

// Loader holds the active theme and the handles attached for it.
type Loader struct {
	// mu serializes activations end to end.
	mu sync.Mutex

	port   ResourcePort
	logger *zap.Logger
	tracer trace.Tracer

	handlesMu sync.RWMutex
	handles   []Handle

	active *observable.Value[Descriptor]
}

// NewLoader creates a loader whose active theme starts as initial. No
// resources are attached for the initial theme.
func NewLoader(port ResourcePort, initial Descriptor, logger *zap.Logger, tracer trace.Tracer) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}

	return &Loader{
		port:   port,
		logger: logger.Named("theme"),
		tracer: tracer,
		active: observable.New(initial),
	}
}

// ActiveTheme returns the active descriptor.
func (l *Loader) ActiveTheme() Descriptor {
	return l.active.Get()
}

// Watch delivers the active descriptor immediately, then each newly activated
// descriptor in order, until ctx is done.
func (l *Loader) Watch(ctx context.Context) <-chan Descriptor {
	return l.active.Subscribe(ctx)
}

// Handles returns the handles attached for the active theme.
func (l *Loader) Handles() []Handle {
	l.handlesMu.RLock()
	defer l.handlesMu.RUnlock()

	result := make([]Handle, len(l.handles))
	copy(result, l.handles)
	return result
}

func (l *Loader) swapHandles(next []Handle) []Handle {
	l.handlesMu.Lock()
	defer l.handlesMu.Unlock()

	prev := l.handles
	l.handles = next
	return prev
}

// ActivateTheme makes d the active theme.
//
// The previous theme's resources are detached first. Stylesheets then load
// concurrently and the first failure wins; scripts load one at a time after
// every stylesheet succeeded. On success d is published and nil returned.
// Any failed load returns *ResourceLoadError: the active descriptor is left
// unchanged, the previous resources stay detached, and whatever was attached
// for d is detached again. A load that never completes is bounded by ctx.
func (l *Loader) ActivateTheme(ctx context.Context, d Descriptor) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, span := l.tracer.Start(ctx, "theme.activate",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(AttrThemeName, d.Name),
			attribute.String(AttrThemeVersion, d.Version),
			attribute.Int("theme.styles", len(d.Styles)),
			attribute.Int("theme.scripts", len(d.Scripts)),
		),
	)
	defer span.End()

	if prev := l.swapHandles(nil); len(prev) > 0 {
		l.port.DetachAll(prev)
		l.logger.Debug("Detached previous theme resources", zap.Int("count", len(prev)))
	}

	attached := make([]Handle, 0, d.ResourceCount())
	fail := func(err error) error {
		if len(attached) > 0 {
			l.port.DetachAll(attached)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var loadErr *ResourceLoadError
		if errors.As(err, &loadErr) {
			l.logger.Error("Theme activation failed",
				zap.String("theme", d.Name),
				zap.String("kind", string(loadErr.Kind)),
				zap.String("url", loadErr.URL),
				zap.Error(loadErr.Err))
		}
		return err
	}

	styles := make([]*Attachment, 0, len(d.Styles))
	for _, url := range d.Styles {
		a := l.port.AttachStyle(url)
		styles = append(styles, a)
		attached = append(attached, a.Handle())
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range styles {
		g.Go(func() error {
			return l.await(gctx, a)
		})
	}
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	for _, url := range d.Scripts {
		a := l.port.AttachScript(url)
		attached = append(attached, a.Handle())
		if err := l.await(ctx, a); err != nil {
			return fail(err)
		}
	}

	l.swapHandles(attached)
	l.active.Set(d)
	span.SetStatus(codes.Ok, "")

	l.logger.Info("Theme activated",
		zap.String("theme", d.Name),
		zap.String("version", d.Version),
		zap.Int("styles", len(d.Styles)),
		zap.Int("scripts", len(d.Scripts)))

	return nil
}

// await waits for one attachment and wraps a failure as *ResourceLoadError.
func (l *Loader) await(ctx context.Context, a *Attachment) error {
	h := a.Handle()
	_, span := l.tracer.Start(ctx, "theme.load."+string(h.Kind),
		trace.WithAttributes(
			attribute.String(AttrResourceKind, string(h.Kind)),
			attribute.String(AttrResourceURL, h.URL),
		),
	)
	defer span.End()

	if err := a.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &ResourceLoadError{Kind: h.Kind, URL: h.URL, Err: err}
	}
	return nil
}

// Close ends all Watch subscriptions.
func (l *Loader) Close() {
	l.active.Close()
}
