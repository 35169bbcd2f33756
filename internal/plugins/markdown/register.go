package markdown

import (
	"pressadmin/pkg/plugin"

	"go.uber.org/zap"
)

const (
	// Name is the plugin name.
	Name = "markdown"

	// ServiceRenderer resolves to a *Renderer.
	ServiceRenderer plugin.ServiceID = "markdown.renderer"

	// HookRenderContent takes (body string) and returns the HTML string.
	HookRenderContent = "render_content"
)

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        Name,
		Description: "Renders Markdown post bodies to sanitized HTML",
		Priority:    plugin.PriorityDefault,
		Order:       10, // Before seo, which depends on it
		Factory:     createPlugin,
	})
}

// createPlugin provides the renderer service and builds the descriptor.
func createPlugin(ctx *plugin.Context) (plugin.Descriptor, error) {
	renderer := NewRenderer()
	logger := zap.NewNop()
	if ctx != nil {
		if ctx.Logger != nil {
			logger = ctx.Logger.Named(Name)
		}
		if ctx.Container != nil {
			ctx.Container.ProvideValue(ServiceRenderer, renderer)
		}
	}

	return plugin.Descriptor{
		Name:        Name,
		Version:     "1.0.0",
		Author:      "pressadmin",
		Description: "Renders Markdown post bodies to sanitized HTML",
		Services:    []plugin.ServiceID{ServiceRenderer},
		Hooks: map[string][]plugin.HookFunc{
			HookRenderContent: {renderContentHook(renderer, logger)},
		},
	}, nil
}

func renderContentHook(renderer *Renderer, logger *zap.Logger) plugin.HookFunc {
	return func(args ...any) (any, error) {
		body, err := plugin.Arg[string](args, 0)
		if err != nil {
			return nil, err
		}
		html, err := renderer.Render(body)
		if err != nil {
			return nil, err
		}
		logger.Debug("Rendered content",
			zap.Int("in_bytes", len(body)),
			zap.Int("out_bytes", len(html)))
		return html, nil
	}
}
