// Package seo is the built-in plugin that produces head meta tags for posts.
// It depends on the markdown plugin to turn excerpts into plain text.
package seo

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"pressadmin/internal/plugins/markdown"
	"pressadmin/pkg/plugin"

	"go.uber.org/zap"
)

const (
	// Name is the plugin name.
	Name = "seo"

	// HookHeadMeta takes (title, excerpt string) and returns []string of tags.
	HookHeadMeta = "head_meta"

	// DefaultDescriptionLength caps the meta description in runes.
	DefaultDescriptionLength = 160
)

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        Name,
		Description: "Generates title, description and Open Graph tags",
		Priority:    plugin.PriorityDefault,
		Order:       60, // After markdown (10)
		Factory:     createPlugin,
	})
}

// Generator builds meta tags.
type Generator struct {
	renderer  *markdown.Renderer
	siteName  string
	maxLength int
	logger    *zap.Logger
}

// NewGenerator creates a generator. A nil renderer treats excerpts as
// plain text.
func NewGenerator(renderer *markdown.Renderer, siteName string, maxLength int, logger *zap.Logger) *Generator {
	if maxLength <= 0 {
		maxLength = DefaultDescriptionLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		renderer:  renderer,
		siteName:  siteName,
		maxLength: maxLength,
		logger:    logger,
	}
}

// Tags returns the head tags for a post.
func (g *Generator) Tags(title, excerpt string) ([]string, error) {
	description := excerpt
	if g.renderer != nil {
		text, err := g.renderer.PlainText(excerpt)
		if err != nil {
			return nil, fmt.Errorf("failed to flatten excerpt: %w", err)
		}
		// Sanitized text keeps entities escaped; undo that before re-escaping.
		description = html.UnescapeString(text)
	}
	description = truncate(strings.Join(strings.Fields(description), " "), g.maxLength)

	fullTitle := title
	if g.siteName != "" {
		fullTitle = title + " | " + g.siteName
	}

	tags := []string{
		fmt.Sprintf("<title>%s</title>", html.EscapeString(fullTitle)),
		fmt.Sprintf(`<meta property="og:title" content="%s">`, html.EscapeString(title)),
	}
	if description != "" {
		tags = append(tags,
			fmt.Sprintf(`<meta name="description" content="%s">`, html.EscapeString(description)),
			fmt.Sprintf(`<meta property="og:description" content="%s">`, html.EscapeString(description)),
		)
	}
	if g.siteName != "" {
		tags = append(tags, fmt.Sprintf(`<meta property="og:site_name" content="%s">`, html.EscapeString(g.siteName)))
	}
	return tags, nil
}

// truncate shortens s to at most limit runes, ending with an ellipsis.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := strings.TrimRight(string(runes[:limit-1]), " ")
	return cut + "…"
}

func createPlugin(ctx *plugin.Context) (plugin.Descriptor, error) {
	logger := zap.NewNop()
	settings := plugin.Settings{}
	var container *plugin.Container
	if ctx != nil {
		if ctx.Logger != nil {
			logger = ctx.Logger.Named(Name)
		}
		settings = ctx.SettingsFor(Name)
		container = ctx.Container
	}

	siteName := settings.String("site_name", "")
	maxLength := settings.Int("description_length", DefaultDescriptionLength)

	hook := func(args ...any) (any, error) {
		title, err := plugin.Arg[string](args, 0)
		if err != nil {
			return nil, err
		}
		excerpt, err := plugin.OptionalArg(args, 1, "")
		if err != nil {
			return nil, err
		}

		var renderer *markdown.Renderer
		if container != nil {
			svc, err := container.Lookup(markdown.ServiceRenderer)
			if err != nil {
				return nil, err
			}
			renderer, _ = svc.(*markdown.Renderer)
		}
		return NewGenerator(renderer, siteName, maxLength, logger).Tags(title, excerpt)
	}

	return plugin.Descriptor{
		Name:         Name,
		Version:      "1.0.0",
		Author:       "pressadmin",
		Description:  "Generates title, description and Open Graph tags",
		Dependencies: []string{markdown.Name},
		Hooks: map[string][]plugin.HookFunc{
			HookHeadMeta: {hook},
		},
	}, nil
}
