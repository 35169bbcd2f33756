// Package markdown is the built-in plugin that renders post bodies from
// Markdown to sanitized HTML.
package markdown

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts Markdown to HTML and sanitizes the result. It is safe
// for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer creates a renderer with GitHub Flavored Markdown enabled.
func NewRenderer() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.DefinitionList,
			),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// Render returns the sanitized HTML for src.
func (r *Renderer) Render(src string) (string, error) {
	if src == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// PlainText renders src and strips every tag.
func (r *Renderer) PlainText(src string) (string, error) {
	html, err := r.Render(src)
	if err != nil {
		return "", err
	}
	return bluemonday.StrictPolicy().Sanitize(html), nil
}
