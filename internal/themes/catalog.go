// Package themes discovers installable themes on disk. Each theme lives in
// its own directory under the themes root with a theme.jsonc manifest.
package themes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pressadmin/pkg/theme"

	"github.com/tidwall/jsonc"
	"go.uber.org/zap"
)

// ManifestName is the manifest file expected in every theme directory.
const ManifestName = "theme.jsonc"

// ErrUnknownTheme is returned by Get for a name not in the catalog.
var ErrUnknownTheme = errors.New("unknown theme")

// Parse strips JSONC comments and trailing commas from data and unmarshals
// the result into a descriptor. Relative resource URLs are prefixed with
// slug so they resolve under the theme's own asset directory.
func Parse(data []byte, slug string) (theme.Descriptor, error) {
	var d theme.Descriptor
	if err := json.Unmarshal(jsonc.ToJSON(data), &d); err != nil {
		return theme.Descriptor{}, fmt.Errorf("parsing theme manifest: %w", err)
	}
	if d.Name == "" {
		d.Name = slug
	}
	if d.Templates == nil {
		d.Templates = map[string]theme.Template{}
	}
	if d.Settings == nil {
		d.Settings = map[string]any{}
	}
	d.Styles = qualify(d.Styles, slug)
	d.Scripts = qualify(d.Scripts, slug)
	return d, nil
}

func qualify(refs []string, slug string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		u, err := url.Parse(ref)
		if err == nil && !u.IsAbs() && !strings.HasPrefix(ref, "/") && slug != "" {
			ref = path.Join(slug, ref)
		}
		out = append(out, ref)
	}
	return out
}

// ReadFile reads and parses the manifest at p. The slug is the name of the
// directory containing it.
func ReadFile(p string) (theme.Descriptor, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return theme.Descriptor{}, fmt.Errorf("reading %s: %w", p, err)
	}
	d, err := Parse(data, filepath.Base(filepath.Dir(p)))
	if err != nil {
		return theme.Descriptor{}, fmt.Errorf("%s: %w", p, err)
	}
	return d, nil
}

// Catalog holds the themes found under a root directory, keyed by name.
type Catalog struct {
	dir    string
	logger *zap.Logger

	mu     sync.RWMutex
	themes map[string]theme.Descriptor
	slugs  []string
}

// NewCatalog creates an empty catalog for dir. Call Load to scan it.
func NewCatalog(dir string, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		dir:    dir,
		logger: logger.Named("themes"),
		themes: make(map[string]theme.Descriptor),
	}
}

// Dir returns the themes root.
func (c *Catalog) Dir() string {
	return c.dir
}

// Load rescans the themes root. A malformed manifest is logged and skipped;
// a missing root yields an empty catalog.
func (c *Catalog) Load() error {
	themes := make(map[string]theme.Descriptor)
	var slugs []string

	entries, err := os.ReadDir(c.dir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read themes dir: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		manifest := filepath.Join(c.dir, entry.Name(), ManifestName)
		if _, err := os.Stat(manifest); err != nil {
			continue
		}

		d, err := ReadFile(manifest)
		if err != nil {
			c.logger.Warn("Skipping invalid theme manifest",
				zap.String("path", manifest),
				zap.Error(err))
			continue
		}
		if _, dup := themes[d.Name]; dup {
			c.logger.Warn("Skipping theme with duplicate name",
				zap.String("theme", d.Name),
				zap.String("path", manifest))
			continue
		}
		themes[d.Name] = d
		slugs = append(slugs, entry.Name())
	}

	c.mu.Lock()
	c.themes = themes
	c.slugs = slugs
	c.mu.Unlock()

	c.logger.Info("Theme catalog loaded",
		zap.String("dir", c.dir),
		zap.Int("themes", len(themes)))

	return nil
}

// Get returns the theme named name.
func (c *Catalog) Get(name string) (theme.Descriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.themes[name]
	if !ok {
		return theme.Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownTheme, name)
	}
	return d, nil
}

// List returns every theme sorted by name.
func (c *Catalog) List() []theme.Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]theme.Descriptor, 0, len(c.themes))
	for _, d := range c.themes {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Slugs returns the theme directory names found by the last Load.
func (c *Catalog) Slugs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.slugs...)
}
