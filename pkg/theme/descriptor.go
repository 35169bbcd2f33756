// Package theme keeps exactly one theme's stylesheets and scripts live in the
// admin host document. Activating a theme detaches the previous theme's
// resources, attaches the new stylesheets concurrently, then the scripts one
// at a time, and only publishes the new descriptor once every load succeeded.
package theme

// TemplateMeta describes a template for the theme picker.
type TemplateMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Template names the front-end component a template renders with.
type Template struct {
	Component string       `json:"component,omitempty"`
	Meta      TemplateMeta `json:"meta"`
}

// Descriptor describes a theme before it is activated. Callers must not
// mutate a Descriptor after handing it to the Loader.
type Descriptor struct {
	Name        string              `json:"name"`
	Author      string              `json:"author"`
	Version     string              `json:"version"`
	Description string              `json:"description"`
	Templates   map[string]Template `json:"templates"`

	// Styles are stylesheet URLs, attached to the head in order.
	Styles []string `json:"styles"`

	// Scripts are script URLs, attached async to the body in order.
	Scripts []string `json:"scripts"`

	Settings map[string]any `json:"settings"`
}

// Default returns the descriptor active at startup before any activation.
func Default() Descriptor {
	return Descriptor{
		Name:        "Default",
		Author:      "pressadmin",
		Version:     "1.0.0",
		Description: "Built-in theme with no external resources",
		Templates:   map[string]Template{},
		Styles:      []string{},
		Scripts:     []string{},
		Settings:    map[string]any{},
	}
}

// ResourceCount returns the number of stylesheets plus scripts.
func (d Descriptor) ResourceCount() int {
	return len(d.Styles) + len(d.Scripts)
}
