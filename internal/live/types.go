package live

import (
	"sort"

	"pressadmin/pkg/plugin"
	"pressadmin/pkg/theme"
)

// Message types on the live feed.
const (
	TypeAuthRequired = "auth_required"
	TypeAuth         = "auth"
	TypeAuthOK       = "auth_ok"
	TypeAuthInvalid  = "auth_invalid"
	TypePlugins      = "plugins"
	TypeTheme        = "theme"
)

// Message is a frame sent in either direction on the live feed.
type Message struct {
	Type        string            `json:"type"`
	AccessToken string            `json:"access_token,omitempty"`
	Plugins     []plugin.Metadata `json:"plugins,omitempty"`
	Theme       *theme.Descriptor `json:"theme,omitempty"`
}

// PluginsMessage converts a registry snapshot into a plugins frame, ordered
// by plugin name.
func PluginsMessage(snapshot map[string]plugin.Metadata) Message {
	list := make([]plugin.Metadata, 0, len(snapshot))
	for _, meta := range snapshot {
		list = append(list, meta)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Descriptor.Name < list[j].Descriptor.Name
	})
	return Message{Type: TypePlugins, Plugins: list}
}

// ThemeMessage wraps the active theme descriptor.
func ThemeMessage(d theme.Descriptor) Message {
	return Message{Type: TypeTheme, Theme: &d}
}
