// Package readingtime is the built-in plugin that estimates how long a post
// takes to read.
package readingtime

import (
	"strings"
	"unicode"

	"pressadmin/pkg/plugin"

	"go.uber.org/zap"
)

const (
	// Name is the plugin name.
	Name = "readingtime"

	// ServiceCounter resolves to a *Counter.
	ServiceCounter plugin.ServiceID = "readingtime.counter"

	// HookPostStats takes (body string) and returns map[string]int with
	// "words" and "minutes".
	HookPostStats = "post_stats"

	// DefaultWordsPerMinute is used when the wpm setting is absent.
	DefaultWordsPerMinute = 200
)

func init() {
	plugin.Register(plugin.PluginInfo{
		Name:        Name,
		Description: "Adds word count and reading time to post stats",
		Priority:    plugin.PriorityDefault,
		Order:       50,
		Factory:     createPlugin,
	})
}

// Counter estimates reading time at a fixed words-per-minute rate.
type Counter struct {
	wpm int
}

// NewCounter creates a counter. A non-positive wpm uses the default.
func NewCounter(wpm int) *Counter {
	if wpm <= 0 {
		wpm = DefaultWordsPerMinute
	}
	return &Counter{wpm: wpm}
}

// Words counts words, treating runs of letters and digits as one word.
func (c *Counter) Words(body string) int {
	return len(strings.FieldsFunc(body, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	}))
}

// Stats returns the word count and reading time in whole minutes, rounded
// up. Any non-empty body takes at least one minute.
func (c *Counter) Stats(body string) map[string]int {
	words := c.Words(body)
	minutes := (words + c.wpm - 1) / c.wpm
	return map[string]int{
		"words":   words,
		"minutes": minutes,
	}
}

func createPlugin(ctx *plugin.Context) (plugin.Descriptor, error) {
	logger := zap.NewNop()
	wpm := DefaultWordsPerMinute
	if ctx != nil {
		if ctx.Logger != nil {
			logger = ctx.Logger.Named(Name)
		}
		wpm = ctx.SettingsFor(Name).Int("wpm", DefaultWordsPerMinute)
	}

	counter := NewCounter(wpm)
	var services []plugin.ServiceID
	if ctx != nil && ctx.Container != nil {
		ctx.Container.ProvideValue(ServiceCounter, counter)
		services = append(services, ServiceCounter)
	}

	logger.Debug("Reading time configured", zap.Int("wpm", counter.wpm))

	return plugin.Descriptor{
		Name:        Name,
		Version:     "1.0.0",
		Author:      "pressadmin",
		Description: "Adds word count and reading time to post stats",
		Services:    services,
		Hooks: map[string][]plugin.HookFunc{
			HookPostStats: {func(args ...any) (any, error) {
				body, err := plugin.Arg[string](args, 0)
				if err != nil {
					return nil, err
				}
				return counter.Stats(body), nil
			}},
		},
	}, nil
}
