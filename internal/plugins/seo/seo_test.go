package seo

import (
	"strings"
	"testing"

	"pressadmin/internal/plugins/markdown"
	"pressadmin/pkg/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGenerator_Tags(t *testing.T) {
	g := NewGenerator(markdown.NewRenderer(), "My Blog", 0, nil)

	tags, err := g.Tags("Hello & Welcome", "A **bold** start")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"<title>Hello &amp; Welcome | My Blog</title>",
		`<meta property="og:title" content="Hello &amp; Welcome">`,
		`<meta name="description" content="A bold start">`,
		`<meta property="og:description" content="A bold start">`,
		`<meta property="og:site_name" content="My Blog">`,
	}, tags)
}

func TestGenerator_NoExcerpt(t *testing.T) {
	tags, err := NewGenerator(nil, "", 0, nil).Tags("Title", "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"<title>Title</title>",
		`<meta property="og:title" content="Title">`,
	}, tags)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is far too long", 10, "this is f…"},
		{"héllo wörld", 6, "héllo…"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.in, tt.limit))
		})
	}
}

func TestPlugin_RequiresMarkdown(t *testing.T) {
	container := plugin.NewContainer()
	ctx := plugin.NewContext(container, zap.NewNop(), map[string]map[string]any{
		Name: {"site_name": "Press", "description_length": 20},
	}, false, "")
	registry := plugin.NewRegistry(container, zap.NewNop(), nil)

	seoDesc, err := createPlugin(ctx)
	require.NoError(t, err)

	err = registry.RegisterPlugin(seoDesc)
	var depErr *plugin.MissingDependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Equal(t, []string{markdown.Name}, depErr.Missing)

	mdInfo := plugin.Get(markdown.Name)
	require.NotNil(t, mdInfo)
	mdDesc, err := mdInfo.Factory(ctx)
	require.NoError(t, err)
	require.NoError(t, registry.RegisterPlugin(mdDesc))
	require.NoError(t, registry.RegisterPlugin(seoDesc))

	results, err := registry.ExecuteHook(HookHeadMeta, "Post", strings.Repeat("word ", 20))
	require.NoError(t, err)
	require.Len(t, results, 1)

	tags := results[0].([]string)
	assert.Equal(t, "<title>Post | Press</title>", tags[0])
	assert.Contains(t, tags, `<meta name="description" content="word word word word…">`)
}
