package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubFactory(name string) Factory {
	return func(ctx *Context) (Descriptor, error) {
		return Descriptor{Name: name, Version: "1.0.0"}, nil
	}
}

func TestCatalog_Register(t *testing.T) {
	tests := []struct {
		name        string
		info        PluginInfo
		wantErr     bool
		errContains string
	}{
		{
			name: "valid registration",
			info: PluginInfo{
				Name:        "test-plugin",
				Description: "A test plugin",
				Priority:    PriorityDefault,
				Factory:     stubFactory("test-plugin"),
			},
			wantErr: false,
		},
		{
			name: "empty name",
			info: PluginInfo{
				Name:    "",
				Factory: stubFactory(""),
			},
			wantErr:     true,
			errContains: "name cannot be empty",
		},
		{
			name: "nil factory",
			info: PluginInfo{
				Name:    "test-plugin",
				Factory: nil,
			},
			wantErr:     true,
			errContains: "factory cannot be nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := NewCatalog()
			err := catalog.Register(tt.info)

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCatalog_PriorityOverride(t *testing.T) {
	catalog := NewCatalog()

	err := catalog.Register(PluginInfo{
		Name:        "seo",
		Description: "Built-in seo plugin",
		Priority:    PriorityDefault,
		Factory: func(ctx *Context) (Descriptor, error) {
			return Descriptor{Name: "seo", Author: "builtin"}, nil
		},
	})
	require.NoError(t, err)

	info := catalog.Get("seo")
	require.NotNil(t, info)
	assert.Equal(t, PriorityDefault, info.Priority)

	err = catalog.Register(PluginInfo{
		Name:        "seo",
		Description: "Site seo plugin",
		Priority:    PriorityOverride,
		Factory: func(ctx *Context) (Descriptor, error) {
			return Descriptor{Name: "seo", Author: "site"}, nil
		},
	})
	require.NoError(t, err)

	info = catalog.Get("seo")
	require.NotNil(t, info)
	assert.Equal(t, PriorityOverride, info.Priority)
	assert.Equal(t, "Site seo plugin", info.Description)

	d, err := catalog.Build(nil, "seo")
	require.NoError(t, err)
	assert.Equal(t, "site", d.Author)
}

func TestCatalog_LowerPrioritySkipped(t *testing.T) {
	catalog := NewCatalog()

	require.NoError(t, catalog.Register(PluginInfo{
		Name:        "seo",
		Description: "High priority",
		Priority:    PriorityOverride,
		Factory:     stubFactory("seo"),
	}))

	// Skipped without error
	require.NoError(t, catalog.Register(PluginInfo{
		Name:        "seo",
		Description: "Low priority",
		Priority:    PriorityDefault,
		Factory:     stubFactory("seo"),
	}))

	info := catalog.Get("seo")
	require.NotNil(t, info)
	assert.Equal(t, "High priority", info.Description)
}

func TestCatalog_List(t *testing.T) {
	catalog := NewCatalog()

	catalog.Register(PluginInfo{Name: "seo", Order: 60, Factory: stubFactory("seo")})
	catalog.Register(PluginInfo{Name: "markdown", Order: 10, Factory: stubFactory("markdown")})
	catalog.Register(PluginInfo{Name: "readingtime", Order: 50, Factory: stubFactory("readingtime")})
	catalog.Register(PluginInfo{Name: "analytics", Order: 50, Factory: stubFactory("analytics")})

	list := catalog.List()
	require.Len(t, list, 4)

	assert.Equal(t, "markdown", list[0].Name)    // Order 10
	assert.Equal(t, "analytics", list[1].Name)   // Order 50, "a" < "r"
	assert.Equal(t, "readingtime", list[2].Name) // Order 50
	assert.Equal(t, "seo", list[3].Name)         // Order 60
}

func TestCatalog_Descriptors(t *testing.T) {
	catalog := NewCatalog()
	built := make([]string, 0)

	for _, entry := range []struct {
		name  string
		order int
	}{{"second", 20}, {"first", 10}, {"third", 30}} {
		name := entry.name
		catalog.Register(PluginInfo{
			Name:        name,
			Description: name + " plugin",
			Order:       entry.order,
			Factory: func(ctx *Context) (Descriptor, error) {
				built = append(built, name)
				return Descriptor{}, nil
			},
		})
	}

	t.Run("all entries when enabled is nil", func(t *testing.T) {
		built = built[:0]
		descriptors, err := catalog.Descriptors(nil, nil)
		require.NoError(t, err)
		require.Len(t, descriptors, 3)
		assert.Equal(t, []string{"first", "second", "third"}, built)
		assert.Equal(t, "first", descriptors[0].Name, "name defaults to the catalog entry")
		assert.Equal(t, "first plugin", descriptors[0].Description)
	})

	t.Run("only enabled entries", func(t *testing.T) {
		built = built[:0]
		descriptors, err := catalog.Descriptors(nil, []string{"third", "first"})
		require.NoError(t, err)
		require.Len(t, descriptors, 2)
		assert.Equal(t, "first", descriptors[0].Name)
		assert.Equal(t, "third", descriptors[1].Name)
	})

	t.Run("empty enabled list selects nothing", func(t *testing.T) {
		descriptors, err := catalog.Descriptors(nil, []string{})
		require.NoError(t, err)
		assert.Empty(t, descriptors)
	})
}

func TestCatalog_Descriptors_FactoryError(t *testing.T) {
	catalog := NewCatalog()
	catalog.Register(PluginInfo{Name: "first", Order: 10, Factory: stubFactory("first")})
	catalog.Register(PluginInfo{
		Name:  "second",
		Order: 20,
		Factory: func(ctx *Context) (Descriptor, error) {
			return Descriptor{}, errors.New("creation failed")
		},
	})

	descriptors, err := catalog.Descriptors(nil, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create plugin second")
	assert.Nil(t, descriptors)
}

func TestCatalog_Build_NotFound(t *testing.T) {
	catalog := NewCatalog()
	_, err := catalog.Build(nil, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, catalog.Get("nonexistent"))
}

func TestCatalog_FactoryReceivesContext(t *testing.T) {
	catalog := NewCatalog()
	container := NewContainer()
	ctx := NewContext(container, nil, map[string]map[string]any{
		"readingtime": {"wpm": 180},
	}, true, "/etc/pressadmin")

	catalog.Register(PluginInfo{
		Name: "readingtime",
		Factory: func(ctx *Context) (Descriptor, error) {
			ctx.Container.ProvideValue("readingtime.wpm", ctx.SettingsFor("readingtime").Int("wpm", 200))
			assert.True(t, ctx.ReadOnly)
			assert.Equal(t, "/etc/pressadmin", ctx.ConfigDir)
			return Descriptor{Services: []ServiceID{"readingtime.wpm"}}, nil
		},
	})

	_, err := catalog.Build(ctx, "readingtime")
	require.NoError(t, err)

	wpm, err := container.Lookup("readingtime.wpm")
	require.NoError(t, err)
	assert.Equal(t, 180, wpm)
}

func TestCatalog_ClearAndDefaultOrder(t *testing.T) {
	catalog := NewCatalog()

	require.NoError(t, catalog.Register(PluginInfo{Name: "test", Factory: stubFactory("test")}))

	info := catalog.Get("test")
	require.NotNil(t, info)
	assert.Equal(t, DefaultOrder, info.Order)

	catalog.Clear()
	assert.Len(t, catalog.Names(), 0)
	assert.Nil(t, catalog.Get("test"))
}

func TestGlobalCatalog(t *testing.T) {
	ClearGlobal()
	defer ClearGlobal()

	err := Register(PluginInfo{
		Name:        "global-test",
		Description: "Testing global catalog",
		Factory:     stubFactory("global-test"),
	})
	require.NoError(t, err)

	info := Get("global-test")
	require.NotNil(t, info)
	assert.Equal(t, "Testing global catalog", info.Description)

	assert.Len(t, List(), 1)
	assert.Contains(t, Names(), "global-test")
	assert.Same(t, globalCatalog, Global())
}

func TestSettings(t *testing.T) {
	s := Settings{"int": 3, "int64": int64(4), "float": 5.0, "str": "x"}

	assert.Equal(t, 3, s.Int("int", 0))
	assert.Equal(t, 4, s.Int("int64", 0))
	assert.Equal(t, 5, s.Int("float", 0))
	assert.Equal(t, 9, s.Int("str", 9))
	assert.Equal(t, "x", s.String("str", ""))
	assert.Equal(t, "d", s.String("missing", "d"))

	var nilCtx *Context
	assert.NotNil(t, nilCtx.SettingsFor("any"))
}
