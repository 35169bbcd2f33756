package live

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pressadmin/internal/clock"
	"pressadmin/pkg/plugin"
	"pressadmin/pkg/theme"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recorder collects messages delivered to client handlers.
type recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *recorder) handle(msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recorder) last(msgType string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].Type == msgType {
			return r.messages[i], true
		}
	}
	return Message{}, false
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

type fixture struct {
	registry *plugin.Registry
	loader   *theme.Loader
	port     *theme.ScriptedPort
	hub      *Hub
	server   *httptest.Server
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	logger := zap.NewNop()
	port := theme.NewScriptedPort()
	f := &fixture{
		registry: plugin.NewRegistry(nil, logger, nil),
		port:     port,
		loader:   theme.NewLoader(port, theme.Default(), logger, nil),
	}
	f.hub = NewHub(f.registry, f.loader, token, logger)
	f.server = httptest.NewServer(f.hub)
	t.Cleanup(func() {
		f.hub.Stop()
		f.server.Close()
		f.registry.Close()
		f.loader.Close()
	})
	return f
}

func connectClient(t *testing.T, url, token string) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	client := NewClient(url, token, zap.NewNop())
	client.On(TypePlugins, rec.handle)
	client.On(TypeTheme, rec.handle)
	require.NoError(t, client.Connect())
	t.Cleanup(func() { client.Disconnect() })
	return client, rec
}

func TestHub_SendsInitialSnapshots(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.registry.RegisterPlugin(plugin.Descriptor{Name: "markdown", Version: "1.0.0"}))

	client, rec := connectClient(t, wsURL(f.server), "")
	assert.True(t, client.IsConnected())

	require.Eventually(t, func() bool {
		_, gotPlugins := rec.last(TypePlugins)
		_, gotTheme := rec.last(TypeTheme)
		return gotPlugins && gotTheme
	}, 2*time.Second, 10*time.Millisecond)

	plugins, _ := rec.last(TypePlugins)
	require.Len(t, plugins.Plugins, 1)
	assert.Equal(t, "markdown", plugins.Plugins[0].Descriptor.Name)
	assert.True(t, plugins.Plugins[0].Loaded)

	themeMsg, _ := rec.last(TypeTheme)
	require.NotNil(t, themeMsg.Theme)
	assert.Equal(t, "Default", themeMsg.Theme.Name)
}

func TestHub_PushesChanges(t *testing.T) {
	f := newFixture(t, "")
	_, rec := connectClient(t, wsURL(f.server), "")

	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.registry.RegisterPlugin(plugin.Descriptor{Name: "seo"}))
	require.NoError(t, f.loader.ActivateTheme(t.Context(), theme.Descriptor{
		Name:   "Twenty",
		Styles: []string{"twenty/style.css"},
	}))

	require.Eventually(t, func() bool {
		msg, ok := rec.last(TypeTheme)
		return ok && msg.Theme.Name == "Twenty"
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		msg, ok := rec.last(TypePlugins)
		return ok && len(msg.Plugins) == 1 && msg.Plugins[0].Descriptor.Name == "seo"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_Authentication(t *testing.T) {
	f := newFixture(t, "s3cret")

	t.Run("valid token", func(t *testing.T) {
		client, _ := connectClient(t, wsURL(f.server), "s3cret")
		assert.True(t, client.IsConnected())
	})

	t.Run("invalid token", func(t *testing.T) {
		client := NewClient(wsURL(f.server), "wrong", zap.NewNop())
		err := client.Connect()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid token")
		assert.False(t, client.IsConnected())
	})
}

func TestHub_StopClosesConnections(t *testing.T) {
	f := newFixture(t, "")
	client, _ := connectClient(t, wsURL(f.server), "")
	client.SetBackoff(time.Hour, time.Hour)

	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.hub.Stop()
	assert.Equal(t, 0, f.hub.ClientCount())
	require.Eventually(t, func() bool { return !client.IsConnected() }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(f.server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestClient_Reconnects(t *testing.T) {
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}

	// Each connection authenticates, announces its sequence number as the
	// theme name, and the first one drops right after.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := connections.Add(1)
		conn.WriteJSON(Message{Type: TypeAuthRequired})
		var auth Message
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		conn.WriteJSON(Message{Type: TypeAuthOK})
		conn.WriteJSON(ThemeMessage(theme.Descriptor{Name: fmt.Sprint(n)}))

		if n == 1 {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	rec := &recorder{}
	client := NewClient(wsURL(server), "tok", zap.NewNop())
	client.SetBackoff(10*time.Millisecond, 50*time.Millisecond)
	client.On(TypeTheme, rec.handle)
	require.NoError(t, client.Connect())
	defer client.Disconnect()

	require.Eventually(t, func() bool {
		msg, ok := rec.last(TypeTheme)
		return ok && msg.Theme.Name == "2"
	}, 3*time.Second, 10*time.Millisecond)
	assert.True(t, client.IsConnected())
	assert.Equal(t, int32(2), connections.Load())
}

func TestClient_ReconnectWaitsForBackoff(t *testing.T) {
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := connections.Add(1)
		conn.WriteJSON(Message{Type: TypeAuthRequired})
		var auth Message
		if err := conn.ReadJSON(&auth); err != nil {
			return
		}
		conn.WriteJSON(Message{Type: TypeAuthOK})
		if n == 1 {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	clk := clock.NewMockClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	client := NewClient(wsURL(server), "tok", zap.NewNop())
	client.SetBackoff(5*time.Second, 20*time.Second)
	client.SetClock(clk)
	require.NoError(t, client.Connect())
	defer client.Disconnect()

	// The first connection drops and the client waits on the clock.
	require.Eventually(t, func() bool {
		return !client.IsConnected() && clk.Pending() == 1
	}, 3*time.Second, 10*time.Millisecond)

	clk.Advance(4 * time.Second)
	assert.Equal(t, 1, clk.Pending())
	assert.Equal(t, int32(1), connections.Load())

	clk.Advance(time.Second)
	require.Eventually(t, client.IsConnected, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), connections.Load())
}

func TestClient_ConnectTwice(t *testing.T) {
	f := newFixture(t, "")
	client, _ := connectClient(t, wsURL(f.server), "")

	err := client.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already connected")
}

func TestPluginsMessage_SortsByName(t *testing.T) {
	msg := PluginsMessage(map[string]plugin.Metadata{
		"seo":      {Descriptor: plugin.Descriptor{Name: "seo"}},
		"markdown": {Descriptor: plugin.Descriptor{Name: "markdown"}},
	})
	require.Len(t, msg.Plugins, 2)
	assert.Equal(t, "markdown", msg.Plugins[0].Descriptor.Name)
	assert.Equal(t, "seo", msg.Plugins[1].Descriptor.Name)
}
