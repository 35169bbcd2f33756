// Package live streams registry and theme snapshots to admin clients over a
// websocket, and provides the matching client.
package live

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"sync"
	"time"

	"pressadmin/pkg/plugin"
	"pressadmin/pkg/theme"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// authTimeout bounds how long a new connection may take to authenticate.
const authTimeout = 10 * time.Second

// PluginSource is the part of *plugin.Registry the hub reads.
type PluginSource interface {
	Watch(ctx context.Context) <-chan map[string]plugin.Metadata
}

// ThemeSource is the part of *theme.Loader the hub reads.
type ThemeSource interface {
	Watch(ctx context.Context) <-chan theme.Descriptor
}

// conn wraps a websocket connection with its write mutex
type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *conn) write(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(authTimeout))
	return c.ws.WriteJSON(msg)
}

// Hub serves the live feed. Every connection receives the current plugin
// and theme snapshots right after authenticating, then each later change.
type Hub struct {
	plugins  PluginSource
	themes   ThemeSource
	token    string
	logger   *zap.Logger
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connsMu sync.Mutex
	conns   map[*conn]context.CancelFunc
}

// NewHub creates a hub. An empty token disables authentication.
func NewHub(plugins PluginSource, themes ThemeSource, token string, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		plugins: plugins,
		themes:  themes,
		token:   token,
		logger:  logger.Named("live"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[*conn]context.CancelFunc),
	}
}

// ServeHTTP upgrades the request and streams snapshots until the client goes
// away or the hub stops.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "live feed stopped", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade connection", zap.Error(err))
		return
	}
	c := &conn{ws: ws}
	defer ws.Close()

	if err := h.authenticate(c); err != nil {
		h.logger.Info("Live client rejected",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	if !h.add(c, cancel) {
		return
	}
	defer h.remove(c)

	h.logger.Debug("Live client connected", zap.String("remote_addr", r.RemoteAddr))

	// Reads only detect the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.pump(ctx, c)
	h.logger.Debug("Live client disconnected", zap.String("remote_addr", r.RemoteAddr))
}

func (h *Hub) authenticate(c *conn) error {
	if h.token == "" {
		return c.write(Message{Type: TypeAuthOK})
	}

	if err := c.write(Message{Type: TypeAuthRequired}); err != nil {
		return fmt.Errorf("failed to send auth_required: %w", err)
	}

	c.ws.SetReadDeadline(time.Now().Add(authTimeout))
	var auth Message
	if err := c.ws.ReadJSON(&auth); err != nil {
		return fmt.Errorf("failed to read auth: %w", err)
	}
	c.ws.SetReadDeadline(time.Time{})

	if auth.Type != TypeAuth || subtle.ConstantTimeCompare([]byte(auth.AccessToken), []byte(h.token)) != 1 {
		c.write(Message{Type: TypeAuthInvalid})
		return fmt.Errorf("invalid token")
	}
	return c.write(Message{Type: TypeAuthOK})
}

func (h *Hub) pump(ctx context.Context, c *conn) {
	plugins := h.plugins.Watch(ctx)
	themes := h.themes.Watch(ctx)

	for {
		var msg Message
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-plugins:
			if !ok {
				return
			}
			msg = PluginsMessage(snapshot)
		case d, ok := <-themes:
			if !ok {
				return
			}
			msg = ThemeMessage(d)
		}

		if err := c.write(msg); err != nil {
			h.logger.Debug("Failed to write live message", zap.Error(err))
			return
		}
	}
}

func (h *Hub) add(c *conn, cancel context.CancelFunc) bool {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	if h.ctx.Err() != nil {
		return false
	}
	h.conns[c] = cancel
	h.wg.Add(1)
	return true
}

func (h *Hub) remove(c *conn) {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		h.wg.Done()
	}
}

// ClientCount returns the number of authenticated connections.
func (h *Hub) ClientCount() int {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	return len(h.conns)
}

// Stop closes every connection and waits for their handlers to return.
func (h *Hub) Stop() {
	h.connsMu.Lock()
	h.cancel()
	for c, cancel := range h.conns {
		cancel()
		c.writeMu.Lock()
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"))
		c.writeMu.Unlock()
		c.ws.Close()
	}
	h.connsMu.Unlock()

	h.wg.Wait()
	h.logger.Info("Live feed stopped")
}
