package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pressadmin/internal/clock"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler receives live messages of one type.
type Handler func(msg Message)

// Client connects to a hub, authenticates and dispatches incoming messages.
// When the connection drops it reconnects with exponential backoff until
// Disconnect is called.
type Client struct {
	url        string
	token      string
	logger     *zap.Logger
	conn       *websocket.Conn
	connected  bool
	connMu     sync.RWMutex
	handlers   map[string][]Handler
	handlersMu sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	reconnect  bool
	writeMu    sync.Mutex // Protects websocket writes
	minBackoff time.Duration
	maxBackoff time.Duration
	clock      clock.Clock
}

// NewClient creates a live feed client for a ws:// or wss:// URL.
func NewClient(url, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:        url,
		token:      token,
		logger:     logger.Named("live"),
		handlers:   make(map[string][]Handler),
		ctx:        ctx,
		cancel:     cancel,
		reconnect:  true,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
		clock:      clock.NewRealClock(),
	}
}

// SetClock replaces the clock that times reconnect backoff.
func (c *Client) SetClock(clk clock.Clock) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.clock = clk
}

// SetBackoff changes the reconnect delay bounds.
func (c *Client) SetBackoff(min, max time.Duration) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.minBackoff = min
	c.maxBackoff = max
}

// On adds a handler for messages of msgType.
func (c *Client) On(msgType string, handler Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[msgType] = append(c.handlers[msgType], handler)
}

func (c *Client) resetContextLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
}

// Connect dials the hub and completes the auth handshake.
func (c *Client) Connect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.connected {
		return fmt.Errorf("already connected")
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to live feed: %w", err)
	}

	if err := c.handshake(conn); err != nil {
		conn.Close()
		return err
	}

	c.conn = conn
	c.resetContextLocked()
	c.connected = true
	c.reconnect = true
	c.logger.Info("Connected to live feed", zap.String("url", c.url))

	go c.receiveMessages(c.ctx, conn)
	return nil
}

func (c *Client) handshake(conn *websocket.Conn) error {
	var first Message
	if err := conn.ReadJSON(&first); err != nil {
		return fmt.Errorf("failed to read handshake: %w", err)
	}

	reply := first
	if first.Type == TypeAuthRequired {
		c.writeMu.Lock()
		err := conn.WriteJSON(Message{Type: TypeAuth, AccessToken: c.token})
		c.writeMu.Unlock()
		if err != nil {
			return fmt.Errorf("failed to send auth: %w", err)
		}
		if err := conn.ReadJSON(&reply); err != nil {
			return fmt.Errorf("failed to read auth response: %w", err)
		}
	}

	switch reply.Type {
	case TypeAuthOK:
		return nil
	case TypeAuthInvalid:
		return fmt.Errorf("authentication failed: invalid token")
	default:
		return fmt.Errorf("expected auth_ok, got %s", reply.Type)
	}
}

// Disconnect closes the connection and stops reconnecting.
func (c *Client) Disconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.reconnect = false
	c.cancel()

	if !c.connected {
		return nil
	}
	c.connected = false

	if c.conn != nil {
		c.writeMu.Lock()
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		c.conn.Close()
		c.conn = nil
	}

	c.logger.Info("Disconnected from live feed")
	return nil
}

// IsConnected returns true if client is connected
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// receiveMessages dispatches incoming messages until the connection fails
func (c *Client) receiveMessages(ctx context.Context, conn *websocket.Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("Failed to read message", zap.Error(err))
			c.handleDisconnect(conn)
			return
		}

		c.handlersMu.RLock()
		handlers := append([]Handler(nil), c.handlers[msg.Type]...)
		c.handlersMu.RUnlock()

		for _, h := range handlers {
			h(msg)
		}
	}
}

// handleDisconnect handles connection loss
func (c *Client) handleDisconnect(conn *websocket.Conn) {
	c.connMu.Lock()
	if c.conn != conn {
		c.connMu.Unlock()
		return
	}
	c.connected = false
	c.conn = nil
	conn.Close()
	shouldReconnect := c.reconnect
	ctx := c.ctx
	c.connMu.Unlock()

	c.logger.Warn("Connection lost")

	if !shouldReconnect {
		return
	}
	go c.attemptReconnect(ctx)
}

// attemptReconnect tries to reconnect with exponential backoff
func (c *Client) attemptReconnect(ctx context.Context) {
	c.connMu.RLock()
	backoff, maxBackoff := c.minBackoff, c.maxBackoff
	clk := c.clock
	c.connMu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			return
		case <-clk.After(backoff):
		}

		c.logger.Info("Attempting to reconnect...")

		if err := c.Connect(); err != nil {
			c.logger.Error("Reconnection failed", zap.Error(err))
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.logger.Info("Reconnected successfully")
		return
	}
}
