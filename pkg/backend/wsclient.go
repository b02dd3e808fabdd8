package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

var (
	// ErrNotConnected is returned when writing before Connect succeeded.
	ErrNotConnected = errors.New("backend: websocket not connected")

	// ErrClientClosed is returned by Connect and Listen after Close.
	ErrClientClosed = errors.New("backend: websocket client closed")
)

// WSOptions tunes the WebSocket client.
type WSOptions struct {
	HandshakeTimeout time.Duration
	PingInterval     time.Duration // 0 disables client pings
	ReconnectDelay   time.Duration
}

// WSClient handles a WebSocket connection to one backend channel and message routing.
type WSClient struct {
	url          string
	opts         WSOptions
	handler      func([]byte)
	onReconnect  func()
	subscription map[string]any
	logger       *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	writeMu sync.Mutex
}

// NewWSClient creates a client for baseURL+path (e.g. "ws://host:8000" + "/ws/games/401").
func NewWSClient(baseURL, path string, opts WSOptions, logger *zap.Logger) *WSClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 3 * time.Second
	}
	return &WSClient{
		url:    strings.TrimRight(baseURL, "/") + path,
		opts:   opts,
		logger: logger.With(zap.String("ws", path)),
	}
}

// URL returns the full channel URL.
func (c *WSClient) URL() string { return c.url }

// SetMessageHandler sets the function to handle incoming messages.
func (c *WSClient) SetMessageHandler(h func([]byte)) {
	c.handler = h
}

// SetReconnectHandler sets a function run after every successful reconnect.
func (c *WSClient) SetReconnectHandler(f func()) {
	c.onReconnect = f
}

// SetSubscription sets a message sent right after every (re)connect.
// A request id is added to each send.
func (c *WSClient) SetSubscription(msg map[string]any) {
	c.subscription = msg
}

// Connect establishes the WebSocket connection and sends the subscription, if any.
// It does not start the listener.
func (c *WSClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.logger.Error("Failed to connect to WebSocket", zap.String("url", c.url), zap.Error(err))
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClientClosed
	}
	old := c.conn
	c.conn = conn
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	c.logger.Info("WebSocket connected", zap.String("url", c.url))

	if c.subscription != nil {
		msg := make(map[string]any, len(c.subscription)+1)
		for k, v := range c.subscription {
			msg[k] = v
		}
		msg["id"] = uuid.NewString()
		if err := c.WriteJSON(msg); err != nil {
			c.logger.Error("Failed to send subscription", zap.Error(err))
			return fmt.Errorf("websocket subscribe failed: %w", err)
		}
	}

	return nil
}

// Listen reads frames until ctx is cancelled, reconnecting on read errors.
// It returns ctx.Err() on cancellation.
func (c *WSClient) Listen(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { c.closeConn() })
	defer stop()

	if c.opts.PingInterval > 0 {
		go c.pingLoop(ctx)
	}

	for {
		conn := c.current()
		if conn == nil {
			if err := c.reconnect(ctx); err != nil {
				return err
			}
			continue
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("WebSocket read error", zap.Error(err))
			if err := c.reconnect(ctx); err != nil {
				return err
			}
			continue // Start listening again with the new connection
		}

		if c.handler != nil {
			c.handler(msg)
		}
	}
}

// reconnect retries until a connection is established or ctx ends.
func (c *WSClient) reconnect(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.ReconnectDelay):
		}

		if err := c.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrClientClosed) {
				return err
			}
			c.logger.Warn("Retrying reconnect...", zap.Error(err))
			continue
		}
		c.logger.Info("Reconnected successfully")
		if c.onReconnect != nil {
			c.onReconnect()
		}
		return nil
	}
}

func (c *WSClient) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.WriteJSON(map[string]any{"type": "ping", "ts": time.Now().UnixMilli()}); err != nil {
				c.logger.Debug("ping failed", zap.Error(err))
			}
		}
	}
}

// WriteJSON sends one JSON frame. Writes are serialized.
func (c *WSClient) WriteJSON(v any) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// Close shuts the connection down; a running Listen returns ErrClientClosed.
func (c *WSClient) Close() error {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}

func (c *WSClient) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *WSClient) closeConn() {
	if conn := c.current(); conn != nil {
		_ = conn.Close()
	}
}
