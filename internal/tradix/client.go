package tradix

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// FrameHandler is called when a frame is received
type FrameHandler func(frame *Frame)

// Client is a WebSocket client for the Tradix gateway
type Client struct {
	url            string
	conn           *websocket.Conn
	logger         *zap.Logger
	sequence       int64
	writeMu        sync.Mutex
	handlers       []FrameHandler
	handlersMu     sync.RWMutex
	connected      bool
	connectedMu    sync.RWMutex
	done           chan struct{}
	reconnectDelay time.Duration
}

// NewClient creates a new Tradix gateway client
func NewClient(url string, reconnectDelay time.Duration, logger *zap.Logger) *Client {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &Client{
		url:            url,
		logger:         logger,
		handlers:       make([]FrameHandler, 0),
		done:           make(chan struct{}),
		reconnectDelay: reconnectDelay,
	}
}

// Connect establishes the WebSocket connection and starts the read loop
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("tradix.connecting", zap.String("url", c.url))

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to Tradix gateway: %w", err)
	}

	c.conn = conn
	c.setConnected(true)
	c.logger.Info("tradix.connected")

	go c.readLoop()

	return nil
}

// Close closes the WebSocket connection
func (c *Client) Close() error {
	close(c.done)
	c.setConnected(false)
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.connectedMu.RLock()
	defer c.connectedMu.RUnlock()
	return c.connected
}

func (c *Client) setConnected(connected bool) {
	c.connectedMu.Lock()
	defer c.connectedMu.Unlock()
	c.connected = connected
}

// AddHandler adds a frame handler. Handlers are invoked in registration order
// from the read loop goroutine.
func (c *Client) AddHandler(handler FrameHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers = append(c.handlers, handler)
}

// Send sends an operation frame to the gateway
func (c *Client) Send(ctx context.Context, operation string, payload interface{}) error {
	if !c.IsConnected() {
		return fmt.Errorf("not connected to Tradix gateway")
	}

	seq := int(atomic.AddInt64(&c.sequence, 2))
	frame, err := NewFrame(FrameTypeRequest, seq, operation, payload)
	if err != nil {
		return fmt.Errorf("failed to create frame: %w", err)
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	c.logger.Debug("tradix.send",
		zap.String("operation", operation),
		zap.Int("sequence", seq),
	)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}

	return nil
}

func (c *Client) readLoop() {
	defer func() {
		c.setConnected(false)
		c.logger.Info("tradix.read_loop_exited")
	}()

	for {
		select {
		case <-c.done:
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Info("tradix.closed_normally")
					return
				}
				c.logger.Error("tradix.read_failed", zap.Error(err))
				c.scheduleReconnect()
				return
			}

			var frame Frame
			if err := json.Unmarshal(message, &frame); err != nil {
				c.logger.Error("tradix.unmarshal_failed", zap.Error(err))
				continue
			}

			c.notifyHandlers(&frame)
		}
	}
}

func (c *Client) notifyHandlers(frame *Frame) {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()

	for _, handler := range c.handlers {
		handler(frame)
	}
}

func (c *Client) scheduleReconnect() {
	c.logger.Info("tradix.reconnect_scheduled", zap.Duration("delay", c.reconnectDelay))

	time.AfterFunc(c.reconnectDelay, func() {
		select {
		case <-c.done:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := c.Connect(ctx); err != nil {
			c.logger.Error("tradix.reconnect_failed", zap.Error(err))
			c.scheduleReconnect()
		}
	})
}
