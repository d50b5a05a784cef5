package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const wsWriteTimeout = 5 * time.Second

// WSHandlers receives connection lifecycle callbacks. OnOpen fires after
// every successful (re)connect, so subscription state must be idempotent.
type WSHandlers struct {
	OnOpen    func(c *WSClient)
	OnMessage func(payload []byte)
	OnClose   func()
	OnError   func(err error)
}

// WSClient maintains one persistent websocket connection with bounded-backoff
// reconnect. Each client runs in its own goroutine; messages are delivered
// sequentially to OnMessage.
type WSClient struct {
	url      string
	handlers WSHandlers
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	conn   *websocket.Conn
	connMu sync.RWMutex
}

// NewWSClient prepares a client for url. Start must be called to connect.
func NewWSClient(url string, handlers WSHandlers, log zerolog.Logger) *WSClient {
	return &WSClient{url: url, handlers: handlers, log: log}
}

// Start runs the connect/read/reconnect loop until ctx is cancelled or Close
// is called.
func (c *WSClient) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	go c.run()
}

// Close tears the connection down and stops the reconnect loop.
func (c *WSClient) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "shutdown")
		c.conn = nil
	}
	c.connMu.Unlock()
}

// Send marshals v and writes it as a text frame.
func (c *WSClient) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.SendRaw(data)
}

// SendRaw writes a pre-encoded text frame.
func (c *WSClient) SendRaw(data []byte) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return errors.New("websocket not connected")
	}
	writeCtx, cancel := context.WithTimeout(c.ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (c *WSClient) run() {
	backoffCfg := backoff.NewExponentialBackOff()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.Dial(c.ctx, c.url, nil)
		if err != nil {
			c.reportError(err)
			if !c.sleep(backoffCfg.NextBackOff()) {
				return
			}
			continue
		}
		conn.SetReadLimit(1 << 22)

		c.connMu.Lock()
		c.conn = conn
		c.connMu.Unlock()
		backoffCfg.Reset()

		if c.handlers.OnOpen != nil {
			c.handlers.OnOpen(c)
		}

		err = c.readLoop(conn)
		if errors.Is(err, context.Canceled) {
			return
		}
		c.reportError(err)

		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()

		if c.handlers.OnClose != nil {
			c.handlers.OnClose()
		}
		if !c.sleep(backoffCfg.NextBackOff()) {
			return
		}
	}
}

func (c *WSClient) readLoop(conn *websocket.Conn) error {
	for {
		msgType, data, err := conn.Read(c.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return context.Canceled
			}
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(data)
		}
	}
}

func (c *WSClient) sleep(d time.Duration) bool {
	select {
	case <-c.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (c *WSClient) reportError(err error) {
	if err == nil {
		return
	}
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
		return
	}
	c.log.Error().Err(err).Str("url", c.url).Msg("websocket error")
}
