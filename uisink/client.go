package uisink

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/skik4/cs2-casual-enjoyer-sub000/config"
	"github.com/skik4/cs2-casual-enjoyer-sub000/metrics"
)

const (
	writeRetryDelay = 200 * time.Millisecond
	writeRetryMax   = 3
	sendBuffer      = 64
)

// Client represents one connected UI (the browser overlay). Events are queued
// on a buffered channel and written by a dedicated goroutine, so a slow UI
// never blocks the join loops emitting into the hub.
type Client struct {
	ID   string
	conn *websocket.Conn
	cfg  *config.UIConfig

	send       chan interface{}
	pingTicker *time.Ticker
	ctx        context.Context
	cancel     context.CancelFunc
	closeOnce  sync.Once
	mu         sync.Mutex
}

func NewClient(id string, conn *websocket.Conn, cfg *config.UIConfig) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:     id,
		conn:   conn,
		cfg:    cfg,
		send:   make(chan interface{}, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Enqueue queues an event for delivery. When the client's buffer is full the
// event is dropped: the refresh tick re-emits current statuses soon anyway.
func (c *Client) Enqueue(event interface{}) {
	select {
	case c.send <- event:
	default:
		log.Warnf("Dropping event for slow UI client %s", c.ID)
	}
}

// StartPumps starts the write and ping goroutines.
func (c *Client) StartPumps() {
	c.pingTicker = time.NewTicker(time.Duration(c.cfg.PingInterval) * time.Second)
	go c.writeLoop()
	go c.pingLoop()
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case event := <-c.send:
			if err := c.safeWriteJSON(event); err != nil {
				log.Warnf("Failed to write to UI client %s: %v", c.ID, err)
				c.Close(websocket.CloseInternalServerErr, "Write failure")
				return
			}
			metrics.UIEventsSent.Inc()
		}
	}
}

// safeWriteJSON writes with constant-backoff retry, bounded so a dead
// connection fails over to Close instead of retrying forever.
func (c *Client) safeWriteJSON(data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	operation := func() error {
		return c.conn.WriteJSON(data)
	}

	backoffStrategy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(writeRetryDelay), writeRetryMax),
		c.ctx,
	)

	return backoff.RetryNotify(operation, backoffStrategy, func(err error, d time.Duration) {
		log.Warnf("Retrying UI write: %v (next attempt in %s)", err, d)
	})
}

func (c *Client) pingLoop() {
	defer c.pingTicker.Stop()

	for {
		select {
		case <-c.pingTicker.C:
			if err := c.sendPing(); err != nil {
				log.Warnf("Failed to ping UI client %s: %v", c.ID, err)
				c.Close(websocket.CloseInternalServerErr, "Ping failure")
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) sendPing() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.WriteControl(
		websocket.PingMessage,
		[]byte{},
		time.Now().Add(time.Duration(c.cfg.WriteTimeout)*time.Second),
	)
}

// Close stops the pumps and closes the connection. Safe to call repeatedly.
func (c *Client) Close(code int, text string) {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		defer c.mu.Unlock()

		writeTimeout := time.Duration(c.cfg.WriteTimeout) * time.Second
		err := c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, text),
			time.Now().Add(writeTimeout),
		)
		if err != nil {
			log.Debugf("Error sending close message to %s: %v", c.ID, err)
		}
		c.conn.Close()
	})
}
