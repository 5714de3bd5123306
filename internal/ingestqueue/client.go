package ingestqueue

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"alertd/internal/logger"
	"alertd/internal/models"
)

// State is the client connection state, exposed so a consumer can show a
// "reconnecting" indicator. Connection failures never propagate beyond it.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Reconnect backoff: initial delay, multiplier, cap. Reset on any
// successful connect.
const (
	initialRetryDelay = time.Second
	retryMultiplier   = 1.8
	maxRetryDelay     = 15 * time.Second
)

// Client subscribes to the live alert stream over WebSocket and feeds every
// received alert into a Queue.
type Client struct {
	url     string
	header  http.Header
	queue   *Queue
	dialer  *websocket.Dialer
	log     zerolog.Logger
	onState func(State)

	stopped atomic.Bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithStateFunc registers a connection-state callback.
func WithStateFunc(fn func(State)) ClientOption {
	return func(c *Client) { c.onState = fn }
}

// WithDialer overrides the WebSocket dialer.
func WithDialer(d *websocket.Dialer) ClientOption {
	return func(c *Client) { c.dialer = d }
}

// NewClient creates a subscriber client. token may be empty for
// unauthenticated endpoints.
func NewClient(url, token string, queue *Queue, opts ...ClientOption) *Client {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	c := &Client{
		url:    url,
		header: header,
		queue:  queue,
		dialer: websocket.DefaultDialer,
		log:    logger.WithComponent("subscriber"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stop prevents any further connection attempt, including retries already
// scheduled. Safe to call concurrently with Run.
func (c *Client) Stop() {
	c.stopped.Store(true)
}

// Run connects and reads until ctx is cancelled or Stop is called. Connect
// failures back off exponentially; a successful connect resets the delay.
func (c *Client) Run(ctx context.Context) {
	delay := initialRetryDelay
	for {
		if c.stopped.Load() || ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}

		c.setState(StateConnecting)
		conn, resp, err := c.dialer.DialContext(ctx, c.url, c.header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			c.setState(StateDisconnected)
			c.log.Warn().Err(err).Dur("retry_in", delay).Msg("connect failed")
			if !c.sleep(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}

		delay = initialRetryDelay
		c.setState(StateConnected)
		c.log.Info().Str("url", c.url).Msg("connected")

		c.readLoop(ctx, conn)
		c.setState(StateDisconnected)
		c.log.Info().Msg("disconnected")
	}
}

// readLoop decodes alerts off the connection until it fails or ctx ends.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var alert models.Alert
		if err := conn.ReadJSON(&alert); err != nil {
			if ctx.Err() == nil && !c.stopped.Load() {
				c.log.Warn().Err(err).Msg("read failed")
			}
			return
		}
		c.queue.Offer(alert)
	}
}

// sleep waits for d, aborting early on cancellation. Returns false when the
// caller should stop retrying. The stop flag is re-checked after the wait so
// a Stop during the delay turns the scheduled retry into a no-op.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
	}
	return !c.stopped.Load()
}

func (c *Client) setState(s State) {
	if c.onState != nil {
		c.onState(s)
	}
}

func nextDelay(d time.Duration) time.Duration {
	next := time.Duration(float64(d) * retryMultiplier)
	if next > maxRetryDelay {
		next = maxRetryDelay
	}
	return next
}
