package ws

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"presence-room/internal/gateway"
	"presence-room/internal/telemetry"
)

// ErrNotSubscribed is returned by Trigger before Subscribe succeeds or after
// the connection is gone.
var ErrNotSubscribed = errors.New("ws: not subscribed")

// ClientConfig describes how to reach the relay.
type ClientConfig struct {
	// URL is the relay websocket endpoint, for example ws://host:8080/ws.
	URL         string
	Member      gateway.Member
	DialTimeout time.Duration
	Logger      telemetry.Logger
}

// Client implements gateway.Transport over a single relay websocket.
type Client struct {
	cfg    ClientConfig
	logger telemetry.Logger
	dialer websocket.Dialer

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	channel string
	token   string
}

// NewClient validates cfg. No connection is made until Subscribe.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("ws: relay url is required")
	}
	if cfg.Member.ID == "" {
		return nil, errors.New("ws: member id is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		dialer: websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
	}, nil
}

// ConnectionToken implements gateway.Transport. It is empty until the relay
// has welcomed the connection.
func (c *Client) ConnectionToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) endpoint(channel string) (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("ws: parse relay url: %w", err)
	}
	q := u.Query()
	q.Set("channel", channel)
	q.Set("member", c.cfg.Member.ID)
	if c.cfg.Member.Info.Name != "" {
		q.Set("name", c.cfg.Member.Info.Name)
	}
	if c.cfg.Member.Info.WorldDigest != "" {
		q.Set("digest", c.cfg.Member.Info.WorldDigest)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Subscribe implements gateway.Transport. It dials the relay, waits for the
// welcome frame and starts the read loop.
func (c *Client) Subscribe(channel string, handler gateway.Handler) (gateway.Unsubscribe, error) {
	if handler == nil {
		return nil, errors.New("ws: handler is required")
	}
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("ws: already subscribed to %s", c.channel)
	}
	c.mu.Unlock()

	endpoint, err := c.endpoint(channel)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	defer cancel()
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nethttp.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws: dial %s: %w (status %d)", endpoint, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("ws: dial %s: %w", endpoint, err)
	}
	conn.SetReadLimit(maxFrameBytes)

	conn.SetReadDeadline(time.Now().Add(c.cfg.DialTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ws: read welcome: %w", err)
	}
	welcome, err := decodeFrame(payload)
	if err != nil || welcome.Type != FrameWelcome || welcome.Token == "" {
		conn.Close()
		return nil, fmt.Errorf("ws: unexpected first frame %q", welcome.Type)
	}
	conn.SetReadDeadline(time.Time{})

	c.mu.Lock()
	c.conn = conn
	c.channel = channel
	c.token = welcome.Token
	c.mu.Unlock()

	done := make(chan struct{})
	go c.readLoop(conn, handler, done)

	var once sync.Once
	return func() error {
		var closeErr error
		once.Do(func() {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
				c.token = ""
			}
			c.mu.Unlock()
			c.writeMu.Lock()
			message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			closeErr = conn.Close()
			<-done
		})
		return closeErr
	}, nil
}

func (c *Client) readLoop(conn *websocket.Conn, handler gateway.Handler, done chan<- struct{}) {
	defer close(done)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
				c.token = ""
			}
			c.mu.Unlock()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Printf("[ws] relay connection closed: %v", err)
			}
			return
		}
		frame, err := decodeFrame(payload)
		if err != nil {
			c.logger.Printf("[ws] discarding malformed frame: %v", err)
			continue
		}
		switch frame.Type {
		case FrameMessage:
			handler(gateway.Message{Event: frame.Event, Data: frame.Data, Member: frame.Member})
		case FrameError:
			c.logger.Printf("[ws] relay rejected %s: %s", frame.Event, frame.Error)
		}
	}
}

// Trigger implements gateway.Transport.
func (c *Client) Trigger(ctx context.Context, channel, event string, data []byte, exclude string) error {
	c.mu.Lock()
	conn := c.conn
	subscribed := c.channel
	c.mu.Unlock()
	if conn == nil {
		return ErrNotSubscribed
	}
	if channel != subscribed {
		return fmt.Errorf("ws: connection is bound to %s, not %s", subscribed, channel)
	}
	payload, err := encodeFrame(Frame{Type: FrameTrigger, Event: event, Data: data, Exclude: exclude})
	if err != nil {
		return fmt.Errorf("ws: encode trigger: %w", err)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return fmt.Errorf("ws: write trigger: %w", err)
	}
	return nil
}

var _ gateway.Transport = (*Client)(nil)
