package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const clientEventBuffer = 256

// Client is a debug connection to a Server.
type Client struct {
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	seq     int

	mu      sync.Mutex
	pending map[int]chan Message
	err     error

	events chan Message
	done   chan struct{}
}

// ClientOption configures a Client.
type ClientOption func(c *Client)

// WithClientLogger sets the logger of the client.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Dial connects to the server at url, a ws:// or wss:// address.
func Dial(ctx context.Context, url string, opts ...ClientOption) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to dial %s", url)
	}

	c := &Client{
		ws:      ws,
		logger:  slog.Default(),
		pending: make(map[int]chan Message),
		events:  make(chan Message, clientEventBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()

	return c, nil
}

// Events returns the events broadcast by the server. The channel is closed
// when the connection ends. Events are dropped while the channel is full.
func (c *Client) Events() <-chan Message {
	return c.events
}

// Request sends command with args and waits for its response. The response
// body is decoded into body when both are set.
func (c *Client) Request(ctx context.Context, command string, args, body any) error {
	req := Message{Type: TypeRequest, Command: command}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return errors.Wrapf(err, "unable to encode %s arguments", command)
		}
		req.Arguments = raw
	}

	reply := make(chan Message, 1)

	c.writeMu.Lock()
	c.seq++
	req.Seq = c.seq
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		c.writeMu.Unlock()
		return err
	}
	c.pending[req.Seq] = reply
	c.mu.Unlock()
	err := c.ws.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(req.Seq)
		return errors.Wrapf(err, "unable to send %s", command)
	}

	select {
	case resp := <-reply:
		if !resp.Success {
			return errors.Wrapf(ErrRequestFailed, "%s: %s", command, resp.Error)
		}
		if body != nil && len(resp.Body) > 0 {
			return resp.Decode(body)
		}
		return nil
	case <-c.done:
		return errors.Wrapf(c.closedErr(), "%s", command)
	case <-ctx.Done():
		c.forget(req.Seq)
		return errors.Wrapf(ctx.Err(), "%s", command)
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	err := c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	if err != nil {
		_ = c.ws.Close()
		return errors.Wrap(err, "unable to send close")
	}
	<-c.done

	return c.ws.Close()
}

func (c *Client) readLoop() {
	defer close(c.events)
	defer close(c.done)

	for {
		var msg Message
		err := c.ws.ReadJSON(&msg)
		if err != nil {
			c.mu.Lock()
			c.err = errors.Wrap(ErrClosed, err.Error())
			c.mu.Unlock()
			return
		}

		switch msg.Type {
		case TypeResponse:
			c.mu.Lock()
			reply, ok := c.pending[msg.RequestSeq]
			delete(c.pending, msg.RequestSeq)
			c.mu.Unlock()
			if ok {
				reply <- msg
			}
		case TypeEvent:
			select {
			case c.events <- msg:
			default:
				c.logger.Warn("dropping debug event", "event", msg.Event)
			}
		default:
			c.logger.Debug("ignoring message", "type", msg.Type)
		}
	}
}

func (c *Client) forget(seq int) {
	c.mu.Lock()
	delete(c.pending, seq)
	c.mu.Unlock()
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}

	return ErrClosed
}
