package transport

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// conn is one client connection. Writes are funnelled through out so a
// single goroutine owns the websocket writer.
type conn struct {
	ws     *websocket.Conn
	logger *slog.Logger
	out    chan []byte
	done   chan struct{}
	once   sync.Once
}

func newConn(ws *websocket.Conn, buffer int, logger *slog.Logger) *conn {
	return &conn{
		ws:     ws,
		logger: logger.With("remote", ws.RemoteAddr().String()),
		out:    make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// send queues data. It returns false when the connection is closed or its
// queue is full.
func (c *conn) send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.out <- data:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

func (c *conn) writeLoop(timeout time.Duration) {
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			err := c.ws.SetWriteDeadline(time.Now().Add(timeout))
			if err != nil {
				c.logger.Debug("unable to set write deadline", "error", err)
				return
			}
			err = c.ws.WriteMessage(websocket.TextMessage, data)
			if err != nil {
				c.logger.Debug("unable to write message", "error", err)
				return
			}
		}
	}
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = c.ws.Close()
	})
}
