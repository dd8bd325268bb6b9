package transport

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultSendBuffer     = 64
	defaultWriteTimeout   = 5 * time.Second
	defaultCommandTimeout = 30 * time.Second
)

// Option configures a Server.
type Option func(s *Server)

// WithLogger sets the logger of the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSendBuffer sets how many outgoing messages are queued per connection.
// A connection whose queue is full is dropped.
func WithSendBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.sendBuffer = n
		}
	}
}

// WithWriteTimeout bounds each websocket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithCommandTimeout bounds the processing of one debug command.
func WithCommandTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.commandTimeout = d
		}
	}
}

// WithCheckOrigin replaces the origin check of the websocket upgrade.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(s *Server) {
		s.upgrader.CheckOrigin = check
	}
}

// WithStopOnEntry makes every attach stop on the first statement.
func WithStopOnEntry(enabled bool) Option {
	return func(s *Server) {
		s.stopOnEntry = enabled
	}
}
