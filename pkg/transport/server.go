// Package transport exposes a debug engine to remote clients over websocket.
//
// Clients send JSON requests and receive one response per request. Every
// session transition is broadcast to all connected clients as an event.
// The server keeps no session state of its own.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/debug"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

// Debugger is the debug engine a Server forwards to.
type Debugger interface {
	Do(ctx context.Context, cmd debug.Command) error
	Evaluate(ctx context.Context, expr string) (value.Value, error)
	Stack() []debug.Frame
	Watch() (debug.Watch, error)
	Breakpoints() []debug.Breakpoint
	Subscribe(l debug.Listener) func()
	AnalyzeFrame(ctx context.Context, id model.ItemID, region debug.Region) (*debug.FrameAnalysis, error)
}

var _ Debugger = (*debug.Engine)(nil)

// Server is an http.Handler upgrading every request to a debug connection.
type Server struct {
	debugger Debugger
	logger   *slog.Logger
	upgrader websocket.Upgrader

	sendBuffer     int
	writeTimeout   time.Duration
	commandTimeout time.Duration
	stopOnEntry    bool

	seq atomic.Int64

	mu          sync.Mutex
	conns       map[*conn]struct{}
	closed      bool
	unsubscribe func()
}

var _ http.Handler = (*Server)(nil)

// New returns a server forwarding to d.
func New(d Debugger, opts ...Option) (*Server, error) {
	if d == nil {
		return nil, ErrDebuggerMustBeSet
	}

	s := &Server{
		debugger:       d,
		logger:         slog.Default(),
		sendBuffer:     defaultSendBuffer,
		writeTimeout:   defaultWriteTimeout,
		commandTimeout: defaultCommandTimeout,
		conns:          make(map[*conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsubscribe = d.Subscribe(s.broadcast)

	return s, nil
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("unable to upgrade connection", "error", err)
		return
	}

	c := newConn(ws, s.sendBuffer, s.logger)
	if !s.add(c) {
		c.close()
		return
	}
	defer s.remove(c)

	c.logger.Info("debug client connected")
	go c.writeLoop(s.writeTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.done
		cancel()
	}()

	s.readLoop(ctx, c)
	c.logger.Info("debug client disconnected")
}

// Close disconnects every client and stops forwarding events.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = map[*conn]struct{}{}
	s.mu.Unlock()

	s.unsubscribe()
	for _, c := range conns {
		c.close()
	}

	return nil
}

func (s *Server) add(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}

	return true
}

func (s *Server) remove(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()

	c.close()
}

func (s *Server) readLoop(ctx context.Context, c *conn) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("unable to read message", "error", err)
			}
			return
		}

		var req Message
		err = json.Unmarshal(data, &req)
		if err != nil {
			s.reply(c, Message{}, nil, errors.Wrapf(ErrInvalidMessage, "unable to decode request: %s", err))
			continue
		}
		if req.Type != TypeRequest {
			s.reply(c, req, nil, errors.Wrapf(ErrInvalidMessage, "unexpected %q message", req.Type))
			continue
		}

		body, err := s.handle(ctx, req)
		s.reply(c, req, body, err)
	}
}

func (s *Server) handle(ctx context.Context, req Message) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.commandTimeout)
	defer cancel()

	switch req.Command {
	case CommandStackTrace:
		return stackTrace(s.debugger.Stack()), nil
	case CommandVariables:
		return s.variables(req)
	case CommandEvaluate:
		var args EvaluateArguments
		err := decodeArguments(req, &args)
		if err != nil {
			return nil, err
		}
		v, err := s.debugger.Evaluate(ctx, args.Expression)
		if err != nil {
			return nil, err
		}
		return EvaluateBody{Result: newVariable(args.Expression, v)}, nil
	case CommandAnalyzeFrame:
		var args AnalyzeFrameArguments
		err := decodeArguments(req, &args)
		if err != nil {
			return nil, err
		}
		region := debug.Region{X: args.X, Y: args.Y, Width: args.Width, Height: args.Height, Stride: args.Stride}
		analysis, err := s.debugger.AnalyzeFrame(ctx, model.ItemID(args.Item), region)
		if err != nil {
			return nil, err
		}
		return analyzeFrameBody(analysis), nil
	}

	kind, err := debug.ParseCommand(req.Command)
	if err != nil {
		return nil, err
	}

	cmd := debug.Command{Kind: kind}
	switch kind {
	case debug.CommandAttach:
		var args AttachArguments
		err = decodeArguments(req, &args)
		if err != nil {
			return nil, err
		}
		cmd.Item = model.ItemID(args.Item)
		cmd.Breakpoints = args.Breakpoints
		cmd.StopOnEntry = args.StopOnEntry || s.stopOnEntry
		cmd.Locus, err = args.Locus.locus()
		if err != nil {
			return nil, err
		}
	case debug.CommandSetBreakpoints:
		var args BreakpointsArguments
		err = decodeArguments(req, &args)
		if err != nil {
			return nil, err
		}
		cmd.Item = model.ItemID(args.Item)
		cmd.Breakpoints = args.Breakpoints
	case debug.CommandSetBreakpoint, debug.CommandClearBreakpoint:
		var args BreakpointArguments
		err = decodeArguments(req, &args)
		if err != nil {
			return nil, err
		}
		cmd.Breakpoint = args.Breakpoint
	}

	err = s.debugger.Do(ctx, cmd)
	if err != nil {
		return nil, err
	}

	switch kind {
	case debug.CommandAttach, debug.CommandSetBreakpoints, debug.CommandSetBreakpoint, debug.CommandClearBreakpoint:
		return BreakpointsBody{Breakpoints: s.debugger.Breakpoints()}, nil
	default:
		return nil, nil
	}
}

func (s *Server) variables(req Message) (any, error) {
	var args VariablesArguments
	if len(req.Arguments) > 0 {
		err := decodeArguments(req, &args)
		if err != nil {
			return nil, err
		}
	}

	watch, err := s.debugger.Watch()
	if err != nil {
		return nil, err
	}
	stack := s.debugger.Stack()
	if args.Frame < 0 || args.Frame >= len(stack) {
		return nil, errors.Wrapf(ErrInvalidMessage, "frame %d out of %d", args.Frame, len(stack))
	}

	body := VariablesBody{
		Frame:    watch.Frame,
		Locals:   variables(stack[args.Frame].Locals),
		Globals:  variables(watch.Globals),
		System:   valueMap(watch.System),
		Uniforms: valueMap(watch.Uniforms),
	}
	for _, expr := range watch.Expressions {
		v := Variable{Name: expr.Expr, Value: expr.Error}
		if expr.Error == "" {
			v = newVariable(expr.Expr, expr.Value)
		}
		body.Expressions = append(body.Expressions, v)
	}

	return body, nil
}

func decodeArguments(req Message, v any) error {
	if len(req.Arguments) == 0 {
		return errors.Wrapf(ErrInvalidMessage, "%s requires arguments", req.Command)
	}

	err := json.Unmarshal(req.Arguments, v)
	if err != nil {
		return errors.Wrapf(ErrInvalidMessage, "unable to decode %s arguments: %s", req.Command, err)
	}

	return nil
}

func (s *Server) reply(c *conn, req Message, body any, err error) {
	resp := Message{
		Seq:        s.nextSeq(),
		Type:       TypeResponse,
		Command:    req.Command,
		RequestSeq: req.Seq,
		Success:    err == nil,
	}
	if err != nil {
		resp.Error = err.Error()
		c.logger.Debug("debug request failed", "command", req.Command, "error", err)
	}
	if err == nil && body != nil {
		resp.Body, err = json.Marshal(body)
		if err != nil {
			resp.Success = false
			resp.Error = errors.Wrap(err, "unable to encode body").Error()
		}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("unable to encode response", "command", req.Command, "error", err)
		return
	}
	if !c.send(data) {
		c.logger.Warn("dropping slow debug client")
		c.close()
	}
}

// broadcast forwards ev to every connection.
func (s *Server) broadcast(ev debug.Event) {
	name, body, ok := eventBody(ev)
	if !ok {
		return
	}

	raw, err := json.Marshal(body)
	if err != nil {
		s.logger.Error("unable to encode event", "event", name, "error", err)
		return
	}
	data, err := json.Marshal(Message{Seq: s.nextSeq(), Type: TypeEvent, Event: name, Body: raw})
	if err != nil {
		s.logger.Error("unable to encode event", "event", name, "error", err)
		return
	}

	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if !c.send(data) {
			c.logger.Warn("dropping slow debug client", "event", name)
			c.close()
		}
	}
}

func (s *Server) nextSeq() int {
	return int(s.seq.Add(1))
}
