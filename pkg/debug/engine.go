// Package debug attaches to one invocation of a pipeline item and runs it
// through the shader interpreter, pausing on breakpoints and step targets.
//
// A session never suspends the interpreter. Every command re-executes the
// invocation from the start and stops at the first qualifying statement after
// the current pause, which keeps runs deterministic.
//
// Commands are queued and applied in arrival order. Events are delivered to
// listeners after each command, in the order the transitions happened.
package debug

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gogpu/naga/wgsl"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/internal/interp"
	"github.com/askiada/go-shaderpipe/pkg/pipeline"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/registry"
	"github.com/askiada/go-shaderpipe/pkg/sysvar"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

// Target is the pipeline a session reads programs, bindings and uniforms from.
type Target interface {
	Item(id model.ItemID) (pipeline.ItemView, error)
	Uniforms(id model.ItemID, vars *sysvar.Snapshot) (map[string]value.Value, error)
	Registry() *registry.Registry
}

// Variables supplies the system variable snapshot frozen at attach.
type Variables interface {
	Snapshot() *sysvar.Snapshot
}

// instrumented is implemented by programs that keep their syntax tree.
type instrumented interface {
	AST() *wgsl.Module
}

// Engine is a debug session manager. It holds at most one session.
type Engine struct {
	target Target
	vars   Variables
	logger *slog.Logger

	maxStackDepth int
	maxSteps      int

	// run serializes command processing and event delivery.
	run sync.Mutex

	queueMu sync.Mutex
	queue   []pending

	mu           sync.Mutex
	state        State
	session      *session
	bps          breakpoints
	watches      []string
	listeners    map[int]Listener
	nextListener int
}

// New creates an engine reading from target and vars.
func New(target Target, vars Variables, opts ...Option) (*Engine, error) {
	if target == nil {
		return nil, ErrTargetMustBeSet
	}
	if vars == nil {
		return nil, ErrVariablesMustBeSet
	}

	e := &Engine{
		target:        target,
		vars:          vars,
		logger:        slog.Default(),
		maxStackDepth: DefaultMaxStackDepth,
		maxSteps:      DefaultMaxSteps,
		listeners:     make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Subscribe registers l for every future event and returns a function removing it.
func (e *Engine) Subscribe(l Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextListener
	e.nextListener++
	e.listeners[id] = l

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// CommandKind names a session command.
type CommandKind uint8

const (
	CommandAttach CommandKind = iota + 1
	CommandSetBreakpoints
	CommandSetBreakpoint
	CommandClearBreakpoint
	CommandContinue
	CommandStepOver
	CommandStepInto
	CommandStepOut
	CommandTerminate
	CommandDetach
)

var commandNames = map[CommandKind]string{
	CommandAttach:          "attach",
	CommandSetBreakpoints:  "setBreakpoints",
	CommandSetBreakpoint:   "setBreakpoint",
	CommandClearBreakpoint: "clearBreakpoint",
	CommandContinue:        "continue",
	CommandStepOver:        "stepOver",
	CommandStepInto:        "stepInto",
	CommandStepOut:         "stepOut",
	CommandTerminate:       "terminate",
	CommandDetach:          "detach",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}

	return "unknown"
}

// ParseCommand returns the command named name.
func ParseCommand(name string) (CommandKind, error) {
	for k, n := range commandNames {
		if n == name {
			return k, nil
		}
	}

	return 0, errors.Wrapf(ErrUnknownCommand, "%q", name)
}

// Command is a queued session command. Locus and StopOnEntry are read by
// attach, Breakpoints by attach and setBreakpoints, Breakpoint by
// setBreakpoint and clearBreakpoint. Item names the item to attach to; on
// setBreakpoints a non-zero Item must be the attached item.
type Command struct {
	Kind        CommandKind
	Item        model.ItemID
	Locus       Locus
	Breakpoints []Breakpoint
	Breakpoint  Breakpoint
	StopOnEntry bool
}

type pending struct {
	cmd   Command
	reply chan error
}

// Enqueue queues cmd. The returned channel receives the outcome once the
// command has been applied by ProcessPending.
func (e *Engine) Enqueue(cmd Command) <-chan error {
	reply := make(chan error, 1)

	e.queueMu.Lock()
	e.queue = append(e.queue, pending{cmd: cmd, reply: reply})
	e.queueMu.Unlock()

	return reply
}

// ProcessPending applies every queued command in arrival order and returns
// how many were applied.
func (e *Engine) ProcessPending(ctx context.Context) int {
	e.run.Lock()
	defer e.run.Unlock()

	count := 0
	for {
		e.queueMu.Lock()
		if len(e.queue) == 0 {
			e.queueMu.Unlock()
			return count
		}
		next := e.queue[0]
		e.queue = e.queue[1:]
		e.queueMu.Unlock()

		next.reply <- e.process(ctx, next.cmd)
		count++
	}
}

// Do queues cmd, processes the queue and waits for the outcome of cmd.
func (e *Engine) Do(ctx context.Context, cmd Command) error {
	reply := e.Enqueue(cmd)
	e.ProcessPending(ctx)

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "%s cancelled", cmd.Kind)
	}
}

// Attach starts a session on one invocation of item. It fails with
// ErrNotCompiled when the item has no valid build, leaving the engine detached.
func (e *Engine) Attach(ctx context.Context, item model.ItemID, locus Locus, bps []Breakpoint, stopOnEntry bool) error {
	return e.Do(ctx, Command{Kind: CommandAttach, Item: item, Locus: locus, Breakpoints: bps, StopOnEntry: stopOnEntry})
}

// Continue runs until the next breakpoint or the end of the invocation.
func (e *Engine) Continue(ctx context.Context) error {
	return e.Do(ctx, Command{Kind: CommandContinue})
}

// StepOver pauses at the next statement of the current function or its callers.
func (e *Engine) StepOver(ctx context.Context) error {
	return e.Do(ctx, Command{Kind: CommandStepOver})
}

// StepInto pauses at the next statement, entering calls.
func (e *Engine) StepInto(ctx context.Context) error {
	return e.Do(ctx, Command{Kind: CommandStepInto})
}

// StepOut pauses at the next statement after the current function returns.
func (e *Engine) StepOut(ctx context.Context) error {
	return e.Do(ctx, Command{Kind: CommandStepOut})
}

// Terminate ends the session.
func (e *Engine) Terminate(ctx context.Context) error {
	return e.Do(ctx, Command{Kind: CommandTerminate})
}

// Detach ends the session and forgets it.
func (e *Engine) Detach(ctx context.Context) error {
	return e.Do(ctx, Command{Kind: CommandDetach})
}

// SetBreakpoint adds or replaces a breakpoint.
func (e *Engine) SetBreakpoint(ctx context.Context, bp Breakpoint) error {
	return e.Do(ctx, Command{Kind: CommandSetBreakpoint, Breakpoint: bp})
}

// ClearBreakpoint removes a breakpoint.
func (e *Engine) ClearBreakpoint(ctx context.Context, bp Breakpoint) error {
	return e.Do(ctx, Command{Kind: CommandClearBreakpoint, Breakpoint: bp})
}

// SetBreakpoints replaces every breakpoint.
func (e *Engine) SetBreakpoints(ctx context.Context, bps []Breakpoint) error {
	return e.Do(ctx, Command{Kind: CommandSetBreakpoints, Breakpoints: bps})
}

func (e *Engine) process(ctx context.Context, cmd Command) error {
	e.mu.Lock()
	var events []Event
	emit := func(ev Event) { events = append(events, ev) }
	err := e.apply(ctx, cmd, emit)
	listeners := make([]Listener, 0, len(e.listeners))
	for id := 0; id < e.nextListener; id++ {
		if l, ok := e.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Debug("debug command failed", "command", cmd.Kind.String(), "error", err)
	}

	for _, ev := range events {
		for _, l := range listeners {
			l(ev)
		}
	}

	return err
}

func (e *Engine) apply(ctx context.Context, cmd Command, emit func(Event)) error {
	switch cmd.Kind {
	case CommandAttach:
		return e.attach(ctx, cmd, emit)
	case CommandSetBreakpoints:
		if e.state == StateTerminated {
			return errors.Wrap(ErrInvalidState, "set breakpoints on a terminated session")
		}
		if cmd.Item != 0 && e.session != nil && cmd.Item != e.session.item {
			return errors.Wrapf(ErrItemMismatch, "breakpoints for %s, attached to %s", cmd.Item, e.session.item)
		}
		var next breakpoints
		for _, bp := range cmd.Breakpoints {
			err := bp.validate()
			if err != nil {
				return err
			}
			next.set(bp)
		}
		e.bps = next
		return nil
	case CommandSetBreakpoint:
		if e.state == StateTerminated {
			return errors.Wrap(ErrInvalidState, "set breakpoint on a terminated session")
		}
		err := cmd.Breakpoint.validate()
		if err != nil {
			return err
		}
		e.bps.set(cmd.Breakpoint)
		return nil
	case CommandClearBreakpoint:
		if e.state == StateTerminated {
			return errors.Wrap(ErrInvalidState, "clear breakpoint on a terminated session")
		}
		if !e.bps.clear(cmd.Breakpoint) {
			return errors.Wrapf(ErrInvalidBreakpoint, "%s is not set", cmd.Breakpoint)
		}
		return nil
	case CommandContinue:
		return e.resume(ctx, modeContinue, emit)
	case CommandStepOver:
		return e.resume(ctx, modeOver, emit)
	case CommandStepInto:
		return e.resume(ctx, modeInto, emit)
	case CommandStepOut:
		return e.resume(ctx, modeOut, emit)
	case CommandTerminate:
		return e.end(ReasonTerminated, emit)
	case CommandDetach:
		return e.end(ReasonDetached, emit)
	default:
		return errors.Wrapf(ErrUnknownCommand, "%d", cmd.Kind)
	}
}

func (e *Engine) transition(to State, emit func(Event)) {
	if e.state == to {
		return
	}
	from := e.state
	e.state = to
	e.logger.Debug("debug session state changed", "from", from.String(), "to", to.String())
	emit(StateChanged{From: from, To: to})
}

func (e *Engine) attach(ctx context.Context, cmd Command, emit func(Event)) error {
	if e.state != StateDetached {
		return errors.Wrapf(ErrInvalidState, "attach while %s", e.state)
	}
	if cmd.Locus == nil {
		return errors.Wrap(ErrInvalidState, "attach without a locus")
	}
	for _, bp := range cmd.Breakpoints {
		err := bp.validate()
		if err != nil {
			return err
		}
	}

	s, err := e.open(cmd.Item, cmd.Locus)
	if err != nil {
		return err
	}
	for _, bp := range cmd.Breakpoints {
		e.bps.set(bp)
	}

	e.session = s
	e.transition(StateAttaching, emit)
	e.logger.Info("debug session attached", "item", cmd.Item.String(), "locus", cmd.Locus.String(), "file", s.file)

	mode := modeContinue
	if cmd.StopOnEntry {
		mode = modeEntry
	}

	return e.advance(ctx, mode, emit)
}

// open prepares a session on the last good build of item. Uniforms and
// system variables are resolved once and stay frozen.
func (e *Engine) open(id model.ItemID, locus Locus) (*session, error) {
	view, err := e.target.Item(id)
	if err != nil {
		return nil, errors.Wrap(err, "unable to get item")
	}
	if view.Status.State != model.Valid {
		return nil, errors.Wrapf(ErrNotCompiled, "%s is %s", id, view.Status.State)
	}

	stage := locus.Stage()
	prog, ok := view.Program(stage)
	if !ok {
		return nil, errors.Wrapf(ErrNotCompiled, "%s has no %s program", id, stage)
	}
	src, ok := prog.(instrumented)
	if !ok || src.AST() == nil {
		return nil, errors.Wrapf(ErrNotCompiled, "%s program of %s cannot be instrumented", stage, id)
	}

	snap := e.vars.Snapshot()
	uniforms, err := e.target.Uniforms(id, snap)
	if err != nil {
		return nil, errors.Wrap(err, "unable to resolve uniforms")
	}

	s := &session{
		item:  id,
		locus: locus,
		stage: stage,
		file:  view.Sources[stage].Path,
		watch: Watch{
			Frame:    snap.Frame(),
			System:   snap.Values(),
			Uniforms: uniforms,
		},
	}
	s.machine, err = interp.New(interp.Config{
		Module:        src.AST(),
		Entry:         prog.EntryPoint(),
		Inputs:        locus.inputs(),
		Uniforms:      uniforms,
		Bindings:      view.Bindings,
		Resources:     e.target.Registry(),
		MaxStackDepth: e.maxStackDepth,
		MaxSteps:      e.maxSteps,
		Hook: func(m *interp.Machine, step interp.Step) error {
			return s.hook(m, step)
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to prepare invocation")
	}

	return s, nil
}

func (e *Engine) resume(ctx context.Context, mode stepMode, emit func(Event)) error {
	if e.state != StatePaused {
		return errors.Wrapf(ErrNotPaused, "%s while %s", mode, e.state)
	}

	if mode == modeContinue {
		e.transition(StateRunning, emit)
	} else {
		e.transition(StateStepping, emit)
	}

	return e.advance(ctx, mode, emit)
}

// end implements terminate and detach. Both discard the session and return
// the engine to Detached.
func (e *Engine) end(reason string, emit func(Event)) error {
	if e.state == StateDetached {
		return errors.Wrapf(ErrInvalidState, "%s while detached", reason)
	}

	if e.state != StateTerminated {
		var loc Location
		if e.session != nil {
			loc = e.session.location
		}
		emit(Terminated{Reason: reason, Location: loc})
	}
	e.session = nil
	e.transition(StateDetached, emit)
	e.logger.Info("debug session ended", "reason", reason)

	return nil
}

// State returns the state of the session.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// Breakpoints returns every breakpoint ordered by file and line.
func (e *Engine) Breakpoints() []Breakpoint {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.bps.all()
}

// SetWatches replaces the expressions evaluated at every pause. They are
// evaluated from the next pause on.
func (e *Engine) SetWatches(exprs ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.watches = append([]string(nil), exprs...)
}

// Stack returns the call stack of the paused session, innermost frame first.
// It is empty unless the session is paused.
func (e *Engine) Stack() []Frame {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePaused || e.session == nil {
		return nil
	}

	return cloneStack(e.session.stack)
}

// Watch returns the global values of the paused session.
func (e *Engine) Watch() (Watch, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePaused || e.session == nil {
		return Watch{}, errors.Wrapf(ErrNotPaused, "watch while %s", e.state)
	}

	return cloneWatch(e.session.watch), nil
}

// Location returns the statement the session is paused at.
func (e *Engine) Location() (Location, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePaused || e.session == nil {
		return Location{}, errors.Wrapf(ErrNotPaused, "location while %s", e.state)
	}

	return e.session.location, nil
}

// SessionInfo describes the attached session.
type SessionInfo struct {
	Item  model.ItemID
	Locus Locus
	Stage model.Stage
	File  string
	State State
	// Steps is the number of statements executed up to the pause.
	Steps int
}

// Session describes the current session. The boolean is false when detached.
func (e *Engine) Session() (SessionInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return SessionInfo{State: e.state}, false
	}

	return SessionInfo{
		Item:  e.session.item,
		Locus: e.session.locus,
		Stage: e.session.stage,
		File:  e.session.file,
		State: e.state,
		Steps: e.session.pos,
	}, true
}

func cloneStack(in []Frame) []Frame {
	if in == nil {
		return nil
	}
	var out []Frame
	err := copier.CopyWithOption(&out, &in, copier.Option{DeepCopy: true})
	if err != nil {
		return append([]Frame(nil), in...)
	}

	return out
}

func cloneWatch(in Watch) Watch {
	var out Watch
	err := copier.CopyWithOption(&out, &in, copier.Option{DeepCopy: true})
	if err != nil {
		return in
	}

	return out
}
