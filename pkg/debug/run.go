package debug

import (
	"context"

	"github.com/jinzhu/copier"
	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/internal/interp"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

type stepMode uint8

const (
	modeContinue stepMode = iota
	modeEntry
	modeOver
	modeInto
	modeOut
)

func (m stepMode) String() string {
	switch m {
	case modeContinue:
		return "continue"
	case modeEntry:
		return "entry"
	case modeOver:
		return "step over"
	case modeInto:
		return "step into"
	case modeOut:
		return "step out"
	default:
		return "unknown"
	}
}

// reached reports whether step is the target of the mode for a pause at depth.
func (m stepMode) reached(step interp.Step, depth int) bool {
	switch m {
	case modeEntry, modeInto:
		return true
	case modeOver:
		return step.Depth <= depth
	case modeOut:
		return step.Depth < depth
	default:
		return false
	}
}

type session struct {
	item    model.ItemID
	locus   Locus
	stage   model.Stage
	file    string
	machine *interp.Machine
	hook    interp.Hook

	// pos is the step count of the pause, depth its stack depth.
	pos      int
	depth    int
	location Location
	stack    []Frame
	watch    Watch
}

func (s *session) locate(loc interp.Location) Location {
	if loc.Line == 0 {
		return Location{}
	}

	return Location{File: s.file, Function: loc.Function, Line: loc.Line, Column: loc.Column}
}

type stop struct {
	reason     string
	breakpoint *Breakpoint
	step       interp.Step
	stack      []interp.Frame
	globals    []interp.Variable
	exprs      []Expression
}

// advance re-runs the invocation from the start and pauses at the first
// statement past the current pause that holds an active breakpoint or is the
// target of mode. A breakpoint wins when both apply. The stack and watch of
// the current pause are kept until the run pauses again or terminates.
func (e *Engine) advance(ctx context.Context, mode stepMode, emit func(Event)) error {
	s := e.session

	var (
		hit  *stop
		last interp.Step
	)
	s.hook = func(m *interp.Machine, step interp.Step) error {
		last = step
		if step.Count <= s.pos {
			return nil
		}

		if bp, ok := e.breakpointAt(m, s, step); ok {
			hit = e.capture(m, step, ReasonBreakpoint)
			hit.breakpoint = &bp
			return interp.ErrHalt
		}
		if mode.reached(step, s.depth) {
			reason := ReasonStep
			if mode == modeEntry {
				reason = ReasonEntry
			}
			hit = e.capture(m, step, reason)
			return interp.ErrHalt
		}

		return nil
	}

	res, err := s.machine.Run(ctx)
	switch {
	case errors.Is(err, interp.ErrHalt):
		e.pause(s, hit, emit)
		return nil
	case err == nil:
		result := res.Value
		e.terminate(Terminated{
			Reason:    ReasonCompleted,
			Location:  s.locate(last.Location),
			Result:    &result,
			Discarded: res.Discarded,
			Steps:     res.Steps,
		}, emit)
		return nil
	case ctx.Err() != nil:
		// The previous pause, with its stack and watch, is still valid.
		if s.pos == 0 {
			e.session = nil
			e.transition(StateDetached, emit)
		} else {
			e.transition(StatePaused, emit)
		}
		return errors.Wrapf(ctx.Err(), "%s cancelled", mode)
	}

	ev := Terminated{Reason: ReasonError, Message: err.Error(), Location: s.locate(last.Location), Steps: last.Count}
	var out error
	switch {
	case errors.Is(err, interp.ErrStackOverflow):
		ev.Reason = ReasonStackOverflow
		out = errors.Wrapf(ErrStackOverflow, "in %s at line %d", last.Location.Function, last.Location.Line)
	case errors.Is(err, interp.ErrStepLimit):
		ev.Reason = ReasonStepLimit
		out = errors.Wrapf(ErrStepLimit, "%d statements", e.maxSteps)
	default:
		out = errors.Wrap(err, "invocation failed")
	}
	e.logger.Warn("debug session failed", "item", s.item.String(), "reason", ev.Reason, "error", err)
	e.terminate(ev, emit)

	return out
}

func (e *Engine) breakpointAt(m *interp.Machine, s *session, step interp.Step) (Breakpoint, bool) {
	for _, bp := range e.bps.list {
		if !bp.matches(s.file, s.stage, step.Location.Line) {
			continue
		}
		if bp.Condition == "" {
			return bp, true
		}
		v, err := m.Evaluate(bp.Condition)
		if err != nil {
			e.logger.Warn("breakpoint condition failed", "breakpoint", bp.String(), "error", err)
			return bp, true
		}
		if v.Truth() {
			return bp, true
		}
	}

	return Breakpoint{}, false
}

func (e *Engine) capture(m *interp.Machine, step interp.Step, reason string) *stop {
	st := &stop{
		reason:  reason,
		step:    step,
		stack:   m.Stack(),
		globals: m.Globals(),
	}
	for _, expr := range e.watches {
		out := Expression{Expr: expr}
		v, err := m.Evaluate(expr)
		if err != nil {
			out.Error = err.Error()
		} else {
			out.Value = v
		}
		st.exprs = append(st.exprs, out)
	}

	return st
}

func (e *Engine) pause(s *session, st *stop, emit func(Event)) {
	s.pos = st.step.Count
	s.depth = st.step.Depth
	s.location = s.locate(st.step.Location)

	var stack []Frame
	err := copier.CopyWithOption(&stack, &st.stack, copier.Option{DeepCopy: true})
	if err != nil {
		e.logger.Warn("unable to copy call stack", "error", err)
	}
	for i := range stack {
		stack[i].Location.File = s.file
		if stack[i].CallSite.Line != 0 {
			stack[i].CallSite.File = s.file
		}
	}
	s.stack = stack

	var globals []Variable
	err = copier.CopyWithOption(&globals, &st.globals, copier.Option{DeepCopy: true})
	if err != nil {
		e.logger.Warn("unable to copy globals", "error", err)
	}
	s.watch.Globals = globals
	s.watch.Expressions = st.exprs

	e.transition(StatePaused, emit)
	if st.breakpoint != nil {
		emit(BreakpointHit{Breakpoint: *st.breakpoint, Location: s.location})
	}
	emit(Paused{
		Reason:   st.reason,
		Item:     s.item,
		Location: s.location,
		Stack:    cloneStack(s.stack),
		Watch:    cloneWatch(s.watch),
	})
}

func (e *Engine) terminate(ev Terminated, emit func(Event)) {
	s := e.session
	s.stack = nil
	s.watch.Globals = nil
	s.watch.Expressions = nil
	s.location = ev.Location

	e.transition(StateTerminated, emit)
	emit(ev)
}

// Evaluate evaluates a WGSL expression in the innermost frame of the pause.
// The invocation is replayed up to the pause point.
func (e *Engine) Evaluate(ctx context.Context, expr string) (value.Value, error) {
	e.run.Lock()
	defer e.run.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePaused || e.session == nil {
		return value.Value{}, errors.Wrapf(ErrNotPaused, "evaluate while %s", e.state)
	}

	s := e.session
	var (
		out     value.Value
		evalErr error
	)
	s.hook = func(m *interp.Machine, step interp.Step) error {
		if step.Count < s.pos {
			return nil
		}
		out, evalErr = m.Evaluate(expr)
		return interp.ErrHalt
	}

	_, err := s.machine.Run(ctx)
	if !errors.Is(err, interp.ErrHalt) {
		if err == nil {
			err = errors.New("pause point not reached")
		}
		return value.Value{}, errors.Wrap(err, "unable to replay invocation")
	}
	if evalErr != nil {
		return value.Value{}, errors.Wrapf(evalErr, "evaluate %q", expr)
	}

	return out, nil
}
