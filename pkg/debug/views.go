package debug

import (
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

// View is a debugger panel fed by the event stream. It is one of
// BreakpointList, CallStackView, WatchView, PixelAnalysis or FrameAnalysis.
type View interface {
	isView()
}

// BreakpointList shows every breakpoint and the one the session stopped on.
type BreakpointList struct {
	Breakpoints []Breakpoint
	Hit         *Breakpoint
}

// CallStackView shows the call stack of the pause, innermost frame first.
type CallStackView struct {
	Frames   []Frame
	Selected int
}

// WatchView shows the locals of the selected frame and the frozen globals.
type WatchView struct {
	Locals []Variable
	Watch  Watch
}

// PixelAnalysis summarises the invocation under inspection.
type PixelAnalysis struct {
	Item     model.ItemID
	Location Location
	State    State
	Reason   string
	// Result is the value returned by the entry point once the invocation completed.
	Result    *value.Value
	Discarded bool
	Steps     int
}

func (BreakpointList) isView() {}
func (CallStackView) isView()  {}
func (WatchView) isView()      {}
func (PixelAnalysis) isView()  {}

// Apply returns v updated with ev. Views ignore the events they do not show.
func Apply(v View, ev Event) View {
	switch view := v.(type) {
	case BreakpointList:
		return view.apply(ev)
	case CallStackView:
		return view.apply(ev)
	case WatchView:
		return view.apply(ev)
	case PixelAnalysis:
		return view.apply(ev)
	default:
		return v
	}
}

func (v BreakpointList) apply(ev Event) View {
	switch e := ev.(type) {
	case BreakpointHit:
		bp := e.Breakpoint
		v.Hit = &bp
	case StateChanged:
		if e.To != StatePaused {
			v.Hit = nil
		}
	}

	return v
}

func (v CallStackView) apply(ev Event) View {
	switch e := ev.(type) {
	case Paused:
		v.Frames = e.Stack
		v.Selected = 0
	case StateChanged:
		if e.To != StatePaused {
			v.Frames = nil
			v.Selected = 0
		}
	}

	return v
}

func (v WatchView) apply(ev Event) View {
	switch e := ev.(type) {
	case Paused:
		v.Watch = e.Watch
		v.Locals = nil
		if len(e.Stack) > 0 {
			v.Locals = e.Stack[0].Locals
		}
	case StateChanged:
		if e.To != StatePaused {
			v.Locals = nil
			v.Watch = Watch{}
		}
	}

	return v
}

func (v PixelAnalysis) apply(ev Event) View {
	switch e := ev.(type) {
	case StateChanged:
		v.State = e.To
		if e.To == StateAttaching {
			v = PixelAnalysis{State: e.To}
		}
	case Paused:
		v.Item = e.Item
		v.Location = e.Location
		v.Reason = e.Reason
	case Terminated:
		v.Location = e.Location
		v.Reason = e.Reason
		v.Result = e.Result
		v.Discarded = e.Discarded
		v.Steps = e.Steps
	}

	return v
}

// Select moves the call stack selection to frame i, clamped to the stack.
func (v CallStackView) Select(i int) CallStackView {
	switch {
	case len(v.Frames) == 0:
		i = 0
	case i < 0:
		i = 0
	case i >= len(v.Frames):
		i = len(v.Frames) - 1
	}
	v.Selected = i

	return v
}
