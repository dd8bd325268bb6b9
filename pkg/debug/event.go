package debug

import (
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

// Location is a position in shader source.
type Location struct {
	File     string `json:"file,omitempty"`
	Function string `json:"function"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// Variable is a named value captured at a pause.
type Variable struct {
	Name  string      `json:"name"`
	Value value.Value `json:"value"`
}

// Frame is one level of the call stack.
type Frame struct {
	Function string   `json:"function"`
	Location Location `json:"location"`
	// CallSite is the statement that called the function, zero for the entry point.
	CallSite Location   `json:"callSite"`
	Locals   []Variable `json:"locals"`
}

// Expression is a watch expression evaluated at a pause.
type Expression struct {
	Expr  string      `json:"expr"`
	Value value.Value `json:"value"`
	Error string      `json:"error,omitempty"`
}

// Watch holds the global values of a paused session. System and Uniforms
// come from the system variable snapshot taken at attach and stay frozen for
// the whole session.
type Watch struct {
	Frame       uint64                 `json:"frame"`
	System      map[string]value.Value `json:"system"`
	Uniforms    map[string]value.Value `json:"uniforms"`
	Globals     []Variable             `json:"globals"`
	Expressions []Expression           `json:"expressions,omitempty"`
}

// Event is emitted on every session transition. It is one of StateChanged,
// BreakpointHit, Paused or Terminated.
type Event interface {
	isEvent()
}

// StateChanged reports a transition of the session state machine.
type StateChanged struct {
	From State
	To   State
}

// BreakpointHit precedes the Paused event of a stop caused by a breakpoint.
type BreakpointHit struct {
	Breakpoint Breakpoint
	Location   Location
}

// Paused carries the call stack and watch at the pause point, innermost frame first.
type Paused struct {
	Reason   string
	Item     model.ItemID
	Location Location
	Stack    []Frame
	Watch    Watch
}

// Terminated ends a session. Result is set when the invocation completed.
type Terminated struct {
	Reason  string
	Message string
	// Location is the last statement reached before the session ended.
	Location  Location
	Result    *value.Value
	Discarded bool
	Steps     int
}

func (StateChanged) isEvent()  {}
func (BreakpointHit) isEvent() {}
func (Paused) isEvent()        {}
func (Terminated) isEvent()    {}

// Listener receives events in emission order. It must not call back into the engine.
type Listener func(Event)
