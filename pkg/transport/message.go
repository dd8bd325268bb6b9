package transport

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/debug"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

// Message types.
const (
	TypeRequest  = "request"
	TypeResponse = "response"
	TypeEvent    = "event"
)

// Commands that do not map to a debug.CommandKind.
const (
	CommandStackTrace = "stackTrace"
	CommandVariables  = "variables"
	CommandEvaluate   = "evaluate"
	// CommandAnalyzeFrame runs an item over a pixel region outside the session.
	CommandAnalyzeFrame = "analyzeFrame"
)

// Event names.
const (
	EventStateChanged  = "stateChanged"
	EventBreakpointHit = "breakpointHit"
	EventPaused        = "paused"
	EventTerminated    = "terminated"
)

// Message is the envelope of every request, response and event.
type Message struct {
	Seq  int    `json:"seq"`
	Type string `json:"type"`

	// Request and response.
	Command   string          `json:"command,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`

	// Response.
	RequestSeq int    `json:"request_seq,omitempty"`
	Success    bool   `json:"success,omitempty"`
	Error      string `json:"message,omitempty"`

	// Event.
	Event string `json:"event,omitempty"`

	Body json.RawMessage `json:"body,omitempty"`
}

// Decode unmarshals the body of m into v.
func (m Message) Decode(v any) error {
	if len(m.Body) == 0 {
		return errors.Wrapf(ErrInvalidMessage, "%s has no body", m.name())
	}

	return errors.Wrapf(json.Unmarshal(m.Body, v), "unable to decode %s body", m.name())
}

func (m Message) name() string {
	if m.Type == TypeEvent {
		return m.Event
	}

	return m.Command
}

// Locus selects the invocation to attach to. Kind is pixel, vertex or compute.
type Locus struct {
	Kind          string    `json:"kind"`
	X             uint32    `json:"x,omitempty"`
	Y             uint32    `json:"y,omitempty"`
	Z             uint32    `json:"z,omitempty"`
	Index         uint32    `json:"index,omitempty"`
	Instance      uint32    `json:"instance,omitempty"`
	WorkgroupSize [3]uint32 `json:"workgroupSize,omitzero"`
	// Varyings are the interpolated fragment inputs keyed by @location.
	Varyings map[int]value.Literal `json:"varyings,omitempty"`
	// Attributes are the vertex inputs keyed by @location.
	Attributes map[int]value.Literal `json:"attributes,omitempty"`
}

func (l Locus) locus() (debug.Locus, error) {
	switch l.Kind {
	case "pixel", "fragment":
		varyings, err := locations(l.Varyings)
		if err != nil {
			return nil, errors.Wrap(err, "varyings")
		}
		return debug.Pixel{X: int(l.X), Y: int(l.Y), Varyings: varyings}, nil
	case "vertex":
		attributes, err := locations(l.Attributes)
		if err != nil {
			return nil, errors.Wrap(err, "attributes")
		}
		return debug.Vertex{Index: l.Index, Instance: l.Instance, Attributes: attributes}, nil
	case "compute":
		return debug.Invocation{X: l.X, Y: l.Y, Z: l.Z, WorkgroupSize: l.WorkgroupSize}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownLocus, "%q", l.Kind)
	}
}

func locations(in map[int]value.Literal) (map[int]value.Value, error) {
	if len(in) == 0 {
		return nil, nil
	}

	out := make(map[int]value.Value, len(in))
	for loc, lit := range in {
		v, err := value.FromLiteral(lit)
		if err != nil {
			return nil, errors.Wrapf(err, "location %d", loc)
		}
		out[loc] = v
	}

	return out, nil
}

// AttachArguments are the arguments of attach.
type AttachArguments struct {
	Item        uint64             `json:"item"`
	Locus       Locus              `json:"locus"`
	Breakpoints []debug.Breakpoint `json:"breakpoints,omitempty"`
	StopOnEntry bool               `json:"stopOnEntry,omitempty"`
}

// BreakpointsArguments are the arguments of setBreakpoints. A non-zero Item
// must be the attached item.
type BreakpointsArguments struct {
	Item        uint64             `json:"item,omitempty"`
	Breakpoints []debug.Breakpoint `json:"breakpoints"`
}

// BreakpointArguments are the arguments of setBreakpoint and clearBreakpoint.
type BreakpointArguments struct {
	Breakpoint debug.Breakpoint `json:"breakpoint"`
}

// VariablesArguments select the frame whose locals are listed, 0 being the innermost.
type VariablesArguments struct {
	Frame int `json:"frame"`
}

// EvaluateArguments are the arguments of evaluate.
type EvaluateArguments struct {
	Expression string `json:"expression"`
}

// AnalyzeFrameArguments are the arguments of analyzeFrame.
type AnalyzeFrameArguments struct {
	Item   uint64 `json:"item"`
	X      int    `json:"x,omitempty"`
	Y      int    `json:"y,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Stride int    `json:"stride,omitempty"`
}

// AnalyzeFrameBody answers analyzeFrame with one histogram per channel.
type AnalyzeFrameBody struct {
	Samples   int             `json:"samples"`
	Discarded int             `json:"discarded"`
	Failed    int             `json:"failed"`
	Red       debug.Histogram `json:"red"`
	Green     debug.Histogram `json:"green"`
	Blue      debug.Histogram `json:"blue"`
	Luminance debug.Histogram `json:"luminance"`
}

func analyzeFrameBody(a *debug.FrameAnalysis) AnalyzeFrameBody {
	return AnalyzeFrameBody{
		Samples:   len(a.Samples),
		Discarded: a.Discarded,
		Failed:    a.Failed,
		Red:       a.Red,
		Green:     a.Green,
		Blue:      a.Blue,
		Luminance: a.Luminance,
	}
}

// BreakpointsBody answers the breakpoint commands with the resulting list.
type BreakpointsBody struct {
	Breakpoints []debug.Breakpoint `json:"breakpoints"`
}

// Variable is a value rendered for display.
type Variable struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

func newVariable(name string, v value.Value) Variable {
	return Variable{Name: name, Type: v.Type.String(), Value: v.String()}
}

// StackFrame is one frame of a stackTrace response, innermost first.
type StackFrame struct {
	ID       int            `json:"id"`
	Function string         `json:"function"`
	Location debug.Location `json:"location"`
	CallSite debug.Location `json:"callSite"`
}

// StackTraceBody answers stackTrace.
type StackTraceBody struct {
	Frames []StackFrame `json:"frames"`
}

// VariablesBody answers variables.
type VariablesBody struct {
	Frame       uint64     `json:"frame"`
	Locals      []Variable `json:"locals"`
	Globals     []Variable `json:"globals"`
	System      []Variable `json:"system"`
	Uniforms    []Variable `json:"uniforms"`
	Expressions []Variable `json:"expressions,omitempty"`
}

// EvaluateBody answers evaluate.
type EvaluateBody struct {
	Result Variable `json:"result"`
}

// StateChangedBody is the body of stateChanged.
type StateChangedBody struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// BreakpointHitBody is the body of breakpointHit.
type BreakpointHitBody struct {
	Breakpoint debug.Breakpoint `json:"breakpoint"`
	Location   debug.Location   `json:"location"`
}

// PausedBody is the body of paused. The stack is fetched with stackTrace.
type PausedBody struct {
	Reason   string         `json:"reason"`
	Item     uint64         `json:"item"`
	Location debug.Location `json:"location"`
	Depth    int            `json:"depth"`
}

// TerminatedBody is the body of terminated.
type TerminatedBody struct {
	Reason    string         `json:"reason"`
	Message   string         `json:"message,omitempty"`
	Location  debug.Location `json:"location"`
	Result    *Variable      `json:"result,omitempty"`
	Discarded bool           `json:"discarded,omitempty"`
	Steps     int            `json:"steps"`
}

// eventBody converts ev to its event name and body.
func eventBody(ev debug.Event) (string, any, bool) {
	switch e := ev.(type) {
	case debug.StateChanged:
		return EventStateChanged, StateChangedBody{From: e.From.String(), To: e.To.String()}, true
	case debug.BreakpointHit:
		return EventBreakpointHit, BreakpointHitBody{Breakpoint: e.Breakpoint, Location: e.Location}, true
	case debug.Paused:
		return EventPaused, PausedBody{
			Reason:   e.Reason,
			Item:     uint64(e.Item),
			Location: e.Location,
			Depth:    len(e.Stack),
		}, true
	case debug.Terminated:
		body := TerminatedBody{
			Reason:    e.Reason,
			Message:   e.Message,
			Location:  e.Location,
			Discarded: e.Discarded,
			Steps:     e.Steps,
		}
		if e.Result != nil {
			result := newVariable("result", *e.Result)
			body.Result = &result
		}
		return EventTerminated, body, true
	default:
		return "", nil, false
	}
}

func stackTrace(frames []debug.Frame) StackTraceBody {
	body := StackTraceBody{Frames: make([]StackFrame, 0, len(frames))}
	for i, fr := range frames {
		body.Frames = append(body.Frames, StackFrame{
			ID:       i,
			Function: fr.Function,
			Location: fr.Location,
			CallSite: fr.CallSite,
		})
	}

	return body
}

func variables(vars []debug.Variable) []Variable {
	out := make([]Variable, 0, len(vars))
	for _, v := range vars {
		out = append(out, newVariable(v.Name, v.Value))
	}

	return out
}

func valueMap(values map[string]value.Value) []Variable {
	out := make([]Variable, 0, len(values))
	for _, name := range slices.Sorted(maps.Keys(values)) {
		out = append(out, newVariable(name, values[name]))
	}

	return out
}
