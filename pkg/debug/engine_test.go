package debug_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-shaderpipe/pkg/debug"
	"github.com/askiada/go-shaderpipe/pkg/pipeline"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/sysvar"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := debug.New(nil, sysvar.New())
	assert.ErrorIs(t, err, debug.ErrTargetMustBeSet)

	h := newHarness(t)
	_, err = debug.New(h.pipe, nil)
	assert.ErrorIs(t, err, debug.ErrVariablesMustBeSet)
}

func TestBreakpointInLoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	itemID := h.addBuiltItem(t, loopShader)

	err := h.engine.Attach(ctx, itemID, debug.Pixel{X: 4, Y: 2}, []debug.Breakpoint{breakpoint(5)}, false)
	require.NoError(t, err)

	var counters []float64
	for range 3 {
		require.Equal(t, debug.StatePaused, h.engine.State())
		loc, err := h.engine.Location()
		require.NoError(t, err)
		assert.Equal(t, 5, loc.Line)
		assert.Equal(t, pixelFile, loc.File)

		stack := h.engine.Stack()
		require.Len(t, stack, 1)
		counters = append(counters, localOf(t, stack[0], "i"))

		require.NoError(t, h.engine.Continue(ctx))
	}

	assert.Equal(t, []float64{0, 1, 2}, counters)
	assert.Equal(t, debug.StateTerminated, h.engine.State())
	assert.Nil(t, h.engine.Stack())
	_, err = h.engine.Watch()
	assert.ErrorIs(t, err, debug.ErrNotPaused)

	assert.Len(t, h.events.paused(), 3)
	assert.Len(t, h.events.hits(), 3)
	terminated := h.events.terminated()
	require.Len(t, terminated, 1)
	assert.Equal(t, debug.ReasonCompleted, terminated[0].Reason)
	require.NotNil(t, terminated[0].Result)
	assert.True(t, value.Vec4(1, 4.5, 0, 1).Equal(*terminated[0].Result), terminated[0].Result.String())
}

func TestUnreachableBreakpoint(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	itemID := h.addBuiltItem(t, loopShader)

	err := h.engine.Attach(context.Background(), itemID, debug.Pixel{}, []debug.Breakpoint{breakpoint(6)}, false)
	require.NoError(t, err)

	assert.Equal(t, debug.StateTerminated, h.engine.State())
	assert.Empty(t, h.events.paused())
	for _, ev := range h.events.all() {
		if sc, ok := ev.(debug.StateChanged); ok {
			assert.NotEqual(t, debug.StatePaused, sc.To)
		}
	}
	require.Len(t, h.events.terminated(), 1)
	assert.Equal(t, debug.ReasonCompleted, h.events.terminated()[0].Reason)
}

func TestStackOverflow(t *testing.T) {
	t.Parallel()

	const maxDepth = 8
	ctx := context.Background()
	h := newHarness(t, debug.WithMaxStackDepth(maxDepth))
	itemID := h.addBuiltItem(t, recursiveShader)

	require.NoError(t, h.engine.Attach(ctx, itemID, debug.Pixel{}, nil, true))

	var err error
	for h.engine.State() == debug.StatePaused {
		assert.LessOrEqual(t, len(h.engine.Stack()), maxDepth)
		err = h.engine.StepInto(ctx)
	}

	require.Error(t, err)
	assert.ErrorIs(t, err, debug.ErrStackOverflow)
	assert.Equal(t, debug.StateTerminated, h.engine.State())

	terminated := h.events.terminated()
	require.Len(t, terminated, 1)
	assert.Equal(t, debug.ReasonStackOverflow, terminated[0].Reason)
	assert.Equal(t, "down", terminated[0].Location.Function)
	assert.Equal(t, 2, terminated[0].Location.Line)
}

func TestStepLimit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, debug.WithMaxSteps(50))
	itemID := h.addBuiltItem(t, `@fragment
fn main() -> @location(0) vec4<f32> {
    var x = 0;
    loop {
        x = x + 1;
    }
    return vec4<f32>(0.0);
}
`)

	err := h.engine.Attach(context.Background(), itemID, debug.Pixel{}, nil, false)
	assert.ErrorIs(t, err, debug.ErrStepLimit)
	assert.Equal(t, debug.StateTerminated, h.engine.State())
	require.Len(t, h.events.terminated(), 1)
	assert.Equal(t, debug.ReasonStepLimit, h.events.terminated()[0].Reason)
}

func TestNotCompiled(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		pixel string
		build bool
	}{
		"never built":   {pixel: loopShader},
		"compile error": {pixel: "@fragment fn main( {", build: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			h := newHarness(t)
			itemID := h.addItem(t, fullscreen, tt.pixel)
			if tt.build {
				require.Error(t, h.pipe.Build(ctx, itemID))
			}

			err := h.engine.Attach(ctx, itemID, debug.Pixel{}, []debug.Breakpoint{breakpoint(5)}, false)
			assert.ErrorIs(t, err, debug.ErrNotCompiled)
			assert.Equal(t, debug.StateDetached, h.engine.State())
			assert.Empty(t, h.engine.Breakpoints())
			assert.Empty(t, h.events.all())
		})
	}
}

func TestAttachUnknownItem(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	err := h.engine.Attach(context.Background(), 42, debug.Pixel{}, nil, false)
	assert.ErrorIs(t, err, pipeline.ErrNotFound)
	assert.Equal(t, debug.StateDetached, h.engine.State())
}

func TestStepping(t *testing.T) {
	t.Parallel()

	type stop struct {
		line     int
		function string
		depth    int
	}

	tests := map[string]struct {
		commands []debug.CommandKind
		want     []stop
	}{
		"step into and out": {
			commands: []debug.CommandKind{debug.CommandStepInto, debug.CommandStepOver, debug.CommandStepOut},
			want: []stop{
				{line: 8, function: "main", depth: 1},
				{line: 2, function: "square", depth: 2},
				{line: 3, function: "square", depth: 2},
				{line: 9, function: "main", depth: 1},
			},
		},
		"step over calls": {
			commands: []debug.CommandKind{debug.CommandStepOver, debug.CommandStepOver},
			want: []stop{
				{line: 8, function: "main", depth: 1},
				{line: 9, function: "main", depth: 1},
				{line: 10, function: "main", depth: 1},
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			h := newHarness(t)
			itemID := h.addBuiltItem(t, callShader)

			require.NoError(t, h.engine.Attach(ctx, itemID, debug.Pixel{}, nil, true))

			var got []stop
			record := func() {
				stack := h.engine.Stack()
				require.NotEmpty(t, stack)
				got = append(got, stop{line: stack[0].Location.Line, function: stack[0].Function, depth: len(stack)})
			}
			record()
			for _, kind := range tt.commands {
				require.NoError(t, h.engine.Do(ctx, debug.Command{Kind: kind}))
				require.Equal(t, debug.StatePaused, h.engine.State())
				record()
			}

			assert.Equal(t, tt.want, got)
			assert.Equal(t, debug.ReasonEntry, h.events.paused()[0].Reason)
		})
	}
}

func TestStepOutOfEntryCompletes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	itemID := h.addBuiltItem(t, callShader)

	require.NoError(t, h.engine.Attach(ctx, itemID, debug.Pixel{}, nil, true))
	require.NoError(t, h.engine.StepOut(ctx))

	assert.Equal(t, debug.StateTerminated, h.engine.State())
	terminated := h.events.terminated()
	require.Len(t, terminated, 1)
	require.NotNil(t, terminated[0].Result)
	assert.True(t, value.Vec4(9, 10, 0, 1).Equal(*terminated[0].Result))
	assert.Equal(t, 10, terminated[0].Location.Line)
}

func TestCallStackFrames(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	itemID := h.addBuiltItem(t, callShader)

	require.NoError(t, h.engine.Attach(ctx, itemID, debug.Pixel{}, []debug.Breakpoint{breakpoint(3)}, false))

	stack := h.engine.Stack()
	require.Len(t, stack, 2)
	assert.Equal(t, "square", stack[0].Function)
	assert.Equal(t, debug.Location{File: pixelFile, Function: "main", Line: 8, Column: stack[0].CallSite.Column},
		stack[0].CallSite)
	assert.InDelta(t, 3, localOf(t, stack[0], "x"), 1e-6)
	assert.InDelta(t, 9, localOf(t, stack[0], "y"), 1e-6)
	assert.Equal(t, "main", stack[1].Function)
	assert.Equal(t, debug.Location{}, stack[1].CallSite)

	// Stack returns copies.
	stack[0].Locals[0].Value.Data[0] = 100
	assert.InDelta(t, 3, localOf(t, h.engine.Stack()[0], "x"), 1e-6)
}

func TestBreakpointWinsOverStep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	itemID := h.addBuiltItem(t, callShader)

	require.NoError(t, h.engine.Attach(ctx, itemID, debug.Pixel{}, nil, true))
	require.NoError(t, h.engine.SetBreakpoint(ctx, breakpoint(2)))
	require.NoError(t, h.engine.StepInto(ctx))

	paused := h.events.paused()
	require.Len(t, paused, 2)
	assert.Equal(t, debug.ReasonBreakpoint, paused[1].Reason)
	assert.Equal(t, 2, paused[1].Location.Line)
	hits := h.events.hits()
	require.Len(t, hits, 1)
	assert.Equal(t, breakpoint(2), hits[0].Breakpoint)
}

func TestConditionalAndDisabledBreakpoints(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		bp         debug.Breakpoint
		wantPaused bool
		wantI      float64
	}{
		"condition": {
			bp:         debug.Breakpoint{File: pixelFile, Line: 5, Stage: model.StagePixel, Condition: "i == 2"},
			wantPaused: true,
			wantI:      2,
		},
		"any file": {
			bp:         debug.Breakpoint{Line: 5, Stage: model.StagePixel},
			wantPaused: true,
		},
		"disabled": {
			bp: debug.Breakpoint{File: pixelFile, Line: 5, Stage: model.StagePixel, Disabled: true},
		},
		"other stage": {
			bp: debug.Breakpoint{File: pixelFile, Line: 5, Stage: model.StageVertex},
		},
		"other file": {
			bp: debug.Breakpoint{File: "other.wgsl", Line: 5, Stage: model.StagePixel},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			itemID := h.addBuiltItem(t, loopShader)

			err := h.engine.Attach(context.Background(), itemID, debug.Pixel{}, []debug.Breakpoint{tt.bp}, false)
			require.NoError(t, err)

			if !tt.wantPaused {
				assert.Equal(t, debug.StateTerminated, h.engine.State())
				return
			}
			require.Equal(t, debug.StatePaused, h.engine.State())
			assert.InDelta(t, tt.wantI, localOf(t, h.engine.Stack()[0], "i"), 1e-6)
		})
	}
}

func TestBreakpointEditsApplyWithoutReattach(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	itemID := h.addBuiltItem(t, loopShader)

	require.NoError(t, h.engine.Attach(ctx, itemID, debug.Pixel{}, []debug.Breakpoint{breakpoint(5)}, false))
	require.NoError(t, h.engine.SetBreakpoint(ctx, breakpoint(8)))
	require.NoError(t, h.engine.ClearBreakpoint(ctx, breakpoint(5)))
	assert.Equal(t, []debug.Breakpoint{breakpoint(8)}, h.engine.Breakpoints())

	require.NoError(t, h.engine.Continue(ctx))
	loc, err := h.engine.Location()
	require.NoError(t, err)
	assert.Equal(t, 8, loc.Line)

	require.NoError(t, h.engine.SetBreakpoints(ctx, nil))
	require.NoError(t, h.engine.Continue(ctx))
	assert.Equal(t, debug.StateTerminated, h.engine.State())
}

func TestInvalidCommands(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	itemID := h.addBuiltItem(t, loopShader)

	assert.ErrorIs(t, h.engine.Continue(ctx), debug.ErrNotPaused)
	assert.ErrorIs(t, h.engine.StepOver(ctx), debug.ErrNotPaused)
	assert.ErrorIs(t, h.engine.Detach(ctx), debug.ErrInvalidState)
	assert.ErrorIs(t, h.engine.Terminate(ctx), debug.ErrInvalidState)
	assert.ErrorIs(t, h.engine.SetBreakpoint(ctx, debug.Breakpoint{Line: 0, Stage: model.StagePixel}),
		debug.ErrInvalidBreakpoint)
	assert.ErrorIs(t, h.engine.ClearBreakpoint(ctx, breakpoint(3)), debug.ErrInvalidBreakpoint)
	assert.ErrorIs(t, h.engine.Do(ctx, debug.Command{Kind: 99}), debug.ErrUnknownCommand)

	require.NoError(t, h.engine.Attach(ctx, itemID, debug.Pixel{}, []debug.Breakpoint{breakpoint(5)}, false))
	assert.ErrorIs(t, h.engine.Attach(ctx, itemID, debug.Pixel{}, nil, false), debug.ErrInvalidState)

	require.NoError(t, h.engine.SetBreakpoints(ctx, nil))
	require.NoError(t, h.engine.Continue(ctx))
	require.Equal(t, debug.StateTerminated, h.engine.State())
	assert.ErrorIs(t, h.engine.SetBreakpoint(ctx, breakpoint(5)), debug.ErrInvalidState)
	assert.ErrorIs(t, h.engine.Continue(ctx), debug.ErrNotPaused)

	require.NoError(t, h.engine.Detach(ctx))
	assert.Equal(t, debug.StateDetached, h.engine.State())
	_, ok := h.engine.Session()
	assert.False(t, ok)
}

func TestTerminate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	itemID := h.addBuiltItem(t, loopShader)

	require.NoError(t, h.engine.Attach(ctx, itemID, debug.Pixel{}, []debug.Breakpoint{breakpoint(5)}, false))
	info, ok := h.engine.Session()
	require.True(t, ok)
	assert.Equal(t, itemID, info.Item)
	assert.Equal(t, pixelFile, info.File)
	assert.Equal(t, 3, info.Steps)

	require.NoError(t, h.engine.Terminate(ctx))
	assert.Equal(t, debug.StateDetached, h.engine.State())
	assert.Nil(t, h.engine.Stack())

	events := h.events.all()
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, debug.Terminated{Reason: debug.ReasonTerminated, Location: debug.Location{
		File: pixelFile, Function: "main", Line: 5, Column: events[len(events)-2].(debug.Terminated).Location.Column,
	}}, events[len(events)-2])
	assert.Equal(t, debug.StateChanged{From: debug.StatePaused, To: debug.StateDetached}, events[len(events)-1])

	// Breakpoints survive the session.
	require.NoError(t, h.engine.Attach(ctx, itemID, debug.Pixel{}, nil, false))
	assert.Equal(t, debug.StatePaused, h.engine.State())
}

func TestStateTransitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	itemID := h.addBuiltItem(t, callShader)

	require.NoError(t, h.engine.Attach(ctx, itemID, debug.Pixel{}, []debug.Breakpoint{breakpoint(9)}, true))
	require.NoError(t, h.engine.StepOver(ctx))
	require.NoError(t, h.engine.Continue(ctx))
	require.NoError(t, h.engine.Detach(ctx))

	var states []debug.State
	for _, ev := range h.events.all() {
		if sc, ok := ev.(debug.StateChanged); ok {
			states = append(states, sc.To)
		}
	}
	assert.Equal(t, []debug.State{
		debug.StateAttaching, debug.StatePaused,
		debug.StateStepping, debug.StatePaused,
		debug.StateRunning, debug.StateTerminated,
		debug.StateDetached,
	}, states)
}

func TestWatchIsFrozen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, debug.WithWatches("sum", "time * 2.0", "missing"))
	itemID := h.addBuiltItem(t, `@group(0) @binding(0) var<uniform> time: f32;

@fragment
fn main() -> @location(0) vec4<f32> {
    var sum = time;
    sum = sum + 1.0;
    return vec4<f32>(sum, 0.0, 0.0, 1.0);
}
`)
	require.NoError(t, h.pipe.SetUniform(itemID, "time", pipeline.UniformSource{Variable: sysvar.Time}))

	require.NoError(t, h.vars.Tick(time.Second, sysvar.InputState{}))
	require.NoError(t, h.engine.Attach(ctx, itemID, debug.Pixel{}, []debug.Breakpoint{breakpoint(6)}, false))
	require.NoError(t, h.vars.Tick(time.Second, sysvar.InputState{}))

	watch, err := h.engine.Watch()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), watch.Frame)
	assert.InDelta(t, 1, watch.System[sysvar.Time].Float(), 1e-6)
	assert.InDelta(t, 1, watch.Uniforms["time"].Float(), 1e-6)
	require.Len(t, watch.Globals, 1)
	assert.Equal(t, "time", watch.Globals[0].Name)

	require.Len(t, watch.Expressions, 3)
	assert.InDelta(t, 1, watch.Expressions[0].Value.Float(), 1e-6)
	assert.InDelta(t, 2, watch.Expressions[1].Value.Float(), 1e-6)
	assert.NotEmpty(t, watch.Expressions[2].Error)

	v, err := h.engine.Evaluate(ctx, "sum + time")
	require.NoError(t, err)
	assert.InDelta(t, 2, v.Float(), 1e-6)

	require.NoError(t, h.engine.StepOver(ctx))
	watch, err = h.engine.Watch()
	require.NoError(t, err)
	assert.InDelta(t, 1, watch.System[sysvar.Time].Float(), 1e-6)
	assert.InDelta(t, 2, watch.Expressions[0].Value.Float(), 1e-6)
}

func TestEvaluateNotPaused(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.engine.Evaluate(context.Background(), "1 + 1")
	assert.ErrorIs(t, err, debug.ErrNotPaused)
}

func TestQueuedCommandsRunInOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	itemID := h.addBuiltItem(t, loopShader)

	first := h.engine.Enqueue(debug.Command{
		Kind:        debug.CommandAttach,
		Item:        itemID,
		Locus:       debug.Pixel{},
		Breakpoints: []debug.Breakpoint{breakpoint(5)},
	})
	second := h.engine.Enqueue(debug.Command{Kind: debug.CommandContinue})
	third := h.engine.Enqueue(debug.Command{Kind: debug.CommandContinue})
	assert.Equal(t, debug.StateDetached, h.engine.State())

	assert.Equal(t, 3, h.engine.ProcessPending(ctx))
	require.NoError(t, <-first)
	require.NoError(t, <-second)
	require.NoError(t, <-third)

	assert.InDelta(t, 2, localOf(t, h.engine.Stack()[0], "i"), 1e-6)
	assert.Zero(t, h.engine.ProcessPending(ctx))
}

func TestVertexLocus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	itemID := h.addBuiltItem(t, loopShader)

	bp := debug.Breakpoint{File: "quad.wgsl", Line: 4, Stage: model.StageVertex}
	require.NoError(t, h.engine.Attach(ctx, itemID, debug.Vertex{Index: 3}, []debug.Breakpoint{bp}, false))

	require.Equal(t, debug.StatePaused, h.engine.State())
	stack := h.engine.Stack()
	require.Len(t, stack, 1)
	assert.Equal(t, "vs", stack[0].Function)
	assert.InDelta(t, 1.5, localOf(t, stack[0], "x"), 1e-6)

	require.NoError(t, h.engine.Continue(ctx))
	terminated := h.events.terminated()
	require.Len(t, terminated, 1)
	assert.True(t, value.Vec4(1.5, 0, 0, 1).Equal(*terminated[0].Result))
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	itemID := h.addBuiltItem(t, loopShader)

	var count int
	unsubscribe := h.engine.Subscribe(func(debug.Event) { count++ })
	require.NoError(t, h.engine.Attach(ctx, itemID, debug.Pixel{}, nil, true))
	seen := count
	assert.Positive(t, seen)

	unsubscribe()
	require.NoError(t, h.engine.Terminate(ctx))
	assert.Equal(t, seen, count)
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	kind, err := debug.ParseCommand("stepOver")
	require.NoError(t, err)
	assert.Equal(t, debug.CommandStepOver, kind)
	assert.Equal(t, "stepOver", kind.String())

	_, err = debug.ParseCommand("rewind")
	assert.True(t, errors.Is(err, debug.ErrUnknownCommand))
}

func TestCancelledStepKeepsPause(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	itemID := h.addBuiltItem(t, loopShader)
	require.NoError(t, h.engine.Attach(context.Background(), itemID, debug.Pixel{X: 4, Y: 2}, []debug.Breakpoint{breakpoint(5)}, false))

	stack := h.engine.Stack()
	require.Len(t, stack, 1)
	watch, err := h.engine.Watch()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, h.engine.StepOver(ctx))

	assert.Equal(t, debug.StatePaused, h.engine.State())
	assert.Equal(t, stack, h.engine.Stack())
	after, err := h.engine.Watch()
	require.NoError(t, err)
	assert.Equal(t, watch, after)

	loc, err := h.engine.Location()
	require.NoError(t, err)
	assert.Equal(t, 5, loc.Line)
}

func TestSetBreakpointsForOtherItem(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	itemID := h.addBuiltItem(t, loopShader)
	require.NoError(t, h.engine.Attach(ctx, itemID, debug.Pixel{}, nil, true))

	err := h.engine.Do(ctx, debug.Command{Kind: debug.CommandSetBreakpoints, Item: itemID + 1, Breakpoints: []debug.Breakpoint{breakpoint(5)}})
	require.ErrorIs(t, err, debug.ErrItemMismatch)
	assert.Empty(t, h.engine.Breakpoints())

	err = h.engine.Do(ctx, debug.Command{Kind: debug.CommandSetBreakpoints, Item: itemID, Breakpoints: []debug.Breakpoint{breakpoint(5)}})
	require.NoError(t, err)
	assert.Len(t, h.engine.Breakpoints(), 1)
}
