package debug_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-shaderpipe/pkg/debug"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

func TestViewsFollowEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	itemID := h.addBuiltItem(t, callShader)

	views := []debug.View{
		debug.BreakpointList{},
		debug.CallStackView{},
		debug.WatchView{},
		debug.PixelAnalysis{},
	}
	h.engine.Subscribe(func(ev debug.Event) {
		for i := range views {
			views[i] = debug.Apply(views[i], ev)
		}
	})

	require.NoError(t, h.engine.Attach(ctx, itemID, debug.Pixel{X: 1, Y: 1}, []debug.Breakpoint{breakpoint(3)}, false))

	bps, ok := views[0].(debug.BreakpointList)
	require.True(t, ok)
	require.NotNil(t, bps.Hit)
	assert.Equal(t, 3, bps.Hit.Line)

	stack, ok := views[1].(debug.CallStackView)
	require.True(t, ok)
	require.Len(t, stack.Frames, 2)
	assert.Equal(t, 1, stack.Select(5).Selected)
	assert.Equal(t, 0, stack.Select(-1).Selected)

	watch, ok := views[2].(debug.WatchView)
	require.True(t, ok)
	require.Len(t, watch.Locals, 2)
	assert.Equal(t, "x", watch.Locals[0].Name)

	analysis, ok := views[3].(debug.PixelAnalysis)
	require.True(t, ok)
	assert.Equal(t, debug.StatePaused, analysis.State)
	assert.Equal(t, itemID, analysis.Item)
	assert.Equal(t, debug.ReasonBreakpoint, analysis.Reason)

	require.NoError(t, h.engine.Continue(ctx))

	bps = views[0].(debug.BreakpointList)
	assert.Nil(t, bps.Hit)
	assert.Empty(t, views[1].(debug.CallStackView).Frames)
	assert.Empty(t, views[2].(debug.WatchView).Locals)

	analysis = views[3].(debug.PixelAnalysis)
	assert.Equal(t, debug.StateTerminated, analysis.State)
	assert.Equal(t, debug.ReasonCompleted, analysis.Reason)
	require.NotNil(t, analysis.Result)
	assert.True(t, value.Vec4(9, 10, 0, 1).Equal(*analysis.Result))
	assert.Positive(t, analysis.Steps)
}

func TestApplyIgnoresUnknownView(t *testing.T) {
	t.Parallel()

	assert.Nil(t, debug.Apply(nil, debug.StateChanged{To: debug.StatePaused}))
}
