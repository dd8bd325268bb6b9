package debug_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-shaderpipe/pkg/debug"
)

const discardShader = `@fragment
fn main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    if (pos.x < 2.0) {
        discard;
    }
    return vec4<f32>(0.0, 0.0, 1.0, 1.0);
}
`

func TestAnalyzeFrame(t *testing.T) {
	t.Parallel()

	type bins map[int]int

	tcs := map[string]struct {
		shader        string
		region        debug.Region
		wantSamples   int
		wantDiscarded int
		wantFailed    int
		wantRed       bins
		wantGreen     bins
		wantBlue      bins
		wantLuminance bins
	}{
		"constant colour is clamped": {
			shader:        callShader,
			region:        debug.Region{Width: 2, Height: 2},
			wantSamples:   4,
			wantRed:       bins{debug.HistogramBins - 1: 4},
			wantGreen:     bins{debug.HistogramBins - 1: 4},
			wantBlue:      bins{0: 4},
			wantLuminance: bins{debug.HistogramBins - 1: 4},
		},
		"colour follows position": {
			shader:      loopShader,
			region:      debug.Region{Width: 4, Height: 2},
			wantSamples: 8,
			wantRed:     bins{debug.HistogramBins - 1: 8},
			wantGreen:   bins{debug.HistogramBins / 2: 2, debug.HistogramBins - 1: 6},
			wantBlue:    bins{0: 8},
		},
		"discarded pixels are counted not binned": {
			shader:        discardShader,
			region:        debug.Region{Width: 4, Height: 1},
			wantSamples:   4,
			wantDiscarded: 2,
			wantRed:       bins{0: 2},
			wantBlue:      bins{debug.HistogramBins - 1: 2},
			wantLuminance: bins{18: 2},
		},
		"stride skips pixels": {
			shader:      loopShader,
			region:      debug.Region{Width: 4, Height: 4, Stride: 2},
			wantSamples: 4,
			wantGreen:   bins{debug.HistogramBins / 2: 2, debug.HistogramBins - 1: 2},
		},
		"failing invocations are recorded": {
			shader:      recursiveShader,
			region:      debug.Region{X: 3, Y: 3, Width: 1, Height: 2},
			wantSamples: 2,
			wantFailed:  2,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, debug.WithMaxStackDepth(8))
			itemID := h.addBuiltItem(t, tc.shader)

			got, err := h.engine.AnalyzeFrame(context.Background(), itemID, tc.region)
			require.NoError(t, err)

			assert.Equal(t, itemID, got.Item)
			require.Len(t, got.Samples, tc.wantSamples)
			assert.Equal(t, tc.wantDiscarded, got.Discarded)
			assert.Equal(t, tc.wantFailed, got.Failed)
			binned := tc.wantSamples - tc.wantDiscarded - tc.wantFailed
			for _, hist := range []debug.Histogram{got.Red, got.Green, got.Blue, got.Luminance} {
				assert.Equal(t, binned, hist.Total())
			}
			for bin, n := range tc.wantRed {
				assert.Equal(t, n, got.Red[bin], "red bin %d", bin)
			}
			for bin, n := range tc.wantGreen {
				assert.Equal(t, n, got.Green[bin], "green bin %d", bin)
			}
			for bin, n := range tc.wantBlue {
				assert.Equal(t, n, got.Blue[bin], "blue bin %d", bin)
			}
			for bin, n := range tc.wantLuminance {
				assert.Equal(t, n, got.Luminance[bin], "luminance bin %d", bin)
			}
		})
	}
}

func TestAnalyzeFrameSamples(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	itemID := h.addBuiltItem(t, loopShader)

	got, err := h.engine.AnalyzeFrame(context.Background(), itemID, debug.Region{X: 1, Y: 5, Width: 2, Height: 1})
	require.NoError(t, err)
	require.Len(t, got.Samples, 2)

	first := got.Samples[0]
	assert.Equal(t, 1, first.X)
	assert.Equal(t, 5, first.Y)
	assert.InDelta(t, 1.0, first.Color[0], 1e-6)
	assert.InDelta(t, 1.5, first.Color[1], 1e-6)
	assert.InDelta(t, 1.0, first.Color[3], 1e-6)
	assert.Equal(t, 2, got.Samples[1].X)
	assert.Empty(t, got.Samples[1].Error)
}

func TestAnalyzeFrameErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t)
	built := h.addBuiltItem(t, callShader)
	unbuilt := h.addItem(t, fullscreen, callShader)

	_, err := h.engine.AnalyzeFrame(ctx, built, debug.Region{Width: 0, Height: 4})
	require.ErrorIs(t, err, debug.ErrEmptyRegion)

	_, err = h.engine.AnalyzeFrame(ctx, unbuilt, debug.Region{Width: 1, Height: 1})
	require.ErrorIs(t, err, debug.ErrNotCompiled)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = h.engine.AnalyzeFrame(cancelled, built, debug.Region{Width: 2, Height: 2})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, debug.StateDetached, h.engine.State())
	assert.Empty(t, h.events.all())
}
