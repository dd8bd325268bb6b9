package debug_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/askiada/go-shaderpipe/pkg/compiler"
	"github.com/askiada/go-shaderpipe/pkg/debug"
	"github.com/askiada/go-shaderpipe/pkg/device"
	"github.com/askiada/go-shaderpipe/pkg/pipeline"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/registry"
	"github.com/askiada/go-shaderpipe/pkg/sysvar"
)

const pixelFile = "shade.wgsl"

const fullscreen = `@vertex
fn vs(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
    let x = f32(idx) * 0.5;
    return vec4<f32>(x, 0.0, 0.0, 1.0);
}
`

const loopShader = `@fragment
fn main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    var sum = 0.0;
    for (var i = 0; i < 3; i = i + 1) {
        sum = sum + f32(i);
    }
    let shade = sum / 3.0;
    let x = pos.x;
    return vec4<f32>(shade, x, 0.0, 1.0);
}
`

const callShader = `fn square(x: f32) -> f32 {
    let y = x * x;
    return y;
}

@fragment
fn main() -> @location(0) vec4<f32> {
    let a = square(3.0);
    let b = a + 1.0;
    return vec4<f32>(a, b, 0.0, 1.0);
}
`

const recursiveShader = `fn down(n: i32) -> i32 {
    return down(n + 1);
}

@fragment
fn main() -> @location(0) vec4<f32> {
    let d = down(0);
    return vec4<f32>(f32(d), 0.0, 0.0, 1.0);
}
`

type eventLog struct {
	mu     sync.Mutex
	events []debug.Event
}

func (l *eventLog) listen(ev debug.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, ev)
}

func (l *eventLog) all() []debug.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]debug.Event(nil), l.events...)
}

func (l *eventLog) paused() []debug.Paused {
	var out []debug.Paused
	for _, ev := range l.all() {
		if p, ok := ev.(debug.Paused); ok {
			out = append(out, p)
		}
	}

	return out
}

func (l *eventLog) terminated() []debug.Terminated {
	var out []debug.Terminated
	for _, ev := range l.all() {
		if p, ok := ev.(debug.Terminated); ok {
			out = append(out, p)
		}
	}

	return out
}

func (l *eventLog) hits() []debug.BreakpointHit {
	var out []debug.BreakpointHit
	for _, ev := range l.all() {
		if p, ok := ev.(debug.BreakpointHit); ok {
			out = append(out, p)
		}
	}

	return out
}

type harness struct {
	pipe   *pipeline.Pipeline
	vars   *sysvar.Manager
	engine *debug.Engine
	events *eventLog
}

func newHarness(t *testing.T, opts ...debug.Option) *harness {
	t.Helper()

	pipe, err := pipeline.New(compiler.New(compiler.WithSyntaxOnly()), registry.New(),
		pipeline.WithDevice(device.NewRecorder()))
	require.NoError(t, err)

	h := &harness{pipe: pipe, vars: sysvar.New(), events: &eventLog{}}
	h.engine, err = debug.New(pipe, h.vars, append([]debug.Option{debug.WithListener(h.events.listen)}, opts...)...)
	require.NoError(t, err)

	return h
}

// addItem adds a geometry item in its own pass without building it.
func (h *harness) addItem(t *testing.T, vertex, pixel string) model.ItemID {
	t.Helper()

	passID, err := h.pipe.AddPass("main")
	require.NoError(t, err)
	itemID, err := h.pipe.AddItem(passID, "quad", model.KindGeometry, map[model.Stage]model.Source{
		model.StageVertex: {Path: "quad.wgsl", Text: vertex},
		model.StagePixel:  {Path: pixelFile, Text: pixel},
	})
	require.NoError(t, err)

	return itemID
}

// addBuiltItem adds a geometry item and builds it.
func (h *harness) addBuiltItem(t *testing.T, pixel string) model.ItemID {
	t.Helper()

	itemID := h.addItem(t, fullscreen, pixel)
	require.NoError(t, h.pipe.Build(context.Background(), itemID))

	return itemID
}

func breakpoint(line int) debug.Breakpoint {
	return debug.Breakpoint{File: pixelFile, Line: line, Stage: model.StagePixel}
}

func localOf(t *testing.T, fr debug.Frame, name string) float64 {
	t.Helper()

	for _, v := range fr.Locals {
		if v.Name == name {
			return v.Value.Float()
		}
	}
	require.Failf(t, "missing local", "%s not in frame %s", name, fr.Function)

	return 0
}
