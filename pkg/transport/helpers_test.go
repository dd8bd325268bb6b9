package transport_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/askiada/go-shaderpipe/pkg/compiler"
	"github.com/askiada/go-shaderpipe/pkg/debug"
	"github.com/askiada/go-shaderpipe/pkg/device"
	"github.com/askiada/go-shaderpipe/pkg/pipeline"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/registry"
	"github.com/askiada/go-shaderpipe/pkg/sysvar"
	"github.com/askiada/go-shaderpipe/pkg/transport"
)

const pixelFile = "shade.wgsl"

const fullscreen = `@vertex
fn vs(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
    return vec4<f32>(f32(idx), 0.0, 0.0, 1.0);
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

type fixture struct {
	engine *debug.Engine
	server *transport.Server
	url    string
	item   model.ItemID
}

func newFixture(t *testing.T, opts ...transport.Option) *fixture {
	t.Helper()

	pipe, err := pipeline.New(compiler.New(compiler.WithSyntaxOnly()), registry.New(),
		pipeline.WithDevice(device.NewRecorder()))
	require.NoError(t, err)

	passID, err := pipe.AddPass("main")
	require.NoError(t, err)
	itemID, err := pipe.AddItem(passID, "quad", model.KindGeometry, map[model.Stage]model.Source{
		model.StageVertex: {Path: "quad.wgsl", Text: fullscreen},
		model.StagePixel:  {Path: pixelFile, Text: loopShader},
	})
	require.NoError(t, err)
	require.NoError(t, pipe.Build(context.Background(), itemID))

	engine, err := debug.New(pipe, sysvar.New())
	require.NoError(t, err)

	srv, err := transport.New(engine, opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		_ = srv.Close()
		ts.Close()
	})

	return &fixture{
		engine: engine,
		server: srv,
		url:    "ws" + strings.TrimPrefix(ts.URL, "http"),
		item:   itemID,
	}
}

func (f *fixture) dial(t *testing.T) *transport.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := transport.Dial(ctx, f.url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

// nextEvents reads n events from c.
func nextEvents(t *testing.T, c *transport.Client, n int) []transport.Message {
	t.Helper()

	out := make([]transport.Message, 0, n)
	timeout := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case msg, ok := <-c.Events():
			require.True(t, ok, "connection closed after %d events", len(out))
			out = append(out, msg)
		case <-timeout:
			require.FailNow(t, "timed out", "got %d of %d events", len(out), n)
		}
	}

	return out
}

func eventNames(msgs []transport.Message) []string {
	names := make([]string, 0, len(msgs))
	for _, m := range msgs {
		names = append(names, m.Event)
	}

	return names
}

func pixelBreakpoint(line int) debug.Breakpoint {
	return debug.Breakpoint{File: pixelFile, Line: line, Stage: model.StagePixel}
}
