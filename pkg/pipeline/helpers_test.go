package pipeline_test

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-shaderpipe/pkg/device"
	"github.com/askiada/go-shaderpipe/pkg/pipeline"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/registry"
)

type fakeProgram struct {
	stage model.Stage
	text  string
	slots []model.Slot
}

func (p *fakeProgram) Stage() model.Stage           { return p.stage }
func (p *fakeProgram) EntryPoint() string           { return "main" }
func (p *fakeProgram) Slots() []model.Slot          { return p.slots }
func (p *fakeProgram) Warnings() []model.Diagnostic { return nil }

// fakeCompiler fails on sources containing "error" and declares slot 0/0 for
// sources containing "texture".
type fakeCompiler struct {
	calls atomic.Int64
}

func (c *fakeCompiler) Compile(stage model.Stage, src model.Source) (model.Program, error) {
	c.calls.Add(1)

	if strings.Contains(src.Text, "error") {
		return nil, &model.CompileError{Diagnostics: []model.Diagnostic{
			{Line: 2, Column: 5, Severity: model.SeverityError, Message: "unexpected token"},
		}}
	}

	prog := &fakeProgram{stage: stage, text: src.Text}
	if strings.Contains(src.Text, "texture") {
		prog.slots = []model.Slot{{Group: 0, Binding: 0}}
	}

	return prog, nil
}

func geometrySources(pixel string) map[model.Stage]model.Source {
	return map[model.Stage]model.Source{
		model.StageVertex: {Path: "quad.vs", Text: "vertex"},
		model.StagePixel:  {Path: "quad.ps", Text: pixel},
	}
}

type fixture struct {
	pipe     *pipeline.Pipeline
	compiler *fakeCompiler
	registry *registry.Registry
	recorder *device.Recorder
}

func newFixture(t *testing.T, opts ...pipeline.Option) *fixture {
	t.Helper()

	f := &fixture{
		compiler: &fakeCompiler{},
		registry: registry.New(),
		recorder: device.NewRecorder(),
	}

	pipe, err := pipeline.New(f.compiler, f.registry, append([]pipeline.Option{pipeline.WithDevice(f.recorder)}, opts...)...)
	require.NoError(t, err)
	f.pipe = pipe

	return f
}

func (f *fixture) addItem(t *testing.T, passName, itemName, pixel string) (model.PassID, model.ItemID) {
	t.Helper()

	passID, err := f.pipe.AddPass(passName)
	require.NoError(t, err)
	itemID, err := f.pipe.AddItem(passID, itemName, model.KindGeometry, geometrySources(pixel))
	require.NoError(t, err)

	return passID, itemID
}

var errHook = errors.New("hook failed")

// failingHook fails the first OnItemBuilt call.
type failingHook struct {
	failed bool
}

func (*failingHook) New() error {
	return nil
}

func (*failingHook) PreparePass(*model.PassInfo) error {
	return nil
}

func (*failingHook) PrepareItem(*model.PassInfo, *model.ItemInfo) error {
	return nil
}

func (h *failingHook) OnItemBuilt(*model.ItemInfo, time.Duration) error {
	if h.failed {
		return nil
	}
	h.failed = true

	return errHook
}

func (*failingHook) OnItemExecuted(*model.ItemInfo, time.Duration) error {
	return nil
}

func (*failingHook) OnItemSkipped(*model.ItemInfo, string) error {
	return nil
}

func (*failingHook) OnDependency(_, _ *model.PassInfo) error {
	return nil
}

func (*failingHook) Finish() error {
	return nil
}
