package drawer_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/go-playground/colors.v1"

	"github.com/askiada/go-shaderpipe/pkg/pipeline/drawer"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/measure"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
)

func hex(t *testing.T, r, g, b uint8) string {
	t.Helper()

	c, err := colors.RGB(r, g, b)
	require.NoError(t, err)

	return c.ToHEX().String()
}

func TestRender(t *testing.T) {
	t.Parallel()

	d := drawer.NewDOTDrawer("")
	require.NoError(t, d.AddPass("shadow"))
	require.NoError(t, d.AddPass("main"))
	require.NoError(t, d.AddItem("main", "quad"))
	require.NoError(t, d.AddDependency("shadow", "main"))
	require.NoError(t, d.AddDependency("shadow", "main"))
	require.NoError(t, d.SetStatus("quad", model.Failed))

	var buf bytes.Buffer
	require.NoError(t, d.Render(&buf))

	out := buf.String()
	assert.Contains(t, out, "strict digraph")
	assert.Contains(t, out, `"main" -> "quad"`)
	assert.Contains(t, out, `"shadow" -> "main"`)
	assert.Contains(t, out, `fillcolor="`+hex(t, 255, 0, 0)+`"`)
	assert.Contains(t, out, `style="dashed"`)
}

func TestSetStatusUnknownItem(t *testing.T) {
	t.Parallel()

	d := drawer.NewDOTDrawer("")
	require.NoError(t, d.AddPass("main"))
	assert.Error(t, d.SetStatus("main", model.Valid))
}

func TestAddMeasure(t *testing.T) {
	t.Parallel()

	d := drawer.NewDOTDrawer("")
	require.NoError(t, d.AddPass("main"))
	require.NoError(t, d.AddItem("main", "fast"))
	require.NoError(t, d.AddItem("main", "slow"))

	msr := measure.NewDefaultMeasure()
	msr.AddMetric("fast").AddDuration(time.Millisecond)
	msr.AddMetric("slow").AddDuration(4 * time.Millisecond)
	msr.AddMetric("slow").AddSkip("stale")
	msr.AddMetric("not drawn").AddDuration(time.Millisecond)

	require.NoError(t, d.AddMeasure(msr))

	var buf bytes.Buffer
	require.NoError(t, d.Render(&buf))

	out := buf.String()
	assert.Contains(t, out, `color="`+hex(t, 240, 0, 0)+`"`)
	assert.Contains(t, out, `color="`+hex(t, 0, 0, 240)+`"`)
	assert.Contains(t, out, "avg: 4ms, skipped: 1 reasons")

	// rendering twice keeps the labels
	var again bytes.Buffer
	require.NoError(t, d.Render(&again))
	assert.Contains(t, again.String(), "avg: 1ms")
}

func TestPipelineDrawer(t *testing.T) {
	t.Parallel()

	fileName := filepath.Join(t.TempDir(), "pipeline.dot")
	opt := drawer.PipelineDrawer(drawer.NewDOTDrawer(fileName), nil)

	shadow := &model.PassInfo{ID: 1, Name: "shadow"}
	main := &model.PassInfo{ID: 2, Name: "main"}
	item := &model.ItemInfo{ID: 3, Name: "quad", Pass: 2, Status: model.Valid}

	require.NoError(t, opt.New())
	require.NoError(t, opt.PreparePass(shadow))
	require.NoError(t, opt.PreparePass(main))
	require.NoError(t, opt.PrepareItem(main, item))
	require.NoError(t, opt.OnItemBuilt(item, time.Millisecond))
	require.NoError(t, opt.OnDependency(shadow, main))
	require.NoError(t, opt.Finish())

	content, err := os.ReadFile(fileName)
	require.NoError(t, err)
	assert.Contains(t, string(content), item.Key())
	assert.Contains(t, string(content), `fillcolor="`+hex(t, 120, 200, 120)+`"`)
}
