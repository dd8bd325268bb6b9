package measure_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-shaderpipe/pkg/pipeline/measure"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
)

func TestDefaultMetric(t *testing.T) {
	t.Parallel()

	msr := measure.NewDefaultMeasure()
	mt := msr.AddMetric("quad")
	assert.Same(t, mt, msr.AddMetric("quad"))

	mt.AddDuration(2 * time.Millisecond)
	mt.AddDuration(4 * time.Millisecond)
	mt.AddBuildDuration(10 * time.Millisecond)
	mt.AddSkip("compile error")
	mt.AddSkip("compile error")

	assert.Equal(t, 3*time.Millisecond, mt.AVGDuration())
	assert.Equal(t, 10*time.Millisecond, mt.AVGBuildDuration())
	assert.Equal(t, int64(2), mt.Count())
	assert.Equal(t, map[string]int64{"compile error": 2}, mt.Skips())
	assert.Len(t, msr.AllMetrics(), 1)
	assert.Nil(t, msr.GetMetric("unknown"))
}

func TestEmptyMetric(t *testing.T) {
	t.Parallel()

	mt := measure.NewDefaultMeasure().AddMetric("empty")
	assert.Zero(t, mt.AVGDuration())
	assert.Zero(t, mt.AVGBuildDuration())
}

func TestPipelineMeasure(t *testing.T) {
	t.Parallel()

	msr := measure.NewDefaultMeasure()
	opt := measure.PipelineMeasure(msr)
	require.NoError(t, opt.New())

	pass := &model.PassInfo{ID: 1, Name: "main"}
	item := &model.ItemInfo{ID: 2, Name: "quad", Pass: 1}
	require.NoError(t, opt.PreparePass(pass))
	require.NoError(t, opt.PrepareItem(pass, item))
	require.NoError(t, opt.OnItemBuilt(item, time.Millisecond))
	require.NoError(t, opt.OnItemExecuted(item, time.Millisecond))
	require.NoError(t, opt.OnItemSkipped(item, "stale"))
	require.NoError(t, opt.Finish())

	mt := msr.GetMetric(item.Key())
	require.NotNil(t, mt)
	assert.Equal(t, int64(1), mt.Count())
	assert.Equal(t, map[string]int64{"stale": 1}, mt.Skips())
}
