package measure

import (
	"time"

	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
)

type pipelineMeasure struct {
	Measure
}

func (pm *pipelineMeasure) New() error {
	return nil
}

func (pm *pipelineMeasure) PreparePass(pass *model.PassInfo) error {
	return nil
}

func (pm *pipelineMeasure) PrepareItem(pass *model.PassInfo, item *model.ItemInfo) error {
	pm.AddMetric(item.Key())

	return nil
}

func (pm *pipelineMeasure) OnItemBuilt(item *model.ItemInfo, compileDuration time.Duration) error {
	pm.AddMetric(item.Key()).AddBuildDuration(compileDuration)

	return nil
}

func (pm *pipelineMeasure) OnItemExecuted(item *model.ItemInfo, executionDuration time.Duration) error {
	pm.AddMetric(item.Key()).AddDuration(executionDuration)

	return nil
}

func (pm *pipelineMeasure) OnItemSkipped(item *model.ItemInfo, reason string) error {
	pm.AddMetric(item.Key()).AddSkip(reason)

	return nil
}

func (pm *pipelineMeasure) OnDependency(producer, consumer *model.PassInfo) error {
	return nil
}

func (pm *pipelineMeasure) Finish() error {
	return nil
}

// PipelineMeasure records item build and execution timings into measure.
func PipelineMeasure(measure Measure) model.PipelineOption {
	return &pipelineMeasure{measure}
}
