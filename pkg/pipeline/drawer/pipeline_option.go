package drawer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/pipeline/measure"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
)

type pipelineDrawer struct {
	Drawer
	m measure.Measure
}

func (pd *pipelineDrawer) New() error {
	return nil
}

func (pd *pipelineDrawer) PreparePass(pass *model.PassInfo) error {
	err := pd.AddPass(pass.Key())
	if err != nil {
		return errors.Wrap(err, "unable to add pass to drawer")
	}

	return nil
}

func (pd *pipelineDrawer) PrepareItem(pass *model.PassInfo, item *model.ItemInfo) error {
	err := pd.AddItem(pass.Key(), item.Key())
	if err != nil {
		return errors.Wrap(err, "unable to add item to drawer")
	}

	return nil
}

func (pd *pipelineDrawer) OnItemBuilt(item *model.ItemInfo, _ time.Duration) error {
	return pd.SetStatus(item.Key(), item.Status)
}

func (pd *pipelineDrawer) OnItemExecuted(*model.ItemInfo, time.Duration) error {
	return nil
}

func (pd *pipelineDrawer) OnItemSkipped(*model.ItemInfo, string) error {
	return nil
}

func (pd *pipelineDrawer) OnDependency(producer, consumer *model.PassInfo) error {
	return pd.AddDependency(producer.Key(), consumer.Key())
}

func (pd *pipelineDrawer) Finish() error {
	if pd.m != nil {
		err := pd.AddMeasure(pd.m)
		if err != nil {
			return errors.Wrap(err, "unable to add measure")
		}
	}

	err := pd.Draw()
	if err != nil {
		return errors.Wrap(err, "unable to draw pipeline")
	}

	return nil
}

// PipelineDrawer draws the pipeline when it is closed. measure is optional.
func PipelineDrawer(drawer Drawer, measure measure.Measure) model.PipelineOption {
	return &pipelineDrawer{drawer, measure}
}
