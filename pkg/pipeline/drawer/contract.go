package drawer

import (
	"github.com/askiada/go-shaderpipe/pkg/pipeline/measure"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
)

// Drawer is an interface that defines the methods for drawing a pipeline.
type Drawer interface {
	// AddPass adds a pass to the pipeline drawer.
	AddPass(passName string) error
	// AddItem adds an item to a pass.
	AddItem(passName, itemName string) error
	// AddDependency adds a link from the producer pass to the consumer pass.
	AddDependency(producerPassName, consumerPassName string) error
	// SetStatus colours an item after its build status.
	SetStatus(itemName string, state model.BuildState) error
	// AddMeasure adds a measure to the pipeline drawer.
	AddMeasure(measure measure.Measure) error
	// Draw creates a file with the pipeline graph.
	Draw() error
}
