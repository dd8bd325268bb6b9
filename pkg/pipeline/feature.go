package pipeline

import (
	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/internal/store"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
)

// feature is the pass dependency graph. An edge goes from the pass writing a
// resource to every pass reading it.
type feature struct {
	store store.CustomStore[model.PassID, model.PassID]
	graph graph.Graph[model.PassID, model.PassID]
}

func passHash(id model.PassID) model.PassID {
	return id
}

func newFeature() *feature {
	st := store.NewMemoryStore[model.PassID, model.PassID]()

	return &feature{
		store: st,
		graph: graph.NewWithStore(passHash, st, graph.Directed()),
	}
}

func (f *feature) addPass(id model.PassID) error {
	err := f.graph.AddVertex(id)
	if err != nil {
		return errors.Wrapf(err, "unable to add %s", id)
	}

	return nil
}

func (f *feature) addLink(producer, consumer model.PassID) error {
	err := f.graph.AddEdge(producer, consumer)
	if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return errors.Wrapf(err, "unable to link %s to %s", producer, consumer)
	}

	return nil
}

// producers returns the passes writing a resource consumer reads.
func (f *feature) producers(consumer model.PassID) ([]model.PassID, error) {
	preds, err := f.store.Predecessors(consumer)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to list producers of %s", consumer)
	}

	return preds, nil
}

// order sorts the passes so that producers run before consumers, keeping
// insertion order where the graph leaves a choice.
func (f *feature) order(index map[model.PassID]int) ([]model.PassID, error) {
	sorted, err := graph.StableTopologicalSort(f.graph, func(a, b model.PassID) bool {
		return index[a] < index[b]
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to order passes")
	}

	return sorted, nil
}
