package pipeline

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/registry"
)

var (
	ErrInvalidReference  = errors.New("invalid reference")
	ErrNotFound          = errors.New("not found")
	ErrMissingStage      = errors.New("missing stage")
	ErrEmptyName         = errors.New("name must be set")
	ErrCompilerMustBeSet = errors.New("compiler must be set")
	ErrRegistryMustBeSet = errors.New("registry must be set")
	ErrBuildFailed       = errors.New("build failed")
	ErrClosed            = errors.New("pipeline is closed")
)

// DependencyOrderWarning reports a pass reading a resource that a later pass
// writes. Rendering goes on with whatever the resource holds.
type DependencyOrderWarning struct {
	Producer     model.PassID
	ProducerName string
	Consumer     model.PassID
	ConsumerName string
	Resource     registry.Handle
}

func (w DependencyOrderWarning) String() string {
	return fmt.Sprintf("pass %q reads resource %d before pass %q writes it", w.ConsumerName, w.Resource, w.ProducerName)
}
