// Package device defines the GPU collaborator the pipeline submits work to.
package device

import (
	"context"
	"sync"

	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/registry"
	"github.com/askiada/go-shaderpipe/pkg/sysvar"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

// Work is one draw or dispatch issued by an item during a frame.
type Work struct {
	Frame    uint64
	Pass     model.PassID
	Item     model.ItemID
	Name     string
	Kind     model.ItemKind
	Programs map[model.Stage]model.Program
	Bindings map[model.Slot]registry.Handle
	// Uniforms holds the values of the item's uniform sources for this frame.
	Uniforms map[string]value.Value
	// Vars is the system variable snapshot the frame was built from.
	Vars    *sysvar.Snapshot
	Targets []registry.Handle
	State   model.RenderState
	// Stale is set when the programs come from an earlier successful build.
	Stale bool
}

// Device executes work on the GPU.
type Device interface {
	Submit(ctx context.Context, work Work) error
}

// Func adapts a function to the Device interface.
type Func func(ctx context.Context, work Work) error

func (f Func) Submit(ctx context.Context, work Work) error {
	return f(ctx, work)
}

// Recorder keeps every submission in memory. It backs headless runs.
type Recorder struct {
	mu    sync.Mutex
	works []Work
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Submit(ctx context.Context, work Work) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.works = append(r.works, work)

	return nil
}

// Works returns the submissions in order.
func (r *Recorder) Works() []Work {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Work, len(r.works))
	copy(out, r.works)

	return out
}

// Count returns how many times item submitted work.
func (r *Recorder) Count(item model.ItemID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, w := range r.works {
		if w.Item == item {
			n++
		}
	}

	return n
}

// Reset forgets every submission.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.works = nil
}

var (
	_ Device = (*Recorder)(nil)
	_ Device = Func(nil)
)
