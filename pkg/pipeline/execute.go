package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/device"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/registry"
	"github.com/askiada/go-shaderpipe/pkg/sysvar"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

// Skip reasons reported in a FrameReport.
const (
	ReasonNotBuilt     = "not built"
	ReasonCompiling    = "compiling"
	ReasonCompileError = "compile error"
	ReasonDeviceError  = "device error"
)

// Frame is the per-frame input of Execute.
type Frame struct {
	Index uint64
	// Vars is the system variable snapshot committed by the last tick.
	Vars *sysvar.Snapshot
}

// Skip records an item that did not run in a frame.
type Skip struct {
	Item   model.ItemID
	Name   string
	Reason string
}

// FrameReport summarises one Execute call.
type FrameReport struct {
	Frame    uint64
	Executed []model.ItemID
	// Stale lists the executed items running an earlier successful build.
	Stale    []model.ItemID
	Skipped  []Skip
	Warnings []DependencyOrderWarning
	Duration time.Duration
}

// Ran reports whether item submitted work during the frame.
func (r FrameReport) Ran(item model.ItemID) bool {
	for _, id := range r.Executed {
		if id == item {
			return true
		}
	}

	return false
}

// Execute walks the passes in order and submits the work of every item that
// has a successful build. Unbuilt items are built first when auto build is on.
// Items whose latest build failed keep running their last good build and are
// reported as stale. Items without any good build are skipped.
func (p *Pipeline) Execute(ctx context.Context, frame Frame) (FrameReport, error) {
	start := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return FrameReport{}, ErrClosed
	}

	report := FrameReport{
		Frame:    frame.Index,
		Warnings: append([]DependencyOrderWarning(nil), p.warnings...),
	}

	for _, ps := range p.passes {
		for _, id := range ps.items {
			err := ctx.Err()
			if err != nil {
				return report, errors.Wrapf(err, "frame %d cancelled", frame.Index)
			}

			err = p.executeItem(ctx, ps, p.items[id], frame, &report)
			if err != nil {
				return report, err
			}
		}
	}
	report.Duration = time.Since(start)

	return report, nil
}

func (p *Pipeline) executeItem(ctx context.Context, ps *pass, it *item, frame Frame, report *FrameReport) error {
	if it.status.State == model.Unbuilt && p.autoBuild {
		err := p.build(ctx, it)
		if err != nil {
			p.logger.Debug("lazy build failed", "item", it.info.Key(), "error", err)
		}
	}

	if it.programs == nil {
		return p.skip(it, skipReason(it.status.State), report)
	}

	stale := it.status.State != model.Valid
	work := p.work(ps, it, frame, stale)

	begin := time.Now()
	err := p.device.Submit(ctx, work)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), "frame %d cancelled", frame.Index)
		}
		p.logger.Error("submit failed", "item", it.info.Key(), "error", err)
		return p.skip(it, ReasonDeviceError, report)
	}
	elapsed := time.Since(begin)

	report.Executed = append(report.Executed, it.info.ID)
	if stale {
		report.Stale = append(report.Stale, it.info.ID)
	}

	for _, hook := range p.hooks {
		err = hook.OnItemExecuted(p.itemInfo(it), elapsed)
		if err != nil {
			return errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	return nil
}

func skipReason(state model.BuildState) string {
	switch state {
	case model.Compiling:
		return ReasonCompiling
	case model.Failed:
		return ReasonCompileError
	default:
		return ReasonNotBuilt
	}
}

func (p *Pipeline) skip(it *item, reason string, report *FrameReport) error {
	report.Skipped = append(report.Skipped, Skip{Item: it.info.ID, Name: it.info.Name, Reason: reason})

	for _, hook := range p.hooks {
		err := hook.OnItemSkipped(p.itemInfo(it), reason)
		if err != nil {
			return errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	return nil
}

func (p *Pipeline) work(ps *pass, it *item, frame Frame, stale bool) device.Work {
	work := device.Work{
		Frame:    frame.Index,
		Pass:     ps.info.ID,
		Item:     it.info.ID,
		Name:     it.info.Name,
		Kind:     it.info.Kind,
		Programs: make(map[model.Stage]model.Program, len(it.programs)),
		Bindings: make(map[model.Slot]registry.Handle, len(it.bindings)),
		Uniforms: p.uniforms(it, frame.Vars),
		Vars:     frame.Vars,
		Targets:  append([]registry.Handle(nil), ps.outputs...),
		State:    it.state,
		Stale:    stale,
	}
	for stage, prog := range it.programs {
		work.Programs[stage] = prog
	}
	for slot, b := range it.bindings {
		work.Bindings[slot] = b.handle
	}

	return work
}

// uniforms resolves the uniform sources of an item against a snapshot.
// Sources naming an unknown variable are left out.
func (p *Pipeline) uniforms(it *item, vars *sysvar.Snapshot) map[string]value.Value {
	out := make(map[string]value.Value, len(it.uniforms))
	for name, src := range it.uniforms {
		if src.Value != nil {
			out[name] = src.Value.Clone()
			continue
		}
		if vars == nil {
			continue
		}
		v, ok := vars.Get(src.Variable)
		if !ok {
			p.logger.Debug("unknown system variable", "item", it.info.Key(), "variable", src.Variable)
			continue
		}
		out[name] = v
	}

	return out
}

// Uniforms resolves the uniform sources of an item against a snapshot, as
// Execute does when submitting the item.
func (p *Pipeline) Uniforms(id model.ItemID, vars *sysvar.Snapshot) (map[string]value.Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	it, err := p.item(id)
	if err != nil {
		return nil, err
	}

	return p.uniforms(it, vars), nil
}
