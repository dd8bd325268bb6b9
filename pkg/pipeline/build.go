package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
)

type buildResult struct {
	programs    map[model.Stage]model.Program
	diagnostics []model.Diagnostic
	elapsed     time.Duration
}

func (r buildResult) failed() bool {
	for _, d := range r.diagnostics {
		if d.Severity == model.SeverityError {
			return true
		}
	}

	return false
}

// compile runs the compiler on every stage. It holds no lock.
func (p *Pipeline) compile(sources map[model.Stage]model.Source) buildResult {
	start := time.Now()
	res := buildResult{programs: make(map[model.Stage]model.Program, len(sources))}

	for _, stage := range sortedStages(sources) {
		prog, err := p.compiler.Compile(stage, sources[stage])
		if err != nil {
			var cerr *model.CompileError
			if errors.As(err, &cerr) {
				for _, d := range cerr.Diagnostics {
					if d.Stage == 0 {
						d.Stage = stage
					}
					res.diagnostics = append(res.diagnostics, d)
				}
				continue
			}
			res.diagnostics = append(res.diagnostics, model.Diagnostic{
				Stage:    stage,
				Severity: model.SeverityError,
				Message:  err.Error(),
			})
			continue
		}

		res.programs[stage] = prog
		for _, d := range prog.Warnings() {
			if d.Stage == 0 {
				d.Stage = stage
			}
			res.diagnostics = append(res.diagnostics, d)
		}
	}
	res.elapsed = time.Since(start)

	return res
}

// commit stores a build result. A failed build keeps the previous programs.
func (p *Pipeline) commit(it *item, res buildResult) error {
	diags := append(append([]model.Diagnostic(nil), res.diagnostics...), p.checkBindings(it, res)...)
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Stage != diags[j].Stage {
			return diags[i].Stage < diags[j].Stage
		}
		return diags[i].Line < diags[j].Line
	})
	res.diagnostics = diags

	if res.failed() {
		it.status = model.Status{State: model.Failed, Diagnostics: diags}
		p.logger.Warn("item build failed", "item", it.info.Key(), "diagnostics", len(diags),
			"retained", it.programs != nil)
	} else {
		it.status = model.Status{State: model.Valid, Diagnostics: diags}
		it.programs = res.programs
		p.logger.Debug("item built", "item", it.info.Key(), "elapsed", res.elapsed)
	}

	for _, hook := range p.hooks {
		err := hook.OnItemBuilt(p.itemInfo(it), res.elapsed)
		if err != nil {
			return errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	if it.status.State == model.Failed {
		return &model.CompileError{Diagnostics: diags}
	}

	return nil
}

// checkBindings reports bound resources that no longer exist as errors and
// declared slots without a binding as warnings.
func (p *Pipeline) checkBindings(it *item, res buildResult) []model.Diagnostic {
	var diags []model.Diagnostic

	slots := make([]model.Slot, 0, len(it.bindings))
	for slot := range it.bindings {
		slots = append(slots, slot)
	}
	sortSlots(slots)
	for _, slot := range slots {
		h := it.bindings[slot].handle
		if !p.registry.Exists(h) {
			diags = append(diags, model.Diagnostic{
				Severity: model.SeverityError,
				Message:  fmt.Sprintf("%s references released resource %d", slot, h),
			})
		}
	}

	for _, stage := range sortedStages(res.programs) {
		for _, slot := range res.programs[stage].Slots() {
			if _, ok := it.bindings[slot]; ok {
				continue
			}
			diags = append(diags, model.Diagnostic{
				Stage:    stage,
				Severity: model.SeverityWarning,
				Message:  fmt.Sprintf("%s is declared but not bound", slot),
			})
		}
	}

	return diags
}

// Build compiles an item. On failure the returned error is a
// *model.CompileError and the last good programs keep running.
func (p *Pipeline) Build(ctx context.Context, id model.ItemID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	it, err := p.item(id)
	if err != nil {
		return err
	}

	return p.build(ctx, it)
}

func (p *Pipeline) build(ctx context.Context, it *item) error {
	err := ctx.Err()
	if err != nil {
		return errors.Wrapf(err, "build of %s cancelled", it.info.Key())
	}

	it.status.State = model.Compiling

	return p.commit(it, p.compile(it.sources))
}

type buildJob struct {
	id       model.ItemID
	revision uint64
	sources  map[model.Stage]model.Source
}

// BuildAll compiles every unbuilt item concurrently, then commits the results
// in pipeline order. Items edited while compiling stay unbuilt.
func (p *Pipeline) BuildAll(ctx context.Context) error {
	p.mu.Lock()
	var jobs []buildJob
	for _, ps := range p.passes {
		for _, id := range ps.items {
			it := p.items[id]
			if it.status.State != model.Unbuilt {
				continue
			}
			sources := make(map[model.Stage]model.Source, len(it.sources))
			for stage, src := range it.sources {
				sources[stage] = src
			}
			it.status.State = model.Compiling
			jobs = append(jobs, buildJob{id: id, revision: it.revision, sources: sources})
		}
	}
	p.mu.Unlock()

	results := make([]buildResult, len(jobs))
	errGrp, dCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(p.buildConcurrency)
	for i, job := range jobs {
		errGrp.Go(func() error {
			err := dCtx.Err()
			if err != nil {
				return errors.Wrapf(err, "build of %s cancelled", job.id)
			}
			results[i] = p.compile(job.sources)

			return nil
		})
	}
	waitErr := errGrp.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Every job is committed even when a hook fails, so no item stays Compiling.
	failed := 0
	var hookErr error
	for i, job := range jobs {
		it, ok := p.items[job.id]
		if !ok || it.revision != job.revision {
			continue
		}
		if waitErr != nil {
			it.status.State = model.Unbuilt
			continue
		}
		err := p.commit(it, results[i])
		if err != nil {
			var cerr *model.CompileError
			if !errors.As(err, &cerr) {
				if hookErr == nil {
					hookErr = err
				}
				continue
			}
			failed++
		}
	}

	if waitErr != nil {
		return waitErr
	}
	if hookErr != nil {
		return hookErr
	}
	if failed > 0 {
		return errors.Wrapf(ErrBuildFailed, "%d of %d items", failed, len(jobs))
	}

	return nil
}
