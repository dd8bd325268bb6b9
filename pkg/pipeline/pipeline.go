package pipeline

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/device"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/registry"
)

type pass struct {
	info    model.PassInfo
	items   []model.ItemID
	inputs  []registry.Handle
	outputs []registry.Handle
	// targets are the render targets the pass created and owns.
	targets []registry.Handle
}

// PassView is a read-only copy of a pass.
type PassView struct {
	ID      model.PassID
	Name    string
	Items   []model.ItemID
	Inputs  []registry.Handle
	Outputs []registry.Handle
	Targets []registry.Handle
}

// Pipeline is an ordered list of passes, each holding items.
type Pipeline struct {
	mu       sync.Mutex
	compiler model.Compiler
	registry *registry.Registry
	device   device.Device
	hooks    []model.PipelineOption
	logger   *slog.Logger

	autoBuild        bool
	buildConcurrency int

	nextPass model.PassID
	nextItem model.ItemID
	passes   []*pass
	items    map[model.ItemID]*item
	warnings []DependencyOrderWarning
	closed   bool
}

// New creates an empty pipeline compiling with compiler and binding resources
// owned by reg.
func New(compiler model.Compiler, reg *registry.Registry, opts ...Option) (*Pipeline, error) {
	if compiler == nil {
		return nil, ErrCompilerMustBeSet
	}
	if reg == nil {
		return nil, ErrRegistryMustBeSet
	}

	p := &Pipeline{
		compiler:         compiler,
		registry:         reg,
		device:           device.NewRecorder(),
		logger:           slog.Default(),
		autoBuild:        true,
		buildConcurrency: defaultBuildConcurrency,
		items:            make(map[model.ItemID]*item),
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, hook := range p.hooks {
		err := hook.New()
		if err != nil {
			return nil, errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	return p, nil
}

// Registry returns the resource registry the pipeline binds from.
func (p *Pipeline) Registry() *registry.Registry {
	return p.registry
}

// AddPass appends a pass. Passes execute in insertion order.
func (p *Pipeline) AddPass(name string) (model.PassID, error) {
	if name == "" {
		return 0, errors.Wrap(ErrEmptyName, "pass")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}

	p.nextPass++
	ps := &pass{info: model.PassInfo{ID: p.nextPass, Name: name}}
	p.passes = append(p.passes, ps)

	for _, hook := range p.hooks {
		err := hook.PreparePass(&ps.info)
		if err != nil {
			return ps.info.ID, errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	p.logger.Debug("pass added", "pass", ps.info.Key())

	return ps.info.ID, nil
}

func (p *Pipeline) pass(id model.PassID) (*pass, int, bool) {
	for i, ps := range p.passes {
		if ps.info.ID == id {
			return ps, i, true
		}
	}

	return nil, -1, false
}

// RemovePass removes a pass, its items and the render targets it owns.
func (p *Pipeline) RemovePass(id model.PassID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ps, idx, ok := p.pass(id)
	if !ok {
		return errors.Wrapf(ErrNotFound, "%s", id)
	}

	for _, itemID := range ps.items {
		p.dropItem(p.items[itemID])
	}
	p.releaseAll(ps.inputs)
	p.releaseAll(ps.outputs)
	p.releaseAll(ps.targets)

	p.passes = append(p.passes[:idx], p.passes[idx+1:]...)

	return p.refreshDependencies()
}

// retainAll retains every handle, or none of them when one fails.
func (p *Pipeline) retainAll(handles []registry.Handle) error {
	for i, h := range handles {
		err := p.registry.Retain(h)
		if err != nil {
			p.releaseAll(handles[:i])
			return errors.Wrapf(err, "unable to retain resource %d", h)
		}
	}

	return nil
}

func (p *Pipeline) releaseAll(handles []registry.Handle) {
	for _, h := range handles {
		err := p.registry.Release(h)
		if err != nil {
			p.logger.Warn("unable to release resource", "handle", h, "error", err)
		}
	}
}

// SetPassIO declares the resources a pass reads and writes. Dependency order
// is checked again and reported through Warnings.
func (p *Pipeline) SetPassIO(id model.PassID, inputs, outputs []registry.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ps, _, ok := p.pass(id)
	if !ok {
		return errors.Wrapf(ErrInvalidReference, "%s", id)
	}
	for _, h := range append(append([]registry.Handle{}, inputs...), outputs...) {
		if !p.registry.Exists(h) {
			return errors.Wrapf(ErrInvalidReference, "resource %d", h)
		}
	}

	err := p.retainAll(append(append([]registry.Handle{}, inputs...), outputs...))
	if err != nil {
		return err
	}
	p.releaseAll(ps.inputs)
	p.releaseAll(ps.outputs)

	ps.inputs = append([]registry.Handle(nil), inputs...)
	ps.outputs = append([]registry.Handle(nil), outputs...)

	return p.refreshDependencies()
}

// CreatePassTarget creates a render target owned by the pass and adds it to
// the pass outputs.
func (p *Pipeline) CreatePassTarget(id model.PassID, desc registry.Descriptor) (registry.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ps, _, ok := p.pass(id)
	if !ok {
		return 0, errors.Wrapf(ErrInvalidReference, "%s", id)
	}

	h, err := p.registry.Create(registry.KindRenderTarget, desc)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to create target of %s", ps.info.Key())
	}
	err = p.registry.Retain(h)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to retain target of %s", ps.info.Key())
	}
	ps.targets = append(ps.targets, h)
	ps.outputs = append(ps.outputs, h)

	return h, p.refreshDependencies()
}

// refreshDependencies rebuilds the pass graph and the order warnings.
func (p *Pipeline) refreshDependencies() error {
	f := newFeature()
	index := make(map[model.PassID]int, len(p.passes))
	writers := make(map[registry.Handle][]*pass)

	for i, ps := range p.passes {
		err := f.addPass(ps.info.ID)
		if err != nil {
			return err
		}
		index[ps.info.ID] = i
		for _, h := range ps.outputs {
			writers[h] = append(writers[h], ps)
		}
	}

	for _, consumer := range p.passes {
		for _, h := range consumer.inputs {
			for _, producer := range writers[h] {
				if producer == consumer {
					continue
				}
				err := f.addLink(producer.info.ID, consumer.info.ID)
				if err != nil {
					return err
				}
			}
		}
	}

	previous := make(map[DependencyOrderWarning]struct{}, len(p.warnings))
	for _, w := range p.warnings {
		previous[w] = struct{}{}
	}

	var warnings []DependencyOrderWarning
	for _, consumer := range p.passes {
		producers, err := f.producers(consumer.info.ID)
		if err != nil {
			return err
		}
		sort.Slice(producers, func(i, j int) bool { return index[producers[i]] < index[producers[j]] })

		for _, producerID := range producers {
			producer := p.passes[index[producerID]]
			if index[producerID] < index[consumer.info.ID] {
				for _, hook := range p.hooks {
					err = hook.OnDependency(&producer.info, &consumer.info)
					if err != nil {
						return errors.Wrap(err, "unable to apply pipeline option")
					}
				}
				continue
			}

			for _, h := range shared(consumer.inputs, producer.outputs) {
				w := DependencyOrderWarning{
					Producer:     producer.info.ID,
					ProducerName: producer.info.Name,
					Consumer:     consumer.info.ID,
					ConsumerName: consumer.info.Name,
					Resource:     h,
				}
				if _, ok := previous[w]; !ok {
					p.logger.Warn("dependency order", "warning", w.String())
				}
				warnings = append(warnings, w)
			}
		}
	}
	p.warnings = warnings

	return nil
}

func shared(a, b []registry.Handle) []registry.Handle {
	var out []registry.Handle
	for _, x := range a {
		for _, y := range b {
			if x == y {
				out = append(out, x)
				break
			}
		}
	}

	return out
}

// Warnings returns the current dependency order warnings.
func (p *Pipeline) Warnings() []DependencyOrderWarning {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]DependencyOrderWarning(nil), p.warnings...)
}

// SuggestedOrder returns the pass order that satisfies every dependency,
// staying as close as possible to the insertion order. It fails when the
// passes depend on each other in a cycle.
func (p *Pipeline) SuggestedOrder() ([]model.PassID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := newFeature()
	index := make(map[model.PassID]int, len(p.passes))
	for i, ps := range p.passes {
		index[ps.info.ID] = i
		err := f.addPass(ps.info.ID)
		if err != nil {
			return nil, err
		}
	}
	for _, consumer := range p.passes {
		for _, producer := range p.passes {
			if producer != consumer && len(shared(consumer.inputs, producer.outputs)) > 0 {
				err := f.addLink(producer.info.ID, consumer.info.ID)
				if err != nil {
					return nil, err
				}
			}
		}
	}

	return f.order(index)
}

// Pass returns a copy of a pass.
func (p *Pipeline) Pass(id model.PassID) (PassView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ps, _, ok := p.pass(id)
	if !ok {
		return PassView{}, errors.Wrapf(ErrNotFound, "%s", id)
	}

	return ps.view(), nil
}

// Passes returns every pass in execution order.
func (p *Pipeline) Passes() []PassView {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]PassView, 0, len(p.passes))
	for _, ps := range p.passes {
		out = append(out, ps.view())
	}

	return out
}

func (ps *pass) view() PassView {
	return PassView{
		ID:      ps.info.ID,
		Name:    ps.info.Name,
		Items:   append([]model.ItemID(nil), ps.items...),
		Inputs:  append([]registry.Handle(nil), ps.inputs...),
		Outputs: append([]registry.Handle(nil), ps.outputs...),
		Targets: append([]registry.Handle(nil), ps.targets...),
	}
}

// Clear removes every pass and item, releasing the resources they hold.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clear()
}

func (p *Pipeline) clear() {
	for _, ps := range p.passes {
		for _, id := range ps.items {
			p.dropItem(p.items[id])
		}
		p.releaseAll(ps.inputs)
		p.releaseAll(ps.outputs)
		p.releaseAll(ps.targets)
	}
	p.passes = nil
	p.warnings = nil
}

// Close clears the pipeline and finishes every pipeline option.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, hook := range p.hooks {
		err := hook.Finish()
		if err != nil {
			return errors.Wrap(err, "unable to finish pipeline option")
		}
	}
	p.clear()

	return nil
}
