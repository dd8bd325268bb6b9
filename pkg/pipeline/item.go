package pipeline

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/registry"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

// UniformSource feeds a named uniform, either from a system variable or from
// a constant.
type UniformSource struct {
	Variable string
	Value    *value.Value
}

type binding struct {
	handle registry.Handle
	// owned is set for resources created on behalf of the item.
	owned bool
}

type item struct {
	info     model.ItemInfo
	sources  map[model.Stage]model.Source
	revision uint64
	status   model.Status
	// programs is the last successful build, kept across failed builds.
	programs map[model.Stage]model.Program
	bindings map[model.Slot]binding
	uniforms map[string]UniformSource
	state    model.RenderState
}

// ItemView is a read-only copy of an item.
type ItemView struct {
	ID       model.ItemID
	Name     string
	Pass     model.PassID
	Kind     model.ItemKind
	Sources  map[model.Stage]model.Source
	Status   model.Status
	Programs map[model.Stage]model.Program
	Bindings map[model.Slot]registry.Handle
	// Owned lists the slots bound to resources the item created.
	Owned    []model.Slot
	Uniforms map[string]UniformSource
	State    model.RenderState
}

// Program returns the last good program of stage.
func (v ItemView) Program(stage model.Stage) (model.Program, bool) {
	prog, ok := v.Programs[stage]
	return prog, ok
}

func (it *item) view() ItemView {
	out := ItemView{
		ID:       it.info.ID,
		Name:     it.info.Name,
		Pass:     it.info.Pass,
		Kind:     it.info.Kind,
		Sources:  make(map[model.Stage]model.Source, len(it.sources)),
		Status:   model.Status{State: it.status.State, Diagnostics: append([]model.Diagnostic(nil), it.status.Diagnostics...)},
		Bindings: make(map[model.Slot]registry.Handle, len(it.bindings)),
		Uniforms: make(map[string]UniformSource, len(it.uniforms)),
		State:    it.state,
	}
	for stage, src := range it.sources {
		out.Sources[stage] = src
	}
	if it.programs != nil {
		out.Programs = make(map[model.Stage]model.Program, len(it.programs))
		for stage, prog := range it.programs {
			out.Programs[stage] = prog
		}
	}
	for slot, b := range it.bindings {
		out.Bindings[slot] = b.handle
		if b.owned {
			out.Owned = append(out.Owned, slot)
		}
	}
	sortSlots(out.Owned)
	for name, src := range it.uniforms {
		if src.Value != nil {
			v := src.Value.Clone()
			src.Value = &v
		}
		out.Uniforms[name] = src
	}

	return out
}

func sortSlots(slots []model.Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Group != slots[j].Group {
			return slots[i].Group < slots[j].Group
		}
		return slots[i].Binding < slots[j].Binding
	})
}

func sortedStages[T any](m map[model.Stage]T) []model.Stage {
	stages := make([]model.Stage, 0, len(m))
	for s := range m {
		stages = append(stages, s)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i] < stages[j] })

	return stages
}

func (p *Pipeline) itemInfo(it *item) *model.ItemInfo {
	info := it.info
	info.Status = it.status.State

	return &info
}

// AddItem appends an item to a pass. The item starts unbuilt.
func (p *Pipeline) AddItem(passID model.PassID, name string, kind model.ItemKind, sources map[model.Stage]model.Source) (model.ItemID, error) {
	if name == "" {
		return 0, errors.Wrap(ErrEmptyName, "item")
	}
	if _, ok := kindName(kind); !ok {
		return 0, errors.Wrapf(ErrInvalidReference, "item kind %d", kind)
	}
	for _, stage := range kind.RequiredStages() {
		if _, ok := sources[stage]; !ok {
			return 0, errors.Wrapf(ErrMissingStage, "%s item %q needs a %s stage", kind, name, stage)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrClosed
	}

	ps, _, ok := p.pass(passID)
	if !ok {
		return 0, errors.Wrapf(ErrInvalidReference, "%s", passID)
	}

	p.nextItem++
	it := &item{
		info:     model.ItemInfo{ID: p.nextItem, Name: name, Pass: passID, Kind: kind},
		sources:  make(map[model.Stage]model.Source, len(sources)),
		bindings: make(map[model.Slot]binding),
		uniforms: make(map[string]UniformSource),
	}
	for stage, src := range sources {
		it.sources[stage] = src
	}
	p.items[it.info.ID] = it
	ps.items = append(ps.items, it.info.ID)

	for _, hook := range p.hooks {
		err := hook.PrepareItem(&ps.info, p.itemInfo(it))
		if err != nil {
			return it.info.ID, errors.Wrap(err, "unable to apply pipeline option")
		}
	}

	p.logger.Debug("item added", "item", it.info.Key(), "pass", ps.info.Key())

	return it.info.ID, nil
}

func kindName(kind model.ItemKind) (string, bool) {
	name := kind.String()
	return name, name != "unknown"
}

func (p *Pipeline) item(id model.ItemID) (*item, error) {
	it, ok := p.items[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%s", id)
	}

	return it, nil
}

// Item returns a copy of an item.
func (p *Pipeline) Item(id model.ItemID) (ItemView, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	it, err := p.item(id)
	if err != nil {
		return ItemView{}, err
	}

	return it.view(), nil
}

// Items returns every item in execution order.
func (p *Pipeline) Items() []ItemView {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []ItemView
	for _, ps := range p.passes {
		for _, id := range ps.items {
			out = append(out, p.items[id].view())
		}
	}

	return out
}

// Remove deletes an item and releases every resource it binds. Resources the
// item created are freed, shared ones lose a reference.
func (p *Pipeline) Remove(id model.ItemID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	it, err := p.item(id)
	if err != nil {
		return err
	}

	ps, _, ok := p.pass(it.info.Pass)
	if ok {
		for i, itemID := range ps.items {
			if itemID == id {
				ps.items = append(ps.items[:i], ps.items[i+1:]...)
				break
			}
		}
	}
	p.dropItem(it)

	return nil
}

func (p *Pipeline) dropItem(it *item) {
	if it == nil {
		return
	}
	for _, b := range it.bindings {
		err := p.registry.Release(b.handle)
		if err != nil {
			p.logger.Warn("unable to release binding", "item", it.info.Key(), "handle", b.handle, "error", err)
		}
	}
	delete(p.items, it.info.ID)
}

// UpdateSource replaces the text of one stage and marks the item unbuilt. The
// last good build keeps running until the next successful build.
func (p *Pipeline) UpdateSource(id model.ItemID, stage model.Stage, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	it, err := p.item(id)
	if err != nil {
		return err
	}

	src := it.sources[stage]
	src.Text = text
	it.sources[stage] = src
	it.revision++
	it.status = model.Status{State: model.Unbuilt}

	return nil
}

// Bind points slot at a shared resource. The item holds a reference until the
// slot is rebound, unbound or the item removed.
func (p *Pipeline) Bind(id model.ItemID, slot model.Slot, h registry.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	it, ok := p.items[id]
	if !ok {
		return errors.Wrapf(ErrInvalidReference, "%s", id)
	}
	if !p.registry.Exists(h) {
		return errors.Wrapf(ErrInvalidReference, "resource %d", h)
	}

	err := p.registry.Retain(h)
	if err != nil {
		return errors.Wrapf(err, "unable to retain resource %d", h)
	}
	p.setBinding(it, slot, binding{handle: h})

	return nil
}

// CreateItemResource creates a resource owned by the item and binds it to slot.
func (p *Pipeline) CreateItemResource(id model.ItemID, slot model.Slot, kind registry.Kind, desc registry.Descriptor) (registry.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	it, ok := p.items[id]
	if !ok {
		return 0, errors.Wrapf(ErrInvalidReference, "%s", id)
	}

	h, err := p.registry.Create(kind, desc)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to create resource for %s", it.info.Key())
	}
	p.setBinding(it, slot, binding{handle: h, owned: true})

	return h, nil
}

func (p *Pipeline) setBinding(it *item, slot model.Slot, b binding) {
	if old, ok := it.bindings[slot]; ok {
		err := p.registry.Release(old.handle)
		if err != nil {
			p.logger.Warn("unable to release binding", "item", it.info.Key(), "slot", slot.String(), "error", err)
		}
	}
	it.bindings[slot] = b
}

// Unbind clears slot and releases the resource it pointed at.
func (p *Pipeline) Unbind(id model.ItemID, slot model.Slot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	it, err := p.item(id)
	if err != nil {
		return err
	}

	b, ok := it.bindings[slot]
	if !ok {
		return errors.Wrapf(ErrNotFound, "%s of %s", slot, it.info.Key())
	}
	delete(it.bindings, slot)

	err = p.registry.Release(b.handle)
	if err != nil {
		return errors.Wrap(err, "unable to release binding")
	}

	return nil
}

// SetUniform feeds the uniform name from src on every frame.
func (p *Pipeline) SetUniform(id model.ItemID, name string, src UniformSource) error {
	if name == "" {
		return errors.Wrap(ErrEmptyName, "uniform")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	it, err := p.item(id)
	if err != nil {
		return err
	}
	if src.Value != nil {
		v := src.Value.Clone()
		src.Value = &v
	}
	it.uniforms[name] = src

	return nil
}

// RemoveUniform stops feeding the uniform name.
func (p *Pipeline) RemoveUniform(id model.ItemID, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	it, err := p.item(id)
	if err != nil {
		return err
	}
	if _, ok := it.uniforms[name]; !ok {
		return errors.Wrapf(ErrNotFound, "uniform %q of %s", name, it.info.Key())
	}
	delete(it.uniforms, name)

	return nil
}

// SetRenderState replaces the fixed-function state of an item.
func (p *Pipeline) SetRenderState(id model.ItemID, state model.RenderState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	it, err := p.item(id)
	if err != nil {
		return err
	}
	it.state = state

	return nil
}
