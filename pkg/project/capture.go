package project

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/pipeline"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/registry"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

// Capture describes the current content of pipe. Source paths under dir are
// written relative to it. Only resources referenced by a pass or an item are
// captured.
func Capture(pipe *pipeline.Pipeline, dir string) (*Project, error) {
	reg := pipe.Registry()
	passes := pipe.Passes()

	items := make(map[model.ItemID]pipeline.ItemView)
	targets := make(map[registry.Handle]bool)
	var referenced []registry.Handle
	for _, ps := range passes {
		for _, h := range ps.Targets {
			targets[h] = true
		}
		referenced = append(referenced, ps.Inputs...)
		referenced = append(referenced, ps.Outputs...)
		for _, id := range ps.Items {
			view, err := pipe.Item(id)
			if err != nil {
				return nil, errors.Wrapf(err, "pass %q", ps.Name)
			}
			items[id] = view
			for slot, h := range view.Bindings {
				if !slices.Contains(view.Owned, slot) {
					referenced = append(referenced, h)
				}
			}
		}
	}
	slices.Sort(referenced)
	referenced = slices.Compact(referenced)

	views := make(map[registry.Handle]registry.View, len(referenced))
	names := make(map[registry.Handle]string, len(referenced))
	taken := make(map[string]bool, len(referenced))
	for _, h := range referenced {
		view, err := reg.Get(h)
		if err != nil {
			return nil, errors.Wrap(err, "unable to capture resource")
		}
		views[h] = view
		name := view.Descriptor.Name
		if name == "" || taken[name] {
			name = fmt.Sprintf("resource-%d", h)
		}
		taken[name] = true
		names[h] = name
	}

	p := &Project{Dir: dir}
	for _, h := range referenced {
		if targets[h] {
			continue
		}
		res, err := resource(views[h])
		if err != nil {
			return nil, err
		}
		res.Name = names[h]
		p.Resources = append(p.Resources, res)
	}

	for _, ps := range passes {
		out := Pass{Name: ps.Name}
		for _, h := range ps.Inputs {
			out.Inputs = append(out.Inputs, names[h])
		}
		for _, h := range ps.Outputs {
			if !targets[h] {
				out.Outputs = append(out.Outputs, names[h])
			}
		}
		for _, h := range ps.Targets {
			desc := views[h].Descriptor
			desc.Name = names[h]
			out.Targets = append(out.Targets, desc)
		}
		for _, id := range ps.Items {
			it, err := captureItem(reg, items[id], names, dir)
			if err != nil {
				return nil, errors.Wrapf(err, "item %q", items[id].Name)
			}
			out.Items = append(out.Items, it)
		}
		p.Passes = append(p.Passes, out)
	}

	return p, nil
}

func captureItem(reg *registry.Registry, view pipeline.ItemView, names map[registry.Handle]string, dir string) (Item, error) {
	it := Item{
		Name:   view.Name,
		Kind:   view.Kind,
		Stages: make(map[string]Source, len(view.Sources)),
		State:  view.State,
	}

	for stage, src := range view.Sources {
		out := Source{Entry: src.Entry, Text: src.Text}
		if src.Path != "" {
			out = Source{Entry: src.Entry, Path: relative(dir, src.Path)}
		}
		it.Stages[stage.String()] = out
	}

	slots := make([]model.Slot, 0, len(view.Bindings))
	for slot := range view.Bindings {
		slots = append(slots, slot)
	}
	slices.SortFunc(slots, func(a, b model.Slot) int {
		if a.Group != b.Group {
			return int(a.Group) - int(b.Group)
		}
		return int(a.Binding) - int(b.Binding)
	})
	for _, slot := range slots {
		h := view.Bindings[slot]
		if !slices.Contains(view.Owned, slot) {
			it.Bindings = append(it.Bindings, Binding{Slot: slot, Resource: names[h]})
			continue
		}
		rv, err := reg.Get(h)
		if err != nil {
			return Item{}, errors.Wrapf(err, "binding %s", slot)
		}
		res, err := resource(rv)
		if err != nil {
			return Item{}, err
		}
		it.Bindings = append(it.Bindings, Binding{Slot: slot, Owned: &res})
	}

	if len(view.Uniforms) > 0 {
		it.Uniforms = make(map[string]Uniform, len(view.Uniforms))
	}
	for name, src := range view.Uniforms {
		if src.Value == nil {
			it.Uniforms[name] = Uniform{Variable: src.Variable}
			continue
		}
		lit, err := value.ToLiteral(*src.Value)
		if err != nil {
			return Item{}, errors.Wrapf(err, "uniform %q", name)
		}
		it.Uniforms[name] = Uniform{Value: &lit}
	}

	return it, nil
}

func resource(view registry.View) (Resource, error) {
	res := Resource{Kind: view.Kind.String(), Descriptor: view.Descriptor}
	if view.Descriptor.Value != nil {
		lit, err := value.ToLiteral(*view.Descriptor.Value)
		if err != nil {
			return Resource{}, errors.Wrapf(err, "resource %q", view.Descriptor.Name)
		}
		res.Value = &lit
		res.Descriptor.Value = nil
	}

	return res, nil
}

func relative(dir, path string) string {
	if dir == "" {
		return path
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}

	return rel
}
