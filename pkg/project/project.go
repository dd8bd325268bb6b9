// Package project reads and writes pipeline descriptions as YAML documents.
package project

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/askiada/go-shaderpipe/pkg/pipeline"
	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/registry"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

var (
	ErrDuplicateName   = errors.New("duplicate name")
	ErrUnknownResource = errors.New("unknown resource")
	ErrInvalidUniform  = errors.New("uniform needs exactly one of variable or value")
	ErrMissingSource   = errors.New("stage needs a path or a text")
	ErrInvalidBinding  = errors.New("binding needs exactly one of resource or owned")
)

// Project describes the resources and passes of a pipeline.
type Project struct {
	Resources []Resource `yaml:"resources,omitempty"`
	Passes    []Pass     `yaml:"passes"`

	// Dir resolves relative source paths. Load sets it to the directory of the file.
	Dir string `yaml:"-"`
}

// Resource is a registry resource referenced by name.
type Resource struct {
	Kind                string `yaml:"kind"`
	registry.Descriptor `yaml:",inline"`
	// Value is the typed content of a uniform or storage buffer.
	Value *value.Literal `yaml:"value,omitempty"`
}

// Pass lists the items of one pass. Inputs and Outputs name resources,
// Targets are render targets created for the pass.
type Pass struct {
	Name    string                `yaml:"name"`
	Inputs  []string              `yaml:"inputs,omitempty,flow"`
	Outputs []string              `yaml:"outputs,omitempty,flow"`
	Targets []registry.Descriptor `yaml:"targets,omitempty"`
	Items   []Item                `yaml:"items"`
}

// Item is a pipeline item. Stages are keyed by stage name.
type Item struct {
	Name     string             `yaml:"name"`
	Kind     model.ItemKind     `yaml:"kind"`
	Stages   map[string]Source  `yaml:"stages"`
	Bindings []Binding          `yaml:"bindings,omitempty"`
	Uniforms map[string]Uniform `yaml:"uniforms,omitempty"`
	State    model.RenderState  `yaml:"state,omitempty"`
}

// Source is the shader of one stage, read from Path or given inline as Text.
type Source struct {
	Path  string `yaml:"path,omitempty"`
	Text  string `yaml:"text,omitempty"`
	Entry string `yaml:"entry,omitempty"`
}

// Binding points a slot at a shared resource, or at a resource Owned by the item.
type Binding struct {
	model.Slot `yaml:",inline"`
	Resource   string    `yaml:"resource,omitempty"`
	Owned      *Resource `yaml:"owned,omitempty"`
}

// Uniform is fed from a system variable or a constant value.
type Uniform struct {
	Variable string         `yaml:"variable,omitempty"`
	Value    *value.Literal `yaml:"value,omitempty"`
}

// Load reads the project at path.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read project %s", path)
	}

	p, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load project %s", path)
	}
	p.Dir = filepath.Dir(path)

	return p, nil
}

// Decode parses a project document. Unknown keys are rejected.
func Decode(data []byte) (*Project, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	p := &Project{}
	err := dec.Decode(p)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode project")
	}

	return p, nil
}

// Save writes p to path.
func (p *Project) Save(path string) error {
	data, err := p.Encode()
	if err != nil {
		return err
	}

	return errors.Wrapf(os.WriteFile(path, data, 0o644), "unable to write project %s", path)
}

// Encode renders p as YAML.
func (p *Project) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	err := enc.Encode(p)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode project")
	}
	err = enc.Close()
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode project")
	}

	return buf.Bytes(), nil
}

// Applied maps project names to the identifiers created by Apply. Items
// are keyed by pass name and item name.
type Applied struct {
	Passes    map[string]model.PassID
	Items     map[ItemKey]model.ItemID
	Resources map[string]registry.Handle
	// Sources maps each source read from disk to the stages it feeds.
	Sources map[string][]StageRef

	created []registry.Handle
}

// ItemKey names an item within its pass.
type ItemKey struct {
	Pass string
	Item string
}

// StageRef is one stage of one item.
type StageRef struct {
	Item  model.ItemID
	Stage model.Stage
}

// Apply creates the resources, passes and items of p in pipe. Shared
// resources keep the reference taken at creation until Release is called.
// On error, what was created so far stays in the pipeline.
func (p *Project) Apply(pipe *pipeline.Pipeline) (*Applied, error) {
	reg := pipe.Registry()
	out := &Applied{
		Passes:    make(map[string]model.PassID),
		Items:     make(map[ItemKey]model.ItemID),
		Resources: make(map[string]registry.Handle),
		Sources:   make(map[string][]StageRef),
	}

	for _, res := range p.Resources {
		if _, ok := out.Resources[res.Name]; ok {
			return out, errors.Wrapf(ErrDuplicateName, "resource %q", res.Name)
		}
		kind, desc, err := res.descriptor()
		if err != nil {
			return out, err
		}
		h, err := reg.Create(kind, desc)
		if err != nil {
			return out, errors.Wrapf(err, "unable to create resource %q", res.Name)
		}
		out.Resources[res.Name] = h
		out.created = append(out.created, h)
	}

	for _, ps := range p.Passes {
		err := p.applyPass(pipe, ps, out)
		if err != nil {
			return out, errors.Wrapf(err, "pass %q", ps.Name)
		}
	}

	return out, nil
}

func (p *Project) applyPass(pipe *pipeline.Pipeline, ps Pass, out *Applied) error {
	if _, ok := out.Passes[ps.Name]; ok {
		return errors.Wrap(ErrDuplicateName, "pass")
	}
	passID, err := pipe.AddPass(ps.Name)
	if err != nil {
		return err
	}
	out.Passes[ps.Name] = passID

	inputs, err := out.handles(ps.Inputs)
	if err != nil {
		return err
	}
	outputs, err := out.handles(ps.Outputs)
	if err != nil {
		return err
	}
	if len(inputs)+len(outputs) > 0 {
		err = pipe.SetPassIO(passID, inputs, outputs)
		if err != nil {
			return err
		}
	}

	for _, desc := range ps.Targets {
		if _, ok := out.Resources[desc.Name]; ok {
			return errors.Wrapf(ErrDuplicateName, "target %q", desc.Name)
		}
		h, err := pipe.CreatePassTarget(passID, desc)
		if err != nil {
			return err
		}
		out.Resources[desc.Name] = h
	}

	for _, it := range ps.Items {
		err = p.applyItem(pipe, passID, ps.Name, it, out)
		if err != nil {
			return errors.Wrapf(err, "item %q", it.Name)
		}
	}

	return nil
}

func (p *Project) applyItem(pipe *pipeline.Pipeline, passID model.PassID, passName string, it Item, out *Applied) error {
	key := ItemKey{Pass: passName, Item: it.Name}
	if _, ok := out.Items[key]; ok {
		return errors.Wrap(ErrDuplicateName, "item")
	}

	sources := make(map[model.Stage]model.Source, len(it.Stages))
	var read []string
	for name, src := range it.Stages {
		stage, err := model.ParseStage(name)
		if err != nil {
			return err
		}
		text := src.Text
		path := src.Path
		switch {
		case src.Path != "":
			path = p.resolve(src.Path)
			data, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, "unable to read %s source", stage)
			}
			text = string(data)
			read = append(read, name)
		case src.Text == "":
			return errors.Wrapf(ErrMissingSource, "%s", stage)
		}
		sources[stage] = model.Source{Path: path, Text: text, Entry: src.Entry}
	}

	itemID, err := pipe.AddItem(passID, it.Name, it.Kind, sources)
	if err != nil {
		return err
	}
	out.Items[key] = itemID
	for _, name := range read {
		stage, _ := model.ParseStage(name)
		path := sources[stage].Path
		out.Sources[path] = append(out.Sources[path], StageRef{Item: itemID, Stage: stage})
	}

	for _, b := range it.Bindings {
		err = out.bind(pipe, itemID, b)
		if err != nil {
			return errors.Wrapf(err, "binding %s", b.Slot)
		}
	}

	for name, u := range it.Uniforms {
		src, err := u.source()
		if err != nil {
			return errors.Wrapf(err, "uniform %q", name)
		}
		err = pipe.SetUniform(itemID, name, src)
		if err != nil {
			return err
		}
	}

	return pipe.SetRenderState(itemID, it.State)
}

func (a *Applied) bind(pipe *pipeline.Pipeline, itemID model.ItemID, b Binding) error {
	if (b.Owned == nil) == (b.Resource == "") {
		return ErrInvalidBinding
	}
	if b.Owned != nil {
		kind, desc, err := b.Owned.descriptor()
		if err != nil {
			return err
		}
		_, err = pipe.CreateItemResource(itemID, b.Slot, kind, desc)
		return err
	}

	h, ok := a.Resources[b.Resource]
	if !ok {
		return errors.Wrapf(ErrUnknownResource, "%q", b.Resource)
	}

	return pipe.Bind(itemID, b.Slot, h)
}

func (a *Applied) handles(names []string) ([]registry.Handle, error) {
	out := make([]registry.Handle, 0, len(names))
	for _, name := range names {
		h, ok := a.Resources[name]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownResource, "%q", name)
		}
		out = append(out, h)
	}

	return out, nil
}

// Release drops the creation reference of every shared resource. Resources
// nothing else references are freed.
func (a *Applied) Release(reg *registry.Registry) error {
	for _, h := range a.created {
		err := reg.Release(h)
		if err != nil {
			return errors.Wrapf(err, "unable to release resource %d", h)
		}
	}
	a.created = nil

	return nil
}

func (p *Project) resolve(path string) string {
	if filepath.IsAbs(path) || p.Dir == "" {
		return path
	}

	return filepath.Join(p.Dir, path)
}

func (r Resource) descriptor() (registry.Kind, registry.Descriptor, error) {
	kind, err := registry.ParseKind(r.Kind)
	if err != nil {
		return 0, registry.Descriptor{}, errors.Wrapf(err, "resource %q", r.Name)
	}
	desc := r.Descriptor
	if r.Value != nil {
		v, err := value.FromLiteral(*r.Value)
		if err != nil {
			return 0, registry.Descriptor{}, errors.Wrapf(err, "resource %q", r.Name)
		}
		desc.Value = &v
	}

	return kind, desc, nil
}

func (u Uniform) source() (pipeline.UniformSource, error) {
	if (u.Variable == "") == (u.Value == nil) {
		return pipeline.UniformSource{}, ErrInvalidUniform
	}
	if u.Variable != "" {
		return pipeline.UniformSource{Variable: u.Variable}, nil
	}

	v, err := value.FromLiteral(*u.Value)
	if err != nil {
		return pipeline.UniformSource{}, err
	}

	return pipeline.UniformSource{Value: &v}, nil
}
