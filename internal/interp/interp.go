// Package interp executes a single shader invocation over the WGSL syntax
// tree, one statement at a time.
//
// A Machine reports every statement it is about to execute to a Hook. The
// hook can inspect the call stack at that instant and stop the run by
// returning ErrHalt. Runs are deterministic: the same configuration always
// visits the same sequence of statements, which lets a caller reach any
// point of an invocation by re-running it from the start.
package interp

import (
	"context"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/wgsl"
	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/pipeline/model"
	"github.com/askiada/go-shaderpipe/pkg/registry"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

const (
	DefaultMaxStackDepth = 64
	DefaultMaxSteps      = 1 << 20
)

// Location is a position in shader source.
type Location struct {
	Function string `json:"function"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// Variable is a named value captured from a scope.
type Variable struct {
	Name  string      `json:"name"`
	Value value.Value `json:"value"`
}

// Frame is one level of the call stack.
type Frame struct {
	Function string
	// Location is the statement the frame is executing.
	Location Location
	// CallSite is the statement that called the function, zero for the entry point.
	CallSite Location
	Locals   []Variable
}

// Step describes the statement about to execute.
type Step struct {
	// Count is the number of statements reached so far, this one included.
	Count    int
	Location Location
	// Depth is the number of active frames.
	Depth int
}

// Hook observes execution. A non nil error stops the run and is returned by Run.
type Hook func(m *Machine, step Step) error

// Resources resolves bound resource handles.
type Resources interface {
	Get(h registry.Handle) (registry.View, error)
}

// Inputs are the entry point arguments of the invocation.
type Inputs struct {
	// Builtins are keyed by builtin name: position, vertex_index, global_invocation_id...
	Builtins map[string]value.Value
	// Locations are the inter-stage inputs keyed by @location.
	Locations map[int]value.Value
}

// Config describes one invocation.
type Config struct {
	Module *wgsl.Module
	Entry  string
	Inputs Inputs
	// Uniforms resolves globals by name. Struct globals also look up "global.field"
	// and "field" for each member.
	Uniforms  map[string]value.Value
	Bindings  map[model.Slot]registry.Handle
	Resources Resources

	MaxStackDepth int
	MaxSteps      int
	Hook          Hook
}

// Result is the outcome of a completed invocation.
type Result struct {
	Value     value.Value
	Discarded bool
	Steps     int
}

// Machine runs one invocation.
type Machine struct {
	cfg     Config
	ctx     context.Context
	structs map[string]*wgsl.StructDecl
	aliases map[string]wgsl.Type
	funcs   map[string]*wgsl.FunctionDecl
	globals *scope
	frames  []*frame
	steps   int
	// quiet suppresses hooks and step counting while evaluating watch expressions.
	quiet bool
}

type binding struct {
	name string
	val  *value.Value
}

type scope struct {
	vars   []binding
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent}
}

func (s *scope) lookup(name string) *value.Value {
	for cur := s; cur != nil; cur = cur.parent {
		for i := len(cur.vars) - 1; i >= 0; i-- {
			if cur.vars[i].name == name {
				return cur.vars[i].val
			}
		}
	}

	return nil
}

func (s *scope) declare(name string, v value.Value) *value.Value {
	ptr := &v
	s.vars = append(s.vars, binding{name: name, val: ptr})

	return ptr
}

type frame struct {
	fn     *wgsl.FunctionDecl
	root   *scope
	scope  *scope
	loc    Location
	call   Location
	ret    *value.Type
	result value.Value
}

// New prepares a machine for cfg.
func New(cfg Config) (*Machine, error) {
	if cfg.Module == nil {
		return nil, errors.Wrap(ErrNoEntryPoint, "no module")
	}
	if cfg.MaxStackDepth <= 0 {
		cfg.MaxStackDepth = DefaultMaxStackDepth
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}

	m := &Machine{
		cfg:     cfg,
		structs: make(map[string]*wgsl.StructDecl, len(cfg.Module.Structs)),
		aliases: make(map[string]wgsl.Type, len(cfg.Module.Aliases)),
		funcs:   make(map[string]*wgsl.FunctionDecl, len(cfg.Module.Functions)),
	}
	for _, s := range cfg.Module.Structs {
		m.structs[s.Name] = s
	}
	for _, a := range cfg.Module.Aliases {
		m.aliases[a.Name] = a.Type
	}
	for _, f := range cfg.Module.Functions {
		m.funcs[f.Name] = f
	}

	if _, ok := m.funcs[cfg.Entry]; !ok {
		return nil, errors.Wrapf(ErrNoEntryPoint, "function %q", cfg.Entry)
	}

	return m, nil
}

// Run executes the invocation from the start. The machine can be run again,
// every run starts from a fresh state.
func (m *Machine) Run(ctx context.Context) (Result, error) {
	m.ctx = ctx
	m.frames = nil
	m.steps = 0
	m.quiet = false

	err := m.initGlobals()
	if err != nil {
		return Result{}, err
	}

	entry := m.funcs[m.cfg.Entry]
	args, err := m.entryArgs(entry)
	if err != nil {
		return Result{}, err
	}

	res := Result{}
	out, fl, err := m.call(entry, args, Location{})
	res.Steps = m.steps
	if err != nil {
		return res, err
	}
	res.Value = out
	res.Discarded = fl == flowDiscard

	return res, nil
}

// Depth returns the number of active frames.
func (m *Machine) Depth() int {
	return len(m.frames)
}

// Stack materialises the call stack, innermost frame first. Values are copies.
func (m *Machine) Stack() []Frame {
	out := make([]Frame, 0, len(m.frames))
	for i := len(m.frames) - 1; i >= 0; i-- {
		fr := m.frames[i]
		out = append(out, Frame{
			Function: fr.fn.Name,
			Location: fr.loc,
			CallSite: fr.call,
			Locals:   visible(fr.scope, fr.root.parent),
		})
	}

	return out
}

// Globals returns the module scope values in declaration order.
func (m *Machine) Globals() []Variable {
	if m.globals == nil {
		return nil
	}

	return visible(m.globals, nil)
}

// visible lists the variables reachable from s, stopping at stop. Shadowed
// names report their innermost value at the position of the outer declaration.
func visible(s, stop *scope) []Variable {
	var chain []*scope
	for cur := s; cur != nil && cur != stop; cur = cur.parent {
		chain = append(chain, cur)
	}

	var vars []Variable
	index := map[string]int{}
	for i := len(chain) - 1; i >= 0; i-- {
		for _, b := range chain[i].vars {
			v := Variable{Name: b.name, Value: b.val.Clone()}
			if at, ok := index[b.name]; ok {
				vars[at] = v
				continue
			}
			index[b.name] = len(vars)
			vars = append(vars, v)
		}
	}

	return vars
}

// Evaluate evaluates a WGSL expression in the scope of the innermost frame.
// Hooks are not invoked while evaluating.
func (m *Machine) Evaluate(expr string) (value.Value, error) {
	ast, err := naga.Parse("fn watch_expression() { return " + expr + "; }")
	if err != nil {
		return value.Value{}, errors.Wrapf(err, "parse %q", expr)
	}
	if len(ast.Functions) != 1 || len(ast.Functions[0].Body.Statements) != 1 {
		return value.Value{}, errors.Wrapf(ErrUnsupported, "expression %q", expr)
	}
	ret, ok := ast.Functions[0].Body.Statements[0].(*wgsl.ReturnStmt)
	if !ok || ret.Value == nil {
		return value.Value{}, errors.Wrapf(ErrUnsupported, "expression %q", expr)
	}

	if m.ctx == nil {
		m.ctx = context.Background()
	}
	if m.globals == nil {
		err = m.initGlobals()
		if err != nil {
			return value.Value{}, err
		}
	}

	quiet := m.quiet
	m.quiet = true
	defer func() { m.quiet = quiet }()

	v, err := m.eval(ret.Value)
	if err != nil {
		return value.Value{}, err
	}

	return concretize(v), nil
}

func (m *Machine) current() *scope {
	if len(m.frames) == 0 {
		return m.globals
	}

	return m.frames[len(m.frames)-1].scope
}

// step reports the statement at span to the hook.
func (m *Machine) step(span wgsl.Span) error {
	if m.quiet {
		return nil
	}

	fr := m.frames[len(m.frames)-1]
	fr.loc = Location{Function: fr.fn.Name, Line: span.Start.Line, Column: span.Start.Column}

	err := m.ctx.Err()
	if err != nil {
		return errors.Wrap(err, "invocation cancelled")
	}

	m.steps++
	if m.steps > m.cfg.MaxSteps {
		return errors.Wrapf(ErrStepLimit, "%d statements at %s line %d", m.cfg.MaxSteps, fr.fn.Name, fr.loc.Line)
	}

	if m.cfg.Hook == nil {
		return nil
	}

	return m.cfg.Hook(m, Step{Count: m.steps, Location: fr.loc, Depth: len(m.frames)})
}

func (m *Machine) call(fn *wgsl.FunctionDecl, args []value.Value, site Location) (value.Value, flow, error) {
	if len(m.frames) >= m.cfg.MaxStackDepth {
		return value.Value{}, flowNormal, errors.Wrapf(ErrStackOverflow,
			"calling %s at line %d with %d active frames", fn.Name, site.Line, len(m.frames))
	}
	if len(args) != len(fn.Params) {
		return value.Value{}, flowNormal, errors.Wrapf(ErrType,
			"%s expects %d arguments, got %d", fn.Name, len(fn.Params), len(args))
	}

	root := newScope(m.globals)
	fr := &frame{
		fn:    fn,
		root:  root,
		scope: root,
		loc:   Location{Function: fn.Name, Line: fn.Span.Start.Line, Column: fn.Span.Start.Column},
		call:  site,
	}
	for i, p := range fn.Params {
		t, err := m.resolveType(p.Type)
		if err != nil {
			return value.Value{}, flowNormal, err
		}
		arg, err := coerce(args[i], t)
		if err != nil {
			return value.Value{}, flowNormal, errors.Wrapf(err, "argument %s of %s", p.Name, fn.Name)
		}
		root.declare(p.Name, arg)
	}
	if fn.ReturnType != nil {
		t, err := m.resolveType(fn.ReturnType)
		if err != nil {
			return value.Value{}, flowNormal, err
		}
		fr.ret = &t
	}

	m.frames = append(m.frames, fr)
	defer func() { m.frames = m.frames[:len(m.frames)-1] }()

	fl, err := m.execBlock(fn.Body, root)
	if err != nil {
		return value.Value{}, flowNormal, err
	}
	if fl == flowDiscard {
		return value.Value{}, flowDiscard, nil
	}

	return fr.result, flowNormal, nil
}

func (m *Machine) initGlobals() error {
	m.globals = newScope(nil)

	for _, c := range m.cfg.Module.Constants {
		v, err := m.declValue(c.Type, c.Init)
		if err != nil {
			return errors.Wrapf(err, "constant %s", c.Name)
		}
		m.globals.declare(c.Name, v)
	}

	for _, g := range m.cfg.Module.GlobalVars {
		v, err := m.globalValue(g)
		if err != nil {
			return errors.Wrapf(err, "global %s", g.Name)
		}
		m.globals.declare(g.Name, v)
	}

	return nil
}

func (m *Machine) globalValue(g *wgsl.VarDecl) (value.Value, error) {
	if g.Type == nil {
		return m.declValue(nil, g.Init)
	}

	t, err := m.resolveType(g.Type)
	if err != nil {
		return value.Value{}, err
	}

	slot, bound := slotOf(g.Attributes)
	var handle registry.Handle
	if bound {
		handle = m.cfg.Bindings[slot]
	}

	if t.Kind == value.KindHandle {
		return value.NewHandle(t.Name, uint64(handle)), nil
	}

	if u, ok := m.cfg.Uniforms[g.Name]; ok {
		return coerce(u, t)
	}

	if t.Kind == value.KindStruct {
		out := value.Zero(t)
		found := false
		for i, f := range t.Fields {
			u, ok := m.cfg.Uniforms[g.Name+"."+f.Name]
			if !ok {
				u, ok = m.cfg.Uniforms[f.Name]
			}
			if !ok {
				continue
			}
			fv, err := coerce(u, f.Type)
			if err != nil {
				return value.Value{}, errors.Wrapf(err, "field %s", f.Name)
			}
			out.Elems[i] = fv
			found = true
		}
		if found {
			return out, nil
		}
	}

	if handle != 0 && m.cfg.Resources != nil {
		view, err := m.cfg.Resources.Get(handle)
		if err == nil && view.Descriptor.Value != nil {
			return coerce(*view.Descriptor.Value, t)
		}
	}

	if g.Init != nil {
		return m.declValue(g.Type, g.Init)
	}

	return value.Zero(t), nil
}

func (m *Machine) entryArgs(fn *wgsl.FunctionDecl) ([]value.Value, error) {
	args := make([]value.Value, 0, len(fn.Params))
	for _, p := range fn.Params {
		t, err := m.resolveType(p.Type)
		if err != nil {
			return nil, err
		}
		if t.Kind != value.KindStruct {
			args = append(args, m.input(p.Attributes, t))
			continue
		}

		v := value.Zero(t)
		decl := m.structs[t.Name]
		for i, member := range decl.Members {
			v.Elems[i] = m.input(member.Attributes, t.Fields[i].Type)
		}
		args = append(args, v)
	}

	return args, nil
}

func (m *Machine) input(attrs []wgsl.Attribute, t value.Type) value.Value {
	for _, a := range attrs {
		if len(a.Args) != 1 {
			continue
		}
		switch a.Name {
		case "builtin":
			id, ok := a.Args[0].(*wgsl.Ident)
			if !ok {
				continue
			}
			if v, ok := m.cfg.Inputs.Builtins[id.Name]; ok {
				if out, err := coerce(v, t); err == nil {
					return out
				}
			}
			if id.Name == "front_facing" {
				return value.NewBool(true)
			}
		case "location":
			n, ok := intAttr(a)
			if !ok {
				continue
			}
			if v, ok := m.cfg.Inputs.Locations[n]; ok {
				if out, err := coerce(v, t); err == nil {
					return out
				}
			}
		}
	}

	return value.Zero(t)
}
