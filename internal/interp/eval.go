package interp

import (
	"strings"

	"github.com/chewxy/math32"
	"github.com/gogpu/naga/wgsl"
	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/value"
)

func (m *Machine) eval(e wgsl.Expr) (value.Value, error) {
	switch e := e.(type) {
	case *wgsl.Literal:
		return parseLiteral(e)
	case *wgsl.Ident:
		ptr := m.current().lookup(e.Name)
		if ptr == nil {
			return value.Value{}, errors.Wrapf(ErrUndefined, "%s at line %d", e.Name, e.Span.Start.Line)
		}
		return ptr.Clone(), nil
	case *wgsl.BinaryExpr:
		return m.evalBinary(e)
	case *wgsl.UnaryExpr:
		return m.evalUnary(e)
	case *wgsl.CallExpr:
		return m.evalCall(e)
	case *wgsl.ConstructExpr:
		return m.evalConstruct(e)
	case *wgsl.IndexExpr:
		return m.evalIndex(e)
	case *wgsl.MemberExpr:
		base, err := m.eval(e.Expr)
		if err != nil {
			return value.Value{}, err
		}
		return member(base, e.Member)
	case *wgsl.BitcastExpr:
		return m.evalBitcast(e)
	default:
		return value.Value{}, errors.Wrapf(ErrUnsupported, "expression %T", e)
	}
}

func (m *Machine) evalBinary(e *wgsl.BinaryExpr) (value.Value, error) {
	left, err := m.eval(e.Left)
	if err != nil {
		return value.Value{}, err
	}

	if left.Type.Kind == value.KindScalar && (e.Op == wgsl.TokenAmpAmp || e.Op == wgsl.TokenPipePipe) {
		if e.Op == wgsl.TokenAmpAmp && !left.Truth() {
			return value.NewBool(false), nil
		}
		if e.Op == wgsl.TokenPipePipe && left.Truth() {
			return value.NewBool(true), nil
		}
		right, err := m.eval(e.Right)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewBool(right.Truth()), nil
	}

	right, err := m.eval(e.Right)
	if err != nil {
		return value.Value{}, err
	}

	return binary(e.Op, left, right)
}

func (m *Machine) evalUnary(e *wgsl.UnaryExpr) (value.Value, error) {
	switch e.Op {
	case wgsl.TokenAmpersand:
		r, err := m.ref(e.Operand)
		if err != nil {
			return value.Value{}, err
		}
		if r.comps != nil {
			return value.Value{}, errors.Wrap(ErrUnsupported, "pointer to a vector component")
		}
		return value.NewPointer(r.base), nil
	case wgsl.TokenStar:
		p, err := m.eval(e.Operand)
		if err != nil {
			return value.Value{}, err
		}
		if p.Type.Kind != value.KindPointer || p.Ref == nil {
			return value.Value{}, errors.Wrapf(ErrType, "dereference of %s", p.Type)
		}
		return p.Ref.Clone(), nil
	}

	v, err := m.eval(e.Operand)
	if err != nil {
		return value.Value{}, err
	}

	return unary(e.Op, v)
}

func (m *Machine) evalIndex(e *wgsl.IndexExpr) (value.Value, error) {
	base, err := m.eval(e.Expr)
	if err != nil {
		return value.Value{}, err
	}
	idx, err := m.eval(e.Index)
	if err != nil {
		return value.Value{}, err
	}

	return index(deref(base), int(idx.Int()))
}

func (m *Machine) evalBitcast(e *wgsl.BitcastExpr) (value.Value, error) {
	t, err := m.resolveType(e.Type)
	if err != nil {
		return value.Value{}, err
	}
	v, err := m.eval(e.Expr)
	if err != nil {
		return value.Value{}, err
	}
	v = concretize(v)
	if v.Type.Components() != t.Components() {
		return value.Value{}, errors.Wrapf(ErrType, "bitcast %s to %s", v.Type, t)
	}

	out := value.Zero(t)
	for i, c := range v.Data {
		var bits uint32
		switch v.Type.Scalar {
		case value.F32:
			bits = math32.Float32bits(float32(c))
		case value.I32:
			bits = uint32(int32(c))
		default:
			bits = uint32(c)
		}
		switch t.Scalar {
		case value.F32:
			out.Data[i] = float64(math32.Float32frombits(bits))
		case value.I32:
			out.Data[i] = float64(int32(bits))
		default:
			out.Data[i] = float64(bits)
		}
	}

	return out, nil
}

func (m *Machine) evalArgs(args []wgsl.Expr) ([]value.Value, error) {
	out := make([]value.Value, len(args))
	for i, a := range args {
		v, err := m.eval(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}

	return out, nil
}

func (m *Machine) evalCall(e *wgsl.CallExpr) (value.Value, error) {
	name := e.Func.Name
	args, err := m.evalArgs(e.Args)
	if err != nil {
		return value.Value{}, err
	}

	if fn, ok := m.funcs[name]; ok {
		fr := m.top()
		out, fl, err := m.call(fn, args, fr.loc)
		if err != nil {
			return value.Value{}, err
		}
		if fl == flowDiscard {
			return value.Value{}, errors.Wrap(ErrUnsupported, "discard outside the entry point")
		}
		return out, nil
	}

	if _, ok := m.structs[name]; ok {
		t, err := m.resolveNamed(&wgsl.NamedType{Name: name})
		if err != nil {
			return value.Value{}, err
		}
		return construct(t, args)
	}
	if _, ok := m.aliases[name]; ok {
		t, err := m.resolveNamed(&wgsl.NamedType{Name: name})
		if err != nil {
			return value.Value{}, err
		}
		return construct(t, args)
	}

	if t, err := value.ParseType(name); err == nil {
		return construct(t, args)
	}

	if strings.HasPrefix(name, "texture") {
		return m.textureCall(name, args)
	}

	return builtin(name, args)
}

func (m *Machine) evalConstruct(e *wgsl.ConstructExpr) (value.Value, error) {
	args, err := m.evalArgs(e.Args)
	if err != nil {
		return value.Value{}, err
	}

	switch t := e.Type.(type) {
	case *wgsl.NamedType:
		if len(t.TypeParams) == 0 && t.Name != "bool" && t.Name != "f32" && t.Name != "i32" && t.Name != "u32" && t.Name != "f16" {
			return constructInferred(t.Name, args)
		}
	case *wgsl.ArrayType:
		if t.Element == nil {
			return constructArray(args)
		}
	}

	typ, err := m.resolveType(e.Type)
	if err != nil {
		return value.Value{}, err
	}

	return construct(typ, args)
}

// constructInferred builds vecN(...) and matCxR(...) whose component type
// comes from the arguments.
func constructInferred(name string, args []value.Value) (value.Value, error) {
	scalar := value.AbstractFloat
	if strings.HasPrefix(name, "vec") {
		scalar = value.AbstractInt
	}
	for _, a := range args {
		if !a.Type.Scalar.IsAbstract() {
			scalar = a.Type.Scalar
			break
		}
		if a.Type.Scalar == value.AbstractFloat {
			scalar = value.AbstractFloat
		}
	}

	t, err := value.ParseType(name + "<" + scalar.Concrete().String() + ">")
	if err != nil {
		return value.Value{}, errors.Wrapf(ErrUndefined, "type %s", name)
	}
	if len(args) == 0 {
		scalar = scalar.Concrete()
	}
	t.Scalar = scalar

	return construct(t, args)
}

func constructArray(args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Value{}, errors.Wrap(ErrType, "array() needs arguments")
	}

	elem := concretize(args[0]).Type
	return construct(value.ArrayType(elem, len(args)), args)
}

func construct(t value.Type, args []value.Value) (value.Value, error) {
	switch t.Kind {
	case value.KindScalar:
		if len(args) == 0 {
			return value.Zero(t), nil
		}
		if len(args) != 1 || args[0].Type.Kind != value.KindScalar {
			return value.Value{}, errors.Wrapf(ErrType, "%s expects one scalar", t)
		}
		return args[0].Convert(t.Scalar), nil
	case value.KindVector, value.KindMatrix:
		if len(args) == 0 {
			return value.Zero(t), nil
		}
		if len(args) == 1 && args[0].Type.Kind == value.KindScalar && t.Kind == value.KindVector {
			return splat(args[0].Convert(t.Scalar), t.Rows), nil
		}
		if len(args) == 1 && args[0].Type.Kind == t.Kind && args[0].Type.Components() == t.Components() {
			out := args[0].Convert(t.Scalar)
			out.Type = t
			return out, nil
		}
		data := make([]float64, 0, t.Components())
		for _, a := range args {
			if a.Type.Kind != value.KindScalar && a.Type.Kind != value.KindVector {
				return value.Value{}, errors.Wrapf(ErrType, "%s cannot take %s", t, a.Type)
			}
			data = append(data, a.Convert(t.Scalar).Data...)
		}
		if len(data) != t.Components() {
			return value.Value{}, errors.Wrapf(ErrType, "%s needs %d components, got %d", t, t.Components(), len(data))
		}
		return value.Value{Type: t, Data: data}, nil
	case value.KindArray:
		if len(args) == 0 {
			return value.Zero(t), nil
		}
		if len(args) != t.Len {
			return value.Value{}, errors.Wrapf(ErrType, "%s needs %d elements, got %d", t, t.Len, len(args))
		}
		out := value.Value{Type: t, Elems: make([]value.Value, len(args))}
		for i, a := range args {
			ce, err := coerce(a, *t.Elem)
			if err != nil {
				return value.Value{}, err
			}
			out.Elems[i] = ce
		}
		return out, nil
	case value.KindStruct:
		if len(args) == 0 {
			return value.Zero(t), nil
		}
		if len(args) != len(t.Fields) {
			return value.Value{}, errors.Wrapf(ErrType, "%s needs %d members, got %d", t, len(t.Fields), len(args))
		}
		out := value.Value{Type: t, Elems: make([]value.Value, len(args))}
		for i, a := range args {
			ce, err := coerce(a, t.Fields[i].Type)
			if err != nil {
				return value.Value{}, errors.Wrapf(err, "%s.%s", t.Name, t.Fields[i].Name)
			}
			out.Elems[i] = ce
		}
		return out, nil
	default:
		return value.Value{}, errors.Wrapf(ErrUnsupported, "constructing %s", t)
	}
}

func deref(v value.Value) value.Value {
	if v.Type.Kind == value.KindPointer && v.Ref != nil {
		return v.Ref.Clone()
	}

	return v
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}

	return i
}

func index(v value.Value, i int) (value.Value, error) {
	switch v.Type.Kind {
	case value.KindVector:
		i = clampIndex(i, v.Type.Rows)
		return value.Value{Type: value.ScalarType(v.Type.Scalar), Data: []float64{v.Data[i]}}, nil
	case value.KindMatrix:
		return v.Column(clampIndex(i, v.Type.Cols)), nil
	case value.KindArray:
		if len(v.Elems) == 0 {
			return value.Value{}, errors.Wrap(ErrType, "index into empty array")
		}
		return v.Elems[clampIndex(i, len(v.Elems))].Clone(), nil
	default:
		return value.Value{}, errors.Wrapf(ErrType, "cannot index %s", v.Type)
	}
}

var swizzleIndex = map[byte]int{
	'x': 0, 'y': 1, 'z': 2, 'w': 3,
	'r': 0, 'g': 1, 'b': 2, 'a': 3,
}

func swizzle(name string, width int) ([]int, bool) {
	if len(name) == 0 || len(name) > 4 {
		return nil, false
	}

	comps := make([]int, len(name))
	for i := 0; i < len(name); i++ {
		c, ok := swizzleIndex[name[i]]
		if !ok || c >= width {
			return nil, false
		}
		comps[i] = c
	}

	return comps, true
}

func member(v value.Value, name string) (value.Value, error) {
	v = deref(v)

	switch v.Type.Kind {
	case value.KindStruct:
		i, ok := v.Type.Field(name)
		if !ok {
			return value.Value{}, errors.Wrapf(ErrUndefined, "%s has no member %s", v.Type, name)
		}
		return v.Elems[i].Clone(), nil
	case value.KindVector:
		comps, ok := swizzle(name, v.Type.Rows)
		if !ok {
			return value.Value{}, errors.Wrapf(ErrUndefined, "swizzle %s on %s", name, v.Type)
		}
		return pick(v, comps), nil
	default:
		return value.Value{}, errors.Wrapf(ErrType, "member %s of %s", name, v.Type)
	}
}

func pick(v value.Value, comps []int) value.Value {
	data := make([]float64, len(comps))
	for i, c := range comps {
		data[i] = v.Data[c]
	}
	if len(comps) == 1 {
		return value.Value{Type: value.ScalarType(v.Type.Scalar), Data: data}
	}

	return value.Value{Type: value.VectorType(v.Type.Scalar, len(comps)), Data: data}
}

// lref is an assignable location: a whole value, or some of its components.
type lref struct {
	base  *value.Value
	comps []int
}

func (r lref) load() value.Value {
	if r.comps == nil {
		return r.base.Clone()
	}

	return pick(*r.base, r.comps)
}

func (r lref) store(v value.Value) error {
	if r.comps == nil {
		out, err := coerce(v, r.base.Type)
		if err != nil {
			return err
		}
		*r.base = out
		return nil
	}

	if v.Type.Kind == value.KindScalar && len(r.comps) > 1 {
		return errors.Wrapf(ErrType, "cannot assign a scalar to %d components", len(r.comps))
	}
	v = v.Convert(r.base.Type.Scalar)
	if len(v.Data) != len(r.comps) {
		return errors.Wrapf(ErrType, "cannot assign %s to %d components", v.Type, len(r.comps))
	}
	for i, c := range r.comps {
		r.base.Data[c] = v.Data[i]
	}

	return nil
}

func (m *Machine) ref(e wgsl.Expr) (lref, error) {
	switch e := e.(type) {
	case *wgsl.Ident:
		ptr := m.current().lookup(e.Name)
		if ptr == nil {
			return lref{}, errors.Wrapf(ErrUndefined, "%s at line %d", e.Name, e.Span.Start.Line)
		}
		return lref{base: ptr}, nil
	case *wgsl.UnaryExpr:
		if e.Op != wgsl.TokenStar {
			return lref{}, errors.Wrap(ErrType, "expression is not assignable")
		}
		p, err := m.eval(e.Operand)
		if err != nil {
			return lref{}, err
		}
		if p.Type.Kind != value.KindPointer || p.Ref == nil {
			return lref{}, errors.Wrapf(ErrType, "dereference of %s", p.Type)
		}
		return lref{base: p.Ref}, nil
	case *wgsl.IndexExpr:
		r, err := m.ref(e.Expr)
		if err != nil {
			return lref{}, err
		}
		idx, err := m.eval(e.Index)
		if err != nil {
			return lref{}, err
		}
		return r.index(int(idx.Int()))
	case *wgsl.MemberExpr:
		r, err := m.ref(e.Expr)
		if err != nil {
			return lref{}, err
		}
		return r.member(e.Member)
	default:
		return lref{}, errors.Wrapf(ErrType, "%T is not assignable", e)
	}
}

func (r lref) follow() lref {
	if r.comps == nil && r.base.Type.Kind == value.KindPointer && r.base.Ref != nil {
		return lref{base: r.base.Ref}
	}

	return r
}

func (r lref) index(i int) (lref, error) {
	r = r.follow()
	if r.comps != nil {
		return lref{base: r.base, comps: []int{r.comps[clampIndex(i, len(r.comps))]}}, nil
	}

	t := r.base.Type
	switch t.Kind {
	case value.KindVector:
		return lref{base: r.base, comps: []int{clampIndex(i, t.Rows)}}, nil
	case value.KindMatrix:
		c := clampIndex(i, t.Cols)
		comps := make([]int, t.Rows)
		for row := range comps {
			comps[row] = c*t.Rows + row
		}
		return lref{base: r.base, comps: comps}, nil
	case value.KindArray:
		if len(r.base.Elems) == 0 {
			return lref{}, errors.Wrap(ErrType, "index into empty array")
		}
		return lref{base: &r.base.Elems[clampIndex(i, len(r.base.Elems))]}, nil
	default:
		return lref{}, errors.Wrapf(ErrType, "cannot index %s", t)
	}
}

func (r lref) member(name string) (lref, error) {
	r = r.follow()
	if r.comps != nil {
		comps, ok := swizzle(name, len(r.comps))
		if !ok {
			return lref{}, errors.Wrapf(ErrUndefined, "swizzle %s", name)
		}
		for i, c := range comps {
			comps[i] = r.comps[c]
		}
		return lref{base: r.base, comps: comps}, nil
	}

	t := r.base.Type
	switch t.Kind {
	case value.KindStruct:
		i, ok := t.Field(name)
		if !ok {
			return lref{}, errors.Wrapf(ErrUndefined, "%s has no member %s", t, name)
		}
		return lref{base: &r.base.Elems[i]}, nil
	case value.KindVector:
		comps, ok := swizzle(name, t.Rows)
		if !ok {
			return lref{}, errors.Wrapf(ErrUndefined, "swizzle %s on %s", name, t)
		}
		return lref{base: r.base, comps: comps}, nil
	default:
		return lref{}, errors.Wrapf(ErrType, "member %s of %s", name, t)
	}
}
