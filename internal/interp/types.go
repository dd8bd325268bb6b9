package interp

import (
	"strconv"
	"strings"

	"github.com/gogpu/naga/wgsl"
	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/compiler"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

var slotOf = compiler.SlotOf

func intAttr(a wgsl.Attribute) (int, bool) {
	lit, ok := a.Args[0].(*wgsl.Literal)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimRight(lit.Value, "iu"))
	if err != nil {
		return 0, false
	}

	return n, true
}

func (m *Machine) resolveType(t wgsl.Type) (value.Type, error) {
	switch t := t.(type) {
	case *wgsl.NamedType:
		return m.resolveNamed(t)
	case *wgsl.ArrayType:
		elem, err := m.resolveType(t.Element)
		if err != nil {
			return value.Type{}, err
		}
		if t.Size == nil {
			return value.Type{}, errors.Wrap(ErrUnsupported, "runtime sized array")
		}
		size, err := m.eval(t.Size)
		if err != nil {
			return value.Type{}, errors.Wrap(err, "array size")
		}
		return value.ArrayType(elem, int(size.Int())), nil
	case *wgsl.PtrType:
		elem, err := m.resolveType(t.PointeeType)
		if err != nil {
			return value.Type{}, err
		}
		return value.PointerType(elem), nil
	default:
		return value.Type{}, errors.Wrapf(ErrUnsupported, "type %T", t)
	}
}

func (m *Machine) resolveNamed(t *wgsl.NamedType) (value.Type, error) {
	if alias, ok := m.aliases[t.Name]; ok {
		return m.resolveType(alias)
	}
	if decl, ok := m.structs[t.Name]; ok {
		fields := make([]value.Field, len(decl.Members))
		for i, member := range decl.Members {
			ft, err := m.resolveType(member.Type)
			if err != nil {
				return value.Type{}, errors.Wrapf(err, "%s.%s", decl.Name, member.Name)
			}
			fields[i] = value.Field{Name: member.Name, Type: ft}
		}
		return value.StructType(decl.Name, fields...), nil
	}

	switch {
	case t.Name == "f16":
		return value.ScalarType(value.F32), nil
	case t.Name == "atomic" && len(t.TypeParams) == 1:
		return m.resolveType(t.TypeParams[0])
	case strings.HasPrefix(t.Name, "texture") || strings.HasPrefix(t.Name, "sampler"):
		return value.HandleType(t.Name), nil
	}

	name := t.Name
	if len(t.TypeParams) == 1 {
		param, err := m.resolveType(t.TypeParams[0])
		if err != nil {
			return value.Type{}, err
		}
		name += "<" + param.Scalar.String() + ">"
	}

	vt, err := value.ParseType(name)
	if err != nil {
		return value.Type{}, errors.Wrapf(ErrUndefined, "type %s", t.Name)
	}

	return vt, nil
}

// coerce converts v to t. Numeric values change component type freely,
// other kinds must already have the shape of t.
func coerce(v value.Value, t value.Type) (value.Value, error) {
	switch t.Kind {
	case value.KindScalar, value.KindVector, value.KindMatrix:
		if v.Type.Kind == value.KindScalar && t.Kind == value.KindVector {
			v = splat(v, t.Rows)
		}
		if v.Type.Kind != t.Kind || v.Type.Components() != t.Components() {
			return value.Value{}, errors.Wrapf(ErrType, "cannot use %s as %s", v.Type, t)
		}
		out := v.Clone()
		if v.Type.Scalar != t.Scalar {
			out = v.Convert(t.Scalar)
		}
		out.Type = t
		return out, nil
	case value.KindArray:
		if v.Type.Kind != value.KindArray || len(v.Elems) != t.Len {
			return value.Value{}, errors.Wrapf(ErrType, "cannot use %s as %s", v.Type, t)
		}
		out := value.Value{Type: t, Elems: make([]value.Value, len(v.Elems))}
		for i, e := range v.Elems {
			ce, err := coerce(e, *t.Elem)
			if err != nil {
				return value.Value{}, err
			}
			out.Elems[i] = ce
		}
		return out, nil
	case value.KindStruct:
		if v.Type.Kind != value.KindStruct || len(v.Elems) != len(t.Fields) {
			return value.Value{}, errors.Wrapf(ErrType, "cannot use %s as %s", v.Type, t)
		}
		out := value.Value{Type: t, Elems: make([]value.Value, len(v.Elems))}
		for i, e := range v.Elems {
			ce, err := coerce(e, t.Fields[i].Type)
			if err != nil {
				return value.Value{}, err
			}
			out.Elems[i] = ce
		}
		return out, nil
	case value.KindHandle:
		if v.Type.Kind != value.KindHandle {
			return value.Value{}, errors.Wrapf(ErrType, "cannot use %s as %s", v.Type, t)
		}
		return v, nil
	case value.KindPointer:
		if v.Type.Kind != value.KindPointer {
			return value.Value{}, errors.Wrapf(ErrType, "cannot use %s as %s", v.Type, t)
		}
		return v, nil
	default:
		return value.Value{}, errors.Wrapf(ErrType, "cannot use %s as %s", v.Type, t)
	}
}

// concretize gives abstract literals their default concrete type.
func concretize(v value.Value) value.Value {
	switch v.Type.Kind {
	case value.KindScalar, value.KindVector, value.KindMatrix:
		if v.Type.Scalar.IsAbstract() {
			return v.Convert(v.Type.Scalar.Concrete())
		}
	case value.KindArray:
		out := v.Clone()
		for i, e := range out.Elems {
			out.Elems[i] = concretize(e)
		}
		if len(out.Elems) > 0 {
			elem := out.Elems[0].Type
			out.Type.Elem = &elem
		}
		return out
	}

	return v
}

func splat(v value.Value, n int) value.Value {
	data := make([]float64, n)
	for i := range data {
		data[i] = v.Float()
	}

	return value.Value{Type: value.VectorType(v.Type.Scalar, n), Data: data}
}

func parseLiteral(lit *wgsl.Literal) (value.Value, error) {
	text := lit.Value
	if lit.Kind == wgsl.TokenBoolLiteral {
		return value.NewBool(text == "true"), nil
	}

	scalar := value.AbstractInt
	if lit.Kind == wgsl.TokenFloatLiteral {
		scalar = value.AbstractFloat
	}
	isHex := strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X")
	switch last := text[len(text)-1]; {
	case last == 'u':
		scalar, text = value.U32, text[:len(text)-1]
	case last == 'i':
		scalar, text = value.I32, text[:len(text)-1]
	case (last == 'f' || last == 'h') && !isHex:
		scalar, text = value.F32, text[:len(text)-1]
	}

	if scalar.IsInt() {
		n, err := strconv.ParseInt(text, 0, 64)
		if err != nil {
			return value.Value{}, errors.Wrapf(ErrType, "literal %q", lit.Value)
		}
		return value.NewScalar(scalar, float64(n)), nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return value.Value{}, errors.Wrapf(ErrType, "literal %q", lit.Value)
	}

	return value.NewScalar(scalar, f), nil
}
