package value

import (
	"math"
	"strconv"
	"strings"
)

// Value is a shader runtime value.
//
// Scalars, vectors and matrices keep their components in Data, matrices in
// column-major order. Arrays and structs keep their members in Elems. Numbers
// are stored as float64 but always hold a value representable in their scalar
// type, see Normalize.
type Value struct {
	Type   Type
	Data   []float64
	Elems  []Value
	Handle uint64
	Ref    *Value
}

// Normalize rounds x to the precision and range of s.
func Normalize(s Scalar, x float64) float64 {
	switch s {
	case F32:
		return float64(float32(x))
	case I32:
		return float64(int32(wrap(x)))
	case U32:
		return float64(uint32(wrap(x)))
	case Bool:
		if x != 0 {
			return 1
		}
		return 0
	default:
		return x
	}
}

func wrap(x float64) int64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x >= math.MaxInt64:
		return math.MaxInt64
	case x <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(x)
	}
}

// NewBool returns a bool scalar.
func NewBool(b bool) Value {
	v := 0.0
	if b {
		v = 1
	}

	return Value{Type: ScalarType(Bool), Data: []float64{v}}
}

// NewI32 returns an i32 scalar.
func NewI32(i int32) Value {
	return Value{Type: ScalarType(I32), Data: []float64{float64(i)}}
}

// NewU32 returns a u32 scalar.
func NewU32(u uint32) Value {
	return Value{Type: ScalarType(U32), Data: []float64{float64(u)}}
}

// NewF32 returns an f32 scalar.
func NewF32(f float32) Value {
	return Value{Type: ScalarType(F32), Data: []float64{float64(f)}}
}

// NewScalar returns a scalar of type s holding x.
func NewScalar(s Scalar, x float64) Value {
	return Value{Type: ScalarType(s), Data: []float64{Normalize(s, x)}}
}

// NewVector returns a vector of type s with the given components.
func NewVector(s Scalar, comps ...float64) Value {
	data := make([]float64, len(comps))
	for i, c := range comps {
		data[i] = Normalize(s, c)
	}

	return Value{Type: VectorType(s, len(comps)), Data: data}
}

// Vec2 returns a vec2<f32>.
func Vec2(x, y float32) Value {
	return NewVector(F32, float64(x), float64(y))
}

// Vec3 returns a vec3<f32>.
func Vec3(x, y, z float32) Value {
	return NewVector(F32, float64(x), float64(y), float64(z))
}

// Vec4 returns a vec4<f32>.
func Vec4(x, y, z, w float32) Value {
	return NewVector(F32, float64(x), float64(y), float64(z), float64(w))
}

// NewMatrix returns a matCxR<f32> from column-major components.
func NewMatrix(cols, rows int, data []float32) Value {
	out := make([]float64, cols*rows)
	for i := range out {
		if i < len(data) {
			out[i] = float64(data[i])
		}
	}

	return Value{Type: MatrixType(F32, cols, rows), Data: out}
}

// NewHandle returns an opaque resource reference.
func NewHandle(kind string, handle uint64) Value {
	return Value{Type: HandleType(kind), Handle: handle}
}

// NewPointer returns a pointer to target.
func NewPointer(target *Value) Value {
	return Value{Type: PointerType(target.Type), Ref: target}
}

// Zero returns the zero value of t.
func Zero(t Type) Value {
	val := Value{Type: t}

	switch t.Kind {
	case KindScalar, KindVector, KindMatrix:
		val.Data = make([]float64, t.Components())
	case KindArray:
		if t.Elem != nil {
			val.Elems = make([]Value, t.Len)
			for i := range val.Elems {
				val.Elems[i] = Zero(*t.Elem)
			}
		}
	case KindStruct:
		val.Elems = make([]Value, len(t.Fields))
		for i, f := range t.Fields {
			val.Elems[i] = Zero(f.Type)
		}
	}

	return val
}

// Float returns the first component.
func (v Value) Float() float64 {
	if len(v.Data) == 0 {
		return 0
	}

	return v.Data[0]
}

// Int returns the first component as an integer.
func (v Value) Int() int64 {
	return wrap(v.Float())
}

// Truth returns the first component as a bool.
func (v Value) Truth() bool {
	return v.Float() != 0
}

// Len returns the number of addressable members.
func (v Value) Len() int {
	switch v.Type.Kind {
	case KindVector:
		return v.Type.Rows
	case KindMatrix:
		return v.Type.Cols
	case KindArray, KindStruct:
		return len(v.Elems)
	default:
		return 1
	}
}

// Column returns column i of a matrix as a vector.
func (v Value) Column(i int) Value {
	rows := v.Type.Rows
	data := make([]float64, rows)
	copy(data, v.Data[i*rows:(i+1)*rows])

	return Value{Type: VectorType(v.Type.Scalar, rows), Data: data}
}

// At returns the component at row r of column c.
func (v Value) At(c, r int) float64 {
	return v.Data[c*v.Type.Rows+r]
}

// Convert converts a numeric value to scalar type s, keeping its shape.
func (v Value) Convert(s Scalar) Value {
	out := v.Clone()
	out.Type.Scalar = s
	for i, c := range out.Data {
		if s == Bool {
			out.Data[i] = Normalize(Bool, c)
			continue
		}
		if v.Type.Scalar.IsFloat() && s.IsInt() {
			c = math.Trunc(c)
		}
		out.Data[i] = Normalize(s, c)
	}

	return out
}

// Clone returns a deep copy of v. Pointers are copied by reference.
func (v Value) Clone() Value {
	out := v
	if v.Data != nil {
		out.Data = make([]float64, len(v.Data))
		copy(out.Data, v.Data)
	}
	if v.Elems != nil {
		out.Elems = make([]Value, len(v.Elems))
		for i, e := range v.Elems {
			out.Elems[i] = e.Clone()
		}
	}

	return out
}

// Equal reports whether both values have the same type and contents.
func (v Value) Equal(o Value) bool {
	if !v.Type.Equal(o.Type) || len(v.Data) != len(o.Data) || len(v.Elems) != len(o.Elems) {
		return false
	}
	for i := range v.Data {
		if v.Data[i] != o.Data[i] {
			return false
		}
	}
	for i := range v.Elems {
		if !v.Elems[i].Equal(o.Elems[i]) {
			return false
		}
	}

	return v.Handle == o.Handle && v.Ref == o.Ref
}

func (v Value) String() string {
	switch v.Type.Kind {
	case KindScalar:
		return formatScalar(v.Type.Scalar, v.Float())
	case KindVector:
		return v.Type.String() + "(" + joinComponents(v.Type.Scalar, v.Data) + ")"
	case KindMatrix:
		cols := make([]string, v.Type.Cols)
		for c := range cols {
			cols[c] = "(" + joinComponents(v.Type.Scalar, v.Data[c*v.Type.Rows:(c+1)*v.Type.Rows]) + ")"
		}
		return v.Type.String() + "(" + strings.Join(cols, ", ") + ")"
	case KindArray:
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = e.String()
		}
		return v.Type.String() + "(" + strings.Join(parts, ", ") + ")"
	case KindStruct:
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			name := strconv.Itoa(i)
			if i < len(v.Type.Fields) {
				name = v.Type.Fields[i].Name
			}
			parts[i] = name + ": " + e.String()
		}
		return v.Type.Name + "{" + strings.Join(parts, ", ") + "}"
	case KindHandle:
		return v.Type.Name + "#" + strconv.FormatUint(v.Handle, 10)
	case KindPointer:
		if v.Ref == nil {
			return "ptr(nil)"
		}
		return "&" + v.Ref.String()
	default:
		return "invalid"
	}
}

func joinComponents(s Scalar, data []float64) string {
	parts := make([]string, len(data))
	for i, c := range data {
		parts[i] = formatScalar(s, c)
	}

	return strings.Join(parts, ", ")
}

func formatScalar(s Scalar, x float64) string {
	switch s {
	case Bool:
		return strconv.FormatBool(x != 0)
	case I32, U32, AbstractInt:
		return strconv.FormatInt(wrap(x), 10)
	default:
		return strconv.FormatFloat(x, 'g', -1, 32)
	}
}
