package value

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the shape of a type.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindScalar
	KindVector
	KindMatrix
	KindArray
	KindStruct
	KindHandle
	KindPointer
)

// Scalar is the component type of scalars, vectors and matrices.
type Scalar uint8

const (
	ScalarNone Scalar = iota
	Bool
	I32
	U32
	F32
	// AbstractInt and AbstractFloat are the types of unsuffixed literals.
	// They convert to the concrete type of the other operand.
	AbstractInt
	AbstractFloat
)

var ErrInvalidType = errors.New("invalid type")

func (s Scalar) String() string {
	switch s {
	case Bool:
		return "bool"
	case I32, AbstractInt:
		return "i32"
	case U32:
		return "u32"
	case F32, AbstractFloat:
		return "f32"
	default:
		return "none"
	}
}

// IsFloat reports whether s is a floating point scalar.
func (s Scalar) IsFloat() bool { return s == F32 || s == AbstractFloat }

// IsInt reports whether s is an integer scalar.
func (s Scalar) IsInt() bool { return s == I32 || s == U32 || s == AbstractInt }

// IsAbstract reports whether s is the type of an unsuffixed literal.
func (s Scalar) IsAbstract() bool { return s == AbstractInt || s == AbstractFloat }

// Concrete returns the default concrete scalar for s.
func (s Scalar) Concrete() Scalar {
	switch s {
	case AbstractInt:
		return I32
	case AbstractFloat:
		return F32
	default:
		return s
	}
}

// Field is a named struct member.
type Field struct {
	Name string
	Type Type
}

// Type describes a shader value.
//
// Vectors use Rows for their width and Cols = 1. Matrices follow WGSL naming:
// matCxR has Cols columns of Rows components.
type Type struct {
	Kind   Kind
	Scalar Scalar
	Rows   int
	Cols   int
	// Name is the struct name or the handle kind (texture_2d, sampler...).
	Name   string
	Elem   *Type
	Len    int
	Fields []Field
}

// ScalarType returns the scalar type s.
func ScalarType(s Scalar) Type {
	return Type{Kind: KindScalar, Scalar: s, Rows: 1, Cols: 1}
}

// VectorType returns a vector of n components of type s.
func VectorType(s Scalar, n int) Type {
	return Type{Kind: KindVector, Scalar: s, Rows: n, Cols: 1}
}

// MatrixType returns a matrix with cols columns and rows rows.
func MatrixType(s Scalar, cols, rows int) Type {
	return Type{Kind: KindMatrix, Scalar: s, Rows: rows, Cols: cols}
}

// ArrayType returns a fixed size array type.
func ArrayType(elem Type, n int) Type {
	return Type{Kind: KindArray, Elem: &elem, Len: n}
}

// StructType returns a named struct type.
func StructType(name string, fields ...Field) Type {
	return Type{Kind: KindStruct, Name: name, Fields: fields}
}

// HandleType returns an opaque resource type.
func HandleType(name string) Type {
	return Type{Kind: KindHandle, Name: name}
}

// PointerType returns a pointer to elem.
func PointerType(elem Type) Type {
	return Type{Kind: KindPointer, Elem: &elem}
}

// Components is the number of float slots used by the type.
func (t Type) Components() int {
	switch t.Kind {
	case KindScalar:
		return 1
	case KindVector:
		return t.Rows
	case KindMatrix:
		return t.Rows * t.Cols
	default:
		return 0
	}
}

// Field returns the index of the named struct field.
func (t Type) Field(name string) (int, bool) {
	for i, f := range t.Fields {
		if f.Name == name {
			return i, true
		}
	}

	return -1, false
}

// Equal reports whether both types describe the same shape, ignoring abstract scalars.
func (t Type) Equal(o Type) bool {
	if t.Kind != o.Kind {
		return false
	}

	switch t.Kind {
	case KindScalar, KindVector, KindMatrix:
		return t.Scalar.Concrete() == o.Scalar.Concrete() && t.Rows == o.Rows && t.Cols == o.Cols
	case KindArray:
		return t.Len == o.Len && t.Elem != nil && o.Elem != nil && t.Elem.Equal(*o.Elem)
	case KindStruct:
		if t.Name != o.Name || len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
				return false
			}
		}
		return true
	case KindHandle:
		return t.Name == o.Name
	case KindPointer:
		return t.Elem != nil && o.Elem != nil && t.Elem.Equal(*o.Elem)
	default:
		return true
	}
}

func (t Type) String() string {
	switch t.Kind {
	case KindScalar:
		return t.Scalar.String()
	case KindVector:
		return "vec" + strconv.Itoa(t.Rows) + "<" + t.Scalar.String() + ">"
	case KindMatrix:
		return "mat" + strconv.Itoa(t.Cols) + "x" + strconv.Itoa(t.Rows) + "<" + t.Scalar.String() + ">"
	case KindArray:
		if t.Elem == nil {
			return "array"
		}
		return "array<" + t.Elem.String() + ", " + strconv.Itoa(t.Len) + ">"
	case KindStruct, KindHandle:
		return t.Name
	case KindPointer:
		if t.Elem == nil {
			return "ptr"
		}
		return "ptr<" + t.Elem.String() + ">"
	default:
		return "invalid"
	}
}

var scalarNames = map[string]Scalar{
	"bool": Bool,
	"i32":  I32,
	"u32":  U32,
	"f32":  F32,
}

var suffixScalars = map[byte]Scalar{
	'f': F32,
	'i': I32,
	'u': U32,
}

// ParseType parses the textual form of a scalar, vector or matrix type, as
// written in WGSL: f32, vec3<f32>, vec3f, mat4x4<f32>, mat4x4f.
func ParseType(src string) (Type, error) {
	src = strings.ReplaceAll(strings.TrimSpace(src), " ", "")
	if s, ok := scalarNames[src]; ok {
		return ScalarType(s), nil
	}

	base, param := src, ""
	if i := strings.IndexByte(src, '<'); i >= 0 {
		if !strings.HasSuffix(src, ">") {
			return Type{}, errors.Wrapf(ErrInvalidType, "unterminated type parameter in %q", src)
		}
		base, param = src[:i], src[i+1:len(src)-1]
	}

	scalar := F32
	switch {
	case param != "":
		s, ok := scalarNames[param]
		if !ok {
			return Type{}, errors.Wrapf(ErrInvalidType, "unknown component type %q", param)
		}
		scalar = s
	case len(base) > 0:
		if s, ok := suffixScalars[base[len(base)-1]]; ok && (strings.HasPrefix(base, "vec") || strings.HasPrefix(base, "mat")) {
			scalar = s
			base = base[:len(base)-1]
		}
	}

	switch {
	case strings.HasPrefix(base, "vec") && len(base) == 4:
		n, err := strconv.Atoi(base[3:])
		if err != nil || n < 2 || n > 4 {
			return Type{}, errors.Wrapf(ErrInvalidType, "invalid vector width in %q", src)
		}
		return VectorType(scalar, n), nil
	case strings.HasPrefix(base, "mat") && len(base) == 6 && base[4] == 'x':
		cols, errC := strconv.Atoi(base[3:4])
		rows, errR := strconv.Atoi(base[5:6])
		if errC != nil || errR != nil || cols < 2 || cols > 4 || rows < 2 || rows > 4 {
			return Type{}, errors.Wrapf(ErrInvalidType, "invalid matrix shape in %q", src)
		}
		return MatrixType(scalar, cols, rows), nil
	}

	return Type{}, errors.Wrapf(ErrInvalidType, "unsupported type %q", src)
}
