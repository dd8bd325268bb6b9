package interp

import (
	"math"

	"github.com/gogpu/naga/wgsl"
	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/value"
)

func isNumeric(v value.Value) bool {
	switch v.Type.Kind {
	case value.KindScalar, value.KindVector, value.KindMatrix:
		return true
	default:
		return false
	}
}

// unify converts abstract operands to the scalar of the other side.
func unify(a, b value.Value) (value.Value, value.Value) {
	sa, sb := a.Type.Scalar, b.Type.Scalar
	switch {
	case sa == sb:
	case sa.IsAbstract() && !sb.IsAbstract():
		a = a.Convert(sb)
	case sb.IsAbstract() && !sa.IsAbstract():
		b = b.Convert(sa)
	case sa.IsAbstract() && sb.IsAbstract():
		a, b = a.Convert(value.AbstractFloat), b.Convert(value.AbstractFloat)
	}

	return a, b
}

func isComparison(op wgsl.TokenKind) bool {
	switch op {
	case wgsl.TokenEqualEqual, wgsl.TokenBangEqual, wgsl.TokenLess, wgsl.TokenLessEqual,
		wgsl.TokenGreater, wgsl.TokenGreaterEqual:
		return true
	default:
		return false
	}
}

func binary(op wgsl.TokenKind, a, b value.Value) (value.Value, error) {
	if !isNumeric(a) || !isNumeric(b) {
		return value.Value{}, errors.Wrapf(ErrType, "operands %s and %s", a.Type, b.Type)
	}
	a, b = unify(a, b)

	if op == wgsl.TokenStar && (a.Type.Kind == value.KindMatrix || b.Type.Kind == value.KindMatrix) {
		if a.Type.Kind != value.KindScalar && b.Type.Kind != value.KindScalar {
			return matMul(a, b)
		}
	}

	switch {
	case a.Type.Kind == value.KindScalar && b.Type.Kind != value.KindScalar:
		a = broadcast(a, b.Type)
	case b.Type.Kind == value.KindScalar && a.Type.Kind != value.KindScalar:
		b = broadcast(b, a.Type)
	}
	if !a.Type.Equal(b.Type) && !(a.Type.Kind == b.Type.Kind && a.Type.Components() == b.Type.Components()) {
		return value.Value{}, errors.Wrapf(ErrType, "operands %s and %s", a.Type, b.Type)
	}

	scalar := a.Type.Scalar
	out := value.Value{Type: a.Type, Data: make([]float64, len(a.Data))}
	if isComparison(op) {
		out.Type.Scalar = value.Bool
	}

	for i := range a.Data {
		r, err := scalarOp(op, scalar, a.Data[i], b.Data[i])
		if err != nil {
			return value.Value{}, err
		}
		out.Data[i] = value.Normalize(out.Type.Scalar, r)
	}

	return out, nil
}

func broadcast(s value.Value, t value.Type) value.Value {
	data := make([]float64, t.Components())
	for i := range data {
		data[i] = s.Float()
	}

	out := value.Value{Type: t, Data: data}
	out.Type.Scalar = s.Type.Scalar

	return out
}

func boolf(b bool) float64 {
	if b {
		return 1
	}

	return 0
}

func scalarOp(op wgsl.TokenKind, s value.Scalar, x, y float64) (float64, error) {
	switch op {
	case wgsl.TokenEqualEqual:
		return boolf(x == y), nil
	case wgsl.TokenBangEqual:
		return boolf(x != y), nil
	case wgsl.TokenLess:
		return boolf(x < y), nil
	case wgsl.TokenLessEqual:
		return boolf(x <= y), nil
	case wgsl.TokenGreater:
		return boolf(x > y), nil
	case wgsl.TokenGreaterEqual:
		return boolf(x >= y), nil
	case wgsl.TokenPlus:
		return x + y, nil
	case wgsl.TokenMinus:
		return x - y, nil
	case wgsl.TokenStar:
		return x * y, nil
	case wgsl.TokenSlash:
		if s.IsInt() {
			if y == 0 {
				return x, nil
			}
			return math.Trunc(x / y), nil
		}
		return x / y, nil
	case wgsl.TokenPercent:
		if s.IsInt() {
			if y == 0 {
				return 0, nil
			}
			return float64(int64(x) % int64(y)), nil
		}
		return x - y*math.Trunc(x/y), nil
	case wgsl.TokenAmpAmp:
		return boolf(x != 0 && y != 0), nil
	case wgsl.TokenPipePipe:
		return boolf(x != 0 || y != 0), nil
	}

	if !s.IsInt() && s != value.Bool {
		return 0, errors.Wrapf(ErrType, "bitwise operator on %s", s)
	}

	a, b := int64(x), int64(y)
	switch op {
	case wgsl.TokenAmpersand:
		return float64(a & b), nil
	case wgsl.TokenPipe:
		return float64(a | b), nil
	case wgsl.TokenCaret:
		return float64(a ^ b), nil
	case wgsl.TokenLessLess:
		return float64(uint32(a) << (uint32(b) & 31)), nil
	case wgsl.TokenGreaterGreater:
		if s == value.U32 {
			return float64(uint32(a) >> (uint32(b) & 31)), nil
		}
		return float64(int32(a) >> (uint32(b) & 31)), nil
	default:
		return 0, errors.Wrapf(ErrUnsupported, "operator %d", op)
	}
}

// matMul multiplies column-major matrices and vectors.
func matMul(a, b value.Value) (value.Value, error) {
	at, bt := a.Type, b.Type
	scalar := at.Scalar

	switch {
	case at.Kind == value.KindMatrix && bt.Kind == value.KindVector:
		if at.Cols != bt.Rows {
			break
		}
		out := value.Zero(value.VectorType(scalar, at.Rows))
		for r := 0; r < at.Rows; r++ {
			for c := 0; c < at.Cols; c++ {
				out.Data[r] += a.At(c, r) * b.Data[c]
			}
			out.Data[r] = value.Normalize(scalar, out.Data[r])
		}
		return out, nil
	case at.Kind == value.KindVector && bt.Kind == value.KindMatrix:
		if at.Rows != bt.Rows {
			break
		}
		out := value.Zero(value.VectorType(scalar, bt.Cols))
		for c := 0; c < bt.Cols; c++ {
			for r := 0; r < bt.Rows; r++ {
				out.Data[c] += a.Data[r] * b.At(c, r)
			}
			out.Data[c] = value.Normalize(scalar, out.Data[c])
		}
		return out, nil
	case at.Kind == value.KindMatrix && bt.Kind == value.KindMatrix:
		if at.Cols != bt.Rows {
			break
		}
		out := value.Zero(value.MatrixType(scalar, bt.Cols, at.Rows))
		for c := 0; c < bt.Cols; c++ {
			for r := 0; r < at.Rows; r++ {
				sum := 0.0
				for k := 0; k < at.Cols; k++ {
					sum += a.At(k, r) * b.At(c, k)
				}
				out.Data[c*at.Rows+r] = value.Normalize(scalar, sum)
			}
		}
		return out, nil
	}

	return value.Value{}, errors.Wrapf(ErrType, "cannot multiply %s by %s", at, bt)
}

func unary(op wgsl.TokenKind, v value.Value) (value.Value, error) {
	if !isNumeric(v) {
		return value.Value{}, errors.Wrapf(ErrType, "operand %s", v.Type)
	}

	out := v.Clone()
	for i, c := range out.Data {
		switch op {
		case wgsl.TokenMinus:
			out.Data[i] = value.Normalize(v.Type.Scalar, -c)
		case wgsl.TokenBang:
			out.Data[i] = boolf(c == 0)
		case wgsl.TokenTilde:
			if !v.Type.Scalar.IsInt() {
				return value.Value{}, errors.Wrapf(ErrType, "~ on %s", v.Type)
			}
			out.Data[i] = value.Normalize(v.Type.Scalar, float64(^int64(c)))
		default:
			return value.Value{}, errors.Wrapf(ErrUnsupported, "unary operator %d", op)
		}
	}

	return out, nil
}
