package interp

import (
	"github.com/chewxy/math32"
	"github.com/gogpu/naga/wgsl"
	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/registry"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

type componentFunc func(xs ...float32) float32

func unaryF(f func(float32) float32) componentFunc {
	return func(xs ...float32) float32 { return f(xs[0]) }
}

func binaryF(f func(float32, float32) float32) componentFunc {
	return func(xs ...float32) float32 { return f(xs[0], xs[1]) }
}

func fract(x float32) float32 { return x - math32.Floor(x) }

func inverseSqrt(x float32) float32 { return 1 / math32.Sqrt(x) }

func sign(x float32) float32 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func saturate(x float32) float32 { return math32.Min(math32.Max(x, 0), 1) }

func step(edge, x float32) float32 {
	if x < edge {
		return 0
	}

	return 1
}

func smoothstep(xs ...float32) float32 {
	t := saturate((xs[2] - xs[0]) / (xs[1] - xs[0]))

	return t * t * (3 - 2*t)
}

var componentwise = map[string]struct {
	arity int
	fn    componentFunc
}{
	"sin":         {1, unaryF(math32.Sin)},
	"cos":         {1, unaryF(math32.Cos)},
	"tan":         {1, unaryF(math32.Tan)},
	"asin":        {1, unaryF(math32.Asin)},
	"acos":        {1, unaryF(math32.Acos)},
	"atan":        {1, unaryF(math32.Atan)},
	"sinh":        {1, unaryF(math32.Sinh)},
	"cosh":        {1, unaryF(math32.Cosh)},
	"tanh":        {1, unaryF(math32.Tanh)},
	"sqrt":        {1, unaryF(math32.Sqrt)},
	"inverseSqrt": {1, unaryF(inverseSqrt)},
	"exp":         {1, unaryF(math32.Exp)},
	"exp2":        {1, unaryF(math32.Exp2)},
	"log":         {1, unaryF(math32.Log)},
	"log2":        {1, unaryF(math32.Log2)},
	"floor":       {1, unaryF(math32.Floor)},
	"ceil":        {1, unaryF(math32.Ceil)},
	"round":       {1, unaryF(math32.RoundToEven)},
	"trunc":       {1, unaryF(math32.Trunc)},
	"fract":       {1, unaryF(fract)},
	"saturate":    {1, unaryF(saturate)},
	"radians":     {1, unaryF(func(x float32) float32 { return x * math32.Pi / 180 })},
	"degrees":     {1, unaryF(func(x float32) float32 { return x * 180 / math32.Pi })},
	"pow":         {2, binaryF(math32.Pow)},
	"atan2":       {2, binaryF(math32.Atan2)},
	"step":        {2, binaryF(step)},
	"smoothstep":  {3, smoothstep},
	"fma":         {3, func(xs ...float32) float32 { return xs[0]*xs[1] + xs[2] }},
}

// integer friendly functions operate on the exact stored value.
var exact = map[string]struct {
	arity int
	fn    func(xs ...float64) float64
}{
	"abs": {1, func(xs ...float64) float64 {
		if xs[0] < 0 {
			return -xs[0]
		}
		return xs[0]
	}},
	"sign": {1, func(xs ...float64) float64 { return float64(sign(float32(xs[0]))) }},
	"min": {2, func(xs ...float64) float64 {
		if xs[1] < xs[0] {
			return xs[1]
		}
		return xs[0]
	}},
	"max": {2, func(xs ...float64) float64 {
		if xs[1] > xs[0] {
			return xs[1]
		}
		return xs[0]
	}},
	"clamp": {3, func(xs ...float64) float64 {
		switch {
		case xs[0] < xs[1]:
			return xs[1]
		case xs[0] > xs[2]:
			return xs[2]
		default:
			return xs[0]
		}
	}},
}

// shape unifies arguments to the widest vector, splatting scalars.
func shape(name string, args []value.Value) ([]value.Value, value.Type, error) {
	out := make([]value.Value, len(args))
	copy(out, args)

	var t value.Type
	for _, a := range out {
		if a.Type.Kind != value.KindScalar && a.Type.Kind != value.KindVector {
			return nil, value.Type{}, errors.Wrapf(ErrType, "%s argument %s", name, a.Type)
		}
		if a.Type.Kind == value.KindVector && (t.Kind != value.KindVector || a.Type.Rows > t.Rows) {
			t = a.Type
		}
	}
	if t.Kind != value.KindVector {
		t = out[0].Type
	}

	scalar := value.AbstractInt
	for _, a := range out {
		s := a.Type.Scalar
		if !s.IsAbstract() {
			scalar = s
			break
		}
		if s == value.AbstractFloat {
			scalar = s
		}
	}
	t.Scalar = scalar

	for i, a := range out {
		if a.Type.Kind == value.KindScalar && t.Kind == value.KindVector {
			a = splat(a, t.Rows)
		}
		if a.Type.Components() != t.Components() {
			return nil, value.Type{}, errors.Wrapf(ErrType, "%s arguments %s and %s", name, t, a.Type)
		}
		out[i] = a.Convert(scalar)
	}

	return out, t, nil
}

func checkArity(name string, args []value.Value, n int) error {
	if len(args) != n {
		return errors.Wrapf(ErrType, "%s expects %d arguments, got %d", name, n, len(args))
	}

	return nil
}

func builtin(name string, args []value.Value) (value.Value, error) {
	if f, ok := componentwise[name]; ok {
		err := checkArity(name, args, f.arity)
		if err != nil {
			return value.Value{}, err
		}
		vals, t, err := shape(name, args)
		if err != nil {
			return value.Value{}, err
		}
		if !t.Scalar.IsFloat() {
			t.Scalar = value.F32
		}
		out := value.Value{Type: t, Data: make([]float64, t.Components())}
		xs := make([]float32, len(vals))
		for c := range out.Data {
			for i, v := range vals {
				xs[i] = float32(v.Data[c])
			}
			out.Data[c] = value.Normalize(t.Scalar, float64(f.fn(xs...)))
		}
		return out, nil
	}

	if f, ok := exact[name]; ok {
		err := checkArity(name, args, f.arity)
		if err != nil {
			return value.Value{}, err
		}
		vals, t, err := shape(name, args)
		if err != nil {
			return value.Value{}, err
		}
		out := value.Value{Type: t, Data: make([]float64, t.Components())}
		xs := make([]float64, len(vals))
		for c := range out.Data {
			for i, v := range vals {
				xs[i] = v.Data[c]
			}
			out.Data[c] = value.Normalize(t.Scalar, f.fn(xs...))
		}
		return out, nil
	}

	switch name {
	case "mix":
		err := checkArity(name, args, 3)
		if err != nil {
			return value.Value{}, err
		}
		vals, t, err := shape(name, args)
		if err != nil {
			return value.Value{}, err
		}
		out := value.Value{Type: t, Data: make([]float64, t.Components())}
		for c := range out.Data {
			x, y, a := float32(vals[0].Data[c]), float32(vals[1].Data[c]), float32(vals[2].Data[c])
			out.Data[c] = value.Normalize(t.Scalar, float64(x*(1-a)+y*a))
		}
		return out, nil
	case "select":
		err := checkArity(name, args, 3)
		if err != nil {
			return value.Value{}, err
		}
		f, tr, cond := args[0], args[1], args[2]
		f, tr = unify(f, tr)
		if cond.Type.Kind == value.KindScalar {
			if cond.Truth() {
				return tr, nil
			}
			return f, nil
		}
		out := f.Clone()
		for i := range out.Data {
			if i < len(cond.Data) && cond.Data[i] != 0 {
				out.Data[i] = tr.Data[i]
			}
		}
		return out, nil
	case "all", "any":
		err := checkArity(name, args, 1)
		if err != nil {
			return value.Value{}, err
		}
		every, some := true, false
		for _, c := range args[0].Data {
			every = every && c != 0
			some = some || c != 0
		}
		if name == "all" {
			return value.NewBool(every), nil
		}
		return value.NewBool(some), nil
	case "dot":
		err := checkArity(name, args, 2)
		if err != nil {
			return value.Value{}, err
		}
		a, b := unify(args[0], args[1])
		if a.Type.Components() != b.Type.Components() {
			return value.Value{}, errors.Wrapf(ErrType, "dot of %s and %s", a.Type, b.Type)
		}
		sum := 0.0
		for i := range a.Data {
			sum += a.Data[i] * b.Data[i]
		}
		return value.NewScalar(a.Type.Scalar, sum), nil
	case "length":
		err := checkArity(name, args, 1)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewScalar(value.F32, float64(length(args[0]))), nil
	case "distance":
		err := checkArity(name, args, 2)
		if err != nil {
			return value.Value{}, err
		}
		d, err := binary(wgsl.TokenMinus, args[0], args[1])
		if err != nil {
			return value.Value{}, err
		}
		return value.NewScalar(value.F32, float64(length(d))), nil
	case "normalize":
		err := checkArity(name, args, 1)
		if err != nil {
			return value.Value{}, err
		}
		l := length(args[0])
		out := args[0].Convert(value.F32)
		for i, c := range out.Data {
			if l != 0 {
				out.Data[i] = value.Normalize(value.F32, c/float64(l))
			}
		}
		return out, nil
	case "cross":
		err := checkArity(name, args, 2)
		if err != nil {
			return value.Value{}, err
		}
		a, b := args[0].Convert(value.F32), args[1].Convert(value.F32)
		if a.Type.Components() != 3 || b.Type.Components() != 3 {
			return value.Value{}, errors.Wrap(ErrType, "cross needs vec3 arguments")
		}
		return value.NewVector(value.F32,
			a.Data[1]*b.Data[2]-a.Data[2]*b.Data[1],
			a.Data[2]*b.Data[0]-a.Data[0]*b.Data[2],
			a.Data[0]*b.Data[1]-a.Data[1]*b.Data[0]), nil
	case "reflect":
		err := checkArity(name, args, 2)
		if err != nil {
			return value.Value{}, err
		}
		d, err := builtin("dot", args)
		if err != nil {
			return value.Value{}, err
		}
		i, n := args[0].Convert(value.F32), args[1].Convert(value.F32)
		out := i.Clone()
		for c := range out.Data {
			out.Data[c] = value.Normalize(value.F32, i.Data[c]-2*d.Float()*n.Data[c])
		}
		return out, nil
	case "transpose":
		err := checkArity(name, args, 1)
		if err != nil {
			return value.Value{}, err
		}
		m := args[0]
		if m.Type.Kind != value.KindMatrix {
			return value.Value{}, errors.Wrapf(ErrType, "transpose of %s", m.Type)
		}
		out := value.Zero(value.MatrixType(m.Type.Scalar, m.Type.Rows, m.Type.Cols))
		for c := 0; c < m.Type.Cols; c++ {
			for r := 0; r < m.Type.Rows; r++ {
				out.Data[r*m.Type.Cols+c] = m.At(c, r)
			}
		}
		return out, nil
	case "determinant":
		err := checkArity(name, args, 1)
		if err != nil {
			return value.Value{}, err
		}
		return determinant(args[0])
	}

	return value.Value{}, errors.Wrapf(ErrUndefined, "function %s", name)
}

func length(v value.Value) float32 {
	sum := float32(0)
	for _, c := range v.Data {
		sum += float32(c) * float32(c)
	}

	return math32.Sqrt(sum)
}

func determinant(m value.Value) (value.Value, error) {
	if m.Type.Kind != value.KindMatrix || m.Type.Cols != m.Type.Rows {
		return value.Value{}, errors.Wrapf(ErrType, "determinant of %s", m.Type)
	}

	at := func(c, r int) float64 { return m.At(c, r) }
	var d float64
	switch m.Type.Cols {
	case 2:
		d = at(0, 0)*at(1, 1) - at(1, 0)*at(0, 1)
	case 3:
		d = at(0, 0)*(at(1, 1)*at(2, 2)-at(2, 1)*at(1, 2)) -
			at(1, 0)*(at(0, 1)*at(2, 2)-at(2, 1)*at(0, 2)) +
			at(2, 0)*(at(0, 1)*at(1, 2)-at(1, 1)*at(0, 2))
	default:
		return value.Value{}, errors.Wrapf(ErrUnsupported, "determinant of %s", m.Type)
	}

	return value.NewScalar(value.F32, d), nil
}

// textureCall implements the sampling builtins over registry texel data.
// Sampling is nearest unless the texture filter is "linear", addressing repeats.
func (m *Machine) textureCall(name string, args []value.Value) (value.Value, error) {
	if len(args) == 0 || args[0].Type.Kind != value.KindHandle {
		return value.Value{}, errors.Wrapf(ErrType, "%s expects a texture", name)
	}
	if m.cfg.Resources == nil {
		return value.Value{}, errors.Wrapf(ErrUnsupported, "%s without resources", name)
	}
	view, err := m.cfg.Resources.Get(registry.Handle(args[0].Handle))
	if err != nil {
		return value.Value{}, errors.Wrapf(err, "%s", name)
	}
	desc := view.Descriptor

	switch name {
	case "textureDimensions":
		return value.NewVector(value.U32, float64(desc.Width), float64(desc.Height)), nil
	case "textureLoad":
		if len(args) < 2 {
			return value.Value{}, errors.Wrap(ErrType, "textureLoad expects coordinates")
		}
		c := args[1]
		if len(c.Data) < 2 {
			return value.Value{}, errors.Wrap(ErrType, "textureLoad expects 2D coordinates")
		}
		return texel(desc, int(c.Data[0]), int(c.Data[1])), nil
	case "textureSample", "textureSampleLevel", "textureSampleBias", "textureSampleGrad":
		if len(args) < 3 || len(args[2].Data) < 2 {
			return value.Value{}, errors.Wrapf(ErrType, "%s expects a texture, a sampler and coordinates", name)
		}
		u, v := float32(args[2].Data[0]), float32(args[2].Data[1])
		return sample(desc, u, v), nil
	default:
		return value.Value{}, errors.Wrapf(ErrUndefined, "function %s", name)
	}
}

func texel(desc registry.Descriptor, x, y int) value.Value {
	if desc.Width <= 0 || desc.Height <= 0 || len(desc.Pixels) < desc.Width*desc.Height*4 {
		return value.Vec4(0, 0, 0, 0)
	}
	x = clampIndex(x, desc.Width)
	y = clampIndex(y, desc.Height)
	i := (y*desc.Width + x) * 4

	return value.Vec4(desc.Pixels[i], desc.Pixels[i+1], desc.Pixels[i+2], desc.Pixels[i+3])
}

func wrapCoord(u float32) float32 {
	return u - math32.Floor(u)
}

func sample(desc registry.Descriptor, u, v float32) value.Value {
	if desc.Width <= 0 || desc.Height <= 0 {
		return value.Vec4(0, 0, 0, 0)
	}

	fx := wrapCoord(u)*float32(desc.Width) - 0.5
	fy := wrapCoord(v)*float32(desc.Height) - 0.5
	if desc.Filter != "linear" {
		return texel(desc, int(math32.Floor(fx+0.5)), int(math32.Floor(fy+0.5)))
	}

	x0, y0 := int(math32.Floor(fx)), int(math32.Floor(fy))
	tx, ty := fx-math32.Floor(fx), fy-math32.Floor(fy)
	wrapI := func(i, n int) int { return ((i % n) + n) % n }

	c00 := texel(desc, wrapI(x0, desc.Width), wrapI(y0, desc.Height))
	c10 := texel(desc, wrapI(x0+1, desc.Width), wrapI(y0, desc.Height))
	c01 := texel(desc, wrapI(x0, desc.Width), wrapI(y0+1, desc.Height))
	c11 := texel(desc, wrapI(x0+1, desc.Width), wrapI(y0+1, desc.Height))

	out := value.Vec4(0, 0, 0, 0)
	for i := range out.Data {
		top := float32(c00.Data[i])*(1-tx) + float32(c10.Data[i])*tx
		bottom := float32(c01.Data[i])*(1-tx) + float32(c11.Data[i])*tx
		out.Data[i] = float64(top*(1-ty) + bottom*ty)
	}

	return out
}
