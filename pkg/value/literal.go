package value

import (
	"github.com/pkg/errors"
)

// Literal is the serialised form of a scalar, vector or matrix value.
type Literal struct {
	Type string    `yaml:"type" json:"type"`
	Data []float64 `yaml:"data,flow" json:"data"`
}

// ToLiteral converts a numeric value to its serialised form.
func ToLiteral(v Value) (Literal, error) {
	switch v.Type.Kind {
	case KindScalar, KindVector, KindMatrix:
	default:
		return Literal{}, errors.Wrapf(ErrInvalidType, "%s cannot be serialised", v.Type)
	}

	data := make([]float64, len(v.Data))
	copy(data, v.Data)

	return Literal{Type: v.Type.String(), Data: data}, nil
}

// FromLiteral parses a serialised value.
func FromLiteral(l Literal) (Value, error) {
	t, err := ParseType(l.Type)
	if err != nil {
		return Value{}, errors.Wrap(err, "unable to parse literal type")
	}

	if len(l.Data) != t.Components() {
		return Value{}, errors.Wrapf(ErrInvalidType, "%s expects %d components, got %d", t, t.Components(), len(l.Data))
	}

	v := Zero(t)
	for i, c := range l.Data {
		v.Data[i] = Normalize(t.Scalar, c)
	}

	return v, nil
}
