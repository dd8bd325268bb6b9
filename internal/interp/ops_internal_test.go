package interp

import (
	"testing"

	"github.com/gogpu/naga/wgsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-shaderpipe/pkg/value"
)

func TestBinary(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		op   wgsl.TokenKind
		a, b value.Value
		want value.Value
	}{
		"integer division truncates": {
			op: wgsl.TokenSlash, a: value.NewI32(-7), b: value.NewI32(2), want: value.NewI32(-3),
		},
		"integer division by zero keeps the dividend": {
			op: wgsl.TokenSlash, a: value.NewI32(5), b: value.NewI32(0), want: value.NewI32(5),
		},
		"unsigned subtraction wraps": {
			op: wgsl.TokenMinus, a: value.NewU32(0), b: value.NewU32(1), want: value.NewU32(4294967295),
		},
		"float remainder keeps the sign of the dividend": {
			op: wgsl.TokenPercent, a: value.NewF32(-5.5), b: value.NewF32(2), want: value.NewF32(-1.5),
		},
		"scalar broadcast": {
			op: wgsl.TokenStar, a: value.NewF32(2), b: value.Vec3(1, 2, 3), want: value.Vec3(2, 4, 6),
		},
		"abstract operand takes the concrete type": {
			op: wgsl.TokenPlus, a: value.NewScalar(value.AbstractInt, 1), b: value.NewU32(2), want: value.NewU32(3),
		},
		"componentwise comparison": {
			op: wgsl.TokenLess, a: value.Vec2(1, 3), b: value.Vec2(2, 2),
			want: value.NewVector(value.Bool, 1, 0),
		},
		"shift amount is masked": {
			op: wgsl.TokenLessLess, a: value.NewU32(1), b: value.NewU32(33), want: value.NewU32(2),
		},
		"matrix times vector": {
			op:   wgsl.TokenStar,
			a:    value.NewMatrix(2, 2, []float32{1, 2, 3, 4}),
			b:    value.Vec2(1, 1),
			want: value.Vec2(4, 6),
		},
		"vector times matrix": {
			op:   wgsl.TokenStar,
			a:    value.Vec2(1, 1),
			b:    value.NewMatrix(2, 2, []float32{1, 2, 3, 4}),
			want: value.Vec2(3, 7),
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := binary(tt.op, tt.a, tt.b)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestBinaryRejectsMismatchedShapes(t *testing.T) {
	t.Parallel()

	_, err := binary(wgsl.TokenPlus, value.Vec2(1, 2), value.Vec3(1, 2, 3))
	assert.ErrorIs(t, err, ErrType)

	_, err = binary(wgsl.TokenAmpersand, value.NewF32(1), value.NewF32(2))
	assert.ErrorIs(t, err, ErrType)
}

func TestUnary(t *testing.T) {
	t.Parallel()

	got, err := unary(wgsl.TokenMinus, value.Vec2(1, -2))
	require.NoError(t, err)
	assert.True(t, value.Vec2(-1, 2).Equal(got))

	got, err = unary(wgsl.TokenTilde, value.NewU32(0))
	require.NoError(t, err)
	assert.True(t, value.NewU32(4294967295).Equal(got))

	_, err = unary(wgsl.TokenTilde, value.NewF32(1))
	assert.ErrorIs(t, err, ErrType)
}
