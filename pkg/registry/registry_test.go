package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-shaderpipe/pkg/registry"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	h, err := reg.Create(registry.KindTexture, registry.Descriptor{
		Name:   "noise",
		Width:  1,
		Height: 1,
		Pixels: []float32{1, 0, 0, 1},
	})
	require.NoError(t, err)

	view, err := reg.Get(h)
	require.NoError(t, err)
	assert.Equal(t, registry.KindTexture, view.Kind)
	assert.Equal(t, "noise", view.Descriptor.Name)
	assert.Equal(t, 1, view.Refs)

	view.Descriptor.Pixels[0] = 0
	again, err := reg.Get(h)
	require.NoError(t, err)
	assert.Equal(t, float32(1), again.Descriptor.Pixels[0])
}

func TestHandlesAreNeverReused(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	first, err := reg.Create(registry.KindBuffer, registry.Descriptor{Name: "a"})
	require.NoError(t, err)
	require.NoError(t, reg.Release(first))

	second, err := reg.Create(registry.KindBuffer, registry.Descriptor{Name: "b"})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = reg.Get(first)
	assert.ErrorIs(t, err, registry.ErrUnknownHandle)
}

func TestRefCounting(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	h, err := reg.Create(registry.KindSampler, registry.Descriptor{Name: "linear", Filter: "linear"})
	require.NoError(t, err)
	require.NoError(t, reg.Retain(h))

	require.NoError(t, reg.Release(h))
	assert.True(t, reg.Exists(h))

	require.NoError(t, reg.Release(h))
	assert.False(t, reg.Exists(h))
	assert.Equal(t, 0, reg.Len())

	assert.ErrorIs(t, reg.Release(h), registry.ErrUnknownHandle)
	assert.ErrorIs(t, reg.Retain(h), registry.ErrUnknownHandle)
}

func TestCreateInvalid(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		kind    registry.Kind
		desc    registry.Descriptor
		wantErr error
	}{
		"unknown kind": {kind: registry.KindInvalid, wantErr: registry.ErrInvalidKind},
		"pixel count": {
			kind:    registry.KindTexture,
			desc:    registry.Descriptor{Width: 2, Height: 2, Pixels: []float32{1, 1, 1, 1}},
			wantErr: registry.ErrInvalidDescriptor,
		},
		"negative size": {
			kind:    registry.KindRenderTarget,
			desc:    registry.Descriptor{Width: -1},
			wantErr: registry.ErrInvalidDescriptor,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := registry.New().Create(tc.kind, tc.desc)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestBufferValueIsCopied(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	v := value.Vec2(1, 2)
	h, err := reg.Create(registry.KindBuffer, registry.Descriptor{Name: "params", Value: &v})
	require.NoError(t, err)

	v.Data[0] = 9
	view, err := reg.Get(h)
	require.NoError(t, err)
	require.NotNil(t, view.Descriptor.Value)
	assert.Equal(t, float64(1), view.Descriptor.Value.Data[0])
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	k, err := registry.ParseKind("render_target")
	require.NoError(t, err)
	assert.Equal(t, registry.KindRenderTarget, k)

	_, err = registry.ParseKind("mesh")
	assert.ErrorIs(t, err, registry.ErrInvalidKind)
}
