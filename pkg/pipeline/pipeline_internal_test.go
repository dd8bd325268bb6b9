package pipeline

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-shaderpipe/pkg/registry"
)

func TestRetainAllRollsBack(t *testing.T) {
	t.Parallel()

	reg := registry.New()
	p := &Pipeline{registry: reg, logger: slog.Default()}

	first, err := reg.Create(registry.KindTexture, registry.Descriptor{Name: "a"})
	require.NoError(t, err)
	second, err := reg.Create(registry.KindTexture, registry.Descriptor{Name: "b"})
	require.NoError(t, err)
	require.NoError(t, reg.Release(second))

	err = p.retainAll([]registry.Handle{first, second})
	require.ErrorIs(t, err, registry.ErrUnknownHandle)

	view, err := reg.Get(first)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Refs)

	require.NoError(t, p.retainAll([]registry.Handle{first, first}))
	view, err = reg.Get(first)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Refs)
}
