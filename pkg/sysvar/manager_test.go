package sysvar_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-shaderpipe/pkg/sysvar"
	"github.com/askiada/go-shaderpipe/pkg/value"
)

func TestRegister(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		name    string
		typ     value.Type
		initial value.Value
		wantErr error
	}{
		"new variable": {
			name: "Exposure", typ: value.ScalarType(value.F32), initial: value.NewF32(1),
		},
		"same type again": {
			name: sysvar.Time, typ: value.ScalarType(value.F32), initial: value.NewF32(3),
		},
		"different type": {
			name: sysvar.Time, typ: value.VectorType(value.F32, 2), initial: value.Vec2(0, 0),
			wantErr: sysvar.ErrDuplicateName,
		},
		"initial does not match": {
			name: "Exposure", typ: value.ScalarType(value.F32), initial: value.NewU32(1),
			wantErr: sysvar.ErrTypeMismatch,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			m := sysvar.New()
			err := m.Register(tc.name, tc.typ, tc.initial)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)

			typ, ok := m.Type(tc.name)
			require.True(t, ok)
			assert.True(t, typ.Equal(tc.typ))
		})
	}
}

func TestBuiltins(t *testing.T) {
	t.Parallel()

	m := sysvar.New()
	snap := m.Snapshot()
	names := []string{
		sysvar.Time, sysvar.TimeDelta, sysvar.FrameIndex, sysvar.MousePosition, sysvar.Mouse,
		sysvar.ViewportSize, sysvar.CameraPosition, sysvar.View, sysvar.Projection,
		sysvar.ViewProjection, sysvar.KeysWASD,
	}
	assert.Len(t, snap.Names(), len(names))
	for _, name := range names {
		typ, ok := m.Type(name)
		require.True(t, ok, name)
		v, ok := snap.Get(name)
		require.True(t, ok, name)
		assert.True(t, typ.Equal(v.Type), name)
	}
}

func TestRegisterKeepsExistingValue(t *testing.T) {
	t.Parallel()

	m := sysvar.New()
	require.NoError(t, m.Tick(2*time.Second, sysvar.InputState{}))
	require.NoError(t, m.Register(sysvar.Time, value.ScalarType(value.F32), value.NewF32(0)))

	got, err := m.Get(sysvar.Time)
	require.NoError(t, err)
	assert.InDelta(t, 2, got.Float(), 1e-6)
}

func TestTick(t *testing.T) {
	t.Parallel()

	m := sysvar.New()
	in := sysvar.InputState{MouseX: 10, MouseY: 20, ViewportWidth: 800, ViewportHeight: 600, Keys: [4]bool{true}}

	require.NoError(t, m.Tick(500*time.Millisecond, in))
	require.NoError(t, m.Tick(250*time.Millisecond, in))

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.Frame())

	tm, ok := snap.Get(sysvar.Time)
	require.True(t, ok)
	assert.InDelta(t, 0.75, tm.Float(), 1e-6)

	dt, ok := snap.Get(sysvar.TimeDelta)
	require.True(t, ok)
	assert.InDelta(t, 0.25, dt.Float(), 1e-6)

	frame, ok := snap.Get(sysvar.FrameIndex)
	require.True(t, ok)
	assert.Equal(t, int64(2), frame.Int())

	size, ok := snap.Get(sysvar.ViewportSize)
	require.True(t, ok)
	assert.Equal(t, []float64{800, 600}, size.Data)

	keys, ok := snap.Get(sysvar.KeysWASD)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 0, 0, 0}, keys.Data)
}

func TestMouseFollowsClicks(t *testing.T) {
	t.Parallel()

	m := sysvar.New()
	require.NoError(t, m.Tick(time.Millisecond, sysvar.InputState{MouseX: 5, MouseY: 6, MouseDown: true}))
	require.NoError(t, m.Tick(time.Millisecond, sysvar.InputState{MouseX: 7, MouseY: 8, MouseDown: true}))

	held, err := m.Get(sysvar.Mouse)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8, 5, 6}, held.Data)

	require.NoError(t, m.Tick(time.Millisecond, sysvar.InputState{MouseX: 50, MouseY: 60}))

	released, err := m.Get(sysvar.Mouse)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8, -5, -6}, released.Data)
}

func TestCameraMatrices(t *testing.T) {
	t.Parallel()

	m := sysvar.New()
	require.NoError(t, m.Tick(time.Millisecond, sysvar.InputState{ViewportWidth: 100, ViewportHeight: 100}))

	view, err := m.Get(sysvar.View)
	require.NoError(t, err)
	// default camera sits at z=5 looking at the origin
	assert.InDelta(t, 1, view.At(0, 0), 1e-6)
	assert.InDelta(t, -5, view.At(3, 2), 1e-6)
	assert.InDelta(t, 1, view.At(3, 3), 1e-6)

	proj, err := m.Get(sysvar.Projection)
	require.NoError(t, err)
	assert.InDelta(t, -1, proj.At(2, 3), 1e-6)

	viewProj, err := m.Get(sysvar.ViewProjection)
	require.NoError(t, err)
	assert.Equal(t, "mat4x4<f32>", viewProj.Type.String())
}

func TestProvide(t *testing.T) {
	t.Parallel()

	m := sysvar.New()
	require.NoError(t, m.Provide("Pulse", value.ScalarType(value.F32), func(prev *sysvar.Snapshot, _ sysvar.InputState) value.Value {
		last, _ := prev.Get("Pulse")
		return value.NewF32(float32(last.Float()) + 1)
	}))
	require.NoError(t, m.Provide("Broken", value.ScalarType(value.F32), func(*sysvar.Snapshot, sysvar.InputState) value.Value {
		return value.NewU32(1)
	}))

	err := m.Tick(time.Millisecond, sysvar.InputState{})
	assert.ErrorIs(t, err, sysvar.ErrTypeMismatch)
	err = m.Tick(time.Millisecond, sysvar.InputState{})
	assert.ErrorIs(t, err, sysvar.ErrTypeMismatch)

	pulse, err := m.Get("Pulse")
	require.NoError(t, err)
	assert.Equal(t, float64(2), pulse.Float())

	broken, err := m.Get("Broken")
	require.NoError(t, err)
	assert.Equal(t, "f32", broken.Type.String())
}

func TestGetUnknown(t *testing.T) {
	t.Parallel()

	_, err := sysvar.New().Get("Nope")
	assert.ErrorIs(t, err, sysvar.ErrUnknownVariable)
}

func TestSnapshotIsImmutable(t *testing.T) {
	t.Parallel()

	m := sysvar.New()
	require.NoError(t, m.Tick(time.Second, sysvar.InputState{}))
	before := m.Snapshot()

	require.NoError(t, m.Tick(time.Second, sysvar.InputState{}))

	tm, ok := before.Get(sysvar.Time)
	require.True(t, ok)
	assert.InDelta(t, 1, tm.Float(), 1e-6)

	tm.Data[0] = 42
	again, _ := before.Get(sysvar.Time)
	assert.InDelta(t, 1, again.Float(), 1e-6)
}

func TestConcurrentReadsDuringTick(t *testing.T) {
	t.Parallel()

	m := sysvar.New()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			assert.NoError(t, m.Tick(time.Millisecond, sysvar.InputState{}))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				snap := m.Snapshot()
				_, ok := snap.Get(sysvar.Time)
				assert.True(t, ok)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, uint64(100), m.Snapshot().Frame())
}
