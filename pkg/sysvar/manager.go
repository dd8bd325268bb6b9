// Package sysvar maintains the per-frame table of system variables.
//
// The Manager is the single writer: Tick builds a new immutable Snapshot and
// publishes it atomically, readers always see a complete frame.
package sysvar

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/value"
)

// Built-in variable names.
const (
	Time           = "Time"
	TimeDelta      = "TimeDelta"
	FrameIndex     = "FrameIndex"
	MousePosition  = "MousePosition"
	Mouse          = "Mouse"
	ViewportSize   = "ViewportSize"
	CameraPosition = "CameraPosition"
	View           = "View"
	Projection     = "Projection"
	ViewProjection = "ViewProjection"
	KeysWASD       = "KeysWASD"
)

// InputState is the user input sampled for a frame.
type InputState struct {
	MouseX, MouseY float32
	MouseDown      bool
	ViewportWidth  float32
	ViewportHeight float32
	// Keys holds the W, A, S, D pressed states.
	Keys   [4]bool
	Camera Camera
}

// Provider computes a user variable for the frame being built.
type Provider func(prev *Snapshot, in InputState) value.Value

// Snapshot is an immutable view of every variable for one frame.
type Snapshot struct {
	frame  uint64
	values map[string]value.Value
}

// Frame returns the index of the tick that produced the snapshot.
func (s *Snapshot) Frame() uint64 {
	return s.frame
}

// Get returns a copy of the named value.
func (s *Snapshot) Get(name string) (value.Value, bool) {
	v, ok := s.values[name]
	if !ok {
		return value.Value{}, false
	}

	return v.Clone(), true
}

// Names returns the variable names in lexical order.
func (s *Snapshot) Names() []string {
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Values returns a copy of every value.
func (s *Snapshot) Values() map[string]value.Value {
	out := make(map[string]value.Value, len(s.values))
	for name, v := range s.values {
		out[name] = v.Clone()
	}

	return out
}

// Manager owns the system variable table.
type Manager struct {
	mu        sync.Mutex
	current   atomic.Pointer[Snapshot]
	types     map[string]value.Type
	providers map[string]Provider
	logger    *slog.Logger

	elapsed   time.Duration
	frame     uint64
	wasDown   bool
	click     [2]float32
	lastMouse [2]float32
}

// Option configures a Manager.
type Option func(m *Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New creates a manager with the built-in variables registered.
func New(opts ...Option) *Manager {
	m := &Manager{
		types:     make(map[string]value.Type),
		providers: make(map[string]Provider),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	values := builtins()
	for name, initial := range values {
		m.types[name] = initial.Type
	}
	m.current.Store(&Snapshot{values: values})

	return m
}

func builtins() map[string]value.Value {
	return map[string]value.Value{
		Time:           value.NewF32(0),
		TimeDelta:      value.NewF32(0),
		FrameIndex:     value.NewU32(0),
		MousePosition:  value.Vec2(0, 0),
		Mouse:          value.Vec4(0, 0, 0, 0),
		ViewportSize:   value.Vec2(0, 0),
		CameraPosition: value.Vec3(0, 0, 0),
		View:           value.Zero(value.MatrixType(value.F32, 4, 4)),
		Projection:     value.Zero(value.MatrixType(value.F32, 4, 4)),
		ViewProjection: value.Zero(value.MatrixType(value.F32, 4, 4)),
		KeysWASD:       value.Vec4(0, 0, 0, 0),
	}
}

// Register declares a variable. Registering an existing name with the same
// type is a no-op, with a different type it fails with ErrDuplicateName.
func (m *Manager) Register(name string, t value.Type, initial value.Value) error {
	if !initial.Type.Equal(t) {
		return errors.Wrapf(ErrTypeMismatch, "%s declared as %s, initial value is %s", name, t, initial.Type)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.types[name]; ok {
		if !existing.Equal(t) {
			return errors.Wrapf(ErrDuplicateName, "%s already registered as %s", name, existing)
		}
		return nil
	}

	m.types[name] = t

	prev := m.current.Load()
	next := &Snapshot{frame: prev.frame, values: make(map[string]value.Value, len(prev.values)+1)}
	for k, v := range prev.values {
		next.values[k] = v
	}
	next.values[name] = initial.Clone()
	m.current.Store(next)

	return nil
}

// Provide registers a variable refreshed by fn on every tick.
func (m *Manager) Provide(name string, t value.Type, fn Provider) error {
	err := m.Register(name, t, value.Zero(t))
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = fn

	return nil
}

// Tick advances the clock and publishes a new snapshot. Providers returning a
// value of the wrong type keep their previous value and are reported.
func (m *Manager) Tick(delta time.Duration, in InputState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.current.Load()
	next := &Snapshot{frame: m.frame, values: make(map[string]value.Value, len(prev.values))}
	for k, v := range prev.values {
		next.values[k] = v
	}

	m.elapsed += delta
	m.frame++
	next.frame = m.frame

	next.values[Time] = value.NewF32(float32(m.elapsed.Seconds()))
	next.values[TimeDelta] = value.NewF32(float32(delta.Seconds()))
	next.values[FrameIndex] = value.NewU32(uint32(m.frame))
	next.values[MousePosition] = value.Vec2(in.MouseX, in.MouseY)
	next.values[Mouse] = m.mouse(in)
	next.values[ViewportSize] = value.Vec2(in.ViewportWidth, in.ViewportHeight)
	next.values[KeysWASD] = keys(in.Keys)
	m.camera(next, in)

	var failed []string
	for name, fn := range m.providers {
		v := fn(prev, in)
		if !v.Type.Equal(m.types[name]) {
			failed = append(failed, name)
			continue
		}
		next.values[name] = v.Clone()
	}

	m.current.Store(next)

	if len(failed) > 0 {
		sort.Strings(failed)
		m.logger.Warn("system variable providers returned the wrong type", "variables", failed, "frame", m.frame)
		return errors.Wrapf(ErrTypeMismatch, "providers %v", failed)
	}

	return nil
}

// mouse follows the Shadertoy convention: xy is the position while the button
// is held, zw the last click position, negated once the button is released.
func (m *Manager) mouse(in InputState) value.Value {
	if in.MouseDown {
		if !m.wasDown {
			m.click = [2]float32{in.MouseX, in.MouseY}
		}
		m.lastMouse = [2]float32{in.MouseX, in.MouseY}
	}
	m.wasDown = in.MouseDown

	z, w := m.click[0], m.click[1]
	if !in.MouseDown {
		z, w = -z, -w
	}

	return value.Vec4(m.lastMouse[0], m.lastMouse[1], z, w)
}

func (m *Manager) camera(next *Snapshot, in InputState) {
	cam := in.Camera
	if cam.isZero() {
		cam = DefaultCamera()
	}

	aspect := float32(1)
	if in.ViewportHeight > 0 {
		aspect = in.ViewportWidth / in.ViewportHeight
	}

	view := lookAt(cam.Position, cam.Target, cam.Up)
	proj := perspective(cam.FovY, aspect, cam.Near, cam.Far)
	viewProj := mul4(proj, view)

	next.values[CameraPosition] = value.Vec3(cam.Position[0], cam.Position[1], cam.Position[2])
	next.values[View] = value.NewMatrix(4, 4, view[:])
	next.values[Projection] = value.NewMatrix(4, 4, proj[:])
	next.values[ViewProjection] = value.NewMatrix(4, 4, viewProj[:])
}

func keys(k [4]bool) value.Value {
	out := [4]float32{}
	for i, down := range k {
		if down {
			out[i] = 1
		}
	}

	return value.Vec4(out[0], out[1], out[2], out[3])
}

// Get returns the latest committed value of name. It never blocks on Tick.
func (m *Manager) Get(name string) (value.Value, error) {
	v, ok := m.current.Load().Get(name)
	if !ok {
		return value.Value{}, errors.Wrapf(ErrUnknownVariable, "%s", name)
	}

	return v, nil
}

// Snapshot returns the latest committed snapshot.
func (m *Manager) Snapshot() *Snapshot {
	return m.current.Load()
}

// Type returns the registered type of name.
func (m *Manager) Type(name string) (value.Type, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.types[name]

	return t, ok
}
