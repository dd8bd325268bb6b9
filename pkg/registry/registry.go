// Package registry owns GPU-side resources by stable handle.
//
// Handles are allocated from a monotonic counter and are never reused, so a
// stale handle can only ever resolve to ErrUnknownHandle.
package registry

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/askiada/go-shaderpipe/pkg/value"
)

// Handle identifies a resource. The zero handle is never allocated.
type Handle uint64

// Kind is the resource category.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindTexture
	KindBuffer
	KindSampler
	KindRenderTarget
)

var kindNames = map[Kind]string{
	KindTexture:      "texture",
	KindBuffer:       "buffer",
	KindSampler:      "sampler",
	KindRenderTarget: "render_target",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "invalid"
}

// ParseKind returns the kind matching name.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}

	return KindInvalid, errors.Wrapf(ErrInvalidKind, "%q", name)
}

// Descriptor describes a resource at creation time.
type Descriptor struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
	Format string `yaml:"format,omitempty"`
	Size   int    `yaml:"size,omitempty"`
	// Pixels holds RGBA texels in row-major order.
	Pixels []float32 `yaml:"pixels,omitempty,flow"`
	// Value is the typed content of a uniform or storage buffer.
	Value  *value.Value `yaml:"-"`
	Filter string       `yaml:"filter,omitempty"`
}

// View is a read-only snapshot of a resource.
type View struct {
	Handle     Handle
	Kind       Kind
	Descriptor Descriptor
	Refs       int
}

type entry struct {
	kind Kind
	desc Descriptor
	refs int
}

// Registry is an arena of reference counted resources.
type Registry struct {
	mu      sync.RWMutex
	next    Handle
	entries map[Handle]*entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[Handle]*entry),
	}
}

// Create allocates a resource. The caller holds the first reference.
func (r *Registry) Create(kind Kind, desc Descriptor) (Handle, error) {
	if _, ok := kindNames[kind]; !ok {
		return 0, errors.Wrapf(ErrInvalidKind, "kind %d", kind)
	}

	if kind == KindTexture || kind == KindRenderTarget {
		if desc.Width < 0 || desc.Height < 0 {
			return 0, errors.Wrapf(ErrInvalidDescriptor, "negative size %dx%d", desc.Width, desc.Height)
		}
		if len(desc.Pixels) > 0 && len(desc.Pixels) != desc.Width*desc.Height*4 {
			return 0, errors.Wrapf(ErrInvalidDescriptor, "%dx%d texture expects %d components, got %d",
				desc.Width, desc.Height, desc.Width*desc.Height*4, len(desc.Pixels))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	h := r.next
	r.entries[h] = &entry{kind: kind, desc: cloneDescriptor(desc), refs: 1}

	return h, nil
}

// Retain adds a reference to h.
func (r *Registry) Retain(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[h]
	if !ok {
		return errors.Wrapf(ErrUnknownHandle, "retain %d", h)
	}
	e.refs++

	return nil
}

// Release drops a reference to h and frees the resource when none remain.
func (r *Registry) Release(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[h]
	if !ok {
		return errors.Wrapf(ErrUnknownHandle, "release %d", h)
	}
	e.refs--
	if e.refs <= 0 {
		delete(r.entries, h)
	}

	return nil
}

// Get returns a view of h.
func (r *Registry) Get(h Handle) (View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[h]
	if !ok {
		return View{}, errors.Wrapf(ErrUnknownHandle, "get %d", h)
	}

	return View{Handle: h, Kind: e.kind, Descriptor: cloneDescriptor(e.desc), Refs: e.refs}, nil
}

// Exists reports whether h resolves to a live resource.
func (r *Registry) Exists(h Handle) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.entries[h]

	return ok
}

// Len returns the number of live resources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

func cloneDescriptor(d Descriptor) Descriptor {
	out := d
	if d.Pixels != nil {
		out.Pixels = make([]float32, len(d.Pixels))
		copy(out.Pixels, d.Pixels)
	}
	if d.Value != nil {
		v := d.Value.Clone()
		out.Value = &v
	}

	return out
}
