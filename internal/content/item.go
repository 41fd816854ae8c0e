// SPDX-License-Identifier: MPL-2.0

package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/invowk/contentpipe/internal/glctx"
)

// GL lifecycle states.
const (
	GLUninitialized GLState = iota
	GLInitialized
	GLDestroyed
)

var (
	// ErrLifecycleViolation is wrapped by LifecycleError.
	ErrLifecycleViolation = errors.New("gpu lifecycle violation")
	// ErrNotGPUBacked is returned by GL transitions on items without GPU resources.
	ErrNotGPUBacked = errors.New("item is not gpu-backed")
	// ErrKindMismatch is returned when a payload update changes the item kind.
	ErrKindMismatch = errors.New("payload kind mismatch")
	// ErrReleased is returned when updating an item that was released.
	ErrReleased = errors.New("item released")
	// ErrNoGPU is returned when a GL transition is requested without a GPU
	// thread.
	ErrNoGPU = errors.New("no gpu thread")
)

type (
	// ID is an item identifier: the entry path it was loaded from, or a path
	// with a "#fragment" for items derived from a combined entry.
	ID string

	// GLState is the GPU lifecycle state of an item.
	GLState int32

	// GPU executes jobs on the thread that owns the graphics context.
	GPU interface {
		Do(ctx context.Context, fn func(glctx.Device) error) error
	}

	// GLHandles are the GPU objects of an initialized item.
	GLHandles struct {
		Object   glctx.Handle
		Uniforms map[string]int32
	}

	// LifecycleError reports a GL transition attempted from the wrong state.
	LifecycleError struct {
		ID    ID
		Op    string
		State GLState
	}

	// Item is a loaded asset. The Item value is stable across reloads; its
	// payload and GPU handles are swapped in place.
	Item struct {
		id     ID
		source string
		kind   Kind

		// mu serializes writers: lifecycle transitions and payload updates.
		mu      sync.Mutex
		payload atomic.Pointer[Payload]

		glState atomic.Int32
		glMu    sync.Mutex
		handles GLHandles
	}
)

// String returns the lower-case state name.
func (s GLState) String() string {
	switch s {
	case GLUninitialized:
		return "uninitialized"
	case GLInitialized:
		return "initialized"
	case GLDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("glstate(%d)", int32(s))
	}
}

// Error implements the error interface.
func (e *LifecycleError) Error() string {
	return fmt.Sprintf("%s: %s not allowed while %s", e.ID, e.Op, e.State)
}

// Unwrap returns ErrLifecycleViolation.
func (e *LifecycleError) Unwrap() error { return ErrLifecycleViolation }

// SplitRef splits "source:path" into its parts. A ref without a source
// returns an empty source.
func SplitRef(ref string) (source string, id ID) {
	if src, p, ok := strings.Cut(ref, ":"); ok {
		return src, ID(p)
	}
	return "", ID(ref)
}

// NewItem creates an item owned by source.
func NewItem(id ID, source string, p Payload) *Item {
	it := &Item{id: id, source: source, kind: p.Kind()}
	it.payload.Store(&p)
	return it
}

// ID returns the item identifier.
func (it *Item) ID() ID { return it.id }

// Source returns the name of the owning source.
func (it *Item) Source() string { return it.source }

// QualifiedID returns "source:id".
func (it *Item) QualifiedID() string { return it.source + ":" + string(it.id) }

// Kind returns the payload kind.
func (it *Item) Kind() Kind { return it.kind }

// IsGPUBacked reports whether the item owns GPU resources.
func (it *Item) IsGPUBacked() bool { return it.kind.GPUBacked() }

// Payload returns the current payload, or nil once released.
func (it *Item) Payload() Payload {
	p := it.payload.Load()
	if p == nil {
		return nil
	}
	return *p
}

// GLState returns the last completed lifecycle state (lock-free).
func (it *Item) GLState() GLState { return GLState(it.glState.Load()) }

// IsGLInitialized reports whether GPU resources are live (lock-free).
func (it *Item) IsGLInitialized() bool { return it.GLState() == GLInitialized }

// Handles returns the GPU handles while initialized.
func (it *Item) Handles() (GLHandles, bool) {
	it.glMu.Lock()
	defer it.glMu.Unlock()
	if !it.IsGLInitialized() {
		return GLHandles{}, false
	}
	return it.handles, true
}

func (it *Item) violation(op string) error {
	return &LifecycleError{ID: it.id, Op: op, State: it.GLState()}
}

func (it *Item) noGPU(op string) error {
	return fmt.Errorf("%w: %w", it.violation(op), ErrNoGPU)
}

// Update replaces the payload of an item without GPU resources.
// GPU-backed items must go through OnContentUpdated.
func (it *Item) Update(p Payload) error {
	if p.Kind() != it.kind {
		return fmt.Errorf("%w: %s item given %s payload", ErrKindMismatch, it.kind, p.Kind())
	}
	if it.IsGPUBacked() {
		return fmt.Errorf("%s: %w; use OnContentUpdated", it.id, ErrLifecycleViolation)
	}
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.GLState() == GLDestroyed {
		return ErrReleased
	}
	it.payload.Store(&p)
	return nil
}

// InitGL allocates GPU resources for the current payload. Valid only while
// Uninitialized.
func (it *Item) InitGL(ctx context.Context, gpu GPU) error {
	if !it.IsGPUBacked() {
		return fmt.Errorf("%s: %w", it.id, ErrNotGPUBacked)
	}
	if gpu == nil {
		return it.noGPU("InitGL")
	}
	it.mu.Lock()
	defer it.mu.Unlock()

	return gpu.Do(ctx, func(dev glctx.Device) error {
		if it.GLState() != GLUninitialized {
			return it.violation("InitGL")
		}
		return it.create(dev, it.Payload())
	})
}

// DestroyGL releases GPU resources. Valid only while Initialized.
func (it *Item) DestroyGL(ctx context.Context, gpu GPU) error {
	if !it.IsGPUBacked() {
		return fmt.Errorf("%s: %w", it.id, ErrNotGPUBacked)
	}
	if gpu == nil {
		return it.noGPU("DestroyGL")
	}
	it.mu.Lock()
	defer it.mu.Unlock()

	return gpu.Do(ctx, func(dev glctx.Device) error {
		if it.GLState() != GLInitialized {
			return it.violation("DestroyGL")
		}
		return it.destroy(dev)
	})
}

// OnContentUpdated swaps in a reloaded payload. For GPU-backed items the new
// resources are built before the old ones are deleted, in a single GPU job
// while the item lock is held, so Handles never returns a deleted object and
// IsGLInitialized stays true across the swap. If the new payload fails to
// build, the item keeps its previous payload and resources. An item that was
// never initialized is initialized with the new payload, or only has its
// payload replaced when gpu is nil.
func (it *Item) OnContentUpdated(ctx context.Context, gpu GPU, p Payload) error {
	if p.Kind() != it.kind {
		return fmt.Errorf("%w: %s item given %s payload", ErrKindMismatch, it.kind, p.Kind())
	}
	if !it.IsGPUBacked() {
		return it.Update(p)
	}
	it.mu.Lock()
	defer it.mu.Unlock()

	if gpu == nil {
		// Without a GPU thread only never-initialized items can change.
		if st := it.GLState(); st != GLUninitialized {
			return it.noGPU("OnContentUpdated")
		}
		it.payload.Store(&p)
		return nil
	}

	return gpu.Do(ctx, func(dev glctx.Device) error {
		switch it.GLState() {
		case GLDestroyed:
			return it.violation("OnContentUpdated")
		case GLUninitialized:
			it.payload.Store(&p)
			return it.create(dev, p)
		}

		h, err := it.build(dev, p)
		if err != nil {
			return err
		}
		it.glMu.Lock()
		old := it.handles
		it.handles = h
		it.glMu.Unlock()
		it.payload.Store(&p)

		if err := it.deleteObject(dev, old.Object); err != nil {
			return fmt.Errorf("destroy previous %s: %w", it.id, err)
		}
		return nil
	})
}

// Release frees GPU resources if any and marks the item Destroyed. Releasing
// twice is a no-op. gpu may be nil unless the item is initialized.
func (it *Item) Release(ctx context.Context, gpu GPU) error {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.GLState() == GLDestroyed {
		return nil
	}

	var err error
	if it.IsGLInitialized() {
		if gpu == nil {
			return it.noGPU("Release")
		}
		err = gpu.Do(context.WithoutCancel(ctx), func(dev glctx.Device) error {
			if it.GLState() != GLInitialized {
				return nil
			}
			return it.destroy(dev)
		})
	}
	it.payload.Store(nil)
	it.glState.Store(int32(GLDestroyed))
	return err
}

// create runs on the GPU thread. The state only moves forward from
// Uninitialized; if the item was released meanwhile the new object is
// deleted again.
func (it *Item) create(dev glctx.Device, p Payload) error {
	h, err := it.build(dev, p)
	if err != nil {
		return err
	}
	it.glMu.Lock()
	it.handles = h
	it.glMu.Unlock()
	if !it.glState.CompareAndSwap(int32(GLUninitialized), int32(GLInitialized)) {
		it.glMu.Lock()
		it.handles = GLHandles{}
		it.glMu.Unlock()
		_ = it.deleteObject(dev, h.Object)
		return it.violation("InitGL")
	}
	return nil
}

func (it *Item) build(dev glctx.Device, p Payload) (GLHandles, error) {
	var h GLHandles
	var err error

	switch p := p.(type) {
	case *Texture:
		h.Object, err = dev.CreateTexture(p.Width, p.Height, p.Pix)
	case *Font:
		if p.Atlas == nil {
			return h, fmt.Errorf("%s: font has no atlas", it.id)
		}
		h.Object, err = dev.CreateTexture(p.Atlas.Width, p.Atlas.Height, p.Atlas.Pix)
	case *Shader:
		h.Object, err = dev.CompileShader(p.Stage, p.Format, p.Source)
	case *Program:
		h, err = linkProgram(dev, p)
	default:
		return h, fmt.Errorf("%s: %w", it.id, ErrNotGPUBacked)
	}
	if err != nil {
		return GLHandles{}, fmt.Errorf("init %s: %w", it.id, err)
	}
	return h, nil
}

// destroy runs on the GPU thread. Handles are cleared even if the device
// reports an error, so they are never used again.
func (it *Item) destroy(dev glctx.Device) error {
	it.glMu.Lock()
	h := it.handles
	it.glMu.Unlock()
	it.clear()

	if err := it.deleteObject(dev, h.Object); err != nil {
		return fmt.Errorf("destroy %s: %w", it.id, err)
	}
	return nil
}

func (it *Item) clear() {
	it.glMu.Lock()
	it.handles = GLHandles{}
	it.glMu.Unlock()
	it.glState.Store(int32(GLUninitialized))
}

func (it *Item) deleteObject(dev glctx.Device, h glctx.Handle) error {
	switch it.kind {
	case KindTexture, KindFont:
		return dev.DeleteTexture(h)
	case KindShader:
		return dev.DeleteShader(h)
	case KindProgram:
		return dev.DeleteProgram(h)
	}
	return nil
}

func linkProgram(dev glctx.Device, p *Program) (GLHandles, error) {
	shaders := make([]glctx.Handle, 0, len(p.Stages))
	for _, st := range p.Stages {
		if st.Shader == nil {
			return GLHandles{}, fmt.Errorf("%s stage %s is unresolved", st.Stage, st.Ref)
		}
		sh, ok := st.Shader.Handles()
		if !ok {
			return GLHandles{}, fmt.Errorf("%s stage %s is not initialized", st.Stage, st.Ref)
		}
		shaders = append(shaders, sh.Object)
	}

	prog, err := dev.LinkProgram(shaders, p.Attributes)
	if err != nil {
		return GLHandles{}, err
	}
	h := GLHandles{Object: prog, Uniforms: make(map[string]int32, len(p.Uniforms))}
	for _, name := range p.Uniforms {
		loc, err := dev.UniformLocation(prog, name)
		if err != nil {
			_ = dev.DeleteProgram(prog)
			return GLHandles{}, fmt.Errorf("uniform %s: %w", name, err)
		}
		h.Uniforms[name] = loc
	}
	return h, nil
}
