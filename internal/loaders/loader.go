// SPDX-License-Identifier: MPL-2.0

package loaders

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/pkg/contentfs"
)

var (
	// ErrNoLoader is wrapped by UnknownExtensionError.
	ErrNoLoader = errors.New("no loader for extension")
	// ErrMissingInnerFile is returned when a packaged asset lacks a required file.
	ErrMissingInnerFile = errors.New("missing required inner file")
	// ErrLoaderPanic wraps a panic recovered by Safe.
	ErrLoaderPanic = errors.New("loader panicked")
	// ErrDuplicateExtension is returned when two loaders claim one extension.
	ErrDuplicateExtension = errors.New("extension already registered")
)

type (
	// Lookup resolves item references ("path" or "source:path") against the
	// items merged so far.
	Lookup interface {
		Lookup(ref string) (*content.Item, bool)
	}

	// Request is the input of one Load call. The structure stays open until
	// the returned sequence has been drained.
	Request struct {
		Entry     content.Entry
		Structure contentfs.Structure
		// Items may be nil for loaders that do not reference other items.
		Items Lookup
	}

	// Loader produces items for the extensions it claims. Each call to Load
	// returns a fresh sequence; nothing is read until it is iterated.
	Loader interface {
		Name() string
		Extensions() []string
		Load(ctx context.Context, req Request) iter.Seq[content.Result]
	}

	// UnknownExtensionError names an extension nobody can load. Loader is
	// set when a specific loader was asked and refused it.
	UnknownExtensionError struct {
		Ext    string
		Loader string
	}

	// Registry maps lower-case extensions to loaders.
	Registry struct {
		mu    sync.RWMutex
		byExt map[string]Loader
		order []Loader
	}
)

func (e *UnknownExtensionError) Error() string {
	ext := e.Ext
	if ext == "" {
		ext = "(none)"
	}
	if e.Loader != "" {
		return fmt.Sprintf("%s loader cannot handle extension %q", e.Loader, ext)
	}
	return fmt.Sprintf("no loader registered for extension %q", ext)
}

// Unwrap returns ErrNoLoader.
func (e *UnknownExtensionError) Unwrap() error { return ErrNoLoader }

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Loader)}
}

// Register adds l for each of its extensions. No extension may already be
// claimed by another loader.
func (r *Registry) Register(l Loader) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	exts := l.Extensions()
	for _, ext := range exts {
		ext = normalizeExt(ext)
		if prev, ok := r.byExt[ext]; ok {
			return fmt.Errorf("%w: %s claimed by %s and %s", ErrDuplicateExtension, ext, prev.Name(), l.Name())
		}
	}
	for _, ext := range exts {
		r.byExt[normalizeExt(ext)] = l
	}
	r.order = append(r.order, l)
	return nil
}

// MustRegister is Register for static setup.
func (r *Registry) MustRegister(l Loader) {
	if err := r.Register(l); err != nil {
		panic(err)
	}
}

// Lookup returns the loader for ext.
func (r *Registry) Lookup(ext string) (Loader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.byExt[normalizeExt(ext)]
	return l, ok
}

// Loaders returns the registered loaders in registration order.
func (r *Registry) Loaders() []Loader {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Extensions returns every registered extension, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// Dispatch loads req with the loader registered for its extension. An
// unregistered extension yields a single failure naming it.
func (r *Registry) Dispatch(ctx context.Context, req Request) iter.Seq[content.Result] {
	l, ok := r.Lookup(req.Entry.Ext())
	if !ok {
		return Fail(req.Entry, &UnknownExtensionError{Ext: req.Entry.Ext()})
	}
	return l.Load(ctx, req)
}

// Fail returns a sequence holding a single failure for entry.
func Fail(entry content.Entry, err error) iter.Seq[content.Result] {
	return func(yield func(content.Result) bool) {
		yield(content.Failed(entry, err))
	}
}

// Collect drains seq.
func Collect(seq iter.Seq[content.Result]) []content.Result {
	var out []content.Result
	for res := range seq {
		out = append(out, res)
	}
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func readEntry(ctx context.Context, req Request) ([]byte, error) {
	return contentfs.ReadEntry(ctx, req.Structure, req.Entry.Path)
}
