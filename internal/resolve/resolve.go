// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/dag"
)

var (
	// ErrMissingDependency is wrapped by MissingDependencyError.
	ErrMissingDependency = errors.New("missing dependency")
	// ErrDependencyCycle is wrapped by CycleError.
	ErrDependencyCycle = errors.New("dependency cycle")
	// ErrDuplicateSource is wrapped by DuplicateSourceError.
	ErrDuplicateSource = errors.New("duplicate source name")
)

type (
	// MissingDependencyError names a source and the dependency it declares
	// that no active source provides.
	MissingDependencyError struct {
		Source     string
		Dependency string
	}

	// CycleError lists the sources on a dependency cycle, as a closed path
	// in "depends on" direction.
	CycleError struct {
		Cycle []string
		cause *dag.CycleError
	}

	// DuplicateSourceError reports two sources with the same name.
	DuplicateSourceError struct {
		Name      string
		Locations []string
	}
)

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("source %q depends on %q, which was not found", e.Source, e.Dependency)
}

// Unwrap returns ErrMissingDependency.
func (e *MissingDependencyError) Unwrap() error { return ErrMissingDependency }

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDependencyCycle, strings.Join(e.Cycle, " -> "))
}

// Unwrap returns ErrDependencyCycle and the graph error.
func (e *CycleError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrDependencyCycle}
	}
	return []error{ErrDependencyCycle, e.cause}
}

// Members returns the distinct sources on the cycle.
func (e *CycleError) Members() []string {
	if len(e.Cycle) < 2 {
		return slices.Clone(e.Cycle)
	}
	return slices.Clone(e.Cycle[:len(e.Cycle)-1])
}

func (e *DuplicateSourceError) Error() string {
	return fmt.Sprintf("source name %q is used by %s", e.Name, strings.Join(e.Locations, " and "))
}

// Unwrap returns ErrDuplicateSource.
func (e *DuplicateSourceError) Unwrap() error { return ErrDuplicateSource }

// Resolve returns sources ordered so that each source's dependencies come
// before it. The result depends only on the set of sources, not on the order
// of the input slice.
func Resolve(sources []*content.Source) ([]*content.Source, error) {
	byName := make(map[string]*content.Source, len(sources))
	for _, src := range sources {
		if prev, ok := byName[src.Name()]; ok {
			return nil, &DuplicateSourceError{Name: src.Name(), Locations: []string{prev.Location, src.Location}}
		}
		byName[src.Name()] = src
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	// Descending insertion so that, after the reversal below, sources with
	// no edges at all come out in ascending name order.
	slices.Sort(names)
	slices.Reverse(names)

	g := dag.New()
	for _, name := range names {
		g.AddNode(name)
	}
	for _, name := range names {
		for _, dep := range byName[name].Dependencies() {
			if _, ok := byName[dep]; !ok {
				return nil, &MissingDependencyError{Source: name, Dependency: dep}
			}
			g.AddEdge(name, dep)
		}
	}

	// Edges point from dependent to dependency, so the sort lists dependents
	// first; the load order is its reverse.
	order, err := g.TopologicalSort()
	if err != nil {
		var cerr *dag.CycleError
		if errors.As(err, &cerr) {
			return nil, &CycleError{Cycle: cerr.Cycle, cause: cerr}
		}
		return nil, err
	}
	slices.Reverse(order)

	out := make([]*content.Source, len(order))
	for i, name := range order {
		out[i] = byName[name]
	}
	return out, nil
}

// Names returns the names of sources in order.
func Names(sources []*content.Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Name()
	}
	return out
}
