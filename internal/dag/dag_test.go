// SPDX-License-Identifier: MPL-2.0

package dag

import (
	"errors"
	"slices"
	"testing"
)

func TestTopologicalSort_EmptyGraph(t *testing.T) {
	t.Parallel()
	order, err := New().TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order != nil {
		t.Errorf("expected nil, got %v", order)
	}
}

func TestTopologicalSort_Chain(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("base", "mod_a")
	g.AddEdge("mod_a", "mod_b")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"base", "mod_a", "mod_b"}; !slices.Equal(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestTopologicalSort_IndependentNodesKeepInsertionOrder(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddNode("zeta")
	g.AddNode("alpha")
	g.AddNode("mid")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"zeta", "alpha", "mid"}; !slices.Equal(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestTopologicalSort_Diamond(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("A", "B")
	g.AddEdge("A", "C")
	g.AddEdge("B", "D")
	g.AddEdge("C", "D")

	order, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"A", "B", "C", "D"}; !slices.Equal(order, want) {
		t.Errorf("expected %v, got %v", want, order)
	}
}

func TestTopologicalSort_Deterministic(t *testing.T) {
	t.Parallel()
	build := func() *Graph {
		g := New()
		for _, n := range []string{"a", "b", "c", "d", "e"} {
			g.AddNode(n)
		}
		g.AddEdge("a", "e")
		g.AddEdge("c", "e")
		g.AddEdge("b", "d")
		return g
	}

	first, err := build().TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for range 10 {
		again, err := build().TopologicalSort()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(first, again) {
			t.Fatalf("order changed between runs: %v vs %v", first, again)
		}
	}
}

func TestAddEdge_DuplicateIgnored(t *testing.T) {
	t.Parallel()
	g := New()
	g.AddEdge("a", "b")
	g.AddEdge("a", "b")

	if got := g.Successors("a"); !slices.Equal(got, []string{"b"}) {
		t.Errorf("expected single successor, got %v", got)
	}
}

func TestTopologicalSort_Cycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		edges     [][2]string
		wantCycle []string
	}{
		{
			name:      "self loop",
			edges:     [][2]string{{"a", "a"}},
			wantCycle: []string{"a", "a"},
		},
		{
			name:      "two nodes",
			edges:     [][2]string{{"a", "b"}, {"b", "a"}},
			wantCycle: []string{"a", "b", "a"},
		},
		{
			name:      "three nodes with tail",
			edges:     [][2]string{{"root", "x"}, {"x", "y"}, {"y", "z"}, {"z", "x"}, {"z", "leaf"}},
			wantCycle: []string{"x", "y", "z", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New()
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}

			_, err := g.TopologicalSort()
			var cycleErr *CycleError
			if !errors.As(err, &cycleErr) {
				t.Fatalf("expected CycleError, got %v", err)
			}
			if !slices.Equal(cycleErr.Cycle, tt.wantCycle) {
				t.Errorf("expected cycle %v, got %v", tt.wantCycle, cycleErr.Cycle)
			}
		})
	}
}

func TestCycleError_Members(t *testing.T) {
	t.Parallel()
	err := &CycleError{Cycle: []string{"a", "b", "a"}}
	if got := err.Members(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("expected [a b], got %v", got)
	}
	if got := err.Error(); got != "dependency cycle detected: a -> b -> a" {
		t.Errorf("unexpected message %q", got)
	}
}
