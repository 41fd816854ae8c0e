// SPDX-License-Identifier: MPL-2.0

// Package dag provides the directed graph used to order content sources.
// Vertices are source names; an edge from A to B means A must be visited
// before B in the produced order.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle is a closed path through the graph: the first vertex is
		// repeated at the end (a -> b -> a).
		Cycle []string
	}

	// Graph is a directed graph with insertion-ordered vertices.
	Graph struct {
		adjacency map[string][]string
		nodes     []string
		nodeSet   map[string]struct{}
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// Members returns the distinct vertices on the cycle.
func (e *CycleError) Members() []string {
	if len(e.Cycle) < 2 {
		return slices.Clone(e.Cycle)
	}
	return slices.Clone(e.Cycle[:len(e.Cycle)-1])
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]struct{}),
	}
}

// AddNode adds a vertex. Adding an existing vertex is a no-op and keeps its
// original position.
func (g *Graph) AddNode(name string) {
	if _, ok := g.nodeSet[name]; ok {
		return
	}
	g.nodeSet[name] = struct{}{}
	g.nodes = append(g.nodes, name)
}

// HasNode reports whether the vertex exists.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodeSet[name]
	return ok
}

// AddEdge adds a directed edge from -> to. Both vertices are implicitly added.
// Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	if slices.Contains(g.adjacency[from], to) {
		return
	}
	g.adjacency[from] = append(g.adjacency[from], to)
}

// Nodes returns the vertices in insertion order.
func (g *Graph) Nodes() []string {
	return slices.Clone(g.nodes)
}

// Successors returns the outgoing neighbors of a vertex in insertion order.
func (g *Graph) Successors(name string) []string {
	return slices.Clone(g.adjacency[name])
}

// TopologicalSort returns an order in which every edge's source precedes its
// target, using Kahn's algorithm. Vertices at the same level keep insertion
// order, so the result is deterministic for a given construction sequence.
// Returns *CycleError naming one closed cycle if the graph is not acyclic.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		for _, next := range g.adjacency[node] {
			inDegree[next]++
		}
	}

	queue := make([]string, 0, len(g.nodes))
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, next := range g.adjacency[node] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(result) != len(g.nodes) {
		remaining := make(map[string]struct{}, len(g.nodes)-len(result))
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				remaining[node] = struct{}{}
			}
		}
		return nil, &CycleError{Cycle: g.findCycle(remaining)}
	}

	return result, nil
}

// findCycle walks the subgraph left over by Kahn's algorithm. Every vertex
// there has an unvisited predecessor, so a depth-first walk from the first
// leftover vertex in insertion order always closes a loop.
func (g *Graph) findCycle(remaining map[string]struct{}) []string {
	const (
		unvisited = iota
		onStack
		done
	)
	color := make(map[string]int, len(remaining))
	var stack []string

	var visit func(string) []string
	visit = func(node string) []string {
		color[node] = onStack
		stack = append(stack, node)
		for _, next := range g.adjacency[node] {
			if _, ok := remaining[next]; !ok {
				continue
			}
			switch color[next] {
			case onStack:
				start := slices.Index(stack, next)
				return append(slices.Clone(stack[start:]), next)
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[node] = done
		return nil
	}

	for _, node := range g.nodes {
		if _, ok := remaining[node]; !ok || color[node] != unvisited {
			continue
		}
		if cycle := visit(node); cycle != nil {
			return cycle
		}
	}

	// Unreachable for a graph that failed Kahn's algorithm; fall back to the
	// leftover set so the error still names the blocked vertices.
	var leftover []string
	for _, node := range g.nodes {
		if _, ok := remaining[node]; ok {
			leftover = append(leftover, node)
		}
	}
	return leftover
}
