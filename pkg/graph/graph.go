package graph

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrForeignDependency is returned by [Graph.Validate] and
	// [Graph.Adjacency] when a node depends on a node the graph does not own.
	ErrForeignDependency = errors.New("dependency not in graph")

	// ErrDuplicateNode is returned by [Graph.Validate] when the same node
	// appears twice in the node list.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrSelfDependency is returned by [Graph.Validate] when a node lists
	// itself as a dependency.
	ErrSelfDependency = errors.New("node depends on itself")
)

// Key is the value identity of a node: the occurrence count of a resource
// plus the resource identity itself (a URL, an operation).
type Key[K comparable] struct {
	HitIndex int
	ID       K
}

// String formats the key as "id#hit".
func (k Key[K]) String() string { return fmt.Sprintf("%v#%d", k.ID, k.HitIndex) }

// Node is one occurrence of a resource in a session.
//
// Dependencies lists the nodes that must complete before this one may start.
// Nodes built by the log parser may share the backing array of their
// dependency slice with other nodes, so callers must treat Dependencies as
// read-only and build a new slice to change it.
type Node[T any] struct {
	HitIndex     int
	Data         T
	Dependencies []*Node[T]
}

// String formats the node as its payload followed by the hit index.
func (n *Node[T]) String() string { return fmt.Sprintf("%v#%d", n.Data, n.HitIndex) }

// Graph is an ordered list of nodes whose dependency edges are encoded as
// back-references on each node.
//
// The zero value is an empty graph ready to use.
type Graph[T any] struct {
	Nodes []*Node[T]
}

// New creates a graph owning the given nodes in order.
func New[T any](nodes ...*Node[T]) *Graph[T] {
	return &Graph[T]{Nodes: nodes}
}

// Add appends a node. The node's dependencies must already be, or later be,
// added to the graph for it to validate.
func (g *Graph[T]) Add(n *Node[T]) { g.Nodes = append(g.Nodes, n) }

// Len returns the number of nodes.
func (g *Graph[T]) Len() int { return len(g.Nodes) }

// EdgeCount returns the total number of dependency references.
func (g *Graph[T]) EdgeCount() int {
	count := 0
	for _, n := range g.Nodes {
		count += len(n.Dependencies)
	}
	return count
}

// Index maps each node to its position in the node list.
func (g *Graph[T]) Index() map[*Node[T]]int {
	idx := make(map[*Node[T]]int, len(g.Nodes))
	for i, n := range g.Nodes {
		idx[n] = i
	}
	return idx
}

// Adjacency returns each node's dependencies as positions in the node list,
// in dependency order. It fails with ErrForeignDependency if a dependency is
// not owned by the graph.
func (g *Graph[T]) Adjacency() ([][]int, error) {
	idx := g.Index()
	adj := make([][]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if len(n.Dependencies) == 0 {
			continue
		}
		deps := make([]int, 0, len(n.Dependencies))
		for _, d := range n.Dependencies {
			j, ok := idx[d]
			if !ok {
				return nil, fmt.Errorf("%w: %s -> %s", ErrForeignDependency, n, d)
			}
			deps = append(deps, j)
		}
		adj[i] = deps
	}
	return adj, nil
}

// Dependents inverts an adjacency list: result[j] lists every node that
// depends on node j, in ascending order.
func Dependents(adj [][]int) [][]int {
	out := make([][]int, len(adj))
	for i, deps := range adj {
		for _, j := range deps {
			out[j] = append(out[j], i)
		}
	}
	return out
}

// Validate checks the structural invariants of the graph: every node appears
// once, no node depends on itself and every dependency is owned by the graph.
// Cycles are detected by the reduction in package transform, not here.
func (g *Graph[T]) Validate() error {
	idx := make(map[*Node[T]]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if n == nil {
			return fmt.Errorf("node %d is nil", i)
		}
		if j, ok := idx[n]; ok {
			return fmt.Errorf("%w: %s at positions %d and %d", ErrDuplicateNode, n, j, i)
		}
		idx[n] = i
	}
	for _, n := range g.Nodes {
		for _, d := range n.Dependencies {
			if d == n {
				return fmt.Errorf("%w: %s", ErrSelfDependency, n)
			}
			if _, ok := idx[d]; !ok {
				return fmt.Errorf("%w: %s -> %s", ErrForeignDependency, n, d)
			}
		}
	}
	return nil
}

// Map builds a structurally identical graph whose payloads are produced by f.
// Node order and dependency order are preserved.
func Map[T, U any](g *Graph[T], f func(*Node[T]) U) (*Graph[U], error) {
	adj, err := g.Adjacency()
	if err != nil {
		return nil, err
	}
	out := &Graph[U]{Nodes: make([]*Node[U], len(g.Nodes))}
	for i, n := range g.Nodes {
		out.Nodes[i] = &Node[U]{HitIndex: n.HitIndex, Data: f(n)}
	}
	for i, deps := range adj {
		if len(deps) == 0 {
			continue
		}
		nd := make([]*Node[U], len(deps))
		for k, j := range deps {
			nd[k] = out.Nodes[j]
		}
		out.Nodes[i].Dependencies = nd
	}
	return out, nil
}

// Clone returns a deep copy of the graph structure. Payloads are copied by
// value.
func (g *Graph[T]) Clone() (*Graph[T], error) {
	return Map(g, func(n *Node[T]) T { return n.Data })
}

// DependencySet accumulates dependencies deduplicated by value key. Adding a
// node whose key is already present is a no-op, regardless of whether it is
// the same object.
type DependencySet[T any, K comparable] struct {
	key   func(*Node[T]) Key[K]
	seen  map[Key[K]]struct{}
	nodes []*Node[T]
}

// NewDependencySet creates an empty set keyed by key.
func NewDependencySet[T any, K comparable](key func(*Node[T]) Key[K]) *DependencySet[T, K] {
	return &DependencySet[T, K]{key: key, seen: make(map[Key[K]]struct{})}
}

// Add inserts n unless a node with the same key is present. It reports
// whether n was inserted.
func (s *DependencySet[T, K]) Add(n *Node[T]) bool {
	k := s.key(n)
	if _, ok := s.seen[k]; ok {
		return false
	}
	s.seen[k] = struct{}{}
	s.nodes = append(s.nodes, n)
	return true
}

// Contains reports whether a node with n's key is present.
func (s *DependencySet[T, K]) Contains(n *Node[T]) bool {
	_, ok := s.seen[s.key(n)]
	return ok
}

// Len returns the number of distinct keys in the set.
func (s *DependencySet[T, K]) Len() int { return len(s.nodes) }

// Snapshot returns the members in insertion order. The returned slice shares
// storage with the set but has its capacity clipped, so later additions to
// the set never show through it and appending to it never corrupts the set.
func (s *DependencySet[T, K]) Snapshot() []*Node[T] {
	if len(s.nodes) == 0 {
		return nil
	}
	return slices.Clip(s.nodes)
}
