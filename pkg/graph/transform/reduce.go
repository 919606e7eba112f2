package transform

import (
	"fmt"
	"slices"

	"github.com/bits-and-blooms/bitset"

	"github.com/matzehuels/restoretrace/pkg/errors"
	"github.com/matzehuels/restoretrace/pkg/graph"
)

// CycleError reports a dependency cycle. From depends on To, and To already
// (transitively) depends on From.
type CycleError struct {
	From string
	To   string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s depends on %s, which depends back on it", e.From, e.To)
}

// Unwrap exposes a GRAPH_CYCLE coded error.
func (e *CycleError) Unwrap() error {
	return errors.New(errors.ErrCodeGraphCycle, "%s -> %s", e.From, e.To)
}

const (
	unvisited uint8 = iota
	visiting
	done
)

// Reducer answers reduction and reachability queries over one graph,
// computing and caching results per node on demand.
//
// A Reducer holds on to the graph it was created with. The graph must not be
// modified while the Reducer is in use. A Reducer is not safe for concurrent
// use.
type Reducer[T any] struct {
	g   *graph.Graph[T]
	adj [][]int

	state   []uint8
	finish  []int // post-order position; dependencies finish first
	next    int
	reach   []*bitset.BitSet
	reduced [][]int
	err     error
}

// NewReducer prepares g for lazy reduction. It fails if a node depends on
// a node g does not own.
func NewReducer[T any](g *graph.Graph[T]) (*Reducer[T], error) {
	adj, err := g.Adjacency()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "reduce")
	}
	n := g.Len()
	return &Reducer[T]{
		g:       g,
		adj:     adj,
		state:   make([]uint8, n),
		finish:  make([]int, n),
		reach:   make([]*bitset.BitSet, n),
		reduced: make([][]int, n),
	}, nil
}

// Dependencies returns the reduced dependency positions of node i, in the
// order they appear in the node's original dependency list.
func (r *Reducer[T]) Dependencies(i int) ([]int, error) {
	if err := r.ensure(i); err != nil {
		return nil, err
	}
	return r.reduced[i], nil
}

// Reachable reports whether node to is reachable from node from through one
// or more dependency edges.
func (r *Reducer[T]) Reachable(from, to int) (bool, error) {
	if err := r.ensure(from); err != nil {
		return false, err
	}
	return r.reach[from].Test(uint(to)), nil
}

// ensure visits node i. A failed visit leaves partial state behind, so the
// first error sticks.
func (r *Reducer[T]) ensure(i int) error {
	if r.err != nil {
		return r.err
	}
	if i < 0 || i >= len(r.adj) {
		return errors.New(errors.ErrCodeInvalidInput, "node index %d out of range", i)
	}
	r.err = r.visit(i)
	return r.err
}

func (r *Reducer[T]) visit(i int) error {
	if r.state[i] == done {
		return nil
	}
	r.state[i] = visiting

	deps := r.adj[i]
	for _, d := range deps {
		switch r.state[d] {
		case visiting:
			return &CycleError{From: r.g.Nodes[i].String(), To: r.g.Nodes[d].String()}
		case unvisited:
			if err := r.visit(d); err != nil {
				return err
			}
		}
	}

	// A dependency that reaches another dependency finishes after it, so
	// walking in descending finish order sees every covering node before
	// the nodes it covers.
	order := slices.Clone(deps)
	slices.SortFunc(order, func(a, b int) int { return r.finish[b] - r.finish[a] })

	covered := bitset.New(uint(len(r.adj)))
	keep := make(map[int]bool, len(order))
	for _, d := range order {
		if covered.Test(uint(d)) {
			continue
		}
		keep[d] = true
		covered.Set(uint(d))
		covered.InPlaceUnion(r.reach[d])
	}

	var reduced []int
	for _, d := range deps {
		if keep[d] {
			reduced = append(reduced, d)
			delete(keep, d)
		}
	}

	r.reach[i] = covered
	r.reduced[i] = reduced
	r.finish[i] = r.next
	r.next++
	r.state[i] = done
	return nil
}

// Reduce returns a new graph with the same nodes, in the same order, and
// the minimal dependency sets that preserve reachability. The input graph
// is not modified; node payloads are shared with it.
//
// Duplicate dependency references collapse to one. Reduce fails with a
// [*CycleError] if the graph has a cycle.
func Reduce[T any](g *graph.Graph[T]) (*graph.Graph[T], error) {
	r, err := NewReducer(g)
	if err != nil {
		return nil, err
	}

	nodes := make([]*graph.Node[T], g.Len())
	for i, n := range g.Nodes {
		nodes[i] = &graph.Node[T]{HitIndex: n.HitIndex, Data: n.Data}
	}
	for i := range g.Nodes {
		deps, err := r.Dependencies(i)
		if err != nil {
			return nil, err
		}
		if len(deps) == 0 {
			continue
		}
		nodes[i].Dependencies = make([]*graph.Node[T], len(deps))
		for k, d := range deps {
			nodes[i].Dependencies[k] = nodes[d]
		}
	}
	return graph.New(nodes...), nil
}

// Reachable reports whether to is reachable from from in g. It is a
// convenience for one-off queries; use a [Reducer] for many.
func Reachable[T any](g *graph.Graph[T], from, to *graph.Node[T]) (bool, error) {
	r, err := NewReducer(g)
	if err != nil {
		return false, err
	}
	idx := g.Index()
	fi, ok := idx[from]
	if !ok {
		return false, errors.New(errors.ErrCodeInvalidGraph, "node %s not in graph", from)
	}
	ti, ok := idx[to]
	if !ok {
		return false, errors.New(errors.ErrCodeInvalidGraph, "node %s not in graph", to)
	}
	return r.Reachable(fi, ti)
}
