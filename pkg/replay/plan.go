package replay

import (
	"net/url"
	"slices"
	"strings"

	"github.com/matzehuels/restoretrace/pkg/errors"
	"github.com/matzehuels/restoretrace/pkg/graph"
	"github.com/matzehuels/restoretrace/pkg/operation"
	"github.com/matzehuels/restoretrace/pkg/restorelog"
)

// Request is what one node replays.
type Request struct {
	Method   string
	URL      string
	HitIndex int

	// Label names the node in results, e.g. an operation or the recorded
	// URL.
	Label string
}

// Plan is a replayable graph. Dependencies[i] lists the positions node i
// waits for, without duplicates.
type Plan struct {
	Requests     []Request
	Dependencies [][]int
}

// Len returns the number of nodes.
func (p *Plan) Len() int { return len(p.Requests) }

// FromGraph builds a plan from any graph, resolving each node to a request
// with resolve.
func FromGraph[T any](g *graph.Graph[T], resolve func(n *graph.Node[T]) (Request, error)) (*Plan, error) {
	adj, err := g.Adjacency()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "plan")
	}
	p := &Plan{
		Requests:     make([]Request, g.Len()),
		Dependencies: make([][]int, g.Len()),
	}
	for i, n := range g.Nodes {
		req, err := resolve(n)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "node %d (%s)", i, n)
		}
		req.HitIndex = n.HitIndex
		p.Requests[i] = req
		p.Dependencies[i] = dedupe(adj[i])
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func dedupe(deps []int) []int {
	if len(deps) < 2 {
		return deps
	}
	out := slices.Clone(deps)
	slices.Sort(out)
	return slices.Compact(out)
}

// Validate checks that every dependency position is in range and that the
// plan is acyclic. An acyclic plan always replays to completion.
func (p *Plan) Validate() error {
	n := len(p.Requests)
	if len(p.Dependencies) != n {
		return errors.New(errors.ErrCodeInvalidGraph, "plan has %d requests but %d dependency lists", n, len(p.Dependencies))
	}
	remaining := make([]int, n)
	for i, deps := range p.Dependencies {
		for _, d := range deps {
			if d < 0 || d >= n {
				return errors.New(errors.ErrCodeInvalidGraph, "node %d: dependency %d out of range", i, d)
			}
		}
		remaining[i] = len(deps)
	}

	// Kahn's algorithm: every node must eventually become ready.
	dependents := graph.Dependents(p.Dependencies)
	queue := make([]int, 0, n)
	for i, r := range remaining {
		if r == 0 {
			queue = append(queue, i)
		}
	}
	for k := 0; k < len(queue); k++ {
		for _, d := range dependents[queue[k]] {
			remaining[d]--
			if remaining[d] == 0 {
				queue = append(queue, d)
			}
		}
	}
	if len(queue) != n {
		for i, r := range remaining {
			if r > 0 {
				return errors.New(errors.ErrCodeGraphCycle, "node %d (%s) is part of or behind a dependency cycle", i, p.Requests[i].URL)
			}
		}
	}
	return nil
}

// FromRequests plans a request graph against target. The scheme and host
// of every recorded URL are replaced with target's, and target's path is
// prepended to the recorded path. An empty target replays the recorded
// URLs unchanged.
func FromRequests(g *restorelog.Graph, target string) (*Plan, error) {
	var base *url.URL
	if target != "" {
		u, err := url.Parse(target)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "invalid target URL %q", target)
		}
		base = u
	}
	return FromGraph(g, func(n *restorelog.Node) (Request, error) {
		raw := n.Data.Start.URL
		req := Request{Method: n.Data.Start.Method, URL: raw, Label: raw}
		if base == nil {
			return req, nil
		}
		rebased, err := rebase(base, raw)
		if err != nil {
			return Request{}, err
		}
		req.URL = rebased
		return req, nil
	})
}

func rebase(base *url.URL, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	out := *u
	out.Scheme = base.Scheme
	out.Host = base.Host
	out.User = base.User
	if p := trimSlash(base.Path); p != "" {
		out.Path = p + u.Path
		if u.RawPath != "" {
			out.RawPath = trimSlash(base.EscapedPath()) + u.RawPath
		}
	}
	return out.String(), nil
}

func trimSlash(s string) string { return strings.TrimRight(s, "/") }

// FromOperations plans an operation graph. bases[i] is the
// PackageBaseAddress URL that serves source i; a single base serves every
// source.
func FromOperations(g *operation.Graph, bases []string) (*Plan, error) {
	if len(bases) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no target base URLs")
	}
	return FromGraph(g, func(n *operation.Node) (Request, error) {
		op := n.Data
		base := bases[0]
		if len(bases) > 1 {
			if op.SourceIndex < 0 || op.SourceIndex >= len(bases) {
				return Request{}, errors.New(errors.ErrCodeInvalidInput,
					"operation on source %d but only %d targets", op.SourceIndex, len(bases))
			}
			base = bases[op.SourceIndex]
		}
		u, err := op.URL(base)
		if err != nil {
			return Request{}, err
		}
		return Request{Method: "GET", URL: u, Label: op.String()}, nil
	})
}
