package operation

import (
	"github.com/matzehuels/restoretrace/pkg/errors"
	"github.com/matzehuels/restoretrace/pkg/graph"
	"github.com/matzehuels/restoretrace/pkg/restorelog"
)

// Stats counts how the requests of a graph were classified.
type Stats struct {
	Classified int
	Unknown    int
}

// FromRequests lifts a request graph into an operation graph.
//
// Each classified request becomes one operation node, in request order. Hit
// indices are recounted per operation value. Unknown requests are dropped;
// a node that depended on an unknown request depends instead on whatever
// that request depended on, transitively, so no ordering constraint between
// classified operations is lost.
//
// Dependencies must precede their dependents in node order, as they do in
// every graph the log parser builds.
func FromRequests(g *restorelog.Graph, p *Parser) (*Graph, Stats, error) {
	adj, err := g.Adjacency()
	if err != nil {
		return nil, Stats{}, err
	}

	var (
		stats    Stats
		out      = &Graph{}
		hits     = make(map[Operation]int)
		opNodes  = make([]*Node, len(g.Nodes))
		inherits = make([][]*Node, len(g.Nodes))
	)

	for i, n := range g.Nodes {
		info := p.Parse(n.Data.Start)

		deps := graph.NewDependencySet(Key)
		for _, j := range adj[i] {
			if j >= i {
				return nil, Stats{}, errors.New(errors.ErrCodeInvalidGraph,
					"node %d depends on later node %d", i, j)
			}
			if opNodes[j] != nil {
				deps.Add(opNodes[j])
				continue
			}
			for _, d := range inherits[j] {
				deps.Add(d)
			}
		}

		if info.Operation == nil {
			stats.Unknown++
			inherits[i] = deps.Snapshot()
			continue
		}

		stats.Classified++
		op := *info.Operation
		node := &Node{HitIndex: hits[op], Data: op, Dependencies: deps.Snapshot()}
		hits[op]++
		opNodes[i] = node
		out.Add(node)
	}
	return out, stats, nil
}
