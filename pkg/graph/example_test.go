package graph_test

import (
	"fmt"

	"github.com/matzehuels/restoretrace/pkg/graph"
)

func ExampleGraph_Adjacency() {
	index := &graph.Node[string]{Data: "GET /newtonsoft.json/index.json"}
	nupkg := &graph.Node[string]{
		Data:         "GET /newtonsoft.json/13.0.3/newtonsoft.json.13.0.3.nupkg",
		Dependencies: []*graph.Node[string]{index},
	}
	g := graph.New(index, nupkg)

	adj, err := g.Adjacency()
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Println("Nodes:", g.Len())
	fmt.Println("Edges:", g.EdgeCount())
	fmt.Println("nupkg depends on:", adj[1])
	// Output:
	// Nodes: 2
	// Edges: 1
	// nupkg depends on: [0]
}

func ExampleDependencySet() {
	key := func(n *graph.Node[string]) graph.Key[string] {
		return graph.Key[string]{HitIndex: n.HitIndex, ID: n.Data}
	}
	set := graph.NewDependencySet(key)

	set.Add(&graph.Node[string]{Data: "https://x/a"})
	set.Add(&graph.Node[string]{Data: "https://x/a"})              // same occurrence, ignored
	set.Add(&graph.Node[string]{Data: "https://x/a", HitIndex: 1}) // second fetch

	fmt.Println(set.Len())
	// Output: 2
}
