package transform_test

import (
	"fmt"

	"github.com/matzehuels/restoretrace/pkg/graph"
	"github.com/matzehuels/restoretrace/pkg/graph/transform"
)

func ExampleReduce() {
	// index.json for a and b completed before the nupkg started, and b's
	// index itself started after a's finished.
	a := &graph.Node[string]{Data: "a/index.json"}
	b := &graph.Node[string]{Data: "b/index.json", Dependencies: []*graph.Node[string]{a}}
	pkg := &graph.Node[string]{Data: "b/1.0.0/b.1.0.0.nupkg", Dependencies: []*graph.Node[string]{a, b}}
	g := graph.New(a, b, pkg)

	reduced, err := transform.Reduce(g)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("Edges before:", g.EdgeCount())
	fmt.Println("Edges after:", reduced.EdgeCount())
	for _, d := range reduced.Nodes[2].Dependencies {
		fmt.Println("nupkg waits for", d.Data)
	}
	// Output:
	// Edges before: 3
	// Edges after: 2
	// nupkg waits for b/index.json
}
