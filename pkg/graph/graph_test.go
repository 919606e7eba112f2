package graph

import (
	"errors"
	"testing"
)

func chain(ids ...string) *Graph[string] {
	g := &Graph[string]{}
	var prev *Node[string]
	for _, id := range ids {
		n := &Node[string]{Data: id}
		if prev != nil {
			n.Dependencies = []*Node[string]{prev}
		}
		g.Add(n)
		prev = n
	}
	return g
}

func urlKey(n *Node[string]) Key[string] { return Key[string]{HitIndex: n.HitIndex, ID: n.Data} }

func TestGraphCounts(t *testing.T) {
	g := chain("a", "b", "c")
	if g.Len() != 3 {
		t.Errorf("Len() = %d, want 3", g.Len())
	}
	if g.EdgeCount() != 2 {
		t.Errorf("EdgeCount() = %d, want 2", g.EdgeCount())
	}
}

func TestAdjacency(t *testing.T) {
	g := chain("a", "b", "c")
	g.Nodes[2].Dependencies = append(g.Nodes[2].Dependencies, g.Nodes[0])

	adj, err := g.Adjacency()
	if err != nil {
		t.Fatalf("Adjacency() error = %v", err)
	}
	if len(adj[0]) != 0 {
		t.Errorf("adj[0] = %v, want empty", adj[0])
	}
	if len(adj[2]) != 2 || adj[2][0] != 1 || adj[2][1] != 0 {
		t.Errorf("adj[2] = %v, want [1 0]", adj[2])
	}

	deps := Dependents(adj)
	if len(deps[0]) != 2 || deps[0][0] != 1 || deps[0][1] != 2 {
		t.Errorf("Dependents[0] = %v, want [1 2]", deps[0])
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *Graph[string]
		wantErr error
	}{
		{
			name:  "valid chain",
			build: func() *Graph[string] { return chain("a", "b") },
		},
		{
			name:  "empty",
			build: func() *Graph[string] { return &Graph[string]{} },
		},
		{
			name: "foreign dependency",
			build: func() *Graph[string] {
				outside := &Node[string]{Data: "x"}
				return New(&Node[string]{Data: "a", Dependencies: []*Node[string]{outside}})
			},
			wantErr: ErrForeignDependency,
		},
		{
			name: "duplicate node",
			build: func() *Graph[string] {
				n := &Node[string]{Data: "a"}
				return New(n, n)
			},
			wantErr: ErrDuplicateNode,
		},
		{
			name: "self dependency",
			build: func() *Graph[string] {
				n := &Node[string]{Data: "a"}
				n.Dependencies = []*Node[string]{n}
				return New(n)
			},
			wantErr: ErrSelfDependency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMapPreservesStructure(t *testing.T) {
	g := chain("a", "b", "c")
	g.Nodes[1].HitIndex = 4

	out, err := Map(g, func(n *Node[string]) int { return len(n.Data) })
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if out.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", out.Len())
	}
	if out.Nodes[1].HitIndex != 4 {
		t.Errorf("HitIndex = %d, want 4", out.Nodes[1].HitIndex)
	}
	if out.Nodes[2].Dependencies[0] != out.Nodes[1] {
		t.Error("dependency should point into the mapped graph")
	}
	if err := out.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g := chain("a", "b")
	c, err := g.Clone()
	if err != nil {
		t.Fatalf("Clone() error = %v", err)
	}
	c.Nodes[1].Dependencies = nil
	if len(g.Nodes[1].Dependencies) != 1 {
		t.Error("mutating the clone changed the original")
	}
}

func TestDependencySetDedupesByValue(t *testing.T) {
	s := NewDependencySet(urlKey)

	a := &Node[string]{Data: "https://x/a"}
	sameKey := &Node[string]{Data: "https://x/a"}
	secondHit := &Node[string]{Data: "https://x/a", HitIndex: 1}

	if !s.Add(a) {
		t.Error("first Add should insert")
	}
	if s.Add(sameKey) {
		t.Error("Add with equal key should not insert")
	}
	if !s.Add(secondHit) {
		t.Error("Add with different hit index should insert")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if !s.Contains(sameKey) {
		t.Error("Contains should match by value key")
	}
}

func TestDependencySetSnapshotIsStable(t *testing.T) {
	s := NewDependencySet(urlKey)
	s.Add(&Node[string]{Data: "a"})
	snap := s.Snapshot()

	s.Add(&Node[string]{Data: "b"})
	if len(snap) != 1 {
		t.Errorf("snapshot grew to %d", len(snap))
	}

	snap = append(snap, &Node[string]{Data: "c"})
	if got := s.Snapshot(); len(got) != 2 || got[1].Data != "b" {
		t.Errorf("appending to a snapshot corrupted the set: %v", got)
	}
}

func TestKeyString(t *testing.T) {
	k := Key[string]{HitIndex: 2, ID: "https://x/a"}
	if k.String() != "https://x/a#2" {
		t.Errorf("String() = %q", k.String())
	}
}
