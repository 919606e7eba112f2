package operation

import (
	"fmt"
	"strings"

	"github.com/matzehuels/restoretrace/pkg/graph"
)

// Type identifies the kind of operation.
type Type int

const (
	// PackageBaseAddressIndex fetches the version list of a package.
	PackageBaseAddressIndex Type = iota + 1
	// PackageBaseAddressNupkg downloads one package version.
	PackageBaseAddressNupkg
)

var typeNames = map[Type]string{
	PackageBaseAddressIndex: "PackageBaseAddressIndex",
	PackageBaseAddressNupkg: "PackageBaseAddressNupkg",
}

// String returns the type name used in graph files.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType is the inverse of [Type.String].
func ParseType(s string) (Type, bool) {
	for t, name := range typeNames {
		if name == s {
			return t, true
		}
	}
	return 0, false
}

// HasVersion reports whether operations of this type carry a version.
func (t Type) HasVersion() bool { return t == PackageBaseAddressNupkg }

// Operation is a classified request. It is a comparable value: two
// operations referring to the same resource on the same source are equal.
// Version is empty for types without a version.
type Operation struct {
	Type        Type
	SourceIndex int
	ID          string
	Version     string
}

// NewIndex returns a PackageBaseAddressIndex operation.
func NewIndex(sourceIndex int, id string) Operation {
	return Operation{Type: PackageBaseAddressIndex, SourceIndex: sourceIndex, ID: id}
}

// NewNupkg returns a PackageBaseAddressNupkg operation.
func NewNupkg(sourceIndex int, id, version string) Operation {
	return Operation{Type: PackageBaseAddressNupkg, SourceIndex: sourceIndex, ID: id, Version: version}
}

// String formats the operation for logs and DOT labels.
func (o Operation) String() string {
	if o.Type.HasVersion() {
		return fmt.Sprintf("%s %s %s [%d]", o.Type, o.ID, o.Version, o.SourceIndex)
	}
	return fmt.Sprintf("%s %s [%d]", o.Type, o.ID, o.SourceIndex)
}

// URL builds the request URL of the operation under a PackageBaseAddress
// base URL.
func (o Operation) URL(base string) (string, error) {
	base = strings.TrimSuffix(base, "/")
	switch o.Type {
	case PackageBaseAddressIndex:
		return base + "/" + o.ID + "/index.json", nil
	case PackageBaseAddressNupkg:
		return base + "/" + o.ID + "/" + o.Version + "/" + o.ID + "." + o.Version + ".nupkg", nil
	default:
		return "", fmt.Errorf("operation type %v has no URL", o.Type)
	}
}

// Node is an operation occurrence in an operation graph.
type Node = graph.Node[Operation]

// Graph is an operation graph.
type Graph = graph.Graph[Operation]

// Key returns the value identity of an operation node.
func Key(n *Node) graph.Key[Operation] {
	return graph.Key[Operation]{HitIndex: n.HitIndex, ID: n.Data}
}
