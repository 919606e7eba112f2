package restorelog

import (
	"fmt"
	"time"

	"github.com/matzehuels/restoretrace/pkg/graph"
)

// StartRequest is the moment a request begins. Two start requests are equal
// when method and URL are equal.
type StartRequest struct {
	Method string
	URL    string
}

// EndRequest is a parsed response line.
type EndRequest struct {
	StatusCode int
	URL        string
	Duration   time.Duration
}

// Request is the payload of a request graph node. End is nil for a request
// whose response never appeared in the log.
type Request struct {
	Start StartRequest
	End   *EndRequest
}

// String formats the request as "METHOD URL".
func (r Request) String() string { return r.Start.Method + " " + r.Start.URL }

// Completed reports whether a response was matched to the request.
func (r Request) Completed() bool { return r.End != nil }

// Node is a request occurrence in a request graph.
type Node = graph.Node[Request]

// Graph is a request graph.
type Graph = graph.Graph[Request]

// Key returns the value identity of a request node: its hit index and URL.
func Key(n *Node) graph.Key[string] {
	return graph.Key[string]{HitIndex: n.HitIndex, ID: n.Data.Start.URL}
}

// Result is the outcome of parsing one restore log.
type Result struct {
	// Graph holds one node per request occurrence in start order.
	Graph *Graph

	// Sources lists the package sources from every "Feeds used:" section,
	// deduplicated, in first-seen order.
	Sources []string

	// MaxConcurrency is the highest number of requests that were in flight
	// at once.
	MaxConcurrency int

	// Pending is the number of requests that never received a response.
	Pending int
}

// String summarizes the result for logs.
func (r *Result) String() string {
	return fmt.Sprintf("%d requests, %d sources, max concurrency %d", r.Graph.Len(), len(r.Sources), r.MaxConcurrency)
}
