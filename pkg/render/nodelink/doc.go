// Package nodelink renders captured graphs as Graphviz node-link diagrams.
//
// # Usage
//
// Convert a request or operation graph to DOT, then optionally render SVG:
//
//	dot := nodelink.RequestDOT(g, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// DOT output is for people only. There is no reader and it does not round
// trip; the JSON format in package io is the persisted form.
//
// Nodes are named by their position in the graph ("n0", "n1", ...) and
// edges point from a node to what it depends on. Requests that failed are
// filled red and requests without a logged response are dashed.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering.
package nodelink
