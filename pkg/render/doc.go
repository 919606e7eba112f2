// Package render groups the visual outputs of captured graphs.
//
// The only renderer is [nodelink], which draws request and operation graphs
// as Graphviz diagrams. Rendered views are for inspection; the JSON format
// in package io is what replay consumes.
package render
