// Package transform thins the dependency sets of a captured graph.
//
// A graph built from a restore log makes every request depend on every
// request that had completed before it started. Most of those edges are
// implied by others: if C depends on B and B depends on A, the edge C→A
// carries no ordering information. [Reduce] removes such edges while
// keeping every node reachable from the same set of nodes as before.
//
// The reduction is lazy. A [Reducer] computes a node's reduced
// dependencies and its reachability set the first time they are needed and
// memoizes both, so asking about a handful of nodes in a graph of many
// thousands only visits what those nodes reach.
//
// A cycle in the input means the log was inconsistent. It is reported as a
// [*CycleError] naming the back-edge, never dropped silently.
package transform
