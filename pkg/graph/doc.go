// Package graph provides the in-memory request graph shared by the capture,
// reduction, persistence and replay stages.
//
// # Overview
//
// A restore issues thousands of HTTP requests. The capture stage records
// each request occurrence as a [Node] and links it to the requests it
// depends on: every request that had already completed when it started.
// The same structure is reused for semantic operations (see package
// operation), so [Node] and [Graph] are generic over their payload.
//
// # Identity
//
// A node is identified by its payload's resource identity plus its hit
// index, the zero-based occurrence count of that resource in one session.
// [Key] is the comparable value form of that identity and is used directly
// as a map key when deduplicating dependencies; object identity is never
// consulted for deduplication:
//
//	seen := map[graph.Key[string]]bool{}
//	seen[graph.Key[string]{HitIndex: 0, ID: url}] = true
//
// # Arena Layout
//
// [Graph] owns an ordered node list. Dependencies are back-references into
// that same list, so the order of [Graph.Nodes] is significant: persistence
// addresses dependencies by position and [Graph.Adjacency] exposes them as
// indices. [Graph.Validate] checks that every dependency is owned by the
// graph.
//
// # Concurrency
//
// Graphs are not safe for concurrent mutation. Once built they are read-only
// and may be shared by any number of readers, which is how the replay engine
// uses them.
package graph
