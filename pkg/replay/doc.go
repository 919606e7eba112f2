// Package replay re-issues a captured graph of requests against a target
// server.
//
// # Plans
//
// A [Plan] is the replayable form of a graph: one [Request] per node plus
// the node's dependency positions. [FromRequests] rebases every recorded
// URL onto a target origin. [FromOperations] rebuilds each operation's URL
// under a PackageBaseAddress base chosen by the operation's source index.
//
// # Scheduling
//
// Each node moves through Pending, Ready, InFlight and Completed. A node is
// Ready once every dependency is Completed; the last dependency to complete
// moves it with an atomic decrement of the node's remaining-dependency
// counter, so concurrent completions never unlock a node twice. Ready nodes
// are dispatched in arrival order, at most MaxConcurrency at a time.
//
// A failed request (non-2xx, transport error, timeout) is still Completed.
// Its dependents proceed: the replay reproduces the shape of the captured
// traffic and does not check the target for correctness.
//
// # Cancellation
//
// When the context passed to [Engine.Run] is done, no further node is
// dispatched. In-flight requests get GracePeriod to finish before their
// contexts are canceled as well. Run waits for every in-flight request to
// return before it does.
//
// # Results
//
// Each completed node produces a [Result] that is passed to the configured
// [Recorder]. Recording happens on the worker goroutine; recorders backed by
// slow I/O should queue results (see package sink).
package replay
