// Package operation classifies raw request URLs into semantic NuGet
// operations and lifts request graphs into operation graphs.
//
// # Operations
//
// Only the PackageBaseAddress (flat container) resource is modelled:
//
//	{base}/{id}/index.json                    → PackageBaseAddressIndex{id}
//	{base}/{id}/{version}/{id}.{version}.nupkg → PackageBaseAddressNupkg{id, version}
//
// The protocol requires ids and versions in these URLs to be lowercase, the
// version to be normalized, and the path segments to match the file name
// exactly. Any deviation, and any method other than GET, classifies the
// request as unknown (a nil *Operation). Unknown is not an error.
//
// # Sources
//
// A request is attributed to the first configured source whose
// PackageBaseAddress resource prefixes its URL. The operation records the
// position of that source so replays can target a different server per
// source.
//
// # Operation Graphs
//
// [FromRequests] builds the operation counterpart of a request graph.
// Requests that cannot be classified are dropped and their dependencies are
// inherited by their dependents, so reachability between the remaining
// operations is preserved.
package operation
