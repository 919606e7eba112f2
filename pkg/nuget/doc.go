// Package nuget is a small NuGet v3 client.
//
// It covers what the capture and utility commands need:
//
//   - reading a feed's service index and the resources it advertises
//   - listing the versions of a package from a PackageBaseAddress resource
//   - downloading .nupkg files, one or all versions
//   - pushing .nupkg files to a PackagePublish resource
//
// Service index lookups are cached through [cache.Cache] under
// [cache.Keyer.ResourcesKey]. Transient failures (network errors, 429, 5xx)
// are retried with [httputil.RetryWithBackoff].
package nuget
