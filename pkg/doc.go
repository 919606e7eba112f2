// Package pkg provides the libraries behind restoretrace, a tool that
// captures the HTTP request graph of a NuGet restore and replays it against
// a package feed.
//
// # Overview
//
// A detailed restore log records when each request to a feed started and
// finished. Requests that were already finished when another one started
// are treated as its dependencies. Replaying that graph with the observed
// concurrency reproduces the restore's load on any feed that serves the
// same packages.
//
// The typical data flow:
//
//	restore log
//	     ↓
//	[restorelog] parse requests and feeds
//	     ↓
//	[operation] classify against PackageBaseAddress resources
//	     ↓
//	[graph/transform] drop transitively implied edges
//	     ↓
//	[io] persist as JSON (optionally gzip)
//	     ↓
//	[replay] dispatch against a target feed
//	     ↓
//	[sink] CSV and MongoDB results
//
// [pipeline] runs the capture stages with caching and is what the CLI
// calls.
//
// # Quick Start
//
//	runner := pipeline.NewRunner(cache.NewNullCache(), nil, nil)
//	res, err := runner.Execute(ctx, pipeline.Options{LogPath: "restore.log"})
//	if err != nil {
//	    return err
//	}
//	plan, err := replay.FromOperations(res.File.Operations, []string{"http://localhost:8080/v3-flatcontainer"})
//	if err != nil {
//	    return err
//	}
//	sum, err := replay.New(http.DefaultClient, replay.Options{MaxConcurrency: 16}).Run(ctx, plan)
//
// # Main Packages
//
// ## Capture
//
// [restorelog] - Restore log parser. Pairs request start and end lines,
// assigns hit indices and records the package sources.
//
// [operation] - Classifies flat-container URLs into semantic operations
// (version listings and package downloads) so a graph can be replayed
// against a different feed.
//
// [graph] - Generic node and graph types shared by requests and operations.
//
// [graph/transform] - Transitive reduction.
//
// [io] - The persisted graph format.
//
// ## Replay
//
// [replay] - Dependency-ordered, concurrency-bounded replay engine.
//
// [sink] - Buffered CSV result writers. [sink/mongodb] stores the same
// results in MongoDB.
//
// ## Feeds
//
// [nuget] - Client for the NuGet v3 API: service index, versions,
// downloads and pushes.
//
// [stubserver] - An in-process NuGet feed used as a replay target and in
// tests.
//
// ## Infrastructure
//
// [cache] - File, Redis and null caches for captured graphs and service
// index lookups.
//
// [config] - TOML settings.
//
// [httputil] - Retries and status handling for feed clients.
//
// [observability] - Hooks for capture, cache and HTTP events.
//
// [render/nodelink] - DOT and SVG views of captured graphs.
//
// [errors] - Coded errors shared by all packages.
package pkg
