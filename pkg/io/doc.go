// Package io reads and writes captured graphs as compact JSON.
//
// # Format
//
// A graph file is one JSON object:
//
//	{
//	  "k": "operation",
//	  "s": ["https://api.nuget.org/v3/index.json"],
//	  "x": {"mc": 12, "eb": 3405, "ea": 61},
//	  "n": [
//	    {"t": "PackageBaseAddressIndex", "i": "newtonsoft.json"},
//	    {"t": "PackageBaseAddressNupkg", "i": "newtonsoft.json", "v": "13.0.3", "e": [0]}
//	  ]
//	}
//
// "k" names the node kind ("request" or "operation"), "s" lists the package
// sources, "x" carries capture statistics and "n" holds the nodes in order.
// Node order is significant: dependencies ("e") are positions in "n".
//
// Node fields use one-letter names:
//
//   - h: hit index (default 0)
//   - t: operation type, required for operation nodes
//   - s: operation source index (default 0)
//   - i: package id
//   - v: package version
//   - u: request URL, required for request nodes
//   - m: request method (default GET)
//   - c: response status code (default 200; 0 means no response was logged)
//   - d: response duration in 100ns ticks (default 0)
//   - e: dependency positions (default none)
//
// Fields holding their default value are omitted.
//
// # Reading
//
// [Read] decodes in two passes: every node is materialized first, then each
// node's dependency positions are resolved against the complete node list.
// Dependencies may therefore point forward. A missing required field, an
// unknown operation type or an out-of-range position fails with an
// INVALID_GRAPH error.
//
// # Compression
//
// [Export] and [Import] gzip the file when its name ends in ".gz".
package io
