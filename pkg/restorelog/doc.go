// Package restorelog parses the HTTP trace of a NuGet restore log into a
// request graph.
//
// # Log Grammar
//
// A detailed restore log interleaves many kinds of lines. The parser
// recognizes three shapes and ignores everything else:
//
//	  GET https://api.nuget.org/v3-flatcontainer/newtonsoft.json/index.json
//	  OK https://api.nuget.org/v3-flatcontainer/newtonsoft.json/index.json 132ms
//	Feeds used:
//	    https://api.nuget.org/v3/index.json
//
// A start line is an indented HTTP method and absolute URL. An end line is an
// indented status code name (as printed by .NET, e.g. OK, NotFound), the URL
// and a whole number of milliseconds. The "Feeds used:" header introduces an
// indented list of package sources that ends at the first line indented no
// deeper than the header.
//
// # Dependencies
//
// Logs carry no request ids, so causality is over-approximated: a request
// depends on every request that had completed by the time it started. The
// resulting graph is dense and is meant to be thinned by transitive
// reduction (package transform).
//
// Responses are matched to requests first-in first-out per URL. This is a
// heuristic: for an interleaving such as start A, start B, end B, end A on
// the same URL the durations are attributed to the wrong occurrences. The
// heuristic is kept as-is so that graphs captured from the same log are
// reproducible.
package restorelog
