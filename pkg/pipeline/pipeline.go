// Package pipeline captures request graphs from restore logs.
//
// A capture runs four stages:
//
//  1. Parse: read the restore log into a request graph
//  2. Classify: map requests onto NuGet operations using the
//     PackageBaseAddress resources of the log's feeds (operation graphs only)
//  3. Reduce: drop dependency edges implied by transitivity
//  4. Render: optional DOT and SVG views of the result
//
// The graph file produced by stages 1-3 is cached under the hash of the log
// content and the options that change it, so capturing the same log twice
// parses it once.
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	runner.Resolver = nuget.NewClient(nuget.Options{Cache: c})
//	res, err := runner.Execute(ctx, pipeline.Options{
//	    LogPath: "restore.log",
//	    Kind:    io.KindOperation,
//	    Reduce:  true,
//	    Formats: []string{pipeline.FormatSVG},
//	})
//	err = io.Export("restore.json.gz", res.File)
package pipeline

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/restoretrace/pkg/cache"
	"github.com/matzehuels/restoretrace/pkg/io"
)

// Artifact formats.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
)

// ValidFormats is the set of supported artifact formats.
var ValidFormats = map[string]bool{
	FormatDOT: true,
	FormatSVG: true,
}

// Resolver looks up the PackageBaseAddress resources a feed advertises.
// [nuget.Client] implements it.
type Resolver interface {
	PackageBaseAddresses(ctx context.Context, feed string) ([]string, error)
}

// Options configures one capture.
type Options struct {
	// LogPath is the restore log to capture.
	LogPath string

	// Kind selects a request or operation graph. Empty means operation.
	Kind io.Kind

	// Reduce applies transitive reduction.
	Reduce bool

	// Offline skips service index lookups. Feeds without an override are
	// assumed to be their own PackageBaseAddress.
	Offline bool

	// Overrides maps a feed to its PackageBaseAddress resources and takes
	// precedence over lookups.
	Overrides map[string][]string

	// Refresh ignores cached graphs but still stores the new one.
	Refresh bool

	// Formats lists artifacts to render; see [ValidFormats].
	Formats []string

	// Detailed adds status and timing to rendered nodes.
	Detailed bool

	// Intern is shared between captures of several logs; see
	// restorelog.Options.Intern.
	Intern map[string]string

	Logger *log.Logger
}

// Result is the output of one capture.
type Result struct {
	// File is the graph file, ready for io.Export.
	File *io.File

	// LogHash is the SHA-256 of the log content.
	LogHash string

	// Artifacts holds rendered views keyed by format.
	Artifacts map[string][]byte

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains stage timings. Stages served from cache report zero.
type Stats struct {
	ParseTime    time.Duration
	ClassifyTime time.Duration
	ReduceTime   time.Duration
	RenderTime   time.Duration
}

// CacheInfo records which stages hit the cache.
type CacheInfo struct {
	GraphHit bool
}

// ValidateFormats checks that all formats are supported.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if !ValidFormats[f] {
			return fmt.Errorf("invalid format: %q (must be one of: dot, svg)", f)
		}
	}
	return nil
}

// ValidateAndSetDefaults checks required fields and applies defaults.
func (o *Options) ValidateAndSetDefaults() error {
	if o.LogPath == "" {
		return fmt.Errorf("log path is required")
	}
	switch o.Kind {
	case "":
		o.Kind = io.KindOperation
	case io.KindRequest, io.KindOperation:
	default:
		return fmt.Errorf("invalid kind: %q (must be one of: request, operation)", o.Kind)
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return ValidateFormats(o.Formats)
}

// GraphKeyOpts returns the cache key options for the graph file.
func (o *Options) GraphKeyOpts() cache.GraphKeyOpts {
	opts := cache.GraphKeyOpts{
		Kind:    string(o.Kind),
		Reduced: o.Reduce,
		Offline: o.Offline,
	}
	for feed, bases := range o.Overrides {
		for _, b := range bases {
			opts.Bases = append(opts.Bases, feed+"="+b)
		}
	}
	slices.Sort(opts.Bases)
	return opts
}
