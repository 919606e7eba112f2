package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/restoretrace/pkg/cache"
	"github.com/matzehuels/restoretrace/pkg/graph/transform"
	"github.com/matzehuels/restoretrace/pkg/io"
	"github.com/matzehuels/restoretrace/pkg/observability"
	"github.com/matzehuels/restoretrace/pkg/operation"
	"github.com/matzehuels/restoretrace/pkg/render/nodelink"
	"github.com/matzehuels/restoretrace/pkg/restorelog"
)

// Runner executes captures with caching.
//
// The Runner holds no per-capture state. Multiple goroutines can use the
// same Runner with different options.
type Runner struct {
	Cache    cache.Cache
	Keyer    cache.Keyer
	Resolver Resolver
	TTL      time.Duration
	Logger   *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
// Resolver is left nil, which classifies against feed URLs only.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		TTL:    cache.TTLGraph,
		Logger: logger,
	}
}

// Execute runs the capture stages and renders the requested artifacts.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	res, err := r.CaptureWithCacheInfo(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(opts.Formats) == 0 {
		return res, nil
	}

	renderStart := time.Now()
	artifacts, err := Render(ctx, res.File, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	res.Artifacts = artifacts
	res.Stats.RenderTime = time.Since(renderStart)
	opts.Logger.Debug("rendered outputs", "formats", opts.Formats, "duration", res.Stats.RenderTime)
	return res, nil
}

// CaptureWithCacheInfo produces the graph file for opts.LogPath, from cache
// when possible.
func (r *Runner) CaptureWithCacheInfo(ctx context.Context, opts Options) (*Result, error) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	logHash, err := cache.HashFile(opts.LogPath)
	if err != nil {
		return nil, err
	}
	key := r.Keyer.GraphKey(logHash, opts.GraphKeyOpts())
	res := &Result{LogHash: logHash}

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			f, err := io.Read(bytes.NewReader(data))
			if err == nil {
				observability.Cache().OnCacheHit(ctx, "graph")
				opts.Logger.Debug("graph cache hit", "log", opts.LogPath, "key", key)
				res.File = f
				res.CacheInfo.GraphHit = true
				return res, nil
			}
			opts.Logger.Warn("discarding unreadable cache entry", "key", key, "error", err)
		}
		observability.Cache().OnCacheMiss(ctx, "graph")
	}

	if err := r.capture(ctx, opts, res); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := io.Write(&buf, res.File); err == nil {
		if err := r.Cache.Set(ctx, key, buf.Bytes(), r.TTL); err != nil {
			opts.Logger.Warn("cache write failed", "key", key, "error", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "graph", buf.Len())
		}
	}
	return res, nil
}

// Capture is CaptureWithCacheInfo without the cache details.
func (r *Runner) Capture(ctx context.Context, opts Options) (*io.File, error) {
	res, err := r.CaptureWithCacheInfo(ctx, opts)
	if err != nil {
		return nil, err
	}
	return res.File, nil
}

func (r *Runner) capture(ctx context.Context, opts Options, res *Result) error {
	hooks := observability.Capture()
	logger := opts.Logger

	// Parse
	hooks.OnParseStart(ctx, opts.LogPath)
	parseStart := time.Now()
	parsed, err := restorelog.ParseFile(opts.LogPath, restorelog.Options{Intern: opts.Intern, Logger: logger})
	res.Stats.ParseTime = time.Since(parseStart)
	if err != nil {
		hooks.OnParseComplete(ctx, opts.LogPath, 0, res.Stats.ParseTime, err)
		return fmt.Errorf("parse: %w", err)
	}
	hooks.OnParseComplete(ctx, opts.LogPath, parsed.Graph.Len(), res.Stats.ParseTime, nil)
	logger.Info("parsed restore log",
		"log", opts.LogPath,
		"requests", parsed.Graph.Len(),
		"edges", parsed.Graph.EdgeCount(),
		"max_concurrency", parsed.MaxConcurrency,
		"duration", res.Stats.ParseTime)

	f := &io.File{
		Kind:    opts.Kind,
		Sources: parsed.Sources,
		Stats: io.Stats{
			MaxConcurrency: parsed.MaxConcurrency,
			Pending:        parsed.Pending,
		},
	}

	// Classify
	if opts.Kind == io.KindOperation {
		classifyStart := time.Now()
		sources, err := ResolveSources(ctx, parsed.Sources, opts.Overrides, r.Resolver, opts.Offline, logger)
		if err != nil {
			return fmt.Errorf("resolve sources: %w", err)
		}
		g, stats, err := operation.FromRequests(parsed.Graph, operation.NewParser(sources))
		if err != nil {
			return fmt.Errorf("classify: %w", err)
		}
		res.Stats.ClassifyTime = time.Since(classifyStart)
		f.Operations = g
		f.Stats.Unknown = stats.Unknown
		logger.Info("classified requests",
			"operations", stats.Classified,
			"unknown", stats.Unknown,
			"duration", res.Stats.ClassifyTime)
		if stats.Classified == 0 && stats.Unknown > 0 {
			logger.Warn("no request matched a PackageBaseAddress resource", "log", opts.LogPath)
		}
	} else {
		f.Requests = parsed.Graph
	}
	f.Stats.EdgesBefore = f.EdgeCount()

	// Reduce
	if opts.Reduce {
		reduceStart := time.Now()
		err := reduceFile(f)
		res.Stats.ReduceTime = time.Since(reduceStart)
		hooks.OnReduceComplete(ctx, opts.LogPath, f.Stats.EdgesBefore, f.EdgeCount(), res.Stats.ReduceTime, err)
		if err != nil {
			return fmt.Errorf("reduce %s: %w", opts.LogPath, err)
		}
		f.Stats.EdgesAfter = f.EdgeCount()
		logger.Info("reduced graph",
			"edges_before", f.Stats.EdgesBefore,
			"edges_after", f.Stats.EdgesAfter,
			"duration", res.Stats.ReduceTime)
	}

	res.File = f
	return nil
}

func reduceFile(f *io.File) error {
	switch f.Kind {
	case io.KindRequest:
		g, err := transform.Reduce(f.Requests)
		if err != nil {
			return err
		}
		f.Requests = g
	case io.KindOperation:
		g, err := transform.Reduce(f.Operations)
		if err != nil {
			return err
		}
		f.Operations = g
	}
	return nil
}

// Render produces the artifacts named in opts.Formats for f.
func Render(ctx context.Context, f *io.File, opts Options) (map[string][]byte, error) {
	if err := ValidateFormats(opts.Formats); err != nil {
		return nil, err
	}
	dopts := nodelink.Options{Detailed: opts.Detailed, Title: opts.LogPath}
	var dot string
	switch f.Kind {
	case io.KindRequest:
		dot = nodelink.RequestDOT(f.Requests, dopts)
	case io.KindOperation:
		dot = nodelink.OperationDOT(f.Operations, f.Sources, dopts)
	default:
		return nil, fmt.Errorf("unknown graph kind %q", f.Kind)
	}

	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		switch format {
		case FormatDOT:
			artifacts[format] = []byte(dot)
		case FormatSVG:
			svg, err := nodelink.RenderSVG(ctx, dot)
			if err != nil {
				return nil, err
			}
			artifacts[format] = svg
		}
	}
	return artifacts, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
