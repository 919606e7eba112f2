package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/restoretrace/pkg/errors"
	"github.com/matzehuels/restoretrace/pkg/io"
	"github.com/matzehuels/restoretrace/pkg/pipeline"
)

// parseOpts holds the parse-restore-logs flags.
type parseOpts struct {
	output   string
	kind     string
	noReduce bool
	formats  string
	gzip     bool
	offline  bool
	noCache  bool
	refresh  bool
	detailed bool
}

// parseCommand creates the parse-restore-logs command.
func (c *CLI) parseCommand() *cobra.Command {
	opts := parseOpts{kind: string(io.KindOperation)}

	cmd := &cobra.Command{
		Use:     "parse-restore-logs <log>...",
		Aliases: []string{"parse"},
		Short:   "Capture request graphs from restore logs",
		Long: `Parse detailed NuGet restore logs into graph files.

Each log produces <name>.json (or <name>.json.gz with --gzip) in the output
directory. Operation graphs classify requests against the PackageBaseAddress
resources of the log's feeds; request graphs keep every logged request.`,
		Example: `  # Operation graph, reduced, with an SVG view
  restoretrace parse-restore-logs restore.log --format svg

  # Raw request graph of several logs
  restoretrace parse-restore-logs logs/*.log --kind request --no-reduce -o graphs`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runParse(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", ".", "output directory")
	cmd.Flags().StringVar(&opts.kind, "kind", opts.kind, "graph kind: operation or request")
	cmd.Flags().BoolVar(&opts.noReduce, "no-reduce", false, "keep transitively implied dependencies")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "also render: dot, svg (comma-separated)")
	cmd.Flags().BoolVar(&opts.gzip, "gzip", false, "write .json.gz")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "skip service index lookups")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached graphs and lookups")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show status and timing in rendered nodes")

	return cmd
}

func (c *CLI) runParse(ctx context.Context, logs []string, opts parseOpts) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	formats := parseFormats(opts.formats)
	if err := pipeline.ValidateFormats(formats); err != nil {
		return err
	}
	if err := errors.ValidatePath(opts.output); err != nil {
		return err
	}
	if err := os.MkdirAll(opts.output, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	ch, err := c.newCache(ctx, opts.noCache)
	if err != nil {
		return err
	}
	runner := pipeline.NewRunner(ch, c.newKeyer(), c.Logger)
	defer runner.Close()
	if !opts.offline {
		runner.Resolver = c.newNuGetClient(ch, opts.refresh)
	}
	if cfg.Cache.TTL.Duration > 0 {
		runner.TTL = cfg.Cache.TTL.Duration
	}

	overrides := make(map[string][]string)
	for _, s := range cfg.Sources {
		overrides[s.Feed] = s.PackageBaseAddress
	}
	intern := make(map[string]string)

	names := graphNames(logs)
	var firstErr error
	failed := 0
	for i, path := range logs {
		err := c.parseOne(ctx, runner, filepath.Join(opts.output, names[i]), opts.gzip, pipeline.Options{
			LogPath:   path,
			Kind:      io.Kind(opts.kind),
			Reduce:    !opts.noReduce,
			Offline:   opts.offline,
			Overrides: overrides,
			Refresh:   opts.refresh,
			Formats:   formats,
			Detailed:  opts.detailed,
			Intern:    intern,
		})
		if err == nil {
			continue
		}
		if errors.IsCanceled(err) || len(logs) == 1 {
			return err
		}
		printError("%s: %v", path, err)
		if firstErr == nil {
			firstErr = err
		}
		failed++
	}
	if failed > 0 {
		code := errors.GetCode(firstErr)
		if code == "" {
			code = errors.ErrCodeInternal
		}
		return errors.Wrap(code, firstErr, "%d of %d logs failed", failed, len(logs))
	}

	if len(logs) == 1 {
		printNewline()
		printNextStep("Replay it", fmt.Sprintf("%s replay-request-graph %s --target <url>", appName,
			filepath.Join(opts.output, names[0]+".json")))
	}
	return nil
}

// parseOne captures one log and writes its graph and artifacts under base.
func (c *CLI) parseOne(ctx context.Context, runner *pipeline.Runner, base string, gzip bool, po pipeline.Options) error {
	path := po.LogPath
	prog := newProgress(c.Logger)
	res, err := runner.Execute(ctx, po)
	if err != nil {
		return err
	}

	out := base + ".json"
	if gzip {
		out += ".gz"
	}
	if err := io.Export(out, res.File); err != nil {
		return err
	}
	prog.done("captured " + path)

	printSuccess("%s", path)
	printStats(res.File.Len(), res.File.EdgeCount(), res.CacheInfo.GraphHit)
	printCaptureDetails(res.File)
	printFile(out)
	for _, format := range po.Formats {
		artifact := base + "." + format
		if err := os.WriteFile(artifact, res.Artifacts[format], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", artifact, err)
		}
		printFile(artifact)
	}
	return nil
}

// graphNames gives every log a distinct output base name. Logs that share
// a base name get a numeric suffix: a/restore.log and b/restore.log become
// "restore" and "restore-2".
func graphNames(logs []string) []string {
	names := make([]string, len(logs))
	used := make(map[string]bool, len(logs))
	for i, path := range logs {
		base := graphName(path)
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s-%d", base, n)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

// graphName derives the output base name from a log path: "restore.log"
// becomes "restore".
func graphName(path string) string {
	name := filepath.Base(path)
	if ext := filepath.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

func printCaptureDetails(f *io.File) {
	s := f.Stats
	if s.EdgesAfter > 0 || s.EdgesBefore > 0 {
		printDetail("edges %d → %d after reduction", s.EdgesBefore, f.EdgeCount())
	}
	printDetail("observed max concurrency %d", s.MaxConcurrency)
	if s.Unknown > 0 {
		printDetail("%d unclassified requests dropped", s.Unknown)
	}
	if s.Pending > 0 {
		printWarning("%d requests had no logged response", s.Pending)
	}
}
