package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matzehuels/restoretrace/pkg/errors"
	"github.com/matzehuels/restoretrace/pkg/io"
	"github.com/matzehuels/restoretrace/pkg/replay"
	"github.com/matzehuels/restoretrace/pkg/sink"
	"github.com/matzehuels/restoretrace/pkg/sink/mongodb"
)

const (
	// defaultMaxConcurrency applies when neither flags, config nor the
	// graph file name a concurrency.
	defaultMaxConcurrency = 16

	resultsFile   = "request-durations.csv"
	summariesFile = "replay-summaries.csv"
)

// replayOpts holds the replay-request-graph flags.
type replayOpts struct {
	targets        []string
	maxConcurrency int
	iterations     int
	variant        string
	resultsDir     string
	timeout        time.Duration
	gracePeriod    time.Duration
	progress       bool
	mongoURI       string
}

// replayCommand creates the replay-request-graph command.
func (c *CLI) replayCommand() *cobra.Command {
	var opts replayOpts

	cmd := &cobra.Command{
		Use:     "replay-request-graph <graph.json>",
		Aliases: []string{"replay"},
		Short:   "Replay a captured graph against a feed",
		Long: `Replay a graph file against one or more target feeds.

Requests are dispatched in dependency order with at most --max-concurrency in
flight; by default the concurrency observed in the captured restore is used.
Operation graphs take PackageBaseAddress URLs as targets, one per source of
the graph or a single one for all sources. Request graphs take one target
whose scheme and host replace the recorded ones.

Per-request timings are appended to request-durations.csv and one row per
iteration to replay-summaries.csv in --results-dir.`,
		Example: `  restoretrace replay-request-graph restore.json.gz \
      --target http://localhost:8080/v3-flatcontainer --iterations 5 --variant warm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runReplay(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.targets, "target", "t", nil, "target base URL (repeatable)")
	cmd.Flags().IntVarP(&opts.maxConcurrency, "max-concurrency", "c", 0, "maximum requests in flight (default: observed)")
	cmd.Flags().IntVarP(&opts.iterations, "iterations", "n", 0, "number of runs (default from config, 1)")
	cmd.Flags().StringVar(&opts.variant, "variant", "", "label stored with every result row")
	cmd.Flags().StringVar(&opts.resultsDir, "results-dir", "results", "directory for CSV results")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "per-request timeout (default from config)")
	cmd.Flags().DurationVar(&opts.gracePeriod, "grace-period", -1, "time in-flight requests get after cancellation (default from config)")
	cmd.Flags().BoolVar(&opts.progress, "progress", false, "show a live progress view")
	cmd.Flags().StringVar(&opts.mongoURI, "mongo-uri", "", "also store results in MongoDB")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func (c *CLI) runReplay(cmd *cobra.Command, path string, opts replayOpts) (err error) {
	ctx := cmd.Context()
	cfg, err := c.config()
	if err != nil {
		return err
	}

	f, err := io.Import(path)
	if err != nil {
		return err
	}
	plan, err := buildPlan(f, opts.targets)
	if err != nil {
		return err
	}

	maxConc := firstPositive(opts.maxConcurrency, cfg.Replay.MaxConcurrency, f.Stats.MaxConcurrency, defaultMaxConcurrency)
	iterations := firstPositive(opts.iterations, cfg.Replay.Iterations, 1)
	timeout := opts.timeout
	if !cmd.Flags().Changed("timeout") {
		timeout = cfg.Replay.Timeout.Duration
	}
	grace := opts.gracePeriod
	if grace < 0 {
		grace = cfg.Replay.GracePeriod.Duration
	}
	mongoURI := opts.mongoURI
	if mongoURI == "" {
		mongoURI = cfg.Results.MongoURI
	}

	if err := errors.ValidatePath(opts.resultsDir); err != nil {
		return err
	}
	if err := os.MkdirAll(opts.resultsDir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	summaries, err := sink.OpenSummaries(filepath.Join(opts.resultsDir, summariesFile))
	if err != nil {
		return err
	}
	defer closeInto(&err, summaries)

	client := newReplayClient(maxConc)
	tty := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	printInfo("Replaying %s (%d requests, %d edges) at concurrency %d", path, plan.Len(), f.EdgeCount(), maxConc)
	for it := 1; it <= iterations; it++ {
		run := sink.Run{
			ID:        uuid.NewString(),
			Variant:   opts.variant,
			Iteration: it,
			Target:    strings.Join(opts.targets, " "),
		}
		sum, err := c.replayOnce(ctx, plan, run, replay.Options{
			MaxConcurrency: maxConc,
			GracePeriod:    grace,
			RequestTimeout: timeout,
			UserAgent:      c.userAgent(),
			Logger:         c.Logger,
		}, client, replayOutputs{
			resultsPath: filepath.Join(opts.resultsDir, resultsFile),
			queueSize:   cfg.Replay.QueueSize,
			mongo: mongodb.Config{
				URI:        mongoURI,
				Database:   cfg.Results.MongoDatabase,
				Collection: cfg.Results.MongoCollection,
				QueueSize:  cfg.Replay.QueueSize,
			},
			progress: opts.progress && tty,
			spinner:  !opts.progress && tty,
		})
		if sum != nil {
			summaries.Record(run, sum)
			printSummary(it, iterations, run, sum)
		}
		if err != nil {
			return err
		}
	}

	if err := summaries.Close(); err != nil {
		return err
	}

	printNewline()
	printFile(filepath.Join(opts.resultsDir, resultsFile))
	printFile(filepath.Join(opts.resultsDir, summariesFile))
	return nil
}

type replayOutputs struct {
	resultsPath string
	queueSize   int
	mongo       mongodb.Config
	progress    bool
	spinner     bool
}

// replayOnce runs one iteration with its own result sinks. Sinks are
// drained before it returns, also when the run was canceled.
func (c *CLI) replayOnce(ctx context.Context, plan *replay.Plan, run sink.Run, opts replay.Options, client replay.Doer, out replayOutputs) (sum *replay.Summary, err error) {
	results, err := sink.OpenResults(out.resultsPath, run, out.queueSize)
	if err != nil {
		return nil, err
	}
	defer closeInto(&err, results)
	recorders := replay.Recorders{results}

	var ms *mongodb.Sink
	if out.mongo.URI != "" {
		ms, err = mongodb.Connect(ctx, out.mongo, run, c.Logger)
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, ms)
	}
	opts.Recorder = recorders

	sum, err = c.execute(ctx, plan, opts, client, out)
	if ms != nil {
		// The run's context may be done; storing must not be.
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if sum != nil {
			if serr := ms.RecordSummary(sctx, sum); serr != nil {
				c.Logger.Warn("store run summary", "error", serr)
			}
		}
		if cerr := ms.Close(sctx); cerr != nil {
			c.Logger.Warn("close mongodb sink", "error", cerr)
		}
	}
	return sum, err
}

func (c *CLI) execute(ctx context.Context, plan *replay.Plan, opts replay.Options, client replay.Doer, out replayOutputs) (*replay.Summary, error) {
	if out.progress {
		return runWithProgress(ctx, plan.Len(), func(ctx context.Context, rec replay.Recorder) (*replay.Summary, error) {
			opts.Recorder = replay.Recorders{opts.Recorder, rec}
			return replay.New(client, opts).Run(ctx, plan)
		})
	}
	if out.spinner {
		s := newSpinnerWithContext(ctx, fmt.Sprintf("Replaying %d requests...", plan.Len()))
		s.Start()
		defer s.Stop()
	}
	return replay.New(client, opts).Run(ctx, plan)
}

// closeInto closes c and keeps its error in *err unless one is already set.
func closeInto(err *error, c interface{ Close() error }) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// buildPlan turns a graph file into a replay plan against targets.
func buildPlan(f *io.File, targets []string) (*replay.Plan, error) {
	if len(targets) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "at least one --target is required")
	}
	for _, t := range targets {
		if err := errors.ValidateURL(t); err != nil {
			return nil, err
		}
	}
	switch f.Kind {
	case io.KindOperation:
		if len(targets) != 1 && len(targets) != len(f.Sources) {
			return nil, errors.New(errors.ErrCodeInvalidInput,
				"graph has %d sources; pass one --target or one per source", len(f.Sources))
		}
		return replay.FromOperations(f.Operations, targets)
	case io.KindRequest:
		if len(targets) != 1 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "request graphs replay against exactly one --target")
		}
		return replay.FromRequests(f.Requests, targets[0])
	}
	return nil, errors.New(errors.ErrCodeInvalidGraph, "unknown graph kind %q", f.Kind)
}

// newReplayClient returns an HTTP client whose connection pool fits
// maxConc concurrent requests. Timeouts are applied per request by the
// engine.
func newReplayClient(maxConc int) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConns = max(tr.MaxIdleConns, maxConc)
	tr.MaxIdleConnsPerHost = maxConc
	return &http.Client{Transport: tr}
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}

func printSummary(it, iterations int, run sink.Run, s *replay.Summary) {
	label := fmt.Sprintf("Run %d/%d", it, iterations)
	if s.Canceled {
		printWarning("%s canceled after %d of %d requests", label, s.Dispatched, s.Nodes)
	} else {
		printSuccess("%s finished in %s", label, s.Duration.Round(time.Millisecond))
	}
	printDetail("id %s", run.ID)
	fmt.Println("  " + joinDim(
		fmt.Sprintf("%d succeeded", s.Succeeded),
		fmt.Sprintf("%d failed", s.Failed),
		fmt.Sprintf("%d errors", s.Errors),
		fmt.Sprintf("max in flight %d/%d", s.MaxInFlight, s.MaxConcurrency),
	))
}
