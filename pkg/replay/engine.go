package replay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/matzehuels/restoretrace/pkg/graph"
	"github.com/matzehuels/restoretrace/pkg/observability"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options configures an [Engine].
type Options struct {
	// MaxConcurrency caps the number of requests in flight. Values below 1
	// mean 1.
	MaxConcurrency int

	// GracePeriod is how long in-flight requests may continue after the
	// run's context is done. Zero aborts them immediately.
	GracePeriod time.Duration

	// RequestTimeout bounds each request, headers and body. Zero means no
	// limit beyond the client's own.
	RequestTimeout time.Duration

	// Recorder receives every result. Nil discards them.
	Recorder Recorder

	// UserAgent is sent with every request when set.
	UserAgent string

	// Logger receives debug output. Nil uses log.Default().
	Logger *log.Logger
}

// Engine replays plans. An Engine may run several plans, one after the
// other or concurrently.
type Engine struct {
	client Doer
	opts   Options
	logger *log.Logger
}

// New creates an engine that sends requests through client.
func New(client Doer, opts Options) *Engine {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{client: client, opts: opts, logger: logger}
}

// run is the shared state of one replay.
type run struct {
	e     *Engine
	plan  *Plan
	hooks observability.ReplayHooks

	state      []atomic.Int32
	remaining  []atomic.Int32
	dependents [][]int
	ready      chan int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu      sync.Mutex
	summary Summary
}

// Run replays plan and blocks until every dispatched request has
// completed. It returns the context's error if the run was cut short; the
// summary is valid either way.
func (e *Engine) Run(ctx context.Context, plan *Plan) (*Summary, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	n := plan.Len()
	r := &run{
		e:          e,
		plan:       plan,
		hooks:      observability.Replay(),
		state:      make([]atomic.Int32, n),
		remaining:  make([]atomic.Int32, n),
		dependents: graph.Dependents(plan.Dependencies),
		ready:      make(chan int, n),
	}
	r.summary = Summary{Nodes: n, MaxConcurrency: e.opts.MaxConcurrency, Started: time.Now()}

	for i, deps := range plan.Dependencies {
		r.remaining[i].Store(int32(len(deps)))
		if len(deps) == 0 {
			r.markReady(i)
		}
	}

	// Requests outlive ctx by the grace period.
	reqCtx, cancelRequests := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRequests()
	stop := context.AfterFunc(ctx, func() {
		if e.opts.GracePeriod <= 0 {
			cancelRequests()
			return
		}
		time.AfterFunc(e.opts.GracePeriod, cancelRequests)
	})
	defer stop()

	r.hooks.OnReplayStart(ctx, n, e.opts.MaxConcurrency)
	e.logger.Debug("replay started", "nodes", n, "max_concurrency", e.opts.MaxConcurrency)

	sem := semaphore.NewWeighted(int64(e.opts.MaxConcurrency))
	var wg sync.WaitGroup
	dispatched := 0

dispatch:
	for dispatched < n {
		var i int
		select {
		case i = <-r.ready:
		case <-ctx.Done():
			break dispatch
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break dispatch
		}
		// Acquire may win the race against a context that is already done.
		if ctx.Err() != nil {
			sem.Release(1)
			break dispatch
		}
		dispatched++
		r.state[i].Store(int32(InFlight))
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			r.execute(reqCtx, i)
		}()
	}
	wg.Wait()

	r.mu.Lock()
	summary := r.summary
	r.mu.Unlock()
	summary.Dispatched = dispatched
	summary.MaxInFlight = int(r.maxInFlight.Load())
	summary.Duration = time.Since(summary.Started)
	summary.Canceled = dispatched < n

	r.hooks.OnReplayComplete(ctx, summary.Dispatched, summary.Succeeded, summary.Duration)
	e.logger.Debug("replay finished", "dispatched", dispatched, "succeeded", summary.Succeeded,
		"failed", summary.Failed, "errors", summary.Errors, "duration", summary.Duration)

	if summary.Canceled {
		e.logger.Debug("replay canceled", "states", r.stateCounts())
		return &summary, fmt.Errorf("replay stopped after %d of %d requests: %w", dispatched, n, context.Cause(ctx))
	}
	return &summary, nil
}

// stateCounts tallies nodes by state.
func (r *run) stateCounts() map[State]int {
	counts := make(map[State]int, len(stateNames))
	for i := range r.state {
		counts[State(r.state[i].Load())]++
	}
	return counts
}

func (r *run) markReady(i int) {
	r.state[i].Store(int32(Ready))
	r.ready <- i
}

func (r *run) execute(ctx context.Context, i int) {
	cur := r.inFlight.Add(1)
	for {
		m := r.maxInFlight.Load()
		if cur <= m || r.maxInFlight.CompareAndSwap(m, cur) {
			break
		}
	}

	req := r.plan.Requests[i]
	r.hooks.OnDispatch(ctx, req.Method, req.URL, int(cur))
	res := r.e.do(ctx, i, req)
	r.inFlight.Add(-1)

	r.mu.Lock()
	switch {
	case res.Err != nil:
		r.summary.Errors++
	case res.Succeeded():
		r.summary.Succeeded++
	default:
		r.summary.Failed++
	}
	r.mu.Unlock()

	if r.e.opts.Recorder != nil {
		r.e.opts.Recorder.Record(res)
	}
	r.hooks.OnComplete(ctx, req.Method, req.URL, res.StatusCode, res.Duration(), res.Err)

	r.state[i].Store(int32(Completed))
	for _, d := range r.dependents[i] {
		if r.remaining[d].Add(-1) == 0 {
			r.markReady(d)
		}
	}
}

func (e *Engine) do(ctx context.Context, i int, req Request) Result {
	res := Result{
		Index:    i,
		HitIndex: req.HitIndex,
		Method:   req.Method,
		URL:      req.URL,
		Label:    req.Label,
		Started:  time.Now(),
	}

	if e.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RequestTimeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, nil)
	if err != nil {
		res.Err = err
		return res
	}
	if e.opts.UserAgent != "" {
		httpReq.Header.Set("User-Agent", e.opts.UserAgent)
	}

	resp, err := e.client.Do(httpReq)
	res.HeaderDuration = time.Since(res.Started)
	if err != nil {
		res.Err = err
		e.logger.Debug("request failed", "url", req.URL, "err", err)
		return res
	}
	defer resp.Body.Close()
	res.StatusCode = resp.StatusCode

	bodyStart := time.Now()
	res.BodyBytes, err = io.Copy(io.Discard, resp.Body)
	res.BodyDuration = time.Since(bodyStart)
	if err != nil {
		res.Err = fmt.Errorf("read body: %w", err)
		res.StatusCode = 0
	}
	return res
}
