package sink

import (
	"strconv"
	"time"

	"github.com/matzehuels/restoretrace/pkg/replay"
)

// Run labels every row of one replay run.
type Run struct {
	ID        string
	Variant   string
	Iteration int
	Target    string
}

var resultHeader = []string{
	"run_id", "variant", "iteration", "index", "hit_index", "method", "url", "label",
	"status_code", "error", "started", "header_ms", "body_ms", "body_bytes",
}

var summaryHeader = []string{
	"run_id", "variant", "iteration", "target", "nodes", "dispatched", "succeeded",
	"failed", "errors", "max_concurrency", "max_in_flight", "started", "duration_ms", "canceled",
}

// Results writes one row per replayed request. It implements
// [replay.Recorder].
type Results struct {
	w   *Writer
	run Run
}

// OpenResults opens a request-duration CSV file.
func OpenResults(path string, run Run, queueSize int) (*Results, error) {
	w, err := Open(path, resultHeader, queueSize)
	if err != nil {
		return nil, err
	}
	return &Results{w: w, run: run}, nil
}

// Record queues a result row.
func (r *Results) Record(res replay.Result) {
	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}
	r.w.Write([]string{
		r.run.ID,
		r.run.Variant,
		strconv.Itoa(r.run.Iteration),
		strconv.Itoa(res.Index),
		strconv.Itoa(res.HitIndex),
		res.Method,
		res.URL,
		res.Label,
		strconv.Itoa(res.StatusCode),
		errText,
		res.Started.UTC().Format(time.RFC3339Nano),
		millis(res.HeaderDuration),
		millis(res.BodyDuration),
		strconv.FormatInt(res.BodyBytes, 10),
	})
}

// Close drains queued rows and closes the file.
func (r *Results) Close() error { return r.w.Close() }

// Path returns the file path.
func (r *Results) Path() string { return r.w.Path() }

// Summaries writes one row per replay run.
type Summaries struct {
	w *Writer
}

// OpenSummaries opens a run summary CSV file.
func OpenSummaries(path string) (*Summaries, error) {
	w, err := Open(path, summaryHeader, 16)
	if err != nil {
		return nil, err
	}
	return &Summaries{w: w}, nil
}

// Record queues a summary row.
func (s *Summaries) Record(run Run, sum *replay.Summary) {
	s.w.Write([]string{
		run.ID,
		run.Variant,
		strconv.Itoa(run.Iteration),
		run.Target,
		strconv.Itoa(sum.Nodes),
		strconv.Itoa(sum.Dispatched),
		strconv.Itoa(sum.Succeeded),
		strconv.Itoa(sum.Failed),
		strconv.Itoa(sum.Errors),
		strconv.Itoa(sum.MaxConcurrency),
		strconv.Itoa(sum.MaxInFlight),
		sum.Started.UTC().Format(time.RFC3339Nano),
		millis(sum.Duration),
		strconv.FormatBool(sum.Canceled),
	})
}

// Close drains queued rows and closes the file.
func (s *Summaries) Close() error { return s.w.Close() }

// Path returns the file path.
func (s *Summaries) Path() string { return s.w.Path() }

func millis(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 3, 64)
}
