package replay

import "time"

// State is the scheduling state of a node.
type State int32

const (
	Pending State = iota
	Ready
	InFlight
	Completed
)

var stateNames = [...]string{"pending", "ready", "in-flight", "completed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Result is the outcome of one replayed node.
type Result struct {
	Index    int
	HitIndex int
	Method   string
	URL      string
	Label    string

	// StatusCode is the response status, or 0 when Err is set.
	StatusCode int
	Err        error

	Started time.Time

	// HeaderDuration runs from sending the request to receiving the
	// response headers. BodyDuration covers reading the body to the end.
	HeaderDuration time.Duration
	BodyDuration   time.Duration
	BodyBytes      int64
}

// Succeeded reports whether the node got a 2xx response.
func (r Result) Succeeded() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode <= 299
}

// Duration is the total time the request was in flight.
func (r Result) Duration() time.Duration { return r.HeaderDuration + r.BodyDuration }

// Recorder receives results as nodes complete. Record is called from
// worker goroutines and must be safe for concurrent use.
type Recorder interface {
	Record(Result)
}

// RecorderFunc adapts a function to [Recorder].
type RecorderFunc func(Result)

// Record calls f(r).
func (f RecorderFunc) Record(r Result) { f(r) }

// Summary describes one run.
type Summary struct {
	Nodes      int
	Dispatched int
	Succeeded  int
	Failed     int // non-2xx responses
	Errors     int // transport errors and timeouts

	MaxConcurrency int
	MaxInFlight    int

	Started  time.Time
	Duration time.Duration

	// Canceled is set when the run stopped before every node was
	// dispatched.
	Canceled bool
}

// Recorders fans results out to several recorders in order.
type Recorders []Recorder

// Record passes r to every recorder.
func (rs Recorders) Record(r Result) {
	for _, rec := range rs {
		rec.Record(r)
	}
}
