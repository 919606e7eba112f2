// Package mongodb stores replay results in MongoDB so that runs from many
// machines can be compared in one place.
//
// Results are inserted in batches by a background goroutine, the same way
// package sink decouples CSV writing from replay workers.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/restoretrace/pkg/replay"
	"github.com/matzehuels/restoretrace/pkg/sink"
)

// Config selects the database and collections.
type Config struct {
	URI        string
	Database   string
	Collection string // per-request results; runs go to Collection+"_runs"

	BatchSize int
	QueueSize int

	// InsertTimeout bounds each batch insert. Zero means 10s.
	InsertTimeout time.Duration
}

const (
	defaultDatabase   = "restoretrace"
	defaultCollection = "results"
	defaultBatchSize  = 500

	defaultInsertTimeout = 10 * time.Second
)

type resultDoc struct {
	RunID      string    `bson:"run_id"`
	Variant    string    `bson:"variant,omitempty"`
	Iteration  int       `bson:"iteration"`
	Target     string    `bson:"target,omitempty"`
	Index      int       `bson:"index"`
	HitIndex   int       `bson:"hit_index"`
	Method     string    `bson:"method"`
	URL        string    `bson:"url"`
	Label      string    `bson:"label,omitempty"`
	StatusCode int       `bson:"status_code"`
	Error      string    `bson:"error,omitempty"`
	Started    time.Time `bson:"started"`
	HeaderMS   float64   `bson:"header_ms"`
	BodyMS     float64   `bson:"body_ms"`
	BodyBytes  int64     `bson:"body_bytes"`
}

func newResultDoc(run sink.Run, res replay.Result) resultDoc {
	doc := resultDoc{
		RunID:      run.ID,
		Variant:    run.Variant,
		Iteration:  run.Iteration,
		Target:     run.Target,
		Index:      res.Index,
		HitIndex:   res.HitIndex,
		Method:     res.Method,
		URL:        res.URL,
		Label:      res.Label,
		StatusCode: res.StatusCode,
		Started:    res.Started.UTC(),
		HeaderMS:   ms(res.HeaderDuration),
		BodyMS:     ms(res.BodyDuration),
		BodyBytes:  res.BodyBytes,
	}
	if res.Err != nil {
		doc.Error = res.Err.Error()
	}
	return doc
}

func newRunDoc(run sink.Run, sum *replay.Summary) bson.M {
	return bson.M{
		"run_id":          run.ID,
		"variant":         run.Variant,
		"iteration":       run.Iteration,
		"target":          run.Target,
		"nodes":           sum.Nodes,
		"dispatched":      sum.Dispatched,
		"succeeded":       sum.Succeeded,
		"failed":          sum.Failed,
		"errors":          sum.Errors,
		"max_concurrency": sum.MaxConcurrency,
		"max_in_flight":   sum.MaxInFlight,
		"started":         sum.Started.UTC(),
		"duration_ms":     ms(sum.Duration),
		"canceled":        sum.Canceled,
	}
}

func ms(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }

// Sink batches results into a MongoDB collection. It implements
// [replay.Recorder].
type Sink struct {
	client  *mongo.Client
	coll    *mongo.Collection
	runs    *mongo.Collection
	run     sink.Run
	batch   int
	timeout time.Duration
	logger  *log.Logger

	docs chan resultDoc
	done chan struct{}
	err  error
}

// Connect opens a client, pings the server and starts the batch writer.
func Connect(ctx context.Context, cfg Config, run sink.Run, logger *log.Logger) (*Sink, error) {
	if cfg.Database == "" {
		cfg.Database = defaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = defaultCollection
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return newSink(ctx, client, cfg, run, logger), nil
}

// newSink starts the batch writer on a connected client.
func newSink(ctx context.Context, client *mongo.Client, cfg Config, run sink.Run, logger *log.Logger) *Sink {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = sink.DefaultQueueSize
	}
	if cfg.InsertTimeout <= 0 {
		cfg.InsertTimeout = defaultInsertTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	db := client.Database(cfg.Database)
	s := &Sink{
		client:  client,
		coll:    db.Collection(cfg.Collection),
		runs:    db.Collection(cfg.Collection + "_runs"),
		run:     run,
		batch:   cfg.BatchSize,
		timeout: cfg.InsertTimeout,
		logger:  logger,
		docs:    make(chan resultDoc, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	go s.loop(context.WithoutCancel(ctx))
	return s
}

func (s *Sink) loop(ctx context.Context) {
	defer close(s.done)
	pending := make([]any, 0, s.batch)
	flush := func() {
		if len(pending) == 0 || s.err != nil {
			pending = pending[:0]
			return
		}
		ictx, cancel := context.WithTimeout(ctx, s.timeout)
		_, err := s.coll.InsertMany(ictx, pending)
		cancel()
		if err != nil {
			s.err = fmt.Errorf("insert results: %w", err)
			s.logger.Warn("mongodb insert failed, dropping further results", "err", err)
		}
		pending = pending[:0]
	}
	for doc := range s.docs {
		pending = append(pending, doc)
		if len(pending) >= s.batch || len(s.docs) == 0 {
			flush()
		}
	}
	flush()
}

// Record queues a result document.
func (s *Sink) Record(res replay.Result) {
	s.docs <- newResultDoc(s.run, res)
}

// RecordSummary inserts the run summary immediately.
func (s *Sink) RecordSummary(ctx context.Context, sum *replay.Summary) error {
	if _, err := s.runs.InsertOne(ctx, newRunDoc(s.run, sum)); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Close drains queued results and disconnects. It gives up waiting for
// the drain when ctx is done. Record must not be called after Close.
func (s *Sink) Close(ctx context.Context) error {
	close(s.docs)
	select {
	case <-s.done:
	case <-ctx.Done():
		return fmt.Errorf("drain mongodb results: %w", ctx.Err())
	}
	if err := s.client.Disconnect(ctx); err != nil && s.err == nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return s.err
}
