package mongodb

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/restoretrace/pkg/replay"
	"github.com/matzehuels/restoretrace/pkg/sink"
)

func TestNewResultDoc(t *testing.T) {
	run := sink.Run{ID: "r1", Variant: "v", Iteration: 1, Target: "http://t"}
	doc := newResultDoc(run, replay.Result{
		Index: 2, HitIndex: 1, Method: "GET", URL: "http://t/a", StatusCode: 404,
		HeaderDuration: 2 * time.Millisecond, BodyDuration: 500 * time.Microsecond,
		Err: nil,
	})
	if doc.RunID != "r1" || doc.Index != 2 || doc.StatusCode != 404 {
		t.Errorf("doc = %+v", doc)
	}
	if doc.HeaderMS != 2 || doc.BodyMS != 0.5 {
		t.Errorf("timings = %v, %v", doc.HeaderMS, doc.BodyMS)
	}
	if doc.Error != "" {
		t.Errorf("Error = %q, want empty", doc.Error)
	}

	doc = newResultDoc(run, replay.Result{Err: errors.New("timeout")})
	if doc.Error != "timeout" {
		t.Errorf("Error = %q", doc.Error)
	}
}

func TestNewRunDoc(t *testing.T) {
	doc := newRunDoc(sink.Run{ID: "r1"}, &replay.Summary{Nodes: 5, Dispatched: 4, Canceled: true, Duration: time.Second})
	if doc["nodes"] != 5 || doc["dispatched"] != 4 || doc["canceled"] != true || doc["duration_ms"] != 1000.0 {
		t.Errorf("doc = %v", doc)
	}
}

// unreachableSink starts a sink whose client points at a closed port, so
// every insert waits in server selection until its context ends.
func unreachableSink(t *testing.T, insertTimeout time.Duration) *Sink {
	t.Helper()
	client, err := mongo.Connect(context.Background(),
		options.Client().ApplyURI("mongodb://127.0.0.1:1").SetServerSelectionTimeout(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	s := newSink(context.Background(), client, Config{Database: "db", Collection: "results", InsertTimeout: insertTimeout}, sink.Run{ID: "r1"}, nil)
	t.Cleanup(func() {
		<-s.done
		_ = client.Disconnect(context.Background())
	})
	return s
}

func TestSinkInsertTimeout(t *testing.T) {
	s := unreachableSink(t, 50*time.Millisecond)
	s.Record(replay.Result{Method: "GET", URL: "http://t/a", StatusCode: 200})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	start := time.Now()
	if err := s.Close(ctx); err == nil {
		t.Fatal("Close() should report the failed insert")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Close() took %v, want the insert timeout to end it", elapsed)
	}
}

func TestSinkCloseHonorsContext(t *testing.T) {
	s := unreachableSink(t, 2*time.Second)
	s.Record(replay.Result{Method: "GET", URL: "http://t/a", StatusCode: 200})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestSinkIntegration(t *testing.T) {
	uri := os.Getenv("RESTORETRACE_TEST_MONGO")
	if uri == "" {
		t.Skip("RESTORETRACE_TEST_MONGO not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	run := sink.Run{ID: uuid.NewString(), Variant: "test"}
	s, err := Connect(ctx, Config{URI: uri, Database: "restoretrace_test", BatchSize: 2}, run, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		s.Record(replay.Result{Index: i, Method: "GET", URL: "http://t/x", StatusCode: 200})
	}
	if err := s.RecordSummary(ctx, &replay.Summary{Nodes: 5, Dispatched: 5, Succeeded: 5}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
}
