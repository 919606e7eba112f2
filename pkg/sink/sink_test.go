package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/restoretrace/pkg/replay"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestWriterHeaderOnlyOnNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "rows.csv")
	header := []string{"a", "b"}

	for run := 0; run < 2; run++ {
		w, err := Open(path, header, 0)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]string{fmt.Sprint(run), "x"})
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("rows = %v, want header plus 2 rows", rows)
	}
	if rows[0][0] != "a" || rows[1][0] != "0" || rows[2][0] != "1" {
		t.Errorf("rows = %v", rows)
	}
}

func TestWriterDrainsOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	w, err := Open(path, []string{"n"}, 4)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				w.Write([]string{fmt.Sprint(g*100 + i)})
			}
		}()
	}
	wg.Wait()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if w.Count() != 800 {
		t.Errorf("Count() = %d, want 800", w.Count())
	}
	if rows := readCSV(t, path); len(rows) != 801 {
		t.Errorf("file has %d rows, want 801", len(rows))
	}
}

func TestWriterCloseReportsWriteError(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	w, err := Open("/dev/full", []string{"n"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]string{"1"})
	if err := w.Close(); err == nil {
		t.Fatal("Close() should return the write error")
	}
	if err := w.Close(); err == nil {
		t.Error("second Close() should keep returning the write error")
	}
}

func TestWriterAfterClose(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "rows.csv"), nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if w.Write([]string{"late"}) {
		t.Error("Write after Close should report false")
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestResultsAndSummaries(t *testing.T) {
	dir := t.TempDir()
	run := Run{ID: "run-1", Variant: "baseline", Iteration: 2, Target: "http://localhost"}

	results, err := OpenResults(filepath.Join(dir, "requests.csv"), run, 0)
	if err != nil {
		t.Fatal(err)
	}
	results.Record(replay.Result{
		Index: 3, HitIndex: 1, Method: "GET", URL: "http://localhost/a/index.json",
		StatusCode: 200, Started: time.Unix(0, 0), HeaderDuration: 1500 * time.Microsecond,
		BodyDuration: time.Millisecond, BodyBytes: 42,
	})
	results.Record(replay.Result{Index: 4, Method: "GET", URL: "http://localhost/b", Err: errors.New("refused")})
	if err := results.Close(); err != nil {
		t.Fatal(err)
	}

	rows := readCSV(t, results.Path())
	if len(rows) != 3 {
		t.Fatalf("rows = %v", rows)
	}
	if len(rows[0]) != len(resultHeader) {
		t.Errorf("header = %v", rows[0])
	}
	first := rows[1]
	if first[0] != "run-1" || first[1] != "baseline" || first[2] != "2" || first[3] != "3" || first[8] != "200" {
		t.Errorf("first row = %v", first)
	}
	if first[11] != "1.500" || first[12] != "1.000" || first[13] != "42" {
		t.Errorf("timing columns = %v", first[11:])
	}
	if rows[2][8] != "0" || rows[2][9] != "refused" {
		t.Errorf("error row = %v", rows[2])
	}

	sums, err := OpenSummaries(filepath.Join(dir, "runs.csv"))
	if err != nil {
		t.Fatal(err)
	}
	sums.Record(run, &replay.Summary{Nodes: 10, Dispatched: 10, Succeeded: 9, Failed: 1, Duration: time.Second})
	if err := sums.Close(); err != nil {
		t.Fatal(err)
	}
	rows = readCSV(t, sums.Path())
	if len(rows) != 2 || rows[1][4] != "10" || rows[1][12] != "1000.000" || rows[1][13] != "false" {
		t.Errorf("summary rows = %v", rows)
	}
}
