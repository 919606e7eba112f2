package sink

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultQueueSize is the row queue capacity used when none is given.
const DefaultQueueSize = 4096

// Writer appends CSV rows to a file from a background goroutine.
// Write and Close are safe for concurrent use.
type Writer struct {
	path string
	rows chan []string
	done chan struct{}

	mu     sync.RWMutex
	closed bool

	// written by the writer goroutine, read after done is closed
	err   error
	count int
}

// Open opens path for appending, creating it and its directory if needed,
// and starts the writer goroutine. header is written if the file is empty.
func Open(path string, header []string, queueSize int) (*Writer, error) {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	w := &Writer{
		path: path,
		rows: make(chan []string, queueSize),
		done: make(chan struct{}),
	}
	go w.loop(f, info.Size() == 0, header)
	return w, nil
}

func (w *Writer) loop(f *os.File, isNew bool, header []string) {
	defer close(w.done)

	bw := bufio.NewWriter(f)
	cw := csv.NewWriter(bw)
	write := func(row []string) {
		if w.err != nil {
			return
		}
		if err := cw.Write(row); err != nil {
			w.err = fmt.Errorf("write %s: %w", w.path, err)
		}
	}

	if isNew && len(header) > 0 {
		write(header)
	}
	for row := range w.rows {
		write(row)
		w.count++
		// Flush whenever the queue runs dry so readers see progress.
		if len(w.rows) == 0 {
			cw.Flush()
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil && w.err == nil {
		w.err = fmt.Errorf("write %s: %w", w.path, err)
	}
	if err := bw.Flush(); err != nil && w.err == nil {
		w.err = fmt.Errorf("flush %s: %w", w.path, err)
	}
	if err := f.Close(); err != nil && w.err == nil {
		w.err = fmt.Errorf("close %s: %w", w.path, err)
	}
}

// Path returns the file path.
func (w *Writer) Path() string { return w.path }

// Write queues a row. It blocks while the queue is full and returns false
// if the writer is closed.
func (w *Writer) Write(row []string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	w.rows <- row
	return true
}

// Close stops accepting rows, waits until every queued row is written and
// closes the file. It returns the first write error. Close is idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.rows)
	}
	w.mu.Unlock()

	<-w.done
	return w.err
}

// Count returns the number of rows written, excluding the header. It is
// only meaningful after Close.
func (w *Writer) Count() int {
	<-w.done
	return w.count
}
