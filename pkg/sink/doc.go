// Package sink writes replay results to CSV files.
//
// A [Writer] owns one file. Rows are queued on a bounded channel and
// written by a single goroutine, so replay workers never touch the file and
// a slow disk only delays them once the queue is full. Close drains the
// queue before closing the file.
//
// Files are opened for append. The header row is written only when the
// file is new or empty, so successive runs accumulate in one file.
//
// [Results] and [Summaries] format replay results and run summaries on top
// of a Writer.
package sink
