package io

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/matzehuels/restoretrace/pkg/errors"
)

// Export writes f to path, gzip-compressed if path ends in ".gz".
func Export(path string, f *File) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	bw := bufio.NewWriter(out)
	var w io.Writer = bw
	var zw *gzip.Writer
	if isGzip(path) {
		zw = gzip.NewWriter(bw)
		w = zw
	}
	if err := Write(w, f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compress %s: %w", path, err)
		}
	}
	return bw.Flush()
}

// Import reads the graph file at path, decompressing it if path ends in
// ".gz".
func Import(path string) (*File, error) {
	in, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer in.Close()

	var r io.Reader = bufio.NewReader(in)
	if isGzip(path) {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "decompress %s", path)
		}
		defer zr.Close()
		r = zr
	}
	f, err := Read(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func isGzip(path string) bool { return strings.HasSuffix(path, ".gz") }
