package io

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/matzehuels/restoretrace/pkg/errors"
	"github.com/matzehuels/restoretrace/pkg/graph"
	"github.com/matzehuels/restoretrace/pkg/operation"
	"github.com/matzehuels/restoretrace/pkg/restorelog"
)

// Read decodes a graph file from r. It does not close r.
//
// A file without "k" is read as an operation graph if its first node has a
// type and as a request graph otherwise.
func Read(r io.Reader) (*File, error) {
	var in wireFile
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "decode graph")
	}

	f := &File{Kind: in.Kind, Sources: in.Sources}
	if in.Stats != nil {
		f.Stats = *in.Stats
	}
	if f.Kind == "" {
		f.Kind = KindRequest
		if len(in.Nodes) > 0 && in.Nodes[0].Type != "" {
			f.Kind = KindOperation
		}
	}

	var err error
	switch f.Kind {
	case KindRequest:
		f.Requests, err = decodeRequests(in.Nodes)
	case KindOperation:
		f.Operations, err = decodeOperations(in.Nodes)
	default:
		err = errors.New(errors.ErrCodeInvalidGraph, "unknown graph kind %q", f.Kind)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func decodeRequests(in []wireNode) (*restorelog.Graph, error) {
	nodes := make([]*restorelog.Node, len(in))
	for i, wn := range in {
		if wn.URL == "" {
			return nil, nodeError(i, "missing url")
		}
		if wn.HitIndex < 0 {
			return nil, nodeError(i, "negative hit index %d", wn.HitIndex)
		}
		req := restorelog.Request{Start: restorelog.StartRequest{Method: wn.Method, URL: wn.URL}}
		if req.Start.Method == "" {
			req.Start.Method = defaultMethod
		}
		code := defaultStatus
		if wn.StatusCode != nil {
			code = *wn.StatusCode
		}
		if code != 0 {
			req.End = &restorelog.EndRequest{
				StatusCode: code,
				URL:        wn.URL,
				Duration:   time.Duration(wn.Ticks) * tickDuration,
			}
		}
		nodes[i] = &restorelog.Node{HitIndex: wn.HitIndex, Data: req}
	}
	if err := link(nodes, in); err != nil {
		return nil, err
	}
	return graph.New(nodes...), nil
}

func decodeOperations(in []wireNode) (*operation.Graph, error) {
	nodes := make([]*operation.Node, len(in))
	for i, wn := range in {
		if wn.Type == "" {
			return nil, nodeError(i, "missing operation type")
		}
		typ, ok := operation.ParseType(wn.Type)
		if !ok {
			return nil, nodeError(i, "unknown operation type %q", wn.Type)
		}
		if wn.ID == "" {
			return nil, nodeError(i, "missing package id")
		}
		if typ.HasVersion() && wn.Version == "" {
			return nil, nodeError(i, "missing version for %s", typ)
		}
		if wn.SourceIndex < 0 {
			return nil, nodeError(i, "negative source index %d", wn.SourceIndex)
		}
		if wn.HitIndex < 0 {
			return nil, nodeError(i, "negative hit index %d", wn.HitIndex)
		}
		op := operation.Operation{Type: typ, SourceIndex: wn.SourceIndex, ID: wn.ID, Version: wn.Version}
		nodes[i] = &operation.Node{HitIndex: wn.HitIndex, Data: op}
	}
	if err := link(nodes, in); err != nil {
		return nil, err
	}
	return graph.New(nodes...), nil
}

// link resolves dependency positions once every node exists.
func link[T any](nodes []*graph.Node[T], in []wireNode) error {
	for i, wn := range in {
		if len(wn.Dependencies) == 0 {
			continue
		}
		deps := make([]*graph.Node[T], len(wn.Dependencies))
		for k, j := range wn.Dependencies {
			if j < 0 || j >= len(nodes) {
				return nodeError(i, "dependency %d out of range [0, %d)", j, len(nodes))
			}
			if j == i {
				return nodeError(i, "node depends on itself")
			}
			deps[k] = nodes[j]
		}
		nodes[i].Dependencies = deps
	}
	return nil
}

func nodeError(i int, format string, args ...any) error {
	return errors.New(errors.ErrCodeInvalidGraph, "node %d: %s", i, fmt.Sprintf(format, args...))
}
