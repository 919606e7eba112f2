package io

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/matzehuels/restoretrace/pkg/errors"
	"github.com/matzehuels/restoretrace/pkg/operation"
	"github.com/matzehuels/restoretrace/pkg/restorelog"
)

// Write encodes f as compact JSON and writes it to w.
func Write(w io.Writer, f *File) error {
	out := wireFile{Kind: f.Kind, Sources: f.Sources}
	if f.Stats != (Stats{}) {
		stats := f.Stats
		out.Stats = &stats
	}

	var err error
	switch f.Kind {
	case KindRequest:
		out.Nodes, err = encodeRequests(f.Requests)
	case KindOperation:
		out.Nodes, err = encodeOperations(f.Operations)
	default:
		err = errors.New(errors.ErrCodeInvalidGraph, "unknown graph kind %q", f.Kind)
	}
	if err != nil {
		return err
	}

	if err := json.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

func encodeRequests(g *restorelog.Graph) ([]wireNode, error) {
	adj, err := g.Adjacency()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "encode request graph")
	}
	nodes := make([]wireNode, g.Len())
	for i, n := range g.Nodes {
		wn := wireNode{
			HitIndex:     n.HitIndex,
			URL:          n.Data.Start.URL,
			Dependencies: adj[i],
		}
		if n.Data.Start.Method != defaultMethod {
			wn.Method = n.Data.Start.Method
		}
		switch end := n.Data.End; {
		case end == nil:
			none := 0
			wn.StatusCode = &none
		default:
			if end.StatusCode != defaultStatus {
				code := end.StatusCode
				wn.StatusCode = &code
			}
			wn.Ticks = int64(end.Duration / tickDuration)
		}
		nodes[i] = wn
	}
	return nodes, nil
}

func encodeOperations(g *operation.Graph) ([]wireNode, error) {
	adj, err := g.Adjacency()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidGraph, err, "encode operation graph")
	}
	nodes := make([]wireNode, g.Len())
	for i, n := range g.Nodes {
		nodes[i] = wireNode{
			HitIndex:     n.HitIndex,
			Type:         n.Data.Type.String(),
			SourceIndex:  n.Data.SourceIndex,
			ID:           n.Data.ID,
			Version:      n.Data.Version,
			Dependencies: adj[i],
		}
	}
	return nodes, nil
}
