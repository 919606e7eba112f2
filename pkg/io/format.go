package io

import (
	"net/http"
	"time"

	"github.com/matzehuels/restoretrace/pkg/operation"
	"github.com/matzehuels/restoretrace/pkg/restorelog"
)

// Kind identifies the payload of a graph file.
type Kind string

const (
	KindRequest   Kind = "request"
	KindOperation Kind = "operation"
)

// Stats describes how a graph was captured.
type Stats struct {
	// MaxConcurrency is the highest number of requests in flight at once
	// in the captured restore.
	MaxConcurrency int `json:"mc,omitempty"`

	// EdgesBefore and EdgesAfter count dependency edges before and after
	// reduction. EdgesAfter is zero for unreduced graphs.
	EdgesBefore int `json:"eb,omitempty"`
	EdgesAfter  int `json:"ea,omitempty"`

	// Unknown counts requests that were not classified as operations.
	Unknown int `json:"un,omitempty"`

	// Pending counts requests without a logged response.
	Pending int `json:"p,omitempty"`
}

// File is a decoded graph file. Exactly one of Requests and Operations is
// set, matching Kind.
type File struct {
	Kind       Kind
	Sources    []string
	Stats      Stats
	Requests   *restorelog.Graph
	Operations *operation.Graph
}

// Len returns the number of nodes in the file's graph.
func (f *File) Len() int {
	switch f.Kind {
	case KindRequest:
		return f.Requests.Len()
	case KindOperation:
		return f.Operations.Len()
	}
	return 0
}

// EdgeCount returns the number of dependency edges in the file's graph.
func (f *File) EdgeCount() int {
	switch f.Kind {
	case KindRequest:
		return f.Requests.EdgeCount()
	case KindOperation:
		return f.Operations.EdgeCount()
	}
	return 0
}

type wireFile struct {
	Kind    Kind       `json:"k,omitempty"`
	Sources []string   `json:"s,omitempty"`
	Stats   *Stats     `json:"x,omitempty"`
	Nodes   []wireNode `json:"n"`
}

type wireNode struct {
	HitIndex     int    `json:"h,omitempty"`
	Type         string `json:"t,omitempty"`
	SourceIndex  int    `json:"s,omitempty"`
	ID           string `json:"i,omitempty"`
	Version      string `json:"v,omitempty"`
	URL          string `json:"u,omitempty"`
	Method       string `json:"m,omitempty"`
	StatusCode   *int   `json:"c,omitempty"`
	Ticks        int64  `json:"d,omitempty"`
	Dependencies []int  `json:"e,omitempty"`
}

const (
	defaultMethod = http.MethodGet
	defaultStatus = http.StatusOK

	// tickDuration is the resolution of the "d" field.
	tickDuration = 100 * time.Nanosecond
)
