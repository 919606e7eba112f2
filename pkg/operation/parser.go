package operation

import (
	"net/http"
	"strings"

	"github.com/matzehuels/restoretrace/pkg/restorelog"
)

// Source is a package source and the PackageBaseAddress resources it
// advertises.
type Source struct {
	Name                 string
	PackageBaseAddresses []string
}

// ResourceURI pairs a source name with one of its resource base URIs.
type ResourceURI struct {
	Source string
	URI    string
}

// Info is the classification of one request.
type Info struct {
	// Operation is nil when the request is not a known operation.
	Operation *Operation

	Request restorelog.StartRequest

	// SourceResourceURIs lists every source resource whose base prefixes
	// the request URL, in source order. The first entry decides the
	// operation's source index.
	SourceResourceURIs []ResourceURI
}

type resourceBase struct {
	sourceIndex int
	source      string
	base        string // always ends in "/"
}

// Parser classifies requests against a fixed list of sources.
// A Parser is immutable and safe for concurrent use.
type Parser struct {
	bases []resourceBase
}

// NewParser creates a parser. Source order is significant: the first
// matching source wins.
func NewParser(sources []Source) *Parser {
	p := &Parser{}
	for i, s := range sources {
		for _, b := range s.PackageBaseAddresses {
			if b == "" {
				continue
			}
			if !strings.HasSuffix(b, "/") {
				b += "/"
			}
			p.bases = append(p.bases, resourceBase{sourceIndex: i, source: s.Name, base: b})
		}
	}
	return p
}

// ParseAll classifies each request in order.
func (p *Parser) ParseAll(reqs []restorelog.StartRequest) []Info {
	out := make([]Info, len(reqs))
	for i, r := range reqs {
		out[i] = p.Parse(r)
	}
	return out
}

// Parse classifies one request.
func (p *Parser) Parse(req restorelog.StartRequest) Info {
	info := Info{Request: req}

	var matched *resourceBase
	for i := range p.bases {
		b := &p.bases[i]
		if !strings.HasPrefix(req.URL, b.base) {
			continue
		}
		info.SourceResourceURIs = append(info.SourceResourceURIs, ResourceURI{Source: b.source, URI: b.base})
		if matched == nil {
			matched = b
		}
	}
	if matched == nil || req.Method != http.MethodGet {
		return info
	}

	if op, ok := classify(matched.sourceIndex, req.URL[len(matched.base):]); ok {
		info.Operation = &op
	}
	return info
}

func classify(sourceIndex int, rest string) (Operation, bool) {
	if strings.ContainsAny(rest, "?#") {
		return Operation{}, false
	}
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 2:
		id := parts[0]
		if parts[1] != "index.json" || !IsLowerID(id) {
			return Operation{}, false
		}
		return NewIndex(sourceIndex, id), true
	case 3:
		id, version, file := parts[0], parts[1], parts[2]
		if !IsLowerID(id) || !IsNormalizedVersion(version) {
			return Operation{}, false
		}
		if file != id+"."+version+".nupkg" {
			return Operation{}, false
		}
		return NewNupkg(sourceIndex, id, version), true
	default:
		return Operation{}, false
	}
}
