package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/restoretrace/pkg/graph"
	"github.com/matzehuels/restoretrace/pkg/operation"
	"github.com/matzehuels/restoretrace/pkg/restorelog"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds hit index, status and timing to node labels.
	// When false, only the resource is shown.
	Detailed bool

	// Title is drawn above the diagram when set.
	Title string
}

type style[T any] struct {
	label func(n *graph.Node[T], detailed bool) string
	attrs func(n *graph.Node[T]) []string
}

// RequestDOT converts a request graph to DOT.
func RequestDOT(g *restorelog.Graph, opts Options) string {
	return toDOT(g, opts, style[restorelog.Request]{
		label: func(n *restorelog.Node, detailed bool) string {
			req := n.Data
			label := req.Start.URL
			if req.Start.Method != "GET" {
				label = req.Start.Method + " " + label
			}
			if !detailed {
				return label
			}
			parts := []string{label, fmt.Sprintf("hit: %d", n.HitIndex)}
			if req.End != nil {
				parts = append(parts, fmt.Sprintf("status: %d", req.End.StatusCode), "duration: "+req.End.Duration.String())
			}
			return strings.Join(parts, "\n")
		},
		attrs: func(n *restorelog.Node) []string {
			switch end := n.Data.End; {
			case end == nil:
				return []string{`style="rounded,filled,dashed"`, "fillcolor=lightgrey"}
			case end.StatusCode < 200 || end.StatusCode > 299:
				return []string{"fillcolor=\"#f4cccc\""}
			}
			return nil
		},
	})
}

// OperationDOT converts an operation graph to DOT. Sources, if given, name
// the source of each operation in detailed labels.
func OperationDOT(g *operation.Graph, sources []string, opts Options) string {
	return toDOT(g, opts, style[operation.Operation]{
		label: func(n *operation.Node, detailed bool) string {
			op := n.Data
			label := op.ID
			if op.Type.HasVersion() {
				label += " " + op.Version
			}
			if !detailed {
				return label
			}
			source := strconv.Itoa(op.SourceIndex)
			if op.SourceIndex >= 0 && op.SourceIndex < len(sources) {
				source = sources[op.SourceIndex]
			}
			return strings.Join([]string{
				label,
				"type: " + op.Type.String(),
				"source: " + source,
				fmt.Sprintf("hit: %d", n.HitIndex),
			}, "\n")
		},
		attrs: func(n *operation.Node) []string {
			if n.Data.Type == operation.PackageBaseAddressNupkg {
				return []string{"fillcolor=\"#d9ead3\""}
			}
			return nil
		},
	})
}

func toDOT[T any](g *graph.Graph[T], opts Options, s style[T]) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	if opts.Title != "" {
		fmt.Fprintf(&buf, "  labelloc=t;\n  label=%q;\n", opts.Title)
	}
	buf.WriteString("\n")

	idx := g.Index()
	for i, n := range g.Nodes {
		attrs := append([]string{fmt.Sprintf("label=%q", s.label(n, opts.Detailed))}, s.attrs(n)...)
		fmt.Fprintf(&buf, "  n%d [%s];\n", i, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for i, n := range g.Nodes {
		for _, d := range n.Dependencies {
			if j, ok := idx[d]; ok {
				fmt.Fprintf(&buf, "  n%d -> n%d;\n", i, j)
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces the fixed pt dimensions Graphviz emits with a
// scalable viewBox.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}
