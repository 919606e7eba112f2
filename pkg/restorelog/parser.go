package restorelog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/restoretrace/pkg/errors"
	"github.com/matzehuels/restoretrace/pkg/graph"
)

const maxLineLength = 4 * 1024 * 1024

var (
	startRe = regexp.MustCompile(`^\s+(GET|HEAD|POST|PUT|DELETE|PATCH|OPTIONS)\s+(https?://\S+)\s*$`)
	endRe   = regexp.MustCompile(`^\s+([A-Za-z]+|\d{3})\s+(https?://\S+)\s+(\S+)ms\s*$`)
	feedsRe = regexp.MustCompile(`^(\s*)Feeds used:\s*$`)
)

// Options configures a [Parser].
type Options struct {
	// Path labels errors and log output. It does not have to exist.
	Path string

	// Intern deduplicates method and URL strings across parses. Passing the
	// same map to several parsers shares the strings between their graphs.
	// A nil map disables interning for the caller but the parser still
	// interns within one log.
	Intern map[string]string

	// Logger receives debug output. Nil uses log.Default().
	Logger *log.Logger
}

// Parser holds the state of one pass over a restore log.
//
// A Parser is single-use and not safe for concurrent use.
type Parser struct {
	opts   Options
	logger *log.Logger

	lineNo int
	hits   map[string]int
	queue  map[string][]*Node

	completed *graph.DependencySet[Request, string]
	nodes     []*Node

	sources     []string
	seenSources map[string]bool
	sawFeeds    bool

	current int
	max     int
}

// NewParser creates a parser for one log.
func NewParser(opts Options) *Parser {
	if opts.Intern == nil {
		opts.Intern = make(map[string]string)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Parser{
		opts:        opts,
		logger:      logger,
		hits:        make(map[string]int),
		queue:       make(map[string][]*Node),
		completed:   graph.NewDependencySet(Key),
		seenSources: make(map[string]bool),
	}
}

// Parse reads a restore log from r.
//
// Parse fails with a [errors.LineError] wrapping an INVALID_LOG or
// UNMATCHED_RESPONSE coded error for malformed or inconsistent lines, and
// with MISSING_SOURCES if the log has no "Feeds used:" section.
func Parse(r io.Reader, opts Options) (*Result, error) {
	return NewParser(opts).Parse(r)
}

// ParseFile opens path and parses it with [Parse]. Options.Path defaults to
// path.
func ParseFile(path string, opts Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if opts.Path == "" {
		opts.Path = path
	}
	return Parse(f, opts)
}

// Parse consumes r to the end and returns the request graph.
func (p *Parser) Parse(r io.Reader) (*Result, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineLength)

	var (
		inFeeds      bool
		headerIndent int
		entryIndent  = -1
	)

	for sc.Scan() {
		p.lineNo++
		line := strings.TrimRight(sc.Text(), "\r")

		if inFeeds {
			indent := indentOf(line)
			switch {
			case strings.TrimSpace(line) == "" || indent <= headerIndent:
				inFeeds = false
			case entryIndent < 0 || indent == entryIndent:
				entryIndent = indent
				p.addSource(strings.TrimSpace(line))
				continue
			default:
				return nil, p.lineError(line, errors.New(errors.ErrCodeInvalidLog,
					"feed entry indented %d columns, expected %d", indent, entryIndent))
			}
		}

		if m := feedsRe.FindStringSubmatch(line); m != nil {
			inFeeds = true
			p.sawFeeds = true
			headerIndent = len(m[1])
			entryIndent = -1
			continue
		}

		if m := startRe.FindStringSubmatch(line); m != nil {
			p.start(m[1], m[2])
			continue
		}

		if m := endRe.FindStringSubmatch(line); m != nil {
			if err := p.end(m[1], m[2], m[3]); err != nil {
				return nil, p.lineError(line, err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", p.label(), err)
	}

	if !p.sawFeeds || len(p.sources) == 0 {
		return nil, errors.New(errors.ErrCodeMissingSources, "%s: no package sources found in a \"Feeds used:\" section", p.label())
	}

	pending := 0
	for _, q := range p.queue {
		pending += len(q)
	}
	if pending > 0 {
		p.logger.Warn("requests without a response", "log", p.label(), "count", pending)
	}

	res := &Result{
		Graph:          graph.New(p.nodes...),
		Sources:        p.sources,
		MaxConcurrency: p.max,
		Pending:        pending,
	}
	p.logger.Debug("parsed restore log", "log", p.label(), "requests", res.Graph.Len(),
		"sources", len(res.Sources), "max_concurrency", res.MaxConcurrency)
	return res, nil
}

func (p *Parser) start(method, url string) {
	method, url = p.intern(method), p.intern(url)

	hit := p.hits[url]
	p.hits[url] = hit + 1

	n := &Node{
		HitIndex:     hit,
		Data:         Request{Start: StartRequest{Method: method, URL: url}},
		Dependencies: p.completed.Snapshot(),
	}
	p.nodes = append(p.nodes, n)
	p.queue[url] = append(p.queue[url], n)

	p.current++
	p.max = max(p.max, p.current)
}

func (p *Parser) end(statusToken, url, durationToken string) error {
	code, ok := ParseStatusCode(statusToken)
	if !ok {
		return errors.New(errors.ErrCodeInvalidLog, "unknown status code %q", statusToken)
	}
	ms, err := strconv.Atoi(durationToken)
	if err != nil || ms < 0 {
		return errors.New(errors.ErrCodeInvalidLog, "malformed duration %q", durationToken+"ms")
	}

	url = p.intern(url)
	q := p.queue[url]
	if len(q) == 0 {
		return errors.New(errors.ErrCodeUnmatchedResponse, "response for %s has no pending request", url)
	}
	n := q[0]
	if len(q) == 1 {
		delete(p.queue, url)
	} else {
		p.queue[url] = q[1:]
	}

	n.Data.End = &EndRequest{
		StatusCode: code,
		URL:        url,
		Duration:   time.Duration(ms) * time.Millisecond,
	}
	p.completed.Add(n)
	p.current--
	return nil
}

func (p *Parser) addSource(source string) {
	source = p.intern(source)
	if p.seenSources[source] {
		return
	}
	p.seenSources[source] = true
	p.sources = append(p.sources, source)
}

func (p *Parser) intern(s string) string {
	if v, ok := p.opts.Intern[s]; ok {
		return v
	}
	p.opts.Intern[s] = s
	return s
}

func (p *Parser) label() string {
	if p.opts.Path != "" {
		return p.opts.Path
	}
	return "<input>"
}

func (p *Parser) lineError(line string, err error) error {
	return &errors.LineError{Path: p.opts.Path, Line: p.lineNo, Text: line, Err: err}
}

// indentOf counts leading whitespace. A tab counts as one column.
func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}
