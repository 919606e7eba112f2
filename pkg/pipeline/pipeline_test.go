package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/restoretrace/pkg/cache"
	"github.com/matzehuels/restoretrace/pkg/io"
)

const (
	feed = "https://api.nuget.org/v3/index.json"
	flat = "https://api.nuget.org/v3-flatcontainer"
)

var restoreLog = strings.Join([]string{
	"  GET " + flat + "/a/index.json",
	"  OK " + flat + "/a/index.json 5ms",
	"  GET " + flat + "/a/1.0.0/a.1.0.0.nupkg",
	"  GET " + feed,
	"  OK " + feed + " 2ms",
	"  OK " + flat + "/a/1.0.0/a.1.0.0.nupkg 7ms",
	"  GET " + flat + "/b/index.json",
	"  OK " + flat + "/b/index.json 3ms",
	"Feeds used:",
	"    " + feed,
	"",
}, "\n")

func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "restore.log")
	if err := os.WriteFile(path, []byte(restoreLog), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(nopWriter{}, log.Options{})
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

type fakeResolver struct {
	bases []string
	err   error
	calls int
}

func (r *fakeResolver) PackageBaseAddresses(context.Context, string) ([]string, error) {
	r.calls++
	return r.bases, r.err
}

func TestValidateFormats(t *testing.T) {
	if err := ValidateFormats([]string{"dot", "svg"}); err != nil {
		t.Errorf("valid formats should pass: %v", err)
	}
	if err := ValidateFormats([]string{"svg", "png"}); err == nil {
		t.Error("png should fail")
	}
	if err := ValidateFormats(nil); err != nil {
		t.Errorf("empty formats should pass: %v", err)
	}
}

func TestValidateAndSetDefaults(t *testing.T) {
	opts := Options{LogPath: "restore.log"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Kind != io.KindOperation || opts.Logger == nil {
		t.Errorf("defaults not applied: kind=%q", opts.Kind)
	}

	for _, bad := range []Options{{}, {LogPath: "x", Kind: "graph"}, {LogPath: "x", Formats: []string{"pdf"}}} {
		if err := bad.ValidateAndSetDefaults(); err == nil {
			t.Errorf("%+v should be invalid", bad)
		}
	}
}

func TestGraphKeyOptsStable(t *testing.T) {
	a := Options{Kind: io.KindOperation, Overrides: map[string][]string{"x": {"1", "2"}, "y": {"3"}}}
	b := Options{Kind: io.KindOperation, Overrides: map[string][]string{"y": {"3"}, "x": {"1", "2"}}}
	k := cache.NewDefaultKeyer()
	if k.GraphKey("h", a.GraphKeyOpts()) != k.GraphKey("h", b.GraphKeyOpts()) {
		t.Error("override map order changed the cache key")
	}
	b.Offline = true
	if k.GraphKey("h", a.GraphKeyOpts()) == k.GraphKey("h", b.GraphKeyOpts()) {
		t.Error("offline should change the cache key")
	}
}

func TestCaptureOperations(t *testing.T) {
	r := NewRunner(nil, nil, quietLogger())
	r.Resolver = &fakeResolver{bases: []string{flat}}

	res, err := r.Execute(context.Background(), Options{LogPath: writeLog(t), Reduce: true})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	f := res.File
	if f.Kind != io.KindOperation || f.Operations.Len() != 3 {
		t.Fatalf("got kind %q with %d nodes", f.Kind, f.Len())
	}
	want := io.Stats{MaxConcurrency: 2, EdgesBefore: 3, EdgesAfter: 2, Unknown: 1}
	if f.Stats != want {
		t.Errorf("Stats = %+v, want %+v", f.Stats, want)
	}
	if len(f.Sources) != 1 || f.Sources[0] != feed {
		t.Errorf("Sources = %v", f.Sources)
	}
	last := f.Operations.Nodes[2]
	if len(last.Dependencies) != 1 || last.Dependencies[0] != f.Operations.Nodes[1] {
		t.Errorf("b/index.json should depend only on the nupkg, got %v", last.Dependencies)
	}
	if res.LogHash == "" || res.CacheInfo.GraphHit {
		t.Errorf("LogHash = %q, GraphHit = %v", res.LogHash, res.CacheInfo.GraphHit)
	}
}

func TestCaptureRequests(t *testing.T) {
	r := NewRunner(nil, nil, quietLogger())
	res, err := r.Execute(context.Background(), Options{
		LogPath: writeLog(t),
		Kind:    io.KindRequest,
		Reduce:  true,
		Formats: []string{FormatDOT},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	f := res.File
	if f.Requests.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", f.Requests.Len())
	}
	if f.Stats.EdgesBefore != 5 || f.Stats.EdgesAfter != 4 {
		t.Errorf("edges %d -> %d, want 5 -> 4", f.Stats.EdgesBefore, f.Stats.EdgesAfter)
	}
	dot := string(res.Artifacts[FormatDOT])
	if !strings.HasPrefix(dot, "digraph") {
		t.Errorf("DOT artifact = %q", dot)
	}
}

func TestCaptureUnreduced(t *testing.T) {
	r := NewRunner(nil, nil, quietLogger())
	f, err := r.Capture(context.Background(), Options{LogPath: writeLog(t), Kind: io.KindRequest})
	if err != nil {
		t.Fatal(err)
	}
	if f.Stats.EdgesBefore != 5 || f.Stats.EdgesAfter != 0 || f.EdgeCount() != 5 {
		t.Errorf("unreduced stats = %+v, edges = %d", f.Stats, f.EdgeCount())
	}
}

func TestCaptureCache(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	resolver := &fakeResolver{bases: []string{flat}}
	r := NewRunner(fc, nil, quietLogger())
	r.Resolver = resolver
	opts := Options{LogPath: writeLog(t), Reduce: true}
	ctx := context.Background()

	first, err := r.CaptureWithCacheInfo(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.CaptureWithCacheInfo(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.GraphHit || !second.CacheInfo.GraphHit {
		t.Errorf("hits = %v, %v; want false, true", first.CacheInfo.GraphHit, second.CacheInfo.GraphHit)
	}
	if resolver.calls != 1 {
		t.Errorf("resolver called %d times, want 1", resolver.calls)
	}
	if second.File.Stats != first.File.Stats || second.File.EdgeCount() != first.File.EdgeCount() {
		t.Errorf("cached file differs: %+v vs %+v", second.File.Stats, first.File.Stats)
	}

	opts.Refresh = true
	third, err := r.CaptureWithCacheInfo(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.GraphHit {
		t.Error("Refresh should bypass the cache")
	}

	opts.Refresh = false
	opts.Reduce = false
	fourth, err := r.CaptureWithCacheInfo(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if fourth.CacheInfo.GraphHit {
		t.Error("different options should miss the cache")
	}
}

func TestCaptureParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.log")
	os.WriteFile(path, []byte("  OK "+flat+"/a/index.json 1ms\nFeeds used:\n    "+feed+"\n"), 0o644)

	_, err := NewRunner(nil, nil, quietLogger()).Execute(context.Background(), Options{LogPath: path})
	if err == nil || !strings.Contains(err.Error(), "bad.log:1") {
		t.Errorf("Execute() error = %v, want location bad.log:1", err)
	}
}

func TestResolveSources(t *testing.T) {
	ctx := context.Background()
	local := `C:\packages`
	feeds := []string{feed, "https://pkgs.example.com/v3/index.json", local}
	overrides := map[string][]string{"https://pkgs.example.com/v3/index.json": {"https://pkgs.example.com/flat/"}}

	tests := []struct {
		name     string
		resolver *fakeResolver
		offline  bool
		want     []string
		calls    int
	}{
		{"lookup", &fakeResolver{bases: []string{flat}}, false, []string{flat, "https://pkgs.example.com/flat/", local}, 1},
		{"offline", &fakeResolver{bases: []string{flat}}, true, []string{feed, "https://pkgs.example.com/flat/", local}, 0},
		{"lookup failure", &fakeResolver{err: fmt.Errorf("boom")}, false, []string{feed, "https://pkgs.example.com/flat/", local}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources, err := ResolveSources(ctx, feeds, overrides, tt.resolver, tt.offline, quietLogger())
			if err != nil {
				t.Fatal(err)
			}
			for i, s := range sources {
				if s.Name != feeds[i] || len(s.PackageBaseAddresses) != 1 || s.PackageBaseAddresses[0] != tt.want[i] {
					t.Errorf("sources[%d] = %+v, want base %s", i, s, tt.want[i])
				}
			}
			if tt.resolver.calls != tt.calls {
				t.Errorf("resolver calls = %d, want %d", tt.resolver.calls, tt.calls)
			}
		})
	}

	_, err := ResolveSources(ctx, feeds[:1], nil, &fakeResolver{err: context.Canceled}, false, quietLogger())
	if err == nil {
		t.Error("cancellation should abort resolution")
	}
}
