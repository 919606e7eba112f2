package nuget_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/restoretrace/pkg/cache"
	"github.com/matzehuels/restoretrace/pkg/errors"
	"github.com/matzehuels/restoretrace/pkg/nuget"
	"github.com/matzehuels/restoretrace/pkg/stubserver"
)

func newFeed(t *testing.T, cfg stubserver.Config) (*stubserver.Server, *httptest.Server) {
	t.Helper()
	srv := stubserver.New(cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestParseServiceIndex(t *testing.T) {
	doc := []byte(`{
		"version": "3.0.0",
		"resources": [
			{"@id": "https://api.nuget.org/v3-flatcontainer/", "@type": "PackageBaseAddress/3.0.0"},
			{"@id": "https://www.nuget.org/api/v2/package", "@type": "PackagePublish/2.0.0"},
			{"@id": "https://azuresearch-usnc.nuget.org/query", "@type": "SearchQueryService/3.0.0-rc"},
			{"@type": "Broken"}
		]
	}`)
	idx, err := nuget.ParseServiceIndex(doc)
	if err != nil {
		t.Fatalf("ParseServiceIndex() error = %v", err)
	}
	if idx.Version != "3.0.0" || len(idx.Resources) != 3 {
		t.Fatalf("got %+v", idx)
	}
	if got := idx.Find("SearchQueryService"); len(got) != 1 {
		t.Errorf("Find(SearchQueryService) = %v", got)
	}
	if got := idx.Find(nuget.TypePackageBaseAddress); len(got) != 1 || got[0] != "https://api.nuget.org/v3-flatcontainer/" {
		t.Errorf("Find(PackageBaseAddress) = %v", got)
	}

	for _, bad := range []string{`not json`, `{"version":"3.0.0"}`} {
		if _, err := nuget.ParseServiceIndex([]byte(bad)); !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("ParseServiceIndex(%q) error = %v, want INVALID_INPUT", bad, err)
		}
	}
}

func TestPackageBaseAddressesCached(t *testing.T) {
	srv, ts := newFeed(t, stubserver.Config{})
	dir := t.TempDir()
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	c := nuget.NewClient(nuget.Options{Cache: fc})
	feed := ts.URL + stubserver.ServiceIndexPath

	for range 2 {
		bases, err := c.PackageBaseAddresses(context.Background(), feed)
		if err != nil {
			t.Fatalf("PackageBaseAddresses() error = %v", err)
		}
		if len(bases) != 1 || bases[0] != ts.URL+stubserver.FlatContainerPath {
			t.Errorf("bases = %v", bases)
		}
	}
	if srv.Requests() != 1 {
		t.Errorf("service index fetched %d times, want 1", srv.Requests())
	}

	refresh := nuget.NewClient(nuget.Options{Cache: fc, Refresh: true})
	if _, err := refresh.PackageBaseAddresses(context.Background(), feed); err != nil {
		t.Fatal(err)
	}
	if srv.Requests() != 2 {
		t.Errorf("Refresh should refetch, requests = %d", srv.Requests())
	}
}

func TestVersionsAndDownload(t *testing.T) {
	srv, ts := newFeed(t, stubserver.Config{})
	srv.Add("foo", "1.0.0", []byte("one"))
	srv.Add("foo", "2.0.0", []byte("two"))
	c := nuget.NewClient(nuget.Options{})
	base := ts.URL + stubserver.FlatContainerPath
	ctx := context.Background()

	versions, err := c.Versions(ctx, base, "Foo")
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("Versions() = %v", versions)
	}

	var buf bytes.Buffer
	n, err := c.Download(ctx, base, "FOO", "2.0.0", &buf)
	if err != nil || n != 3 || buf.String() != "two" {
		t.Errorf("Download() = %d, %q, %v", n, buf.String(), err)
	}

	_, err = c.Versions(ctx, base, "missing")
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing package error = %v, want NOT_FOUND", err)
	}
}

func TestDownloadAll(t *testing.T) {
	srv, ts := newFeed(t, stubserver.Config{})
	for _, v := range []string{"1.0.0", "1.1.0", "2.0.0-beta"} {
		srv.Add("foo", v, []byte(v))
	}
	dir := filepath.Join(t.TempDir(), "out")

	got, err := nuget.NewClient(nuget.Options{}).DownloadAll(context.Background(),
		ts.URL+stubserver.FlatContainerPath, "foo", dir, 2)
	if err != nil {
		t.Fatalf("DownloadAll() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("downloaded %d files, want 3", len(got))
	}
	for _, d := range got {
		data, err := os.ReadFile(d.Path)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != d.Version || d.Size != int64(len(d.Version)) {
			t.Errorf("%s: content %q size %d", d.Path, data, d.Size)
		}
		if filepath.Base(d.Path) != "foo."+d.Version+".nupkg" {
			t.Errorf("file name = %s", filepath.Base(d.Path))
		}
	}
}

func TestPush(t *testing.T) {
	srv, ts := newFeed(t, stubserver.Config{APIKey: "k"})
	c := nuget.NewClient(nuget.Options{})
	ctx := context.Background()

	pushURL, err := c.PushURL(ctx, ts.URL+stubserver.ServiceIndexPath)
	if err != nil {
		t.Fatalf("PushURL() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "Foo.1.0.0.nupkg")
	if err := os.WriteFile(path, []byte("pkg"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := c.Push(ctx, pushURL, path, "wrong"); !errors.Is(err, errors.ErrCodeUnauthorized) {
		t.Errorf("wrong key error = %v, want UNAUTHORIZED", err)
	}
	if err := c.Push(ctx, pushURL, path, "k"); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if err := c.Push(ctx, pushURL, path, "k"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("duplicate push error = %v, want INVALID_INPUT", err)
	}
	if err := c.Push(ctx, pushURL, filepath.Join(t.TempDir(), "none.1.0.0.nupkg"), "k"); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file error = %v, want FILE_NOT_FOUND", err)
	}
	if v := srv.Versions("foo"); len(v) != 1 {
		t.Errorf("feed versions = %v", v)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"versions":["1.0.0"]}`))
	}))
	defer ts.Close()

	versions, err := nuget.NewClient(nuget.Options{}).Versions(context.Background(), ts.URL, "foo")
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	if len(versions) != 1 || calls.Load() != 2 {
		t.Errorf("versions = %v after %d calls", versions, calls.Load())
	}
}

func TestURLs(t *testing.T) {
	if got := nuget.IndexURL("https://x/v3/", "Foo.Bar"); got != "https://x/v3/foo.bar/index.json" {
		t.Errorf("IndexURL() = %s", got)
	}
	if got := nuget.NupkgURL("https://x/v3", "Foo", "1.0.0-RC"); got != "https://x/v3/foo/1.0.0-rc/foo.1.0.0-rc.nupkg" {
		t.Errorf("NupkgURL() = %s", got)
	}
	if !nuget.IsRemote("https://api.nuget.org/v3/index.json") || nuget.IsRemote(`C:\feed`) || nuget.IsRemote("/srv/feed") {
		t.Error("IsRemote misclassified a feed")
	}
}
