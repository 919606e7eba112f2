package nuget

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tidwall/gjson"

	"github.com/matzehuels/restoretrace/pkg/cache"
	"github.com/matzehuels/restoretrace/pkg/errors"
	"github.com/matzehuels/restoretrace/pkg/httputil"
	"github.com/matzehuels/restoretrace/pkg/observability"
)

// Resource types used by restore and push.
const (
	TypePackageBaseAddress = "PackageBaseAddress/3.0.0"
	TypePackagePublish     = "PackagePublish/2.0.0"
)

// DefaultResourcesTTL bounds how long a service index lookup is reused.
const DefaultResourcesTTL = 24 * time.Hour

// Options configures a [Client].
type Options struct {
	// HTTPClient performs requests. Nil uses httputil.NewClient with a
	// 60 second timeout.
	HTTPClient *http.Client

	// Cache stores service index lookups. Nil disables caching.
	Cache cache.Cache

	// Keyer derives cache keys. Nil uses cache.DefaultKeyer.
	Keyer cache.Keyer

	// ResourcesTTL overrides DefaultResourcesTTL.
	ResourcesTTL time.Duration

	// Refresh bypasses cached lookups but still stores fresh results.
	Refresh bool

	// Logger receives debug output. Nil uses log.Default().
	Logger *log.Logger
}

// Client talks to NuGet v3 feeds.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	keyer   cache.Keyer
	ttl     time.Duration
	refresh bool
	logger  *log.Logger
}

// NewClient creates a client.
func NewClient(opts Options) *Client {
	c := &Client{
		http:    opts.HTTPClient,
		cache:   opts.Cache,
		keyer:   opts.Keyer,
		ttl:     opts.ResourcesTTL,
		refresh: opts.Refresh,
		logger:  opts.Logger,
	}
	if c.http == nil {
		c.http = httputil.NewClient(60*time.Second, "restoretrace")
	}
	if c.cache == nil {
		c.cache = cache.NewNullCache()
	}
	if c.keyer == nil {
		c.keyer = cache.NewDefaultKeyer()
	}
	if c.ttl <= 0 {
		c.ttl = DefaultResourcesTTL
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	return c
}

// Resource is one entry of a service index.
type Resource struct {
	ID   string
	Type string
}

// ServiceIndex is a parsed v3 service index.
type ServiceIndex struct {
	Version   string
	Resources []Resource
}

// Find returns the ids of resources whose type equals typ or starts with
// typ followed by "/". Order follows the index.
func (s *ServiceIndex) Find(typ string) []string {
	var ids []string
	for _, r := range s.Resources {
		if r.Type == typ || strings.HasPrefix(r.Type, typ+"/") {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// ParseServiceIndex extracts the version and resources from a service index
// document. Resources without an id or type are skipped.
func ParseServiceIndex(data []byte) (*ServiceIndex, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "service index is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	resources := doc.Get("resources")
	if !resources.IsArray() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "service index has no resources array")
	}

	idx := &ServiceIndex{Version: doc.Get("version").String()}
	resources.ForEach(func(_, r gjson.Result) bool {
		id, typ := r.Get(`\@id`).String(), r.Get(`\@type`).String()
		if id != "" && typ != "" {
			idx.Resources = append(idx.Resources, Resource{ID: id, Type: typ})
		}
		return true
	})
	return idx, nil
}

// ServiceIndex fetches and parses the service index at feed.
func (c *Client) ServiceIndex(ctx context.Context, feed string) (*ServiceIndex, error) {
	data, err := c.get(ctx, feed)
	if err != nil {
		return nil, err
	}
	idx, err := ParseServiceIndex(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", feed, err)
	}
	return idx, nil
}

// PackageBaseAddresses returns the PackageBaseAddress resources advertised by
// feed, normalized without a trailing slash.
func (c *Client) PackageBaseAddresses(ctx context.Context, feed string) ([]string, error) {
	key := c.keyer.ResourcesKey(feed)
	if !c.refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok {
			observability.Cache().OnCacheHit(ctx, "resources")
			return splitLines(data), nil
		}
		observability.Cache().OnCacheMiss(ctx, "resources")
	}

	idx, err := c.ServiceIndex(ctx, feed)
	if err != nil {
		return nil, err
	}
	ids := idx.Find(TypePackageBaseAddress)
	if len(ids) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "%s advertises no %s resource", feed, TypePackageBaseAddress)
	}
	for i, id := range ids {
		ids[i] = strings.TrimRight(id, "/")
	}

	data := []byte(strings.Join(ids, "\n"))
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "resources", len(data))
	}
	return ids, nil
}

// Versions lists the versions of id published under the PackageBaseAddress
// resource base, in the order the feed returns them.
func (c *Client) Versions(ctx context.Context, base, id string) ([]string, error) {
	data, err := c.get(ctx, IndexURL(base, id))
	if err != nil {
		return nil, err
	}
	versions := gjson.GetBytes(data, "versions")
	if !versions.IsArray() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "version list for %s has no versions array", id)
	}
	var out []string
	for _, v := range versions.Array() {
		out = append(out, v.String())
	}
	return out, nil
}

// Download writes the .nupkg of id/version to w and returns the byte count.
func (c *Client) Download(ctx context.Context, base, id, version string, w io.Writer) (int64, error) {
	target := NupkgURL(base, id, version)
	var n int64
	err := httputil.RetryWithBackoff(ctx, func() error {
		resp, err := c.do(ctx, http.MethodGet, target, nil, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		n, err = io.Copy(w, resp.Body)
		return err
	})
	if err != nil {
		return n, wrapHTTP(err, target)
	}
	return n, nil
}

// IndexURL returns {base}/{lower id}/index.json.
func IndexURL(base, id string) string {
	return strings.TrimRight(base, "/") + "/" + strings.ToLower(id) + "/index.json"
}

// NupkgURL returns {base}/{lower id}/{lower version}/{lower id}.{lower version}.nupkg.
func NupkgURL(base, id, version string) string {
	id, version = strings.ToLower(id), strings.ToLower(version)
	return strings.TrimRight(base, "/") + "/" + id + "/" + version + "/" + id + "." + version + ".nupkg"
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	var data []byte
	err := httputil.RetryWithBackoff(ctx, func() error {
		resp, err := c.do(ctx, http.MethodGet, target, nil, nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, wrapHTTP(err, target)
	}
	return data, nil
}

// do issues one request and checks its status. On success the caller owns
// the response body.
func (c *Client) do(ctx context.Context, method, target string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request")
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	host, path := req.URL.Host, req.URL.Path

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, httputil.Retryable(err)
	}
	hooks.OnResponse(ctx, method, host, path, resp.StatusCode, time.Since(start))
	c.logger.Debug("http", "method", method, "url", target, "status", resp.StatusCode)

	if err := httputil.CheckStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func wrapHTTP(err error, target string) error {
	var se *httputil.StatusError
	switch {
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		return errors.Wrap(errors.ErrCodeNotFound, err, "%s", target)
	case errors.As(err, &se) && (se.StatusCode == http.StatusUnauthorized || se.StatusCode == http.StatusForbidden):
		return errors.Wrap(errors.ErrCodeUnauthorized, err, "%s", target)
	case errors.GetCode(err) != "", errors.IsCanceled(err):
		return err
	default:
		return errors.Wrap(errors.ErrCodeNetwork, err, "%s", target)
	}
}

func splitLines(data []byte) []string {
	var out []string
	for _, s := range strings.Split(string(data), "\n") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsRemote reports whether feed is an http(s) URL rather than a local
// folder feed.
func IsRemote(feed string) bool {
	u, err := url.Parse(feed)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
