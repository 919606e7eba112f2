package stubserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/restoretrace/pkg/operation"
)

// Paths of the resources the server advertises.
const (
	ServiceIndexPath  = "/v3/index.json"
	FlatContainerPath = "/v3-flatcontainer"
	PublishPath       = "/api/v2/package"
)

// SyntheticVersion is the version listed for unknown ids in synthetic mode.
const SyntheticVersion = "1.0.0"

const maxPushSize = 256 << 20

// Config configures a [Server].
type Config struct {
	// Latency delays every response.
	Latency time.Duration

	// Synthetic answers for packages that were never added.
	Synthetic bool

	// APIKey, when set, is required on pushes.
	APIKey string

	// Logger receives one debug line per request. Nil uses log.Default().
	Logger *log.Logger
}

// Server is an in-memory feed. It is safe for concurrent use.
type Server struct {
	cfg    Config
	logger *log.Logger

	mu       sync.RWMutex
	packages map[string]map[string][]byte // lower id -> lower version -> content

	requests atomic.Int64
}

// New creates an empty feed.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		cfg:      cfg,
		logger:   logger,
		packages: make(map[string]map[string][]byte),
	}
}

// Add stores a package version. Id and version are lowercased.
func (s *Server) Add(id, version string, content []byte) {
	id, version = strings.ToLower(id), strings.ToLower(version)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.packages[id] == nil {
		s.packages[id] = make(map[string][]byte)
	}
	s.packages[id][version] = content
}

// Versions returns the stored versions of id, sorted.
func (s *Server) Versions(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for v := range s.packages[strings.ToLower(id)] {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

// Requests returns the number of requests served so far.
func (s *Server) Requests() int64 { return s.requests.Load() }

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.count)
	if s.cfg.Latency > 0 {
		r.Use(s.delay)
	}

	r.Get("/health", s.health)
	r.Get(ServiceIndexPath, s.serviceIndex)
	r.Route(FlatContainerPath, func(r chi.Router) {
		r.Get("/{id}/index.json", s.versionList)
		r.Get("/{id}/{version}/{file}", s.nupkg)
	})
	r.Put(PublishPath, s.push)
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is [Server.ListenAndServe] on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	})
	defer stop()

	s.logger.Info("stub feed listening", "addr", ln.Addr().String(), "index", "http://"+ln.Addr().String()+ServiceIndexPath)
	if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.logger.Debug("stub request", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := time.NewTimer(s.cfg.Latency)
		defer t.Stop()
		select {
		case <-r.Context().Done():
			return
		case <-t.C:
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) serviceIndex(w http.ResponseWriter, r *http.Request) {
	origin := requestOrigin(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"version": "3.0.0",
		"resources": []map[string]string{
			{"@id": origin + FlatContainerPath + "/", "@type": "PackageBaseAddress/3.0.0"},
			{"@id": origin + PublishPath, "@type": "PackagePublish/2.0.0"},
		},
	})
}

func (s *Server) versionList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !operation.IsLowerID(id) {
		http.NotFound(w, r)
		return
	}
	versions := s.Versions(id)
	if len(versions) == 0 {
		if !s.cfg.Synthetic {
			http.NotFound(w, r)
			return
		}
		versions = []string{SyntheticVersion}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"versions": versions})
}

func (s *Server) nupkg(w http.ResponseWriter, r *http.Request) {
	id, version, file := chi.URLParam(r, "id"), chi.URLParam(r, "version"), chi.URLParam(r, "file")
	if !operation.IsLowerID(id) || !operation.IsNormalizedVersion(version) || file != id+"."+version+".nupkg" {
		http.NotFound(w, r)
		return
	}

	s.mu.RLock()
	content, ok := s.packages[id][version]
	s.mu.RUnlock()
	if !ok {
		if !s.cfg.Synthetic {
			http.NotFound(w, r)
			return
		}
		content = []byte(id + "@" + version)
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(content)
}

func (s *Server) push(w http.ResponseWriter, r *http.Request) {
	if s.cfg.APIKey != "" && r.Header.Get("X-NuGet-ApiKey") != s.cfg.APIKey {
		http.Error(w, "invalid api key", http.StatusForbidden)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxPushSize)
	f, hdr, err := r.FormFile("package")
	if err != nil {
		http.Error(w, "missing package form file", http.StatusBadRequest)
		return
	}
	defer f.Close()

	id, version, ok := SplitPackageFileName(hdr.Filename)
	if !ok {
		http.Error(w, "package file name must be {id}.{version}.nupkg", http.StatusBadRequest)
		return
	}
	content, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.packages[id][version]; exists {
		http.Error(w, "package version already exists", http.StatusConflict)
		return
	}
	if s.packages[id] == nil {
		s.packages[id] = make(map[string][]byte)
	}
	s.packages[id][version] = content
	w.WriteHeader(http.StatusCreated)
}

// SplitPackageFileName splits "{id}.{version}.nupkg" at the first dot after
// which a normalized version follows. Both parts are lowercased.
func SplitPackageFileName(name string) (id, version string, ok bool) {
	base, found := strings.CutSuffix(strings.ToLower(name), ".nupkg")
	if !found {
		return "", "", false
	}
	for i := 0; i < len(base); i++ {
		if base[i] != '.' {
			continue
		}
		id, version = base[:i], base[i+1:]
		if operation.IsLowerID(id) && operation.IsNormalizedVersion(version) {
			return id, version, true
		}
	}
	return "", "", false
}

func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
