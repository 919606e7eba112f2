// Package observability provides hooks for progress reporting and metrics.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. The CLI registers hooks
// at startup (the replay progress view is one); library packages only ever
// call the registered hooks.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetReplayHooks(progress)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Capture().OnParseStart(ctx, path)
//	// ... parse ...
//	observability.Capture().OnParseComplete(ctx, path, nodes, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Capture Hooks
// =============================================================================

// CaptureHooks receives events from the log capture pipeline.
type CaptureHooks interface {
	OnParseStart(ctx context.Context, path string)
	OnParseComplete(ctx context.Context, path string, nodes int, duration time.Duration, err error)

	OnReduceComplete(ctx context.Context, kind string, edgesBefore, edgesAfter int, duration time.Duration, err error)
}

// =============================================================================
// Replay Hooks
// =============================================================================

// ReplayHooks receives events from the replay engine. Dispatch and
// completion events arrive from worker goroutines concurrently.
type ReplayHooks interface {
	OnReplayStart(ctx context.Context, nodes, maxConcurrency int)
	OnDispatch(ctx context.Context, method, url string, inFlight int)
	OnComplete(ctx context.Context, method, url string, statusCode int, duration time.Duration, err error)
	OnReplayComplete(ctx context.Context, dispatched, succeeded int, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the NuGet client.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopCaptureHooks is a no-op implementation of CaptureHooks.
type NoopCaptureHooks struct{}

func (NoopCaptureHooks) OnParseStart(context.Context, string)                               {}
func (NoopCaptureHooks) OnParseComplete(context.Context, string, int, time.Duration, error) {}
func (NoopCaptureHooks) OnReduceComplete(context.Context, string, int, int, time.Duration, error) {
}

// NoopReplayHooks is a no-op implementation of ReplayHooks.
type NoopReplayHooks struct{}

func (NoopReplayHooks) OnReplayStart(context.Context, int, int)                   {}
func (NoopReplayHooks) OnDispatch(context.Context, string, string, int)           {}
func (NoopReplayHooks) OnReplayComplete(context.Context, int, int, time.Duration) {}
func (NoopReplayHooks) OnComplete(context.Context, string, string, int, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	captureHooks CaptureHooks = NoopCaptureHooks{}
	replayHooks  ReplayHooks  = NoopReplayHooks{}
	cacheHooks   CacheHooks   = NoopCacheHooks{}
	httpHooks    HTTPHooks    = NoopHTTPHooks{}
	hooksMu      sync.RWMutex
)

// SetCaptureHooks registers custom capture hooks.
// This should be called once at application startup.
func SetCaptureHooks(h CaptureHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		captureHooks = h
	}
}

// SetReplayHooks registers custom replay hooks.
// This should be called before the replay starts.
func SetReplayHooks(h ReplayHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		replayHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Capture returns the registered capture hooks.
func Capture() CaptureHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return captureHooks
}

// Replay returns the registered replay hooks.
func Replay() ReplayHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return replayHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	captureHooks = NoopCaptureHooks{}
	replayHooks = NoopReplayHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
