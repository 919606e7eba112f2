// Package cache stores parsed graphs and resolved source resources so that
// repeated captures of the same restore log skip parsing and network
// discovery.
//
// Three backends implement [Cache]:
//
//   - [FileCache]: one JSON file per entry under a directory (CLI default)
//   - [RedisCache]: a shared Redis instance, for build agents that capture
//     the same logs
//   - [NullCache]: stores nothing (--no-cache)
//
// Keys come from a [Keyer] so that every producer agrees on the layout.
package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiration.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend's resources.
	Close() error
}

// Keyer derives cache keys.
type Keyer interface {
	// GraphKey addresses the graph file captured from a log whose content
	// hashes to logHash.
	GraphKey(logHash string, opts GraphKeyOpts) string

	// ResourcesKey addresses the PackageBaseAddress resources a feed's
	// service index advertises.
	ResourcesKey(feed string) string
}

// GraphKeyOpts lists the capture options that change a graph file.
type GraphKeyOpts struct {
	Kind    string   `json:"kind"`
	Reduced bool     `json:"reduced"`
	Offline bool     `json:"offline,omitempty"`
	Bases   []string `json:"bases,omitempty"`
}

// TTLGraph is how long a captured graph is kept.
const TTLGraph = 30 * 24 * time.Hour

// DefaultKeyer is the standard key layout.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// GraphKey implements [Keyer].
func (DefaultKeyer) GraphKey(logHash string, opts GraphKeyOpts) string {
	return hashKey("graph", logHash, opts)
}

// ResourcesKey implements [Keyer].
func (DefaultKeyer) ResourcesKey(feed string) string {
	return "resources:" + feed
}

// DefaultDir returns ~/.cache/restoretrace.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "restoretrace"), nil
}
