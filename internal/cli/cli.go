// Package cli implements the restoretrace command-line interface.
package cli

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/restoretrace/pkg/buildinfo"
	"github.com/matzehuels/restoretrace/pkg/cache"
	"github.com/matzehuels/restoretrace/pkg/config"
	"github.com/matzehuels/restoretrace/pkg/httputil"
	"github.com/matzehuels/restoretrace/pkg/nuget"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "restoretrace"

	// httpTimeout bounds NuGet API calls made by the utility commands.
	httpTimeout = 5 * time.Minute
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	cfg        *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "restoretrace captures and replays NuGet restore traffic",
		Long:         `restoretrace turns the HTTP requests logged by a NuGet restore into a dependency graph of requests, and replays that graph against a package feed with the same ordering and concurrency.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.config()
			return err
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/restoretrace/config.toml)")

	root.AddCommand(c.parseCommand())
	root.AddCommand(c.replayCommand())
	root.AddCommand(c.downloadCommand())
	root.AddCommand(c.pushCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// config loads the settings file once.
func (c *CLI) config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Path != "" {
		c.Logger.Debug("loaded config", "path", cfg.Path)
	}
	c.cfg = cfg
	return cfg, nil
}

// =============================================================================
// Factories
// =============================================================================

// newCache opens the configured cache backend.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	if noCache || cfg.Cache.Backend == config.BackendNone {
		return cache.NewNullCache(), nil
	}
	if cfg.Cache.Backend == config.BackendRedis {
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
	}
	dir, err := c.cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// newKeyer returns the cache keyer, prefixed when cache.key_prefix is set.
func (c *CLI) newKeyer() cache.Keyer {
	if c.cfg != nil && c.cfg.Cache.KeyPrefix != "" {
		return cache.NewScopedKeyer(nil, c.cfg.Cache.KeyPrefix)
	}
	return cache.NewDefaultKeyer()
}

// cacheDir returns the configured file cache directory.
func (c *CLI) cacheDir() (string, error) {
	if c.cfg != nil && c.cfg.Cache.Dir != "" {
		return c.cfg.Cache.Dir, nil
	}
	return cacheDir()
}

// userAgent returns replay.user_agent or "restoretrace/<version>".
func (c *CLI) userAgent() string {
	if c.cfg != nil && c.cfg.Replay.UserAgent != "" {
		return c.cfg.Replay.UserAgent
	}
	return buildinfo.UserAgent(appName)
}

// newHTTPClient returns the client used for NuGet API calls.
func (c *CLI) newHTTPClient(timeout time.Duration) *http.Client {
	return httputil.NewClient(timeout, c.userAgent())
}

// newNuGetClient creates a NuGet client that caches service index lookups
// in ch.
func (c *CLI) newNuGetClient(ch cache.Cache, refresh bool) *nuget.Client {
	return nuget.NewClient(nuget.Options{
		HTTPClient: c.newHTTPClient(httpTimeout),
		Cache:      ch,
		Keyer:      c.newKeyer(),
		Refresh:    refresh,
		Logger:     c.Logger,
	})
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/restoretrace/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	return cache.DefaultDir()
}

// =============================================================================
// Options Helpers
// =============================================================================

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
