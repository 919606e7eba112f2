// Package config loads restoretrace settings from a TOML file.
//
// The file is looked up in order: an explicit path, $RESTORETRACE_CONFIG,
// then $XDG_CONFIG_HOME/restoretrace/config.toml (~/.config when unset).
// Only an explicit path has to exist. Missing keys keep their defaults;
// command-line flags override both.
//
//	[replay]
//	max_concurrency = 16
//	timeout = "30s"
//	grace_period = "5s"
//
//	[cache]
//	backend = "redis"
//	redis_addr = "localhost:6379"
//
//	[[source]]
//	feed = "https://pkgs.example.com/v3/index.json"
//	package_base_address = ["https://pkgs.example.com/flat/"]
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/restoretrace/pkg/errors"
)

// EnvPath names the environment variable holding the config path.
const EnvPath = "RESTORETRACE_CONFIG"

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Config is the whole settings file.
type Config struct {
	Replay  Replay   `toml:"replay"`
	Cache   Cache    `toml:"cache"`
	Results Results  `toml:"results"`
	Sources []Source `toml:"source"`
	Stub    Stub     `toml:"stub"`

	// Path is the file the config was read from, empty for defaults.
	Path string `toml:"-"`
}

// Replay holds replay-request-graph defaults.
type Replay struct {
	// MaxConcurrency overrides the concurrency observed in the captured
	// restore. Zero replays at the observed level.
	MaxConcurrency int      `toml:"max_concurrency"`
	Timeout        Duration `toml:"timeout"`
	GracePeriod    Duration `toml:"grace_period"`
	QueueSize      int      `toml:"queue_size"`
	Iterations     int      `toml:"iterations"`
	UserAgent      string   `toml:"user_agent"`
}

// Cache selects and configures the cache backend. KeyPrefix namespaces keys
// when several users share one Redis.
type Cache struct {
	Backend       string   `toml:"backend"`
	Dir           string   `toml:"dir"`
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	TTL           Duration `toml:"ttl"`
	KeyPrefix     string   `toml:"key_prefix"`
}

// Results configures optional MongoDB telemetry. An empty MongoURI
// disables it.
type Results struct {
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// Source overrides service index discovery for one feed.
type Source struct {
	Feed               string   `toml:"feed"`
	PackageBaseAddress []string `toml:"package_base_address"`
}

// Stub configures the serve command.
type Stub struct {
	Addr      string   `toml:"addr"`
	Latency   Duration `toml:"latency"`
	Synthetic bool     `toml:"synthetic"`
	APIKey    string   `toml:"api_key"`
}

// Duration is a time.Duration written as a string ("250ms", "1m").
type Duration struct{ time.Duration }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Replay: Replay{
			Timeout:     Duration{100 * time.Second},
			GracePeriod: Duration{5 * time.Second},
			QueueSize:   4096,
			Iterations:  1,
		},
		Cache: Cache{
			Backend: BackendFile,
			TTL:     Duration{7 * 24 * time.Hour},
		},
		Results: Results{
			MongoDatabase:   "restoretrace",
			MongoCollection: "requests",
		},
		Stub: Stub{
			Addr:      "127.0.0.1:8080",
			Synthetic: true,
		},
	}
}

// DefaultPath returns the user-level config location.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "restoretrace", "config.toml"), nil
}

// Load reads the config. An empty path falls back to $RESTORETRACE_CONFIG
// and then [DefaultPath]; a missing fallback file yields [Default].
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPath)
		explicit = path != ""
	}
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s", path)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "config %s: unknown key %q", path, undecoded[0].String())
	}
	cfg.Path = path

	home, _ := os.UserHomeDir()
	cfg.Cache.Dir = expandHome(cfg.Cache.Dir, home)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Replay.MaxConcurrency < 0:
		return errors.New(errors.ErrCodeInvalidInput, "replay.max_concurrency must not be negative")
	case c.Replay.Iterations < 1:
		return errors.New(errors.ErrCodeInvalidInput, "replay.iterations must be at least 1")
	case c.Replay.QueueSize < 1:
		return errors.New(errors.ErrCodeInvalidInput, "replay.queue_size must be at least 1")
	case c.Replay.Timeout.Duration < 0, c.Replay.GracePeriod.Duration < 0, c.Cache.TTL.Duration < 0, c.Stub.Latency.Duration < 0:
		return errors.New(errors.ErrCodeInvalidInput, "durations must not be negative")
	}
	switch c.Cache.Backend {
	case BackendFile, BackendNone:
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New(errors.ErrCodeInvalidInput, "cache.redis_addr is required for the redis backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache.backend %q", c.Cache.Backend)
	}
	for i, s := range c.Sources {
		if s.Feed == "" {
			return errors.New(errors.ErrCodeInvalidInput, "source %d has no feed", i)
		}
	}
	return nil
}

// PackageBaseAddresses returns the configured resources for feed.
func (c *Config) PackageBaseAddresses(feed string) ([]string, bool) {
	for _, s := range c.Sources {
		if s.Feed == feed && len(s.PackageBaseAddress) > 0 {
			return s.PackageBaseAddress, true
		}
	}
	return nil, false
}

func expandHome(path, home string) string {
	if home != "" && len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
