// Package config handles repository configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents repository configuration stored in .metakg/config.json.
type Config struct {
	DBPath   string   `json:"db_path,omitempty"`   // Relative to the repository root unless absolute
	DataDirs []string `json:"data_dirs,omitempty"` // Inputs scanned by build
	MaxHops  int      `json:"max_hops,omitempty"`  // Path search limit
}

const (
	MetakgDir  = ".metakg"
	ConfigFile = "config.json"
	CacheDir   = "cache"
	DBFile     = "meta.db"

	// DefaultMaxHops bounds shortest-path searches.
	DefaultMaxHops = 6
)

// Environment overrides.
const (
	EnvRoot     = "METAKG_ROOT"
	EnvDB       = "METAKG_DB"
	EnvLogLevel = "METAKG_LOG_LEVEL"
)

// ErrNotRepository is returned when no .metakg directory is found.
var ErrNotRepository = errors.New("not in a metakg repository (no .metakg directory found)")

// MetakgPath returns the path to the .metakg directory from a root path.
func MetakgPath(root string) string {
	return filepath.Join(root, MetakgDir)
}

// ConfigPath returns the path to config.json from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, MetakgDir, ConfigFile)
}

// CachePath returns the path to the cache directory from a root path.
func CachePath(root string) string {
	return filepath.Join(root, MetakgDir, CacheDir)
}

// DefaultDBPath returns the path to meta.db from a root path.
func DefaultDBPath(root string) string {
	return filepath.Join(root, MetakgDir, CacheDir, DBFile)
}

// Default returns the configuration written by init.
func Default() *Config {
	return &Config{
		DBPath:   filepath.Join(MetakgDir, CacheDir, DBFile),
		DataDirs: []string{"data"},
		MaxHops:  DefaultMaxHops,
	}
}

// ResolveDBPath returns the database location for the repository at root.
// METAKG_DB wins, then db_path (relative paths are joined to root), then
// the default cache location.
func (c *Config) ResolveDBPath(root string) string {
	if p := os.Getenv(EnvDB); p != "" {
		return ExpandPath(p)
	}
	if c == nil || c.DBPath == "" {
		return DefaultDBPath(root)
	}
	p := ExpandPath(c.DBPath)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	return p
}

// ResolveDataDirs returns the data directories joined to root.
func (c *Config) ResolveDataDirs(root string) []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.DataDirs))
	for _, d := range c.DataDirs {
		d = ExpandPath(d)
		if !filepath.IsAbs(d) {
			d = filepath.Join(root, d)
		}
		out = append(out, d)
	}
	return out
}

// Hops returns max_hops or the default when unset.
func (c *Config) Hops() int {
	if c == nil || c.MaxHops <= 0 {
		return DefaultMaxHops
	}
	return c.MaxHops
}

// IsRepository checks if the given path contains a metakg repository.
func IsRepository(root string) bool {
	info, err := os.Stat(MetakgPath(root))
	return err == nil && info.IsDir()
}

// FindRepository walks up from the given path to find a metakg repository.
// Returns the repository root path or ErrNotRepository.
func FindRepository(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsRepository(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrNotRepository
		}
		abs = parent
	}
}

// Init creates the .metakg layout under root and writes the default
// configuration. An existing config is left untouched.
func Init(root string) (*Config, error) {
	if err := os.MkdirAll(CachePath(root), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	if _, err := os.Stat(ConfigPath(root)); err == nil {
		return Load(root)
	}
	cfg := Default()
	if err := cfg.Save(root); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads configuration from the repository at the given root.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.MaxHops < 0 {
		return nil, fmt.Errorf("parsing config: max_hops must be positive, got %d", cfg.MaxHops)
	}

	return &cfg, nil
}

// Save writes configuration to the repository at the given root.
func (c *Config) Save(root string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
