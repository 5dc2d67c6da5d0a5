package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SimulationDefaults overrides the built-in simulation settings. Zero values
// leave the built-in default in place.
type SimulationDefaults struct {
	TEnd                 float64 `yaml:"t_end,omitempty"`
	TPoints              int     `yaml:"t_points,omitempty"`
	DefaultConcentration float64 `yaml:"default_concentration,omitempty"`
	Method               string  `yaml:"method,omitempty"`
	RTol                 float64 `yaml:"rtol,omitempty"`
	ATol                 float64 `yaml:"atol,omitempty"`
	MaxStep              float64 `yaml:"max_step,omitempty"`
}

// GlobalConfig represents configuration stored in ~/.config/metakg/config.yml.
type GlobalConfig struct {
	LogLevel   string             `yaml:"log_level,omitempty"`
	ListenAddr string             `yaml:"listen_addr,omitempty"`
	Simulation SimulationDefaults `yaml:"simulation,omitempty"`
	// SimulateRate limits POST /api/simulate requests per second; 0 uses DefaultSimulateRate.
	SimulateRate float64 `yaml:"simulate_rate,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "metakg"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"

	// DefaultListenAddr is where serve listens when nothing else is configured.
	DefaultListenAddr = "127.0.0.1:8742"
	// DefaultLogLevel keeps stderr quiet so JSON on stdout stays readable.
	DefaultLogLevel = "warn"
	// DefaultSimulateRate is the served simulation request rate per second.
	DefaultSimulateRate = 5.0
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/metakg/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	path := GlobalConfigPath()
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// GetLogLevel returns the log level: METAKG_LOG_LEVEL, then log_level, then warn.
func GetLogLevel() string {
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		return lvl
	}
	cfg, err := LoadGlobalConfig()
	if err == nil && cfg.LogLevel != "" {
		return cfg.LogLevel
	}
	return DefaultLogLevel
}

// GetListenAddr returns the configured listen address or the default.
func GetListenAddr() string {
	cfg, err := LoadGlobalConfig()
	if err == nil && cfg.ListenAddr != "" {
		return cfg.ListenAddr
	}
	return DefaultListenAddr
}

// GetSimulationDefaults returns the simulation block of the global config.
func GetSimulationDefaults() SimulationDefaults {
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return SimulationDefaults{}
	}
	return cfg.Simulation
}

// GetSimulateRate returns the served simulation request rate. A negative
// simulate_rate disables limiting and is returned as 0.
func GetSimulateRate() float64 {
	cfg, err := LoadGlobalConfig()
	if err != nil || cfg.SimulateRate == 0 {
		return DefaultSimulateRate
	}
	if cfg.SimulateRate < 0 {
		return 0
	}
	return cfg.SimulateRate
}
