package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"

	driftlog "github.com/go-drift/driftx/pkg/log"
)

// FileName is the optional per-project configuration file.
const FileName = "driftx.yaml"

// Config represents the optional driftx.yaml configuration.
type Config struct {
	App   AppConfig   `yaml:"app"`
	Cache CacheConfig `yaml:"cache"`
	Log   LogConfig   `yaml:"log"`
	Trace TraceConfig `yaml:"trace"`
}

// AppConfig contains application metadata.
type AppConfig struct {
	Name string `yaml:"name,omitempty"`
}

// CacheConfig controls the shared cache used by simulations. Debug forces
// the log level to debug.
type CacheConfig struct {
	Debug bool `yaml:"debug,omitempty" env:"DRIFTX_DEBUG"`
}

// LogConfig selects the zap logger flavor.
type LogConfig struct {
	Level       string `yaml:"level,omitempty" env:"DRIFTX_LOG_LEVEL"`
	Development bool   `yaml:"development,omitempty" env:"DRIFTX_LOG_DEVELOPMENT"`
}

// TraceConfig enables OTLP trace export.
type TraceConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty" env:"DRIFTX_TRACE_ENABLED"`
	Endpoint string `yaml:"endpoint,omitempty" env:"DRIFTX_TRACE_ENDPOINT"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Root           string
	ModulePath     string
	AppName        string
	Debug          bool
	LogLevel       string
	LogDevelopment bool
	TraceEndpoint  string
}

// TraceEnabled reports whether spans should be exported.
func (r *Resolved) TraceEnabled() bool {
	return r.TraceEndpoint != ""
}

// LoadOptional reads driftx.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	return load(filepath.Join(dir, FileName), true)
}

// Load reads the configuration file at path. The file must exist.
func Load(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, optional bool) (*Config, error) {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return &cfg, nil
}

// Resolve loads driftx.yaml from dir (if present), applies environment
// overrides and resolves defaults.
func Resolve(dir string) (*Resolved, error) {
	return ResolveFile(dir, "")
}

// ResolveFile is Resolve with an explicit configuration file. An empty path
// means the optional driftx.yaml in dir.
func ResolveFile(dir, path string) (*Resolved, error) {
	var (
		cfg *Config
		err error
	)
	if path != "" {
		cfg, err = Load(path)
	} else {
		cfg, err = LoadOptional(dir)
	}
	if err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	modulePath, err := modulePath(dir)
	if err != nil {
		return nil, err
	}

	appName := strings.TrimSpace(cfg.App.Name)
	if appName == "" {
		appName = defaultAppName(modulePath, dir)
	}

	level := strings.TrimSpace(cfg.Log.Level)
	if _, err := driftlog.ParseLevel(level); err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	// Cache events are logged at debug.
	if cfg.Cache.Debug {
		level = "debug"
	}

	endpoint := strings.TrimSpace(cfg.Trace.Endpoint)
	if cfg.Trace.Enabled && endpoint == "" {
		return nil, fmt.Errorf("trace.enabled requires trace.endpoint")
	}
	if !cfg.Trace.Enabled {
		endpoint = ""
	}

	return &Resolved{
		Root:           dir,
		ModulePath:     modulePath,
		AppName:        appName,
		Debug:          cfg.Cache.Debug,
		LogLevel:       level,
		LogDevelopment: cfg.Log.Development,
		TraceEndpoint:  endpoint,
	}, nil
}

// FindProjectRoot walks up from the current directory to find go.mod.
// Outside a module it returns the current directory.
func FindProjectRoot() (string, error) {
	start, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return start, nil
		}
		dir = parent
	}
}

// modulePath returns the module path declared in dir/go.mod, or "" when
// dir has no go.mod.
func modulePath(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read go.mod: %w", err)
	}
	path := modfile.ModulePath(data)
	if path == "" {
		return "", fmt.Errorf("could not determine module path from go.mod")
	}
	return path, nil
}

func defaultAppName(modulePath, dir string) string {
	base := filepath.Base(dir)
	if modName, _, ok := module.SplitPathVersion(modulePath); ok && modName != "" {
		parts := strings.Split(modName, "/")
		base = parts[len(parts)-1]
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "driftx_app"
	}
	return base
}
