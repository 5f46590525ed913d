// Package config loads the optional fonline.yaml file and resolves it
// against defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/fonline/droidbridge/pkg/logging"
)

// FileName is the config file looked up in the project directory.
const FileName = "fonline.yaml"

const (
	defaultFrameInterval = 16 * time.Millisecond
	defaultWidth         = 800
	defaultHeight        = 600
	defaultDebugPort     = 9339
)

// Engine driver names.
const (
	DriverNop      = "nop"
	DriverDisabled = "disabled"
)

// Config represents the optional fonline.yaml configuration.
type Config struct {
	App    AppConfig    `yaml:"app"`
	Render RenderConfig `yaml:"render"`
	Engine EngineConfig `yaml:"engine"`
	Log    LogConfig    `yaml:"log"`
	Debug  DebugConfig  `yaml:"debug"`
}

// AppConfig contains application metadata and directories.
type AppConfig struct {
	Name       string `yaml:"name,omitempty"`
	StorageDir string `yaml:"storage_dir,omitempty"`
	AssetsDir  string `yaml:"assets_dir,omitempty"`
}

// RenderConfig contains render loop and window settings.
type RenderConfig struct {
	FrameInterval time.Duration `yaml:"frame_interval,omitempty"`
	Width         int           `yaml:"width,omitempty"`
	Height        int           `yaml:"height,omitempty"`
}

// EngineConfig selects the engine driver.
type EngineConfig struct {
	Driver  string `yaml:"driver,omitempty"`
	Version string `yaml:"version,omitempty"`
	// Frames stops the engine after this many frames; 0 runs forever.
	Frames int `yaml:"frames,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string `yaml:"level,omitempty"`
	Verbose bool   `yaml:"verbose,omitempty"`
}

// DebugConfig controls the diagnostics server.
type DebugConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
	Port    int  `yaml:"port,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Root          string
	AppName       string
	StorageDir    string
	AssetsDir     string
	FrameInterval time.Duration
	Width         int
	Height        int
	EngineDriver  string
	EngineVersion string
	EngineFrames  int
	LogLevel      string
	Verbose       bool
	DebugEnabled  bool
	DebugPort     int
}

// LoadOptional reads fonline.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	return &cfg, nil
}

// Resolve loads fonline.yaml (if present) from dir and resolves defaults.
func Resolve(dir string) (*Resolved, error) {
	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	return cfg.Resolve(dir)
}

// Resolve applies defaults relative to root and validates the result.
func (c *Config) Resolve(root string) (*Resolved, error) {
	r := &Resolved{
		Root:          root,
		AppName:       strings.TrimSpace(c.App.Name),
		StorageDir:    resolvePath(root, c.App.StorageDir, filepath.Join(".fonline", "storage")),
		AssetsDir:     resolvePath(root, c.App.AssetsDir, "assets"),
		FrameInterval: c.Render.FrameInterval,
		Width:         c.Render.Width,
		Height:        c.Render.Height,
		EngineDriver:  strings.ToLower(strings.TrimSpace(c.Engine.Driver)),
		EngineFrames:  c.Engine.Frames,
		LogLevel:      strings.TrimSpace(c.Log.Level),
		Verbose:       c.Log.Verbose,
		DebugEnabled:  c.Debug.Enabled,
		DebugPort:     c.Debug.Port,
	}
	if r.AppName == "" {
		r.AppName = "fonline"
	}
	if r.FrameInterval == 0 {
		r.FrameInterval = defaultFrameInterval
	}
	if r.Width == 0 {
		r.Width = defaultWidth
	}
	if r.Height == 0 {
		r.Height = defaultHeight
	}
	if r.EngineDriver == "" {
		r.EngineDriver = DriverNop
	}
	if r.LogLevel == "" {
		r.LogLevel = "info"
	}
	if r.DebugPort == 0 {
		r.DebugPort = defaultDebugPort
	}

	version, err := engineVersion(c.Engine.Version)
	if err != nil {
		return nil, err
	}
	r.EngineVersion = version

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks values that flags may have overridden after Resolve.
func (r *Resolved) Validate() error {
	if r.FrameInterval < time.Millisecond {
		return fmt.Errorf("render.frame_interval must be at least 1ms (got %v)", r.FrameInterval)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("render size must be positive (got %dx%d)", r.Width, r.Height)
	}
	switch r.EngineDriver {
	case DriverNop, DriverDisabled:
	default:
		return fmt.Errorf("unknown engine.driver %q (use %s or %s)", r.EngineDriver, DriverNop, DriverDisabled)
	}
	if r.EngineFrames < 0 {
		return fmt.Errorf("engine.frames cannot be negative (got %d)", r.EngineFrames)
	}
	if _, err := logging.ParseLevel(r.LogLevel); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	if r.DebugPort < 0 || r.DebugPort > 65535 {
		return fmt.Errorf("debug.port out of range (got %d)", r.DebugPort)
	}
	return nil
}

// engineVersion normalizes "latest" or a semantic version, adding the
// leading "v" when missing.
func engineVersion(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" || v == "latest" {
		return "latest", nil
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "", fmt.Errorf("engine.version must be \"latest\" or a semantic version (got %q)", raw)
	}
	return semver.Canonical(v), nil
}

func resolvePath(root, value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(root, value)
}
