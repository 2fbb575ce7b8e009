package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/1broseidon/winsync/internal/geometry"
	"gopkg.in/yaml.v3"
)

// Backend names accepted by the backend key.
const (
	BackendAuto     = "auto"
	BackendWayland  = "wayland"
	BackendX11      = "x11"
	BackendHeadless = "headless"
)

// Config is the effective daemon configuration.
type Config struct {
	Backend   string         `yaml:"backend"`
	LogLevel  string         `yaml:"log_level"`
	LogFormat string         `yaml:"log_format"`
	Engine    EngineConfig   `yaml:"engine"`
	Window    WindowConfig   `yaml:"window"`
	Renderer  RendererConfig `yaml:"renderer"`
	Outputs   []OutputConfig `yaml:"outputs"`
	Trace     TraceConfig    `yaml:"trace"`
}

// EngineConfig tunes the configure state machine.
type EngineConfig struct {
	MaxOutstandingRequests int           `yaml:"max_outstanding_requests"`
	EmptyBoundsFallback    geometry.Size `yaml:"empty_bounds_fallback"`
	PrimarySubsurface      bool          `yaml:"primary_subsurface"`
}

// WindowConfig describes the window the daemon manages.
type WindowConfig struct {
	Title       string          `yaml:"title"`
	Bounds      geometry.Rect   `yaml:"bounds"`
	MinSize     geometry.Size   `yaml:"min_size"`
	MaxSize     geometry.Size   `yaml:"max_size"`
	FrameInsets geometry.Insets `yaml:"frame_insets"`
}

// RendererConfig drives the software frame producer.
type RendererConfig struct {
	FrameIntervalMS int             `yaml:"frame_interval_ms"`
	Overlays        []OverlayConfig `yaml:"overlays"`
}

// OverlayConfig is an extra plane composited with every frame.
type OverlayConfig struct {
	ZOrder int32         `yaml:"z_order"`
	Bounds geometry.Rect `yaml:"bounds"`
	Opaque bool          `yaml:"opaque"`
}

// OutputConfig declares an output for the headless backend.
type OutputConfig struct {
	Name   string        `yaml:"name"`
	Bounds geometry.Rect `yaml:"bounds"`
	Scale  float32       `yaml:"scale"`
}

// TraceConfig controls the transition journal.
type TraceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ValidationError points at the offending key, and at its file position when
// the value came from a config file.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend:   BackendAuto,
		LogLevel:  "info",
		LogFormat: "auto",
		Engine: EngineConfig{
			MaxOutstandingRequests: 3,
			EmptyBoundsFallback:    geometry.Size{Width: 1, Height: 1},
			PrimarySubsurface:      true,
		},
		Window: WindowConfig{
			Title:  "winsync",
			Bounds: geometry.Rect{Width: 800, Height: 600},
		},
		Renderer: RendererConfig{
			FrameIntervalMS: 16,
		},
		Outputs: []OutputConfig{
			{Name: "HEADLESS-1", Bounds: geometry.Rect{Width: 1920, Height: 1080}, Scale: 1},
		},
	}
}

// Validate checks the effective configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendWayland, BackendX11, BackendHeadless:
	default:
		return &ValidationError{Path: "backend", Err: fmt.Errorf("backend must be one of: auto, wayland, x11, headless")}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warn, error")}
	}
	switch c.LogFormat {
	case "auto", "console", "json":
	default:
		return &ValidationError{Path: "log_format", Err: fmt.Errorf("log_format must be one of: auto, console, json")}
	}
	if c.Engine.MaxOutstandingRequests < 1 {
		return &ValidationError{Path: "engine.max_outstanding_requests", Err: fmt.Errorf("max_outstanding_requests must be >= 1")}
	}
	if c.Engine.EmptyBoundsFallback.IsEmpty() {
		return &ValidationError{Path: "engine.empty_bounds_fallback", Err: fmt.Errorf("empty_bounds_fallback must be at least 1x1")}
	}
	if c.Window.Bounds.Width < 0 || c.Window.Bounds.Height < 0 {
		return &ValidationError{Path: "window.bounds", Err: fmt.Errorf("bounds size must be >= 0")}
	}
	if c.Window.MinSize.Width < 0 || c.Window.MinSize.Height < 0 {
		return &ValidationError{Path: "window.min_size", Err: fmt.Errorf("min_size values must be >= 0")}
	}
	if c.Window.MaxSize.Width < 0 || c.Window.MaxSize.Height < 0 {
		return &ValidationError{Path: "window.max_size", Err: fmt.Errorf("max_size values must be >= 0")}
	}
	if (c.Window.MaxSize.Width > 0 && c.Window.MaxSize.Width < c.Window.MinSize.Width) ||
		(c.Window.MaxSize.Height > 0 && c.Window.MaxSize.Height < c.Window.MinSize.Height) {
		return &ValidationError{Path: "window.max_size", Err: fmt.Errorf("max_size must not be smaller than min_size")}
	}
	in := c.Window.FrameInsets
	if in.Top < 0 || in.Bottom < 0 || in.Left < 0 || in.Right < 0 {
		return &ValidationError{Path: "window.frame_insets", Err: fmt.Errorf("frame_insets values must be >= 0")}
	}
	if c.Renderer.FrameIntervalMS < 1 {
		return &ValidationError{Path: "renderer.frame_interval_ms", Err: fmt.Errorf("frame_interval_ms must be >= 1")}
	}
	for i, o := range c.Renderer.Overlays {
		if o.Bounds.IsEmpty() {
			return &ValidationError{Path: fmt.Sprintf("renderer.overlays[%d].bounds", i), Err: fmt.Errorf("overlay bounds must not be empty")}
		}
	}
	for i, o := range c.Outputs {
		if strings.TrimSpace(o.Name) == "" {
			return &ValidationError{Path: fmt.Sprintf("outputs[%d].name", i), Err: fmt.Errorf("output name is required")}
		}
		if o.Scale <= 0 {
			return &ValidationError{Path: fmt.Sprintf("outputs[%d].scale", i), Err: fmt.Errorf("scale must be > 0")}
		}
	}
	return nil
}

// TracePath returns the journal location, resolving the default when unset.
func (c *Config) TracePath() (string, error) {
	if c.Trace.Path != "" {
		return c.Trace.Path, nil
	}
	return DefaultTracePath()
}

// DefaultTracePath is $XDG_STATE_HOME/winsync/trace.db, falling back to
// ~/.local/state.
func DefaultTracePath() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "winsync", "trace.db"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "state", "winsync", "trace.db"), nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// Save writes the configuration to path after validating it.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
