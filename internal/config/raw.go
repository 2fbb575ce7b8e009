package config

import "github.com/1broseidon/winsync/internal/geometry"

// RawConfig mirrors Config with optional fields so a file only overrides the
// keys it mentions.
type RawConfig struct {
	Backend   *string         `yaml:"backend"`
	LogLevel  *string         `yaml:"log_level"`
	LogFormat *string         `yaml:"log_format"`
	Engine    *RawEngine      `yaml:"engine"`
	Window    *RawWindow      `yaml:"window"`
	Renderer  *RawRenderer    `yaml:"renderer"`
	Outputs   *[]OutputConfig `yaml:"outputs"`
	Trace     *RawTrace       `yaml:"trace"`
}

type RawEngine struct {
	MaxOutstandingRequests *int           `yaml:"max_outstanding_requests"`
	EmptyBoundsFallback    *geometry.Size `yaml:"empty_bounds_fallback"`
	PrimarySubsurface      *bool          `yaml:"primary_subsurface"`
}

type RawWindow struct {
	Title       *string          `yaml:"title"`
	Bounds      *geometry.Rect   `yaml:"bounds"`
	MinSize     *geometry.Size   `yaml:"min_size"`
	MaxSize     *geometry.Size   `yaml:"max_size"`
	FrameInsets *geometry.Insets `yaml:"frame_insets"`
}

type RawRenderer struct {
	FrameIntervalMS *int             `yaml:"frame_interval_ms"`
	Overlays        *[]OverlayConfig `yaml:"overlays"`
}

type RawTrace struct {
	Enabled *bool   `yaml:"enabled"`
	Path    *string `yaml:"path"`
}

// applyTo writes every set field onto cfg.
func (r RawConfig) applyTo(cfg *Config) {
	set(&cfg.Backend, r.Backend)
	set(&cfg.LogLevel, r.LogLevel)
	set(&cfg.LogFormat, r.LogFormat)
	set(&cfg.Outputs, r.Outputs)

	if e := r.Engine; e != nil {
		set(&cfg.Engine.MaxOutstandingRequests, e.MaxOutstandingRequests)
		set(&cfg.Engine.EmptyBoundsFallback, e.EmptyBoundsFallback)
		set(&cfg.Engine.PrimarySubsurface, e.PrimarySubsurface)
	}
	if w := r.Window; w != nil {
		set(&cfg.Window.Title, w.Title)
		set(&cfg.Window.Bounds, w.Bounds)
		set(&cfg.Window.MinSize, w.MinSize)
		set(&cfg.Window.MaxSize, w.MaxSize)
		set(&cfg.Window.FrameInsets, w.FrameInsets)
	}
	if rr := r.Renderer; rr != nil {
		set(&cfg.Renderer.FrameIntervalMS, rr.FrameIntervalMS)
		set(&cfg.Renderer.Overlays, rr.Overlays)
	}
	if t := r.Trace; t != nil {
		set(&cfg.Trace.Enabled, t.Enabled)
		set(&cfg.Trace.Path, t.Path)
	}
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
