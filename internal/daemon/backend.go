package daemon

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/1broseidon/winsync/internal/config"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/platform"
	"github.com/1broseidon/winsync/internal/wayland"
	"github.com/1broseidon/winsync/internal/x11"
)

// ResolveBackend maps "auto" to a concrete backend name from the session
// environment.
func ResolveBackend(name string) string {
	if name != config.BackendAuto {
		return name
	}
	switch {
	case os.Getenv("WAYLAND_DISPLAY") != "":
		return config.BackendWayland
	case os.Getenv("DISPLAY") != "":
		return config.BackendX11
	default:
		return config.BackendHeadless
	}
}

// OpenBackend connects to the window system selected by cfg.
func OpenBackend(cfg *config.Config, logger *slog.Logger) (platform.Backend, error) {
	name := ResolveBackend(cfg.Backend)
	logger.Debug("opening backend", "configured", cfg.Backend, "resolved", name)

	switch name {
	case config.BackendWayland:
		b, err := wayland.Open(os.Getenv("WAYLAND_DISPLAY"), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open wayland backend: %w", err)
		}
		return b, nil
	case config.BackendX11:
		b, err := x11.Open(logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open x11 backend: %w", err)
		}
		return b, nil
	case config.BackendHeadless:
		return platform.NewHeadless(headlessOutputs(cfg.Outputs), logger.With("backend", name)), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

func headlessOutputs(configured []config.OutputConfig) []output.Output {
	outputs := make([]output.Output, 0, len(configured))
	for i, o := range configured {
		outputs = append(outputs, output.Output{
			ID:     uint32(i + 1),
			Name:   o.Name,
			Bounds: o.Bounds,
			Scale:  o.Scale,
		})
	}
	return outputs
}
