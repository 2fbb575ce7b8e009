package windowstate

import (
	"fmt"
	"strings"

	"github.com/1broseidon/winsync/internal/geometry"
)

// Kind is the visual state of a toplevel as negotiated with the compositor.
type Kind int

const (
	Unknown Kind = iota
	Normal
	Minimized
	Maximized
	Fullscreen
	Tiled
)

var kindNames = map[Kind]string{
	Unknown:    "unknown",
	Normal:     "normal",
	Minimized:  "minimized",
	Maximized:  "maximized",
	Fullscreen: "fullscreen",
	Tiled:      "tiled",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind resolves a kind from its lowercase name.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return Unknown, fmt.Errorf("unknown window state %q", s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Occlusion reports how much of the window is visible.
type Occlusion int

const (
	OcclusionUnknown Occlusion = iota
	Visible
	Occluded
	Hidden
)

func (o Occlusion) String() string {
	switch o {
	case Visible:
		return "visible"
	case Occluded:
		return "occluded"
	case Hidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// TiledEdges is a bitmask of edges snapped against neighbours or the output.
type TiledEdges uint8

const (
	EdgeLeft TiledEdges = 1 << iota
	EdgeRight
	EdgeTop
	EdgeBottom
)

// Any reports whether at least one edge is tiled.
func (e TiledEdges) Any() bool { return e != 0 }

var edgeNames = []struct {
	name string
	edge TiledEdges
}{
	{"left", EdgeLeft},
	{"right", EdgeRight},
	{"top", EdgeTop},
	{"bottom", EdgeBottom},
}

// Names lists the set edges in left, right, top, bottom order.
func (e TiledEdges) Names() []string {
	var out []string
	for _, n := range edgeNames {
		if e&n.edge != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

// ParseEdges builds a mask from edge names, ignoring case.
func ParseEdges(names []string) (TiledEdges, error) {
	var edges TiledEdges
	for _, name := range names {
		found := false
		for _, n := range edgeNames {
			if strings.EqualFold(strings.TrimSpace(name), n.name) {
				edges |= n.edge
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown tiled edge %q", name)
		}
	}
	return edges, nil
}

// State is a complete snapshot of negotiated window state. It is a value
// type; two states are equal when every field is equal.
type State struct {
	BoundsDIP   geometry.Rect `json:"bounds_dip"`
	SizePx      geometry.Size `json:"size_px"`
	WindowScale float32       `json:"window_scale"`
	UIScale     float32       `json:"ui_scale"`
	Kind        Kind          `json:"kind"`
	Occlusion   Occlusion     `json:"occlusion"`
	Tiled       TiledEdges    `json:"tiled,omitempty"`
	Suspended   bool          `json:"suspended,omitempty"`
}

// Default returns the initial state of a freshly created window.
func Default() State {
	return State{
		WindowScale: 1,
		UIScale:     1,
		Kind:        Normal,
		Occlusion:   OcclusionUnknown,
	}
}

// IsFullscreenOrMaximized reports whether decorations are dropped in this state.
func (s State) IsFullscreenOrMaximized() bool {
	return s.Kind == Maximized || s.Kind == Fullscreen
}

func (s State) String() string {
	return fmt.Sprintf("%s bounds=%s px=%s scale=%.2f occlusion=%s",
		s.Kind, s.BoundsDIP, s.SizePx, s.WindowScale, s.Occlusion)
}
