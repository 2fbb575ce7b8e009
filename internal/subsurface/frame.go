package subsurface

import (
	"fmt"
	"math"
	"strings"

	"github.com/1broseidon/winsync/internal/geometry"
)

// BackgroundZOrder marks the plane that is drawn by the root surface itself.
const BackgroundZOrder int32 = math.MinInt32

// OverlayConfig describes one visual plane of a frame.
type OverlayConfig struct {
	ZOrder   int32         `json:"z_order"`
	Bounds   geometry.Rect `json:"bounds"`
	BufferID uint32        `json:"buffer_id"`
	Opaque   bool          `json:"opaque"`
	Opacity  float32       `json:"opacity"`
	Damage   geometry.Rect `json:"damage"`
}

// FrameMetadata carries per-frame values that are not tied to a plane.
type FrameMetadata struct {
	VizSeq int64
	SizePx geometry.Size
	Scale  float32
}

// Role tells where a surface sits relative to the window's content.
type Role int

const (
	RoleRoot Role = iota
	RolePrimary
	RoleBelow
	RoleAbove
)

func (r Role) String() string {
	switch r {
	case RoleRoot:
		return "root"
	case RolePrimary:
		return "primary"
	case RoleBelow:
		return "below"
	case RoleAbove:
		return "above"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Plane pairs a physical surface with the configuration it shows this frame.
type Plane struct {
	SurfaceID uint32
	Role      Role
	Hidden    bool
	Config    OverlayConfig
}

// FrameRecord is everything needed to present one frame. A presenter must
// apply all planes together or none of them.
type FrameRecord struct {
	FrameID  uint32
	Metadata FrameMetadata
	Root     Plane
	// Primary is nil when the window has no primary overlay surface.
	Primary *Plane
	// Below and Above are innermost first, matching the stack lists.
	Below []Plane
	Above []Plane
}

// PresentationOrder returns every plane bottom to top. Below planes sit under
// the primary surface when there is one, otherwise under the root surface.
func (f FrameRecord) PresentationOrder() []Plane {
	out := make([]Plane, 0, 2+len(f.Below)+len(f.Above))
	reversedBelow := func() {
		for i := len(f.Below) - 1; i >= 0; i-- {
			out = append(out, f.Below[i])
		}
	}
	if f.Primary != nil {
		out = append(out, f.Root)
		reversedBelow()
		out = append(out, *f.Primary)
	} else {
		reversedBelow()
		out = append(out, f.Root)
	}
	out = append(out, f.Above...)
	return out
}

// Visible returns the presentation order with hidden planes removed.
func (f FrameRecord) Visible() []Plane {
	var out []Plane
	for _, p := range f.PresentationOrder() {
		if !p.Hidden {
			out = append(out, p)
		}
	}
	return out
}

func (f FrameRecord) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "frame %d:", f.FrameID)
	for _, p := range f.PresentationOrder() {
		if p.Hidden {
			fmt.Fprintf(&b, " %s#%d(hidden)", p.Role, p.SurfaceID)
			continue
		}
		fmt.Fprintf(&b, " %s#%d(z=%d)", p.Role, p.SurfaceID, p.Config.ZOrder)
	}
	return b.String()
}

// Presenter applies frame records to the window system.
type Presenter interface {
	Present(FrameRecord) error
}
