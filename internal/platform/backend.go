package platform

import (
	"context"

	"github.com/1broseidon/winsync/internal/configure"
	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/subsurface"
	"github.com/1broseidon/winsync/internal/windowstate"
)

// WindowOptions describes the toplevel a backend should create.
type WindowOptions struct {
	Title   string
	Bounds  geometry.Rect
	MinSize geometry.Size
	MaxSize geometry.Size
	// PrimarySubsurface requests a dedicated overlay surface for the z==0
	// plane instead of drawing it on the root surface.
	PrimarySubsurface bool
}

// ToplevelConfigure carries the hints of one toplevel configure event. A
// zero Size means the client picks its own size.
type ToplevelConfigure struct {
	Size      geometry.Size
	Kind      windowstate.Kind
	Tiled     windowstate.TiledEdges
	Suspended bool
	Activated bool
}

// Events receives the native events of one window. Backends may call it from
// any goroutine; wrap it with Posting to move calls onto the owner's runner.
type Events interface {
	// ToplevelConfigure records hints for the next configure serial.
	ToplevelConfigure(c ToplevelConfigure)
	// SurfaceConfigure finalises the recorded hints under serial.
	SurfaceConfigure(serial int64)
	// OcclusionChanged reports a visibility change outside the configure
	// sequence.
	OcclusionChanged(o windowstate.Occlusion)
	OutputEntered(id uint32)
	OutputLeft(id uint32)
	OutputsChanged()
	CloseRequested()
}

// Window is the backend side of one toplevel.
type Window interface {
	configure.Transport
	configure.Constraints
	configure.MaskUpdater
	subsurface.Factory
	subsurface.Presenter

	Root() subsurface.Surface
	// Primary is nil when the backend draws the z==0 plane on Root.
	Primary() subsurface.Surface
	SetTitle(title string) error
}

// Backend abstracts a window system connection.
type Backend interface {
	Name() string
	Outputs() output.Registry
	CreateWindow(opts WindowOptions, events Events) (Window, error)
	// Run pumps native events to the windows' Events until ctx is cancelled
	// or the connection fails.
	Run(ctx context.Context) error
	Close() error
}

// ConfigureSimulator is implemented by windows whose backend can inject
// compositor configures, for driving the engine without a compositor.
type ConfigureSimulator interface {
	SimulateConfigure(c ToplevelConfigure) int64
}
