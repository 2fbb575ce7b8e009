package wayland

import (
	"encoding/binary"
	"errors"

	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/platform"
	"github.com/1broseidon/winsync/internal/windowstate"
)

var errShortEvent = errors.New("wayland: event body too short")

// xdg_toplevel.state values.
const (
	stateMaximized   = 1
	stateFullscreen  = 2
	stateResizing    = 3
	stateActivated   = 4
	stateTiledLeft   = 5
	stateTiledRight  = 6
	stateTiledTop    = 7
	stateTiledBottom = 8
	stateSuspended   = 9
)

// reader decodes the little-endian argument stream of one event body.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) uint32() uint32 {
	if r.err != nil {
		return 0
	}
	if len(r.data) < r.off+4 {
		r.err = errShortEvent
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

func (r *reader) int32() int32 { return int32(r.uint32()) }

// array returns the next array argument, padded to 32 bits on the wire.
func (r *reader) array() []byte {
	n := int(r.uint32())
	if r.err != nil {
		return nil
	}
	if len(r.data) < r.off+n {
		r.err = errShortEvent
		return nil
	}
	v := r.data[r.off : r.off+n]
	r.off += (n + 3) &^ 3
	return v
}

// string returns the next string argument without its terminating NUL.
func (r *reader) string() string {
	b := r.array()
	if len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return string(b)
}

// parseToplevelConfigure decodes xdg_toplevel.configure.
func parseToplevelConfigure(body []byte) (platform.ToplevelConfigure, error) {
	r := reader{data: body}
	width := r.int32()
	height := r.int32()
	states := r.array()
	if r.err != nil {
		return platform.ToplevelConfigure{}, r.err
	}

	c := platform.ToplevelConfigure{
		Size: geometry.Size{Width: int(width), Height: int(height)},
		Kind: windowstate.Normal,
	}
	var maximized, fullscreen bool
	for i := 0; i+4 <= len(states); i += 4 {
		switch binary.LittleEndian.Uint32(states[i:]) {
		case stateMaximized:
			maximized = true
		case stateFullscreen:
			fullscreen = true
		case stateActivated:
			c.Activated = true
		case stateTiledLeft:
			c.Tiled |= windowstate.EdgeLeft
		case stateTiledRight:
			c.Tiled |= windowstate.EdgeRight
		case stateTiledTop:
			c.Tiled |= windowstate.EdgeTop
		case stateTiledBottom:
			c.Tiled |= windowstate.EdgeBottom
		case stateSuspended:
			c.Suspended = true
		}
	}
	switch {
	case fullscreen:
		c.Kind = windowstate.Fullscreen
	case maximized:
		c.Kind = windowstate.Maximized
	case c.Tiled.Any():
		c.Kind = windowstate.Tiled
	}
	return c, nil
}
