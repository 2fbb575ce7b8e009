// Package output tracks which displays a window overlaps and resolves the
// scale the window should render at.
package output

import (
	"github.com/1broseidon/winsync/internal/geometry"
)

// Output is a display known to the window system.
type Output struct {
	ID     uint32        `json:"id"`
	Name   string        `json:"name"`
	Bounds geometry.Rect `json:"bounds"`
	Scale  float32       `json:"scale"`
}

// Registry exposes the current set of outputs.
type Registry interface {
	Outputs() []Output
	Primary() (Output, bool)
}

// Lookup returns the output with id from r.
func Lookup(r Registry, id uint32) (Output, bool) {
	for _, o := range r.Outputs() {
		if o.ID == id {
			return o, true
		}
	}
	return Output{}, false
}

// StaticRegistry is a fixed list of outputs. The first entry is primary.
type StaticRegistry []Output

func (s StaticRegistry) Outputs() []Output { return s }

func (s StaticRegistry) Primary() (Output, bool) {
	if len(s) == 0 {
		return Output{}, false
	}
	return s[0], true
}
