package output

import (
	"sort"

	"github.com/1broseidon/winsync/internal/geometry"
)

// Tracker records the outputs a surface has entered. Only root windows own a
// tracker; popups and bubbles resolve through their root.
type Tracker struct {
	registry Registry
	entered  map[uint32]struct{}
}

// NewTracker creates an empty tracker over registry.
func NewTracker(registry Registry) *Tracker {
	return &Tracker{
		registry: registry,
		entered:  make(map[uint32]struct{}),
	}
}

// Enter records that the surface now overlaps output id.
func (t *Tracker) Enter(id uint32) {
	t.entered[id] = struct{}{}
}

// Leave records that the surface no longer overlaps output id.
func (t *Tracker) Leave(id uint32) {
	delete(t.entered, id)
}

// Entered returns the entered output IDs in ascending order.
func (t *Tracker) Entered() []uint32 {
	ids := make([]uint32, 0, len(t.entered))
	for id := range t.entered {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PreferredOutput picks the entered output with the largest scale. With no
// usable entered output it falls back to the output overlapping bounds the
// most, then to the primary output.
func (t *Tracker) PreferredOutput(bounds geometry.Rect) (Output, bool) {
	var (
		best  Output
		found bool
	)
	for _, id := range t.Entered() {
		o, ok := Lookup(t.registry, id)
		if !ok {
			continue
		}
		if !found || o.Scale > best.Scale {
			best = o
			found = true
		}
	}
	if found {
		return best, true
	}

	bestArea := 0
	for _, o := range t.registry.Outputs() {
		if area := o.Bounds.Intersect(bounds).Area(); area > bestArea {
			best = o
			bestArea = area
			found = true
		}
	}
	if found {
		return best, true
	}

	return t.registry.Primary()
}

// PreferredScale is the scale of PreferredOutput, or 1 when nothing is known.
func (t *Tracker) PreferredScale(bounds geometry.Rect) float32 {
	o, ok := t.PreferredOutput(bounds)
	if !ok || o.Scale <= 0 {
		return 1
	}
	return o.Scale
}
