package window

import "fmt"

// Kind is the closed set of window roles.
type Kind int

const (
	Toplevel Kind = iota + 1
	Popup
	Bubble
)

func (k Kind) String() string {
	switch k {
	case Toplevel:
		return "toplevel"
	case Popup:
		return "popup"
	case Bubble:
		return "bubble"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Capabilities describes what a window kind takes part in.
type Capabilities struct {
	// TracksOutputs windows own an output tracker; others resolve scale
	// through their root ancestor.
	TracksOutputs bool
	// CanActivate windows may take keyboard focus.
	CanActivate bool
	// NegotiatesState windows run a configure state machine.
	NegotiatesState bool
	// NeedsParent windows cannot exist without a parent.
	NeedsParent bool
	// CanParent windows may own a popup and bubbles.
	CanParent bool
}

var capabilities = map[Kind]Capabilities{
	Toplevel: {TracksOutputs: true, CanActivate: true, NegotiatesState: true, CanParent: true},
	Popup:    {NegotiatesState: true, NeedsParent: true},
	Bubble:   {CanActivate: true, NeedsParent: true, CanParent: true},
}

// Capabilities returns the capability row for k.
func (k Kind) Capabilities() Capabilities {
	return capabilities[k]
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := capabilities[k]
	return ok
}
