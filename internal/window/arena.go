// Package window keeps the window hierarchy in an arena addressed by handle.
// Parents refer to children by handle and children keep a non-owning parent
// handle; the arena unlinks both sides when a window is removed.
package window

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/1broseidon/winsync/internal/configure"
	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/invariant"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/sequence"
	"github.com/1broseidon/winsync/internal/subsurface"
)

// Handle identifies a window. Zero is never a valid handle and handles are
// not reused.
type Handle uint64

var (
	ErrUnknownWindow = errors.New("window: unknown handle")
	ErrPopupExists   = errors.New("window: parent already has a popup")
)

// Window is one arena entry.
type Window struct {
	Handle Handle
	Kind   Kind
	Title  string

	Parent  Handle
	Popup   Handle
	Bubbles []Handle

	// Root is the window's main surface; Primary is the optional overlay
	// carrying the z==0 plane. Both are destroyed with the window.
	Root    subsurface.Surface
	Primary subsurface.Surface

	Machine  *configure.Machine
	Overlays *subsurface.Coordinator
	Outputs  *output.Tracker
}

// Params describes a window to add.
type Params struct {
	Kind     Kind
	Title    string
	Parent   Handle
	Root     subsurface.Surface
	Primary  subsurface.Surface
	Machine  *configure.Machine
	Overlays *subsurface.Coordinator
}

// Arena owns every window of a client connection.
type Arena struct {
	runner   sequence.Runner
	registry output.Registry
	logger   *slog.Logger

	next    Handle
	windows map[Handle]*Window
}

// NewArena creates an arena. It must be called on runner.
func NewArena(runner sequence.Runner, registry output.Registry, logger *slog.Logger) *Arena {
	invariant.Check(runner != nil && runner.RunsTasksInCurrentSequence(), "window arena created off its runner")
	if logger == nil {
		logger = slog.Default()
	}
	return &Arena{
		runner:   runner,
		registry: registry,
		logger:   logger,
		windows:  make(map[Handle]*Window),
	}
}

// Add inserts a window and links it to its parent.
func (a *Arena) Add(p Params) (Handle, error) {
	a.checkSequence()
	if !p.Kind.Valid() {
		return 0, fmt.Errorf("window: invalid kind %v", p.Kind)
	}
	caps := p.Kind.Capabilities()

	var parent *Window
	if caps.NeedsParent {
		var ok bool
		parent, ok = a.windows[p.Parent]
		if !ok {
			return 0, fmt.Errorf("adding %s: parent %d: %w", p.Kind, p.Parent, ErrUnknownWindow)
		}
		if !parent.Kind.Capabilities().CanParent {
			return 0, fmt.Errorf("adding %s: %s %d cannot own children", p.Kind, parent.Kind, parent.Handle)
		}
		if p.Kind == Popup && parent.Popup != 0 {
			return 0, fmt.Errorf("adding popup to %d: %w", parent.Handle, ErrPopupExists)
		}
	} else if p.Parent != 0 {
		return 0, fmt.Errorf("window: %s cannot have a parent", p.Kind)
	}

	a.next++
	w := &Window{
		Handle:   a.next,
		Kind:     p.Kind,
		Title:    p.Title,
		Root:     p.Root,
		Primary:  p.Primary,
		Machine:  p.Machine,
		Overlays: p.Overlays,
	}
	if caps.TracksOutputs {
		w.Outputs = output.NewTracker(a.registry)
	}
	if parent != nil {
		w.Parent = parent.Handle
		switch p.Kind {
		case Popup:
			parent.Popup = w.Handle
		case Bubble:
			parent.Bubbles = append(parent.Bubbles, w.Handle)
		}
	}
	a.windows[w.Handle] = w

	a.logger.Debug("window added", "window", w.Handle, "kind", w.Kind.String(), "parent", w.Parent)
	return w.Handle, nil
}

// Get returns the window for h.
func (a *Arena) Get(h Handle) (*Window, bool) {
	w, ok := a.windows[h]
	return w, ok
}

// Len returns the number of live windows.
func (a *Arena) Len() int { return len(a.windows) }

// Handles returns all live handles in creation order.
func (a *Arena) Handles() []Handle {
	out := make([]Handle, 0, len(a.windows))
	for h := range a.windows {
		out = append(out, h)
	}
	slices.Sort(out)
	return out
}

// Children returns the popup (if any) followed by the bubbles of h.
func (a *Arena) Children(h Handle) []Handle {
	w, ok := a.windows[h]
	if !ok {
		return nil
	}
	var out []Handle
	if w.Popup != 0 {
		out = append(out, w.Popup)
	}
	return append(out, w.Bubbles...)
}

// Remove destroys h and its descendants. Links on both sides are severed
// and the window's surfaces are destroyed.
func (a *Arena) Remove(h Handle) error {
	a.checkSequence()
	w, ok := a.windows[h]
	if !ok {
		return fmt.Errorf("removing %d: %w", h, ErrUnknownWindow)
	}

	for _, child := range a.Children(h) {
		if err := a.Remove(child); err != nil {
			return err
		}
	}

	if parent, ok := a.windows[w.Parent]; ok {
		if parent.Popup == h {
			parent.Popup = 0
		}
		parent.Bubbles = slices.DeleteFunc(parent.Bubbles, func(b Handle) bool { return b == h })
	}
	w.Parent = 0

	if w.Overlays != nil {
		w.Overlays.Destroy()
	}
	if w.Primary != nil {
		w.Primary.Destroy()
	}
	if w.Root != nil {
		w.Root.Destroy()
	}
	delete(a.windows, h)

	a.logger.Debug("window removed", "window", h, "kind", w.Kind.String())
	return nil
}

// RootOf walks parent links up to the outermost ancestor.
func (a *Arena) RootOf(h Handle) (Handle, error) {
	w, ok := a.windows[h]
	if !ok {
		return 0, fmt.Errorf("resolving root of %d: %w", h, ErrUnknownWindow)
	}
	for w.Parent != 0 {
		parent, ok := a.windows[w.Parent]
		invariant.Check(ok, "window %d has dangling parent %d", w.Handle, w.Parent)
		if !ok {
			break
		}
		w = parent
	}
	return w.Handle, nil
}

// EnterOutput records an output enter event for h. Windows that do not track
// outputs ignore it.
func (a *Arena) EnterOutput(h Handle, id uint32) {
	if w, ok := a.windows[h]; ok && w.Outputs != nil {
		w.Outputs.Enter(id)
	}
}

// LeaveOutput records an output leave event for h.
func (a *Arena) LeaveOutput(h Handle, id uint32) {
	if w, ok := a.windows[h]; ok && w.Outputs != nil {
		w.Outputs.Leave(id)
	}
}

// PreferredScale resolves the rendering scale of h through its root ancestor.
func (a *Arena) PreferredScale(h Handle) (float32, error) {
	root, err := a.RootOf(h)
	if err != nil {
		return 0, err
	}
	w := a.windows[root]
	if w.Outputs == nil {
		return 1, nil
	}
	var bounds geometry.Rect
	if w.Machine != nil {
		bounds = w.Machine.Latched().BoundsDIP
	}
	return w.Outputs.PreferredScale(bounds), nil
}

func (a *Arena) checkSequence() {
	invariant.Check(a.runner.RunsTasksInCurrentSequence(), "window arena used off its runner")
}
