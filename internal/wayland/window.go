package wayland

import (
	"errors"
	"fmt"
	"sync"

	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/platform"
	"github.com/1broseidon/winsync/internal/subsurface"
	"github.com/1broseidon/winsync/internal/windowstate"
)

// Window is an xdg_toplevel. Overlays are synchronized wl_subsurfaces of the
// root surface, so their state applies atomically with the root commit.
type Window struct {
	backend    *Backend
	events     platform.Events
	surface    uint32
	xdgSurface uint32
	toplevel   uint32
	min        geometry.Size
	max        geometry.Size

	mu      sync.Mutex
	primary *overlay
	subs    map[uint32]*overlay
}

func newWindow(b *Backend, opts platform.WindowOptions, events platform.Events) (*Window, error) {
	surface, err := b.newSurface()
	if err != nil {
		return nil, fmt.Errorf("failed to create surface: %w", err)
	}
	w := &Window{
		backend:    b,
		events:     events,
		surface:    surface,
		xdgSurface: b.display.AllocateID(),
		toplevel:   b.display.AllocateID(),
		min:        opts.MinSize,
		max:        opts.MaxSize,
		subs:       make(map[uint32]*overlay),
	}

	d := b.display
	d.AddListener(surface, surfaceEventEnter, w.onOutput(events.OutputEntered))
	d.AddListener(surface, surfaceEventLeave, w.onOutput(events.OutputLeft))
	d.AddListener(w.xdgSurface, xdgSurfaceEventConfigure, w.onSurfaceConfigure)
	d.AddListener(w.toplevel, toplevelEventConfigure, w.onToplevelConfigure)
	d.AddListener(w.toplevel, toplevelEventClose, func([]byte) { events.CloseRequested() })

	err = errors.Join(
		b.send(b.wmBase, wmBaseGetXdgSurface, w.xdgSurface, surface),
		b.send(w.xdgSurface, xdgSurfaceGetToplevel, w.toplevel),
		w.SetTitle(opts.Title),
	)
	if !opts.MinSize.IsEmpty() {
		err = errors.Join(err, b.send(w.toplevel, toplevelSetMinSize, int32(opts.MinSize.Width), int32(opts.MinSize.Height)))
	}
	if !opts.MaxSize.IsEmpty() {
		err = errors.Join(err, b.send(w.toplevel, toplevelSetMaxSize, int32(opts.MaxSize.Width), int32(opts.MaxSize.Height)))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create toplevel: %w", err)
	}

	if opts.PrimarySubsurface {
		primary, err := w.newOverlay()
		if err != nil {
			return nil, err
		}
		w.primary = primary
	}

	// The initial commit without a buffer asks for the first configure.
	if err := b.send(surface, surfaceCommit); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Window) onOutput(report func(uint32)) func([]byte) {
	return func(body []byte) {
		r := reader{data: body}
		id := r.uint32()
		if r.err == nil {
			report(id)
		}
	}
}

func (w *Window) onToplevelConfigure(body []byte) {
	c, err := parseToplevelConfigure(body)
	if err != nil {
		w.backend.logger.Error("malformed toplevel configure", "error", err)
		return
	}
	w.events.ToplevelConfigure(c)
}

func (w *Window) onSurfaceConfigure(body []byte) {
	r := reader{data: body}
	serial := r.uint32()
	if r.err != nil {
		w.backend.logger.Error("malformed surface configure", "error", r.err)
		return
	}
	w.events.SurfaceConfigure(int64(serial))
}

// AckConfigure acknowledges serial and commits so it takes effect even when
// no frame follows.
func (w *Window) AckConfigure(serial int64) error {
	return errors.Join(
		w.backend.send(w.xdgSurface, xdgSurfaceAckConfigure, uint32(serial)),
		w.backend.send(w.surface, surfaceCommit),
	)
}

func (w *Window) SetWindowGeometry(r geometry.Rect) error {
	return w.backend.send(w.xdgSurface, xdgSurfaceSetWindowGeometry,
		int32(r.X), int32(r.Y), int32(r.Width), int32(r.Height))
}

func (w *Window) MinimumSize() geometry.Size { return w.min }
func (w *Window) MaximumSize() geometry.Size { return w.max }

// UpdateWindowMask marks the whole window opaque when it has no rounded
// decorations.
func (w *Window) UpdateWindowMask(s windowstate.State) {
	b := w.backend
	if !s.IsFullscreenOrMaximized() {
		if err := b.send(w.surface, surfaceSetOpaqueRegion, nil); err != nil {
			b.logger.Debug("failed to clear opaque region", "error", err)
		}
		return
	}
	region := b.display.AllocateID()
	err := errors.Join(
		b.send(b.compositor, compositorCreateRegion, region),
		b.send(region, regionAdd, int32(0), int32(0), int32(s.BoundsDIP.Width), int32(s.BoundsDIP.Height)),
		b.send(w.surface, surfaceSetOpaqueRegion, region),
		b.send(region, regionDestroy),
	)
	if err != nil {
		b.logger.Debug("failed to set opaque region", "error", err)
	}
}

func (w *Window) SetTitle(title string) error {
	return w.backend.send(w.toplevel, toplevelSetTitle, title)
}

func (w *Window) Root() subsurface.Surface { return (*rootSurface)(w) }

func (w *Window) Primary() subsurface.Surface {
	if w.primary == nil {
		return nil
	}
	return w.primary
}

func (w *Window) CreateSubsurface() (subsurface.Surface, error) {
	o, err := w.newOverlay()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", subsurface.ErrStackExhausted, err)
	}
	return o, nil
}

func (w *Window) newOverlay() (*overlay, error) {
	b := w.backend
	surface, err := b.newSurface()
	if err != nil {
		return nil, err
	}
	sub := b.display.AllocateID()
	if err := b.send(b.subcompositor, subcompositorGetSubsurface, sub, surface, w.surface); err != nil {
		return nil, err
	}
	o := &overlay{owner: w, surface: surface, sub: sub}
	w.mu.Lock()
	w.subs[surface] = o
	w.mu.Unlock()
	return o, nil
}

// Present positions and restacks every overlay, commits them and then
// commits the root surface, which applies the whole frame at once.
func (w *Window) Present(rec subsurface.FrameRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	order := rec.PresentationOrder()
	rootIdx := -1
	for i, p := range order {
		if p.Role == subsurface.RoleRoot {
			rootIdx = i
			break
		}
	}
	if rootIdx < 0 {
		return fmt.Errorf("present frame %d: no root plane", rec.FrameID)
	}

	b := w.backend
	var errs []error
	// Planes under the root are placed downwards from it, the rest upwards.
	sibling := w.surface
	for i := rootIdx - 1; i >= 0; i-- {
		o, err := w.overlayFor(order[i])
		if err != nil {
			return err
		}
		errs = append(errs, o.apply(order[i]), b.send(o.sub, subsurfacePlaceBelow, sibling))
		sibling = o.surface
	}
	sibling = w.surface
	for _, p := range order[rootIdx+1:] {
		o, err := w.overlayFor(p)
		if err != nil {
			return err
		}
		errs = append(errs, o.apply(p), b.send(o.sub, subsurfacePlaceAbove, sibling))
		sibling = o.surface
	}
	for _, p := range order {
		if p.Role != subsurface.RoleRoot {
			errs = append(errs, b.send(p.SurfaceID, surfaceCommit))
		}
	}

	root := order[rootIdx].Config
	if !root.Damage.IsEmpty() {
		errs = append(errs, b.send(w.surface, surfaceDamageBuffer,
			int32(root.Damage.X), int32(root.Damage.Y), int32(root.Damage.Width), int32(root.Damage.Height)))
	}
	errs = append(errs, b.send(w.surface, surfaceCommit))
	return errors.Join(errs...)
}

func (w *Window) overlayFor(p subsurface.Plane) (*overlay, error) {
	o, ok := w.subs[p.SurfaceID]
	if !ok {
		return nil, fmt.Errorf("present: unknown surface %d", p.SurfaceID)
	}
	return o, nil
}

func (w *Window) destroy() {
	b := w.backend
	err := errors.Join(
		b.send(w.toplevel, toplevelDestroy),
		b.send(w.xdgSurface, xdgSurfaceDestroy),
		b.send(w.surface, surfaceDestroy),
	)
	if err != nil {
		b.logger.Warn("failed to destroy toplevel", "error", err)
	}
	b.forget(w)
}

// overlay is one wl_subsurface with its wl_surface.
type overlay struct {
	owner   *Window
	surface uint32
	sub     uint32
}

func (o *overlay) ID() uint32 { return o.surface }

// apply stages the plane's position and content. Hidden planes detach their
// buffer, which unmaps the subsurface on the next parent commit.
func (o *overlay) apply(p subsurface.Plane) error {
	b := o.owner.backend
	if p.Hidden {
		return b.send(o.surface, surfaceAttach, nil, int32(0), int32(0))
	}
	c := p.Config
	err := b.send(o.sub, subsurfaceSetPosition, int32(c.Bounds.X), int32(c.Bounds.Y))
	if !c.Damage.IsEmpty() {
		err = errors.Join(err, b.send(o.surface, surfaceDamageBuffer,
			int32(c.Damage.X), int32(c.Damage.Y), int32(c.Damage.Width), int32(c.Damage.Height)))
	}
	return err
}

func (o *overlay) Destroy() {
	w := o.owner
	w.mu.Lock()
	delete(w.subs, o.surface)
	w.mu.Unlock()
	err := errors.Join(
		w.backend.send(o.sub, subsurfaceDestroy),
		w.backend.send(o.surface, surfaceDestroy),
	)
	if err != nil {
		w.backend.logger.Warn("failed to destroy overlay", "surface", o.surface, "error", err)
	}
}

type rootSurface Window

func (r *rootSurface) ID() uint32 { return r.surface }
func (r *rootSurface) Destroy()   { (*Window)(r).destroy() }

var (
	_ platform.Window     = (*Window)(nil)
	_ subsurface.Surface = (*overlay)(nil)
)
