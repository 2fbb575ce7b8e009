package x11

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"

	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/platform"
	"github.com/1broseidon/winsync/internal/subsurface"
	"github.com/1broseidon/winsync/internal/windowstate"
)

var defaultSize = geometry.Size{Width: 800, Height: 600}

const toplevelEvents = xproto.EventMaskStructureNotify |
	xproto.EventMaskPropertyChange |
	xproto.EventMaskFocusChange |
	xproto.EventMaskVisibilityChange

// Window is a toplevel X window. Overlay surfaces are unmapped child windows
// restacked on every presented frame; the z==0 plane always gets its own
// child since children cannot be stacked below their parent.
type Window struct {
	backend *Backend
	events  platform.Events
	win     *xwindow.Window
	min     geometry.Size
	max     geometry.Size

	mu         sync.Mutex
	primary    *child
	children   map[uint32]*child
	configured geometry.Rect
	wmState    []string
	activated  bool
	entered    map[uint32]bool
	scale      float32
}

func newWindow(b *Backend, opts platform.WindowOptions, events platform.Events) (*Window, error) {
	xu := b.conn.XUtil
	bounds := opts.Bounds
	if bounds.IsEmpty() {
		bounds = bounds.WithSize(defaultSize)
	}

	win, err := xwindow.Generate(xu)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate window id: %w", err)
	}
	err = win.CreateChecked(b.conn.Root, bounds.X, bounds.Y, bounds.Width, bounds.Height,
		xproto.CwBackPixel|xproto.CwEventMask, 0, toplevelEvents)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	w := &Window{
		backend:    b,
		events:     events,
		win:        win,
		min:        opts.MinSize,
		max:        opts.MaxSize,
		children:   make(map[uint32]*child),
		configured: bounds,
		entered:    make(map[uint32]bool),
		scale:      1,
	}

	if err := w.SetTitle(opts.Title); err != nil {
		b.logger.Warn("failed to set window title", "error", err)
	}
	if err := icccm.WmProtocolsSet(xu, win.Id, []string{"WM_DELETE_WINDOW"}); err != nil {
		b.logger.Warn("failed to set WM_PROTOCOLS", "error", err)
	}
	if err := icccm.WmNormalHintsSet(xu, win.Id, normalHints(opts.MinSize, opts.MaxSize)); err != nil {
		b.logger.Warn("failed to set WM_NORMAL_HINTS", "error", err)
	}

	primary, err := w.newChild()
	if err != nil {
		win.Destroy()
		return nil, err
	}
	w.primary = primary

	xevent.ConfigureNotifyFun(w.onConfigureNotify).Connect(xu, win.Id)
	xevent.PropertyNotifyFun(w.onPropertyNotify).Connect(xu, win.Id)
	xevent.FocusInFun(w.onFocusIn).Connect(xu, win.Id)
	xevent.FocusOutFun(w.onFocusOut).Connect(xu, win.Id)
	xevent.VisibilityNotifyFun(w.onVisibilityNotify).Connect(xu, win.Id)
	xevent.UnmapNotifyFun(w.onUnmapNotify).Connect(xu, win.Id)
	xevent.ClientMessageFun(w.onClientMessage).Connect(xu, win.Id)

	win.Map()
	w.updateOutputs(bounds)
	return w, nil
}

func normalHints(minSize, maxSize geometry.Size) *icccm.NormalHints {
	hints := &icccm.NormalHints{}
	if !minSize.IsEmpty() {
		hints.Flags |= icccm.SizeHintPMinSize
		hints.MinWidth = uint(minSize.Width)
		hints.MinHeight = uint(minSize.Height)
	}
	if !maxSize.IsEmpty() {
		hints.Flags |= icccm.SizeHintPMaxSize
		hints.MaxWidth = uint(maxSize.Width)
		hints.MaxHeight = uint(maxSize.Height)
	}
	return hints
}

func (w *Window) onConfigureNotify(xu *xgbutil.XUtil, ev xevent.ConfigureNotifyEvent) {
	rect := geometry.Rect{Width: int(ev.Width), Height: int(ev.Height)}
	// Reparenting window managers report positions relative to the frame.
	if translate, err := xproto.TranslateCoordinates(xu.Conn(), w.win.Id, w.backend.conn.Root, 0, 0).Reply(); err == nil {
		rect.X = int(translate.DstX)
		rect.Y = int(translate.DstY)
	}

	w.mu.Lock()
	w.configured = rect
	w.mu.Unlock()

	w.updateOutputs(rect)
	w.emitConfigure()
}

func (w *Window) onPropertyNotify(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
	name, err := xprop.AtomName(xu, ev.Atom)
	if err != nil || name != "_NET_WM_STATE" {
		return
	}
	states, err := ewmh.WmStateGet(xu, w.win.Id)
	if err != nil {
		states = nil
	}
	w.mu.Lock()
	w.wmState = states
	w.mu.Unlock()
	w.emitConfigure()
}

func (w *Window) onFocusIn(_ *xgbutil.XUtil, _ xevent.FocusInEvent) {
	w.setActivated(true)
}

func (w *Window) onFocusOut(_ *xgbutil.XUtil, _ xevent.FocusOutEvent) {
	w.setActivated(false)
}

func (w *Window) setActivated(active bool) {
	w.mu.Lock()
	changed := w.activated != active
	w.activated = active
	w.mu.Unlock()
	if changed {
		w.emitConfigure()
	}
}

func (w *Window) onVisibilityNotify(_ *xgbutil.XUtil, ev xevent.VisibilityNotifyEvent) {
	w.events.OcclusionChanged(occlusionForVisibility(ev.State))
}

func (w *Window) onUnmapNotify(_ *xgbutil.XUtil, _ xevent.UnmapNotifyEvent) {
	w.events.OcclusionChanged(windowstate.Hidden)
}

func (w *Window) onClientMessage(xu *xgbutil.XUtil, ev xevent.ClientMessageEvent) {
	typeName, err := xprop.AtomName(xu, ev.Type)
	if err != nil || typeName != "WM_PROTOCOLS" {
		return
	}
	protocol, err := xprop.AtomName(xu, xproto.Atom(ev.Data.Data32[0]))
	if err == nil && protocol == "WM_DELETE_WINDOW" {
		w.events.CloseRequested()
	}
}

// emitConfigure reports the current X state as one configure sequence.
func (w *Window) emitConfigure() {
	w.mu.Lock()
	c := platform.ToplevelConfigure{
		Size:      geometry.ScaleToDIP(w.configured.Size(), w.scale),
		Kind:      kindFromWMState(w.wmState),
		Activated: w.activated,
	}
	w.mu.Unlock()

	w.events.ToplevelConfigure(c)
	w.events.SurfaceConfigure(w.backend.nextSerial())
}

// updateOutputs reports outputs the window started or stopped overlapping.
func (w *Window) updateOutputs(rect geometry.Rect) {
	outputs := w.backend.outputs.Outputs()
	now := overlappingOutputs(outputs, rect)

	w.mu.Lock()
	var entered, left []uint32
	for id := range now {
		if !w.entered[id] {
			entered = append(entered, id)
		}
	}
	for id := range w.entered {
		if !now[id] {
			left = append(left, id)
		}
	}
	w.entered = now
	w.scale = 1
	for _, o := range outputs {
		if now[o.ID] && o.Scale > w.scale {
			w.scale = o.Scale
		}
	}
	w.mu.Unlock()

	for _, id := range left {
		w.events.OutputLeft(id)
	}
	for _, id := range entered {
		w.events.OutputEntered(id)
	}
}

func (w *Window) refreshOutputs() {
	w.mu.Lock()
	rect := w.configured
	w.mu.Unlock()
	w.updateOutputs(rect)
	w.events.OutputsChanged()
}

// AckConfigure has no X11 equivalent; the configure is satisfied once the
// matching geometry has been sent.
func (w *Window) AckConfigure(serial int64) error {
	w.backend.logger.Debug("configure acknowledged", "window", w.win.Id, "serial", serial)
	return nil
}

// SetWindowGeometry resizes the window when the client picked a size other
// than the one the window manager configured.
func (w *Window) SetWindowGeometry(r geometry.Rect) error {
	w.mu.Lock()
	configured := w.configured
	size := geometry.ScaleToRoundedSize(r.Size(), w.scale)
	w.mu.Unlock()

	if size == configured.Size() {
		return nil
	}
	xu := w.backend.conn.XUtil
	// Prefer the EWMH request so the window manager keeps its bookkeeping.
	if err := ewmh.MoveresizeWindow(xu, w.win.Id, configured.X, configured.Y, size.Width, size.Height); err != nil {
		w.win.Resize(size.Width, size.Height)
	}
	return nil
}

func (w *Window) MinimumSize() geometry.Size { return w.min }
func (w *Window) MaximumSize() geometry.Size { return w.max }

// UpdateWindowMask publishes the opaque region for s.
func (w *Window) UpdateWindowMask(s windowstate.State) {
	region := []uint{0, 0, 0, 0}
	if s.IsFullscreenOrMaximized() {
		region = []uint{0, 0, uint(s.SizePx.Width), uint(s.SizePx.Height)}
	}
	if err := xprop.ChangeProp32(w.backend.conn.XUtil, w.win.Id, "_NET_WM_OPAQUE_REGION", "CARDINAL", region...); err != nil {
		w.backend.logger.Debug("failed to set opaque region", "error", err)
	}
}

func (w *Window) SetTitle(title string) error {
	xu := w.backend.conn.XUtil
	if err := ewmh.WmNameSet(xu, w.win.Id, title); err != nil {
		return err
	}
	return icccm.WmNameSet(xu, w.win.Id, title)
}

func (w *Window) Root() subsurface.Surface { return (*rootSurface)(w) }

func (w *Window) Primary() subsurface.Surface { return w.primary }

func (w *Window) CreateSubsurface() (subsurface.Surface, error) {
	c, err := w.newChild()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", subsurface.ErrStackExhausted, err)
	}
	return c, nil
}

func (w *Window) newChild() (*child, error) {
	win, err := xwindow.Generate(w.backend.conn.XUtil)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate child id: %w", err)
	}
	if err := win.CreateChecked(w.win.Id, 0, 0, 1, 1, xproto.CwBackPixel, 0); err != nil {
		return nil, fmt.Errorf("failed to create child window: %w", err)
	}
	c := &child{owner: w, win: win}
	w.mu.Lock()
	w.children[uint32(win.Id)] = c
	w.mu.Unlock()
	return c, nil
}

// Present moves, maps and restacks the child windows of rec bottom to top.
func (w *Window) Present(rec subsurface.FrameRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var stack []*xwindow.Window
	for _, p := range rec.PresentationOrder() {
		if p.Role == subsurface.RoleRoot {
			continue
		}
		c, ok := w.children[p.SurfaceID]
		if !ok {
			return fmt.Errorf("present frame %d: unknown surface %d", rec.FrameID, p.SurfaceID)
		}
		if p.Hidden || p.Config.Bounds.IsEmpty() {
			if c.mapped {
				c.win.Unmap()
				c.mapped = false
			}
			continue
		}
		b := p.Config.Bounds
		c.win.MoveResize(b.X, b.Y, b.Width, b.Height)
		if !c.mapped {
			c.win.Map()
			c.mapped = true
		}
		stack = append(stack, c.win)
	}
	restack(stack)
	return nil
}

// restack orders siblings bottom to top.
func restack(windows []*xwindow.Window) {
	if len(windows) < 2 {
		return
	}
	windows[0].StackSibling(windows[1].Id, xproto.StackModeBelow)
	for i := 2; i < len(windows); i++ {
		windows[i].StackSibling(windows[i-1].Id, xproto.StackModeAbove)
	}
}

func (w *Window) destroy() {
	xu := w.backend.conn.XUtil
	xevent.Detach(xu, w.win.Id)
	w.win.Destroy()
	w.backend.forget(w)
}

func kindFromWMState(states []string) windowstate.Kind {
	var maxH, maxV bool
	for _, s := range states {
		switch s {
		case "_NET_WM_STATE_FULLSCREEN":
			return windowstate.Fullscreen
		case "_NET_WM_STATE_HIDDEN":
			return windowstate.Minimized
		case "_NET_WM_STATE_MAXIMIZED_HORZ":
			maxH = true
		case "_NET_WM_STATE_MAXIMIZED_VERT":
			maxV = true
		}
	}
	if maxH && maxV {
		return windowstate.Maximized
	}
	return windowstate.Normal
}

func occlusionForVisibility(state byte) windowstate.Occlusion {
	if state == xproto.VisibilityFullyObscured {
		return windowstate.Occluded
	}
	return windowstate.Visible
}

type child struct {
	owner  *Window
	win    *xwindow.Window
	mapped bool
}

func (c *child) ID() uint32 { return uint32(c.win.Id) }

func (c *child) Destroy() {
	c.owner.mu.Lock()
	delete(c.owner.children, uint32(c.win.Id))
	c.owner.mu.Unlock()
	c.win.Destroy()
}

// rootSurface is the toplevel seen as a surface; destroying it destroys the
// window.
type rootSurface Window

func (r *rootSurface) ID() uint32 { return uint32(r.win.Id) }
func (r *rootSurface) Destroy()   { (*Window)(r).destroy() }

var (
	_ platform.Window     = (*Window)(nil)
	_ subsurface.Surface = (*child)(nil)
)
