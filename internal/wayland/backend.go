// Package wayland implements the window system backend for Wayland
// compositors using xdg-shell toplevels and wl_subsurface overlays.
package wayland

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bnema/wlturbo"

	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/platform"
)

// Request and event opcodes used by the backend.
const (
	compositorCreateSurface = 0
	compositorCreateRegion  = 1

	subcompositorGetSubsurface = 1

	surfaceDestroy         = 0
	surfaceAttach          = 1
	surfaceSetOpaqueRegion = 4
	surfaceCommit          = 6
	surfaceDamageBuffer    = 9
	surfaceEventEnter      = 0
	surfaceEventLeave      = 1

	subsurfaceDestroy     = 0
	subsurfaceSetPosition = 1
	subsurfacePlaceAbove  = 2
	subsurfacePlaceBelow  = 3

	regionDestroy = 0
	regionAdd     = 1

	wmBaseGetXdgSurface = 2
	wmBasePong          = 3
	wmBaseEventPing     = 0

	xdgSurfaceDestroy           = 0
	xdgSurfaceGetToplevel       = 1
	xdgSurfaceSetWindowGeometry = 3
	xdgSurfaceAckConfigure      = 4
	xdgSurfaceEventConfigure    = 0

	toplevelDestroy        = 0
	toplevelSetTitle       = 2
	toplevelSetMaxSize     = 7
	toplevelSetMinSize     = 8
	toplevelEventConfigure = 0
	toplevelEventClose     = 1

	outputEventGeometry = 0
	outputEventMode     = 1
	outputEventDone     = 2
	outputEventScale    = 3
	outputEventName     = 4

	outputModeCurrent = 0x1
)

// ErrMissingGlobal is returned when the compositor lacks a required global.
var ErrMissingGlobal = errors.New("wayland: compositor does not advertise a required global")

// Backend implements platform.Backend on a Wayland compositor.
type Backend struct {
	display *wlturbo.Display
	logger  *slog.Logger

	compositor    uint32
	subcompositor uint32
	wmBase        uint32

	mu        sync.RWMutex
	outputs   map[uint32]*outputState
	order     []uint32
	windows   map[uint32]*Window
	closeOnce sync.Once
}

type outputState struct {
	current output.Output
	next    output.Output
}

// Open connects to the compositor at socket, or $WAYLAND_DISPLAY when empty,
// and binds the globals the backend needs.
func Open(socket string, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	display, err := wlturbo.Connect(socket)
	if err != nil {
		return nil, err
	}
	b := &Backend{
		display: display,
		logger:  logger.With("backend", "wayland"),
		outputs: make(map[uint32]*outputState),
		windows: make(map[uint32]*Window),
	}

	registry := display.Registry()
	registry.AddHandler("wl_compositor", func(r *wlturbo.Registry, name, version uint32) {
		b.compositor = b.bind(r, name, "wl_compositor", min(version, 4))
	})
	registry.AddHandler("wl_subcompositor", func(r *wlturbo.Registry, name, version uint32) {
		b.subcompositor = b.bind(r, name, "wl_subcompositor", 1)
	})
	registry.AddHandler("xdg_wm_base", func(r *wlturbo.Registry, name, version uint32) {
		b.wmBase = b.bind(r, name, "xdg_wm_base", min(version, 2))
		if b.wmBase != 0 {
			display.AddListener(b.wmBase, wmBaseEventPing, b.onPing)
		}
	})
	registry.AddHandler("wl_output", func(r *wlturbo.Registry, name, version uint32) {
		if id := b.bind(r, name, "wl_output", min(version, 4)); id != 0 {
			b.addOutput(id)
		}
	})

	// The first roundtrip announces globals, the second delivers the
	// initial output events.
	for range 2 {
		if err := display.Roundtrip(); err != nil {
			display.Close()
			return nil, fmt.Errorf("initial roundtrip failed: %w", err)
		}
	}

	for iface, id := range map[string]uint32{
		"wl_compositor":    b.compositor,
		"wl_subcompositor": b.subcompositor,
		"xdg_wm_base":      b.wmBase,
	} {
		if id == 0 {
			display.Close()
			return nil, fmt.Errorf("%w: %s", ErrMissingGlobal, iface)
		}
	}
	return b, nil
}

func (b *Backend) bind(r *wlturbo.Registry, name uint32, iface string, version uint32) uint32 {
	id, err := r.BindID(name, iface, version)
	if err != nil {
		b.logger.Error("failed to bind global", "interface", iface, "error", err)
		return 0
	}
	return id
}

func (b *Backend) Name() string { return "wayland" }

func (b *Backend) onPing(body []byte) {
	r := reader{data: body}
	serial := r.uint32()
	if r.err != nil {
		return
	}
	if err := b.display.SendRequest(b.wmBase, wmBasePong, serial); err != nil {
		b.logger.Error("failed to answer ping", "error", err)
	}
}

func (b *Backend) addOutput(id uint32) {
	b.mu.Lock()
	b.outputs[id] = &outputState{
		next: output.Output{ID: id, Name: fmt.Sprintf("wl_output-%d", id), Scale: 1},
	}
	b.order = append(b.order, id)
	b.mu.Unlock()

	b.display.AddListener(id, outputEventGeometry, func(body []byte) {
		r := reader{data: body}
		x, y := r.int32(), r.int32()
		if r.err == nil {
			b.updateOutput(id, func(o *output.Output) { o.Bounds.X, o.Bounds.Y = int(x), int(y) })
		}
	})
	b.display.AddListener(id, outputEventMode, func(body []byte) {
		r := reader{data: body}
		flags, w, h := r.uint32(), r.int32(), r.int32()
		if r.err == nil && flags&outputModeCurrent != 0 {
			b.updateOutput(id, func(o *output.Output) { o.Bounds.Width, o.Bounds.Height = int(w), int(h) })
		}
	})
	b.display.AddListener(id, outputEventScale, func(body []byte) {
		r := reader{data: body}
		scale := r.int32()
		if r.err == nil && scale > 0 {
			b.updateOutput(id, func(o *output.Output) { o.Scale = float32(scale) })
		}
	})
	b.display.AddListener(id, outputEventName, func(body []byte) {
		r := reader{data: body}
		name := r.string()
		if r.err == nil && name != "" {
			b.updateOutput(id, func(o *output.Output) { o.Name = name })
		}
	})
	b.display.AddListener(id, outputEventDone, func([]byte) { b.commitOutput(id) })
}

func (b *Backend) updateOutput(id uint32, fn func(*output.Output)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.outputs[id]; ok {
		fn(&st.next)
	}
}

// commitOutput applies the properties batched since the last done event.
// Bounds are reported in logical coordinates.
func (b *Backend) commitOutput(id uint32) {
	b.mu.Lock()
	st, ok := b.outputs[id]
	if !ok {
		b.mu.Unlock()
		return
	}
	next := st.next
	next.Bounds = next.Bounds.WithSize(geometry.ScaleToDIP(next.Bounds.Size(), next.Scale))
	changed := st.current != next
	st.current = next
	windows := make([]*Window, 0, len(b.windows))
	for _, w := range b.windows {
		windows = append(windows, w)
	}
	b.mu.Unlock()

	if !changed {
		return
	}
	b.logger.Debug("output updated", "id", id, "name", next.Name, "bounds", next.Bounds.String(), "scale", next.Scale)
	for _, w := range windows {
		w.events.OutputsChanged()
	}
}

func (b *Backend) Outputs() output.Registry { return registry{b} }

// registry exposes the outputs whose properties are complete.
type registry struct{ b *Backend }

func (r registry) Outputs() []output.Output { return r.b.outputList() }

func (r registry) Primary() (output.Output, bool) {
	outputs := r.b.outputList()
	if len(outputs) == 0 {
		return output.Output{}, false
	}
	return outputs[0], true
}

func (b *Backend) outputList() []output.Output {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]output.Output, 0, len(b.order))
	for _, id := range b.order {
		if st := b.outputs[id]; st.current.ID != 0 {
			out = append(out, st.current)
		}
	}
	return out
}

func (b *Backend) CreateWindow(opts platform.WindowOptions, events platform.Events) (platform.Window, error) {
	w, err := newWindow(b, opts, events)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.windows[w.surface] = w
	b.mu.Unlock()
	return w, nil
}

func (b *Backend) forget(w *Window) {
	b.mu.Lock()
	delete(b.windows, w.surface)
	b.mu.Unlock()
}

func (b *Backend) send(id uint32, opcode uint16, args ...interface{}) error {
	if err := b.display.SendRequest(id, opcode, args...); err != nil {
		return fmt.Errorf("request %d on object %d: %w", opcode, id, err)
	}
	return nil
}

func (b *Backend) newSurface() (uint32, error) {
	id := b.display.AllocateID()
	if err := b.send(b.compositor, compositorCreateSurface, id); err != nil {
		return 0, err
	}
	return id, nil
}

// Run dispatches compositor events until ctx is cancelled or the connection
// fails.
func (b *Backend) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		for {
			if err := b.display.Dispatch(); err != nil {
				errc <- err
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		b.Close()
		<-errc
		return ctx.Err()
	case err := <-errc:
		return fmt.Errorf("wayland dispatch: %w", err)
	}
}

func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.display.Close()
	})
	return err
}

var (
	_ platform.Backend = (*Backend)(nil)
	_ output.Registry  = registry{}
)
