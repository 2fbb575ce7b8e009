package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/subsurface"
	"github.com/1broseidon/winsync/internal/windowstate"
)

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("platform: backend closed")

// Headless is an in-memory backend with no window system. Configures are
// injected through SimulateConfigure and every protocol request is recorded.
type Headless struct {
	outputs output.StaticRegistry
	logger  *slog.Logger

	mu      sync.Mutex
	serial  int64
	nextID  uint32
	windows []*HeadlessWindow
	closed  bool
	done    chan struct{}
}

// NewHeadless creates a headless backend exposing outputs.
func NewHeadless(outputs []output.Output, logger *slog.Logger) *Headless {
	if logger == nil {
		logger = slog.Default()
	}
	return &Headless{
		outputs: output.StaticRegistry(outputs),
		logger:  logger,
		done:    make(chan struct{}),
	}
}

func (h *Headless) Name() string { return "headless" }

func (h *Headless) Outputs() output.Registry { return h.outputs }

// CreateWindow creates a window. The primary output is entered immediately.
func (h *Headless) CreateWindow(opts WindowOptions, events Events) (Window, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	w := &HeadlessWindow{
		backend: h,
		events:  events,
		title:   opts.Title,
		min:     opts.MinSize,
		max:     opts.MaxSize,
	}
	w.root = h.newSurfaceLocked()
	if opts.PrimarySubsurface {
		w.primary = h.newSurfaceLocked()
	}
	h.windows = append(h.windows, w)
	h.mu.Unlock()

	h.logger.Debug("headless window created", "title", opts.Title, "root", w.root.id)
	if primary, ok := h.outputs.Primary(); ok {
		events.OutputEntered(primary.ID)
	}
	return w, nil
}

func (h *Headless) newSurfaceLocked() *headlessSurface {
	h.nextID++
	return &headlessSurface{id: h.nextID}
}

func (h *Headless) nextSerial() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.serial++
	return h.serial
}

// Run blocks until ctx is cancelled or the backend is closed.
func (h *Headless) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return nil
	}
}

func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	close(h.done)
	return nil
}

// HeadlessWindow records the requests the engine sends.
type HeadlessWindow struct {
	backend *Headless
	events  Events
	root    *headlessSurface
	primary *headlessSurface

	mu       sync.Mutex
	title    string
	min, max geometry.Size
	acks     []int64
	geometry []geometry.Rect
	frames   []subsurface.FrameRecord
	masks    int
}

// SimulateConfigure delivers a toplevel configure followed by its surface
// configure and returns the serial used.
func (w *HeadlessWindow) SimulateConfigure(c ToplevelConfigure) int64 {
	serial := w.backend.nextSerial()
	w.events.ToplevelConfigure(c)
	w.events.SurfaceConfigure(serial)
	return serial
}

func (w *HeadlessWindow) AckConfigure(serial int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.acks = append(w.acks, serial)
	return nil
}

func (w *HeadlessWindow) SetWindowGeometry(r geometry.Rect) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.geometry = append(w.geometry, r)
	return nil
}

func (w *HeadlessWindow) MinimumSize() geometry.Size { return w.min }
func (w *HeadlessWindow) MaximumSize() geometry.Size { return w.max }

func (w *HeadlessWindow) UpdateWindowMask(windowstate.State) {
	w.mu.Lock()
	w.masks++
	w.mu.Unlock()
}

func (w *HeadlessWindow) CreateSubsurface() (subsurface.Surface, error) {
	w.backend.mu.Lock()
	defer w.backend.mu.Unlock()
	if w.backend.closed {
		return nil, fmt.Errorf("%w: %w", subsurface.ErrStackExhausted, ErrClosed)
	}
	return w.backend.newSurfaceLocked(), nil
}

func (w *HeadlessWindow) Present(rec subsurface.FrameRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = append(w.frames, rec)
	return nil
}

func (w *HeadlessWindow) Root() subsurface.Surface { return w.root }

func (w *HeadlessWindow) Primary() subsurface.Surface {
	if w.primary == nil {
		return nil
	}
	return w.primary
}

func (w *HeadlessWindow) SetTitle(title string) error {
	w.mu.Lock()
	w.title = title
	w.mu.Unlock()
	return nil
}

// Title returns the current window title.
func (w *HeadlessWindow) Title() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.title
}

// Acks returns every acknowledged serial in order.
func (w *HeadlessWindow) Acks() []int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]int64(nil), w.acks...)
}

// Geometries returns every window geometry sent in order.
func (w *HeadlessWindow) Geometries() []geometry.Rect {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]geometry.Rect(nil), w.geometry...)
}

// Frames returns every presented frame in order.
func (w *HeadlessWindow) Frames() []subsurface.FrameRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]subsurface.FrameRecord(nil), w.frames...)
}

type headlessSurface struct {
	id        uint32
	destroyed bool
}

func (s *headlessSurface) ID() uint32 { return s.id }
func (s *headlessSurface) Destroy()   { s.destroyed = true }

var (
	_ Backend            = (*Headless)(nil)
	_ Window             = (*HeadlessWindow)(nil)
	_ ConfigureSimulator = (*HeadlessWindow)(nil)
)
