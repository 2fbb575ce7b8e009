package daemon

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/winsync/internal/config"
	"github.com/1broseidon/winsync/internal/configure"
	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/ipc"
	"github.com/1broseidon/winsync/internal/platform"
	"github.com/1broseidon/winsync/internal/renderer"
	"github.com/1broseidon/winsync/internal/sequence"
	"github.com/1broseidon/winsync/internal/subsurface"
	"github.com/1broseidon/winsync/internal/trace"
	"github.com/1broseidon/winsync/internal/window"
	"github.com/1broseidon/winsync/internal/windowstate"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	Runner   sequence.Runner
	Backend  platform.Backend
	Window   config.WindowConfig
	Engine   config.EngineConfig
	Renderer config.RendererConfig
	// Journal is optional.
	Journal *trace.Journal
	Logger  *slog.Logger
}

// Session drives one toplevel. Native events feed its configure machine and
// produced frames reach the backend through the overlay coordinator. All
// methods run on the session's runner.
type Session struct {
	runner   sequence.Runner
	backend  platform.Backend
	native   platform.Window
	arena    *window.Arena
	handle   window.Handle
	machine  *configure.Machine
	overlays *subsurface.Coordinator
	renderer *renderer.Renderer
	journal  *trace.Journal
	logger   *slog.Logger

	insets    geometry.Insets
	activated bool
	frames    int

	closed    chan struct{}
	closeOnce sync.Once
}

// NewSession creates the native window and the engine around it. It must be
// called on opts.Runner.
func NewSession(opts SessionOptions) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		runner:  opts.Runner,
		backend: opts.Backend,
		journal: opts.Journal,
		logger:  logger,
		insets:  opts.Window.FrameInsets,
		closed:  make(chan struct{}),
	}

	interval := time.Duration(opts.Renderer.FrameIntervalMS) * time.Millisecond
	s.renderer = renderer.New(opts.Runner, s, interval, overlayPlanes(opts.Renderer.Overlays), logger.With("component", "renderer"))

	native, err := opts.Backend.CreateWindow(platform.WindowOptions{
		Title:             opts.Window.Title,
		Bounds:            opts.Window.Bounds,
		MinSize:           opts.Window.MinSize,
		MaxSize:           opts.Window.MaxSize,
		PrimarySubsurface: opts.Engine.PrimarySubsurface,
	}, platform.Posting(opts.Runner, s))
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}
	s.native = native

	var observer configure.Observer
	if opts.Journal != nil {
		observer = opts.Journal
	}
	initial := windowstate.Default()
	initial.BoundsDIP = opts.Window.Bounds
	s.machine = configure.NewMachine(configure.Options{
		Runner:              opts.Runner,
		Transport:           native,
		Producer:            s.renderer,
		Constraints:         native,
		Insets:              s,
		Mask:                native,
		Observer:            observer,
		Logger:              logger.With("component", "configure"),
		MaxOutstanding:      opts.Engine.MaxOutstandingRequests,
		EmptyBoundsFallback: opts.Engine.EmptyBoundsFallback,
		Initial:             initial,
	})
	s.overlays = subsurface.NewCoordinator(native.Root(), native.Primary(), subsurface.NewStack(native), s, logger)

	s.arena = window.NewArena(opts.Runner, opts.Backend.Outputs(), logger)
	s.handle, err = s.arena.Add(window.Params{
		Kind:     window.Toplevel,
		Title:    opts.Window.Title,
		Root:     native.Root(),
		Primary:  native.Primary(),
		Machine:  s.machine,
		Overlays: s.overlays,
	})
	if err != nil {
		native.Root().Destroy()
		return nil, err
	}

	logger.Info("window created",
		"title", opts.Window.Title,
		"bounds", opts.Window.Bounds.String(),
		"primary_subsurface", native.Primary() != nil,
	)
	return s, nil
}

func overlayPlanes(configured []config.OverlayConfig) []subsurface.OverlayConfig {
	planes := make([]subsurface.OverlayConfig, 0, len(configured))
	for _, o := range configured {
		planes = append(planes, subsurface.OverlayConfig{
			ZOrder: o.ZOrder,
			Bounds: o.Bounds,
			Opaque: o.Opaque,
		})
	}
	return planes
}

// Machine returns the window's configure machine.
func (s *Session) Machine() *configure.Machine { return s.machine }

// Renderer returns the frame producer.
func (s *Session) Renderer() *renderer.Renderer { return s.renderer }

// Native returns the backend window.
func (s *Session) Native() platform.Window { return s.native }

// Closed is closed when the window system asks the window to close.
func (s *Session) Closed() <-chan struct{} { return s.closed }

func (s *Session) alive() bool { return s.handle != 0 }

// Close destroys the window and its surfaces.
func (s *Session) Close() {
	if !s.alive() {
		return
	}
	if err := s.arena.Remove(s.handle); err != nil {
		s.logger.Warn("failed to remove window", "error", err)
	}
	s.handle = 0
	s.logger.Info("window destroyed", "frames_presented", s.frames)
}

// FrameInsets implements configure.InsetsProvider. Fullscreen and maximized
// windows draw no client-side frame.
func (s *Session) FrameInsets(st windowstate.State) geometry.Insets {
	if st.IsFullscreenOrMaximized() {
		return geometry.Insets{}
	}
	return s.insets
}

// Present forwards a frame to the backend and records it.
func (s *Session) Present(rec subsurface.FrameRecord) error {
	if err := s.native.Present(rec); err != nil {
		return err
	}
	s.frames++
	if s.journal != nil {
		s.journal.OnFrame(rec)
	}
	return nil
}

// FrameProduced implements renderer.Sink.
func (s *Session) FrameProduced(frameID uint32, meta subsurface.FrameMetadata, overlays []subsurface.OverlayConfig) {
	if !s.alive() {
		return
	}
	if err := s.overlays.CommitOverlays(frameID, meta, overlays); err != nil {
		s.logger.Warn("failed to commit frame", "frame", frameID, "viz_seq", meta.VizSeq, "error", err)
	}
	s.machine.ProcessSequencePoint(meta.VizSeq)
}

// ProducerLost implements renderer.Sink.
func (s *Session) ProducerLost() {
	if !s.alive() {
		return
	}
	if s.journal != nil {
		s.journal.OnProducerLost()
	}
	s.machine.OnProducerLost()
}

// ToplevelConfigure implements platform.Events.
func (s *Session) ToplevelConfigure(c platform.ToplevelConfigure) {
	if !s.alive() {
		return
	}
	p := s.machine.Pending()
	p.SetKind(c.Kind)
	p.SetTiled(c.Tiled)
	p.SetSuspended(c.Suspended)
	// Keep the origin; the compositor only dictates size. A zero size leaves
	// the choice to us and must not reach the accumulator.
	if !c.Size.IsEmpty() {
		p.SetBounds(s.machine.LatestRequested().BoundsDIP.WithSize(c.Size))
	}
	s.activated = c.Activated
}

// SurfaceConfigure implements platform.Events.
func (s *Session) SurfaceConfigure(serial int64) {
	if !s.alive() {
		return
	}
	s.machine.ProcessPendingConfigure(serial)
}

// OcclusionChanged implements platform.Events.
func (s *Session) OcclusionChanged(o windowstate.Occlusion) {
	if !s.alive() {
		return
	}
	st := s.machine.LatestRequested()
	if st.Occlusion == o {
		return
	}
	st.Occlusion = o
	s.machine.RequestStateFromServer(st, configure.NoSerial)
}

// OutputEntered implements platform.Events.
func (s *Session) OutputEntered(id uint32) {
	if !s.alive() {
		return
	}
	s.arena.EnterOutput(s.handle, id)
	s.rescale()
}

// OutputLeft implements platform.Events.
func (s *Session) OutputLeft(id uint32) {
	if !s.alive() {
		return
	}
	s.arena.LeaveOutput(s.handle, id)
	s.rescale()
}

// OutputsChanged implements platform.Events.
func (s *Session) OutputsChanged() {
	if !s.alive() {
		return
	}
	s.rescale()
}

// CloseRequested implements platform.Events.
func (s *Session) CloseRequested() {
	s.logger.Info("close requested")
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *Session) rescale() {
	scale, err := s.arena.PreferredScale(s.handle)
	if err != nil {
		s.logger.Warn("failed to resolve window scale", "error", err)
		return
	}
	st := s.machine.LatestRequested()
	if scale <= 0 || scale == st.WindowScale {
		return
	}
	s.logger.Info("window scale changed", "from", st.WindowScale, "to", scale)
	st.WindowScale = scale
	s.machine.RequestStateFromClient(st)
}

// RequestBounds asks for new window bounds in DIP.
func (s *Session) RequestBounds(bounds geometry.Rect) {
	st := s.machine.LatestRequested()
	st.BoundsDIP = bounds
	s.machine.RequestStateFromClient(st)
}

// SetKind switches the window state from the client side.
func (s *Session) SetKind(kind windowstate.Kind) error {
	switch kind {
	case windowstate.Normal, windowstate.Minimized, windowstate.Maximized, windowstate.Fullscreen, windowstate.Tiled:
	default:
		return fmt.Errorf("cannot switch to window state %v", kind)
	}
	st := s.machine.LatestRequested()
	st.Kind = kind
	if kind != windowstate.Tiled {
		st.Tiled = 0
	}
	s.machine.RequestStateFromClient(st)
	return nil
}

// SimulateConfigure injects a compositor configure when the backend supports
// it.
func (s *Session) SimulateConfigure(c platform.ToplevelConfigure) (int64, error) {
	sim, ok := s.native.(platform.ConfigureSimulator)
	if !ok {
		return 0, fmt.Errorf("%s backend cannot simulate configures", s.backend.Name())
	}
	return sim.SimulateConfigure(c), nil
}

// SetTitle renames the window.
func (s *Session) SetTitle(title string) error {
	if err := s.native.SetTitle(title); err != nil {
		return err
	}
	if w, ok := s.arena.Get(s.handle); ok {
		w.Title = title
	}
	return nil
}

// SetFrameInsets replaces the client-side frame insets. They take effect
// with the next applied state.
func (s *Session) SetFrameInsets(in geometry.Insets) { s.insets = in }

func (s *Session) status() ipc.StatusData {
	st := ipc.StatusData{
		Applied:         s.machine.Applied(),
		Latched:         s.machine.Latched(),
		Requests:        s.machine.Requests(),
		Outstanding:     s.machine.Outstanding(),
		MaxOutstanding:  s.machine.MaxOutstanding(),
		LastAckedSerial: s.machine.LastAckedSerial(),
		ProducedSeq:     s.renderer.Produced(),
		FramesPresented: s.frames,
		OverlaySurfaces: s.overlays.Stack().Size(),
		Activated:       s.activated,
	}
	if w, ok := s.arena.Get(s.handle); ok {
		st.Title = w.Title
		if w.Outputs != nil {
			st.EnteredOutputs = w.Outputs.Entered()
		}
	}
	if scale, err := s.arena.PreferredScale(s.handle); err == nil {
		st.PreferredScale = scale
	}
	return st
}
