// Package configure negotiates window state with the compositor. Requests
// from the compositor and from the client flow through one queue and move
// through Requested, Applied, Produced and Latched in FIFO order; latching
// sends the window geometry and acknowledges the configure serial.
package configure

import (
	"log/slog"
	"math"

	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/invariant"
	"github.com/1broseidon/winsync/internal/sequence"
	"github.com/1broseidon/winsync/internal/windowstate"
)

const (
	// SeqProducerLost tells ProcessSequencePoint that the frame producer went
	// away; every applied request latches.
	SeqProducerLost int64 = -1
	// SeqNoFrame latches only applied requests that need no frame.
	SeqNoFrame int64 = math.MinInt64
)

// Transport carries the compositor-facing side of the protocol.
type Transport interface {
	AckConfigure(serial int64) error
	SetWindowGeometry(r geometry.Rect) error
}

// FrameProducer renders applied states. ApplyState returns the sequence
// number of the frame that will show next, or NoFrame when none is needed.
type FrameProducer interface {
	ApplyState(prev, next windowstate.State) int64
}

// Constraints supplies size limits. A zero dimension means unbounded.
type Constraints interface {
	MinimumSize() geometry.Size
	MaximumSize() geometry.Size
}

// InsetsProvider returns client-side decoration insets for a state.
type InsetsProvider interface {
	FrameInsets(s windowstate.State) geometry.Insets
}

// MaskUpdater is told when the latched state changes so it can recompute
// the window's input and opaque regions.
type MaskUpdater interface {
	UpdateWindowMask(s windowstate.State)
}

// Observer receives lifecycle notifications. Methods run on the machine's
// runner.
type Observer interface {
	OnRequestQueued(req Request)
	OnApplied(req Request)
	OnLatched(req Request)
	OnGeometry(r geometry.Rect)
	OnAcked(serial int64)
}

// Options configures a Machine. Runner, Transport and Producer are required.
type Options struct {
	Runner      sequence.Runner
	Transport   Transport
	Producer    FrameProducer
	Constraints Constraints
	Insets      InsetsProvider
	Mask        MaskUpdater
	Observer    Observer
	Logger      *slog.Logger

	// MaxOutstanding bounds applied-but-unlatched requests for non-forced
	// requests. Zero selects DefaultMaxOutstanding.
	MaxOutstanding int
	// EmptyBoundsFallback is used when a minimized window is configured with
	// empty bounds and no earlier non-empty bounds are known. Zero selects 1x1.
	EmptyBoundsFallback geometry.Size
	// Initial is both the applied and latched state at construction.
	Initial windowstate.State
}

// Machine is the configure state machine of one window. It must only be used
// from its runner.
type Machine struct {
	runner      sequence.Runner
	transport   Transport
	producer    FrameProducer
	constraints Constraints
	insets      InsetsProvider
	mask        MaskUpdater
	observer    Observer
	logger      *slog.Logger

	maxOutstanding int
	emptyFallback  geometry.Size

	queue   Queue
	pending windowstate.PendingConfigure
	applied windowstate.State
	latched windowstate.State

	lastNonEmptyBounds geometry.Rect
	lastAckedSerial    int64
	lastGeometry       geometry.Rect
	lastInsets         geometry.Insets
	geometrySent       bool

	depth    int
	deferred []func()
}

// NewMachine creates a machine. It must be called on opts.Runner.
func NewMachine(opts Options) *Machine {
	invariant.Check(opts.Runner != nil, "configure machine created without a runner")
	if opts.Runner == nil {
		opts.Runner = &sequence.Manual{}
	}
	invariant.Check(opts.Runner.RunsTasksInCurrentSequence(), "configure machine created off its runner")

	m := &Machine{
		runner:          opts.Runner,
		transport:       opts.Transport,
		producer:        opts.Producer,
		constraints:     opts.Constraints,
		insets:          opts.Insets,
		mask:            opts.Mask,
		observer:        opts.Observer,
		logger:          opts.Logger,
		maxOutstanding:  opts.MaxOutstanding,
		emptyFallback:   opts.EmptyBoundsFallback,
		lastAckedSerial: NoSerial,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.observer == nil {
		m.observer = nopObserver{}
	}
	if m.maxOutstanding <= 0 {
		m.maxOutstanding = DefaultMaxOutstanding
	}
	if m.emptyFallback.IsEmpty() {
		m.emptyFallback = geometry.Size{Width: 1, Height: 1}
	}

	initial := opts.Initial
	initial.BoundsDIP = m.clampBounds(initial.BoundsDIP)
	initial.SizePx = geometry.ScaleToRoundedSize(initial.BoundsDIP.Size(), initial.WindowScale)
	m.applied = initial
	m.latched = initial
	if !initial.BoundsDIP.IsEmpty() {
		m.lastNonEmptyBounds = initial.BoundsDIP
	}
	return m
}

// Pending exposes the configure accumulator. Backends record compositor
// hints here and finish with ProcessPendingConfigure.
func (m *Machine) Pending() *windowstate.PendingConfigure {
	return &m.pending
}

// Applied returns the state most recently handed to the producer.
func (m *Machine) Applied() windowstate.State { return m.applied }

// Latched returns the state most recently confirmed to the compositor.
func (m *Machine) Latched() windowstate.State { return m.latched }

// LatestRequested returns the queue tail, or the applied state when idle.
func (m *Machine) LatestRequested() windowstate.State {
	if tail := m.queue.Tail(); tail != nil {
		return tail.State
	}
	return m.applied
}

// Requests returns a copy of the in-flight queue, oldest first.
func (m *Machine) Requests() []Request { return m.queue.Snapshot() }

// Outstanding returns the number of applied requests waiting to latch.
func (m *Machine) Outstanding() int { return m.queue.Outstanding() }

// MaxOutstanding returns the backpressure limit.
func (m *Machine) MaxOutstanding() int { return m.maxOutstanding }

// LastAckedSerial returns the newest acknowledged serial, or NoSerial.
func (m *Machine) LastAckedSerial() int64 { return m.lastAckedSerial }

// ProcessPendingConfigure finalises the accumulated configure for serial.
func (m *Machine) ProcessPendingConfigure(serial int64) {
	m.checkSequence()
	if m.depth > 0 {
		// Snapshot the accumulator now; later hints belong to the next serial.
		pending := m.pending
		m.pending.Reset()
		m.buffer(func() {
			m.pending = pending
			m.processPendingConfigure(serial)
		})
		return
	}
	m.processPendingConfigure(serial)
}

func (m *Machine) processPendingConfigure(serial int64) {
	state := m.pending.Apply(m.LatestRequested())
	m.pending.Reset()

	if state.BoundsDIP.IsEmpty() && state.Kind == windowstate.Minimized && m.queue.Len() == 0 {
		if !m.lastNonEmptyBounds.IsEmpty() {
			state.BoundsDIP = m.lastNonEmptyBounds
		} else {
			state.BoundsDIP = state.BoundsDIP.WithSize(m.emptyFallback)
		}
		m.logger.Debug("substituted bounds for empty minimized configure",
			"serial", serial,
			"bounds", state.BoundsDIP.String(),
		)
	}

	m.RequestStateFromServer(state, serial)

	// A configure that changes nothing latches synchronously; make sure its
	// serial is still acknowledged.
	if m.queue.Len() == 0 && m.applied == m.latched && serial > m.lastAckedSerial {
		m.updateGeometry(m.latched, true)
		m.ack(serial)
	}
}

// RequestStateFromServer queues a compositor-originated state. Occlusion
// changes bypass backpressure.
func (m *Machine) RequestStateFromServer(state windowstate.State, serial int64) {
	m.RequestState(state, serial, state.Occlusion != m.applied.Occlusion)
}

// RequestStateFromClient queues a client-originated state. It is always
// applied immediately.
func (m *Machine) RequestStateFromClient(state windowstate.State) {
	m.RequestState(state, NoSerial, true)
}

// RequestState queues state and applies it when backpressure allows or when
// force is set. Calls made while a request is being applied run after the
// outermost application finishes, in call order.
func (m *Machine) RequestState(state windowstate.State, serial int64, force bool) {
	m.checkSequence()
	if m.depth > 0 {
		m.buffer(func() { m.requestState(state, serial, force) })
		return
	}
	m.requestState(state, serial, force)
}

func (m *Machine) requestState(state windowstate.State, serial int64, force bool) {
	state.BoundsDIP = m.clampBounds(state.BoundsDIP)
	state.SizePx = geometry.ScaleToRoundedSize(state.BoundsDIP.Size(), state.WindowScale)

	req := m.queue.Push(state, serial)
	m.observer.OnRequestQueued(req)
	m.logger.Debug("state requested",
		"serial", req.Serial,
		"force", force,
		"state", state.String(),
		"queued", m.queue.Len(),
	)

	m.maybeApplyLatestStateRequest(force)
}

func (m *Machine) maybeApplyLatestStateRequest(force bool) {
	tail := m.queue.Tail()
	if tail == nil || tail.Applied {
		return
	}
	if !force && m.queue.Outstanding() >= m.maxOutstanding {
		m.logger.Debug("request deferred by backpressure",
			"serial", tail.Serial,
			"outstanding", m.queue.Outstanding(),
		)
		return
	}

	defer m.enterApply().release()

	tail.Applied = true
	old := m.applied
	m.applied = tail.State
	tail.VizSeq = NoFrame
	if old != m.applied {
		tail.VizSeq = m.producer.ApplyState(old, m.applied)
	}
	m.observer.OnApplied(*tail)
	m.logger.Debug("state applied", "serial", tail.Serial, "viz_seq", tail.VizSeq)

	m.processSequencePoint(SeqNoFrame)
}

// ProcessSequencePoint latches every leading request whose frame has been
// produced by seq. SeqProducerLost latches everything applied.
func (m *Machine) ProcessSequencePoint(seq int64) {
	m.checkSequence()
	if m.depth > 0 {
		m.buffer(func() { m.processSequencePoint(seq) })
		return
	}
	m.processSequencePoint(seq)
}

// OnProducerLost recovers from a frame producer crash.
func (m *Machine) OnProducerLost() {
	m.logger.Warn("frame producer lost; latching outstanding requests",
		"outstanding", m.queue.Outstanding(),
	)
	m.ProcessSequencePoint(SeqProducerLost)
}

func (m *Machine) processSequencePoint(seq int64) {
	n := m.queue.Latchable(seq)
	if n > 0 {
		latched := m.queue.PopFront(n)
		for _, req := range latched {
			m.observer.OnLatched(req)
		}
		m.latchStateRequest(latched[len(latched)-1])
	}

	if m.queue.Len() == 0 {
		invariant.Check(m.applied == m.latched,
			"applied and latched state diverged with an empty queue: applied=%s latched=%s",
			m.applied, m.latched)
	}

	m.maybeApplyLatestStateRequest(false)
}

func (m *Machine) latchStateRequest(req Request) {
	m.latched = req.State
	if !req.State.BoundsDIP.IsEmpty() {
		m.lastNonEmptyBounds = req.State.BoundsDIP
	}

	m.updateGeometry(req.State, false)
	if m.mask != nil {
		m.mask.UpdateWindowMask(req.State)
	}
	if req.Serial != NoSerial {
		m.ack(req.Serial)
	}
	m.logger.Debug("state latched",
		"serial", req.Serial,
		"viz_seq", req.VizSeq,
		"state", req.State.String(),
	)
}

// WindowGeometry returns the geometry announced for s: its bounds minus
// decoration insets, never smaller than 1x1.
func (m *Machine) WindowGeometry(s windowstate.State) geometry.Rect {
	insets := m.frameInsets(s)
	return geometry.Rect{
		X:      insets.Left,
		Y:      insets.Top,
		Width:  max(1, s.BoundsDIP.Width-insets.Width()),
		Height: max(1, s.BoundsDIP.Height-insets.Height()),
	}
}

func (m *Machine) updateGeometry(s windowstate.State, onlyIfUnsent bool) {
	if onlyIfUnsent && m.geometrySent {
		return
	}
	insets := m.frameInsets(s)
	r := m.WindowGeometry(s)
	if m.geometrySent && r == m.lastGeometry && insets == m.lastInsets {
		return
	}
	if err := m.transport.SetWindowGeometry(r); err != nil {
		m.logger.Error("failed to set window geometry", "geometry", r.String(), "error", err)
	}
	m.geometrySent = true
	m.lastGeometry = r
	m.lastInsets = insets
	m.observer.OnGeometry(r)
}

func (m *Machine) ack(serial int64) {
	if serial <= m.lastAckedSerial {
		return
	}
	if err := m.transport.AckConfigure(serial); err != nil {
		m.logger.Error("failed to acknowledge configure", "serial", serial, "error", err)
	}
	m.lastAckedSerial = serial
	m.observer.OnAcked(serial)
}

func (m *Machine) frameInsets(s windowstate.State) geometry.Insets {
	if m.insets == nil {
		return geometry.Insets{}
	}
	return m.insets.FrameInsets(s)
}

func (m *Machine) clampBounds(r geometry.Rect) geometry.Rect {
	if m.constraints == nil {
		return r
	}
	return r.WithSize(geometry.ClampSize(r.Size(), m.constraints.MinimumSize(), m.constraints.MaximumSize()))
}

func (m *Machine) checkSequence() {
	invariant.Check(m.runner.RunsTasksInCurrentSequence(), "configure machine used off its runner")
}

func (m *Machine) buffer(task func()) {
	m.deferred = append(m.deferred, task)
}

// applyGuard marks the machine as applying for its lifetime. The outermost
// release drains calls deferred meanwhile.
type applyGuard struct{ m *Machine }

func (m *Machine) enterApply() applyGuard {
	m.depth++
	return applyGuard{m: m}
}

func (g applyGuard) release() {
	g.m.depth--
	if g.m.depth > 0 {
		return
	}
	for len(g.m.deferred) > 0 {
		task := g.m.deferred[0]
		g.m.deferred = g.m.deferred[1:]
		task()
	}
}

type nopObserver struct{}

func (nopObserver) OnRequestQueued(Request)  {}
func (nopObserver) OnApplied(Request)        {}
func (nopObserver) OnLatched(Request)        {}
func (nopObserver) OnGeometry(geometry.Rect) {}
func (nopObserver) OnAcked(int64)            {}
