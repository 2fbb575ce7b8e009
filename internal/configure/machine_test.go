package configure

import (
	"math/rand"
	"testing"

	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/sequence"
	"github.com/1broseidon/winsync/internal/windowstate"
)

type fakeTransport struct {
	acks       []int64
	geometries []geometry.Rect
}

func (t *fakeTransport) AckConfigure(serial int64) error {
	t.acks = append(t.acks, serial)
	return nil
}

func (t *fakeTransport) SetWindowGeometry(r geometry.Rect) error {
	t.geometries = append(t.geometries, r)
	return nil
}

type fakeProducer struct {
	next  int64
	calls int
	hook  func(prev, next windowstate.State)
	// originOnlyNoFrame skips frames for transitions that only move the window.
	originOnlyNoFrame bool
}

func (p *fakeProducer) ApplyState(prev, next windowstate.State) int64 {
	p.calls++
	if p.hook != nil {
		p.hook(prev, next)
	}
	if p.originOnlyNoFrame && prev.SizePx == next.SizePx && prev.Kind == next.Kind {
		return NoFrame
	}
	p.next++
	return p.next
}

type recordingObserver struct {
	nopObserver
	latched []Request
	applied []Request
}

func (o *recordingObserver) OnApplied(r Request) { o.applied = append(o.applied, r) }
func (o *recordingObserver) OnLatched(r Request) { o.latched = append(o.latched, r) }

type fixedConstraints struct{ min, max geometry.Size }

func (c fixedConstraints) MinimumSize() geometry.Size { return c.min }
func (c fixedConstraints) MaximumSize() geometry.Size { return c.max }

type fixedInsets geometry.Insets

func (i fixedInsets) FrameInsets(s windowstate.State) geometry.Insets {
	if s.IsFullscreenOrMaximized() {
		return geometry.Insets{}
	}
	return geometry.Insets(i)
}

type harness struct {
	m         *Machine
	transport *fakeTransport
	producer  *fakeProducer
	observer  *recordingObserver
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		transport: &fakeTransport{},
		producer:  &fakeProducer{},
		observer:  &recordingObserver{},
	}
	initial := windowstate.Default()
	initial.BoundsDIP = geometry.Rect{Width: 100, Height: 100}
	opts := Options{
		Runner:    &sequence.Manual{},
		Transport: h.transport,
		Producer:  h.producer,
		Observer:  h.observer,
		Initial:   initial,
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.m = NewMachine(opts)
	return h
}

func (h *harness) requestBounds(w, height int, serial int64) {
	s := h.m.LatestRequested()
	s.BoundsDIP = geometry.Rect{Width: w, Height: height}
	h.m.RequestStateFromServer(s, serial)
}

func TestEndToEndConfigure(t *testing.T) {
	h := newHarness(t, nil)
	h.producer.next = 41

	h.m.Pending().SetSize(geometry.Size{Width: 200, Height: 150})
	h.m.ProcessPendingConfigure(5)

	reqs := h.m.Requests()
	if len(reqs) != 1 || reqs[0].Serial != 5 || !reqs[0].Applied || reqs[0].VizSeq != 42 {
		t.Fatalf("queue = %+v, want one applied request at serial 5 with viz_seq 42", reqs)
	}
	if len(h.transport.acks) != 0 {
		t.Fatalf("acked %v before the frame was produced", h.transport.acks)
	}

	h.m.ProcessSequencePoint(42)

	if got := h.m.Latched().BoundsDIP; got != (geometry.Rect{Width: 200, Height: 150}) {
		t.Fatalf("latched bounds = %v, want 0,0 200x150", got)
	}
	if len(h.transport.acks) != 1 || h.transport.acks[0] != 5 {
		t.Fatalf("acks = %v, want [5]", h.transport.acks)
	}
	if n := len(h.transport.geometries); n != 1 || h.transport.geometries[n-1] != (geometry.Rect{Width: 200, Height: 150}) {
		t.Fatalf("geometries = %v", h.transport.geometries)
	}
	if h.m.Applied() != h.m.Latched() {
		t.Fatal("applied and latched differ with an empty queue")
	}
}

func TestBackpressureBound(t *testing.T) {
	h := newHarness(t, nil)

	for i := 1; i <= 6; i++ {
		h.requestBounds(100+i*10, 100, int64(i))
		if got := h.m.Outstanding(); got > DefaultMaxOutstanding {
			t.Fatalf("after request %d outstanding = %d, limit %d", i, got, DefaultMaxOutstanding)
		}
	}

	reqs := h.m.Requests()
	if len(reqs) != 4 {
		t.Fatalf("queue length = %d, want 4 (3 applied + 1 coalesced)", len(reqs))
	}
	tail := reqs[3]
	if tail.Applied || tail.Serial != 6 || tail.State.BoundsDIP.Width != 160 {
		t.Fatalf("tail = %+v, want unapplied serial 6 width 160", tail)
	}
	if h.producer.calls != 3 {
		t.Fatalf("producer calls = %d, want 3", h.producer.calls)
	}

	// Latching the first frame makes room for the deferred tail.
	h.m.ProcessSequencePoint(1)
	if got := h.m.Outstanding(); got != 3 {
		t.Fatalf("outstanding after latch = %d, want 3", got)
	}
	if h.producer.calls != 4 {
		t.Fatalf("producer calls = %d, want 4", h.producer.calls)
	}
	if len(h.transport.acks) != 1 || h.transport.acks[0] != 1 {
		t.Fatalf("acks = %v, want [1]", h.transport.acks)
	}
}

func TestConfiguredBackpressureLimit(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.MaxOutstanding = 1 })

	h.requestBounds(110, 100, 1)
	h.requestBounds(120, 100, 2)
	if got := h.m.Outstanding(); got != 1 {
		t.Fatalf("outstanding = %d, want 1", got)
	}
	if got := len(h.m.Requests()); got != 2 {
		t.Fatalf("queue length = %d, want 2", got)
	}
}

func TestClientRequestBypassesBackpressure(t *testing.T) {
	h := newHarness(t, nil)
	for i := 1; i <= 3; i++ {
		h.requestBounds(100+i*10, 100, int64(i))
	}
	if got := h.m.Outstanding(); got != 3 {
		t.Fatalf("outstanding = %d, want 3", got)
	}

	s := h.m.LatestRequested()
	s.BoundsDIP = geometry.Rect{Width: 500, Height: 400}
	h.m.RequestStateFromClient(s)

	reqs := h.m.Requests()
	tail := reqs[len(reqs)-1]
	if !tail.Applied {
		t.Fatal("client request was not applied")
	}
	if tail.Serial != 3 {
		t.Fatalf("client request serial = %d, want inherited 3", tail.Serial)
	}
	if got := h.m.Outstanding(); got != 4 {
		t.Fatalf("outstanding = %d, want 4", got)
	}
}

func TestOcclusionChangeBypassesBackpressure(t *testing.T) {
	h := newHarness(t, nil)
	for i := 1; i <= 3; i++ {
		h.requestBounds(100+i*10, 100, int64(i))
	}

	s := h.m.LatestRequested()
	s.Occlusion = windowstate.Hidden
	h.m.RequestStateFromServer(s, 4)

	if got := h.m.Applied().Occlusion; got != windowstate.Hidden {
		t.Fatalf("applied occlusion = %v, want hidden", got)
	}
}

func TestCoalescingKeepsHighestSerial(t *testing.T) {
	h := newHarness(t, nil)
	for i := 1; i <= 3; i++ {
		h.requestBounds(100+i*10, 100, int64(i))
	}

	s := h.m.LatestRequested()
	s.BoundsDIP = geometry.Rect{Width: 640, Height: 480}
	h.m.RequestStateFromServer(s, 7)
	h.m.RequestStateFromServer(s, 8)

	reqs := h.m.Requests()
	if len(reqs) != 4 {
		t.Fatalf("queue length = %d, want 4", len(reqs))
	}
	if reqs[3].Serial != 8 || reqs[3].Applied {
		t.Fatalf("tail = %+v, want one unapplied entry at serial 8", reqs[3])
	}
}

func TestQueuePushRaisesSerialOfAppliedTail(t *testing.T) {
	var q Queue
	s := windowstate.Default()
	q.Push(s, 3)
	q.Tail().Applied = true

	got := q.Push(s, 9)
	if q.Len() != 1 || got.Serial != 9 {
		t.Fatalf("queue = %+v, want single entry at serial 9", q.Snapshot())
	}

	s.Kind = windowstate.Maximized
	got = q.Push(s, NoSerial)
	if q.Len() != 2 || got.Serial != 9 {
		t.Fatalf("appended entry = %+v, want inherited serial 9", got)
	}
}

func TestQueuePushCarriesSerialAcrossDrain(t *testing.T) {
	var q Queue
	s := windowstate.Default()

	got := q.Push(s, NoSerial)
	if got.Serial != NoSerial {
		t.Fatalf("first serial = %d, want NoSerial before any configure", got.Serial)
	}
	q.Tail().Applied = true
	q.PopFront(1)

	q.Push(s, 7)
	q.Tail().Applied = true
	q.PopFront(1)

	s.Kind = windowstate.Maximized
	got = q.Push(s, NoSerial)
	if got.Serial != 7 {
		t.Fatalf("serial after drain = %d, want 7", got.Serial)
	}
}

func TestClientRequestAfterDrainKeepsSerialOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.requestBounds(120, 100, 7)
	h.m.ProcessSequencePoint(h.producer.next)
	if got := len(h.m.Requests()); got != 0 {
		t.Fatalf("queue length = %d, want drained", got)
	}

	s := h.m.LatestRequested()
	s.BoundsDIP.Width = 90
	h.m.RequestStateFromClient(s)

	applied := h.observer.applied
	if len(applied) < 2 {
		t.Fatalf("applied = %+v, want two applications", applied)
	}
	if got := applied[len(applied)-1].Serial; got != 7 {
		t.Fatalf("client request serial = %d, want 7", got)
	}
	if got := h.m.LastAckedSerial(); got != 7 {
		t.Fatalf("last acked = %d, want 7", got)
	}
}

func TestProducerLostLatchesEverything(t *testing.T) {
	h := newHarness(t, nil)
	for i := 1; i <= 3; i++ {
		h.requestBounds(100+i*10, 100, int64(i*2))
	}
	if got := h.m.Outstanding(); got != 3 {
		t.Fatalf("outstanding = %d, want 3", got)
	}

	h.m.OnProducerLost()

	if got := len(h.m.Requests()); got != 0 {
		t.Fatalf("queue length after producer loss = %d, want 0", got)
	}
	if got := len(h.observer.latched); got != 3 {
		t.Fatalf("latched %d requests, want 3", got)
	}
	if got := h.m.LastAckedSerial(); got != 6 {
		t.Fatalf("last acked serial = %d, want 6", got)
	}
	if h.m.Latched().BoundsDIP.Width != 130 {
		t.Fatalf("latched width = %d, want 130", h.m.Latched().BoundsDIP.Width)
	}
}

func TestProducerLostAppliesDeferredTail(t *testing.T) {
	h := newHarness(t, nil)
	for i := 1; i <= 4; i++ {
		h.requestBounds(100+i*10, 100, int64(i))
	}

	h.m.OnProducerLost()

	reqs := h.m.Requests()
	if len(reqs) != 1 || !reqs[0].Applied || reqs[0].Serial != 4 {
		t.Fatalf("queue = %+v, want the deferred request applied", reqs)
	}
	if got := h.m.LastAckedSerial(); got != 3 {
		t.Fatalf("last acked serial = %d, want 3", got)
	}
}

func TestFIFOLatching(t *testing.T) {
	h := newHarness(t, nil)
	for i := 1; i <= 3; i++ {
		h.requestBounds(100+i*10, 100, int64(i))
	}

	// A sequence point for a later frame latches the earlier ones with it.
	h.m.ProcessSequencePoint(2)
	if got := len(h.observer.latched); got != 2 {
		t.Fatalf("latched %d, want 2", got)
	}
	h.m.ProcessSequencePoint(3)

	for i, r := range h.observer.latched {
		if r.Serial != int64(i+1) {
			t.Fatalf("latch %d has serial %d, want %d", i, r.Serial, i+1)
		}
	}
}

func TestNoFrameRequestWaitsForEarlierFrame(t *testing.T) {
	h := newHarness(t, nil)
	h.producer.originOnlyNoFrame = true
	h.requestBounds(300, 200, 1)

	// A move needs no frame, but it must not latch ahead of the resize.
	s := h.m.LatestRequested()
	s.BoundsDIP.X = 50
	h.m.RequestStateFromClient(s)

	reqs := h.m.Requests()
	if len(reqs) != 2 || reqs[1].VizSeq != NoFrame || !reqs[1].Applied {
		t.Fatalf("queue = %+v, want applied no-frame request behind the resize", reqs)
	}
	if got := len(h.observer.latched); got != 0 {
		t.Fatalf("latched %d requests before frame 1 was produced", got)
	}

	h.m.ProcessSequencePoint(1)
	if got := len(h.m.Requests()); got != 0 {
		t.Fatalf("queue length = %d, want 0", got)
	}
	if got := h.m.Latched().BoundsDIP.X; got != 50 {
		t.Fatalf("latched x = %d, want 50", got)
	}
}

func TestNoOpConfigureAcksImmediately(t *testing.T) {
	h := newHarness(t, nil)

	h.m.ProcessPendingConfigure(3)

	if h.producer.calls != 0 {
		t.Fatalf("producer called %d times for a no-op configure", h.producer.calls)
	}
	if len(h.transport.acks) != 1 || h.transport.acks[0] != 3 {
		t.Fatalf("acks = %v, want [3]", h.transport.acks)
	}
	if len(h.transport.geometries) != 1 {
		t.Fatalf("geometries = %v, want initial geometry sent once", h.transport.geometries)
	}
}

func TestSerialMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	h := newHarness(t, nil)

	serial := int64(0)
	for i := 0; i < 400; i++ {
		switch rng.Intn(5) {
		case 0, 1:
			serial += int64(rng.Intn(3))
			h.m.Pending().SetSize(geometry.Size{Width: 50 + rng.Intn(20), Height: 50 + rng.Intn(20)})
			h.m.ProcessPendingConfigure(serial)
		case 2:
			s := h.m.LatestRequested()
			s.BoundsDIP.Width = 10 + rng.Intn(40)
			h.m.RequestStateFromClient(s)
		case 3:
			h.m.ProcessSequencePoint(h.producer.next - int64(rng.Intn(3)))
		case 4:
			if rng.Intn(10) == 0 {
				h.m.OnProducerLost()
			}
		}
	}

	for i := 1; i < len(h.transport.acks); i++ {
		if h.transport.acks[i] <= h.transport.acks[i-1] {
			t.Fatalf("acks not increasing at %d: %v", i, h.transport.acks)
		}
	}
	for i := 1; i < len(h.observer.applied); i++ {
		prev, cur := h.observer.applied[i-1], h.observer.applied[i]
		if cur.Serial < prev.Serial {
			t.Fatalf("applied serials decreased: %d then %d", prev.Serial, cur.Serial)
		}
	}
	for _, g := range h.transport.geometries {
		if g.Width <= 0 || g.Height <= 0 {
			t.Fatalf("degenerate geometry sent: %v", g)
		}
	}
}

func TestEmptyMinimizedBounds(t *testing.T) {
	tests := []struct {
		name     string
		initial  geometry.Rect
		fallback geometry.Size
		want     geometry.Size
	}{
		{name: "last known bounds", initial: geometry.Rect{Width: 100, Height: 100}, want: geometry.Size{Width: 100, Height: 100}},
		{name: "default fallback", want: geometry.Size{Width: 1, Height: 1}},
		{name: "configured fallback", fallback: geometry.Size{Width: 64, Height: 48}, want: geometry.Size{Width: 64, Height: 48}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(o *Options) {
				o.Initial.BoundsDIP = tt.initial
				o.EmptyBoundsFallback = tt.fallback
			})

			h.m.Pending().SetKind(windowstate.Minimized)
			h.m.Pending().SetBounds(geometry.Rect{})
			h.m.ProcessPendingConfigure(1)
			h.m.ProcessSequencePoint(h.producer.next)

			if got := h.m.Latched().BoundsDIP.Size(); got != tt.want {
				t.Fatalf("latched size = %v, want %v", got, tt.want)
			}
			g := h.transport.geometries[len(h.transport.geometries)-1]
			if g.Width < 1 || g.Height < 1 {
				t.Fatalf("geometry %v is degenerate", g)
			}
			if h.m.LastAckedSerial() != 1 {
				t.Fatalf("last acked = %d, want 1", h.m.LastAckedSerial())
			}
		})
	}
}

func TestGeometrySubtractsInsets(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Insets = fixedInsets{Top: 10, Bottom: 20, Left: 5, Right: 5}
	})

	h.requestBounds(400, 300, 1)
	h.m.ProcessSequencePoint(1)
	if got, want := h.transport.geometries[0], (geometry.Rect{X: 5, Y: 10, Width: 390, Height: 270}); got != want {
		t.Fatalf("geometry = %v, want %v", got, want)
	}

	// Maximizing drops the insets; the size is unchanged but geometry is resent.
	s := h.m.LatestRequested()
	s.Kind = windowstate.Maximized
	h.m.RequestStateFromServer(s, 2)
	h.m.ProcessSequencePoint(2)
	if got, want := h.transport.geometries[1], (geometry.Rect{Width: 400, Height: 300}); got != want {
		t.Fatalf("geometry = %v, want %v", got, want)
	}

	// Insets larger than the window never produce an empty geometry.
	if got := h.m.WindowGeometry(windowstate.State{BoundsDIP: geometry.Rect{Width: 4, Height: 4}}); got.Width != 1 || got.Height != 1 {
		t.Fatalf("WindowGeometry = %v, want 1x1", got)
	}
}

func TestConstraintsClampRequests(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Constraints = fixedConstraints{min: geometry.Size{Width: 200, Height: 150}, max: geometry.Size{Width: 800, Height: 600}}
	})

	h.requestBounds(50, 5000, 1)
	got := h.m.Applied()
	if got.BoundsDIP.Size() != (geometry.Size{Width: 200, Height: 600}) {
		t.Fatalf("applied size = %v, want 200x600", got.BoundsDIP.Size())
	}
	if got.SizePx != (geometry.Size{Width: 200, Height: 600}) {
		t.Fatalf("size px = %v, want 200x600", got.SizePx)
	}
}

func TestReentrantRequestIsBuffered(t *testing.T) {
	h := newHarness(t, nil)

	var queuedDuringApply int
	reentered := false
	h.producer.hook = func(prev, next windowstate.State) {
		if reentered {
			return
		}
		reentered = true
		s := next
		s.BoundsDIP.Width = 999
		h.m.RequestStateFromClient(s)
		queuedDuringApply = len(h.m.Requests())
	}

	h.requestBounds(300, 200, 1)

	if queuedDuringApply != 1 {
		t.Fatalf("queue grew to %d during apply, want reentrant call buffered", queuedDuringApply)
	}
	reqs := h.m.Requests()
	if len(reqs) != 2 || reqs[1].State.BoundsDIP.Width != 999 || !reqs[1].Applied {
		t.Fatalf("queue = %+v, want buffered request applied after the first", reqs)
	}
	if h.m.Applied().BoundsDIP.Width != 999 {
		t.Fatalf("applied width = %d, want 999", h.m.Applied().BoundsDIP.Width)
	}
}
