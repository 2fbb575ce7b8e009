package window

import (
	"errors"
	"testing"

	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/sequence"
)

type testSurface struct {
	id        uint32
	destroyed int
}

func (s *testSurface) ID() uint32 { return s.id }
func (s *testSurface) Destroy()   { s.destroyed++ }

func newTestArena() *Arena {
	reg := output.StaticRegistry{
		{ID: 1, Bounds: geometry.Rect{Width: 1920, Height: 1080}, Scale: 1},
		{ID: 2, Bounds: geometry.Rect{X: 1920, Width: 2560, Height: 1440}, Scale: 2},
	}
	return NewArena(&sequence.Manual{}, reg, nil)
}

func mustAdd(t *testing.T, a *Arena, p Params) Handle {
	t.Helper()
	h, err := a.Add(p)
	if err != nil {
		t.Fatalf("Add(%v) error: %v", p.Kind, err)
	}
	return h
}

func TestCapabilityTable(t *testing.T) {
	tests := []struct {
		kind Kind
		want Capabilities
	}{
		{Toplevel, Capabilities{TracksOutputs: true, CanActivate: true, NegotiatesState: true, CanParent: true}},
		{Popup, Capabilities{NegotiatesState: true, NeedsParent: true}},
		{Bubble, Capabilities{CanActivate: true, NeedsParent: true, CanParent: true}},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.Capabilities(); got != tt.want {
				t.Fatalf("Capabilities() = %+v, want %+v", got, tt.want)
			}
		})
	}
	if Kind(0).Valid() {
		t.Fatal("zero kind reported valid")
	}
}

func TestAddLinksChildren(t *testing.T) {
	a := newTestArena()
	top := mustAdd(t, a, Params{Kind: Toplevel})
	popup := mustAdd(t, a, Params{Kind: Popup, Parent: top})
	bubble := mustAdd(t, a, Params{Kind: Bubble, Parent: top})

	w, _ := a.Get(top)
	if w.Popup != popup {
		t.Fatalf("Popup = %d, want %d", w.Popup, popup)
	}
	if len(w.Bubbles) != 1 || w.Bubbles[0] != bubble {
		t.Fatalf("Bubbles = %v, want [%d]", w.Bubbles, bubble)
	}
	if p, _ := a.Get(popup); p.Parent != top {
		t.Fatalf("popup parent = %d, want %d", p.Parent, top)
	}

	if _, err := a.Add(Params{Kind: Popup, Parent: top}); !errors.Is(err, ErrPopupExists) {
		t.Fatalf("second popup error = %v, want ErrPopupExists", err)
	}
	if _, err := a.Add(Params{Kind: Popup, Parent: popup}); err == nil {
		t.Fatal("popup accepted a child")
	}
	if _, err := a.Add(Params{Kind: Bubble, Parent: 999}); !errors.Is(err, ErrUnknownWindow) {
		t.Fatalf("orphan bubble error = %v, want ErrUnknownWindow", err)
	}
	if _, err := a.Add(Params{Kind: Toplevel, Parent: top}); err == nil {
		t.Fatal("toplevel accepted a parent")
	}
}

func TestRemoveUnlinksAndDestroys(t *testing.T) {
	a := newTestArena()
	topRoot := &testSurface{id: 1}
	topPrimary := &testSurface{id: 2}
	popupRoot := &testSurface{id: 3}
	bubbleRoot := &testSurface{id: 4}

	top := mustAdd(t, a, Params{Kind: Toplevel, Root: topRoot, Primary: topPrimary})
	popup := mustAdd(t, a, Params{Kind: Popup, Parent: top, Root: popupRoot})
	bubble := mustAdd(t, a, Params{Kind: Bubble, Parent: top, Root: bubbleRoot})

	if err := a.Remove(bubble); err != nil {
		t.Fatalf("Remove(bubble) error: %v", err)
	}
	w, _ := a.Get(top)
	if len(w.Bubbles) != 0 {
		t.Fatalf("Bubbles after remove = %v", w.Bubbles)
	}
	if bubbleRoot.destroyed != 1 {
		t.Fatalf("bubble root destroyed %d times, want 1", bubbleRoot.destroyed)
	}

	if err := a.Remove(top); err != nil {
		t.Fatalf("Remove(top) error: %v", err)
	}
	if a.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", a.Len())
	}
	if _, ok := a.Get(popup); ok {
		t.Fatal("popup survived its parent")
	}
	for _, s := range []*testSurface{topRoot, topPrimary, popupRoot} {
		if s.destroyed != 1 {
			t.Fatalf("surface %d destroyed %d times, want 1", s.id, s.destroyed)
		}
	}
	if err := a.Remove(top); !errors.Is(err, ErrUnknownWindow) {
		t.Fatalf("second Remove error = %v, want ErrUnknownWindow", err)
	}
}

func TestPopupScaleDelegatesToRoot(t *testing.T) {
	a := newTestArena()
	top := mustAdd(t, a, Params{Kind: Toplevel})
	bubble := mustAdd(t, a, Params{Kind: Bubble, Parent: top})
	popup := mustAdd(t, a, Params{Kind: Popup, Parent: bubble})

	a.EnterOutput(top, 1)
	a.EnterOutput(top, 2)
	// Popups do not track outputs; this must not change anything.
	a.EnterOutput(popup, 1)
	if w, _ := a.Get(popup); w.Outputs != nil {
		t.Fatal("popup owns an output tracker")
	}

	root, err := a.RootOf(popup)
	if err != nil || root != top {
		t.Fatalf("RootOf(popup) = %d, %v; want %d", root, err, top)
	}
	scale, err := a.PreferredScale(popup)
	if err != nil {
		t.Fatalf("PreferredScale error: %v", err)
	}
	if scale != 2 {
		t.Fatalf("PreferredScale(popup) = %v, want 2", scale)
	}

	a.LeaveOutput(top, 2)
	if scale, _ := a.PreferredScale(popup); scale != 1 {
		t.Fatalf("PreferredScale after leave = %v, want 1", scale)
	}
}
