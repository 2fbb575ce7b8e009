package subsurface

import (
	"errors"
	"math"
	"testing"

	"github.com/1broseidon/winsync/internal/geometry"
)

type fakeSurface struct {
	id        uint32
	destroyed bool
}

func (s *fakeSurface) ID() uint32 { return s.id }
func (s *fakeSurface) Destroy()   { s.destroyed = true }

type fakeFactory struct {
	next    uint32
	created []*fakeSurface
	limit   int
}

func (f *fakeFactory) CreateSubsurface() (Surface, error) {
	if f.limit > 0 && len(f.created) >= f.limit {
		return nil, errors.New("out of surfaces")
	}
	f.next++
	s := &fakeSurface{id: 100 + f.next}
	f.created = append(f.created, s)
	return s, nil
}

type recordingPresenter struct {
	frames []FrameRecord
}

func (p *recordingPresenter) Present(r FrameRecord) error {
	p.frames = append(p.frames, r)
	return nil
}

func ids(surfaces []Surface) []uint32 {
	out := make([]uint32, len(surfaces))
	for i, s := range surfaces {
		out[i] = s.ID()
	}
	return out
}

func equalIDs(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStackArrange(t *testing.T) {
	f := &fakeFactory{}
	s := NewStack(f)

	if err := s.Arrange(1, 2); err != nil {
		t.Fatalf("Arrange(1,2) error: %v", err)
	}
	if got := s.Size(); got != 3 {
		t.Fatalf("Size() = %d, want 3", got)
	}
	if got, want := ids(s.Above()), []uint32{101}; !equalIDs(got, want) {
		t.Fatalf("Above() = %v, want %v", got, want)
	}
	if got, want := ids(s.Below()), []uint32{102, 103}; !equalIDs(got, want) {
		t.Fatalf("Below() = %v, want %v", got, want)
	}

	// Shrinking demand never destroys; the extra below member moves above.
	if err := s.Arrange(2, 1); err != nil {
		t.Fatalf("Arrange(2,1) error: %v", err)
	}
	if got, want := ids(s.Above()), []uint32{101, 103}; !equalIDs(got, want) {
		t.Fatalf("Above() = %v, want %v", got, want)
	}
	if got, want := ids(s.Below()), []uint32{102}; !equalIDs(got, want) {
		t.Fatalf("Below() = %v, want %v", got, want)
	}

	if err := s.Arrange(0, 0); err != nil {
		t.Fatalf("Arrange(0,0) error: %v", err)
	}
	if got := s.Size(); got != 3 {
		t.Fatalf("pool shrank to %d", got)
	}
	if len(f.created) != 3 {
		t.Fatalf("created %d surfaces, want 3", len(f.created))
	}

	s.Destroy()
	for _, c := range f.created {
		if !c.destroyed {
			t.Fatalf("surface %d not destroyed", c.id)
		}
	}
}

func TestStackArrangeExhausted(t *testing.T) {
	s := NewStack(&fakeFactory{limit: 1})
	err := s.Arrange(1, 1)
	if !errors.Is(err, ErrStackExhausted) {
		t.Fatalf("Arrange error = %v, want ErrStackExhausted", err)
	}
}

func zOrders(planes []Plane) []int32 {
	out := make([]int32, 0, len(planes))
	for _, p := range planes {
		out = append(out, p.Config.ZOrder)
	}
	return out
}

func TestCommitOverlaysOrdering(t *testing.T) {
	tests := []struct {
		name        string
		withPrimary bool
		zs          []int32
		wantOrder   []int32
		wantRoleAt0 Role
		wantRootZ   int32
	}{
		{
			name:        "mixed planes with primary",
			withPrimary: true,
			zs:          []int32{1, 2, 0, -1},
			wantOrder:   []int32{math.MinInt32, -1, 0, 1, 2},
			wantRoleAt0: RoleRoot,
			wantRootZ:   math.MinInt32,
		},
		{
			name:        "background sentinel goes to root",
			withPrimary: true,
			zs:          []int32{1, 0, math.MinInt32},
			wantOrder:   []int32{math.MinInt32, 0, 1},
			wantRoleAt0: RoleRoot,
			wantRootZ:   math.MinInt32,
		},
		{
			name:        "root draws content without primary surface",
			withPrimary: false,
			zs:          []int32{3, 0, -2},
			wantOrder:   []int32{-2, 0, 3},
			wantRoleAt0: RoleBelow,
			wantRootZ:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var overlays []OverlayConfig
			for _, z := range tt.zs {
				overlays = append(overlays, OverlayConfig{ZOrder: z, Opacity: 1})
			}

			var primary Surface
			if tt.withPrimary {
				primary = &fakeSurface{id: 2}
			}
			p := &recordingPresenter{}
			c := NewCoordinator(&fakeSurface{id: 1}, primary, NewStack(&fakeFactory{}), p, nil)

			meta := FrameMetadata{VizSeq: 9, SizePx: geometry.Size{Width: 640, Height: 480}, Scale: 1}
			if err := c.CommitOverlays(7, meta, overlays); err != nil {
				t.Fatalf("CommitOverlays error: %v", err)
			}
			if len(p.frames) != 1 {
				t.Fatalf("presented %d frames, want 1", len(p.frames))
			}
			rec := p.frames[0]
			if rec.FrameID != 7 {
				t.Fatalf("FrameID = %d, want 7", rec.FrameID)
			}

			visible := rec.Visible()
			if got := zOrders(visible); !equalZ(got, tt.wantOrder) {
				t.Fatalf("presentation order = %v, want %v", got, tt.wantOrder)
			}
			if visible[0].Role != tt.wantRoleAt0 {
				t.Fatalf("bottom role = %v, want %v", visible[0].Role, tt.wantRoleAt0)
			}
			if rec.Root.Config.ZOrder != tt.wantRootZ {
				t.Fatalf("root z = %d, want %d", rec.Root.Config.ZOrder, tt.wantRootZ)
			}
			if tt.withPrimary && (rec.Primary == nil || rec.Primary.Hidden || rec.Primary.Config.ZOrder != 0) {
				t.Fatalf("primary plane = %+v, want z=0 visible", rec.Primary)
			}

			if overlays[0].ZOrder != tt.zs[0] {
				t.Fatal("caller slice was modified")
			}
		})
	}
}

func equalZ(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestCommitOverlaysSynthesizesRoot(t *testing.T) {
	p := &recordingPresenter{}
	c := NewCoordinator(&fakeSurface{id: 1}, &fakeSurface{id: 2}, NewStack(&fakeFactory{}), p, nil)

	meta := FrameMetadata{SizePx: geometry.Size{Width: 300, Height: 200}}
	if err := c.CommitOverlays(1, meta, []OverlayConfig{{ZOrder: 0}}); err != nil {
		t.Fatalf("CommitOverlays error: %v", err)
	}
	root := p.frames[0].Root
	if !root.Config.Opaque || root.Config.Bounds != (geometry.Rect{Width: 300, Height: 200}) {
		t.Fatalf("root config = %+v, want full-window opaque", root.Config)
	}
}

func TestCommitOverlaysHidesSurplus(t *testing.T) {
	p := &recordingPresenter{}
	f := &fakeFactory{}
	c := NewCoordinator(&fakeSurface{id: 1}, &fakeSurface{id: 2}, NewStack(f), p, nil)

	first := []OverlayConfig{{ZOrder: 2}, {ZOrder: 1}, {ZOrder: 0}, {ZOrder: -1}}
	if err := c.CommitOverlays(1, FrameMetadata{}, first); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	second := []OverlayConfig{{ZOrder: 1}, {ZOrder: 0}}
	if err := c.CommitOverlays(2, FrameMetadata{}, second); err != nil {
		t.Fatalf("second commit: %v", err)
	}

	if len(f.created) != 3 {
		t.Fatalf("created %d surfaces, want 3", len(f.created))
	}
	for _, s := range f.created {
		if s.destroyed {
			t.Fatalf("surface %d destroyed between frames", s.id)
		}
	}

	rec := p.frames[1]
	hidden := 0
	for _, plane := range rec.PresentationOrder() {
		if plane.Hidden {
			hidden++
		}
	}
	if hidden != 2 {
		t.Fatalf("hidden planes = %d, want 2", hidden)
	}
	if got := zOrders(rec.Visible()); !equalZ(got, []int32{math.MinInt32, 0, 1}) {
		t.Fatalf("visible order = %v", got)
	}
}

func TestCommitOverlaysEmptyHidesPool(t *testing.T) {
	p := &recordingPresenter{}
	f := &fakeFactory{}
	c := NewCoordinator(&fakeSurface{id: 1}, &fakeSurface{id: 2}, NewStack(f), p, nil)

	first := []OverlayConfig{{ZOrder: 1}, {ZOrder: 0}, {ZOrder: -1}}
	if err := c.CommitOverlays(1, FrameMetadata{}, first); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	meta := FrameMetadata{SizePx: geometry.Size{Width: 64, Height: 32}}
	if err := c.CommitOverlays(2, meta, nil); err != nil {
		t.Fatalf("empty commit: %v", err)
	}

	if len(p.frames) != 2 {
		t.Fatalf("presented %d frames, want 2", len(p.frames))
	}
	rec := p.frames[1]
	if rec.FrameID != 2 || rec.Root.Hidden || rec.Root.Config.Bounds != (geometry.Rect{Width: 64, Height: 32}) {
		t.Fatalf("root plane = %+v, want synthesized background", rec.Root)
	}
	if rec.Primary == nil || !rec.Primary.Hidden {
		t.Fatalf("primary plane = %+v, want hidden", rec.Primary)
	}
	if got := len(rec.Above) + len(rec.Below); got != len(f.created) {
		t.Fatalf("record covers %d pooled surfaces, want %d", got, len(f.created))
	}
	for _, plane := range append(rec.Above, rec.Below...) {
		if !plane.Hidden {
			t.Fatalf("surface %d left visible: %+v", plane.SurfaceID, plane)
		}
	}
}
