package windowstate

import (
	"testing"

	"github.com/1broseidon/winsync/internal/geometry"
)

func TestPendingConfigureApply(t *testing.T) {
	base := Default()
	base.BoundsDIP = geometry.Rect{X: 10, Y: 20, Width: 300, Height: 200}

	var p PendingConfigure
	if !p.IsEmpty() {
		t.Fatal("new PendingConfigure should be empty")
	}
	p.SetKind(Maximized)
	p.SetSize(geometry.Size{Width: 1920, Height: 1080})
	p.SetOcclusion(Visible)

	got := p.Apply(base)
	if got.Kind != Maximized {
		t.Errorf("Kind = %v, want maximized", got.Kind)
	}
	if got.BoundsDIP != (geometry.Rect{Width: 1920, Height: 1080}) {
		t.Errorf("BoundsDIP = %v", got.BoundsDIP)
	}
	if got.Occlusion != Visible {
		t.Errorf("Occlusion = %v, want visible", got.Occlusion)
	}
	if got.WindowScale != base.WindowScale {
		t.Errorf("WindowScale changed: %v", got.WindowScale)
	}

	p.Reset()
	if !p.IsEmpty() {
		t.Fatal("Reset should clear hints")
	}
}

func TestPendingConfigureZeroSizeLeavesBounds(t *testing.T) {
	base := Default()
	base.BoundsDIP = geometry.Rect{Width: 640, Height: 480}

	var p PendingConfigure
	p.SetSize(geometry.Size{})
	if got := p.Apply(base); got.BoundsDIP != base.BoundsDIP {
		t.Fatalf("BoundsDIP = %v, want %v", got.BoundsDIP, base.BoundsDIP)
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "maximized", want: Maximized},
		{in: " Fullscreen ", want: Fullscreen},
		{in: "minimized", want: Minimized},
		{in: "bogus", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Fatalf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTiledEdges(t *testing.T) {
	tests := []struct {
		in      []string
		want    TiledEdges
		names   []string
		wantErr bool
	}{
		{in: nil, want: 0},
		{in: []string{"BOTTOM", " left"}, want: EdgeLeft | EdgeBottom, names: []string{"left", "bottom"}},
		{in: []string{"top", "top"}, want: EdgeTop, names: []string{"top"}},
		{in: []string{"middle"}, wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseEdges(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseEdges(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if tt.wantErr {
			continue
		}
		if got != tt.want {
			t.Fatalf("ParseEdges(%q) = %b, want %b", tt.in, got, tt.want)
		}
		names := got.Names()
		if len(names) != len(tt.names) {
			t.Fatalf("Names() = %v, want %v", names, tt.names)
		}
		for i := range names {
			if names[i] != tt.names[i] {
				t.Fatalf("Names() = %v, want %v", names, tt.names)
			}
		}
	}
}
