package x11

import (
	"testing"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/windowstate"
)

func TestScaleForDensity(t *testing.T) {
	tests := []struct {
		name     string
		widthPx  int
		widthMM  int
		expected float32
	}{
		{name: "unknown size", widthPx: 1920, widthMM: 0, expected: 1},
		{name: "96 dpi", widthPx: 1920, widthMM: 508, expected: 1},
		{name: "low density clamps", widthPx: 1024, widthMM: 600, expected: 1},
		{name: "192 dpi", widthPx: 3840, widthMM: 508, expected: 2},
		{name: "144 dpi", widthPx: 2880, widthMM: 508, expected: 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scaleForDensity(tt.widthPx, tt.widthMM); got != tt.expected {
				t.Fatalf("scaleForDensity(%d, %d) = %v, want %v", tt.widthPx, tt.widthMM, got, tt.expected)
			}
		})
	}
}

func TestSortPrimaryFirst(t *testing.T) {
	outputs := []output.Output{{ID: 1}, {ID: 2}, {ID: 3}}
	sortPrimaryFirst(outputs, 3)
	for i, want := range []uint32{3, 1, 2} {
		if outputs[i].ID != want {
			t.Fatalf("outputs[%d] = %d, want %d", i, outputs[i].ID, want)
		}
	}

	sortPrimaryFirst(outputs, 99)
	if outputs[0].ID != 3 {
		t.Fatalf("unknown primary reordered outputs: %v", outputs)
	}
}

func TestOverlappingOutputs(t *testing.T) {
	outputs := []output.Output{
		{ID: 1, Bounds: geometry.Rect{Width: 1920, Height: 1080}},
		{ID: 2, Bounds: geometry.Rect{X: 1920, Width: 1920, Height: 1080}},
	}
	tests := []struct {
		name string
		rect geometry.Rect
		want []uint32
	}{
		{name: "left only", rect: geometry.Rect{X: 10, Y: 10, Width: 100, Height: 100}, want: []uint32{1}},
		{name: "straddling", rect: geometry.Rect{X: 1800, Width: 400, Height: 100}, want: []uint32{1, 2}},
		{name: "offscreen", rect: geometry.Rect{X: 5000, Width: 10, Height: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := overlappingOutputs(outputs, tt.rect)
			if len(got) != len(tt.want) {
				t.Fatalf("overlappingOutputs = %v, want %v", got, tt.want)
			}
			for _, id := range tt.want {
				if !got[id] {
					t.Fatalf("output %d missing from %v", id, got)
				}
			}
		})
	}
}

func TestKindFromWMState(t *testing.T) {
	tests := []struct {
		name   string
		states []string
		want   windowstate.Kind
	}{
		{name: "none", want: windowstate.Normal},
		{name: "half maximized", states: []string{"_NET_WM_STATE_MAXIMIZED_HORZ"}, want: windowstate.Normal},
		{name: "maximized", states: []string{"_NET_WM_STATE_MAXIMIZED_VERT", "_NET_WM_STATE_MAXIMIZED_HORZ"}, want: windowstate.Maximized},
		{name: "fullscreen wins", states: []string{"_NET_WM_STATE_MAXIMIZED_HORZ", "_NET_WM_STATE_FULLSCREEN"}, want: windowstate.Fullscreen},
		{name: "hidden", states: []string{"_NET_WM_STATE_HIDDEN"}, want: windowstate.Minimized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := kindFromWMState(tt.states); got != tt.want {
				t.Fatalf("kindFromWMState(%v) = %v, want %v", tt.states, got, tt.want)
			}
		})
	}
}

func TestOcclusionForVisibility(t *testing.T) {
	if got := occlusionForVisibility(xproto.VisibilityFullyObscured); got != windowstate.Occluded {
		t.Fatalf("fully obscured = %v, want occluded", got)
	}
	if got := occlusionForVisibility(xproto.VisibilityPartiallyObscured); got != windowstate.Visible {
		t.Fatalf("partially obscured = %v, want visible", got)
	}
}

func TestNormalHints(t *testing.T) {
	hints := normalHints(geometry.Size{Width: 100, Height: 50}, geometry.Size{})
	if hints.MinWidth != 100 || hints.MinHeight != 50 {
		t.Fatalf("min hints = %dx%d", hints.MinWidth, hints.MinHeight)
	}
	if hints.MaxWidth != 0 {
		t.Fatalf("unbounded max set MaxWidth = %d", hints.MaxWidth)
	}
}
