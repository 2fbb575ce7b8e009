package geometry

import (
	"fmt"
	"math"
)

// Point is a position in integer coordinates.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Size is a width/height pair. Negative values are never produced by the
// helpers in this package.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// IsEmpty reports whether either dimension is zero or negative.
func (s Size) IsEmpty() bool {
	return s.Width <= 0 || s.Height <= 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Rect describes a rectangular region. Units (DIP or pixels) are decided by
// the caller.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Origin returns the top-left corner.
func (r Rect) Origin() Point {
	return Point{X: r.X, Y: r.Y}
}

// Size returns the rectangle dimensions.
func (r Rect) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool {
	return r.Size().IsEmpty()
}

// WithSize returns r with its size replaced.
func (r Rect) WithSize(s Size) Rect {
	r.Width = s.Width
	r.Height = s.Height
	return r
}

// Intersect returns the overlapping region of a and b, or an empty Rect.
func (r Rect) Intersect(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.Width, o.X+o.Width)
	y2 := min(r.Y+r.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Area returns width*height, or 0 for empty rectangles.
func (r Rect) Area() int {
	if r.IsEmpty() {
		return 0
	}
	return r.Width * r.Height
}

func (r Rect) String() string {
	return fmt.Sprintf("%d,%d %dx%d", r.X, r.Y, r.Width, r.Height)
}

// Insets are per-edge distances, typically client-side decoration shadows.
type Insets struct {
	Top    int `json:"top" yaml:"top"`
	Bottom int `json:"bottom" yaml:"bottom"`
	Left   int `json:"left" yaml:"left"`
	Right  int `json:"right" yaml:"right"`
}

// Width is the combined horizontal inset.
func (i Insets) Width() int { return i.Left + i.Right }

// Height is the combined vertical inset.
func (i Insets) Height() int { return i.Top + i.Bottom }

// IsZero reports whether all edges are zero.
func (i Insets) IsZero() bool { return i == Insets{} }

// ScaleToRoundedSize converts a DIP size to pixels. Each dimension is rounded
// on its own so the result does not depend on the window origin.
func ScaleToRoundedSize(s Size, scale float32) Size {
	return Size{
		Width:  roundScaled(s.Width, scale),
		Height: roundScaled(s.Height, scale),
	}
}

// ScaleToRoundedRect converts a rectangle, rounding the origin and the size
// independently.
func ScaleToRoundedRect(r Rect, scale float32) Rect {
	return Rect{
		X:      roundScaled(r.X, scale),
		Y:      roundScaled(r.Y, scale),
		Width:  roundScaled(r.Width, scale),
		Height: roundScaled(r.Height, scale),
	}
}

// ScaleToDIP converts a pixel size back to DIP, rounding each dimension.
func ScaleToDIP(s Size, scale float32) Size {
	if scale <= 0 {
		return s
	}
	return Size{
		Width:  int(math.Round(float64(s.Width) / float64(scale))),
		Height: int(math.Round(float64(s.Height) / float64(scale))),
	}
}

// ClampSize bounds s by min and max. A zero dimension in max means unbounded.
func ClampSize(s, minSize, maxSize Size) Size {
	if maxSize.Width > 0 && s.Width > maxSize.Width {
		s.Width = maxSize.Width
	}
	if maxSize.Height > 0 && s.Height > maxSize.Height {
		s.Height = maxSize.Height
	}
	if s.Width < minSize.Width {
		s.Width = minSize.Width
	}
	if s.Height < minSize.Height {
		s.Height = minSize.Height
	}
	return s
}

func roundScaled(v int, scale float32) int {
	return int(math.Round(float64(v) * float64(scale)))
}
