package windowstate

import "github.com/1broseidon/winsync/internal/geometry"

// PendingConfigure accumulates piecemeal compositor hints until a configure
// serial finalises them. Nil fields were not mentioned by the compositor.
type PendingConfigure struct {
	Kind        *Kind
	BoundsDIP   *geometry.Rect
	SizePx      *geometry.Size
	RasterScale *float32
	Occlusion   *Occlusion
	Tiled       *TiledEdges
	Suspended   *bool
}

func (p *PendingConfigure) SetKind(k Kind) { p.Kind = &k }

// SetSize records a size hint. A zero area means the client picks its own
// size and leaves bounds untouched.
func (p *PendingConfigure) SetSize(s geometry.Size) {
	if s.IsEmpty() {
		return
	}
	r := geometry.Rect{Width: s.Width, Height: s.Height}
	if p.BoundsDIP != nil {
		r.X = p.BoundsDIP.X
		r.Y = p.BoundsDIP.Y
	}
	p.BoundsDIP = &r
}

// SetBounds records an explicit rectangle, origin included.
func (p *PendingConfigure) SetBounds(r geometry.Rect) { p.BoundsDIP = &r }

func (p *PendingConfigure) SetSizePx(s geometry.Size) { p.SizePx = &s }

func (p *PendingConfigure) SetRasterScale(v float32) { p.RasterScale = &v }

func (p *PendingConfigure) SetOcclusion(o Occlusion) { p.Occlusion = &o }

func (p *PendingConfigure) SetTiled(e TiledEdges) { p.Tiled = &e }

func (p *PendingConfigure) SetSuspended(v bool) { p.Suspended = &v }

// IsEmpty reports whether no hint has been recorded.
func (p *PendingConfigure) IsEmpty() bool {
	return *p == PendingConfigure{}
}

// Apply overlays the recorded hints onto base.
func (p *PendingConfigure) Apply(base State) State {
	s := base
	if p.Kind != nil {
		s.Kind = *p.Kind
	}
	if p.BoundsDIP != nil {
		s.BoundsDIP = *p.BoundsDIP
	}
	if p.SizePx != nil {
		s.SizePx = *p.SizePx
	}
	if p.RasterScale != nil {
		s.UIScale = *p.RasterScale
	}
	if p.Occlusion != nil {
		s.Occlusion = *p.Occlusion
	}
	if p.Tiled != nil {
		s.Tiled = *p.Tiled
	}
	if p.Suspended != nil {
		s.Suspended = *p.Suspended
	}
	return s
}

// Reset clears every hint.
func (p *PendingConfigure) Reset() {
	*p = PendingConfigure{}
}
