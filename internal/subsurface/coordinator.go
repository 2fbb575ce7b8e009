package subsurface

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/1broseidon/winsync/internal/geometry"
)

// Coordinator assigns overlay planes to the window's surfaces each frame.
type Coordinator struct {
	root      Surface
	primary   Surface
	stack     *Stack
	presenter Presenter
	logger    *slog.Logger
}

// NewCoordinator creates a coordinator. primary may be nil, in which case the
// z==0 plane is drawn by the root surface.
func NewCoordinator(root, primary Surface, stack *Stack, presenter Presenter, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		root:      root,
		primary:   primary,
		stack:     stack,
		presenter: presenter,
		logger:    logger,
	}
}

// Stack returns the overlay pool.
func (c *Coordinator) Stack() *Stack { return c.stack }

// CommitOverlays maps overlays, submitted back to front, onto the surface
// pool and hands one FrameRecord to the presenter. The caller's slice is not
// modified. An empty overlay list still presents a record: the root gets a
// synthesized background and every pooled surface is hidden.
func (c *Coordinator) CommitOverlays(frameID uint32, meta FrameMetadata, overlays []OverlayConfig) error {
	ov := slices.Clone(overlays)
	slices.Reverse(ov)
	byZ := func(i, j int) bool { return ov[i].ZOrder < ov[j].ZOrder }
	if !sort.SliceIsSorted(ov, byZ) {
		sort.SliceStable(ov, byZ)
	}

	split := sort.Search(len(ov), func(i int) bool { return ov[i].ZOrder > 0 })

	primaryCount := 0
	if split > 0 && ov[split-1].ZOrder == 0 {
		primaryCount = 1
	}
	rootTakesPrimary := c.primary == nil && primaryCount == 1
	backgroundCount := 0
	if len(ov) > 0 && ov[0].ZOrder == BackgroundZOrder && !rootTakesPrimary {
		backgroundCount = 1
	}

	above := len(ov) - split
	below := split - primaryCount - backgroundCount
	if err := c.stack.Arrange(above, below); err != nil {
		return fmt.Errorf("arranging overlay stack for frame %d: %w", frameID, err)
	}

	record := FrameRecord{FrameID: frameID, Metadata: meta}

	idx := split - 1 - primaryCount
	for _, s := range c.stack.Below() {
		plane := Plane{SurfaceID: s.ID(), Role: RoleBelow, Hidden: true}
		if idx >= backgroundCount {
			plane.Hidden = false
			plane.Config = ov[idx]
			idx--
		}
		record.Below = append(record.Below, plane)
	}

	idx = split
	for _, s := range c.stack.Above() {
		plane := Plane{SurfaceID: s.ID(), Role: RoleAbove, Hidden: true}
		if idx < len(ov) {
			plane.Hidden = false
			plane.Config = ov[idx]
			idx++
		}
		record.Above = append(record.Above, plane)
	}

	record.Root = Plane{SurfaceID: c.root.ID(), Role: RoleRoot}
	switch {
	case rootTakesPrimary:
		record.Root.Config = ov[split-1]
	case backgroundCount == 1:
		record.Root.Config = ov[0]
	default:
		record.Root.Config = OverlayConfig{
			ZOrder:  BackgroundZOrder,
			Bounds:  geometry.Rect{Width: meta.SizePx.Width, Height: meta.SizePx.Height},
			Opaque:  true,
			Opacity: 1,
		}
	}

	if c.primary != nil {
		plane := Plane{SurfaceID: c.primary.ID(), Role: RolePrimary, Hidden: true}
		if primaryCount == 1 {
			plane.Hidden = false
			plane.Config = ov[split-1]
		}
		record.Primary = &plane
	}

	c.logger.Debug("committing overlays",
		"frame", frameID,
		"viz_seq", meta.VizSeq,
		"above", above,
		"below", below,
		"pool", c.stack.Size(),
	)
	if err := c.presenter.Present(record); err != nil {
		return fmt.Errorf("presenting frame %d: %w", frameID, err)
	}
	return nil
}

// Destroy releases the pooled overlay surfaces. Root and primary surfaces
// belong to the window and are left alone.
func (c *Coordinator) Destroy() {
	c.stack.Destroy()
}
