package x11

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/BurntSushi/xgb/randr"

	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/output"
)

// baseDPI is the density that maps to scale 1.
const baseDPI = 96.0

// GetOutputs retrieves all active outputs using XRandR. The primary output,
// when the server names one, comes first.
func (c *Connection) GetOutputs() ([]output.Output, error) {
	conn := c.XUtil.Conn()
	resources, err := randr.GetScreenResources(conn, c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var primaryID uint32
	if primary, err := randr.GetOutputPrimary(conn, c.Root).Reply(); err == nil {
		primaryID = uint32(primary.Output)
	}

	var outputs []output.Output
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(conn, crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		out := output.Output{
			ID:   uint32(crtcInfo.Outputs[0]),
			Name: fmt.Sprintf("Monitor%d", i),
			Bounds: geometry.Rect{
				X:      int(crtcInfo.X),
				Y:      int(crtcInfo.Y),
				Width:  int(crtcInfo.Width),
				Height: int(crtcInfo.Height),
			},
			Scale: 1,
		}
		outputInfo, err := randr.GetOutputInfo(conn, crtcInfo.Outputs[0], resources.ConfigTimestamp).Reply()
		if err == nil {
			out.Name = string(outputInfo.Name)
			out.Scale = scaleForDensity(int(crtcInfo.Width), int(outputInfo.MmWidth))
		}
		outputs = append(outputs, out)
	}

	sortPrimaryFirst(outputs, primaryID)
	return outputs, nil
}

// scaleForDensity derives an output scale from its physical width, rounded
// to quarter steps and never below 1. Outputs that report no size get 1.
func scaleForDensity(widthPx, widthMM int) float32 {
	if widthPx <= 0 || widthMM <= 0 {
		return 1
	}
	dpi := float64(widthPx) * 25.4 / float64(widthMM)
	scale := math.Round(dpi/baseDPI*4) / 4
	if scale < 1 {
		return 1
	}
	return float32(scale)
}

func sortPrimaryFirst(outputs []output.Output, primaryID uint32) {
	if primaryID == 0 {
		return
	}
	idx := slices.IndexFunc(outputs, func(o output.Output) bool { return o.ID == primaryID })
	if idx <= 0 {
		return
	}
	primary := outputs[idx]
	copy(outputs[1:idx+1], outputs[:idx])
	outputs[0] = primary
}

// overlappingOutputs returns the IDs of outputs that intersect r.
func overlappingOutputs(outputs []output.Output, r geometry.Rect) map[uint32]bool {
	ids := make(map[uint32]bool)
	for _, o := range outputs {
		if !o.Bounds.Intersect(r).IsEmpty() {
			ids[o.ID] = true
		}
	}
	return ids
}

// outputCache is the live output registry, refreshed on RandR screen
// changes.
type outputCache struct {
	mu      sync.RWMutex
	outputs output.StaticRegistry
}

func (c *outputCache) Outputs() []output.Output {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.outputs)
}

func (c *outputCache) Primary() (output.Output, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.outputs.Primary()
}

func (c *outputCache) set(outputs []output.Output) {
	c.mu.Lock()
	c.outputs = outputs
	c.mu.Unlock()
}
