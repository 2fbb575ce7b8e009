package mcp

import (
	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/output"
)

// WindowStatusInput is the input for the window_status tool.
type WindowStatusInput struct {
	Requests bool `json:"requests,omitempty" jsonschema:"Include the queued configure requests (default: false)"`
}

// StateInfo is a window state flattened for tool output.
type StateInfo struct {
	Kind        string        `json:"kind"`
	Bounds      geometry.Rect `json:"bounds"`
	SizePx      geometry.Size `json:"size_px"`
	WindowScale float32       `json:"window_scale"`
	Occlusion   string        `json:"occlusion"`
	Tiled       []string      `json:"tiled,omitempty"`
	Suspended   bool          `json:"suspended,omitempty"`
}

// RequestInfo is one queued configure request.
type RequestInfo struct {
	Serial  int64     `json:"serial"`
	VizSeq  int64     `json:"viz_seq"`
	Applied bool      `json:"applied"`
	State   StateInfo `json:"state"`
}

// WindowStatusOutput is the output for the window_status tool.
type WindowStatusOutput struct {
	Backend         string        `json:"backend"`
	Title           string        `json:"title"`
	Applied         StateInfo     `json:"applied"`
	Latched         StateInfo     `json:"latched"`
	Outstanding     int           `json:"outstanding"`
	MaxOutstanding  int           `json:"max_outstanding"`
	LastAckedSerial int64         `json:"last_acked_serial"`
	ProducedSeq     int64         `json:"produced_seq"`
	FramesPresented int           `json:"frames_presented"`
	OverlaySurfaces int           `json:"overlay_surfaces"`
	EnteredOutputs  []uint32      `json:"entered_outputs"`
	PreferredScale  float32       `json:"preferred_scale"`
	Requests        []RequestInfo `json:"requests,omitempty"`
}

// ListOutputsInput is the input for the list_outputs tool.
type ListOutputsInput struct{}

// ListOutputsOutput is the output for the list_outputs tool.
type ListOutputsOutput struct {
	Outputs []output.Output `json:"outputs"`
}

// RequestBoundsInput is the input for the request_bounds tool.
type RequestBoundsInput struct {
	X      int `json:"x,omitempty" jsonschema:"Left edge in DIP (default: 0)"`
	Y      int `json:"y,omitempty" jsonschema:"Top edge in DIP (default: 0)"`
	Width  int `json:"width" jsonschema:"Width in DIP, must be positive"`
	Height int `json:"height" jsonschema:"Height in DIP, must be positive"`
}

// RequestStateInput is the input for the request_state tool.
type RequestStateInput struct {
	State string `json:"state" jsonschema:"Target window state: normal, minimized, maximized, fullscreen or tiled"`
}

// SimulateConfigureInput is the input for the simulate_configure tool.
type SimulateConfigureInput struct {
	Width     int      `json:"width,omitempty" jsonschema:"Suggested width in DIP; 0 lets the client choose"`
	Height    int      `json:"height,omitempty" jsonschema:"Suggested height in DIP; 0 lets the client choose"`
	State     string   `json:"state,omitempty" jsonschema:"Window state announced by the compositor (default: normal)"`
	Tiled     []string `json:"tiled,omitempty" jsonschema:"Tiled edges: left, right, top, bottom"`
	Suspended bool     `json:"suspended,omitempty" jsonschema:"Mark the window as suspended"`
	Activated bool     `json:"activated,omitempty" jsonschema:"Mark the window as focused"`
}

// SimulateConfigureOutput is the output for the simulate_configure tool.
type SimulateConfigureOutput struct {
	Serial int64 `json:"serial"`
}

// LoseProducerInput is the input for the lose_producer tool.
type LoseProducerInput struct{}

// ActionOutput acknowledges a tool that only triggers an action.
type ActionOutput struct {
	Status string `json:"status"`
}
