package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/winsync/internal/configure"
	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/platform"
	"github.com/1broseidon/winsync/internal/windowstate"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload            CommandType = "RELOAD"
	CommandGetStatus         CommandType = "GET_STATUS"
	CommandGetOutputs        CommandType = "GET_OUTPUTS"
	CommandRequestBounds     CommandType = "REQUEST_BOUNDS"
	CommandSetWindowState    CommandType = "SET_WINDOW_STATE"
	CommandSimulateConfigure CommandType = "SIMULATE_CONFIGURE"
	CommandLoseProducer      CommandType = "LOSE_PRODUCER"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	Backend         string              `json:"backend"`
	Title           string              `json:"title"`
	UptimeSeconds   int64               `json:"uptime_seconds"`
	Applied         windowstate.State   `json:"applied"`
	Latched         windowstate.State   `json:"latched"`
	Requests        []configure.Request `json:"requests"`
	Outstanding     int                 `json:"outstanding"`
	MaxOutstanding  int                 `json:"max_outstanding"`
	LastAckedSerial int64               `json:"last_acked_serial"`
	ProducedSeq     int64               `json:"produced_seq"`
	FramesPresented int                 `json:"frames_presented"`
	OverlaySurfaces int                 `json:"overlay_surfaces"`
	EnteredOutputs  []uint32            `json:"entered_outputs"`
	PreferredScale  float32             `json:"preferred_scale"`
	Activated       bool                `json:"activated"`
	TraceSession    string              `json:"trace_session,omitempty"`
	TraceDropped    int64               `json:"trace_dropped,omitempty"`
}

// OutputsData represents the data returned by GET_OUTPUTS
type OutputsData struct {
	Outputs []output.Output `json:"outputs"`
}

// RequestBoundsPayload asks the window to change its bounds on its own
// initiative.
type RequestBoundsPayload struct {
	Bounds geometry.Rect `json:"bounds"`
}

// SetWindowStatePayload asks the window to switch kind.
type SetWindowStatePayload struct {
	Kind windowstate.Kind `json:"kind"`
}

// SimulateConfigurePayload injects a compositor configure on backends that
// support it.
type SimulateConfigurePayload struct {
	Size      geometry.Size          `json:"size"`
	Kind      windowstate.Kind       `json:"kind"`
	Tiled     windowstate.TiledEdges `json:"tiled,omitempty"`
	Suspended bool                   `json:"suspended,omitempty"`
	Activated bool                   `json:"activated,omitempty"`
}

// ToplevelConfigure converts the payload for the backend.
func (p SimulateConfigurePayload) ToplevelConfigure() platform.ToplevelConfigure {
	return platform.ToplevelConfigure{
		Size:      p.Size,
		Kind:      p.Kind,
		Tiled:     p.Tiled,
		Suspended: p.Suspended,
		Activated: p.Activated,
	}
}

// SimulateConfigureData reports the serial the simulated configure used.
type SimulateConfigureData struct {
	Serial int64 `json:"serial"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
