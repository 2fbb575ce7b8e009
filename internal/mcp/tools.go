package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/winsync/internal/configure"
	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/ipc"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/windowstate"
)

func stateInfo(s windowstate.State) StateInfo {
	return StateInfo{
		Kind:        s.Kind.String(),
		Bounds:      s.BoundsDIP,
		SizePx:      s.SizePx,
		WindowScale: s.WindowScale,
		Occlusion:   s.Occlusion.String(),
		Tiled:       s.Tiled.Names(),
		Suspended:   s.Suspended,
	}
}

func requestInfo(r configure.Request) RequestInfo {
	return RequestInfo{
		Serial:  r.Serial,
		VizSeq:  r.VizSeq,
		Applied: r.Applied,
		State:   stateInfo(r.State),
	}
}

func (s *Server) handleWindowStatus(_ context.Context, _ *mcpsdk.CallToolRequest, args WindowStatusInput) (*mcpsdk.CallToolResult, WindowStatusOutput, error) {
	st, err := s.daemon.GetStatus()
	if err != nil {
		return nil, WindowStatusOutput{}, err
	}
	out := WindowStatusOutput{
		Backend:         st.Backend,
		Title:           st.Title,
		Applied:         stateInfo(st.Applied),
		Latched:         stateInfo(st.Latched),
		Outstanding:     st.Outstanding,
		MaxOutstanding:  st.MaxOutstanding,
		LastAckedSerial: st.LastAckedSerial,
		ProducedSeq:     st.ProducedSeq,
		FramesPresented: st.FramesPresented,
		OverlaySurfaces: st.OverlaySurfaces,
		EnteredOutputs:  st.EnteredOutputs,
		PreferredScale:  st.PreferredScale,
	}
	if out.EnteredOutputs == nil {
		out.EnteredOutputs = []uint32{}
	}
	if args.Requests {
		for _, r := range st.Requests {
			out.Requests = append(out.Requests, requestInfo(r))
		}
	}
	return nil, out, nil
}

func (s *Server) handleListOutputs(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListOutputsInput) (*mcpsdk.CallToolResult, ListOutputsOutput, error) {
	outputs, err := s.daemon.GetOutputs()
	if err != nil {
		return nil, ListOutputsOutput{}, err
	}
	if outputs == nil {
		outputs = []output.Output{}
	}
	return nil, ListOutputsOutput{Outputs: outputs}, nil
}

func (s *Server) handleRequestBounds(_ context.Context, _ *mcpsdk.CallToolRequest, args RequestBoundsInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	bounds := geometry.Rect{X: args.X, Y: args.Y, Width: args.Width, Height: args.Height}
	if bounds.IsEmpty() {
		return nil, ActionOutput{}, fmt.Errorf("width and height must be positive, got %s", bounds.Size())
	}
	if err := s.daemon.RequestBounds(bounds); err != nil {
		return nil, ActionOutput{}, err
	}
	s.logger.Debug("mcp request_bounds", "bounds", bounds.String())
	return nil, ActionOutput{Status: "requested " + bounds.String()}, nil
}

func (s *Server) handleRequestState(_ context.Context, _ *mcpsdk.CallToolRequest, args RequestStateInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	kind, err := windowstate.ParseKind(args.State)
	if err != nil {
		return nil, ActionOutput{}, err
	}
	if err := s.daemon.SetWindowState(kind); err != nil {
		return nil, ActionOutput{}, err
	}
	s.logger.Debug("mcp request_state", "state", kind.String())
	return nil, ActionOutput{Status: "requested " + kind.String()}, nil
}

func (s *Server) handleSimulateConfigure(_ context.Context, _ *mcpsdk.CallToolRequest, args SimulateConfigureInput) (*mcpsdk.CallToolResult, SimulateConfigureOutput, error) {
	kind := windowstate.Normal
	if args.State != "" {
		var err error
		if kind, err = windowstate.ParseKind(args.State); err != nil {
			return nil, SimulateConfigureOutput{}, err
		}
	}
	edges, err := windowstate.ParseEdges(args.Tiled)
	if err != nil {
		return nil, SimulateConfigureOutput{}, err
	}
	if args.Width < 0 || args.Height < 0 {
		return nil, SimulateConfigureOutput{}, fmt.Errorf("width and height must not be negative")
	}

	serial, err := s.daemon.SimulateConfigure(ipc.SimulateConfigurePayload{
		Size:      geometry.Size{Width: args.Width, Height: args.Height},
		Kind:      kind,
		Tiled:     edges,
		Suspended: args.Suspended,
		Activated: args.Activated,
	})
	if err != nil {
		return nil, SimulateConfigureOutput{}, err
	}
	return nil, SimulateConfigureOutput{Serial: serial}, nil
}

func (s *Server) handleLoseProducer(_ context.Context, _ *mcpsdk.CallToolRequest, _ LoseProducerInput) (*mcpsdk.CallToolResult, ActionOutput, error) {
	if err := s.daemon.LoseProducer(); err != nil {
		return nil, ActionOutput{}, err
	}
	s.logger.Info("mcp simulated frame producer loss")
	return nil, ActionOutput{Status: "producer lost"}, nil
}
