package mcp

import (
	"context"
	"errors"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/winsync/internal/configure"
	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/ipc"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/windowstate"
)

type fakeDaemon struct {
	status   ipc.StatusData
	outputs  []output.Output
	bounds   []geometry.Rect
	kinds    []windowstate.Kind
	configs  []ipc.SimulateConfigurePayload
	lost     int
	serial   int64
	failWith error
}

func (f *fakeDaemon) GetStatus() (*ipc.StatusData, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	st := f.status
	return &st, nil
}

func (f *fakeDaemon) GetOutputs() ([]output.Output, error) { return f.outputs, f.failWith }

func (f *fakeDaemon) RequestBounds(b geometry.Rect) error {
	f.bounds = append(f.bounds, b)
	return f.failWith
}

func (f *fakeDaemon) SetWindowState(k windowstate.Kind) error {
	f.kinds = append(f.kinds, k)
	return f.failWith
}

func (f *fakeDaemon) SimulateConfigure(p ipc.SimulateConfigurePayload) (int64, error) {
	f.configs = append(f.configs, p)
	f.serial++
	return f.serial, f.failWith
}

func (f *fakeDaemon) LoseProducer() error {
	f.lost++
	return f.failWith
}

func TestWindowStatus(t *testing.T) {
	applied := windowstate.Default()
	applied.BoundsDIP = geometry.Rect{Width: 640, Height: 480}
	applied.Tiled = windowstate.EdgeLeft | windowstate.EdgeBottom
	d := &fakeDaemon{status: ipc.StatusData{
		Backend:     "headless",
		Applied:     applied,
		Latched:     windowstate.Default(),
		Requests:    []configure.Request{{State: applied, Serial: 3, VizSeq: 1, Applied: true}},
		Outstanding: 1,
	}}
	s := NewServer(d, nil)

	_, out, err := s.handleWindowStatus(context.Background(), nil, WindowStatusInput{})
	if err != nil {
		t.Fatalf("window_status error: %v", err)
	}
	if out.Backend != "headless" || out.Outstanding != 1 || out.Applied.Kind != "normal" {
		t.Fatalf("output = %+v", out)
	}
	if len(out.Applied.Tiled) != 2 || out.Applied.Tiled[0] != "left" || out.Applied.Tiled[1] != "bottom" {
		t.Fatalf("tiled = %v", out.Applied.Tiled)
	}
	if out.Requests != nil {
		t.Fatalf("requests included without asking: %v", out.Requests)
	}
	if out.EnteredOutputs == nil {
		t.Fatal("entered outputs should be an empty list, not null")
	}

	_, out, err = s.handleWindowStatus(context.Background(), nil, WindowStatusInput{Requests: true})
	if err != nil || len(out.Requests) != 1 || out.Requests[0].Serial != 3 {
		t.Fatalf("requests = %+v, %v", out.Requests, err)
	}
}

func TestRequestTools(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		call    func(s *Server) error
		wantErr bool
		check   func(t *testing.T, d *fakeDaemon)
	}{
		{
			name: "bounds",
			call: func(s *Server) error {
				_, _, err := s.handleRequestBounds(ctx, nil, RequestBoundsInput{X: 4, Width: 300, Height: 200})
				return err
			},
			check: func(t *testing.T, d *fakeDaemon) {
				if len(d.bounds) != 1 || d.bounds[0] != (geometry.Rect{X: 4, Width: 300, Height: 200}) {
					t.Fatalf("bounds = %v", d.bounds)
				}
			},
		},
		{
			name: "empty bounds",
			call: func(s *Server) error {
				_, _, err := s.handleRequestBounds(ctx, nil, RequestBoundsInput{Width: 300})
				return err
			},
			wantErr: true,
		},
		{
			name: "state",
			call: func(s *Server) error {
				_, _, err := s.handleRequestState(ctx, nil, RequestStateInput{State: "Fullscreen"})
				return err
			},
			check: func(t *testing.T, d *fakeDaemon) {
				if len(d.kinds) != 1 || d.kinds[0] != windowstate.Fullscreen {
					t.Fatalf("kinds = %v", d.kinds)
				}
			},
		},
		{
			name: "bad state",
			call: func(s *Server) error {
				_, _, err := s.handleRequestState(ctx, nil, RequestStateInput{State: "rolled-up"})
				return err
			},
			wantErr: true,
		},
		{
			name: "simulate configure",
			call: func(s *Server) error {
				_, out, err := s.handleSimulateConfigure(ctx, nil, SimulateConfigureInput{
					Width: 800, Height: 600, State: "tiled", Tiled: []string{"left", "TOP"}, Activated: true,
				})
				if err == nil && out.Serial != 1 {
					return errors.New("unexpected serial")
				}
				return err
			},
			check: func(t *testing.T, d *fakeDaemon) {
				want := ipc.SimulateConfigurePayload{
					Size:      geometry.Size{Width: 800, Height: 600},
					Kind:      windowstate.Tiled,
					Tiled:     windowstate.EdgeLeft | windowstate.EdgeTop,
					Activated: true,
				}
				if len(d.configs) != 1 || d.configs[0] != want {
					t.Fatalf("configs = %+v", d.configs)
				}
			},
		},
		{
			name: "bad edge",
			call: func(s *Server) error {
				_, _, err := s.handleSimulateConfigure(ctx, nil, SimulateConfigureInput{Tiled: []string{"middle"}})
				return err
			},
			wantErr: true,
		},
		{
			name: "lose producer",
			call: func(s *Server) error {
				_, _, err := s.handleLoseProducer(ctx, nil, LoseProducerInput{})
				return err
			},
			check: func(t *testing.T, d *fakeDaemon) {
				if d.lost != 1 {
					t.Fatalf("lost = %d", d.lost)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDaemon{}
			err := tt.call(NewServer(d, nil))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, d)
			}
		})
	}
}

func TestDaemonErrorsPropagate(t *testing.T) {
	d := &fakeDaemon{failWith: errors.New("daemon error: window is not running")}
	s := NewServer(d, nil)
	if _, _, err := s.handleWindowStatus(context.Background(), nil, WindowStatusInput{}); err == nil {
		t.Fatal("window_status succeeded with a failing daemon")
	}
	if _, _, err := s.handleListOutputs(context.Background(), nil, ListOutputsInput{}); err == nil {
		t.Fatal("list_outputs succeeded with a failing daemon")
	}
}

func TestToolsOverInMemoryTransport(t *testing.T) {
	ctx := context.Background()
	d := &fakeDaemon{
		status:  ipc.StatusData{Backend: "headless", Applied: windowstate.Default(), Latched: windowstate.Default()},
		outputs: []output.Output{{ID: 1, Name: "HEADLESS-1", Bounds: geometry.Rect{Width: 1920, Height: 1080}, Scale: 1}},
	}
	s := NewServer(d, nil)

	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	if _, err := s.mcpServer.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server Connect error: %v", err)
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client Connect error: %v", err)
	}
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools error: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"window_status", "list_outputs", "request_bounds", "request_state", "simulate_configure", "lose_producer"} {
		if !names[want] {
			t.Fatalf("tool %q not registered", want)
		}
	}

	for _, name := range []string{"window_status", "list_outputs"} {
		res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: map[string]any{}})
		if err != nil {
			t.Fatalf("CallTool(%s) error: %v", name, err)
		}
		if res.IsError {
			t.Fatalf("CallTool(%s) returned a tool error: %+v", name, res.Content)
		}
	}
}
