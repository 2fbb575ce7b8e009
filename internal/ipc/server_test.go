package ipc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/1broseidon/winsync/internal/configure"
	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/windowstate"
)

type fakeController struct {
	mu        sync.Mutex
	bounds    []geometry.Rect
	kinds     []windowstate.Kind
	simulated []SimulateConfigurePayload
	lost      int
	reloads   int
	reloadErr error
}

func (f *fakeController) Status(context.Context) (StatusData, error) {
	latched := windowstate.Default()
	latched.BoundsDIP = geometry.Rect{Width: 640, Height: 480}
	return StatusData{
		Backend:         "headless",
		Latched:         latched,
		Requests:        []configure.Request{{State: latched, Serial: 3, VizSeq: 2, Applied: true}},
		LastAckedSerial: 3,
	}, nil
}

func (f *fakeController) Outputs(context.Context) ([]output.Output, error) {
	return []output.Output{{ID: 1, Name: "HEADLESS-1", Scale: 2}}, nil
}

func (f *fakeController) RequestBounds(_ context.Context, r geometry.Rect) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bounds = append(f.bounds, r)
	return nil
}

func (f *fakeController) SetWindowState(_ context.Context, k windowstate.Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, k)
	return nil
}

func (f *fakeController) SimulateConfigure(_ context.Context, p SimulateConfigurePayload) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.simulated = append(f.simulated, p)
	return int64(len(f.simulated)), nil
}

func (f *fakeController) LoseProducer(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lost++
	return nil
}

func (f *fakeController) Reload(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return f.reloadErr
}

func startServer(t *testing.T, ctrl Controller) *Client {
	t.Helper()
	dir, err := os.MkdirTemp("", "winsync-ipc")
	if err != nil {
		t.Fatalf("MkdirTemp error: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	socket := filepath.Join(dir, "test.sock")

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(socket, ctrl, nil)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})

	client := NewClientFor(socket)
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(socket); err == nil {
			return client
		}
		if time.Now().After(deadline) {
			t.Fatal("server socket never appeared")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClientServerRoundTrip(t *testing.T) {
	ctrl := &fakeController{}
	client := startServer(t, ctrl)

	status, err := client.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus error: %v", err)
	}
	if status.Backend != "headless" || status.LastAckedSerial != 3 {
		t.Fatalf("status = %+v", status)
	}
	if status.Latched.Kind != windowstate.Normal || len(status.Requests) != 1 {
		t.Fatalf("status state = %+v", status)
	}

	outputs, err := client.GetOutputs()
	if err != nil || len(outputs) != 1 || outputs[0].Scale != 2 {
		t.Fatalf("GetOutputs = %+v, %v", outputs, err)
	}

	want := geometry.Rect{X: 1, Y: 2, Width: 300, Height: 200}
	if err := client.RequestBounds(want); err != nil {
		t.Fatalf("RequestBounds error: %v", err)
	}
	if err := client.SetWindowState(windowstate.Fullscreen); err != nil {
		t.Fatalf("SetWindowState error: %v", err)
	}
	serial, err := client.SimulateConfigure(SimulateConfigurePayload{Size: geometry.Size{Width: 10, Height: 10}, Kind: windowstate.Maximized})
	if err != nil || serial != 1 {
		t.Fatalf("SimulateConfigure = %d, %v", serial, err)
	}
	if err := client.LoseProducer(); err != nil {
		t.Fatalf("LoseProducer error: %v", err)
	}

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if len(ctrl.bounds) != 1 || ctrl.bounds[0] != want {
		t.Fatalf("bounds = %v", ctrl.bounds)
	}
	if len(ctrl.kinds) != 1 || ctrl.kinds[0] != windowstate.Fullscreen {
		t.Fatalf("kinds = %v", ctrl.kinds)
	}
	if ctrl.simulated[0].Kind != windowstate.Maximized {
		t.Fatalf("simulated = %+v", ctrl.simulated)
	}
	if ctrl.lost != 1 {
		t.Fatalf("lost = %d", ctrl.lost)
	}
}

func TestServerErrors(t *testing.T) {
	ctrl := &fakeController{reloadErr: errors.New("bad config")}
	client := startServer(t, ctrl)

	tests := []struct {
		name    string
		call    func() error
		wantMsg string
	}{
		{name: "controller error", call: client.Reload, wantMsg: "bad config"},
		{name: "empty bounds", call: func() error { return client.RequestBounds(geometry.Rect{}) }, wantMsg: "positive size"},
		{name: "unknown command", call: func() error { return client.command("NOPE", nil, nil) }, wantMsg: "Unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error = %v, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestClientWithoutDaemon(t *testing.T) {
	client := NewClientFor(filepath.Join(t.TempDir(), "missing.sock"))
	if err := client.Ping(); err == nil {
		t.Fatal("Ping succeeded without a daemon")
	}
}
