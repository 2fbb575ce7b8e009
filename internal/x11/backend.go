package x11

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"

	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/platform"
)

// ErrEventLoopExited is returned by Run when the X connection drops.
var ErrEventLoopExited = errors.New("x11: event loop exited")

// Backend implements platform.Backend on an X server.
type Backend struct {
	conn    *Connection
	logger  *slog.Logger
	outputs outputCache
	serial  atomic.Int64

	mu      sync.Mutex
	windows []*Window
}

// Open connects to the X server named by $DISPLAY.
func Open(logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := NewConnection()
	if err != nil {
		return nil, err
	}
	b := &Backend{conn: conn, logger: logger.With("backend", "x11")}
	if err := b.refreshOutputs(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := randr.SelectInputChecked(conn.XUtil.Conn(), conn.Root, randr.NotifyMaskScreenChange).Check(); err != nil {
		b.logger.Warn("failed to select RandR screen changes", "error", err)
	}
	xevent.HookFun(b.onEvent).Connect(conn.XUtil)
	return b, nil
}

func (b *Backend) Name() string { return "x11" }

func (b *Backend) Outputs() output.Registry { return &b.outputs }

func (b *Backend) refreshOutputs() error {
	outputs, err := b.conn.GetOutputs()
	if err != nil {
		return err
	}
	b.outputs.set(outputs)
	b.logger.Debug("outputs refreshed", "count", len(outputs))
	return nil
}

// onEvent watches for RandR changes before regular dispatch.
func (b *Backend) onEvent(_ *xgbutil.XUtil, ev interface{}) bool {
	if _, ok := ev.(randr.ScreenChangeNotifyEvent); !ok {
		return true
	}
	if err := b.refreshOutputs(); err != nil {
		b.logger.Error("failed to refresh outputs", "error", err)
		return true
	}
	b.mu.Lock()
	windows := slices.Clone(b.windows)
	b.mu.Unlock()
	for _, w := range windows {
		w.refreshOutputs()
	}
	return true
}

func (b *Backend) CreateWindow(opts platform.WindowOptions, events platform.Events) (platform.Window, error) {
	w, err := newWindow(b, opts, events)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.windows = append(b.windows, w)
	b.mu.Unlock()
	return w, nil
}

func (b *Backend) forget(w *Window) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.windows = slices.DeleteFunc(b.windows, func(o *Window) bool { return o == w })
}

func (b *Backend) nextSerial() int64 {
	return b.serial.Add(1)
}

// Run dispatches X events until ctx is cancelled or the connection drops.
func (b *Backend) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.conn.EventLoop()
		close(done)
	}()

	select {
	case <-ctx.Done():
		b.conn.Quit()
		b.conn.Close()
		<-done
		return ctx.Err()
	case <-done:
		return ErrEventLoopExited
	}
}

func (b *Backend) Close() error {
	b.conn.Close()
	return nil
}

var _ platform.Backend = (*Backend)(nil)
