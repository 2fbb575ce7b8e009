// Package daemon runs one synchronized window: it owns the backend
// connection, the engine's task runner and the supervised services around
// them, and answers IPC commands.
package daemon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/winsync/internal/config"
	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/ipc"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/platform"
	"github.com/1broseidon/winsync/internal/sequence"
	"github.com/1broseidon/winsync/internal/trace"
	"github.com/1broseidon/winsync/internal/windowstate"
)

const teardownTimeout = 5 * time.Second

// Options configures a Daemon.
type Options struct {
	Config *config.Config
	// ConfigPath is reread by Reload. Empty disables reloading.
	ConfigPath string
	SocketPath string
	// Backend overrides the backend selected by Config.
	Backend platform.Backend
	Logger  *slog.Logger
}

// Daemon hosts a Session and its services.
type Daemon struct {
	configPath string
	socketPath string
	logger     *slog.Logger

	backend platform.Backend
	runner  *sequence.Loop
	db      *sql.DB
	journal *trace.Journal
	session *Session
	started time.Time

	mu  sync.Mutex
	cfg *config.Config
}

// New connects to the window system and opens the trace journal. Run starts
// the window.
func New(opts Options) (*Daemon, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	d := &Daemon{
		configPath: opts.ConfigPath,
		socketPath: opts.SocketPath,
		logger:     logger,
		backend:    opts.Backend,
		runner:     sequence.NewLoop("engine"),
		cfg:        cfg,
	}
	if d.backend == nil {
		backend, err := OpenBackend(cfg, logger)
		if err != nil {
			return nil, err
		}
		d.backend = backend
	}

	if cfg.Trace.Enabled {
		if err := d.openTrace(cfg); err != nil {
			d.backend.Close()
			return nil, err
		}
	}
	return d, nil
}

func (d *Daemon) openTrace(cfg *config.Config) error {
	path, err := cfg.TracePath()
	if err != nil {
		return err
	}
	db, err := trace.Open(path)
	if err != nil {
		return err
	}
	journal, err := trace.NewJournal(context.Background(), db, d.backend.Name(), cfg.Window.Title, d.logger.With("component", "trace"))
	if err != nil {
		db.Close()
		return err
	}
	d.db = db
	d.journal = journal
	d.logger.Info("tracing enabled", "path", path, "session", journal.SessionID())
	return nil
}

// Run creates the window and serves until ctx is cancelled, the window
// system closes the window or the backend connection fails. Run may be
// called once.
func (d *Daemon) Run(ctx context.Context) error {
	d.started = time.Now()
	cfg := d.config()
	if d.db != nil {
		defer d.db.Close()
	}

	// The runner and the backend outlive the supervised services so the
	// window can be torn down after they stop.
	loopCtx, stopLoop := context.WithCancel(context.WithoutCancel(ctx))
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		d.runner.Serve(loopCtx)
	}()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	backendCtx, stopBackend := context.WithCancel(context.WithoutCancel(ctx))
	backendErr := make(chan error, 1)
	go func() { backendErr <- d.backend.Run(backendCtx) }()
	defer d.backend.Close()
	defer stopBackend()

	var sessionErr error
	err := sequence.Do(ctx, d.runner, func() {
		d.session, sessionErr = NewSession(SessionOptions{
			Runner:   d.runner,
			Backend:  d.backend,
			Window:   cfg.Window,
			Engine:   cfg.Engine,
			Renderer: cfg.Renderer,
			Journal:  d.journal,
			Logger:   d.logger,
		})
	})
	if err == nil {
		err = sessionErr
	}
	if err != nil {
		return err
	}
	defer d.teardown()

	supCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sup := newSupervisor(d.logger)
	add(sup, d.session.Renderer())
	if d.journal != nil {
		add(sup, d.journal)
	}
	add(sup, ipc.NewServer(d.socketPath, d, d.logger))
	supErr := sup.ServeBackground(supCtx)

	d.logger.Info("daemon running", "backend", d.backend.Name(), "socket", d.socketPath)

	var runErr error
	select {
	case <-ctx.Done():
		d.logger.Info("shutting down")
	case <-d.session.Closed():
		d.logger.Info("window closed by the window system")
	case err := <-backendErr:
		if err == nil {
			err = errors.New("connection closed")
		}
		runErr = fmt.Errorf("%s backend stopped: %w", d.backend.Name(), err)
	}
	cancel()
	if err := <-supErr; err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Debug("supervisor stopped", "error", err)
	}
	return runErr
}

func (d *Daemon) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if err := sequence.Do(ctx, d.runner, d.session.Close); err != nil {
		d.logger.Warn("failed to destroy window", "error", err)
	}
}

func (d *Daemon) config() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// onSession runs fn against the session on the engine runner.
func (d *Daemon) onSession(ctx context.Context, fn func(s *Session) error) error {
	var fnErr error
	if err := sequence.Do(ctx, d.runner, func() {
		if d.session == nil || !d.session.alive() {
			fnErr = errors.New("window is not running")
			return
		}
		fnErr = fn(d.session)
	}); err != nil {
		return err
	}
	return fnErr
}

func (d *Daemon) Status(ctx context.Context) (ipc.StatusData, error) {
	var status ipc.StatusData
	err := d.onSession(ctx, func(s *Session) error {
		status = s.status()
		return nil
	})
	if err != nil {
		return ipc.StatusData{}, err
	}
	status.Backend = d.backend.Name()
	status.UptimeSeconds = int64(time.Since(d.started).Seconds())
	if d.journal != nil {
		status.TraceSession = d.journal.SessionID()
		status.TraceDropped = d.journal.Dropped()
	}
	return status, nil
}

func (d *Daemon) Outputs(ctx context.Context) ([]output.Output, error) {
	return d.backend.Outputs().Outputs(), nil
}

func (d *Daemon) RequestBounds(ctx context.Context, bounds geometry.Rect) error {
	return d.onSession(ctx, func(s *Session) error {
		s.RequestBounds(bounds)
		return nil
	})
}

func (d *Daemon) SetWindowState(ctx context.Context, kind windowstate.Kind) error {
	return d.onSession(ctx, func(s *Session) error {
		return s.SetKind(kind)
	})
}

func (d *Daemon) SimulateConfigure(ctx context.Context, p ipc.SimulateConfigurePayload) (int64, error) {
	var serial int64
	err := d.onSession(ctx, func(s *Session) error {
		var err error
		serial, err = s.SimulateConfigure(p.ToplevelConfigure())
		return err
	})
	return serial, err
}

func (d *Daemon) LoseProducer(ctx context.Context) error {
	return d.onSession(ctx, func(s *Session) error {
		s.Renderer().SimulateLoss()
		return nil
	})
}

// Reload rereads the config file. Keys for which config.AppliesLive holds
// are pushed to the window; other changes are logged as needing a restart.
func (d *Daemon) Reload(ctx context.Context) error {
	if d.configPath == "" {
		return errors.New("daemon was started without a config file")
	}
	res, err := config.LoadFromPath(d.configPath)
	if err != nil {
		return err
	}
	next := res.Config

	d.mu.Lock()
	prev := d.cfg
	d.cfg = next
	d.mu.Unlock()

	err = d.onSession(ctx, func(s *Session) error {
		s.SetFrameInsets(next.Window.FrameInsets)
		if next.Window.Title == prev.Window.Title {
			return nil
		}
		return s.SetTitle(next.Window.Title)
	})
	if err != nil {
		return err
	}
	changes, err := config.Diff(prev, next)
	if err != nil {
		return err
	}
	var pending []string
	for _, c := range changes {
		if !c.Live {
			pending = append(pending, c.Path)
		}
	}
	if len(pending) > 0 {
		d.logger.Warn("config changes take effect after a restart", "keys", pending)
	}
	d.logger.Info("config reloaded", "path", d.configPath, "changes", len(changes))
	return nil
}

var _ ipc.Controller = (*Daemon)(nil)
