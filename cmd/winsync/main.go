package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/phsym/console-slog"
	"golang.org/x/term"

	"github.com/1broseidon/winsync/internal/config"
	"github.com/1broseidon/winsync/internal/daemon"
	"github.com/1broseidon/winsync/internal/ipc"
	"github.com/1broseidon/winsync/internal/runtimepath"
)

func main() {
	godotenv.Load()

	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "outputs":
		os.Exit(runOutputs(os.Args[2:]))
	case "resize":
		os.Exit(runResize(os.Args[2:]))
	case "state":
		os.Exit(runState(os.Args[2:]))
	case "configure":
		os.Exit(runConfigure(os.Args[2:]))
	case "lose-producer":
		os.Exit(runLoseProducer(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "trace":
		os.Exit(runTrace(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: winsync <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the winsync daemon (foreground)")
	fmt.Fprintln(w, "  status              Show window state and configure backpressure")
	fmt.Fprintln(w, "  outputs             List outputs known to the backend")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  resize              Request new window bounds")
	fmt.Fprintln(w, "  state               Request a window state (normal, maximized, ...)")
	fmt.Fprintln(w, "  configure           Inject a compositor configure (headless backend)")
	fmt.Fprintln(w, "  lose-producer       Simulate a frame producer crash")
	fmt.Fprintln(w, "  reload              Reload the daemon configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  trace sessions      List recorded daemon sessions")
	fmt.Fprintln(w, "  trace dump          Print the events of a session")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Show where non-default values come from")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  tui                 Open interactive TUI")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'winsync <command> --help' for command-specific options.")
}

// newLogger builds the process logger: colored console output on a
// terminal, JSON otherwise, unless format forces one of them.
func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	if format == "auto" || format == "" {
		format = "json"
		if term.IsTerminal(int(os.Stderr.Fd())) {
			format = "console"
		}
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	}
	return slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{Level: lvl}))
}

// clientFor returns an IPC client for the named daemon instance.
func clientFor(instance string) (*ipc.Client, error) {
	socket, err := runtimepath.SocketPathFor(instance)
	if err != nil {
		return nil, err
	}
	return ipc.NewClientFor(socket), nil
}

// loadConfig loads path, or the default config location when path is empty.
func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return config.LoadFromPath(path)
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winsync daemon [--path PATH] [--instance NAME]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Create the window and keep it synchronized with the compositor.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	path := fs.String("path", "", "Config file path (default: ~/.config/winsync/config.yaml)")
	instance := fs.String("instance", "", "Daemon instance name (default instance when empty)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	cfg := res.Config
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	socket, err := runtimepath.SocketPathFor(*instance)
	if err != nil {
		logger.Error("failed to resolve socket path", "error", err)
		return 1
	}
	if ipc.NewClientFor(socket).Ping() == nil {
		logger.Error("daemon already running", "socket", socket)
		return 1
	}

	logger.Info("configuration loaded", "path", res.Path, "backend", cfg.Backend, "title", cfg.Window.Title)

	d, err := daemon.New(daemon.Options{
		Config:     cfg,
		ConfigPath: res.Path,
		SocketPath: socket,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to start daemon", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		logger.Error("daemon stopped", "error", err)
		return 1
	}
	logger.Info("daemon stopped")
	return 0
}
