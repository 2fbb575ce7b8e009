// Package mcp exposes the running daemon to MCP clients over stdio.
package mcp

import (
	"context"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/ipc"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/windowstate"
)

const (
	ServerName    = "winsync"
	ServerVersion = "0.1.0"
)

// Daemon is the part of the IPC client the tools use.
type Daemon interface {
	GetStatus() (*ipc.StatusData, error)
	GetOutputs() ([]output.Output, error)
	RequestBounds(bounds geometry.Rect) error
	SetWindowState(kind windowstate.Kind) error
	SimulateConfigure(p ipc.SimulateConfigurePayload) (int64, error)
	LoseProducer() error
}

// Server is the MCP server for a winsync daemon.
type Server struct {
	mcpServer *mcpsdk.Server
	daemon    Daemon
	logger    *slog.Logger
}

// NewServer creates a server forwarding tool calls to daemon.
func NewServer(daemon Daemon, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		daemon: daemon,
		logger: logger,
	}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "window_status",
		Description: "Report the window's applied and latched state, configure backpressure, the last acknowledged serial and frame counters.",
	}, s.handleWindowStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_outputs",
		Description: "List the outputs (monitors) known to the window system backend with their logical bounds and scale.",
	}, s.handleListOutputs)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "request_bounds",
		Description: "Ask the window to move or resize itself. Sizes are clamped to the window's minimum and maximum size.",
	}, s.handleRequestBounds)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "request_state",
		Description: "Switch the window to normal, minimized, maximized, fullscreen or tiled from the client side.",
	}, s.handleRequestState)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "simulate_configure",
		Description: "Inject a compositor configure (headless backend only) and return its serial. The serial is acknowledged once a frame for the new state is presented.",
	}, s.handleSimulateConfigure)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "lose_producer",
		Description: "Simulate a crash of the frame producer. Pending frames are dropped and every outstanding configure is latched.",
	}, s.handleLoseProducer)
}
