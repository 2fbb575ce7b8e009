package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/windowstate"
)

// Controller is the daemon side of every command. Implementations must be
// safe for concurrent use.
type Controller interface {
	Status(ctx context.Context) (StatusData, error)
	Outputs(ctx context.Context) ([]output.Output, error)
	RequestBounds(ctx context.Context, bounds geometry.Rect) error
	SetWindowState(ctx context.Context, kind windowstate.Kind) error
	SimulateConfigure(ctx context.Context, p SimulateConfigurePayload) (int64, error)
	LoseProducer(ctx context.Context) error
	Reload(ctx context.Context) error
}

// Server handles IPC requests from clients
type Server struct {
	socketPath string
	ctrl       Controller
	logger     *slog.Logger
	timeout    time.Duration

	mu           sync.Mutex
	listener     net.Listener
	shuttingDown bool
	conns        sync.WaitGroup
}

// NewServer creates a new IPC server on socketPath.
func NewServer(socketPath string, ctrl Controller, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		ctrl:       ctrl,
		logger:     logger.With("component", "ipc"),
		timeout:    5 * time.Second,
	}
}

func (s *Server) String() string { return "ipc-server" }

// Start begins listening for IPC connections
func (s *Server) Start() error {
	// Remove a stale socket left by a crashed daemon.
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.shuttingDown = false
	s.mu.Unlock()

	s.logger.Info("IPC server listening", "socket", s.socketPath)
	return nil
}

// Serve starts the server and accepts connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	err := s.acceptLoop(ctx)
	s.conns.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shuttingDown := s.shuttingDown
			s.mu.Unlock()
			if shuttingDown || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(s.timeout))

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", "error", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.send(conn, NewErrorResponse(fmt.Sprintf("Invalid request: %v", err)))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	s.send(conn, s.handleCommand(reqCtx, req))
}

func (s *Server) send(conn net.Conn, resp *Response) {
	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		return
	}
	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("failed to send response", "error", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(ctx context.Context, req *Request) *Response {
	s.logger.Debug("IPC command", "command", req.Command)
	switch req.Command {
	case CommandReload:
		return result(nil, s.ctrl.Reload(ctx))
	case CommandGetStatus:
		status, err := s.ctrl.Status(ctx)
		return result(status, err)
	case CommandGetOutputs:
		outputs, err := s.ctrl.Outputs(ctx)
		return result(OutputsData{Outputs: outputs}, err)
	case CommandRequestBounds:
		var p RequestBoundsPayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid bounds payload: %v", err))
		}
		if p.Bounds.IsEmpty() {
			return NewErrorResponse("bounds must have a positive size")
		}
		return result(nil, s.ctrl.RequestBounds(ctx, p.Bounds))
	case CommandSetWindowState:
		var p SetWindowStatePayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid state payload: %v", err))
		}
		return result(nil, s.ctrl.SetWindowState(ctx, p.Kind))
	case CommandSimulateConfigure:
		var p SimulateConfigurePayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid configure payload: %v", err))
		}
		serial, err := s.ctrl.SimulateConfigure(ctx, p)
		return result(SimulateConfigureData{Serial: serial}, err)
	case CommandLoseProducer:
		return result(nil, s.ctrl.LoseProducer(ctx))
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func result(data interface{}, err error) *Response {
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, err := NewOKResponse(data)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shuttingDown {
		return
	}
	s.shuttingDown = true

	if s.listener != nil {
		s.listener.Close()
	}
	os.Remove(s.socketPath)
}
