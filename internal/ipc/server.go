package ipc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/1broseidon/replybot/internal/loop"
	"github.com/1broseidon/replybot/internal/runtimepath"
)

// Controller is the reply loop as seen by the IPC server.
type Controller interface {
	Snapshot() loop.Snapshot
	Pause()
	Resume()
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	ctrl         Controller
	reload       func() error
	logger       *zap.Logger
	startTime    time.Time
	shuttingDown bool
	shutdownMu   sync.Mutex
	wg           sync.WaitGroup
}

// NewServer creates an IPC server on the default runtime socket. reload is
// called for RELOAD and should re-read and apply the configuration.
func NewServer(ctrl Controller, reload func() error, logger *zap.Logger) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}
	return NewServerAt(socketPath, ctrl, reload, logger), nil
}

// NewServerAt creates an IPC server on an explicit socket path.
func NewServerAt(socketPath string, ctrl Controller, reload func() error, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		socketPath: socketPath,
		ctrl:       ctrl,
		reload:     reload,
		logger:     logger,
		startTime:  time.Now(),
	}
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	// Remove a stale socket left by a crashed run; refuse if one is live.
	if conn, err := net.DialTimeout("unix", s.socketPath, 200*time.Millisecond); err == nil {
		conn.Close()
		return fmt.Errorf("another replybot is already listening on %s", s.socketPath)
	}
	os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", zap.String("socket", s.socketPath))

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Serve starts the server and blocks until ctx is done, then stops it.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			s.logger.Warn("IPC accept error", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))

	reader := bufio.NewReader(conn)

	// Read the request (expect JSON on a single line)
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		s.logger.Warn("IPC read error", zap.Error(err))
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendResponse(conn, NewErrorResponse(fmt.Sprintf("Invalid request: %v", err)))
		return
	}

	s.logger.Debug("IPC request", zap.String("command", string(req.Command)))
	s.sendResponse(conn, s.handleCommand(req))
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	switch req.Command {
	case CommandGetStatus:
		return s.statusResponse()
	case CommandPause:
		s.ctrl.Pause()
		return s.statusResponse()
	case CommandResume:
		s.ctrl.Resume()
		return s.statusResponse()
	case CommandReload:
		return s.handleReload()
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleReload() *Response {
	if s.reload == nil {
		return NewErrorResponse("reload is not supported")
	}
	if err := s.reload(); err != nil {
		return NewErrorResponse(fmt.Sprintf("Reload failed: %v", err))
	}
	resp, err := NewOKResponse(nil)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) statusResponse() *Response {
	status := StatusData{
		Snapshot:      s.ctrl.Snapshot(),
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}
	resp, err := NewOKResponse(status)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) sendResponse(conn net.Conn, resp *Response) {
	respData, err := resp.Marshal()
	if err != nil {
		s.logger.Warn("failed to marshal IPC response", zap.Error(err))
		return
	}
	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		s.logger.Warn("failed to send IPC response", zap.Error(err))
	}
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	if s.shuttingDown {
		s.shutdownMu.Unlock()
		return
	}
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

// SocketPath returns the socket the server listens on.
func (s *Server) SocketPath() string {
	return s.socketPath
}
