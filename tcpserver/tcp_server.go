package tcpserver

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/minesweeper/logger"
	"github.com/cyberinferno/minesweeper/safemap"
)

// ErrServerRunning is returned when Listen is called on a server that is already listening.
var ErrServerRunning = errors.New("server already running")

const maxAcceptBackoff = time.Second

// NewSessionFunc creates the session for a freshly accepted connection. It
// receives the assigned session ID and the connection, and must not block.
type NewSessionFunc func(id uint32, conn net.Conn) TCPServerSession

// TCPServer accepts connections and runs each one as a session in its own
// goroutine. Sessions are registered by ID before their handler starts and
// removed as soon as the handler returns, so Sessions.Len() is the number of
// live connections.
type TCPServer struct {
	Logger     logger.Logger
	Name       string
	Addr       string
	NewSession NewSessionFunc
	Sessions   *safemap.SafeMap[uint32, TCPServerSession]

	mu       sync.Mutex
	listener net.Listener
	running  atomic.Bool
	nextID   atomic.Uint32
	accepts  sync.WaitGroup
	handlers sync.WaitGroup
}

// NewTCPServer returns a server ready to Listen on addr.
//
// Parameters:
//   - name: Name used in log messages
//   - addr: "host:port" to listen on; port 0 picks a free port
//   - newSession: Factory for per-connection sessions
//   - l: Logger for server lifecycle and accept errors
//
// Returns:
//   - The configured, not yet listening server
func NewTCPServer(name, addr string, newSession NewSessionFunc, l logger.Logger) *TCPServer {
	return &TCPServer{
		Logger:     l,
		Name:       name,
		Addr:       addr,
		NewSession: newSession,
		Sessions:   safemap.NewSafeMap[uint32, TCPServerSession](),
	}
}

// Listen binds Addr. It is an error to call it while the server is running.
//
// Returns:
//   - ErrServerRunning, or a wrapped listen error
func (s *TCPServer) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return fmt.Errorf("%s: %w", s.Name, ErrServerRunning)
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.Logger.Error("server failed to start", logger.Field{Key: "error", Value: err})
		return fmt.Errorf("server %s failed to start: %w", s.Name, err)
	}

	s.listener = ln
	s.running.Store(true)
	s.Logger.Info(fmt.Sprintf("%s server started", s.Name), logger.Field{Key: "addr", Value: ln.Addr().String()})

	return nil
}

// Start binds Addr and runs the accept loop in a goroutine. A fatal accept
// error is logged; use ListenAndServe to receive it instead.
func (s *TCPServer) Start() error {
	if err := s.Listen(); err != nil {
		return err
	}

	ln, err := s.acquireListener()
	if err != nil {
		return err
	}

	go func() {
		if err := s.serve(ln); err != nil {
			s.Logger.Error(fmt.Sprintf("%s server stopped accepting", s.Name), logger.Field{Key: "error", Value: err})
		}
	}()

	return nil
}

// ListenAndServe binds Addr and runs the accept loop until Stop is called or
// accepting fails for good.
//
// Returns:
//   - nil after Stop, otherwise the listen or accept error
func (s *TCPServer) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}

	ln, err := s.acquireListener()
	if err != nil {
		return err
	}

	return s.serve(ln)
}

// Serve accepts connections on the bound listener. Temporary accept errors
// are logged and retried with backoff; errors from individual sessions never
// reach this loop.
//
// Returns:
//   - nil once Stop closed the listener, otherwise the fatal accept error
func (s *TCPServer) Serve() error {
	ln, err := s.acquireListener()
	if err != nil {
		return err
	}

	return s.serve(ln)
}

// acquireListener registers an accept loop with Stop before it starts. The
// registration happens under mu so Stop never waits on a counter that is
// still being incremented.
func (s *TCPServer) acquireListener() (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil || !s.running.Load() {
		return nil, fmt.Errorf("server %s is not listening", s.Name)
	}

	s.accepts.Add(1)
	return s.listener, nil
}

// serve runs the accept loop; the caller has already counted it in accepts.
func (s *TCPServer) serve(ln net.Listener) error {
	defer s.accepts.Done()

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}

			if !isTemporary(err) {
				s.Logger.Error(fmt.Sprintf("%s server accept failed", s.Name), logger.Field{Key: "error", Value: err})
				return fmt.Errorf("server %s accept: %w", s.Name, err)
			}

			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}

			s.Logger.Warn(fmt.Sprintf("%s server accept error", s.Name),
				logger.Field{Key: "error", Value: err},
				logger.Field{Key: "retry_in", Value: backoff.String()})
			time.Sleep(backoff)
			continue
		}

		backoff = 0
		s.spawn(conn)
	}
}

// Stop closes the listener, closes every live session and waits for their
// handlers to return. Safe to call when the server is not running.
func (s *TCPServer) Stop() {
	s.mu.Lock()
	if !s.running.Load() {
		s.mu.Unlock()
		s.Logger.Info(fmt.Sprintf("%s server not running", s.Name))
		return
	}

	s.running.Store(false)
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.mu.Unlock()

	s.accepts.Wait()
	s.Sessions.Range(func(_ uint32, session TCPServerSession) bool {
		_ = session.Close()
		return true
	})
	s.handlers.Wait()

	s.Logger.Info(fmt.Sprintf("%s server stopped", s.Name))
}

// ListenAddr returns the bound address, or nil before Listen.
func (s *TCPServer) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// AddSession stores a session under the given id.
func (s *TCPServer) AddSession(id uint32, session TCPServerSession) {
	s.Sessions.Store(id, session)
}

// RemoveSession removes the session with the given id.
func (s *TCPServer) RemoveSession(id uint32) {
	s.Sessions.Delete(id)
}

// GetSession returns the session for the given id, if present.
func (s *TCPServer) GetSession(id uint32) (TCPServerSession, bool) {
	return s.Sessions.Load(id)
}

// SessionCount returns the number of live sessions.
func (s *TCPServer) SessionCount() int {
	return s.Sessions.Len()
}

func (s *TCPServer) spawn(conn net.Conn) {
	id := s.nextID.Add(1)
	session := s.NewSession(id, conn)
	s.AddSession(id, session)

	s.handlers.Add(1)
	go func() {
		defer s.handlers.Done()
		defer s.RemoveSession(id)
		session.Handle()
	}()
}

func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}
