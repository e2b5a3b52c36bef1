// Package game serves a shared minesweeper board over a line based TCP
// protocol. Every connection gets its own Session; all sessions mutate the
// same board.
package game

import (
	"errors"
	"net"

	"github.com/cyberinferno/minesweeper/board"
	"github.com/cyberinferno/minesweeper/logger"
	"github.com/cyberinferno/minesweeper/tcpserver"
)

// Options configures NewServer.
type Options struct {
	// Addr is the "host:port" to listen on.
	Addr string
	// Board is the board every player shares. Required.
	Board *board.Board
	// Logger defaults to logger.Nop().
	Logger logger.Logger
}

// Server accepts players and runs a Session for each against one board.
type Server struct {
	board  *board.Board
	logger logger.Logger
	tcp    *tcpserver.TCPServer
}

// NewServer builds a game server. It does not listen until Start or
// ListenAndServe is called.
//
// Parameters:
//   - opts: Listen address, board and logger
//
// Returns:
//   - The server, or an error if no board was given
func NewServer(opts Options) (*Server, error) {
	if opts.Board == nil {
		return nil, errors.New("game server requires a board")
	}

	l := opts.Logger
	if l == nil {
		l = logger.Nop()
	}

	l = l.With(logger.Field{Key: "board_id", Value: opts.Board.ID()})

	s := &Server{
		board:  opts.Board,
		logger: l,
	}
	s.tcp = tcpserver.NewTCPServer("minesweeper", opts.Addr, s.newSession, l)

	return s, nil
}

// ListenAndServe listens and serves players until Stop is called or the
// listener fails.
//
// Returns:
//   - nil after Stop, otherwise the fatal listen or accept error
func (s *Server) ListenAndServe() error {
	return s.tcp.ListenAndServe()
}

// Start listens and serves players in the background.
func (s *Server) Start() error {
	return s.tcp.Start()
}

// Stop disconnects every player and stops accepting new ones.
func (s *Server) Stop() {
	s.tcp.Stop()
}

// Addr returns the address the server listens on, or nil before it started.
func (s *Server) Addr() net.Addr {
	return s.tcp.ListenAddr()
}

// Players returns the number of connected players.
func (s *Server) Players() int {
	return s.tcp.SessionCount()
}

// Board returns the shared board.
func (s *Server) Board() *board.Board {
	return s.board
}

func (s *Server) newSession(id uint32, conn net.Conn) tcpserver.TCPServerSession {
	l := s.logger.With(
		logger.Field{Key: "session_id", Value: id},
		logger.Field{Key: "remote_addr", Value: conn.RemoteAddr().String()},
	)

	return NewSession(id, conn, s.board, s.Players, l)
}
