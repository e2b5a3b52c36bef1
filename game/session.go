package game

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/cyberinferno/minesweeper/board"
	"github.com/cyberinferno/minesweeper/logger"
	"github.com/cyberinferno/minesweeper/perfmonitor"
	"github.com/cyberinferno/minesweeper/tcpserver"
)

const maxLineLength = 64 * 1024

// Session is one player's connection. It sends the welcome line, then reads
// one command per line and writes one reply per command until the player
// says bye, hits a bomb, disconnects or the server stops.
type Session struct {
	id      uint32
	conn    net.Conn
	board   *board.Board
	players func() int
	logger  logger.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

var _ tcpserver.TCPServerSession = (*Session)(nil)

// NewSession returns a session for conn playing on b.
//
// Parameters:
//   - id: Session ID assigned by the server
//   - conn: The player's connection; owned by the session from now on
//   - b: The shared board
//   - players: Reports the current number of connected players
//   - l: Logger already scoped to this session
func NewSession(id uint32, conn net.Conn, b *board.Board, players func() int, l logger.Logger) *Session {
	return &Session{
		id:      id,
		conn:    conn,
		board:   b,
		players: players,
		logger:  l,
	}
}

// ID returns the session ID.
func (s *Session) ID() uint32 {
	return s.id
}

// Handle runs the command loop. Connection faults end the session and are
// logged; they never propagate to the server.
func (s *Session) Handle() {
	defer s.Close()

	players := s.players()
	s.logger.Info("player connected", logger.Field{Key: "players", Value: players})
	defer s.logger.Info("player disconnected")

	if err := s.sendLine(WelcomeMessage(players, s.board.Width(), s.board.Height())); err != nil {
		s.connectionFault("failed to send welcome", err)
		return
	}

	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 1024), maxLineLength)

	perf := perfmonitor.NewPerformanceMonitor()
	for scanner.Scan() {
		perf.Reset()
		perf.Start()

		line := scanner.Text()
		reply, done := s.execute(line)

		if reply != "" {
			if err := s.sendLine(reply); err != nil {
				s.connectionFault("failed to send reply", err)
				return
			}
		}

		perf.Stop()
		s.logger.Debug("command handled",
			logger.Field{Key: "command", Value: line},
			logger.Field{Key: "elapsed_ms", Value: perf.ElapsedMilliseconds()})

		if done {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		s.connectionFault("failed to read command", err)
	}
}

// Close closes the connection. It is idempotent and may be called while
// Handle is running, which makes Handle return.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})

	return s.closeErr
}

// Send writes data to the player. Concurrent sends never interleave.
func (s *Session) Send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.Write(data)
	return err
}

// execute runs one request line and returns the reply to send (empty for
// none) and whether the session should end afterwards.
func (s *Session) execute(line string) (string, bool) {
	cmd, err := ParseCommand(line)
	if err != nil {
		return HelpMessage, false
	}

	switch cmd.Verb {
	case VerbLook:
		return s.board.Render(), false
	case VerbHelp:
		return HelpMessage, false
	case VerbBye:
		return "", true
	case VerbDig:
		res := s.board.Dig(cmd.X, cmd.Y)
		if res.Bomb {
			s.logger.Info("player hit a bomb",
				logger.Field{Key: "x", Value: cmd.X},
				logger.Field{Key: "y", Value: cmd.Y},
				logger.Field{Key: "bombs_remaining", Value: s.board.BombsRemaining()})
			return BoomMessage, true
		}
		return s.board.Render(), false
	case VerbFlag:
		s.board.Flag(cmd.X, cmd.Y)
		return s.board.Render(), false
	case VerbDeflag:
		s.board.Deflag(cmd.X, cmd.Y)
		return s.board.Render(), false
	default:
		return HelpMessage, false
	}
}

func (s *Session) sendLine(text string) error {
	return s.Send([]byte(text + "\n"))
}

// connectionFault logs an I/O failure. Errors caused by our own Close are
// expected during shutdown and only logged at debug.
func (s *Session) connectionFault(msg string, err error) {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		s.logger.Debug(msg, logger.Field{Key: "error", Value: err})
		return
	}

	s.logger.Warn(msg, logger.Field{Key: "error", Value: err})
}
