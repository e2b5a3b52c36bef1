// Package client provides an event-driven, line oriented TCP client that
// notifies callers of connection state changes, received lines and errors
// via registered handlers. It supports optional auto-reconnect and
// configurable timeouts.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

var (
	// ErrClosed is returned by operations on a client after Close.
	ErrClosed = errors.New("client is closed")
	// ErrNotConnected is returned by SendLine when there is no connection.
	ErrNotConnected = errors.New("not connected")
)

// ConnectionState represents the current state of the TCP connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota // Not connected and not attempting to connect
	Connecting                          // Connection attempt in progress
	Connected                           // Successfully connected
	Reconnecting                        // Connection lost, waiting to redial (AutoReconnect only)
	Closed                              // Client has been closed and will not reconnect
)

// String returns a human-readable name for the connection state.
func (cs ConnectionState) String() string {
	switch cs {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// ConnectionStateEvent is emitted when the connection state changes.
type ConnectionStateEvent struct {
	State     ConnectionState // The new connection state
	Address   string          // The remote address (e.g. "host:port")
	Timestamp time.Time       // When the state change occurred
	Error     error           // Non-nil if the state change was due to an error
}

// LineEvent is emitted for every line read from the connection.
type LineEvent struct {
	Line      string    // The line without its terminator
	Timestamp time.Time // When the line was received
}

// ErrorEvent is emitted when a read, write, or connection error occurs.
type ErrorEvent struct {
	Error     error     // The error that occurred
	Timestamp time.Time // When the error occurred
}

// ConnectionStateHandler is called when the connection state changes.
// Handlers run on their own goroutine and must be safe for concurrent use.
type ConnectionStateHandler func(event ConnectionStateEvent)

// LineHandler is called for each received line, in arrival order, on the
// read goroutine. It must not call Close.
type LineHandler func(event LineEvent)

// ErrorHandler is called when a read, write, or connection error occurs.
// Handlers run on their own goroutine and must be safe for concurrent use.
type ErrorHandler func(event ErrorEvent)

// Config holds configuration for the line client.
type Config struct {
	// Address is the "host:port" to connect to (e.g. "localhost:4444").
	Address string
	// AutoReconnect enables automatic reconnection when the connection is lost.
	AutoReconnect bool
	// ReconnectInterval is the delay between reconnection attempts when AutoReconnect is true.
	ReconnectInterval time.Duration
	// WriteTimeout is the max duration for a single write; 0 means no timeout.
	WriteTimeout time.Duration
	// ReadTimeout is the max duration to wait for the next line; 0 means no timeout.
	ReadTimeout time.Duration
	// ConnectionTimeout is the max duration for establishing a new connection.
	ConnectionTimeout time.Duration
	// MaxLineLength bounds a single received line in bytes.
	MaxLineLength int
}

// DefaultConfig returns a Config with default values for the given address.
//
// Parameters:
//   - address: The "host:port" to connect to
//
// Returns:
//   - A Config with defaults: AutoReconnect false, ReconnectInterval 5s,
//     WriteTimeout 10s, ConnectionTimeout 10s, ReadTimeout 0, MaxLineLength 1MiB.
func DefaultConfig(address string) Config {
	return Config{
		Address:           address,
		ReconnectInterval: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		ConnectionTimeout: 10 * time.Second,
		MaxLineLength:     1024 * 1024,
	}
}

// LineClient is a TCP client for newline framed text protocols. Register
// handlers with OnConnectionState, OnLine and OnError, then call Connect.
// It is safe for concurrent use.
type LineClient struct {
	config Config
	conn   net.Conn
	state  ConnectionState

	onConnectionState ConnectionStateHandler
	onLine            LineHandler
	onError           ErrorHandler

	mu            sync.RWMutex
	writeMu       sync.Mutex
	stopChan      chan struct{}
	reconnectChan chan struct{}
	wg            sync.WaitGroup
	closed        bool
	watching      bool
}

// NewLineClient creates a client in Disconnected state.
//
// Parameters:
//   - config: Connection and behavior settings (e.g. from DefaultConfig)
//
// Returns:
//   - A new *LineClient; call Close when done to release resources.
func NewLineClient(config Config) *LineClient {
	if config.MaxLineLength <= 0 {
		config.MaxLineLength = bufio.MaxScanTokenSize
	}

	return &LineClient{
		config:        config,
		state:         Disconnected,
		stopChan:      make(chan struct{}),
		reconnectChan: make(chan struct{}, 1),
	}
}

// OnConnectionState registers the handler for connection state changes.
// Repeated calls replace the previous handler; nil clears it.
func (c *LineClient) OnConnectionState(handler ConnectionStateHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnectionState = handler
}

// OnLine registers the handler for received lines.
// Repeated calls replace the previous handler; nil clears it.
func (c *LineClient) OnLine(handler LineHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLine = handler
}

// OnError registers the handler for read, write, and connection errors.
// Repeated calls replace the previous handler; nil clears it.
func (c *LineClient) OnError(handler ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

// Connect dials the configured address and starts reading lines.
//
// Returns:
//   - nil on success; ErrClosed, an "already connected" error, or the dial error.
func (c *LineClient) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == Connected || c.state == Connecting {
		c.mu.Unlock()
		return fmt.Errorf("already connected or connecting")
	}

	if c.config.AutoReconnect && !c.watching {
		c.watching = true
		c.wg.Add(1)
		go c.reconnectHandler()
	}
	c.mu.Unlock()

	return c.connect()
}

// Disconnect closes the current connection and moves to Disconnected state.
// Connect may be called again afterwards.
//
// Returns:
//   - nil if already disconnected or closed, or the error from closing the connection.
func (c *LineClient) Disconnect() error {
	c.mu.Lock()
	if c.state == Disconnected || c.state == Closed {
		c.mu.Unlock()
		return nil
	}

	err := c.dropConn()
	c.mu.Unlock()

	c.setState(Disconnected, nil)

	return err
}

// Close shuts down the client, closes the connection and waits for all
// goroutines. Idempotent.
func (c *LineClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true
	_ = c.dropConn()
	c.mu.Unlock()

	close(c.stopChan)
	c.wg.Wait()

	c.setState(Closed, nil)

	return nil
}

// SendLine writes line followed by a newline.
//
// Parameters:
//   - line: Text to send; must not contain a newline
//
// Returns:
//   - nil on success; ErrNotConnected, or the write error.
func (c *LineClient) SendLine(line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("line must not contain a line break: %q", line)
	}

	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if state != Connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}
	}

	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		c.connectionLost(conn, err)
		return err
	}

	return nil
}

// GetState returns the current connection state.
func (c *LineClient) GetState() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected returns true if the client is in Connected state.
func (c *LineClient) IsConnected() bool {
	return c.GetState() == Connected
}

func (c *LineClient) connect() error {
	c.setState(Connecting, nil)

	dialer := net.Dialer{Timeout: c.config.ConnectionTimeout}
	conn, err := dialer.Dial("tcp", c.config.Address)
	if err != nil {
		c.setState(Disconnected, err)
		c.emitError(err)
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.state = Connected
	c.wg.Add(1)
	c.mu.Unlock()

	c.emitConnectionState(Connected, nil)
	go c.readLoop(conn)

	return nil
}

// dropConn closes the current connection. Caller must hold c.mu.
func (c *LineClient) dropConn() error {
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *LineClient) readLoop(conn net.Conn) {
	defer c.wg.Done()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), c.config.MaxLineLength)

	for {
		if c.config.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout)); err != nil {
				c.connectionLost(conn, err)
				return
			}
		}

		if !scanner.Scan() {
			break
		}

		if !c.owns(conn) {
			return
		}

		c.emitLine(scanner.Text())
	}

	err := scanner.Err()
	if err == nil {
		err = fmt.Errorf("connection closed by peer")
	}
	c.connectionLost(conn, err)
}

// connectionLost handles the failure of conn unless it was already replaced
// or closed by the caller.
func (c *LineClient) connectionLost(conn net.Conn, err error) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}

	_ = c.dropConn()
	c.mu.Unlock()

	if !errors.Is(err, net.ErrClosed) {
		c.emitError(err)
	}

	if c.config.AutoReconnect {
		c.setState(Reconnecting, err)
		select {
		case c.reconnectChan <- struct{}{}:
		default:
		}
		return
	}

	c.setState(Disconnected, err)
}

func (c *LineClient) reconnectHandler() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stopChan:
			return
		case <-c.reconnectChan:
		}

		select {
		case <-c.stopChan:
			return
		case <-time.After(c.config.ReconnectInterval):
		}

		// A Disconnect or Close while waiting cancels the attempt.
		if c.isClosed() || c.GetState() != Reconnecting {
			continue
		}

		if err := c.connect(); err != nil && !errors.Is(err, ErrClosed) {
			c.setState(Reconnecting, err)
			select {
			case c.reconnectChan <- struct{}{}:
			default:
			}
		}
	}
}

func (c *LineClient) owns(conn net.Conn) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed && c.conn == conn
}

func (c *LineClient) setState(state ConnectionState, err error) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	c.emitConnectionState(state, err)
}

func (c *LineClient) emitConnectionState(state ConnectionState, err error) {
	c.mu.RLock()
	handler := c.onConnectionState
	c.mu.RUnlock()

	if handler != nil {
		go handler(ConnectionStateEvent{
			State:     state,
			Address:   c.config.Address,
			Timestamp: time.Now(),
			Error:     err,
		})
	}
}

func (c *LineClient) emitLine(line string) {
	c.mu.RLock()
	handler := c.onLine
	c.mu.RUnlock()

	if handler != nil {
		handler(LineEvent{Line: line, Timestamp: time.Now()})
	}
}

func (c *LineClient) emitError(err error) {
	c.mu.RLock()
	handler := c.onError
	c.mu.RUnlock()

	if handler != nil {
		go handler(ErrorEvent{Error: err, Timestamp: time.Now()})
	}
}

func (c *LineClient) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
