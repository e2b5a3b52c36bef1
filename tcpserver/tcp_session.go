package tcpserver

// TCPServerSession is implemented by each connection session. The server
// creates one per accepted connection and runs Handle in its own goroutine;
// the session is unregistered when Handle returns.
type TCPServerSession interface {
	// ID returns the session's identifier assigned by the server.
	ID() uint32

	// Handle runs the session until the peer disconnects, the session decides
	// to end, or Close is called. It must close the connection before returning.
	Handle()

	// Close closes the session's connection, unblocking Handle. It must be
	// safe to call more than once and concurrently with Handle.
	//
	// Returns:
	//   - An error if closing failed
	Close() error

	// Send writes data to the connection. Implementations must be safe for
	// concurrent use.
	//
	// Parameters:
	//   - data: The bytes to send
	//
	// Returns:
	//   - An error if the write failed
	Send(data []byte) error
}
