package paper

import "errors"

var (
	// ErrNotConnected is wrapped by the ConnectionError returned when an
	// operation is attempted on a connection that was never established or
	// was closed.
	ErrNotConnected = errors.New("paper: not connected")

	// ErrFaulted is wrapped by the ConnectionError returned when an
	// operation is attempted on a faulted connection without an explicit
	// reconnect.
	ErrFaulted = errors.New("paper: connection faulted")

	// ErrClientClosed is returned by operations on a closed client.
	ErrClientClosed = errors.New("paper: client closed")

	// ErrPoolClosed is returned by operations on a closed pool.
	ErrPoolClosed = errors.New("paper: pool closed")
)

// ConnectionError reports a transport-level failure at connect, write or
// read time. The connection is left faulted; the caller decides whether to
// reconnect and retry.
type ConnectionError struct {
	Op  string // "connect", "write", "read"
	Err error
}

func (e *ConnectionError) Error() string {
	return "paper: connection error during " + e.Op + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true: the transport is already broken.
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// TimeoutError reports that the configured deadline was exceeded while
// waiting on a step of a round trip. The in-flight exchange is no longer
// trustworthy, so the connection is left faulted.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return "paper: timeout during " + e.Op + ": " + e.Err.Error()
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Timeout implements the net.Error convention.
func (e *TimeoutError) Timeout() bool {
	return true
}

// ShouldCloseConnection returns true: a response may still be in flight.
func (e *TimeoutError) ShouldCloseConnection() bool {
	return true
}
