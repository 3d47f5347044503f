package wire

import (
	"errors"
	"fmt"
)

// ErrNeedMoreData is returned by the decode functions when the buffer holds
// less than one complete frame. The caller should read more bytes from the
// transport and retry with the grown buffer.
var ErrNeedMoreData = errors.New("wire: need more data")

// ArgumentError is returned when a command fails client-side validation.
// Nothing has been written to the wire and the connection is unaffected.
type ArgumentError struct {
	Message string
}

func (e *ArgumentError) Error() string {
	return "wire: invalid argument: " + e.Message
}

// ParseError reports bytes that do not parse as a valid frame. The stream
// framing must be considered desynchronized afterwards.
type ParseError struct {
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "wire: parse error: " + e.Message + ": " + e.Err.Error()
	}
	return "wire: parse error: " + e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true: after a parse error the next frame
// boundary is unknown.
func (e *ParseError) ShouldCloseConnection() bool {
	return true
}

// ErrorScope distinguishes the two error namespaces of the protocol.
type ErrorScope int

const (
	// ScopeServer errors concern the server process itself.
	ScopeServer ErrorScope = iota

	// ScopeCache errors concern the requested cache operation.
	ScopeCache
)

// ProtocolError is a well-formed error response from the server. It is an
// expected outcome of a request, not a transport failure; the connection
// remains usable.
type ProtocolError struct {
	Scope ErrorScope
	Code  uint8
}

var serverErrMessages = map[uint8]string{
	ServerErrInternal:               "an internal error occurred",
	ServerErrMaxConnectionsExceeded: "the maximum number of connections was exceeded",
	ServerErrUnauthorized:           "unauthorized",
}

var cacheErrMessages = map[uint8]string{
	CacheErrInternal:           "an internal error occurred",
	CacheErrKeyNotFound:        "the key was not found in the cache",
	CacheErrZeroValueSize:      "the value size cannot be zero",
	CacheErrExceedingValueSize: "the value size cannot exceed the cache size",
	CacheErrZeroCacheSize:      "the cache size cannot be zero",
	CacheErrUnconfiguredPolicy: "unconfigured policy",
	CacheErrInvalidPolicy:      "invalid policy",
}

func (e *ProtocolError) Error() string {
	var msg string
	var ok bool

	switch e.Scope {
	case ScopeCache:
		msg, ok = cacheErrMessages[e.Code]
	default:
		msg, ok = serverErrMessages[e.Code]
	}

	if !ok {
		return fmt.Sprintf("paper: unknown error code %d", e.Code)
	}
	return "paper: " + msg
}

// Is matches any ProtocolError with the same scope and code, so the exported
// sentinels below work with errors.Is.
func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	return ok && t.Scope == e.Scope && t.Code == e.Code
}

// ShouldCloseConnection returns false: the frame was well-formed and the
// connection is still in sync.
func (e *ProtocolError) ShouldCloseConnection() bool {
	return false
}

// Sentinels for errors.Is checks against server responses.
var (
	ErrServerInternal         = &ProtocolError{Scope: ScopeServer, Code: ServerErrInternal}
	ErrMaxConnectionsExceeded = &ProtocolError{Scope: ScopeServer, Code: ServerErrMaxConnectionsExceeded}
	ErrUnauthorized           = &ProtocolError{Scope: ScopeServer, Code: ServerErrUnauthorized}

	ErrCacheInternal      = &ProtocolError{Scope: ScopeCache, Code: CacheErrInternal}
	ErrKeyNotFound        = &ProtocolError{Scope: ScopeCache, Code: CacheErrKeyNotFound}
	ErrZeroValueSize      = &ProtocolError{Scope: ScopeCache, Code: CacheErrZeroValueSize}
	ErrExceedingValueSize = &ProtocolError{Scope: ScopeCache, Code: CacheErrExceedingValueSize}
	ErrZeroCacheSize      = &ProtocolError{Scope: ScopeCache, Code: CacheErrZeroCacheSize}
	ErrUnconfiguredPolicy = &ProtocolError{Scope: ScopeCache, Code: CacheErrUnconfiguredPolicy}
	ErrInvalidPolicy      = &ProtocolError{Scope: ScopeCache, Code: CacheErrInvalidPolicy}
)

// ErrorWithConnectionState is implemented by errors that know whether the
// connection can be reused after they occur.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err requires abandoning the
// connection. Unknown error types are treated conservatively.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}
