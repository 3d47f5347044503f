package paper

import "github.com/paper-cache/go-paper/wire"

// Re-exported wire types, so common use of the client does not require
// importing the codec package.
type (
	// Policy is an eviction policy. See the wire package for constructors.
	Policy = wire.Policy

	// Status is the payload of a status call.
	Status = wire.Status
)

// Item is the result of a get or peek.
type Item struct {
	Key   string
	Value []byte

	// Found reports whether the key was present. A miss is an absence, not
	// an error.
	Found bool
}

// CacheSize summarizes the cache's occupancy, derived from one status round
// trip.
type CacheSize struct {
	// MaxSize and UsedSize are in bytes.
	MaxSize  uint64
	UsedSize uint64

	// NumObjects is the number of stored entries.
	NumObjects uint64
}

// State is the lifecycle state of a connection.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
	StateFaulted      State = "faulted"
)
