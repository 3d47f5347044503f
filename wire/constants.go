package wire

// Op identifies one protocol operation. The byte value is the first byte of
// every request frame.
type Op byte

const (
	OpPing Op = iota
	OpVersion
	OpAuth
	OpGet
	OpSet
	OpDel
	OpHas
	OpPeek
	OpSetTTL
	OpSizeOf
	OpWipe
	OpResize
	OpPolicy
	OpStatus
	OpGetTTL
	OpClear

	opSentinel // keep last
)

var opNames = map[Op]string{
	OpPing:    "ping",
	OpVersion: "version",
	OpAuth:    "auth",
	OpGet:     "get",
	OpSet:     "set",
	OpDel:     "del",
	OpHas:     "has",
	OpPeek:    "peek",
	OpSetTTL:  "set-ttl",
	OpSizeOf:  "size-of",
	OpWipe:    "wipe",
	OpResize:  "resize",
	OpPolicy:  "policy",
	OpStatus:  "status",
	OpGetTTL:  "get-ttl",
	OpClear:   "clear",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return "unknown"
}

// Shape describes the success payload of a response frame. The protocol does
// not tag responses; the reader must know which command it is answering.
type Shape int

const (
	// ShapeAck carries no payload beyond the ok byte.
	ShapeAck Shape = iota

	// ShapeValue carries one byte buffer.
	ShapeValue

	// ShapeBool carries one bool.
	ShapeBool

	// ShapeSize carries one u32.
	ShapeSize

	// ShapeTTL carries one u32 of remaining seconds, 0 meaning no expiry.
	ShapeTTL

	// ShapeStatus carries the full Status payload.
	ShapeStatus
)

// Server error codes. Code 0 is an escape: the next byte is a cache error
// code.
const (
	ServerErrInternal               uint8 = 1
	ServerErrMaxConnectionsExceeded uint8 = 2
	ServerErrUnauthorized           uint8 = 3
)

// Cache error codes, nested under server code 0.
const (
	CacheErrInternal           uint8 = 0
	CacheErrKeyNotFound        uint8 = 1
	CacheErrZeroValueSize      uint8 = 2
	CacheErrExceedingValueSize uint8 = 3
	CacheErrZeroCacheSize      uint8 = 4
	CacheErrUnconfiguredPolicy uint8 = 5
	CacheErrInvalidPolicy      uint8 = 6
)
