package wire

import (
	"encoding/binary"
	"math"
)

// Encoding helpers. All integers are little-endian; strings and buffers are
// length-prefixed with a u32.

func appendBool(dst []byte, v bool) []byte {
	if v {
		return append(dst, 1)
	}
	return append(dst, 0)
}

func appendU32(dst []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(dst, v)
}

func appendU64(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}

func appendF64(dst []byte, v float64) []byte {
	return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
}

func appendBuf(dst, v []byte) []byte {
	dst = appendU32(dst, uint32(len(v)))
	return append(dst, v...)
}

func appendString(dst []byte, v string) []byte {
	dst = appendU32(dst, uint32(len(v)))
	return append(dst, v...)
}

// AppendCommand serializes c to wire format and appends it to dst, returning
// the extended buffer. Encoding is deterministic: the same command always
// yields identical bytes. The command is assumed to have passed
// ValidateCommand; unknown operations are rejected.
func AppendCommand(dst []byte, c *Command) ([]byte, error) {
	if c == nil || c.Op >= opSentinel {
		return dst, &ArgumentError{Message: "unknown operation"}
	}

	dst = append(dst, byte(c.Op))

	switch c.Op {
	case OpPing, OpVersion, OpWipe, OpClear, OpStatus:
		// command byte only

	case OpAuth:
		dst = appendString(dst, c.Token)

	case OpGet, OpDel, OpHas, OpPeek, OpGetTTL, OpSizeOf:
		dst = appendString(dst, c.Key)

	case OpSet:
		dst = appendString(dst, c.Key)
		dst = appendBuf(dst, c.Value)
		dst = appendU32(dst, c.TTL)

	case OpSetTTL:
		dst = appendString(dst, c.Key)
		dst = appendU32(dst, c.TTL)

	case OpResize:
		dst = appendU64(dst, c.Size)

	case OpPolicy:
		dst = appendString(dst, c.Policy.String())
	}

	return dst, nil
}

// EncodeCommand is AppendCommand into a fresh buffer.
func EncodeCommand(c *Command) ([]byte, error) {
	return AppendCommand(nil, c)
}

// AppendResponse serializes a response frame for the given payload shape.
// This is the server-side half of the codec; the client never calls it
// outside of tests.
func AppendResponse(dst []byte, r *Response, shape Shape) ([]byte, error) {
	if r.Error != nil {
		dst = appendBool(dst, false)
		if r.Error.Scope == ScopeCache {
			dst = append(dst, 0, r.Error.Code)
		} else {
			dst = append(dst, r.Error.Code)
		}
		return dst, nil
	}

	dst = appendBool(dst, true)

	switch shape {
	case ShapeAck:

	case ShapeValue:
		dst = appendBuf(dst, r.Value)

	case ShapeBool:
		dst = appendBool(dst, r.Has)

	case ShapeSize:
		dst = appendU32(dst, r.Size)

	case ShapeTTL:
		dst = appendU32(dst, r.TTL)

	case ShapeStatus:
		if r.Status == nil {
			return dst, &ArgumentError{Message: "status response without status"}
		}
		dst = appendStatus(dst, r.Status)

	default:
		return dst, &ArgumentError{Message: "unknown response shape"}
	}

	return dst, nil
}

func appendStatus(dst []byte, s *Status) []byte {
	dst = appendU32(dst, s.PID)

	dst = appendU64(dst, s.MaxSize)
	dst = appendU64(dst, s.UsedSize)
	dst = appendU64(dst, s.NumObjects)

	dst = appendU64(dst, s.RSS)
	dst = appendU64(dst, s.HWM)

	dst = appendU64(dst, s.TotalGets)
	dst = appendU64(dst, s.TotalSets)
	dst = appendU64(dst, s.TotalDels)

	dst = appendF64(dst, s.MissRatio)

	dst = appendU32(dst, uint32(len(s.Policies)))
	for _, p := range s.Policies {
		dst = appendString(dst, p.String())
	}

	dst = appendString(dst, s.Policy.String())
	dst = appendBool(dst, s.IsAutoPolicy)

	dst = appendU64(dst, s.Uptime)

	return dst
}
