package wire

import (
	"encoding/binary"
	"math"
)

// MaxFieldLength bounds the length prefix of a string or buffer field.
// Anything larger is treated as a framing error rather than an allocation
// request.
const MaxFieldLength = 1 << 30

// maxPolicyCount bounds the policy count of a status frame. The server has
// on the order of ten policies; a count beyond this is a framing error, not
// an allocation request.
const maxPolicyCount = 64

// decoder walks a byte buffer, reporting ErrNeedMoreData when a field runs
// past the end. It never retains the buffer.
type decoder struct {
	data []byte
	off  int
}

func (d *decoder) u8() (byte, error) {
	if d.off+1 > len(d.data) {
		return 0, ErrNeedMoreData
	}
	v := d.data[d.off]
	d.off++
	return v, nil
}

func (d *decoder) bool() (bool, error) {
	v, err := d.u8()
	if err != nil {
		return false, err
	}

	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, &ParseError{Message: "invalid bool byte"}
	}
}

func (d *decoder) u32() (uint32, error) {
	if d.off+4 > len(d.data) {
		return 0, ErrNeedMoreData
	}
	v := binary.LittleEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if d.off+8 > len(d.data) {
		return 0, ErrNeedMoreData
	}
	v := binary.LittleEndian.Uint64(d.data[d.off:])
	d.off += 8
	return v, nil
}

func (d *decoder) f64() (float64, error) {
	v, err := d.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (d *decoder) buf() ([]byte, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}

	if n > MaxFieldLength {
		return nil, &ParseError{Message: "field length out of bounds"}
	}

	if d.off+int(n) > len(d.data) {
		return nil, ErrNeedMoreData
	}

	v := make([]byte, n)
	copy(v, d.data[d.off:])
	d.off += int(n)
	return v, nil
}

func (d *decoder) string() (string, error) {
	v, err := d.buf()
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (d *decoder) policy() (Policy, error) {
	s, err := d.string()
	if err != nil {
		return Policy{}, err
	}
	return ParsePolicy(s)
}

// DecodeResponse decodes one response frame of the given shape from data.
// It returns the response, the number of bytes consumed, and an error.
//
// A truncated frame yields ErrNeedMoreData and consumes nothing: read more
// bytes and call again. A well-formed error frame yields a Response whose
// Error field is set, with a nil error: it is an expected outcome, and the
// connection remains in sync. Bytes that cannot be a valid frame yield a
// *ParseError.
func DecodeResponse(data []byte, shape Shape) (*Response, int, error) {
	d := &decoder{data: data}

	ok, err := d.bool()
	if err != nil {
		return nil, 0, err
	}

	if !ok {
		perr, err := decodeError(d)
		if err != nil {
			return nil, 0, err
		}
		return &Response{Error: perr}, d.off, nil
	}

	resp := &Response{OK: true}

	switch shape {
	case ShapeAck:

	case ShapeValue:
		if resp.Value, err = d.buf(); err != nil {
			return nil, 0, err
		}

	case ShapeBool:
		if resp.Has, err = d.bool(); err != nil {
			return nil, 0, err
		}

	case ShapeSize:
		if resp.Size, err = d.u32(); err != nil {
			return nil, 0, err
		}

	case ShapeTTL:
		if resp.TTL, err = d.u32(); err != nil {
			return nil, 0, err
		}

	case ShapeStatus:
		if resp.Status, err = decodeStatus(d); err != nil {
			return nil, 0, err
		}

	default:
		return nil, 0, &ParseError{Message: "unknown response shape"}
	}

	return resp, d.off, nil
}

func decodeError(d *decoder) (*ProtocolError, error) {
	code, err := d.u8()
	if err != nil {
		return nil, err
	}

	// Code 0 escapes to the cache error namespace.
	if code == 0 {
		cacheCode, err := d.u8()
		if err != nil {
			return nil, err
		}
		return &ProtocolError{Scope: ScopeCache, Code: cacheCode}, nil
	}

	return &ProtocolError{Scope: ScopeServer, Code: code}, nil
}

func decodeStatus(d *decoder) (*Status, error) {
	var s Status
	var err error

	if s.PID, err = d.u32(); err != nil {
		return nil, err
	}

	if s.MaxSize, err = d.u64(); err != nil {
		return nil, err
	}
	if s.UsedSize, err = d.u64(); err != nil {
		return nil, err
	}
	if s.NumObjects, err = d.u64(); err != nil {
		return nil, err
	}

	if s.RSS, err = d.u64(); err != nil {
		return nil, err
	}
	if s.HWM, err = d.u64(); err != nil {
		return nil, err
	}

	if s.TotalGets, err = d.u64(); err != nil {
		return nil, err
	}
	if s.TotalSets, err = d.u64(); err != nil {
		return nil, err
	}
	if s.TotalDels, err = d.u64(); err != nil {
		return nil, err
	}

	if s.MissRatio, err = d.f64(); err != nil {
		return nil, err
	}

	numPolicies, err := d.u32()
	if err != nil {
		return nil, err
	}
	if numPolicies > maxPolicyCount {
		return nil, &ParseError{Message: "policy count out of bounds"}
	}
	if numPolicies > 0 {
		s.Policies = make([]Policy, 0, numPolicies)
		for i := uint32(0); i < numPolicies; i++ {
			p, err := d.policy()
			if err != nil {
				return nil, err
			}
			s.Policies = append(s.Policies, p)
		}
	}

	if s.Policy, err = d.policy(); err != nil {
		return nil, err
	}
	if s.IsAutoPolicy, err = d.bool(); err != nil {
		return nil, err
	}

	if s.Uptime, err = d.u64(); err != nil {
		return nil, err
	}

	return &s, nil
}

// DecodeCommand decodes one request frame from data. This is the server-side
// half of the codec; the tests use it to run an in-process server.
func DecodeCommand(data []byte) (*Command, int, error) {
	d := &decoder{data: data}

	op, err := d.u8()
	if err != nil {
		return nil, 0, err
	}

	if Op(op) >= opSentinel {
		return nil, 0, &ParseError{Message: "unknown command byte"}
	}

	cmd := &Command{Op: Op(op)}

	switch cmd.Op {
	case OpPing, OpVersion, OpWipe, OpClear, OpStatus:

	case OpAuth:
		if cmd.Token, err = d.string(); err != nil {
			return nil, 0, err
		}

	case OpGet, OpDel, OpHas, OpPeek, OpGetTTL, OpSizeOf:
		if cmd.Key, err = d.string(); err != nil {
			return nil, 0, err
		}

	case OpSet:
		if cmd.Key, err = d.string(); err != nil {
			return nil, 0, err
		}
		if cmd.Value, err = d.buf(); err != nil {
			return nil, 0, err
		}
		if cmd.TTL, err = d.u32(); err != nil {
			return nil, 0, err
		}

	case OpSetTTL:
		if cmd.Key, err = d.string(); err != nil {
			return nil, 0, err
		}
		if cmd.TTL, err = d.u32(); err != nil {
			return nil, 0, err
		}

	case OpResize:
		if cmd.Size, err = d.u64(); err != nil {
			return nil, 0, err
		}

	case OpPolicy:
		if cmd.Policy, err = d.policy(); err != nil {
			return nil, 0, err
		}
	}

	return cmd, d.off, nil
}
