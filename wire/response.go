package wire

// Response is the decoded outcome of one request: either the success payload
// matching the issued command's shape, or a protocol error reported by the
// server. It exists only within the call that produced it.
type Response struct {
	// OK mirrors the frame's ok byte. When false, Error is set and the
	// payload fields are zero.
	OK bool

	// Value is the payload of a value-shaped response.
	Value []byte

	// Has is the payload of a bool-shaped response.
	Has bool

	// Size is the payload of a size-shaped response.
	Size uint32

	// TTL is the payload of a ttl-shaped response: remaining whole seconds,
	// 0 meaning the entry has no expiry.
	TTL uint32

	// Status is the payload of a status-shaped response.
	Status *Status

	// Error is the decoded error payload when OK is false.
	Error *ProtocolError
}

// Ack returns a success response with no payload.
func Ack() *Response {
	return &Response{OK: true}
}

// Fail returns an error response carrying the given protocol error.
func Fail(err *ProtocolError) *Response {
	return &Response{Error: err}
}
