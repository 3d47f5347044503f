// Package wire implements the paper-cache wire protocol: serialization of
// commands and parsing of responses, without connection management.
//
// # Core Types
//
// Command and Response are plain data containers:
//
//   - Command: one requested operation and its arguments
//   - Response: the decoded outcome of one request
//   - Policy: an eviction policy in its wire string form
//   - Status: the payload of a status request
//
// # Framing
//
// A request frame is a single command byte followed by the fields of that
// operation. A response frame opens with an ok byte; on success the payload
// shape is implied by the issued command, on failure an error code follows.
// Field encodings:
//
//   - bool: one byte, 0 or 1
//   - u8: one byte
//   - u32, u64: little-endian
//   - f64: IEEE 754 bits, little-endian
//   - string, buffer: u32 little-endian length prefix, then the bytes
//
// # Encoding and Decoding
//
// AppendCommand serializes to wire format:
//
//	buf, err := wire.AppendCommand(nil, wire.NewGet("mykey"))
//
// DecodeResponse parses a response frame from a byte buffer. It returns
// ErrNeedMoreData when the buffer holds less than one complete frame, so a
// caller owning the transport reads more and retries:
//
//	resp, n, err := wire.DecodeResponse(buf, cmd.Shape())
//	if errors.Is(err, wire.ErrNeedMoreData) {
//	    // read more bytes into buf
//	}
//
// DecodeCommand and AppendResponse provide the server-side halves of the
// codec; the tests use them to run an in-process server.
//
// # Error Handling
//
// A well-formed error frame decodes into Response.Error (*ProtocolError),
// not a Go error: the server understood the request and answered, and the
// connection remains usable. Syntactically invalid bytes produce a
// *ParseError, after which the stream framing must be considered
// desynchronized. Use ShouldCloseConnection to tell the two apart.
//
// # Thread Safety
//
// Command and Response values are not synchronized; callers must not share
// them across goroutines without coordination. The package-level functions
// are safe for concurrent use.
package wire
