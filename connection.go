package paper

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"

	"github.com/paper-cache/go-paper/wire"
)

const (
	eventConnect = "connect"
	eventFault   = "fault"
	eventClose   = "close"
)

const readChunkSize = 4096

// Conn owns one transport stream to a paper-cache server and performs
// exactly one request/response exchange per call. It is guarded by a mutex:
// callers needing concurrent access must use one client per logical
// connection or serialize calls themselves.
//
// Lifecycle: Disconnected --Connect--> Connected --transport failure-->
// Faulted. A faulted connection is never reused silently; Connect must be
// called again.
type Conn struct {
	addr           Addr
	dialer         *net.Dialer
	connectTimeout time.Duration
	timeout        time.Duration
	log            logrus.FieldLogger

	mu      sync.Mutex
	conn    net.Conn
	machine *fsm.FSM
	rbuf    []byte // received, not yet consumed
	wbuf    []byte // reused encode buffer
	chunk   []byte
}

func newConn(addr Addr, cfg Config) *Conn {
	log := cfg.logger().WithFields(logrus.Fields{
		"conn_id": uuid.NewString(),
		"addr":    addr.String(),
	})

	return &Conn{
		addr:           addr,
		dialer:         cfg.Dialer,
		connectTimeout: cfg.connectTimeout(),
		timeout:        cfg.Timeout,
		log:            log,
		machine:        newConnMachine(log),
		chunk:          make([]byte, readChunkSize),
	}
}

func newConnMachine(log logrus.FieldLogger) *fsm.FSM {
	return fsm.NewFSM(
		string(StateDisconnected),
		fsm.Events{
			{Name: eventConnect, Src: []string{string(StateDisconnected), string(StateFaulted)}, Dst: string(StateConnected)},
			{Name: eventFault, Src: []string{string(StateConnected)}, Dst: string(StateFaulted)},
			{Name: eventClose, Src: []string{string(StateConnected), string(StateFaulted)}, Dst: string(StateDisconnected)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.WithFields(logrus.Fields{"from": e.Src, "to": e.Dst}).Debug("connection state change")
			},
		},
	)
}

// State returns the connection's lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State(c.machine.Current())
}

// Addr returns the endpoint this connection targets.
func (c *Conn) Addr() Addr {
	return c.addr
}

// Connect establishes the transport stream and consumes the server's
// greeting frame. It is valid from the Disconnected and Faulted states and a
// no-op when already connected. A greeting that carries an error payload
// (e.g. too many connections) is returned as that *wire.ProtocolError.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Conn) connectLocked(ctx context.Context) error {
	if c.machine.Current() == string(StateConnected) {
		return nil
	}

	c.dropStreamLocked()

	if c.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.connectTimeout)
		defer cancel()
	}

	dialer := c.dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	netConn, err := dialer.DialContext(ctx, "tcp", c.addr.String())
	if err != nil {
		return classifyNetErr("connect", err)
	}

	if tcp, ok := netConn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	c.conn = netConn
	c.applyDeadlineLocked(ctx)

	// The server opens every connection with one ack-shaped frame.
	resp, err := c.readFrameLocked(wire.ShapeAck)
	if err != nil {
		c.dropStreamLocked()
		return err
	}

	if resp.Error != nil {
		c.dropStreamLocked()
		return resp.Error
	}

	_ = c.machine.Event(context.Background(), eventConnect)
	c.log.Info("connected")
	return nil
}

// RoundTrip writes one encoded command and reads exactly one response frame.
// A well-formed server error is returned inside the response, not as an
// error; transport, timeout and framing failures fault the connection.
func (c *Conn) RoundTrip(ctx context.Context, cmd *wire.Command) (*wire.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConnectedLocked(); err != nil {
		return nil, err
	}

	buf, err := wire.AppendCommand(c.wbuf[:0], cmd)
	if err != nil {
		return nil, err
	}
	c.wbuf = buf

	c.applyDeadlineLocked(ctx)

	if _, err := c.conn.Write(buf); err != nil {
		cerr := classifyNetErr("write", err)
		c.faultLocked(cerr)
		return nil, cerr
	}

	resp, err := c.readFrameLocked(cmd.Shape())
	if err != nil {
		c.faultLocked(err)
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"op": cmd.Op.String(),
		"ok": resp.Error == nil,
	}).Debug("round trip complete")

	return resp, nil
}

// RoundTripMany writes all commands in order, then reads their responses in
// the same order. Used by Pipeline; the facade itself never batches. On a
// transport or framing failure the responses read so far are returned along
// with the error, and the connection is faulted.
func (c *Conn) RoundTripMany(ctx context.Context, cmds []*wire.Command) ([]*wire.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConnectedLocked(); err != nil {
		return nil, err
	}

	buf := c.wbuf[:0]
	var err error
	for _, cmd := range cmds {
		if buf, err = wire.AppendCommand(buf, cmd); err != nil {
			return nil, err
		}
	}
	c.wbuf = buf

	c.applyDeadlineLocked(ctx)

	if _, err := c.conn.Write(buf); err != nil {
		cerr := classifyNetErr("write", err)
		c.faultLocked(cerr)
		return nil, cerr
	}

	resps := make([]*wire.Response, 0, len(cmds))
	for _, cmd := range cmds {
		resp, err := c.readFrameLocked(cmd.Shape())
		if err != nil {
			c.faultLocked(err)
			return resps, err
		}
		resps = append(resps, resp)
	}

	return resps, nil
}

// Close tears down the transport stream and returns the connection to
// Disconnected.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	c.rbuf = nil

	_ = c.machine.Event(context.Background(), eventClose)
	return err
}

func (c *Conn) requireConnectedLocked() error {
	switch State(c.machine.Current()) {
	case StateConnected:
		return nil
	case StateFaulted:
		return &ConnectionError{Op: "send", Err: ErrFaulted}
	default:
		return &ConnectionError{Op: "send", Err: ErrNotConnected}
	}
}

// readFrameLocked reads until the receive buffer holds one complete frame of
// the given shape. A truncated frame is not an error; the codec's
// ErrNeedMoreData drives another read.
func (c *Conn) readFrameLocked(shape wire.Shape) (*wire.Response, error) {
	for {
		if len(c.rbuf) > 0 {
			resp, n, err := wire.DecodeResponse(c.rbuf, shape)
			switch {
			case err == nil:
				c.rbuf = c.rbuf[:copy(c.rbuf, c.rbuf[n:])]
				return resp, nil
			case errors.Is(err, wire.ErrNeedMoreData):
				// fall through and read more
			default:
				return nil, err
			}
		}

		n, err := c.conn.Read(c.chunk)
		if n > 0 {
			c.rbuf = append(c.rbuf, c.chunk[:n]...)
			continue
		}
		if err != nil {
			return nil, classifyNetErr("read", err)
		}
	}
}

func (c *Conn) applyDeadlineLocked(ctx context.Context) {
	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	_ = c.conn.SetDeadline(deadline)
}

func (c *Conn) faultLocked(cause error) {
	c.dropStreamLocked()
	if err := c.machine.Event(context.Background(), eventFault); err == nil {
		c.log.WithError(cause).Warn("connection faulted")
	}
}

func (c *Conn) dropStreamLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.rbuf = nil
}

func classifyNetErr(op string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &ConnectionError{Op: op, Err: errors.New("server closed the connection")}
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &TimeoutError{Op: op, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}

	return &ConnectionError{Op: op, Err: err}
}
