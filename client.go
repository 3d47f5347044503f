// Package paper implements a client for the paper-cache server.
//
// A Client holds exactly one connection and performs one wire round trip per
// call. It is not safe for concurrent calls without external serialization;
// use one Client per goroutine, or a Pool.
package paper

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/paper-cache/go-paper/wire"
)

// DefaultConnectTimeout bounds dialing plus the server greeting when
// Config.ConnectTimeout is zero.
const DefaultConnectTimeout = 5 * time.Second

// Config holds client configuration. The zero value is usable.
type Config struct {
	// ConnectTimeout bounds dialing and the server greeting.
	// Zero means DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// Timeout bounds each round trip. Zero means no deadline unless the
	// call's context carries one. Exceeding it returns a *TimeoutError and
	// faults the connection.
	Timeout time.Duration

	// AuthToken, when set, is presented to the server after every connect
	// and reconnect.
	AuthToken string

	// MaxReconnectAttempts enables reconnect-and-retry on transport
	// failures: up to this many consecutive attempts per call. Zero (the
	// default) surfaces every fault to the caller.
	MaxReconnectAttempts int

	// Dialer is used to create connections. If nil, a default net.Dialer
	// is used.
	Dialer *net.Dialer

	// Logger receives structured connection lifecycle logs.
	// If nil, logging is disabled.
	Logger logrus.FieldLogger

	// NewCircuitBreaker creates a circuit breaker for the endpoint.
	// If nil, no circuit breaker is used. See NewCircuitBreakerConfig.
	NewCircuitBreaker func(addr string) *gobreaker.CircuitBreaker[*wire.Response]
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return DefaultConnectTimeout
}

var discardLogger = func() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

func (c Config) logger() logrus.FieldLogger {
	if c.Logger != nil {
		return c.Logger
	}
	return discardLogger
}

// Client is the externally visible object: one method per protocol
// operation, each translating typed arguments into a command, delegating to
// the connection for the round trip, and mapping the response back.
type Client struct {
	addr Addr
	cfg  Config

	mu      sync.Mutex
	conn    *Conn
	breaker *gobreaker.CircuitBreaker[*wire.Response]
	closed  bool
}

// New parses the address and builds a client without connecting. The first
// call establishes the connection.
func New(addr string, cfg Config) (*Client, error) {
	a, err := ParseAddr(addr)
	if err != nil {
		return nil, err
	}

	c := &Client{
		addr: a,
		cfg:  cfg,
		conn: newConn(a, cfg),
	}

	if cfg.NewCircuitBreaker != nil {
		c.breaker = cfg.NewCircuitBreaker(a.String())
	}

	return c, nil
}

// Dial builds a client and connects eagerly, authenticating when
// Config.AuthToken is set.
func Dial(ctx context.Context, addr string, cfg Config) (*Client, error) {
	c, err := New(addr, cfg)
	if err != nil {
		return nil, err
	}

	if err := c.Reconnect(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// Addr returns the parsed endpoint.
func (c *Client) Addr() Addr {
	return c.addr
}

// State returns the underlying connection's lifecycle state.
func (c *Client) State() State {
	return c.conn.State()
}

// Reconnect establishes (or re-establishes) the connection and replays
// authentication. It is the explicit recovery path after a ConnectionError,
// CodecError or Timeout.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	return c.reconnectLocked(ctx)
}

func (c *Client) reconnectLocked(ctx context.Context) error {
	if err := c.conn.Connect(ctx); err != nil {
		return err
	}

	if c.cfg.AuthToken != "" {
		resp, err := c.conn.RoundTrip(ctx, wire.NewAuth(c.cfg.AuthToken))
		if err != nil {
			return err
		}
		if resp.Error != nil {
			return resp.Error
		}
	}

	return nil
}

// Close releases the connection. The client cannot be reused afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	return c.conn.Close()
}

// do performs one validated command as one wire round trip, connecting
// first when the client has never been connected, and applying the
// configured reconnect policy on transport failures.
func (c *Client) do(ctx context.Context, cmd *wire.Command) (*wire.Response, error) {
	if err := wire.ValidateCommand(cmd); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}

	for attempt := 0; ; attempt++ {
		if err := c.ensureConnectedLocked(ctx); err != nil {
			return nil, err
		}

		resp, err := c.executeLocked(ctx, cmd)
		if err == nil {
			return resp, nil
		}

		var cerr *ConnectionError
		if !errors.As(err, &cerr) || attempt >= c.cfg.MaxReconnectAttempts {
			return nil, err
		}
	}
}

func (c *Client) ensureConnectedLocked(ctx context.Context) error {
	switch c.conn.State() {
	case StateConnected:
		return nil
	case StateFaulted:
		// No silent healing: a faulted connection is only retried when the
		// caller opted into a reconnect policy.
		if c.cfg.MaxReconnectAttempts <= 0 {
			return &ConnectionError{Op: "send", Err: ErrFaulted}
		}
		return c.reconnectLocked(ctx)
	default:
		return c.reconnectLocked(ctx)
	}
}

func (c *Client) executeLocked(ctx context.Context, cmd *wire.Command) (*wire.Response, error) {
	if c.breaker != nil {
		return c.breaker.Execute(func() (*wire.Response, error) {
			return c.conn.RoundTrip(ctx, cmd)
		})
	}
	return c.conn.RoundTrip(ctx, cmd)
}

func respErr(resp *wire.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	return nil
}

func ttlSeconds(ttl time.Duration) (uint32, error) {
	if ttl < 0 {
		return 0, &wire.ArgumentError{Message: "negative ttl"}
	}
	if ttl == 0 {
		return 0, nil
	}
	if ttl < time.Second {
		return 1, nil
	}
	secs := int64(ttl / time.Second)
	if secs > math.MaxUint32 {
		return 0, &wire.ArgumentError{Message: "ttl too large"}
	}
	return uint32(secs), nil
}

// Ping checks that the server is alive and answering.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, wire.NewPing())
	return respErr(resp, err)
}

// Version returns the server's version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, wire.NewVersion())
	if err := respErr(resp, err); err != nil {
		return "", err
	}
	return string(resp.Value), nil
}

// Auth authorizes the connection with the supplied token. The token is
// remembered and replayed after any reconnect.
func (c *Client) Auth(ctx context.Context, token string) error {
	resp, err := c.do(ctx, wire.NewAuth(token))
	if err := respErr(resp, err); err != nil {
		return err
	}

	c.mu.Lock()
	c.cfg.AuthToken = token
	c.mu.Unlock()

	return nil
}

// Get returns the value stored under key. A missing key is an absence
// (Item.Found false), not an error.
func (c *Client) Get(ctx context.Context, key string) (Item, error) {
	return c.getValue(ctx, wire.NewGet(key))
}

// Peek is Get without altering the eviction order of the cache's entries.
func (c *Client) Peek(ctx context.Context, key string) (Item, error) {
	return c.getValue(ctx, wire.NewPeek(key))
}

func (c *Client) getValue(ctx context.Context, cmd *wire.Command) (Item, error) {
	resp, err := c.do(ctx, cmd)
	if err != nil {
		return Item{}, err
	}

	if resp.Error != nil {
		if errors.Is(resp.Error, wire.ErrKeyNotFound) {
			return Item{Key: cmd.Key}, nil
		}
		return Item{}, resp.Error
	}

	return Item{Key: cmd.Key, Value: resp.Value, Found: true}, nil
}

// Set stores value under key. A zero ttl means no expiry; sub-second ttls
// round up to one second.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	secs, err := ttlSeconds(ttl)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, wire.NewSet(key, value, secs))
	return respErr(resp, err)
}

// Delete removes key from the cache. Deleting a missing key returns
// wire.ErrKeyNotFound.
func (c *Client) Delete(ctx context.Context, key string) error {
	resp, err := c.do(ctx, wire.NewDel(key))
	return respErr(resp, err)
}

// Has reports whether key is present, without altering eviction order.
func (c *Client) Has(ctx context.Context, key string) (bool, error) {
	resp, err := c.do(ctx, wire.NewHas(key))
	if err := respErr(resp, err); err != nil {
		return false, err
	}
	return resp.Has, nil
}

// TTL returns the remaining time-to-live of key. The bool is false when the
// entry has no expiry. A missing key returns wire.ErrKeyNotFound.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	resp, err := c.do(ctx, wire.NewGetTTL(key))
	if err := respErr(resp, err); err != nil {
		return 0, false, err
	}

	if resp.TTL == 0 {
		return 0, false, nil
	}
	return time.Duration(resp.TTL) * time.Second, true, nil
}

// SetTTL updates the time-to-live of key. A zero ttl removes the expiry.
func (c *Client) SetTTL(ctx context.Context, key string, ttl time.Duration) error {
	secs, err := ttlSeconds(ttl)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, wire.NewSetTTL(key, secs))
	return respErr(resp, err)
}

// ValueSize returns the stored size of key's value in bytes.
func (c *Client) ValueSize(ctx context.Context, key string) (int, error) {
	resp, err := c.do(ctx, wire.NewSizeOf(key))
	if err := respErr(resp, err); err != nil {
		return 0, err
	}
	return int(resp.Size), nil
}

// Status returns a snapshot of the cache's configuration, memory usage and
// lifetime counters.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	resp, err := c.do(ctx, wire.NewStatus())
	if err := respErr(resp, err); err != nil {
		return nil, err
	}
	return resp.Status, nil
}

// Size returns the cache's occupancy. It is one status round trip.
func (c *Client) Size(ctx context.Context) (CacheSize, error) {
	status, err := c.Status(ctx)
	if err != nil {
		return CacheSize{}, err
	}

	return CacheSize{
		MaxSize:    status.MaxSize,
		UsedSize:   status.UsedSize,
		NumObjects: status.NumObjects,
	}, nil
}

// Policy returns the cache's active eviction policy. It is one status round
// trip.
func (c *Client) Policy(ctx context.Context) (Policy, error) {
	status, err := c.Status(ctx)
	if err != nil {
		return Policy{}, err
	}
	return status.Policy, nil
}

// SetPolicy sets the cache's eviction policy.
func (c *Client) SetPolicy(ctx context.Context, policy Policy) error {
	resp, err := c.do(ctx, wire.NewPolicy(policy))
	return respErr(resp, err)
}

// Resize sets the cache's capacity in bytes. Negative capacities are
// rejected client-side; a zero capacity is left to the server to refuse.
func (c *Client) Resize(ctx context.Context, size int64) error {
	if size < 0 {
		return &wire.ArgumentError{Message: "negative cache size"}
	}

	resp, err := c.do(ctx, wire.NewResize(uint64(size)))
	return respErr(resp, err)
}

// Clear removes all entries from the cache.
func (c *Client) Clear(ctx context.Context) error {
	resp, err := c.do(ctx, wire.NewClear())
	return respErr(resp, err)
}

// Wipe removes all entries and resets the cache's internal state, including
// its statistics.
func (c *Client) Wipe(ctx context.Context) error {
	resp, err := c.do(ctx, wire.NewWipe())
	return respErr(resp, err)
}
