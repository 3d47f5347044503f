package paper

import (
	"context"
	"errors"

	"github.com/jackc/puddle/v2"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// DefaultPoolSize is the pool capacity when PoolConfig.Size is zero.
const DefaultPoolSize = 4

// PoolConfig holds pool configuration.
type PoolConfig struct {
	// Size is the maximum number of clients in the pool.
	// Zero means DefaultPoolSize.
	Size int32

	// Client configures every pooled client.
	Client Config
}

// Pool is a fixed-capacity pool of clients to one endpoint, for callers that
// need concurrent access: each checkout hands exclusive use of one client
// (and therefore one connection) to the caller. It is not a multi-server
// load balancer.
type Pool struct {
	addr Addr
	pool *puddle.Pool[*Client]
	log  logrus.FieldLogger
}

// NewPool parses the address and builds an empty pool. Clients are dialed
// lazily on first acquire.
func NewPool(addr string, cfg PoolConfig) (*Pool, error) {
	a, err := ParseAddr(addr)
	if err != nil {
		return nil, err
	}

	size := cfg.Size
	if size <= 0 {
		size = DefaultPoolSize
	}

	target := Scheme + "://" + a.String()

	pool, err := puddle.NewPool(&puddle.Config[*Client]{
		Constructor: func(ctx context.Context) (*Client, error) {
			return Dial(ctx, target, cfg.Client)
		},
		Destructor: func(c *Client) {
			_ = c.Close()
		},
		MaxSize: size,
	})
	if err != nil {
		return nil, err
	}

	return &Pool{
		addr: a,
		pool: pool,
		log:  cfg.Client.logger().WithField("pool", a.String()),
	}, nil
}

// Addr returns the pool's endpoint.
func (p *Pool) Addr() Addr {
	return p.addr
}

// With runs fn with exclusive use of one pooled client. A client whose
// connection is no longer healthy after fn is destroyed instead of being
// returned to the pool.
func (p *Pool) With(ctx context.Context, fn func(*Client) error) error {
	res, err := p.pool.Acquire(ctx)
	if err != nil {
		if errors.Is(err, puddle.ErrClosedPool) {
			return ErrPoolClosed
		}
		return err
	}

	fnErr := fn(res.Value())
	p.settle(res)
	return fnErr
}

// Acquire checks one client out of the pool. The caller must Release it.
func (p *Pool) Acquire(ctx context.Context) (*PooledClient, error) {
	res, err := p.pool.Acquire(ctx)
	if err != nil {
		if errors.Is(err, puddle.ErrClosedPool) {
			return nil, ErrPoolClosed
		}
		return nil, err
	}

	return &PooledClient{pool: p, res: res}, nil
}

func (p *Pool) settle(res *puddle.Resource[*Client]) {
	if res.Value().State() != StateConnected {
		res.Destroy()
		return
	}
	res.Release()
}

// Ping checks every idle pooled client against the server, combining the
// failures into one error. Unhealthy clients are destroyed.
func (p *Pool) Ping(ctx context.Context) error {
	var err error
	for _, res := range p.pool.AcquireAllIdle() {
		err = multierr.Append(err, res.Value().Ping(ctx))
		p.settle(res)
	}
	return err
}

// PoolStats is a snapshot of pool usage.
type PoolStats struct {
	TotalClients    int32
	IdleClients     int32
	AcquiredClients int32
	AcquireCount    int64
	EmptyAcquires   int64
}

// Stats returns a snapshot of pool usage.
func (p *Pool) Stats() PoolStats {
	s := p.pool.Stat()
	return PoolStats{
		TotalClients:    s.TotalResources(),
		IdleClients:     s.IdleResources(),
		AcquiredClients: s.AcquiredResources(),
		AcquireCount:    s.AcquireCount(),
		EmptyAcquires:   s.EmptyAcquireCount(),
	}
}

// Close destroys all pooled clients and rejects further acquires.
func (p *Pool) Close() {
	p.pool.Close()
	p.log.Debug("pool closed")
}

// PooledClient is one checked-out client.
type PooledClient struct {
	pool *Pool
	res  *puddle.Resource[*Client]
}

// Client returns the checked-out client.
func (pc *PooledClient) Client() *Client {
	return pc.res.Value()
}

// Release returns the client to the pool, destroying it when its connection
// is no longer healthy.
func (pc *PooledClient) Release() {
	pc.pool.settle(pc.res)
}

// Destroy closes the client and removes it from the pool.
func (pc *PooledClient) Destroy() {
	pc.res.Destroy()
}
