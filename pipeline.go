package paper

import (
	"context"

	"github.com/edwingeng/deque/v2"

	"github.com/paper-cache/go-paper/wire"
)

// Pipeline queues commands and flushes them over the client's connection in
// one write, reading responses back in order. Batching is always explicit:
// the facade's per-operation methods never pipeline.
//
// A Pipeline borrows the client's single connection during Flush; like the
// client itself it is not safe for concurrent use.
type Pipeline struct {
	c      *Client
	queued *deque.Deque[*wire.Command]
}

// Pipeline returns an empty pipeline bound to the client.
func (c *Client) Pipeline() *Pipeline {
	return &Pipeline{
		c:      c,
		queued: deque.NewDeque[*wire.Command](),
	}
}

// Queue validates cmd and appends it to the pipeline. Invalid arguments are
// rejected here, before anything reaches the wire.
func (p *Pipeline) Queue(cmd *wire.Command) error {
	if err := wire.ValidateCommand(cmd); err != nil {
		return err
	}

	p.queued.PushBack(cmd)
	return nil
}

// Len returns the number of queued commands.
func (p *Pipeline) Len() int {
	return p.queued.Len()
}

// PipelineResult pairs one queued command with its outcome. Err carries the
// per-command protocol error, if the server reported one.
type PipelineResult struct {
	Cmd  *wire.Command
	Resp *wire.Response
	Err  error
}

// Flush writes every queued command, then reads the responses in queue
// order. The queue is drained even on failure. When the transport or the
// framing fails mid-flush, the results collected so far are returned
// together with the error and the connection is left faulted.
func (p *Pipeline) Flush(ctx context.Context) ([]PipelineResult, error) {
	if p.queued.Len() == 0 {
		return nil, nil
	}

	cmds := make([]*wire.Command, 0, p.queued.Len())
	for p.queued.Len() > 0 {
		cmds = append(cmds, p.queued.PopFront())
	}

	p.c.mu.Lock()
	defer p.c.mu.Unlock()

	if p.c.closed {
		return nil, ErrClientClosed
	}

	if err := p.c.ensureConnectedLocked(ctx); err != nil {
		return nil, err
	}

	resps, err := p.c.conn.RoundTripMany(ctx, cmds)

	results := make([]PipelineResult, 0, len(resps))
	for i, resp := range resps {
		r := PipelineResult{Cmd: cmds[i], Resp: resp}
		if resp.Error != nil {
			r.Err = resp.Error
		}
		results = append(results, r)
	}

	return results, err
}
