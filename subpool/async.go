package subpool

import (
	"context"
	"time"

	"github.com/gorcz/dyno/host"
)

// asyncPool is the Async sub-pool flavor: Connection.ExecuteAsync launches
// the operation on its own goroutine and hands back a future immediately,
// so the orchestrator can return the connection to its pool right after
// initiation (spec.md §4.G.6). Because operations can complete out from
// under the transport before it learns of a failure, Async pools need the
// health tracker's independent ping loop (wired by the orchestrator on
// AddHost, spec.md §4.G.3 step 5) rather than relying on Execute feedback
// alone.
type asyncPool struct {
	*engine
}

// AsyncFactory returns a subpool.Factory producing Async sub-pools.
func AsyncFactory(dialer Dialer, maxConns int, connectTimeout time.Duration) Factory {
	return FactoryFunc(func(h host.Host) SubPool {
		return &asyncPool{engine: newEngine(h, kindAsync, dialer, maxConns, connectTimeout)}
	})
}

func (p *asyncPool) Borrow(ctx context.Context, timeout time.Duration) (Connection, error) {
	raw, err := p.borrowRaw(ctx, timeout)
	if err != nil {
		return nil, err
	}
	return &asyncConn{pool: p, raw: raw, host: p.h, ctx: newConnCtx()}, nil
}

func (p *asyncPool) Return(c Connection) {
	ac, ok := c.(*asyncConn)
	if !ok {
		return
	}
	p.returnRaw(ac.raw)
}

type asyncConn struct {
	pool *asyncPool
	raw  RawConn
	host host.Host
	ctx  *connCtx
}

func (c *asyncConn) Host() host.Host { return c.host }

func (c *asyncConn) Execute(ctx context.Context, op Operation) (Result, error) {
	return c.raw.Invoke(ctx, op)
}

func (c *asyncConn) ExecuteAsync(ctx context.Context, op Operation) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		res, err := c.raw.Invoke(ctx, op)
		ch <- AsyncResult{Result: res, Err: err}
		close(ch)
	}()
	return ch
}

func (c *asyncConn) Attempt() Context { return c.ctx }

func (c *asyncConn) Parent() SubPool { return c.pool }
