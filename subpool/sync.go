package subpool

import (
	"context"
	"time"

	"github.com/gorcz/dyno/host"
)

// syncPool is the Sync sub-pool flavor: Connection.Execute and
// Connection.ExecuteAsync both run the operation on the caller's goroutine
// before returning — there is no independent transport-level async
// signaling, so health must come from execution feedback alone
// (spec.md §9 "Async/ping health checks only for Async pool type").
type syncPool struct {
	*engine
}

// SyncFactory returns a subpool.Factory producing Sync sub-pools. dialer
// opens the transport connection; maxConns bounds how many are primed;
// connectTimeout caps each individual dial.
func SyncFactory(dialer Dialer, maxConns int, connectTimeout time.Duration) Factory {
	return FactoryFunc(func(h host.Host) SubPool {
		return &syncPool{engine: newEngine(h, kindSync, dialer, maxConns, connectTimeout)}
	})
}

func (p *syncPool) Borrow(ctx context.Context, timeout time.Duration) (Connection, error) {
	raw, err := p.borrowRaw(ctx, timeout)
	if err != nil {
		return nil, err
	}
	return &syncConn{pool: p, raw: raw, host: p.h, ctx: newConnCtx()}, nil
}

func (p *syncPool) Return(c Connection) {
	sc, ok := c.(*syncConn)
	if !ok {
		return
	}
	p.returnRaw(sc.raw)
}

type syncConn struct {
	pool *syncPool
	raw  RawConn
	host host.Host
	ctx  *connCtx
}

func (c *syncConn) Host() host.Host { return c.host }

func (c *syncConn) Execute(ctx context.Context, op Operation) (Result, error) {
	return c.raw.Invoke(ctx, op)
}

func (c *syncConn) ExecuteAsync(ctx context.Context, op Operation) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	res, err := c.raw.Invoke(ctx, op)
	ch <- AsyncResult{Result: res, Err: err}
	close(ch)
	return ch
}

func (c *syncConn) Attempt() Context { return c.ctx }

func (c *syncConn) Parent() SubPool { return c.pool }
