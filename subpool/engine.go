package subpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorcz/dyno/host"
)

// ErrClosed is returned by Borrow once Shutdown has been called.
var ErrClosed = errors.New("subpool: closed")

// ErrExhausted is returned by Borrow when no connection became available
// before the deadline.
var ErrExhausted = errors.New("subpool: exhausted")

// kind distinguishes the Sync and Async sub-pool flavors (spec.md §6 "pool
// type"). The two flavors share connection bookkeeping (this file) and
// differ only in how Connection.ExecuteAsync behaves — see sync.go/async.go.
type kind int

const (
	kindSync kind = iota
	kindAsync
)

// engine is the shared free-list implementation behind both SyncFactory and
// AsyncFactory. A bounded buffered channel is the idiomatic Go "pool of N"
// primitive, grounded on the bounded-semaphore shape used throughout
// Resinat-Resin (e.g. internal/probe.ProbeManager's sem channel).
type engine struct {
	h        host.Host
	kind     kind
	dialer   Dialer
	maxConns int
	connTO   time.Duration

	mu     sync.Mutex
	free   chan rawSlot
	primed atomic.Int32
	closed atomic.Bool
}

type rawSlot struct {
	raw RawConn
}

func newEngine(h host.Host, k kind, dialer Dialer, maxConns int, connTO time.Duration) *engine {
	if maxConns <= 0 {
		maxConns = 1
	}
	return &engine{
		h:        h,
		kind:     k,
		dialer:   dialer,
		maxConns: maxConns,
		connTO:   connTO,
		free:     make(chan rawSlot, maxConns),
	}
}

// PrimeConnections opens up to maxConns connections. Individual dial
// failures are swallowed (spec.md §4.G.3 step 4); only a total failure to
// prime any connection surfaces the last error.
func (e *engine) PrimeConnections(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed.Load() {
		return 0, ErrClosed
	}

	var lastErr error
	n := 0
	for i := 0; i < e.maxConns; i++ {
		dialCtx := ctx
		var cancel context.CancelFunc
		if e.connTO > 0 {
			dialCtx, cancel = context.WithTimeout(ctx, e.connTO)
		}
		raw, err := e.dialer(dialCtx, e.h)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			lastErr = err
			continue
		}
		e.free <- rawSlot{raw: raw}
		n++
	}
	e.primed.Store(int32(n))
	if n == 0 && lastErr != nil {
		return 0, fmt.Errorf("subpool: prime %s: %w", e.h, lastErr)
	}
	return n, nil
}

func (e *engine) IsActive() bool {
	return !e.closed.Load() && e.primed.Load() > 0
}

func (e *engine) PrimedCount() int {
	return int(e.primed.Load())
}

func (e *engine) borrowRaw(ctx context.Context, timeout time.Duration) (RawConn, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	deadlineCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		deadlineCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	select {
	case slot, ok := <-e.free:
		if !ok {
			return nil, ErrClosed
		}
		return slot.raw, nil
	case <-deadlineCtx.Done():
		if e.closed.Load() {
			return nil, ErrClosed
		}
		return nil, ErrExhausted
	}
}

func (e *engine) returnRaw(raw RawConn) {
	if e.closed.Load() {
		_ = raw.Close()
		return
	}
	select {
	case e.free <- rawSlot{raw: raw}:
	default:
		// Free list is at capacity (shouldn't happen under normal borrow
		// discipline); drop the extra connection rather than block.
		_ = raw.Close()
	}
}

// Shutdown closes every primed connection and marks the engine unusable.
// Never reused after this call (spec.md §3 Per-Host Sub-Pool lifecycle).
func (e *engine) Shutdown() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	close(e.free)
	for slot := range e.free {
		_ = slot.raw.Close()
	}
	e.primed.Store(0)
}

// connCtx is the default Context implementation shared by both sub-pool
// flavors' connections.
type connCtx struct {
	mu   sync.RWMutex
	data map[string]any
}

func newConnCtx() *connCtx {
	return &connCtx{data: make(map[string]any)}
}

func (c *connCtx) GetAll() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make(map[string]any, len(c.data))
	for k, v := range c.data {
		cp[k] = v
	}
	return cp
}

func (c *connCtx) Set(key string, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = val
}

func (c *connCtx) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]any)
}
