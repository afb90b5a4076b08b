package dyno

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorcz/dyno/host"
	"github.com/gorcz/dyno/poolerrors"
	"github.com/gorcz/dyno/subpool"
)

// maxFailoverHosts bounds how many distinct hosts one ExecuteWithFailover
// call will try, as a backstop against the ring growing mid-loop.
const maxFailoverHosts = 8

func (p *Pool) requireStarted() error {
	if p.state.Load() != stateStarted {
		return poolerrors.NewFatalError(fmt.Errorf("dyno: pool %q is not started", p.name))
	}
	return nil
}

// ExecuteWithFailover runs op against the token-owning host, retrying on a
// fresh host whenever the attempt fails with a retriable (DynoError) error
// and the operation's RetryPolicy still allows it, matching spec.md §4.G.4.
// ErrNoAvailableHosts and *FatalError are never retried.
func (p *Pool) ExecuteWithFailover(ctx context.Context, op subpool.Operation) (subpool.Result, error) {
	if err := p.requireStarted(); err != nil {
		return subpool.Result{}, err
	}

	startTime := time.Now()
	policy := p.retryFactory.New()
	tried := make(map[host.Key]bool, maxFailoverHosts)
	var lastHost host.Host
	haveLastHost := false

	for attempt := 0; attempt < maxFailoverHosts; attempt++ {
		policy.Begin()

		conn, err := p.strategy.GetConnectionExcluding(ctx, op, p.opts.MaxTimeoutWhenExhausted, tried)
		if err != nil {
			// Selection failed before any host was chosen: non-retriable, so
			// policy.Failure is never called for this path (spec.md §4.G.4
			// step 1, testable property 5).
			p.monitor.IncOperationFailure(nil, err)
			return subpool.Result{}, err
		}

		h := conn.Host()
		tried[h.Key()] = true
		attemptID := uuid.New().String()
		conn.Attempt().Set("attempt_id", attemptID)

		if haveLastHost && lastHost != h {
			p.monitor.IncFailover(lastHost, h)
		}
		lastHost = h
		haveLastHost = true

		result, execErr := conn.Execute(ctx, op)
		sp := conn.Parent()
		sp.Return(conn)

		if execErr == nil {
			policy.Success()
			p.monitor.IncOperationSuccess(h, time.Since(startTime))
			p.health.TrackConnectionSuccess(h, sp)
			return result, nil
		}

		var fatal *poolerrors.FatalError
		if errors.As(execErr, &fatal) {
			p.monitor.IncOperationFailure(&h, fatal)
			return subpool.Result{}, fatal
		}

		p.monitor.IncOperationFailure(&h, execErr)
		p.health.TrackConnectionError(h, sp, execErr)
		policy.Failure(execErr)

		if !policy.AllowRetry() {
			return subpool.Result{}, poolerrors.NewDynoError(h, execErr)
		}
	}
	return subpool.Result{}, poolerrors.ErrNoAvailableHosts
}

// ExecuteWithRing runs op against one connection per ring partition. Each
// connection gets its own fresh RetryPolicy; there is no failover target
// within a partition, so retries re-run op against the same connection
// until the policy is exhausted or op succeeds. A connection whose retries
// are exhausted terminates the whole call: every connection not yet
// executed is drained (returned to its sub-pool unexecuted) and the
// aggregated error is returned instead of a partial result set (spec.md
// §4.G.5, testable property 6, scenario S6).
func (p *Pool) ExecuteWithRing(ctx context.Context, op subpool.Operation) ([]subpool.Result, error) {
	if err := p.requireStarted(); err != nil {
		return nil, err
	}

	conns, err := p.strategy.GetConnectionsToRing(ctx, p.opts.MaxTimeoutWhenExhausted)
	if err != nil {
		return nil, err
	}

	results := make([]subpool.Result, 0, len(conns))
	var aborted error

	for _, conn := range conns {
		sp := conn.Parent()
		if aborted != nil {
			sp.Return(conn)
			continue
		}

		h := conn.Host()
		startTime := time.Now()
		policy := p.retryFactory.New()

		var result subpool.Result
		var execErr error
		for {
			policy.Begin()
			result, execErr = conn.Execute(ctx, op)
			if execErr == nil {
				policy.Success()
				break
			}
			var fatal *poolerrors.FatalError
			if errors.As(execErr, &fatal) {
				execErr = fatal
				break
			}
			policy.Failure(execErr)
			if !policy.AllowRetry() {
				break
			}
		}
		sp.Return(conn)

		if execErr != nil {
			p.monitor.IncOperationFailure(&h, execErr)
			p.health.TrackConnectionError(h, sp, execErr)
			var fatal *poolerrors.FatalError
			if errors.As(execErr, &fatal) {
				aborted = fatal
			} else {
				aborted = poolerrors.NewDynoError(h, execErr)
			}
			continue
		}

		p.monitor.IncOperationSuccess(h, time.Since(startTime))
		p.health.TrackConnectionSuccess(h, sp)
		results = append(results, result)
	}

	if aborted != nil {
		return nil, aborted
	}
	return results, nil
}

// ExecuteAsync initiates op against the token-owning host and returns a
// future immediately; the connection is returned to its sub-pool as soon as
// the async operation is launched, before the future resolves (spec.md
// §4.G.6, §9 "executeAsync future semantics": a borrow failure yields a
// pre-failed future rather than a nil channel, so callers can always
// receive exactly once).
func (p *Pool) ExecuteAsync(ctx context.Context, op subpool.Operation) <-chan subpool.AsyncResult {
	out := make(chan subpool.AsyncResult, 1)

	if err := p.requireStarted(); err != nil {
		out <- subpool.AsyncResult{Err: err}
		close(out)
		return out
	}

	conn, err := p.strategy.GetConnection(ctx, op, p.opts.MaxTimeoutWhenExhausted)
	if err != nil {
		out <- subpool.AsyncResult{Err: err}
		close(out)
		return out
	}

	h := conn.Host()
	sp := conn.Parent()
	startTime := time.Now()
	future := conn.ExecuteAsync(ctx, op)
	sp.Return(conn)

	go func() {
		defer close(out)
		res := <-future
		if res.Err != nil {
			p.monitor.IncOperationFailure(&h, res.Err)
			p.health.TrackConnectionError(h, sp, res.Err)
		} else {
			p.monitor.IncOperationSuccess(h, time.Since(startTime))
			p.health.TrackConnectionSuccess(h, sp)
		}
		out <- res
	}()
	return out
}
