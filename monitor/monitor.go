// Package monitor defines the observability hook the orchestrator calls on
// every operation outcome, host admission/removal, and failover, plus the
// two stock implementations: a no-op default and a Prometheus-backed one.
package monitor

import (
	"time"

	"github.com/gorcz/dyno/host"
)

// Monitor receives pool events. Implementations must be safe for concurrent
// use; the orchestrator calls these from request-handling goroutines and
// must never block on them for long.
type Monitor interface {
	// IncOperationSuccess records a successful operation against h, with
	// latency measured from the single startTime taken before the first
	// attempt (spec.md §4.G.4 step 2).
	IncOperationSuccess(h host.Host, latency time.Duration)
	// IncOperationFailure records a failed operation. h is nil when the
	// failure happened before any host was selected (e.g.
	// poolerrors.ErrNoAvailableHosts).
	IncOperationFailure(h *host.Host, err error)
	// IncFailover records that execution fell over from one host to
	// another after a retriable failure.
	IncFailover(from, to host.Host)
	// HostAdded records that h was admitted to the pool.
	HostAdded(h host.Host)
	// HostRemoved records that h was removed from the pool.
	HostRemoved(h host.Host)
	// SetHostCount reports the current ring size.
	SetHostCount(n int)
}

// Noop discards every event. It is the default Monitor when none is
// configured.
type Noop struct{}

var _ Monitor = Noop{}

func (Noop) IncOperationSuccess(host.Host, time.Duration) {}
func (Noop) IncOperationFailure(*host.Host, error)        {}
func (Noop) IncFailover(host.Host, host.Host)             {}
func (Noop) HostAdded(host.Host)                          {}
func (Noop) HostRemoved(host.Host)                        {}
func (Noop) SetHostCount(int)                             {}
