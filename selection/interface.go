// Package selection implements the host-selection strategy: given an
// operation, return a connection honoring token affinity with rack/DC
// fallback (spec.md §4.E, §6). It is specified at its interface boundary;
// TokenAware is the default implementation.
package selection

import (
	"context"
	"time"

	"github.com/gorcz/dyno/host"
	"github.com/gorcz/dyno/subpool"
)

// Topology describes the current ring as seen by the strategy, exposed for
// diagnostics (spec.md §6 getTokenPoolTopology).
type Topology struct {
	HostCount int
	Hosts     []host.Host
}

// Member pairs a Host with its sub-pool for the strategy's bookkeeping.
type Member struct {
	Host host.Host
	Pool subpool.SubPool
}

// Strategy selects connections for operations, honoring token affinity
// with rack/DC fallback.
type Strategy interface {
	// InitWithHosts builds the strategy's view from the current membership
	// map wholesale — called once after startup priming (spec.md §4.G.2).
	InitWithHosts(members map[host.Key]Member)
	// AddHost incrementally adds h to the strategy's view.
	AddHost(h host.Host, p subpool.SubPool)
	// RemoveHost incrementally removes h from the strategy's view.
	RemoveHost(h host.Host, p subpool.SubPool)
	// GetConnection returns a connection for op, honoring token affinity
	// with rack/DC fallback, bounded by timeout.
	GetConnection(ctx context.Context, op subpool.Operation, timeout time.Duration) (subpool.Connection, error)
	// GetConnectionExcluding behaves like GetConnection but skips every
	// host in exclude, used by the orchestrator's failover loop to avoid
	// re-trying a host that just failed (spec.md §4.G.4).
	GetConnectionExcluding(ctx context.Context, op subpool.Operation, timeout time.Duration, exclude map[host.Key]bool) (subpool.Connection, error)
	// GetConnectionsToRing returns one connection per ring partition,
	// bounded by timeout (spec.md §4.G.5).
	GetConnectionsToRing(ctx context.Context, timeout time.Duration) ([]subpool.Connection, error)
	// Topology reports the current ring membership for diagnostics.
	Topology() Topology
}
