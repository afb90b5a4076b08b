// Package updater periodically refreshes pool membership from an external
// host source and applies the add/remove diff to the orchestrator
// (spec.md §4.C, §9 "30s refresh cadence").
package updater

import (
	"context"

	"github.com/gorcz/dyno/host"
)

// HostSupplier returns the current, complete set of hosts that should be
// members of the pool. Implementations talk to whatever discovery backend
// is in play (a config file, a service registry, a fixed list).
type HostSupplier interface {
	GetHosts(ctx context.Context) ([]host.Host, error)
}

// HostSupplierFunc adapts a function to HostSupplier.
type HostSupplierFunc func(ctx context.Context) ([]host.Host, error)

// GetHosts implements HostSupplier.
func (f HostSupplierFunc) GetHosts(ctx context.Context) ([]host.Host, error) { return f(ctx) }

// PoolMembership is implemented by the orchestrator; the updater diffs the
// supplier's hosts against its own last-applied snapshot and calls these to
// apply the delta, rather than needing a full view of pool internals. The
// bool return (true when the call actually changed membership) mirrors
// Pool.AddHost/RemoveHost; the updater only inspects the error.
type PoolMembership interface {
	AddHost(h host.Host) (bool, error)
	RemoveHost(h host.Host) (bool, error)
}
