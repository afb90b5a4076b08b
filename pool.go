// Package dyno implements a client-side connection pool for a distributed,
// ring-partitioned, rack/DC-replicated key-value store: membership over a
// token ring, rack/DC-aware failover, and bounded per-host sub-pools
// (spec.md §1-§2).
package dyno

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/gorcz/dyno/health"
	"github.com/gorcz/dyno/host"
	"github.com/gorcz/dyno/monitor"
	"github.com/gorcz/dyno/retrypolicy"
	"github.com/gorcz/dyno/selection"
	"github.com/gorcz/dyno/subpool"
	"github.com/gorcz/dyno/updater"
	"github.com/puzpuzpuz/xsync/v4"
)

// memberEntry pairs a host with its live sub-pool in the membership map.
type memberEntry struct {
	host host.Host
	pool subpool.SubPool
}

// lifecycle states, CAS-gated so Start/Shutdown each run at most once
// (spec.md §3 "single CAS-gated Start").
const (
	stateNew int32 = iota
	stateStarting
	stateStarted
	stateStopped
)

// Pool is the connection pool orchestrator: it owns host membership, the
// selection strategy, the health tracker, and the hosts updater, and
// exposes ExecuteWithFailover/ExecuteWithRing/ExecuteAsync as the sole
// entry points for running operations (spec.md §4.G).
type Pool struct {
	name string
	opts Options

	members *xsync.Map[host.Key, *memberEntry]

	subpoolFactory subpool.Factory
	strategy       selection.Strategy
	health         health.Tracker
	monitor        monitor.Monitor
	retryFactory   retrypolicy.Factory
	updater        *updater.HostsUpdater

	state      atomic.Int32
	unregister func()
}

// New constructs a Pool from opts. The pool is inert until Start is called.
func New(opts Options) (*Pool, error) {
	opts.setDefaults()

	if opts.HostSupplier == nil {
		return nil, fmt.Errorf("dyno: Options.HostSupplier is required")
	}
	if opts.SubPoolFactory == nil && opts.Dialer == nil {
		return nil, fmt.Errorf("dyno: Options.Dialer or Options.SubPoolFactory is required")
	}

	p := &Pool{
		name:         opts.Name,
		opts:         opts,
		members:      xsync.NewMap[host.Key, *memberEntry](),
		strategy:     opts.Strategy,
		monitor:      opts.Monitor,
		retryFactory: opts.RetryPolicyFactory,
	}

	if opts.SubPoolFactory != nil {
		p.subpoolFactory = opts.SubPoolFactory
	} else {
		switch opts.PoolType {
		case PoolTypeAsync:
			p.subpoolFactory = subpool.AsyncFactory(opts.Dialer, opts.MaxConnsPerHost, opts.ConnectTimeout)
		default:
			p.subpoolFactory = subpool.SyncFactory(opts.Dialer, opts.MaxConnsPerHost, opts.ConnectTimeout)
		}
	}

	if opts.HealthTracker != nil {
		p.health = opts.HealthTracker
	} else {
		p.health = health.NewErrorRateTracker(health.Config{Recycler: p})
	}

	p.updater = updater.New(updater.Config{
		Supplier:     opts.HostSupplier,
		Membership:   p,
		Schedule:     opts.RefreshSchedule,
		FetchTimeout: opts.ConnectTimeout * 10,
	})

	return p, nil
}

func (p *Pool) log(format string, args ...any) {
	log.Printf("[dyno:%s] "+format, append([]any{p.name}, args...)...)
}
