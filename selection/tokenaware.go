package selection

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorcz/dyno/host"
	"github.com/gorcz/dyno/internal/ringtoken"
	"github.com/gorcz/dyno/poolerrors"
	"github.com/gorcz/dyno/subpool"
	"github.com/zeebo/xxh3"
)

// TokenAware is the default Strategy: it hashes an operation's routing key
// onto the ring to find the token owner, then falls back to a same-rack
// host, then a same-DC host, then any remaining host, before giving up with
// poolerrors.ErrNoAvailableHosts. The fallback ladder is grounded on
// Resinat-Resin/internal/routing/random.go's chooseSameIPRotationCandidate,
// which walks a best-known-latency candidate down to "any remaining
// candidate" rather than failing outright.
type TokenAware struct {
	mu      sync.Mutex // guards pools during rebuild; ring is read via atomic snapshot
	pools   map[host.Key]subpool.SubPool
	hosts   map[host.Key]host.Host
	ringPtr atomic.Pointer[ringtoken.Ring]
}

// NewTokenAware constructs an empty TokenAware strategy. Call InitWithHosts
// once the initial membership is known.
func NewTokenAware() *TokenAware {
	return &TokenAware{
		pools: make(map[host.Key]subpool.SubPool),
		hosts: make(map[host.Key]host.Host),
	}
}

func (s *TokenAware) InitWithHosts(members map[host.Key]Member) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pools = make(map[host.Key]subpool.SubPool, len(members))
	s.hosts = make(map[host.Key]host.Host, len(members))
	for k, m := range members {
		s.pools[k] = m.Pool
		s.hosts[k] = m.Host
	}
	s.rebuildLocked(s.snapshotHostsLocked())
}

func (s *TokenAware) AddHost(h host.Host, p subpool.SubPool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pools[h.Key()] = p
	s.hosts[h.Key()] = h
	s.rebuildLocked(s.snapshotHostsLocked())
}

func (s *TokenAware) RemoveHost(h host.Host, p subpool.SubPool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pools, h.Key())
	delete(s.hosts, h.Key())
	s.rebuildLocked(s.snapshotHostsLocked())
}

func (s *TokenAware) snapshotHostsLocked() []host.Host {
	out := make([]host.Host, 0, len(s.hosts))
	for _, h := range s.hosts {
		out = append(out, h)
	}
	return out
}

// rebuildLocked builds the new ring fully before publishing it, so readers
// never observe a partially updated ring (spec.md §9).
func (s *TokenAware) rebuildLocked(hosts []host.Host) {
	s.ringPtr.Store(ringtoken.Build(hosts))
}

func (s *TokenAware) Topology() Topology {
	r := s.ringPtr.Load()
	return Topology{HostCount: r.Size(), Hosts: r.All()}
}

func hashKey(key string) uint64 {
	return xxh3.HashString(key)
}

func (s *TokenAware) poolFor(h host.Host) subpool.SubPool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pools[h.Key()]
}

// GetConnection implements Strategy.
func (s *TokenAware) GetConnection(ctx context.Context, op subpool.Operation, timeout time.Duration) (subpool.Connection, error) {
	return s.GetConnectionExcluding(ctx, op, timeout, nil)
}

// GetConnectionExcluding implements Strategy.
func (s *TokenAware) GetConnectionExcluding(ctx context.Context, op subpool.Operation, timeout time.Duration, exclude map[host.Key]bool) (subpool.Connection, error) {
	r := s.ringPtr.Load()
	if r.Size() == 0 {
		return nil, poolerrors.ErrNoAvailableHosts
	}

	primary, ok := r.Owner(hashKey(op.RoutingKey()))
	if !ok {
		return nil, poolerrors.ErrNoAvailableHosts
	}

	for _, candidate := range s.fallbackOrder(r, primary, exclude) {
		p := s.poolFor(candidate)
		if p == nil || !p.IsActive() {
			continue
		}
		conn, err := p.Borrow(ctx, timeout)
		if err == nil {
			return conn, nil
		}
	}
	return nil, poolerrors.ErrNoAvailableHosts
}

// fallbackOrder returns primary, then same-rack hosts, then same-DC hosts,
// then all remaining hosts, each group deduplicated against hosts already
// tried (spec.md §4.E "rack/DC fallback") and against exclude.
func (s *TokenAware) fallbackOrder(r *ringtoken.Ring, primary host.Host, exclude map[host.Key]bool) []host.Host {
	all := r.All()
	seen := map[host.Key]bool{}
	for k := range exclude {
		seen[k] = true
	}
	var order []host.Host
	if !seen[primary.Key()] {
		order = append(order, primary)
	}
	seen[primary.Key()] = true

	appendGroup := func(match func(host.Host) bool) {
		for _, h := range all {
			if seen[h.Key()] {
				continue
			}
			if match(h) {
				seen[h.Key()] = true
				order = append(order, h)
			}
		}
	}

	appendGroup(func(h host.Host) bool { return h.SameRack(primary) })
	appendGroup(func(h host.Host) bool { return h.SameDC(primary) })
	appendGroup(func(h host.Host) bool { return true })

	return order
}

// GetConnectionsToRing implements Strategy.
func (s *TokenAware) GetConnectionsToRing(ctx context.Context, timeout time.Duration) ([]subpool.Connection, error) {
	r := s.ringPtr.Load()
	partitions := r.Partitions()
	if len(partitions) == 0 {
		return nil, poolerrors.ErrNoAvailableHosts
	}

	conns := make([]subpool.Connection, 0, len(partitions))
	for _, h := range partitions {
		p := s.poolFor(h)
		if p == nil || !p.IsActive() {
			continue
		}
		conn, err := p.Borrow(ctx, timeout)
		if err != nil {
			continue
		}
		conns = append(conns, conn)
	}
	if len(conns) == 0 {
		return nil, poolerrors.ErrNoAvailableHosts
	}
	return conns, nil
}
