// Package ringtoken implements the token-ring math behind token-aware
// selection: given an operation's hashed routing key, find the host that
// owns that position on the ring. This is the one piece of the "exact
// load-balancing math" that spec.md §1 keeps out of scope for the
// orchestrator itself, so it is kept here as a small, swappable helper
// rather than folded into the selection package directly.
package ringtoken

import (
	"sort"

	"github.com/gorcz/dyno/host"
)

// entry is one token assignment on the ring.
type entry struct {
	token uint64
	h     host.Host
}

// Ring is an immutable, sorted view of token ownership. A new Ring is built
// wholesale on every membership change and published via atomic.Pointer by
// the selection strategy so readers never observe a partially updated ring
// (spec.md §9 "Selection snapshot").
type Ring struct {
	entries []entry
}

// Build constructs a Ring from the given hosts. Hosts with identical tokens
// are ordered by (Hostname, Port) to keep ownership deterministic.
func Build(hosts []host.Host) *Ring {
	entries := make([]entry, 0, len(hosts))
	for _, h := range hosts {
		entries = append(entries, entry{token: h.Token, h: h})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].token != entries[j].token {
			return entries[i].token < entries[j].token
		}
		if entries[i].h.Hostname != entries[j].h.Hostname {
			return entries[i].h.Hostname < entries[j].h.Hostname
		}
		return entries[i].h.Port < entries[j].h.Port
	})
	return &Ring{entries: entries}
}

// Size returns the number of hosts on the ring.
func (r *Ring) Size() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Owner returns the host owning the ring position at hash: the first entry
// whose token is >= hash, wrapping around to the first entry otherwise.
func (r *Ring) Owner(hash uint64) (host.Host, bool) {
	if r == nil || len(r.entries) == 0 {
		return host.Host{}, false
	}
	i := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].token >= hash
	})
	if i == len(r.entries) {
		i = 0
	}
	return r.entries[i].h, true
}

// Partitions returns one host per distinct token on the ring, in ring
// order — one representative per partition, used by
// GetConnectionsToRing (spec.md §4.G.5).
func (r *Ring) Partitions() []host.Host {
	if r == nil {
		return nil
	}
	out := make([]host.Host, 0, len(r.entries))
	var lastToken uint64
	first := true
	for _, e := range r.entries {
		if first || e.token != lastToken {
			out = append(out, e.h)
			lastToken = e.token
			first = false
		}
	}
	return out
}

// All returns every host on the ring.
func (r *Ring) All() []host.Host {
	if r == nil {
		return nil
	}
	out := make([]host.Host, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.h
	}
	return out
}
