package selection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gorcz/dyno/host"
	"github.com/gorcz/dyno/poolerrors"
	"github.com/gorcz/dyno/subpool"
)

type fakeOp struct{ key string }

func (o fakeOp) RoutingKey() string { return o.key }

type fakeConn struct {
	h host.Host
	p subpool.SubPool
}

func (c *fakeConn) Host() host.Host { return c.h }
func (c *fakeConn) Execute(ctx context.Context, op subpool.Operation) (subpool.Result, error) {
	return subpool.Result{}, nil
}
func (c *fakeConn) ExecuteAsync(ctx context.Context, op subpool.Operation) <-chan subpool.AsyncResult {
	ch := make(chan subpool.AsyncResult, 1)
	ch <- subpool.AsyncResult{}
	close(ch)
	return ch
}
func (c *fakeConn) Attempt() subpool.Context { return nil }
func (c *fakeConn) Parent() subpool.SubPool  { return c.p }

type fakePool struct {
	h      host.Host
	active bool
	// borrowErr, when set, is returned by every Borrow call.
	borrowErr error
}

func (p *fakePool) PrimeConnections(ctx context.Context) (int, error) { return 1, nil }
func (p *fakePool) IsActive() bool                                   { return p.active }
func (p *fakePool) PrimedCount() int                                 { return 1 }
func (p *fakePool) Borrow(ctx context.Context, timeout time.Duration) (subpool.Connection, error) {
	if p.borrowErr != nil {
		return nil, p.borrowErr
	}
	return &fakeConn{h: p.h, p: p}, nil
}
func (p *fakePool) Return(c subpool.Connection) {}
func (p *fakePool) Shutdown()                   {}

func newMember(hostname string, port int, rack, dc string, token uint64, active bool) Member {
	h := host.Host{Hostname: hostname, Port: port, Rack: rack, DC: dc, Token: token}
	return Member{Host: h, Pool: &fakePool{h: h, active: active}}
}

func membersMap(ms ...Member) map[host.Key]Member {
	out := make(map[host.Key]Member, len(ms))
	for _, m := range ms {
		out[m.Host.Key()] = m
	}
	return out
}

func TestGetConnectionReturnsTokenOwner(t *testing.T) {
	s := NewTokenAware()
	a := newMember("a", 1, "r1", "dc1", 0, true)
	b := newMember("b", 1, "r1", "dc1", 1<<62, true)
	s.InitWithHosts(membersMap(a, b))

	conn, err := s.GetConnection(context.Background(), fakeOp{key: "k1"}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.Host() != a.Host && conn.Host() != b.Host {
		t.Fatalf("expected connection to a known host, got %v", conn.Host())
	}
}

func TestGetConnectionFallsBackToSameRackWhenOwnerInactive(t *testing.T) {
	s := NewTokenAware()
	owner := host.Host{Hostname: "owner", Port: 1, Rack: "r1", DC: "dc1", Token: 0}
	ownerPool := &fakePool{h: owner, active: false}
	rackmate := host.Host{Hostname: "rackmate", Port: 1, Rack: "r1", DC: "dc1", Token: 100}
	rackmatePool := &fakePool{h: rackmate, active: true}
	other := host.Host{Hostname: "other", Port: 1, Rack: "r2", DC: "dc2", Token: 200}
	otherPool := &fakePool{h: other, active: true}

	s.InitWithHosts(map[host.Key]Member{
		owner.Key():    {Host: owner, Pool: ownerPool},
		rackmate.Key(): {Host: rackmate, Pool: rackmatePool},
		other.Key():    {Host: other, Pool: otherPool},
	})

	conn, err := s.GetConnection(context.Background(), fakeOp{key: "k1"}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.Host() != rackmate {
		t.Fatalf("expected fallback to same-rack host %v, got %v", rackmate, conn.Host())
	}
}

func TestGetConnectionExcludingSkipsExcludedHosts(t *testing.T) {
	s := NewTokenAware()
	a := newMember("a", 1, "r1", "dc1", 0, true)
	b := newMember("b", 1, "r1", "dc1", 1<<62, true)
	s.InitWithHosts(membersMap(a, b))

	exclude := map[host.Key]bool{a.Host.Key(): true, b.Host.Key(): true}
	_, err := s.GetConnectionExcluding(context.Background(), fakeOp{key: "k1"}, time.Second, exclude)
	if !errors.Is(err, poolerrors.ErrNoAvailableHosts) {
		t.Fatalf("expected ErrNoAvailableHosts when all hosts excluded, got %v", err)
	}
}

func TestGetConnectionOnEmptyRing(t *testing.T) {
	s := NewTokenAware()
	s.InitWithHosts(map[host.Key]Member{})
	_, err := s.GetConnection(context.Background(), fakeOp{key: "k1"}, time.Second)
	if !errors.Is(err, poolerrors.ErrNoAvailableHosts) {
		t.Fatalf("expected ErrNoAvailableHosts on empty ring, got %v", err)
	}
}

func TestAddHostThenRemoveHostUpdatesTopology(t *testing.T) {
	s := NewTokenAware()
	s.InitWithHosts(map[host.Key]Member{})
	h := host.Host{Hostname: "a", Port: 1, Token: 0}
	p := &fakePool{h: h, active: true}
	s.AddHost(h, p)
	if got := s.Topology().HostCount; got != 1 {
		t.Fatalf("expected 1 host after AddHost, got %d", got)
	}
	s.RemoveHost(h, p)
	if got := s.Topology().HostCount; got != 0 {
		t.Fatalf("expected 0 hosts after RemoveHost, got %d", got)
	}
}

func TestGetConnectionsToRingReturnsOnePerPartitionSkippingInactive(t *testing.T) {
	s := NewTokenAware()
	a := newMember("a", 1, "r1", "dc1", 0, true)
	b := newMember("b", 1, "r1", "dc1", 100, false)
	c := newMember("c", 1, "r2", "dc1", 200, true)
	s.InitWithHosts(membersMap(a, b, c))

	conns, err := s.GetConnectionsToRing(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(conns) != 2 {
		t.Fatalf("expected 2 connections (inactive partition skipped), got %d", len(conns))
	}
}

func TestGetConnectionsToRingFailsWhenNoneActive(t *testing.T) {
	s := NewTokenAware()
	a := newMember("a", 1, "r1", "dc1", 0, false)
	s.InitWithHosts(membersMap(a))

	_, err := s.GetConnectionsToRing(context.Background(), time.Second)
	if !errors.Is(err, poolerrors.ErrNoAvailableHosts) {
		t.Fatalf("expected ErrNoAvailableHosts, got %v", err)
	}
}
