package ringtoken

import (
	"testing"

	"github.com/gorcz/dyno/host"
)

func hosts() []host.Host {
	return []host.Host{
		{Hostname: "c", Port: 1, Token: 300},
		{Hostname: "a", Port: 1, Token: 100},
		{Hostname: "b", Port: 1, Token: 200},
	}
}

func TestOwnerFindsFirstTokenAtOrAboveHash(t *testing.T) {
	r := Build(hosts())
	if got, _ := r.Owner(150); got.Hostname != "b" {
		t.Fatalf("expected owner b for hash 150, got %s", got.Hostname)
	}
	if got, _ := r.Owner(100); got.Hostname != "a" {
		t.Fatalf("expected owner a for exact-match hash 100, got %s", got.Hostname)
	}
}

func TestOwnerWrapsAroundPastHighestToken(t *testing.T) {
	r := Build(hosts())
	got, ok := r.Owner(400)
	if !ok {
		t.Fatal("expected Owner to succeed on a non-empty ring")
	}
	if got.Hostname != "a" {
		t.Fatalf("expected wraparound owner a, got %s", got.Hostname)
	}
}

func TestOwnerOnEmptyRing(t *testing.T) {
	r := Build(nil)
	if _, ok := r.Owner(1); ok {
		t.Fatal("expected Owner to fail on an empty ring")
	}
}

func TestOwnerOnNilRing(t *testing.T) {
	var r *Ring
	if _, ok := r.Owner(1); ok {
		t.Fatal("expected Owner to fail on a nil ring")
	}
	if r.Size() != 0 {
		t.Fatal("expected Size 0 on a nil ring")
	}
}

func TestBuildOrdersEqualTokensByHostPort(t *testing.T) {
	hs := []host.Host{
		{Hostname: "z", Port: 2, Token: 100},
		{Hostname: "z", Port: 1, Token: 100},
	}
	r := Build(hs)
	all := r.All()
	if len(all) != 2 || all[0].Port != 1 || all[1].Port != 2 {
		t.Fatalf("expected deterministic ordering by port for equal tokens, got %+v", all)
	}
}

func TestPartitionsOneEntryPerDistinctToken(t *testing.T) {
	hs := []host.Host{
		{Hostname: "a", Port: 1, Token: 100},
		{Hostname: "a-replica", Port: 2, Token: 100},
		{Hostname: "b", Port: 1, Token: 200},
	}
	r := Build(hs)
	parts := r.Partitions()
	if len(parts) != 2 {
		t.Fatalf("expected 2 partitions for 2 distinct tokens, got %d: %+v", len(parts), parts)
	}
}

func TestAllReturnsEveryHost(t *testing.T) {
	r := Build(hosts())
	if got := len(r.All()); got != 3 {
		t.Fatalf("expected 3 hosts, got %d", got)
	}
	if got := r.Size(); got != 3 {
		t.Fatalf("expected Size 3, got %d", got)
	}
}
