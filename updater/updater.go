package updater

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorcz/dyno/host"
	"github.com/robfig/cron/v3"
)

// DefaultRefreshSchedule matches spec.md §9's hard-coded 30s membership
// refresh cadence.
const DefaultRefreshSchedule = "@every 30s"

// DefaultFetchTimeout bounds a single GetHosts call.
const DefaultFetchTimeout = 10 * time.Second

// Config configures a HostsUpdater.
type Config struct {
	Supplier     HostSupplier
	Membership   PoolMembership
	Schedule     string        // cron schedule, defaults to DefaultRefreshSchedule
	FetchTimeout time.Duration // defaults to DefaultFetchTimeout
}

// HostsUpdater runs a synchronous initial refresh followed by a periodic
// refresh on a cron schedule, grounded on
// Resinat-Resin/internal/topology.SubscriptionScheduler's tick/Start/Stop
// shape, swapping its jittered hand-rolled timer (internal/topology/loop.go)
// for robfig/cron/v3's scheduler since the cadence here is fixed rather than
// per-subscription and due-time driven.
type HostsUpdater struct {
	supplier     HostSupplier
	membership   PoolMembership
	fetchTimeout time.Duration
	schedule     string

	cron *cron.Cron

	mu      sync.Mutex
	current map[host.Key]host.Host

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a HostsUpdater. Call Start to begin refreshing.
func New(cfg Config) *HostsUpdater {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultRefreshSchedule
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HostsUpdater{
		supplier:     cfg.Supplier,
		membership:   cfg.Membership,
		fetchTimeout: timeout,
		schedule:     schedule,
		current:      make(map[host.Key]host.Host),
		stopCh:       make(chan struct{}),
	}
}

// Start performs one synchronous refresh so the pool has its initial
// membership before Start returns, then launches the periodic scheduler.
func (u *HostsUpdater) Start(ctx context.Context) error {
	if err := u.refresh(ctx); err != nil {
		return fmt.Errorf("updater: initial refresh: %w", err)
	}

	c := cron.New()
	if _, err := c.AddFunc(u.schedule, u.tick); err != nil {
		return fmt.Errorf("updater: bad schedule %q: %w", u.schedule, err)
	}
	u.cron = c
	c.Start()
	return nil
}

// Stop halts the scheduler and waits for any in-flight tick to finish.
func (u *HostsUpdater) Stop() {
	if u.cron != nil {
		stopCtx := u.cron.Stop()
		<-stopCtx.Done()
	}
	close(u.stopCh)
	u.wg.Wait()
}

func (u *HostsUpdater) tick() {
	select {
	case <-u.stopCh:
		return
	default:
	}
	u.wg.Add(1)
	defer u.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), u.fetchTimeout)
	defer cancel()
	if err := u.refresh(ctx); err != nil {
		log.Printf("[updater] refresh failed: %v", err)
	}
}

// refresh fetches the current host set and applies the add/remove delta
// against the last-applied snapshot, so a fetch that returns an unchanged
// set is a no-op against pool membership.
func (u *HostsUpdater) refresh(ctx context.Context) error {
	hosts, err := u.supplier.GetHosts(ctx)
	if err != nil {
		return err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	next := make(map[host.Key]host.Host, len(hosts))
	for _, h := range hosts {
		next[h.Key()] = h
	}

	applied := make(map[host.Key]host.Host, len(next))
	for k, h := range next {
		if _, ok := u.current[k]; ok {
			applied[k] = h
			continue
		}
		if _, err := u.membership.AddHost(h); err != nil {
			log.Printf("[updater] add host %s failed: %v", h, err)
			continue
		}
		applied[k] = h
	}
	for k, h := range u.current {
		if _, ok := next[k]; ok {
			continue
		}
		if _, err := u.membership.RemoveHost(h); err != nil {
			log.Printf("[updater] remove host %s failed: %v", h, err)
			applied[k] = h
			continue
		}
	}

	u.current = applied
	return nil
}
