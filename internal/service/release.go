package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/udv-group/stand-control-bot/internal/model"
	"github.com/udv-group/stand-control-bot/internal/registry"
)

// ReleaseTimer is the background loop that reclaims expired leases and
// warns owners about leases that are about to expire.  It shares the
// store and notifier with the request path but is the only component
// with autonomous control flow; the loop never terminates except by
// context cancellation at process shutdown.
//
// The per-user debounce state lives in the warned map, which is owned
// exclusively by the timer goroutine and never touched from elsewhere,
// so it needs no locking.
type ReleaseTimer struct {
	store      registry.Store
	notifier   *Notifier
	interval   time.Duration
	warnWindow time.Duration
	warned     map[model.UserID]warnEntry
	now        func() time.Time
}

// warnEntry remembers when a user was last warned and about which
// exact host set, keyed canonically so an unchanged set is recognised
// across sweeps.
type warnEntry struct {
	at    time.Time
	hosts string
}

// NewReleaseTimer constructs a ReleaseTimer.  interval is how often
// the loop sweeps; warnWindow is both the look-ahead for expiring-soon
// warnings and the debounce period for repeating an unchanged warning.
func NewReleaseTimer(store registry.Store, notifier *Notifier, interval, warnWindow time.Duration) *ReleaseTimer {
	return &ReleaseTimer{
		store:      store,
		notifier:   notifier,
		interval:   interval,
		warnWindow: warnWindow,
		warned:     make(map[model.UserID]warnEntry),
		now:        time.Now,
	}
}

// Run sweeps immediately, then on every tick until the context is
// cancelled.  Per-tick failures are logged and the loop keeps going; a
// failure in one pass never blocks the other.
func (t *ReleaseTimer) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		t.sweep(ctx)
		select {
		case <-ctx.Done():
			log.Printf("release-timer: stopping: %v", ctx.Err())
			return
		case <-ticker.C:
		}
	}
}

// sweep runs the two independent passes of one tick.
func (t *ReleaseTimer) sweep(ctx context.Context) {
	if err := t.reclaim(ctx); err != nil {
		log.Printf("release-timer: reclaim pass failed: %v", err)
	}
	if err := t.warnExpiring(ctx); err != nil {
		log.Printf("release-timer: expiration warning pass failed: %v", err)
	}
}

// reclaim frees every host whose lease has run out, then tells each
// prior owner once which of their hosts were released.  Freeing is
// committed before any notification goes out: reclamation is final
// even when the user is never told.
func (t *ReleaseTimer) reclaim(ctx context.Context) error {
	tx, err := t.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	expired, err := tx.GetLeasedUntilHosts(ctx, t.now())
	if err != nil {
		return fmt.Errorf("read expired hosts: %w", err)
	}
	if len(expired) == 0 {
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		committed = true
		return nil
	}
	ids := make([]model.HostID, 0, len(expired))
	for _, lh := range expired {
		ids = append(ids, lh.ID)
	}
	if err := tx.FreeHosts(ctx, ids); err != nil {
		return fmt.Errorf("free hosts %v: %w", ids, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true

	for owner, ownerIDs := range groupByOwner(expired) {
		if err := t.notifier.Notify(ctx, owner, HostsReleased(ownerIDs)); err != nil {
			log.Printf("release-timer: released notification for user %s hosts %v failed: %v", owner, ownerIDs, err)
		}
	}
	return nil
}

// warnExpiring notifies owners whose leases fall due within the warn
// window.  An owner is not re-warned about the same exact host set
// until the window has passed, but a changed set re-warns immediately.
func (t *ReleaseTimer) warnExpiring(ctx context.Context) error {
	tx, err := t.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	now := t.now()
	expiring, err := tx.GetLeasedUntilHosts(ctx, now.Add(t.warnWindow))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("read expiring hosts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	// Hosts already past their deadline belong to the reclaim pass,
	// even when that pass failed this tick; only leases still running
	// get an expiring-soon warning.
	soon := make([]model.LeasedHost, 0, len(expiring))
	for _, lh := range expiring {
		if lh.LeasedUntil.After(now) {
			soon = append(soon, lh)
		}
	}
	groups := groupByOwner(soon)

	// Owners with nothing expiring any more drop out of the debounce
	// state, so a fresh lease cycle warns again from scratch.
	for owner := range t.warned {
		if _, ok := groups[owner]; !ok {
			delete(t.warned, owner)
		}
	}

	for owner, ids := range groups {
		key := hostSetKey(ids)
		if prev, ok := t.warned[owner]; ok && prev.hosts == key && now.Sub(prev.at) < t.warnWindow {
			continue
		}
		if err := t.notifier.Notify(ctx, owner, ExpirationSoon(ids)); err != nil {
			log.Printf("release-timer: expiration warning for user %s hosts %v failed: %v", owner, ids, err)
			continue
		}
		t.warned[owner] = warnEntry{at: now, hosts: key}
	}
	return nil
}

// groupByOwner buckets leased hosts per owning user, each bucket
// sorted by host id.
func groupByOwner(hosts []model.LeasedHost) map[model.UserID][]model.HostID {
	grouped := make(map[model.UserID][]model.HostID)
	for _, lh := range hosts {
		grouped[lh.User.ID] = append(grouped[lh.User.ID], lh.ID)
	}
	for _, ids := range grouped {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return grouped
}

// hostSetKey renders a sorted host id list as a canonical string for
// set comparison.
func hostSetKey(sorted []model.HostID) string {
	parts := make([]string, 0, len(sorted))
	for _, id := range sorted {
		parts = append(parts, id.String())
	}
	return strings.Join(parts, ",")
}
