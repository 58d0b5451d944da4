package service

import (
	"context"
	"fmt"
	"time"

	"github.com/udv-group/stand-control-bot/internal/model"
	"github.com/udv-group/stand-control-bot/internal/registry"
)

// HostsService grants and releases host leases.  Every operation runs
// inside one store transaction: commit on success, rollback on any
// error, so a rejected allocation leaves no partial state behind.  A
// host moves Free -> Leased -> Free and nothing else; conflicting
// requests are rejected, never queued.
type HostsService struct {
	store        registry.Store
	defaultLimit int
	now          func() time.Time
}

// NewHostsService constructs a HostsService.  defaultLimit is the
// concurrent-lease quota applied to users without an ad-group
// override.
func NewHostsService(store registry.Store, defaultLimit int) *HostsService {
	return &HostsService{
		store:        store,
		defaultLimit: defaultLimit,
		now:          time.Now,
	}
}

// Lease grants the user a lease on every requested host until now +
// leaseFor.  Requesting a host the user already holds fails with
// AlreadyLeasedError listing the conflicting ids; exceeding the
// resolved quota fails with ErrLeaseLimit.  An empty request is a
// legal no-op.  On success the freshly leased rows are returned joined
// with user info.
func (s *HostsService) Lease(ctx context.Context, userID model.UserID, userGroups []string, hostIDs []model.HostID, leaseFor time.Duration) ([]model.LeasedHost, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	leased, err := tx.GetLeasedHosts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read leased hosts: %w", err)
	}
	leasedSet := make(map[model.HostID]struct{}, len(leased))
	for _, lh := range leased {
		leasedSet[lh.ID] = struct{}{}
	}

	// Deduplicate the request and collect hosts the user already holds.
	requested := make([]model.HostID, 0, len(hostIDs))
	seen := make(map[model.HostID]struct{}, len(hostIDs))
	conflicting := make([]model.HostID, 0)
	for _, id := range hostIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		requested = append(requested, id)
		if _, ok := leasedSet[id]; ok {
			conflicting = append(conflicting, id)
		}
	}
	if len(conflicting) > 0 {
		return nil, alreadyLeased(conflicting)
	}
	if len(requested) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit transaction: %w", err)
		}
		committed = true
		return []model.LeasedHost{}, nil
	}

	limit, err := leaseLimit(ctx, tx, userGroups, s.defaultLimit)
	if err != nil {
		return nil, fmt.Errorf("resolve lease limit: %w", err)
	}
	if len(leased)+len(requested) > limit {
		return nil, ErrLeaseLimit
	}

	affected, err := tx.LeaseHosts(ctx, userID, requested, s.now().Add(leaseFor))
	if err != nil {
		return nil, fmt.Errorf("lease hosts: %w", err)
	}
	if affected != int64(len(requested)) {
		// Somebody leased part of the set between our read and the
		// conditional update; report the rows that did not flip.
		taken, err := tx.GetHosts(ctx, requested)
		if err != nil {
			return nil, fmt.Errorf("read conflicting hosts: %w", err)
		}
		conflicting = conflicting[:0]
		for _, h := range taken {
			if h.UserID != nil && *h.UserID != userID {
				conflicting = append(conflicting, h.ID)
			}
		}
		return nil, alreadyLeased(conflicting)
	}

	all, err := tx.GetLeasedHosts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read leased hosts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true

	fresh := make([]model.LeasedHost, 0, len(requested))
	for _, lh := range all {
		if _, ok := seen[lh.ID]; ok {
			fresh = append(fresh, lh)
		}
	}
	return fresh, nil
}

// LeaseRandom grants the user a lease on the first free host of the
// group, ordered by address so behaviour is deterministic.  It fails
// with ErrLeaseLimit when the user is already at quota and with
// ErrNoFreeHosts when the group has nothing left.
func (s *HostsService) LeaseRandom(ctx context.Context, userID model.UserID, userGroups []string, leaseFor time.Duration, groupID model.GroupID) (*model.LeasedHost, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	limit, err := leaseLimit(ctx, tx, userGroups, s.defaultLimit)
	if err != nil {
		return nil, fmt.Errorf("resolve lease limit: %w", err)
	}
	leased, err := tx.GetLeasedHosts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read leased hosts: %w", err)
	}
	if len(leased) >= limit {
		return nil, ErrLeaseLimit
	}

	host, err := tx.GetFirstAvailableGroupHost(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("read available hosts: %w", err)
	}
	if host == nil {
		return nil, ErrNoFreeHosts
	}
	affected, err := tx.LeaseHosts(ctx, userID, []model.HostID{host.ID}, s.now().Add(leaseFor))
	if err != nil {
		return nil, fmt.Errorf("lease host: %w", err)
	}
	if affected != 1 {
		return nil, alreadyLeased([]model.HostID{host.ID})
	}
	lh, err := tx.GetLeasedHost(ctx, host.ID)
	if err != nil {
		return nil, fmt.Errorf("read leased host: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return lh, nil
}

// Free releases the listed hosts, but only those currently owned by
// the user.  Releasing a host owned by someone else (or nobody) is a
// silent no-op for that host.
func (s *HostsService) Free(ctx context.Context, userID model.UserID, hostIDs []model.HostID) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := tx.FreeHostsForUser(ctx, hostIDs, userID); err != nil {
		return fmt.Errorf("free hosts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// FreeAll releases every host currently owned by the user.
func (s *HostsService) FreeAll(ctx context.Context, userID model.UserID) error {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := tx.FreeAllHosts(ctx, userID); err != nil {
		return fmt.Errorf("free hosts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

// GetAllHosts returns every host, leased or not.
func (s *HostsService) GetAllHosts(ctx context.Context) ([]model.Host, error) {
	return s.readHosts(ctx, func(ctx context.Context, tx registry.Tx) ([]model.Host, error) {
		return tx.GetAllHosts(ctx)
	})
}

// GetAvailableHosts returns every free host.
func (s *HostsService) GetAvailableHosts(ctx context.Context) ([]model.Host, error) {
	return s.readHosts(ctx, func(ctx context.Context, tx registry.Tx) ([]model.Host, error) {
		return tx.GetAvailableHosts(ctx)
	})
}

// GetAvailableGroupHosts returns the free hosts of one group.
func (s *HostsService) GetAvailableGroupHosts(ctx context.Context, groupID model.GroupID) ([]model.Host, error) {
	return s.readHosts(ctx, func(ctx context.Context, tx registry.Tx) ([]model.Host, error) {
		return tx.GetAvailableGroupHosts(ctx, groupID)
	})
}

// GetLeasedHosts returns the user's current leases joined with user
// info, ordered by expiry.
func (s *HostsService) GetLeasedHosts(ctx context.Context, userID model.UserID) ([]model.LeasedHost, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	hosts, err := tx.GetLeasedHosts(ctx, userID)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("read leased hosts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return hosts, nil
}

func (s *HostsService) readHosts(ctx context.Context, query func(context.Context, registry.Tx) ([]model.Host, error)) ([]model.Host, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	hosts, err := query(ctx, tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("read hosts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return hosts, nil
}
