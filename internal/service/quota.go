package service

import (
	"context"

	"github.com/udv-group/stand-control-bot/internal/model"
	"github.com/udv-group/stand-control-bot/internal/registry"
)

// resolveLeaseLimit computes the effective concurrent-lease quota from
// the ad-group limits that matched the user's group memberships.  The
// union is permissive: membership in any high-quota group wins even if
// the user is also in a low-quota one.  When nothing matched, the
// configured default applies.  There is no error path; absent data
// degrades to the default.
func resolveLeaseLimit(limits []model.AdGroupLeaseLimit, defaultLimit int) int {
	limit := defaultLimit
	for i, l := range limits {
		if i == 0 || l.Limit > limit {
			limit = l.Limit
		}
	}
	return limit
}

// leaseLimit resolves the quota for a user with the given external
// group memberships inside the supplied transaction.  Group names are
// an explicit argument on every call; the caller (web or bot edge)
// owns the directory lookup.
func leaseLimit(ctx context.Context, tx registry.Tx, userGroups []string, defaultLimit int) (int, error) {
	limits, err := tx.GetAdGroupLeaseLimits(ctx, userGroups)
	if err != nil {
		return 0, err
	}
	return resolveLeaseLimit(limits, defaultLimit), nil
}
