// Package service holds the lease allocation logic: the hosts service
// that grants and releases leases, the quota resolution over ad-group
// limits, the notifier that formats and dispatches user messages and
// the release timer that reclaims expired leases in the background.
package service

import (
	"errors"
	"fmt"
	"sort"

	"github.com/udv-group/stand-control-bot/internal/model"
)

// ErrLeaseLimit is returned when granting the requested leases would
// push the user over their concurrent-lease quota.  Handlers should
// translate this into an HTTP 409 response.
var ErrLeaseLimit = errors.New("hosts lease limit is reached")

// ErrNoFreeHosts is returned by random allocation when the requested
// group has no free host left.
var ErrNoFreeHosts = errors.New("there is no free hosts")

// ErrNoNotificationHandle is returned when a notification is requested
// for a user who has not linked a delivery address yet.  Callers log
// it and move on; it is never fatal.
var ErrNoNotificationHandle = errors.New("user has no notification handle")

// ErrSendingDisabled is returned by the disabled message sender, used
// when the process runs without a notification transport.
var ErrSendingDisabled = errors.New("message sending is disabled")

// AlreadyLeasedError reports which of the requested hosts are already
// leased, either by the requesting user or by somebody who beat this
// transaction to them.
type AlreadyLeasedError struct {
	HostIDs []model.HostID
}

func (e *AlreadyLeasedError) Error() string {
	return fmt.Sprintf("hosts already leased: %v", e.HostIDs)
}

// alreadyLeased builds an AlreadyLeasedError with the ids sorted so
// that messages and assertions are deterministic.
func alreadyLeased(ids []model.HostID) *AlreadyLeasedError {
	sorted := make([]model.HostID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &AlreadyLeasedError{HostIDs: sorted}
}
