package model

import "time"

// Host represents a physical or virtual test host as stored in the
// `hosts` table.  A host belongs to exactly one group and is either
// free or leased; the lease itself is the (UserID, LeasedUntil) pair
// on the row, so both fields are nil for a free host and both are set
// for a leased one.
//
// Fields:
//  ID          – primary key identifier.
//  Hostname    – DNS name of the host.
//  IPAddress   – textual IP address of the host.
//  GroupID     – group the host belongs to.
//  UserID      – current lease owner (nil when free).
//  LeasedUntil – lease expiry timestamp in UTC (nil when free).
type Host struct {
	ID          HostID     // hosts.id
	Hostname    string     // hosts.hostname
	IPAddress   string     // hosts.ip_address
	GroupID     GroupID    // hosts.group_id
	UserID      *UserID    // hosts.user_id (nullable)
	LeasedUntil *time.Time // hosts.leased_until (nullable)
}

// Leased reports whether the host currently has an owner.
func (h Host) Leased() bool { return h.UserID != nil }

// LeasedHost is a host row joined with its owning user.  It is only
// produced for hosts that are currently leased, so LeasedUntil is not
// nullable here.
type LeasedHost struct {
	ID          HostID    // hosts.id
	Hostname    string    // hosts.hostname
	IPAddress   string    // hosts.ip_address
	GroupID     GroupID   // hosts.group_id
	LeasedUntil time.Time // hosts.leased_until
	User        User      // joined users row
}
