package model

// AdGroupLeaseLimit maps an external directory group name to a
// concurrent-lease quota override.  A user who is a member of several
// listed groups gets the most permissive (maximum) limit; users
// matching none of them fall back to the configured default.
//
// Fields:
//  GroupName – external directory group name.
//  Limit     – maximum number of simultaneous leases.
type AdGroupLeaseLimit struct {
	GroupName string // lease_limits_by_ad_group.group_name
	Limit     int    // lease_limits_by_ad_group.lease_limit
}
