package model

import "strconv"

// Identifier types are distinct integer wrappers so that a host id can
// never be passed where a user id is expected.  They carry no behaviour
// beyond conversion and formatting; equality and hashing work on the
// underlying value.

// UserID identifies a row in the `users` table.
type UserID int64

// HostID identifies a row in the `hosts` table.
type HostID int64

// GroupID identifies a row in the `groups` table.
type GroupID int64

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id HostID) String() string { return strconv.FormatInt(int64(id), 10) }

func (id GroupID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseHostID converts a decimal string into a HostID.  It is used by
// the HTTP layer when binding path and body parameters.
func ParseHostID(s string) (HostID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return HostID(v), nil
}

// ParseGroupID converts a decimal string into a GroupID.
func ParseGroupID(s string) (GroupID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return GroupID(v), nil
}
