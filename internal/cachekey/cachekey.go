// Package cachekey defines the Redis key space shared by the catalog,
// entitlement, and validation services. Every key holds a JSON document and
// is invalidated by point deletion from the service that owns it.
package cachekey

import "fmt"

// ConflictsMatrix holds the full conflict pair list. Owned by the catalog
// service; the validation service reads through it.
const ConflictsMatrix = "conflicts:matrix"

// GroupAccesses holds the accesses carried by one group.
func GroupAccesses(groupID int64) string {
	return fmt.Sprintf("group:%d:accesses", groupID)
}

// AccessGroups holds the groups that carry one access.
func AccessGroups(accessID int64) string {
	return fmt.Sprintf("access:%d:groups", accessID)
}

// UserActiveGroups holds a user's active group entitlements. Owned by the
// entitlement service.
func UserActiveGroups(userID int64) string {
	return fmt.Sprintf("user:%d:active_groups", userID)
}
