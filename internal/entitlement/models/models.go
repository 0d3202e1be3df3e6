// Package models defines the entitlement database schema: users and their
// permission rows with the pending/active/rejected/revoked lifecycle.
package models

import (
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/wardenhq/warden/internal/wire"
)

// Entitlement statuses.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusRejected = "rejected"
	StatusRevoked  = "revoked"
)

// User is a subject that can hold entitlements.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID       int64  `bun:"id,pk,autoincrement" json:"id"`
	Username string `bun:"username,notnull,unique" json:"username"`
}

// ValidateForCreate verifies the record is well formed before insertion.
func (u *User) ValidateForCreate() error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if len(u.Username) > 50 {
		return errors.New("username exceeds maximum length")
	}
	return nil
}

// UserEntitlement is one user's relationship to a group or access. At most
// one row exists per (user_id, permission_type, item_id); re-requests after
// rejection or revocation reuse the row with a fresh request_id.
type UserEntitlement struct {
	bun.BaseModel `bun:"table:user_permissions,alias:up"`

	ID             int64      `bun:"id,pk,autoincrement" json:"id"`
	UserID         int64      `bun:"user_id,notnull" json:"user_id"`
	PermissionType string     `bun:"permission_type,notnull" json:"permission_type"`
	ItemID         int64      `bun:"item_id,notnull" json:"item_id"`
	ItemName       *string    `bun:"item_name" json:"item_name,omitempty"`
	Status         string     `bun:"status,notnull,default:'pending'" json:"status"`
	RequestID      string     `bun:"request_id,notnull,unique" json:"request_id"`
	AssignedAt     *time.Time `bun:"assigned_at,nullzero" json:"assigned_at,omitempty"`

	User *User `bun:"rel:belongs-to,join:user_id=id" json:"-"`
}

// ValidKind reports whether k is a known entitlement kind.
func ValidKind(k string) bool {
	return k == wire.KindGroup || k == wire.KindAccess
}

// Terminal reports whether the row reached a settled state: re-requests are
// allowed, result re-application is a no-op.
func (e *UserEntitlement) Terminal() bool {
	return e.Status != StatusPending
}

// Blocking reports whether the row refuses a new request for its triple.
func (e *UserEntitlement) Blocking() bool {
	return e.Status == StatusPending || e.Status == StatusActive
}
