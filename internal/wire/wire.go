package wire

import "errors"

// Queue names shared by the entitlement and validation services. Both queues
// are declared durable and carry persistent JSON messages.
const (
	ValidationQueue = "validation_queue"
	ResultQueue     = "result_queue"
)

// Entitlement kinds carried on the wire and stored in user_permissions.
const (
	KindGroup  = "group"
	KindAccess = "access"
)

// ValidationJob asks the validation service to run the conflict predicate for
// one pending entitlement request.
type ValidationJob struct {
	UserID         int64  `json:"user_id"`
	PermissionType string `json:"permission_type"`
	ItemID         int64  `json:"item_id"`
	RequestID      string `json:"request_id"`
}

// Validate verifies the job carries every field the predicate needs.
func (j *ValidationJob) Validate() error {
	if j.RequestID == "" {
		return errors.New("request_id is required")
	}
	if j.UserID <= 0 {
		return errors.New("user_id must be positive")
	}
	if j.ItemID <= 0 {
		return errors.New("item_id must be positive")
	}
	if j.PermissionType != KindGroup && j.PermissionType != KindAccess {
		return errors.New("permission_type must be \"group\" or \"access\"")
	}
	return nil
}

// ValidationResult reports the predicate outcome back to the entitlement
// service. Reason is set only when Approved is false.
type ValidationResult struct {
	RequestID      string `json:"request_id"`
	Approved       bool   `json:"approved"`
	Reason         string `json:"reason,omitempty"`
	UserID         int64  `json:"user_id"`
	PermissionType string `json:"permission_type"`
	ItemID         int64  `json:"item_id"`
}

// Validate verifies the result identifies the request it belongs to.
func (r *ValidationResult) Validate() error {
	if r.RequestID == "" {
		return errors.New("request_id is required")
	}
	if r.UserID <= 0 {
		return errors.New("user_id must be positive")
	}
	if r.ItemID <= 0 {
		return errors.New("item_id must be positive")
	}
	if r.PermissionType != KindGroup && r.PermissionType != KindAccess {
		return errors.New("permission_type must be \"group\" or \"access\"")
	}
	return nil
}
