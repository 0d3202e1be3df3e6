// Package models defines the catalog database schema: resources, accesses,
// groups, their join tables, and the symmetric conflict matrix.
package models

import (
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

// Resource types accepted by the catalog.
const (
	ResourceTypeAPI      = "API"
	ResourceTypeDatabase = "Database"
	ResourceTypeService  = "Service"
)

// ValidResourceType reports whether t names a known resource type.
func ValidResourceType(t string) bool {
	switch t {
	case ResourceTypeAPI, ResourceTypeDatabase, ResourceTypeService:
		return true
	}
	return false
}

// Resource is a protected asset an access can bundle.
type Resource struct {
	bun.BaseModel `bun:"table:resources,alias:r"`

	ID          int64   `bun:"id,pk,autoincrement" json:"id"`
	Name        string  `bun:"name,notnull" json:"name"`
	Type        string  `bun:"type,notnull" json:"type"`
	Description *string `bun:"description" json:"description"`
}

// ValidateForCreate verifies the record is well formed before insertion.
func (r *Resource) ValidateForCreate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if len(r.Name) > 100 {
		return errors.New("name exceeds maximum length")
	}
	if !ValidResourceType(r.Type) {
		return fmt.Errorf("type must be one of %q, %q, %q",
			ResourceTypeAPI, ResourceTypeDatabase, ResourceTypeService)
	}
	return nil
}

// Access is a named bundle of resources that groups can carry.
type Access struct {
	bun.BaseModel `bun:"table:accesses,alias:a"`

	ID        int64       `bun:"id,pk,autoincrement" json:"id"`
	Name      string      `bun:"name,notnull" json:"name"`
	Resources []*Resource `bun:"m2m:access_resources,join:Access=Resource" json:"resources"`
}

// ValidateForCreate verifies the record is well formed before insertion.
func (a *Access) ValidateForCreate() error {
	if a.Name == "" {
		return errors.New("name is required")
	}
	if len(a.Name) > 100 {
		return errors.New("name exceeds maximum length")
	}
	return nil
}

// Group is a named set of accesses users can be entitled to.
type Group struct {
	bun.BaseModel `bun:"table:groups,alias:g"`

	ID       int64     `bun:"id,pk,autoincrement" json:"id"`
	Name     string    `bun:"name,notnull,unique" json:"name"`
	Accesses []*Access `bun:"m2m:group_accesses,join:Group=Access" json:"accesses"`
}

// ValidateForCreate verifies the record is well formed before insertion.
func (g *Group) ValidateForCreate() error {
	if g.Name == "" {
		return errors.New("name is required")
	}
	if len(g.Name) > 100 {
		return errors.New("name exceeds maximum length")
	}
	return nil
}

// AccessResource joins accesses to the resources they bundle.
type AccessResource struct {
	bun.BaseModel `bun:"table:access_resources,alias:ar"`

	AccessID   int64     `bun:"access_id,pk"`
	Access     *Access   `bun:"rel:belongs-to,join:access_id=id"`
	ResourceID int64     `bun:"resource_id,pk"`
	Resource   *Resource `bun:"rel:belongs-to,join:resource_id=id"`
}

// GroupAccess joins groups to the accesses they carry.
type GroupAccess struct {
	bun.BaseModel `bun:"table:group_accesses,alias:ga"`

	GroupID  int64   `bun:"group_id,pk"`
	Group    *Group  `bun:"rel:belongs-to,join:group_id=id"`
	AccessID int64   `bun:"access_id,pk"`
	Access   *Access `bun:"rel:belongs-to,join:access_id=id"`
}

// Conflict is one direction of a conflict-of-interest pair. Pairs are stored
// twice, (a,b) and (b,a), so the matrix scan needs no symmetry handling.
type Conflict struct {
	bun.BaseModel `bun:"table:conflicts,alias:c"`

	GroupID1 int64 `bun:"group_id1,pk" json:"group_id1"`
	GroupID2 int64 `bun:"group_id2,pk" json:"group_id2"`
}

// RegisterModels makes the join tables known to bun so m2m relations resolve.
// Must run once per *bun.DB before any relation query.
func RegisterModels(db *bun.DB) {
	db.RegisterModel((*AccessResource)(nil))
	db.RegisterModel((*GroupAccess)(nil))
}
