// Package access decides which users, campaigns and campaign sends a
// principal may see or change.
//
// Both entry points, the query scope returned by Restrict and the single
// resource check CanAccess, are derived from the same rule so that a resource
// passes CanAccess exactly when a Restrict-ed query would return its row.
package access

import (
	"safeclicker/models"

	"gorm.io/gorm"
)

// Principal is the authenticated actor an operation runs for.
type Principal struct {
	ID           uint
	Role         models.Role
	DepartmentID *uint
}

func PrincipalFromUser(u *models.User) Principal {
	if u == nil {
		return Principal{}
	}
	return Principal{ID: u.ID, Role: u.Role, DepartmentID: u.DepartmentID}
}

// Entity names a scoped table.
type Entity int

const (
	EntityUser Entity = iota + 1
	EntityCampaign
	EntityCampaignSend
)

func (e Entity) String() string {
	switch e {
	case EntityUser:
		return "user"
	case EntityCampaign:
		return "campaign"
	case EntityCampaignSend:
		return "campaign_send"
	}
	return "unknown"
}

type ruleKind int

const (
	denyAll ruleKind = iota
	allowAll
	matchDepartment
	matchSelf
)

type rule struct {
	kind  ruleKind
	value uint
}

// ruleFor is the single source of the visibility table. Anything not matched
// explicitly falls through to denyAll.
func ruleFor(e Entity, p Principal) rule {
	switch p.Role {
	case models.RoleTI:
		switch e {
		case EntityUser, EntityCampaign, EntityCampaignSend:
			return rule{kind: allowAll}
		}
	case models.RoleGestor:
		if p.DepartmentID == nil {
			return rule{kind: denyAll}
		}
		switch e {
		case EntityUser, EntityCampaign, EntityCampaignSend:
			return rule{kind: matchDepartment, value: *p.DepartmentID}
		}
	case models.RoleColaborador:
		switch e {
		case EntityUser, EntityCampaignSend:
			return rule{kind: matchSelf, value: p.ID}
		case EntityCampaign:
			if p.DepartmentID == nil {
				return rule{kind: denyAll}
			}
			return rule{kind: matchDepartment, value: *p.DepartmentID}
		}
	}
	return rule{kind: denyAll}
}

func (r rule) matches(self uint, department *uint) bool {
	switch r.kind {
	case allowAll:
		return true
	case matchDepartment:
		return department != nil && *department == r.value
	case matchSelf:
		return self != 0 && self == r.value
	}
	return false
}

// Restrict returns a gorm scope limiting a query on e to the rows p may see.
// Use it as db.Scopes(access.Restrict(access.EntityUser, p)).
func Restrict(e Entity, p Principal) func(*gorm.DB) *gorm.DB {
	r := ruleFor(e, p)
	return func(db *gorm.DB) *gorm.DB {
		switch r.kind {
		case allowAll:
			return db
		case matchDepartment:
			switch e {
			case EntityUser:
				return db.Where("users.department_id = ?", r.value)
			case EntityCampaign:
				return db.Where("campaigns.department_id = ?", r.value)
			case EntityCampaignSend:
				return db.
					Joins("JOIN users ON users.id = campaign_sends.user_id AND users.deleted_at IS NULL").
					Where("users.department_id = ?", r.value)
			}
		case matchSelf:
			switch e {
			case EntityUser:
				return db.Where("users.id = ?", r.value)
			case EntityCampaignSend:
				return db.Where("campaign_sends.user_id = ?", r.value)
			}
		}
		return db.Where("1 = 0")
	}
}

// CanAccess authorizes a resource already loaded by primary key. A
// CampaignSend must be loaded with its User; the recipient's department is
// what a GESTOR is checked against.
func CanAccess(resource interface{}, p Principal) bool {
	switch r := resource.(type) {
	case *models.User:
		if r == nil {
			return false
		}
		return ruleFor(EntityUser, p).matches(r.ID, r.DepartmentID)
	case *models.Campaign:
		if r == nil {
			return false
		}
		return ruleFor(EntityCampaign, p).matches(0, r.DepartmentID)
	case *models.CampaignSend:
		if r == nil {
			return false
		}
		var department *uint
		if r.User != nil && r.User.ID == r.UserID {
			department = r.User.DepartmentID
		}
		return ruleFor(EntityCampaignSend, p).matches(r.UserID, department)
	}
	return false
}

// IsAdmin reports whether p may manage system wide data such as departments.
func IsAdmin(p Principal) bool {
	return p.Role == models.RoleTI
}
