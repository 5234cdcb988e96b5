package access

import "safeclicker/models"

// CanManageCampaigns reports whether p may create, change, delete or
// dispatch campaigns. Colaboradores only read their department's campaigns.
func CanManageCampaigns(p Principal) bool {
	switch p.Role {
	case models.RoleTI:
		return true
	case models.RoleGestor:
		return p.DepartmentID != nil
	}
	return false
}

// CanAssign reports whether p may give a user the role and department given.
// TI assigns anything; a gestor only places non TI users in its own
// department; nobody else assigns roles.
func CanAssign(p Principal, role models.Role, department *uint) bool {
	switch p.Role {
	case models.RoleTI:
		return true
	case models.RoleGestor:
		return p.DepartmentID != nil &&
			role != models.RoleTI &&
			department != nil && *department == *p.DepartmentID
	}
	return false
}
