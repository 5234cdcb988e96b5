package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Role is the closed set of principal roles. The zero value is not a valid
// role and is denied everywhere.
type Role string

const (
	RoleTI          Role = "TI"
	RoleGestor      Role = "GESTOR"
	RoleColaborador Role = "COLABORADOR"
)

// Roles lists every recognized role.
func Roles() []Role {
	return []Role{RoleTI, RoleGestor, RoleColaborador}
}

// ParseRole accepts the upper or lower case spelling ("gestor", "GESTOR").
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleTI, RoleGestor, RoleColaborador:
		return true
	}
	return false
}

// RequiresDepartment reports whether scoping for r is only meaningful with a
// department assigned.
func (r Role) RequiresDepartment() bool {
	return r == RoleGestor || r == RoleColaborador
}

// Scan normalizes legacy lower case values stored by earlier deployments.
func (r *Role) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*r = ""
	case string:
		*r = Role(strings.ToUpper(v))
	case []byte:
		*r = Role(strings.ToUpper(string(v)))
	default:
		return fmt.Errorf("cannot scan %T into Role", value)
	}
	return nil
}

// User represents a person who can receive campaigns and, depending on role,
// operate the system.
type User struct {
	gorm.Model

	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	FullName     string `json:"full_name"`
	PasswordHash string `json:"-"`

	Role         Role  `gorm:"type:varchar(20);not null;default:'COLABORADOR';index" json:"role"`
	DepartmentID *uint `gorm:"index" json:"department_id"`
	IsActive     bool  `gorm:"default:true" json:"is_active"`

	Department *Department `gorm:"foreignKey:DepartmentID" json:"department,omitempty"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// DisplayName is the name rendered into outbound messages.
func (u *User) DisplayName() string {
	if strings.TrimSpace(u.FullName) != "" {
		return u.FullName
	}
	return u.Email
}
