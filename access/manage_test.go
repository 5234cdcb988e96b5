package access_test

import (
	"testing"

	"safeclicker/access"
	"safeclicker/models"
	"safeclicker/testutil"
)

func TestCanManageCampaigns(t *testing.T) {
	dept := testutil.Uint(3)
	tests := []struct {
		p    access.Principal
		want bool
	}{
		{access.Principal{Role: models.RoleTI}, true},
		{access.Principal{Role: models.RoleGestor, DepartmentID: dept}, true},
		{access.Principal{Role: models.RoleGestor}, false},
		{access.Principal{Role: models.RoleColaborador, DepartmentID: dept}, false},
		{access.Principal{Role: "ti"}, false},
		{access.Principal{}, false},
	}
	for _, tc := range tests {
		if got := access.CanManageCampaigns(tc.p); got != tc.want {
			t.Errorf("CanManageCampaigns(%+v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestCanAssign(t *testing.T) {
	own, other := testutil.Uint(3), testutil.Uint(4)
	ti := access.Principal{Role: models.RoleTI}
	gestor := access.Principal{Role: models.RoleGestor, DepartmentID: own}
	colab := access.Principal{Role: models.RoleColaborador, DepartmentID: own}

	tests := []struct {
		name string
		p    access.Principal
		role models.Role
		dept *uint
		want bool
	}{
		{"ti anything", ti, models.RoleTI, nil, true},
		{"gestor own department", gestor, models.RoleColaborador, own, true},
		{"gestor another gestor", gestor, models.RoleGestor, own, true},
		{"gestor other department", gestor, models.RoleColaborador, other, false},
		{"gestor no department", gestor, models.RoleColaborador, nil, false},
		{"gestor promotes to ti", gestor, models.RoleTI, own, false},
		{"colaborador", colab, models.RoleColaborador, own, false},
	}
	for _, tc := range tests {
		if got := access.CanAssign(tc.p, tc.role, tc.dept); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
