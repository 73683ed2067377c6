package auth

import "context"

const (
	RoleEmployee    = "Employee"
	RoleManager     = "Manager"
	RoleHR          = "HR"
	RoleSystemAdmin = "SystemAdmin"
)

const (
	PermCPISRead      = "cpis.read"
	PermCPISReadAll   = "cpis.read.all"
	PermCPISScore     = "cpis.score"
	PermCPISRecompute = "cpis.recompute"
	PermCPISPolicy    = "cpis.policy.read"
)

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermCPISRead,
		PermCPISPolicy,
	},
	RoleManager: {
		PermCPISRead,
		PermCPISReadAll,
		PermCPISScore,
		PermCPISPolicy,
	},
	RoleHR: {
		PermCPISRead,
		PermCPISReadAll,
		PermCPISScore,
		PermCPISRecompute,
		PermCPISPolicy,
	},
	RoleSystemAdmin: {
		PermCPISPolicy,
		PermCPISRecompute,
	},
}

// StaticPermissions answers permission checks from RolePermissions.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(ctx context.Context, roleName, permission string) (bool, error) {
	for _, p := range RolePermissions[roleName] {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}
