package domain

import "fmt"

// Role selects which portal subtree a session may enter.
type Role string

const (
	RoleNone       Role = ""
	RoleAgent      Role = "agent"
	RoleSupervisor Role = "supervisor"
	RoleGroupAdmin Role = "group_admin"
	RoleClient     Role = "client"
)

// Roles lists every role that owns a shell, in sidebar order.
var Roles = []Role{RoleAgent, RoleSupervisor, RoleGroupAdmin, RoleClient}

// ParseRole converts the stored string form into a Role.
func ParseRole(value string) (Role, error) {
	switch r := Role(value); r {
	case RoleAgent, RoleSupervisor, RoleGroupAdmin, RoleClient:
		return r, nil
	default:
		return RoleNone, WrapError(ErrCodeInvalid, "unknown role", fmt.Errorf("role %q", value))
	}
}

func (r Role) String() string {
	return string(r)
}

func (r Role) IsValid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Dashboard returns the landing path of the role's shell.
func (r Role) Dashboard() string {
	return "/" + string(r) + "/dashboard"
}

// Prefix returns the path prefix owned by the role's shell.
func (r Role) Prefix() string {
	return "/" + string(r)
}
