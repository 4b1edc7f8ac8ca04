package domain

import "strings"

// Role is the closed set of authorization roles.
type Role string

const (
	RoleUser       Role = "user"
	RoleCommunity  Role = "community"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleCommunity, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Caller is the identity a request acts as. The zero value is an anonymous caller.
type Caller struct {
	ID   string
	Role Role
}

// Anonymous reports whether no authenticated identity is attached.
func (c Caller) Anonymous() bool {
	return c.ID == ""
}

// Is reports whether the caller is authenticated with role r.
func (c Caller) Is(r Role) bool {
	return !c.Anonymous() && c.Role == r
}
