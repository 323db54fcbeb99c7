package auth

import "strings"

// Role is the coarse access level carried in every token.
type Role string

const (
	RoleClient     Role = "client"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole normalizes a role string. Unknown values are rejected so a
// mistyped role never silently grants or denies access.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleClient:
		return RoleClient, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleSuperAdmin:
		return RoleSuperAdmin, true
	default:
		return "", false
	}
}

// Satisfies reports whether r fulfils a required role. super_admin
// satisfies every requirement; this exact override is load-bearing and
// must not be generalized into a role hierarchy.
func (r Role) Satisfies(required Role) bool {
	if r == RoleSuperAdmin {
		return true
	}
	return r == required
}

func (r Role) String() string { return string(r) }
