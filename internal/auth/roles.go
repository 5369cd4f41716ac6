package auth

import (
	"fmt"
	"strings"
)

// Role is the platform-wide role of a principal.
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// ParseRole normalizes a raw role string.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleSuperAdmin:
		return RoleSuperAdmin, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}
}

// Valid reports whether the role is one of the three known values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// AdminLevel reports whether the role is allowed on the admin surface.
func (r Role) AdminLevel() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Authorize decides whether a resolved principal may invoke an operation
// gated on required. An empty required role means authentication only.
// SUPER_ADMIN satisfies every gate; no other role substitutes for another.
// The decision is a pure function of the principal snapshot and must be
// re-evaluated on every gated operation.
func Authorize(p Principal, required Role) bool {
	if !p.Role.Valid() {
		return false
	}
	if required == "" {
		return true
	}
	return p.Role == required || p.Role == RoleSuperAdmin
}
