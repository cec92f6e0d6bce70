package domain

import "fmt"

// Role is the closed set of account roles. A user has exactly one, fixed at
// creation.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleIssuer   Role = "issuer"
	RoleInvestor Role = "investor"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleIssuer, RoleInvestor}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleIssuer, RoleInvestor:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole converts s to a Role, rejecting anything outside the closed set.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
