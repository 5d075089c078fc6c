package model

import (
	"fmt"
	"strings"
)

// Role is the session role carried in the bearer token's "role" claim.
type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleModerator Role = "Moderator"
	RoleClient    Role = "Client"
	RoleDelivery  Role = "Delivery"
)

// Roles lists every known role in a stable order.
var Roles = []Role{RoleAdmin, RoleModerator, RoleClient, RoleDelivery}

// ParseRole matches s against the known roles ignoring case.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	for _, r := range Roles {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string { return string(r) }

// IsStaff reports whether the role manages other users' orders.
func (r Role) IsStaff() bool { return r == RoleAdmin || r == RoleModerator }
