package types

import (
	"fmt"
	"time"
)

// Role is a user's authorization tier.
type Role string

// User roles.
const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole converts a stored role string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidData, s)
}

// User is an account holder. CurrencyBalance is a cache of the ledger sum and
// is only ever written by the ledger primitive; table writes ignore it.
type User struct {
	ID              string
	Username        string
	Email           string
	Role            Role
	CurrencyBalance int64
	Banned          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
