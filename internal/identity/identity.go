package identity

import (
	"errors"
	"fmt"
)

// Role is the closed set of caller roles. Raw role strings from the gateway
// are parsed exactly once at the edge; everything past the middleware works
// with the enumeration.
type Role int

const (
	RoleUnknown Role = iota
	RoleCustomer
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "customer"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseRole maps a gateway claim to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "customer":
		return RoleCustomer, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleUnknown, fmt.Errorf("unknown role %q", s)
	}
}

// Caller is the resolved identity of the requesting user. ShopID is set only
// for admins and refers to the single shop the admin operates.
type Caller struct {
	UserID string
	Role   Role
	ShopID string
}

var ErrNoIdentity = errors.New("identity: no caller resolved")

// IsAdminOf reports whether the caller administers the given shop.
func (c Caller) IsAdminOf(shopID string) bool {
	return c.Role == RoleAdmin && c.ShopID != "" && c.ShopID == shopID
}
