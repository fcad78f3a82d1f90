package domain

import "time"

// Role enumerates marketplace participation roles.
type Role string

const (
	RoleBuyer  Role = "BUYER"
	RoleSeller Role = "SELLER"
	RoleBoth   Role = "BOTH"
	RoleAdmin  Role = "ADMIN"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleBoth, RoleAdmin:
		return true
	}
	return false
}

// CanSell reports whether the role may list services on the marketplace.
func (r Role) CanSell() bool {
	return r == RoleSeller || r == RoleBoth || r == RoleAdmin
}

// User is the domain model for marketplace accounts (buyers and sellers).
type User struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
