// Package domain defines core business entities
package domain

import (
	"time"
)

// Account represents a portal account (site user, business brand, or admin)
type Account struct {
	ID           string      `json:"accountId"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	Name         string      `json:"name"`
	Brand        string      `json:"brand,omitempty"`
	Role         string      `json:"role"` // user, business, admin
	Entitlement  Entitlement `json:"entitlement"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Identity is what the session collaborator knows about the caller
type Identity struct {
	AccountID string `json:"accountId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

// User roles
const (
	RoleUser     = "user"
	RoleBusiness = "business"
	RoleAdmin    = "admin"
)

// ValidRole reports whether role is one of the known account roles
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleBusiness, RoleAdmin:
		return true
	}
	return false
}

// BrandOrEmail returns the display brand for an account, falling back to its email
func (a *Account) BrandOrEmail() string {
	if a.Brand != "" {
		return a.Brand
	}
	return a.Email
}
