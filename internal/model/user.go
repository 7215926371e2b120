package model

import (
	"strings"
	"time"
)

// SeatRequester is the transient identity of a user asking for admission.
// It is never persisted on its own; on success it is embedded into a
// seat's occupant or matched against a reservation.
//
// Fields:
//  UserID      – user identifier issued by the identity provider.
//  TenantID    – tenant the user authenticated under.
//  Emails      – email addresses in preference order; reservation-by-email
//                matching is first-match-wins in this order.
//  Roles       – role names the user holds within the tenant.
//  DisplayName – optional display name carried through to the occupant.
type SeatRequester struct {
	UserID      string
	TenantID    string
	Emails      []string
	Roles       []string
	DisplayName *string
}

// HasRole reports whether the requester holds the named role.  Role names
// compare case-insensitively.
func (r SeatRequester) HasRole(name string) bool {
	for _, have := range r.Roles {
		if strings.EqualFold(have, name) {
			return true
		}
	}
	return false
}

// Account represents an administrator account stored in the `accounts`
// table.  Accounts authenticate against the built-in auth endpoints and
// manage subscriptions through the admin API.
type Account struct {
	ID           uint64    // accounts.id
	Email        string    // accounts.email
	PasswordHash string    // accounts.password_hash
	TenantID     string    // accounts.tenant_id
	Roles        string    // accounts.roles (comma separated role names)
	IsActive     bool      // accounts.is_active
	CreatedAt    time.Time // accounts.created_at
	UpdatedAt    time.Time // accounts.updated_at
}
