package model

import "time"

// Seat types.  A standard seat counts against the subscription's total
// seat capacity; a limited seat never does but always expires at the start
// of the next UTC day.
const (
	SeatTypeStandard = "standard"
	SeatTypeLimited  = "limited"
)

// Occupant identifies the user currently holding a seat.
//
// Fields:
//  UserID      – user identifier within the tenant.
//  TenantID    – tenant the user belongs to.
//  Email       – email the seat was claimed with (nullable).
//  DisplayName – display name for admin views (nullable).
type Occupant struct {
	UserID      string  // seats.occupant_user_id
	TenantID    string  // seats.occupant_tenant_id
	Email       *string // seats.occupant_email (nullable)
	DisplayName *string // seats.occupant_display_name (nullable)
}

// Reservation is a placeholder for a future occupant.  A reservation is
// addressed either by user id + tenant id or by email; unused fields are
// nil.
type Reservation struct {
	UserID   *string // seats.reservation_user_id (nullable)
	TenantID *string // seats.reservation_tenant_id (nullable)
	Email    *string // seats.reservation_email (nullable)
}

// Seat is a single allocation unit within a subscription.  One row in the
// `seats` table, partitioned by SubscriptionID.  Exactly one of Occupant
// and Reservation is set: a seat is either occupied or reserved.  A nil
// ExpiresAt means the seat never expires.  A seat whose ExpiresAt is in
// the past is treated as absent by every read path even while the row
// still exists (passive expiration).
type Seat struct {
	ID             string       // seats.id
	SubscriptionID string       // seats.subscription_id
	SeatType       string       // seats.seat_type
	Occupant       *Occupant    // occupant_* columns (nullable group)
	Reservation    *Reservation // reservation_* columns (nullable group)
	CreatedAt      time.Time    // seats.created_at
	ExpiresAt      *time.Time   // seats.expires_at (nullable)
	RedeemedAt     *time.Time   // seats.redeemed_at (nullable)
}

// Reserved reports whether the seat is an unredeemed reservation.
func (s *Seat) Reserved() bool { return s.Reservation != nil && s.Occupant == nil }

// Occupied reports whether the seat has an occupant.
func (s *Seat) Occupied() bool { return s.Occupant != nil }

// Expired reports whether the seat's expiration timestamp is at or before
// the given instant.
func (s *Seat) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}
