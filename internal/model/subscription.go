package model

import "time"

// Subscription states.  A subscription is created in StatePurchased and
// becomes seatable only once it reaches StateActive.
const (
	StatePurchased = "purchased"
	StateActive    = "active"
	StateSuspended = "suspended"
	StateCanceled  = "canceled"
)

// Seating strategy names accepted by SeatingConfiguration.Strategy.
const (
	StrategyMonthlyActiveUser    = "monthly_active_user"
	StrategyFirstComeFirstServed = "first_come_first_served"
)

// SeatingConfiguration describes how seats of a subscription expire and
// when overflow/warning behavior kicks in.  Pointer fields are nullable
// columns; nil means "use the service default".
//
// Fields:
//  Strategy               – seating strategy name (see Strategy* constants).
//  DefaultSeatExpiryDays  – seat lifetime in days for first_come_first_served.
//  ReservationExpiryDays  – lifetime of an unredeemed reservation in days.
//  LimitedOverflowEnabled – whether limited overflow seats may be created
//                           once standard capacity is exhausted.
//  LowSeatWarningLevel    – fraction of remaining capacity (0..1) at or
//                           below which a low-seat warning event fires.
type SeatingConfiguration struct {
	Strategy               string   // subscriptions.seating_strategy
	DefaultSeatExpiryDays  *int     // subscriptions.default_seat_expiry_days (nullable)
	ReservationExpiryDays  *int     // subscriptions.reservation_expiry_days (nullable)
	LimitedOverflowEnabled bool     // subscriptions.limited_overflow_enabled
	LowSeatWarningLevel    *float64 // subscriptions.low_seat_warning_level (nullable)
}

// Subscription represents a tenant's purchase of the product.  One row in
// the `subscriptions` table.  TotalSeats is nil for unlimited seating.
// UserRoleName / AdminRoleName are optional access-control gates: when
// set, a requester must hold the named role to be admitted / to
// administer the subscription.
type Subscription struct {
	ID                string               // subscriptions.id
	TenantID          string               // subscriptions.tenant_id
	State             string               // subscriptions.state
	TotalSeats        *int                 // subscriptions.total_seats (nullable = unlimited)
	IsBeingConfigured bool                 // subscriptions.is_being_configured
	Seating           SeatingConfiguration // seating_* columns
	UserRoleName      *string              // subscriptions.user_role_name (nullable)
	AdminRoleName     *string              // subscriptions.admin_role_name (nullable)
	CreatedAt         time.Time            // subscriptions.created_at
	UpdatedAt         time.Time            // subscriptions.updated_at
}

// SubscriptionPatch carries a partial update for a subscription.  Every
// field is a pointer; nil means the field is left unchanged.  This is the
// explicit optional-field representation used by the admin PATCH endpoint.
type SubscriptionPatch struct {
	State                  *string
	TotalSeats             *int
	IsBeingConfigured      *bool
	Strategy               *string
	DefaultSeatExpiryDays  *int
	ReservationExpiryDays  *int
	LimitedOverflowEnabled *bool
	LowSeatWarningLevel    *float64
	UserRoleName           *string
	AdminRoleName          *string
}

// Apply copies the non-nil patch fields onto the subscription.
func (p SubscriptionPatch) Apply(s *Subscription) {
	if p.State != nil {
		s.State = *p.State
	}
	if p.TotalSeats != nil {
		s.TotalSeats = p.TotalSeats
	}
	if p.IsBeingConfigured != nil {
		s.IsBeingConfigured = *p.IsBeingConfigured
	}
	if p.Strategy != nil {
		s.Seating.Strategy = *p.Strategy
	}
	if p.DefaultSeatExpiryDays != nil {
		s.Seating.DefaultSeatExpiryDays = p.DefaultSeatExpiryDays
	}
	if p.ReservationExpiryDays != nil {
		s.Seating.ReservationExpiryDays = p.ReservationExpiryDays
	}
	if p.LimitedOverflowEnabled != nil {
		s.Seating.LimitedOverflowEnabled = *p.LimitedOverflowEnabled
	}
	if p.LowSeatWarningLevel != nil {
		s.Seating.LowSeatWarningLevel = p.LowSeatWarningLevel
	}
	if p.UserRoleName != nil {
		s.UserRoleName = p.UserRoleName
	}
	if p.AdminRoleName != nil {
		s.AdminRoleName = p.AdminRoleName
	}
}

// SeatingSummary is the cached per-subscription aggregate of non-expired
// seats.  It is advisory: the authoritative value is always the
// group-count over the seats table, and the creation protocol overwrites
// this record from that recount before every capacity decision.  Version
// backs the conditional replace.
type SeatingSummary struct {
	SubscriptionID string // seating_summaries.subscription_id
	StandardCount  int    // seating_summaries.standard_count
	LimitedCount   int    // seating_summaries.limited_count
	Version        uint64 // seating_summaries.version
}
