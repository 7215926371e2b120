package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/subscription-seating/internal/middleware"
	"github.com/iliyamo/subscription-seating/internal/model"
)

// requester extracts the authenticated seat-requester identity placed on
// the context by the JWT middleware.
func requester(c echo.Context) (model.SeatRequester, bool) {
	req, err := middleware.Requester(c)
	if err != nil {
		return model.SeatRequester{}, false
	}
	return req, true
}

// canAdminister reports whether the requester may manage the given
// subscription: same tenant, and holding the admin role when the
// subscription declares one.
func canAdminister(sub *model.Subscription, req model.SeatRequester) bool {
	if req.TenantID != sub.TenantID {
		return false
	}
	if sub.AdminRoleName != nil && !req.HasRole(*sub.AdminRoleName) {
		return false
	}
	return true
}

func isoTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	iso := t.UTC().Format(time.RFC3339)
	return &iso
}

// seatJSON renders a seat for API responses.
func seatJSON(s *model.Seat) echo.Map {
	out := echo.Map{
		"id":              s.ID,
		"subscription_id": s.SubscriptionID,
		"seat_type":       s.SeatType,
		"created_at":      s.CreatedAt.UTC().Format(time.RFC3339),
		"expires_at":      isoTime(s.ExpiresAt),
		"redeemed_at":     isoTime(s.RedeemedAt),
	}
	if s.Occupant != nil {
		out["occupant"] = echo.Map{
			"user_id":      s.Occupant.UserID,
			"tenant_id":    s.Occupant.TenantID,
			"email":        s.Occupant.Email,
			"display_name": s.Occupant.DisplayName,
		}
	}
	if s.Reservation != nil {
		out["reservation"] = echo.Map{
			"user_id":   s.Reservation.UserID,
			"tenant_id": s.Reservation.TenantID,
			"email":     s.Reservation.Email,
		}
	}
	return out
}

// subscriptionJSON renders a subscription for API responses.
func subscriptionJSON(s *model.Subscription) echo.Map {
	return echo.Map{
		"id":                  s.ID,
		"tenant_id":           s.TenantID,
		"state":               s.State,
		"total_seats":         s.TotalSeats,
		"is_being_configured": s.IsBeingConfigured,
		"seating": echo.Map{
			"strategy":                 s.Seating.Strategy,
			"default_seat_expiry_days": s.Seating.DefaultSeatExpiryDays,
			"reservation_expiry_days":  s.Seating.ReservationExpiryDays,
			"limited_overflow_enabled": s.Seating.LimitedOverflowEnabled,
			"low_seat_warning_level":   s.Seating.LowSeatWarningLevel,
		},
		"user_role_name":  s.UserRoleName,
		"admin_role_name": s.AdminRoleName,
		"created_at":      s.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":      s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// validState reports whether the value is a known subscription state.
func validState(s string) bool {
	switch s {
	case model.StatePurchased, model.StateActive, model.StateSuspended, model.StateCanceled:
		return true
	}
	return false
}

// validStrategy reports whether the value is a known seating strategy.
func validStrategy(s string) bool {
	return s == model.StrategyMonthlyActiveUser || s == model.StrategyFirstComeFirstServed
}
