// Package seating holds the seat lifecycle policy and the admission
// engine.  Everything in this package is pure domain logic: the only I/O
// happens through the narrow interfaces the engine accepts.
package seating

import (
	"fmt"
	"time"

	"github.com/iliyamo/subscription-seating/internal/model"
)

// Defaults applied when the subscription's seating configuration leaves a
// field unset.
const (
	DefaultSeatExpiryDays        = 1
	DefaultReservationExpiryDays = 3
	DefaultLowSeatWarningLevel   = 0.25
)

// SeatExpiry computes the expiration of a newly provided standard seat
// according to the subscription's strategy.
//
//   monthly_active_user:     the start of the day after the last day of
//                            the current month (UTC) – seats stay valid
//                            through month-end no matter when in the
//                            month they were created.
//   first_come_first_served: defaultSeatExpiryDays days from now.
//
// An unknown strategy name is a configuration error, never retried.
func SeatExpiry(cfg model.SeatingConfiguration, now time.Time) (time.Time, error) {
	now = now.UTC()
	switch cfg.Strategy {
	case model.StrategyMonthlyActiveUser:
		year, month, _ := now.Date()
		return time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC), nil
	case model.StrategyFirstComeFirstServed:
		days := DefaultSeatExpiryDays
		if cfg.DefaultSeatExpiryDays != nil {
			days = *cfg.DefaultSeatExpiryDays
		}
		return now.AddDate(0, 0, days), nil
	default:
		return time.Time{}, fmt.Errorf("unknown seating strategy %q", cfg.Strategy)
	}
}

// ReservationExpiry computes the expiration of an unredeemed reservation.
// It is independent of the seating strategy.
func ReservationExpiry(cfg model.SeatingConfiguration, now time.Time) time.Time {
	days := DefaultReservationExpiryDays
	if cfg.ReservationExpiryDays != nil {
		days = *cfg.ReservationExpiryDays
	}
	return now.UTC().AddDate(0, 0, days)
}

// LimitedSeatExpiry returns the start of the next UTC calendar day.
// Limited overflow seats always expire there, overriding the strategy.
func LimitedSeatExpiry(now time.Time) time.Time {
	year, month, day := now.UTC().Date()
	return time.Date(year, month, day+1, 0, 0, 0, 0, time.UTC)
}

// LowSeatWarningLevel returns the configured warning threshold or the
// default.
func LowSeatWarningLevel(cfg model.SeatingConfiguration) float64 {
	if cfg.LowSeatWarningLevel != nil {
		return *cfg.LowSeatWarningLevel
	}
	return DefaultLowSeatWarningLevel
}
