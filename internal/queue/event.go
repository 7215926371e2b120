// Package queue defines message payloads exchanged over the message broker.
package queue

// Event kinds published to the seating events queue.
const (
	KindSeatProvided     = "seat_provided"
	KindSeatReserved     = "seat_reserved"
	KindSeatReleased     = "seat_released"
	KindAdmissionDenied  = "admission_denied"
	KindLowSeatWarning   = "low_seat_warning"
	KindNoSeatsAvailable = "no_seats_available"
)

// SeatInfo is the seat payload carried by seat-bearing events.
type SeatInfo struct {
	SeatID    string  `json:"seat_id"`
	SeatType  string  `json:"seat_type"`
	UserID    string  `json:"user_id,omitempty"`
	Email     string  `json:"email,omitempty"`
	ExpiresAt *string `json:"expires_at,omitempty"`
}

// SeatingEvent is published for every terminal admission decision and for
// administrative seat mutations.  It contains enough information for
// downstream consumers to log, notify, or trigger analytics without
// querying the primary database.  Delivery is at-least-once and consumers
// must tolerate duplicates.
type SeatingEvent struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	SubscriptionID string    `json:"subscription_id"`
	TenantID       string    `json:"tenant_id"`
	Reason         string    `json:"reason,omitempty"`
	Seat           *SeatInfo `json:"seat,omitempty"`
	StandardSeats  *int      `json:"standard_seats,omitempty"`
	LimitedSeats   *int      `json:"limited_seats,omitempty"`
	TotalSeats     *int      `json:"total_seats,omitempty"`
	OccurredAt     string    `json:"occurred_at"`
}
