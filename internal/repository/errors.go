// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers and the admission engine to distinguish between different
// failure scenarios without inspecting SQL errors directly.
package repository

import "errors"

// ErrSubscriptionNotFound is returned when no subscription exists for the
// requested id.  Not-found is a normal outcome, not an infrastructure
// failure; handlers translate it into 404 and the admission engine into
// the subscription_not_found result.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// ErrSeatNotFound is returned when a seat does not exist or has passively
// expired.  Reads never distinguish the two cases: an expired row is
// absent by contract even while it is still physically present.
var ErrSeatNotFound = errors.New("seat not found")

// ErrSummaryConflict is returned when the conditional replace of a
// seating summary loses an optimistic-concurrency race.  Callers retry
// the whole creation attempt from the authoritative recount.
var ErrSummaryConflict = errors.New("seating summary version conflict")

// ErrDuplicateSeat is returned when a seat with the same id already
// exists in the subscription.
var ErrDuplicateSeat = errors.New("seat already exists")

// ErrAccountExists is returned when registering an account with an email
// that is already taken.
var ErrAccountExists = errors.New("account already exists")
