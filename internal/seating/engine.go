package seating

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/subscription-seating/internal/model"
	"github.com/iliyamo/subscription-seating/internal/queue"
	"github.com/iliyamo/subscription-seating/internal/repository"
)

// ResultCode is the closed set of admission outcomes.  Outcomes are
// values, never errors: a denied admission is a successful decision.
type ResultCode string

const (
	ResultSubscriptionNotFound  ResultCode = "subscription_not_found"
	ResultAccessDenied          ResultCode = "access_denied"
	ResultSubscriptionNotReady  ResultCode = "subscription_not_ready"
	ResultSubscriptionSuspended ResultCode = "subscription_suspended"
	ResultSubscriptionCanceled  ResultCode = "subscription_canceled"
	ResultNoSeatsAvailable      ResultCode = "no_seats_available"
	ResultSeatProvided          ResultCode = "seat_provided"
)

// Result is the admission decision returned to the caller.  Subscription
// and Seat are populated when they were resolved along the way.
type Result struct {
	Code         ResultCode
	Subscription *model.Subscription
	Seat         *model.Seat
}

// Ledger is the slice of the seat ledger the engine needs.  The
// repository types implement it against MySQL; tests implement it
// in memory.
type Ledger interface {
	GetSubscription(ctx context.Context, id string) (*model.Subscription, error)
	GetSeat(ctx context.Context, seatID, subscriptionID string) (*model.Seat, error)
	ListSeats(ctx context.Context, subscriptionID string, f repository.SeatFilter) ([]model.Seat, error)
	RedeemSeat(ctx context.Context, seat *model.Seat) error
	CreateSeat(ctx context.Context, seat *model.Seat, sub *model.Subscription) (*repository.SeatCreationResult, error)
	DeleteSeat(ctx context.Context, seatID, subscriptionID string) error
}

// Publisher delivers domain events at-least-once.  Publish failures are
// never fatal to an admission that has already been decided.
type Publisher interface {
	Publish(ctx context.Context, event queue.SeatingEvent) error
}

// Engine is the admission decision state machine.  Given a subscription
// and a seat requester it walks the deny gates in order and, for active
// subscriptions, resolves a seat: recognize an existing one, redeem a
// matching reservation, create a standard seat, or fall back to a limited
// overflow seat.  The first matching state is terminal.
type Engine struct {
	Ledger  Ledger
	Events  Publisher
	Retries int                // attempts of the optimistic creation protocol
	Backoff time.Duration      // base delay between retries, grows linearly
	Now     func() time.Time   // injectable clock
}

// NewEngine returns an Engine with the default retry policy.
func NewEngine(ledger Ledger, events Publisher) *Engine {
	return &Engine{
		Ledger:  ledger,
		Events:  events,
		Retries: 5,
		Backoff: 25 * time.Millisecond,
		Now:     time.Now,
	}
}

// Admit decides whether the requester may enter the subscribed product
// and, if so, which seat they hold.  Errors are reserved for
// infrastructure and configuration failures; every domain outcome is a
// Result.
func (e *Engine) Admit(ctx context.Context, subscriptionID string, req model.SeatRequester) (*Result, error) {
	sub, err := e.Ledger.GetSubscription(ctx, subscriptionID)
	if errors.Is(err, repository.ErrSubscriptionNotFound) {
		return &Result{Code: ResultSubscriptionNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	if req.TenantID != sub.TenantID || (sub.UserRoleName != nil && !req.HasRole(*sub.UserRoleName)) {
		return e.deny(ctx, sub, ResultAccessDenied), nil
	}
	switch {
	case sub.State == model.StatePurchased || sub.IsBeingConfigured:
		return e.deny(ctx, sub, ResultSubscriptionNotReady), nil
	case sub.State == model.StateSuspended:
		return e.deny(ctx, sub, ResultSubscriptionSuspended), nil
	case sub.State == model.StateCanceled:
		return e.deny(ctx, sub, ResultSubscriptionCanceled), nil
	}

	return e.resolveSeat(ctx, sub, req)
}

func (e *Engine) resolveSeat(ctx context.Context, sub *model.Subscription, req model.SeatRequester) (*Result, error) {
	seats, err := e.Ledger.ListSeats(ctx, sub.ID, repository.SeatFilter{UserID: req.UserID})
	if err != nil {
		return nil, err
	}

	// Existing seat occupied by this user: no mutation.
	for i := range seats {
		s := &seats[i]
		if s.Occupant != nil && s.Occupant.UserID == req.UserID {
			e.publishSeat(ctx, sub, s, queue.KindSeatProvided)
			return &Result{Code: ResultSeatProvided, Subscription: sub, Seat: s}, nil
		}
	}

	// Reservation addressed to this user id within the tenant.
	for i := range seats {
		s := &seats[i]
		if s.Reserved() && s.Reservation.UserID != nil && *s.Reservation.UserID == req.UserID &&
			s.Reservation.TenantID != nil && *s.Reservation.TenantID == req.TenantID {
			return e.redeem(ctx, sub, s, req, firstEmail(req))
		}
	}

	// Reservation addressed by email: first match wins in the order the
	// requester's emails were supplied.
	for _, email := range req.Emails {
		matches, err := e.Ledger.ListSeats(ctx, sub.ID, repository.SeatFilter{Email: email})
		if err != nil {
			return nil, err
		}
		for i := range matches {
			s := &matches[i]
			if s.Reserved() && s.Reservation.Email != nil && strings.EqualFold(*s.Reservation.Email, email) {
				claimed := email
				return e.redeem(ctx, sub, s, req, &claimed)
			}
		}
	}

	// No seat to reuse: create a standard seat, falling back to a limited
	// overflow seat when the subscription allows it.
	now := e.Now().UTC()
	expiry, err := SeatExpiry(sub.Seating, now)
	if err != nil {
		return nil, err
	}
	created, err := e.createWithRetry(ctx, sub, e.newSeat(sub, req, model.SeatTypeStandard, expiry, now))
	if err != nil {
		return nil, err
	}
	if created.Created {
		e.publishSeat(ctx, sub, created.Seat, queue.KindSeatProvided)
		e.publishWarnings(ctx, sub, created.Summary)
		return &Result{Code: ResultSeatProvided, Subscription: sub, Seat: created.Seat}, nil
	}

	if sub.Seating.LimitedOverflowEnabled {
		limited, err := e.createWithRetry(ctx, sub, e.newSeat(sub, req, model.SeatTypeLimited, LimitedSeatExpiry(now), now))
		if err != nil {
			return nil, err
		}
		if limited.Created {
			e.publishSeat(ctx, sub, limited.Seat, queue.KindSeatProvided)
			e.publishWarnings(ctx, sub, limited.Summary)
			return &Result{Code: ResultSeatProvided, Subscription: sub, Seat: limited.Seat}, nil
		}
	}

	e.publish(ctx, queue.SeatingEvent{
		Kind:           queue.KindNoSeatsAvailable,
		SubscriptionID: sub.ID,
		TenantID:       sub.TenantID,
		Reason:         string(ResultNoSeatsAvailable),
	})
	return &Result{Code: ResultNoSeatsAvailable, Subscription: sub}, nil
}

// redeem transitions a reserved seat to occupied.  The reservation was
// observed moments ago in this same request, so a missing seat at
// mutation time is a lost race and fatal to the request.
func (e *Engine) redeem(ctx context.Context, sub *model.Subscription, seat *model.Seat, req model.SeatRequester, email *string) (*Result, error) {
	now := e.Now().UTC()
	expiry, err := SeatExpiry(sub.Seating, now)
	if err != nil {
		return nil, err
	}
	seat.Reservation = nil
	seat.Occupant = &model.Occupant{
		UserID:      req.UserID,
		TenantID:    req.TenantID,
		Email:       email,
		DisplayName: req.DisplayName,
	}
	seat.ExpiresAt = &expiry
	seat.RedeemedAt = &now
	if err := e.Ledger.RedeemSeat(ctx, seat); err != nil {
		if errors.Is(err, repository.ErrSeatNotFound) {
			return nil, fmt.Errorf("seat %s reservation vanished during redemption: %w", seat.ID, err)
		}
		return nil, err
	}
	e.publishSeat(ctx, sub, seat, queue.KindSeatProvided)
	return &Result{Code: ResultSeatProvided, Subscription: sub, Seat: seat}, nil
}

func (e *Engine) newSeat(sub *model.Subscription, req model.SeatRequester, seatType string, expiry time.Time, now time.Time) *model.Seat {
	return &model.Seat{
		ID:             uuid.NewString(),
		SubscriptionID: sub.ID,
		SeatType:       seatType,
		Occupant: &model.Occupant{
			UserID:      req.UserID,
			TenantID:    req.TenantID,
			Email:       firstEmail(req),
			DisplayName: req.DisplayName,
		},
		CreatedAt: now,
		ExpiresAt: &expiry,
	}
}

// createWithRetry drives the optimistic creation protocol: each attempt
// recounts, conditionally replaces the summary and inserts the seat in
// one batch.  A version conflict means another writer won the race, so
// the attempt is discarded and repeated from the recount, bounded by the
// retry budget.
func (e *Engine) createWithRetry(ctx context.Context, sub *model.Subscription, seat *model.Seat) (*repository.SeatCreationResult, error) {
	for attempt := 0; attempt < e.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * e.Backoff):
			}
		}
		res, err := e.Ledger.CreateSeat(ctx, seat, sub)
		if errors.Is(err, repository.ErrSummaryConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return res, nil
	}
	return nil, fmt.Errorf("seat creation for subscription %s exhausted %d attempts: %w",
		sub.ID, e.Retries, repository.ErrSummaryConflict)
}

// Reserve creates a reserved standard seat through the creation
// protocol.  Reserved seats count against capacity like any other
// standard seat and expire after the configured reservation window when
// left unredeemed.
func (e *Engine) Reserve(ctx context.Context, sub *model.Subscription, seatID string, res model.Reservation) (*repository.SeatCreationResult, error) {
	now := e.Now().UTC()
	expiry := ReservationExpiry(sub.Seating, now)
	seat := &model.Seat{
		ID:             seatID,
		SubscriptionID: sub.ID,
		SeatType:       model.SeatTypeStandard,
		Reservation:    &res,
		CreatedAt:      now,
		ExpiresAt:      &expiry,
	}
	created, err := e.createWithRetry(ctx, sub, seat)
	if err != nil {
		return nil, err
	}
	if created.Created {
		e.publishSeat(ctx, sub, created.Seat, queue.KindSeatReserved)
		e.publishWarnings(ctx, sub, created.Summary)
	}
	return created, nil
}

// Release deletes a seat and publishes seat_released when the seat
// existed.  Releasing an absent or expired seat is not an error; the
// physical row, if any, is still removed.
func (e *Engine) Release(ctx context.Context, sub *model.Subscription, seatID string) error {
	seat, err := e.Ledger.GetSeat(ctx, seatID, sub.ID)
	if errors.Is(err, repository.ErrSeatNotFound) {
		return e.Ledger.DeleteSeat(ctx, seatID, sub.ID)
	}
	if err != nil {
		return err
	}
	if err := e.Ledger.DeleteSeat(ctx, seatID, sub.ID); err != nil {
		return err
	}
	e.publishSeat(ctx, sub, seat, queue.KindSeatReleased)
	return nil
}

func (e *Engine) deny(ctx context.Context, sub *model.Subscription, code ResultCode) *Result {
	e.publish(ctx, queue.SeatingEvent{
		Kind:           queue.KindAdmissionDenied,
		SubscriptionID: sub.ID,
		TenantID:       sub.TenantID,
		Reason:         string(code),
	})
	return &Result{Code: code, Subscription: sub}
}

// publishWarnings derives the capacity warnings from the post-creation
// summary.  At most one of the two events fires per creation attempt.
func (e *Engine) publishWarnings(ctx context.Context, sub *model.Subscription, summary model.SeatingSummary) {
	if sub.TotalSeats == nil {
		return
	}
	total := *sub.TotalSeats
	standard := summary.StandardCount
	evt := queue.SeatingEvent{
		SubscriptionID: sub.ID,
		TenantID:       sub.TenantID,
		StandardSeats:  &standard,
		LimitedSeats:   &summary.LimitedCount,
		TotalSeats:     &total,
	}
	switch {
	case standard >= total:
		evt.Kind = queue.KindNoSeatsAvailable
	case total > 0 && (1-float64(standard)/float64(total)) <= LowSeatWarningLevel(sub.Seating):
		evt.Kind = queue.KindLowSeatWarning
	default:
		return
	}
	e.publish(ctx, evt)
}

func (e *Engine) publishSeat(ctx context.Context, sub *model.Subscription, seat *model.Seat, kind string) {
	info := &queue.SeatInfo{SeatID: seat.ID, SeatType: seat.SeatType}
	if seat.Occupant != nil {
		info.UserID = seat.Occupant.UserID
		if seat.Occupant.Email != nil {
			info.Email = *seat.Occupant.Email
		}
	}
	if seat.ExpiresAt != nil {
		iso := seat.ExpiresAt.UTC().Format(time.RFC3339)
		info.ExpiresAt = &iso
	}
	e.publish(ctx, queue.SeatingEvent{
		Kind:           kind,
		SubscriptionID: sub.ID,
		TenantID:       sub.TenantID,
		Seat:           info,
	})
}

// publish stamps and sends an event.  An admission already decided is
// never rolled back because publishing failed, so errors are only logged.
func (e *Engine) publish(ctx context.Context, evt queue.SeatingEvent) {
	if e.Events == nil {
		return
	}
	evt.ID = uuid.NewString()
	evt.OccurredAt = e.Now().UTC().Format(time.RFC3339)
	if err := e.Events.Publish(ctx, evt); err != nil {
		log.Printf("seating: publish %s event for subscription %s failed: %v", evt.Kind, evt.SubscriptionID, err)
	}
}

func firstEmail(req model.SeatRequester) *string {
	if len(req.Emails) == 0 {
		return nil
	}
	email := req.Emails[0]
	return &email
}
