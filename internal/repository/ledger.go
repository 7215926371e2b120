package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/subscription-seating/internal/model"
)

// Ledger bundles the per-table repositories behind the narrow surface the
// admission engine consumes.  It adds no behavior of its own; each method
// delegates to the owning repository.
type Ledger struct {
	Subscriptions *SubscriptionRepo
	Seats         *SeatRepo
	Summaries     *SummaryRepo
}

// NewLedger constructs the repositories over one shared database handle.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{
		Subscriptions: NewSubscriptionRepo(db),
		Seats:         NewSeatRepo(db),
		Summaries:     NewSummaryRepo(db),
	}
}

func (l *Ledger) GetSubscription(ctx context.Context, id string) (*model.Subscription, error) {
	return l.Subscriptions.Get(ctx, id)
}

func (l *Ledger) GetSeat(ctx context.Context, seatID, subscriptionID string) (*model.Seat, error) {
	return l.Seats.Get(ctx, seatID, subscriptionID)
}

func (l *Ledger) ListSeats(ctx context.Context, subscriptionID string, f SeatFilter) ([]model.Seat, error) {
	return l.Seats.List(ctx, subscriptionID, f)
}

func (l *Ledger) RedeemSeat(ctx context.Context, seat *model.Seat) error {
	return l.Seats.Redeem(ctx, seat)
}

func (l *Ledger) CreateSeat(ctx context.Context, seat *model.Seat, sub *model.Subscription) (*SeatCreationResult, error) {
	return l.Seats.CreateSeat(ctx, seat, sub)
}

func (l *Ledger) DeleteSeat(ctx context.Context, seatID, subscriptionID string) error {
	return l.Seats.Delete(ctx, seatID, subscriptionID)
}
