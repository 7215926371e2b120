package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/subscription-seating/internal/model"
)

// SummaryRepo reads the cached seating summaries.  Writes happen only
// inside the seat creation transaction (see SeatRepo.CreateSeat), which
// uses the unexported tx helpers below so the conditional replace and the
// seat insert commit as one batch.
type SummaryRepo struct {
	db *sql.DB
}

// NewSummaryRepo returns a new SummaryRepo bound to the given database.
func NewSummaryRepo(db *sql.DB) *SummaryRepo { return &SummaryRepo{db: db} }

// Get returns the cached summary for a subscription.  A missing row is
// reported as a zero-count summary rather than an error: no summary has
// been materialized yet because no seat was ever created.
func (r *SummaryRepo) Get(ctx context.Context, subscriptionID string) (model.SeatingSummary, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.SeatingSummary{}, err
	}
	defer func() { _ = tx.Rollback() }()
	summary, _, err := getSummaryTx(ctx, tx, subscriptionID)
	if err != nil {
		return model.SeatingSummary{}, err
	}
	summary.SubscriptionID = subscriptionID
	return summary, nil
}

// Recount returns the authoritative counts of non-expired seats grouped
// by type.  This is the source of truth the cached summary is healed from.
func (r *SummaryRepo) Recount(ctx context.Context, subscriptionID string) (standard, limited int, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback() }()
	return recountSeatsTx(ctx, tx, subscriptionID)
}

// recountSeatsTx group-counts the non-expired seats of one subscription.
func recountSeatsTx(ctx context.Context, tx *sql.Tx, subscriptionID string) (standard, limited int, err error) {
	const q = `SELECT seat_type, COUNT(*) FROM seats
			   WHERE subscription_id = ? AND ` + notExpired + `
			   GROUP BY seat_type`
	rows, err := tx.QueryContext(ctx, q, subscriptionID)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()
	for rows.Next() {
		var seatType string
		var count int
		if err := rows.Scan(&seatType, &count); err != nil {
			return 0, 0, err
		}
		if seatType == model.SeatTypeLimited {
			limited = count
		} else {
			standard = count
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, err
	}
	return standard, limited, nil
}

// getSummaryTx loads the cached summary row and its version.  The second
// return value reports whether the row exists.
func getSummaryTx(ctx context.Context, tx *sql.Tx, subscriptionID string) (model.SeatingSummary, bool, error) {
	const q = `SELECT subscription_id, standard_count, limited_count, version
			   FROM seating_summaries WHERE subscription_id = ?`
	var s model.SeatingSummary
	err := tx.QueryRowContext(ctx, q, subscriptionID).Scan(
		&s.SubscriptionID, &s.StandardCount, &s.LimitedCount, &s.Version,
	)
	if err == sql.ErrNoRows {
		return model.SeatingSummary{}, false, nil
	}
	if err != nil {
		return model.SeatingSummary{}, false, err
	}
	return s, true, nil
}

// replaceSummaryTx overwrites the summary counts conditioned on the
// version still being the one the caller read.  Zero matched rows means
// another writer bumped the version first; the caller must discard the
// whole attempt and retry from the recount.
func replaceSummaryTx(ctx context.Context, tx *sql.Tx, s model.SeatingSummary) error {
	const q = `UPDATE seating_summaries
			   SET standard_count = ?, limited_count = ?, version = version + 1
			   WHERE subscription_id = ? AND version = ?`
	res, err := tx.ExecContext(ctx, q, s.StandardCount, s.LimitedCount, s.SubscriptionID, s.Version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSummaryConflict
	}
	return nil
}

// insertSummaryTx materializes the summary row on first creation.  A
// duplicate key means another writer inserted it concurrently, which is
// the same lost race as a stale version.
func insertSummaryTx(ctx context.Context, tx *sql.Tx, s model.SeatingSummary) error {
	const q = `INSERT INTO seating_summaries (subscription_id, standard_count, limited_count, version)
			   VALUES (?, ?, ?, 1)`
	_, err := tx.ExecContext(ctx, q, s.SubscriptionID, s.StandardCount, s.LimitedCount)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrSummaryConflict
		}
		return err
	}
	return nil
}
