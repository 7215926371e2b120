package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/subscription-seating/internal/model"
)

// notExpired is the predicate every seat read path carries.  A seat whose
// expires_at has passed is absent by contract, whether or not a physical
// cleanup job has removed the row yet.
const notExpired = `(expires_at IS NULL OR expires_at > UTC_TIMESTAMP())`

const seatColumns = `id, subscription_id, seat_type,
	   occupant_user_id, occupant_tenant_id, occupant_email, occupant_display_name,
	   reservation_user_id, reservation_tenant_id, reservation_email,
	   created_at, expires_at, redeemed_at`

// SeatFilter narrows List results.  Empty fields are ignored.  A filter
// matches a seat when the value appears in either the occupant or the
// reservation sub-fields; email comparison is case-insensitive.
type SeatFilter struct {
	UserID string
	Email  string
}

// SeatCreationResult is returned by CreateSeat.  When Created is false the
// subscription was out of standard capacity and nothing was mutated; the
// Summary still carries the corrected counts from the authoritative
// recount performed during the attempt.
type SeatCreationResult struct {
	Created bool
	Seat    *model.Seat
	Summary model.SeatingSummary
}

// SeatRepo provides data access to the seats table.  Seats are
// partitioned by subscription id: every query and the compound creation
// transaction are scoped to a single subscription.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a new SeatRepo bound to the provided database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

func scanSeat(row interface{ Scan(...any) error }) (*model.Seat, error) {
	var s model.Seat
	var occUser, occTenant, occEmail, occName sql.NullString
	var resUser, resTenant, resEmail sql.NullString
	var expiresAt, redeemedAt sql.NullTime
	err := row.Scan(
		&s.ID, &s.SubscriptionID, &s.SeatType,
		&occUser, &occTenant, &occEmail, &occName,
		&resUser, &resTenant, &resEmail,
		&s.CreatedAt, &expiresAt, &redeemedAt,
	)
	if err != nil {
		return nil, err
	}
	if occUser.Valid {
		occ := model.Occupant{UserID: occUser.String, TenantID: occTenant.String}
		if occEmail.Valid {
			v := occEmail.String
			occ.Email = &v
		}
		if occName.Valid {
			v := occName.String
			occ.DisplayName = &v
		}
		s.Occupant = &occ
	}
	if resUser.Valid || resEmail.Valid {
		var res model.Reservation
		if resUser.Valid {
			v := resUser.String
			res.UserID = &v
		}
		if resTenant.Valid {
			v := resTenant.String
			res.TenantID = &v
		}
		if resEmail.Valid {
			v := resEmail.String
			res.Email = &v
		}
		s.Reservation = &res
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		s.ExpiresAt = &t
	}
	if redeemedAt.Valid {
		t := redeemedAt.Time.UTC()
		s.RedeemedAt = &t
	}
	return &s, nil
}

// Get returns a single non-expired seat, or ErrSeatNotFound when the seat
// does not exist or has passively expired.
func (r *SeatRepo) Get(ctx context.Context, seatID, subscriptionID string) (*model.Seat, error) {
	const q = `SELECT ` + seatColumns + ` FROM seats
			   WHERE id = ? AND subscription_id = ? AND ` + notExpired
	seat, err := scanSeat(r.db.QueryRowContext(ctx, q, seatID, subscriptionID))
	if err == sql.ErrNoRows {
		return nil, ErrSeatNotFound
	}
	if err != nil {
		return nil, err
	}
	return seat, nil
}

// List returns the non-expired seats of a subscription, optionally
// narrowed by user id or email.  Filters match against both the occupant
// and the reservation sub-fields.
func (r *SeatRepo) List(ctx context.Context, subscriptionID string, f SeatFilter) ([]model.Seat, error) {
	q := `SELECT ` + seatColumns + ` FROM seats
		  WHERE subscription_id = ? AND ` + notExpired
	args := []any{subscriptionID}
	if f.UserID != "" {
		q += ` AND (occupant_user_id = ? OR reservation_user_id = ?)`
		args = append(args, f.UserID, f.UserID)
	}
	if f.Email != "" {
		q += ` AND (LOWER(occupant_email) = LOWER(?) OR LOWER(reservation_email) = LOWER(?))`
		args = append(args, f.Email, f.Email)
	}
	q += ` ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]model.Seat, 0)
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// Replace overwrites the occupant, reservation and lifecycle columns of a
// seat.  It returns ErrSeatNotFound when the seat is absent or expired.
func (r *SeatRepo) Replace(ctx context.Context, s *model.Seat) error {
	res, err := r.db.ExecContext(ctx, `UPDATE seats SET `+seatAssignments+`
		WHERE id = ? AND subscription_id = ? AND `+notExpired,
		append(seatAssignmentArgs(s), s.ID, s.SubscriptionID)...)
	if err != nil {
		return err
	}
	return requireSeatMatched(res)
}

// Redeem turns a reserved seat into an occupied one.  The update is
// conditional on the seat still being an unredeemed reservation, so a
// concurrent redemption of the same seat loses with ErrSeatNotFound
// instead of silently overwriting the winner's occupant.
func (r *SeatRepo) Redeem(ctx context.Context, s *model.Seat) error {
	res, err := r.db.ExecContext(ctx, `UPDATE seats SET `+seatAssignments+`
		WHERE id = ? AND subscription_id = ? AND occupant_user_id IS NULL AND `+notExpired,
		append(seatAssignmentArgs(s), s.ID, s.SubscriptionID)...)
	if err != nil {
		return err
	}
	return requireSeatMatched(res)
}

// seatAssignments and seatAssignmentArgs keep the two conditional update
// statements above in sync.
const seatAssignments = `occupant_user_id = ?, occupant_tenant_id = ?,
		occupant_email = ?, occupant_display_name = ?,
		reservation_user_id = ?, reservation_tenant_id = ?, reservation_email = ?,
		expires_at = ?, redeemed_at = ?`

func seatAssignmentArgs(s *model.Seat) []any {
	var occUser, occTenant, occEmail, occName any
	if s.Occupant != nil {
		occUser = s.Occupant.UserID
		occTenant = s.Occupant.TenantID
		occEmail = nullStr(s.Occupant.Email)
		occName = nullStr(s.Occupant.DisplayName)
	}
	var resUser, resTenant, resEmail any
	if s.Reservation != nil {
		resUser = nullStr(s.Reservation.UserID)
		resTenant = nullStr(s.Reservation.TenantID)
		resEmail = nullStr(s.Reservation.Email)
	}
	var expiresAt, redeemedAt any
	if s.ExpiresAt != nil {
		expiresAt = s.ExpiresAt.UTC()
	}
	if s.RedeemedAt != nil {
		redeemedAt = s.RedeemedAt.UTC()
	}
	return []any{occUser, occTenant, occEmail, occName, resUser, resTenant, resEmail, expiresAt, redeemedAt}
}

func requireSeatMatched(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSeatNotFound
	}
	return nil
}

// Delete removes a seat.  Deleting an absent seat is not an error.
func (r *SeatRepo) Delete(ctx context.Context, seatID, subscriptionID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM seats WHERE id = ? AND subscription_id = ?`, seatID, subscriptionID)
	return err
}

// CreateSeat performs one optimistic attempt of the seat creation
// protocol within a single transaction scoped to the seat's subscription:
//
//  1. recount non-expired seats by type (the authoritative counts),
//  2. load the cached summary together with its version,
//  3. overwrite the cached counts with the recount (self-healing),
//  4. refuse standard seats at or over a finite capacity,
//  5. otherwise increment the matching counter and commit the summary
//     replace (conditional on the version read in step 2) together with
//     the seat insert.
//
// A stale version surfaces as ErrSummaryConflict after rollback; callers
// own the retry policy.  When capacity is exhausted the attempt returns
// Created=false with the corrected summary and performs no mutation.
func (r *SeatRepo) CreateSeat(ctx context.Context, seat *model.Seat, sub *model.Subscription) (*SeatCreationResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	standard, limited, err := recountSeatsTx(ctx, tx, sub.ID)
	if err != nil {
		return nil, err
	}
	summary, exists, err := getSummaryTx(ctx, tx, sub.ID)
	if err != nil {
		return nil, err
	}
	summary.SubscriptionID = sub.ID
	summary.StandardCount = standard
	summary.LimitedCount = limited

	if seat.SeatType == model.SeatTypeStandard && sub.TotalSeats != nil && summary.StandardCount >= *sub.TotalSeats {
		return &SeatCreationResult{Created: false, Summary: summary}, nil
	}
	if seat.SeatType == model.SeatTypeLimited {
		summary.LimitedCount++
	} else {
		summary.StandardCount++
	}

	if exists {
		if err := replaceSummaryTx(ctx, tx, summary); err != nil {
			return nil, err
		}
	} else if err := insertSummaryTx(ctx, tx, summary); err != nil {
		return nil, err
	}
	summary.Version++

	if err := insertSeatTx(ctx, tx, seat); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return &SeatCreationResult{Created: true, Seat: seat, Summary: summary}, nil
}

func insertSeatTx(ctx context.Context, tx *sql.Tx, s *model.Seat) error {
	const q = `INSERT INTO seats
		(id, subscription_id, seat_type,
		 occupant_user_id, occupant_tenant_id, occupant_email, occupant_display_name,
		 reservation_user_id, reservation_tenant_id, reservation_email,
		 created_at, expires_at, redeemed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := append([]any{s.ID, s.SubscriptionID, s.SeatType}, seatAssignmentArgs(s)[:7]...)
	var expiresAt, redeemedAt any
	if s.ExpiresAt != nil {
		expiresAt = s.ExpiresAt.UTC()
	}
	if s.RedeemedAt != nil {
		redeemedAt = s.RedeemedAt.UTC()
	}
	args = append(args, s.CreatedAt.UTC(), expiresAt, redeemedAt)
	_, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrDuplicateSeat
		}
		return err
	}
	return nil
}
