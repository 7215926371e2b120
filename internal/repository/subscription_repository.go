package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/subscription-seating/internal/model"
)

// SubscriptionRepo provides CRUD operations over the subscriptions table.
// Subscriptions are whole-document records: Replace overwrites every
// mutable column, there is no partial merge at this layer.  All timestamp
// columns are stored in UTC.
type SubscriptionRepo struct {
	db *sql.DB
}

// NewSubscriptionRepo returns a new SubscriptionRepo bound to the given database.
func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo { return &SubscriptionRepo{db: db} }

const subscriptionColumns = `id, tenant_id, state, total_seats, is_being_configured,
	   seating_strategy, default_seat_expiry_days, reservation_expiry_days,
	   limited_overflow_enabled, low_seat_warning_level,
	   user_role_name, admin_role_name, created_at, updated_at`

// scanSubscription reads one subscription row from the given scanner.
// Nullable columns map onto pointer fields.
func scanSubscription(row interface{ Scan(...any) error }) (*model.Subscription, error) {
	var s model.Subscription
	var totalSeats sql.NullInt64
	var defaultExpiry, reservationExpiry sql.NullInt64
	var warningLevel sql.NullFloat64
	var userRole, adminRole sql.NullString
	err := row.Scan(
		&s.ID, &s.TenantID, &s.State, &totalSeats, &s.IsBeingConfigured,
		&s.Seating.Strategy, &defaultExpiry, &reservationExpiry,
		&s.Seating.LimitedOverflowEnabled, &warningLevel,
		&userRole, &adminRole, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if totalSeats.Valid {
		n := int(totalSeats.Int64)
		s.TotalSeats = &n
	}
	if defaultExpiry.Valid {
		n := int(defaultExpiry.Int64)
		s.Seating.DefaultSeatExpiryDays = &n
	}
	if reservationExpiry.Valid {
		n := int(reservationExpiry.Int64)
		s.Seating.ReservationExpiryDays = &n
	}
	if warningLevel.Valid {
		f := warningLevel.Float64
		s.Seating.LowSeatWarningLevel = &f
	}
	if userRole.Valid {
		v := userRole.String
		s.UserRoleName = &v
	}
	if adminRole.Valid {
		v := adminRole.String
		s.AdminRoleName = &v
	}
	return &s, nil
}

// Get returns the subscription with the given id, or
// ErrSubscriptionNotFound when it does not exist.
func (r *SubscriptionRepo) Get(ctx context.Context, id string) (*model.Subscription, error) {
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = ?`
	sub, err := scanSubscription(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Create inserts a new subscription.  The caller supplies the id; created
// and updated timestamps default in the database.
func (r *SubscriptionRepo) Create(ctx context.Context, s *model.Subscription) error {
	const q = `INSERT INTO subscriptions
		(id, tenant_id, state, total_seats, is_being_configured,
		 seating_strategy, default_seat_expiry_days, reservation_expiry_days,
		 limited_overflow_enabled, low_seat_warning_level, user_role_name, admin_role_name)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.TenantID, s.State, nullInt(s.TotalSeats), s.IsBeingConfigured,
		s.Seating.Strategy, nullInt(s.Seating.DefaultSeatExpiryDays),
		nullInt(s.Seating.ReservationExpiryDays),
		s.Seating.LimitedOverflowEnabled, nullFloat(s.Seating.LowSeatWarningLevel),
		nullStr(s.UserRoleName), nullStr(s.AdminRoleName),
	)
	return err
}

// Replace overwrites every mutable column of an existing subscription.
// It returns ErrSubscriptionNotFound when no row matched the id.
func (r *SubscriptionRepo) Replace(ctx context.Context, s *model.Subscription) error {
	const q = `UPDATE subscriptions SET
		tenant_id = ?, state = ?, total_seats = ?, is_being_configured = ?,
		seating_strategy = ?, default_seat_expiry_days = ?, reservation_expiry_days = ?,
		limited_overflow_enabled = ?, low_seat_warning_level = ?,
		user_role_name = ?, admin_role_name = ?, updated_at = UTC_TIMESTAMP()
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		s.TenantID, s.State, nullInt(s.TotalSeats), s.IsBeingConfigured,
		s.Seating.Strategy, nullInt(s.Seating.DefaultSeatExpiryDays),
		nullInt(s.Seating.ReservationExpiryDays),
		s.Seating.LimitedOverflowEnabled, nullFloat(s.Seating.LowSeatWarningLevel),
		nullStr(s.UserRoleName), nullStr(s.AdminRoleName),
		s.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// UPDATE with identical values reports zero affected rows on
		// MySQL, so confirm absence before declaring not-found.
		if _, err := r.Get(ctx, s.ID); err != nil {
			return err
		}
	}
	return nil
}

// Patch applies a partial update: it loads the subscription, applies the
// non-nil patch fields and replaces the whole document.
func (r *SubscriptionRepo) Patch(ctx context.Context, id string, p model.SubscriptionPatch) (*model.Subscription, error) {
	sub, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Apply(sub)
	if err := r.Replace(ctx, sub); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// nullStr converts an optional string into a driver-friendly value.
func nullStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
