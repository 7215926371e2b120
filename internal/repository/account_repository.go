package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/subscription-seating/internal/model"
)

// AccountRepo provides data access to the accounts table used by the
// built-in admin authentication endpoints.
type AccountRepo struct {
	db *sql.DB
}

// NewAccountRepo returns a new AccountRepo bound to the given database.
func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

// Create inserts a new account.  The generated id is populated on the
// passed record.  A duplicate email returns ErrAccountExists.
func (r *AccountRepo) Create(ctx context.Context, a *model.Account) error {
	const q = `INSERT INTO accounts (email, password_hash, tenant_id, roles, is_active)
			   VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, a.Email, a.PasswordHash, a.TenantID, a.Roles, a.IsActive)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrAccountExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// GetByEmail returns the account with the given email.  When no account
// exists, sql.ErrNoRows is returned.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	const q = `SELECT id, email, password_hash, tenant_id, roles, is_active, created_at, updated_at
			   FROM accounts WHERE email = ?`
	var a model.Account
	err := r.db.QueryRowContext(ctx, q, email).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.TenantID, &a.Roles, &a.IsActive,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
