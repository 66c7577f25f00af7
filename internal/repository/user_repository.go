package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/docconv/internal/model"
)

// UserRepo provides access to the users table.
type UserRepo struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewUserRepo(db *sql.DB, d Dialect) *UserRepo { return &UserRepo{DB: db, Dialect: d} }

// Ensure inserts the user with plan def unless a row exists and returns the
// stored account.  An existing plan is never overwritten.
func (r *UserRepo) Ensure(ctx context.Context, userID int64, def string) (model.Account, error) {
	q := r.Dialect.insertIgnore("users", "user_id, plan", "?, ?", "user_id", "user_id")
	if _, err := r.DB.ExecContext(ctx, q, userID, def); err != nil {
		return model.Account{}, err
	}
	return r.GetByID(ctx, userID)
}

// GetByID fetches a user by id.  sql.ErrNoRows is returned when absent.
func (r *UserRepo) GetByID(ctx context.Context, userID int64) (model.Account, error) {
	var (
		a                    model.Account
		createdAt, updatedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, plan, created_at, updated_at FROM users WHERE user_id = ? LIMIT 1",
		userID).Scan(&a.UserID, &a.Plan, &createdAt, &updatedAt)
	if err != nil {
		return model.Account{}, err
	}
	a.CreatedAt = createdAt.Time
	a.UpdatedAt = updatedAt.Time
	return a, nil
}

// SetPlan upserts the user's plan.
func (r *UserRepo) SetPlan(ctx context.Context, userID int64, plan string) error {
	q := `INSERT INTO users (user_id, plan) VALUES (?, ?)
	      ON CONFLICT(user_id) DO UPDATE SET plan = excluded.plan, updated_at = CURRENT_TIMESTAMP`
	if r.Dialect == MySQL {
		q = `INSERT INTO users (user_id, plan) VALUES (?, ?)
		     ON DUPLICATE KEY UPDATE plan = VALUES(plan)`
	}
	_, err := r.DB.ExecContext(ctx, q, userID, plan)
	return err
}
