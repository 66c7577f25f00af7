package repository

import (
	"context"
	"database/sql"
)

// UsageRepo provides access to the daily_usage table.  Rows are keyed by
// (user_id, day) and pages_used is only ever changed by an additive UPDATE
// whose guard and increment are evaluated in the same statement, so two
// concurrent debits cannot both pass against a stale value.
type UsageRepo struct {
	db      *sql.DB
	dialect Dialect
}

func NewUsageRepo(db *sql.DB, d Dialect) *UsageRepo { return &UsageRepo{db: db, dialect: d} }

// DB exposes the handle so callers can open their own transactions.
func (r *UsageRepo) DB() *sql.DB { return r.db }

// ensureTx creates the zero row for (userID, day) if it is missing.
func (r *UsageRepo) ensureTx(ctx context.Context, tx *sql.Tx, userID int64, day string) error {
	q := r.dialect.insertIgnore("daily_usage", "user_id, day, pages_used", "?, ?, 0", "user_id, day", "pages_used")
	_, err := tx.ExecContext(ctx, q, userID, day)
	return err
}

func (r *UsageRepo) pagesUsedTx(ctx context.Context, tx *sql.Tx, userID int64, day string) (int, error) {
	var used int
	err := tx.QueryRowContext(ctx,
		`SELECT pages_used FROM daily_usage WHERE user_id = ? AND day = ?`, userID, day).Scan(&used)
	return used, err
}

// PagesUsed returns pages used on day, creating the zero row when absent so
// reads never report "not found".
func (r *UsageRepo) PagesUsed(ctx context.Context, userID int64, day string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := r.ensureTx(ctx, tx, userID, day); err != nil {
		return 0, err
	}
	used, err := r.pagesUsedTx(ctx, tx, userID, day)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return used, nil
}

// Reserve debits pages when pages_used + pages <= limit.  The guarded
// UPDATE takes the row lock; the follow-up SELECT in the same transaction
// reads the value the UPDATE left behind.  It returns the counter after the
// call and whether the debit was applied.
func (r *UsageRepo) Reserve(ctx context.Context, userID int64, day string, pages, limit int) (int, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := r.ensureTx(ctx, tx, userID, day); err != nil {
		return 0, false, err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE daily_usage
		    SET pages_used = pages_used + ?, updated_at = CURRENT_TIMESTAMP
		  WHERE user_id = ? AND day = ? AND pages_used + ? <= ?`,
		pages, userID, day, pages, limit)
	if err != nil {
		return 0, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	used, err := r.pagesUsedTx(ctx, tx, userID, day)
	if err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	committed = true
	return used, n == 1, nil
}
