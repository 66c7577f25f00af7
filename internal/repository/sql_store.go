package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/docconv/internal/plan"
)

// reserveAttempts bounds retries of a reservation that lost an InnoDB
// deadlock race on a freshly inserted usage row.
const reserveAttempts = 3

// SQLStore adapts UserRepo and UsageRepo to the ledger's Store contract.
type SQLStore struct {
	Users *UserRepo
	Usage *UsageRepo
}

// NewSQLStore builds a store for db using the given driver name.
func NewSQLStore(db *sql.DB, driver string) (*SQLStore, error) {
	d := Dialect(driver)
	if !d.valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, driver)
	}
	return &SQLStore{Users: NewUserRepo(db, d), Usage: NewUsageRepo(db, d)}, nil
}

func (s *SQLStore) EnsureUser(ctx context.Context, userID int64, def plan.ID) (plan.ID, error) {
	a, err := s.Users.Ensure(ctx, userID, string(def))
	if err != nil {
		return "", err
	}
	return plan.ID(a.Plan), nil
}

func (s *SQLStore) SetPlan(ctx context.Context, userID int64, p plan.ID) error {
	return s.Users.SetPlan(ctx, userID, string(p))
}

func (s *SQLStore) UsageOn(ctx context.Context, userID int64, day string) (int, error) {
	return s.Usage.PagesUsed(ctx, userID, day)
}

func (s *SQLStore) Reserve(ctx context.Context, userID int64, day string, pages, limit int) (int, bool, error) {
	var err error
	for i := 0; i < reserveAttempts; i++ {
		var (
			used int
			ok   bool
		)
		used, ok, err = s.Usage.Reserve(ctx, userID, day, pages, limit)
		if !isDeadlock(err) {
			return used, ok, err
		}
	}
	return 0, false, err
}

// isDeadlock reports MySQL error 1213.  A deadlocked transaction was rolled
// back in full, so retrying cannot double-debit.
func isDeadlock(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1213
}
