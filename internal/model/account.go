package model

import "time"

// Account represents a row in the `users` table.  Accounts are created
// implicitly the first time a user interacts and are never deleted by the
// service; only the plan changes afterwards.
//
// Fields:
//
//	UserID    – externally supplied identifier (never generated here).
//	Plan      – plan identifier, one of the registry's closed set.
//	CreatedAt – timestamp of creation.
//	UpdatedAt – timestamp of the last plan change.
type Account struct {
	UserID    int64     // users.user_id
	Plan      string    // users.plan
	CreatedAt time.Time // users.created_at
	UpdatedAt time.Time // users.updated_at
}
