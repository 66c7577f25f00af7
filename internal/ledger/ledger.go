// Package ledger tracks pages consumed per user per UTC day and enforces the
// daily limit of the user's plan.  The check-and-debit is delegated to a
// Store, which must execute it atomically for a (user, day) key.  Nothing
// in this package holds a lock across users.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/docconv/internal/logging"
	"github.com/iliyamo/docconv/internal/plan"
)

var (
	// ErrInvalidArgument is returned for non-positive page counts.
	ErrInvalidArgument = errors.New("ledger: invalid argument")
	// ErrStorageUnavailable wraps any failure of the backing store.  Callers
	// may retry; it never means "quota available".
	ErrStorageUnavailable = errors.New("ledger: storage unavailable")
)

// DayLayout is the format of the day component of a usage key.
const DayLayout = "2006-01-02"

// Store persists users and daily usage.  Reserve must behave as a single
// critical section per (userID, day).
type Store interface {
	// EnsureUser creates the user with def if absent and returns the
	// stored plan.  It never changes an existing plan.
	EnsureUser(ctx context.Context, userID int64, def plan.ID) (plan.ID, error)
	// SetPlan assigns p, creating the user when needed.
	SetPlan(ctx context.Context, userID int64, p plan.ID) error
	// UsageOn returns pages used on day, creating a zero record if absent.
	UsageOn(ctx context.Context, userID int64, day string) (int, error)
	// Reserve adds pages to the day's counter when the result stays within
	// limit.  It returns the counter after the call and whether it was
	// written.  A rejected call performs no write.  limit is a value chosen
	// by the caller; the store does not re-read the user's plan inside the
	// atomic step.
	Reserve(ctx context.Context, userID int64, day string, pages, limit int) (used int, ok bool, err error)
}

// Reservation is the outcome of TryReserve.
type Reservation struct {
	Reserved bool
	Plan     plan.ID
	Pages    int
	Used     int // pages used today after the call
	Limit    int
	Day      string
}

// Status is a read-only snapshot for the "show my plan" surface.
type Status struct {
	Plan            plan.ID `json:"plan"`
	Used            int     `json:"used"`
	Limit           int     `json:"limit"`
	Remaining       int     `json:"remaining"`
	Day             string  `json:"day"`
	SecondaryFormat bool    `json:"secondary_format"`
}

// Ledger is safe for concurrent use.
type Ledger struct {
	store Store
	plans *plan.Registry
	now   func() time.Time
	log   *logging.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock used to derive the day.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option { return func(l *Ledger) { l.log = log } }

// New builds a Ledger over store using plans for limits.
func New(store Store, plans *plan.Registry, opts ...Option) *Ledger {
	if store == nil || plans == nil {
		panic("nil dependency passed to ledger.New")
	}
	l := &Ledger{store: store, plans: plans, now: time.Now, log: logging.Nop()}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Day returns the usage-key day for t.  The boundary is always UTC.
func Day(t time.Time) string { return t.UTC().Format(DayLayout) }

func (l *Ledger) today() string { return Day(l.now()) }

// EnsureUser registers userID on the fallback plan if unseen and returns the
// user's plan.
func (l *Ledger) EnsureUser(ctx context.Context, userID int64) (plan.ID, error) {
	p, err := l.store.EnsureUser(ctx, userID, l.plans.Fallback())
	if err != nil {
		return "", storageErr("ensure user", err)
	}
	return p, nil
}

// UsageToday returns pages debited for userID on the current UTC day.
func (l *Ledger) UsageToday(ctx context.Context, userID int64) (int, error) {
	used, err := l.store.UsageOn(ctx, userID, l.today())
	if err != nil {
		return 0, storageErr("usage", err)
	}
	return used, nil
}

// TryReserve debits pages against today's quota if they fit.  The day is
// taken when the call is made, so a request crossing midnight is charged
// to the new day.
//
// The limit is likewise read from the user's plan at call time, before the
// atomic reserve.  A plan change that lands between the two is not seen by
// this call: one reservation may still be checked against the old limit,
// and the new limit applies from the next call on.
func (l *Ledger) TryReserve(ctx context.Context, userID int64, pages int) (Reservation, error) {
	if pages <= 0 {
		return Reservation{}, fmt.Errorf("%w: pages must be positive, got %d", ErrInvalidArgument, pages)
	}
	p, err := l.EnsureUser(ctx, userID)
	if err != nil {
		return Reservation{}, err
	}
	limit := l.plans.LimitFor(p)
	day := l.today()
	used, ok, err := l.store.Reserve(ctx, userID, day, pages, limit)
	if err != nil {
		return Reservation{}, storageErr("reserve", err)
	}
	res := Reservation{Reserved: ok, Plan: l.plans.Lookup(p).ID, Pages: pages, Used: used, Limit: limit, Day: day}
	ev := l.log.Debug()
	if !ok {
		ev = l.log.Info()
	}
	ev.Int64("user_id", userID).Str("day", day).Int("pages", pages).Int("used", used).Int("limit", limit).
		Bool("reserved", ok).Msg("quota reservation")
	return res, nil
}

// SetPlan validates raw against the registry before writing anything.
func (l *Ledger) SetPlan(ctx context.Context, userID int64, raw string) (plan.ID, error) {
	p, err := l.plans.Parse(raw)
	if err != nil {
		return "", err
	}
	if err := l.store.SetPlan(ctx, userID, p); err != nil {
		return "", storageErr("set plan", err)
	}
	l.log.Info().Int64("user_id", userID).Str("plan", string(p)).Msg("plan assigned")
	return p, nil
}

// Status returns the user's plan and today's usage.
func (l *Ledger) Status(ctx context.Context, userID int64) (Status, error) {
	p, err := l.EnsureUser(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	day := l.today()
	used, err := l.store.UsageOn(ctx, userID, day)
	if err != nil {
		return Status{}, storageErr("usage", err)
	}
	def := l.plans.Lookup(p)
	remaining := def.DailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Plan:            def.ID,
		Used:            used,
		Limit:           def.DailyLimit,
		Remaining:       remaining,
		Day:             day,
		SecondaryFormat: def.SecondaryFormat,
	}, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
