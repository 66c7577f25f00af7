package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/iliyamo/docconv/internal/ledger"
	"github.com/iliyamo/docconv/internal/plan"
)

// Accounts is what the built-in commands need from the service layer.
type Accounts interface {
	Status(ctx context.Context, userID int64) (ledger.Status, error)
	SetPlan(ctx context.Context, userID int64, raw string) (plan.ID, error)
}

const welcome = "PDF to Text\n\n" +
	"Upload a PDF and it will be converted to text; paid plans also receive a DOCX copy.\n" +
	"Use /plan to see your current plan."

// NewDefault builds the dispatcher with /start, /help, /plan and /setplan.
// isAdmin decides who may run /setplan.
func NewDefault(acc Accounts, plans *plan.Registry, isAdmin func(int64) bool) *Dispatcher {
	d := NewDispatcher()
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(d.Register("start", "introduction", func(context.Context, Request) (string, error) {
		return welcome, nil
	}))
	must(d.Register("help", "list commands", func(context.Context, Request) (string, error) {
		return d.Help(), nil
	}))
	must(d.Register("plan", "show your plan and today's usage", planCommand(acc)))
	must(d.Register("setplan", "USER_ID PLAN (admins only)", setPlanCommand(acc, plans, isAdmin)))
	return d
}

func planCommand(acc Accounts) HandlerFunc {
	return func(ctx context.Context, req Request) (string, error) {
		st, err := acc.Status(ctx, req.UserID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Your plan: %s\nDaily limit: %d pages\nUsed today: %d pages\nRemaining: %d pages",
			st.Plan, st.Limit, st.Used, st.Remaining), nil
	}
}

func setPlanCommand(acc Accounts, plans *plan.Registry, isAdmin func(int64) bool) HandlerFunc {
	return func(ctx context.Context, req Request) (string, error) {
		if isAdmin == nil || !isAdmin(req.UserID) {
			return "Not allowed.", nil
		}
		if len(req.Args) != 2 {
			return "Usage: /setplan USER_ID PLAN", nil
		}
		target, err := strconv.ParseInt(req.Args[0], 10, 64)
		if err != nil || target <= 0 {
			return "Invalid user id.", nil
		}
		p, err := acc.SetPlan(ctx, target, req.Args[1])
		if errors.Is(err, plan.ErrInvalidPlan) {
			return "Invalid plan. Choose one of: " + planNames(plans) + ".", nil
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Plan %s set for user %d", p, target), nil
	}
}

func planNames(plans *plan.Registry) string {
	defs := plans.Definitions()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = string(d.ID)
	}
	return strings.Join(names, ", ")
}
