// Package plan holds the static catalogue of subscription plans.  A plan
// grants a daily page quota and decides whether the DOCX artifact is
// produced.  The registry is immutable once built and safe for concurrent use.
package plan

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ID names a plan.  Stored values are always upper-case.
type ID string

const (
	Free    ID = "FREE"
	Basic   ID = "BASIC"
	Pro     ID = "PRO"
	Premium ID = "PREMIUM"
)

// ErrInvalidPlan is returned when a plan identifier is not in the registry.
var ErrInvalidPlan = errors.New("invalid plan")

// Definition describes what a plan grants.
type Definition struct {
	ID              ID
	DailyLimit      int  // pages per UTC day, always > 0
	SecondaryFormat bool // DOCX artifact enabled
}

// Registry maps plan identifiers to their definitions.
type Registry struct {
	plans    map[ID]Definition
	fallback ID
}

// Default returns the registry used in production.
func Default() *Registry {
	r, _ := NewRegistry(Free,
		Definition{ID: Free, DailyLimit: 10},
		Definition{ID: Basic, DailyLimit: 30},
		Definition{ID: Pro, DailyLimit: 200, SecondaryFormat: true},
		Definition{ID: Premium, DailyLimit: 1000, SecondaryFormat: true},
	)
	return r
}

// NewRegistry builds a registry from defs.  The fallback plan must be one of
// defs; it is what unknown identifiers resolve to.
func NewRegistry(fallback ID, defs ...Definition) (*Registry, error) {
	r := &Registry{plans: make(map[ID]Definition, len(defs)), fallback: Normalize(string(fallback))}
	for _, d := range defs {
		d.ID = Normalize(string(d.ID))
		if d.ID == "" {
			return nil, errors.New("plan id is required")
		}
		if d.DailyLimit <= 0 {
			return nil, fmt.Errorf("plan %s: daily limit must be positive", d.ID)
		}
		if _, dup := r.plans[d.ID]; dup {
			return nil, fmt.Errorf("plan %s: duplicate definition", d.ID)
		}
		r.plans[d.ID] = d
	}
	if _, ok := r.plans[r.fallback]; !ok {
		return nil, fmt.Errorf("fallback plan %s is not defined", r.fallback)
	}
	return r, nil
}

// Normalize trims and upper-cases a raw plan name.
func Normalize(s string) ID {
	return ID(strings.ToUpper(strings.TrimSpace(s)))
}

// Fallback returns the plan assigned to new users and unknown identifiers.
func (r *Registry) Fallback() ID { return r.fallback }

// Lookup returns the definition for id.  Unknown ids resolve to the fallback
// plan instead of failing so that a stale stored value never locks a user out.
func (r *Registry) Lookup(id ID) Definition {
	if d, ok := r.plans[Normalize(string(id))]; ok {
		return d
	}
	return r.plans[r.fallback]
}

// LimitFor returns the daily page limit for id.
func (r *Registry) LimitFor(id ID) int { return r.Lookup(id).DailyLimit }

// SecondaryFormatAllowed reports whether id is entitled to the DOCX artifact.
func (r *Registry) SecondaryFormatAllowed(id ID) bool { return r.Lookup(id).SecondaryFormat }

// Valid reports whether id is part of the closed set.
func (r *Registry) Valid(id ID) bool {
	_, ok := r.plans[Normalize(string(id))]
	return ok
}

// Parse normalizes raw and checks it against the registry.
func (r *Registry) Parse(raw string) (ID, error) {
	id := Normalize(raw)
	if !r.Valid(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlan, raw)
	}
	return id, nil
}

// Definitions lists all plans ordered by ascending daily limit.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.plans))
	for _, d := range r.plans {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DailyLimit == out[j].DailyLimit {
			return out[i].ID < out[j].ID
		}
		return out[i].DailyLimit < out[j].DailyLimit
	})
	return out
}
