package plans

import (
	"fmt"
	"strings"
	"time"
)

type Plan string

// Plan constants (single source of truth)
const (
	OneWeek    Plan = "1-week"
	FourWeek   Plan = "4-week"
	TwelveWeek Plan = "12-week"
	Lifetime   Plan = "lifetime"
)

const week = 7 * 24 * time.Hour

type pricing struct {
	label    string
	amount   int64 // minor units
	duration time.Duration
}

var table = map[Plan]pricing{
	OneWeek:    {label: "1 Week", amount: 1287, duration: 1 * week},
	FourWeek:   {label: "4 Weeks", amount: 3795, duration: 4 * week},
	TwelveWeek: {label: "12 Weeks", amount: 9700, duration: 12 * week},
	Lifetime:   {label: "Lifetime", amount: 29700},
}

// All returns the plans in display order.
func All() []Plan {
	return []Plan{OneWeek, FourWeek, TwelveWeek, Lifetime}
}

func (p Plan) Valid() bool {
	_, ok := table[p]
	return ok
}

func (p Plan) String() string { return string(p) }

// Parse accepts only the four known identifiers. Surrounding whitespace is ignored,
// case is not.
func Parse(s string) (Plan, error) {
	p := Plan(strings.TrimSpace(s))
	if !p.Valid() {
		return "", fmt.Errorf("unknown plan %q", s)
	}
	return p, nil
}

// PriceFor returns the plan price in minor units, or 0 for unknown plans.
func PriceFor(p Plan) int64 {
	return table[p].amount
}

// DurationFor returns the access duration. ok is false for lifetime and for
// unknown plans; callers must validate the plan first.
func DurationFor(p Plan) (d time.Duration, ok bool) {
	pr, found := table[p]
	if !found || pr.duration == 0 {
		return 0, false
	}
	return pr.duration, true
}

// IsRecurring reports whether the plan renews (every time-boxed plan does).
func IsRecurring(p Plan) bool {
	_, ok := DurationFor(p)
	return ok
}

func Label(p Plan) string {
	return table[p].label
}

type Listing struct {
	ID        Plan   `json:"id"`
	Name      string `json:"name"`
	Amount    int64  `json:"amount"`
	Weeks     int    `json:"weeks,omitempty"`
	Lifetime  bool   `json:"lifetime"`
	Recurring bool   `json:"recurring"`
}

// Catalog returns the public price list.
func Catalog() []Listing {
	out := make([]Listing, 0, len(table))
	for _, p := range All() {
		d, ok := DurationFor(p)
		out = append(out, Listing{
			ID:        p,
			Name:      Label(p),
			Amount:    PriceFor(p),
			Weeks:     int(d / week),
			Lifetime:  p == Lifetime,
			Recurring: ok,
		})
	}
	return out
}
