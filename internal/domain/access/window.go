package access

import (
	"time"

	"bot-access/internal/domain/plans"
)

// Window is the access period bought by one successful payment.
type Window struct {
	ExpiresAt     *time.Time
	NextBillingAt *time.Time
	Recurring     bool
}

// ComputeWindow derives expiry and renewal from the plan. Lifetime never
// expires and never bills again; every other plan expires after its duration
// and bills again at expiry.
func ComputeWindow(p plans.Plan, now time.Time) Window {
	d, ok := plans.DurationFor(p)
	if !ok {
		return Window{}
	}
	expires := now.Add(d)
	next := expires
	return Window{
		ExpiresAt:     &expires,
		NextBillingAt: &next,
		Recurring:     true,
	}
}
