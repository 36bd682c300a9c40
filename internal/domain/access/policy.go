package access

import (
	"math"
	"time"

	"bot-access/internal/domain/plans"
)

type Policy struct {
	State         AccessState `json:"state"`
	Plan          plans.Plan  `json:"plan,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	DaysRemaining *int        `json:"days_remaining,omitempty"`
	Capabilities  []string    `json:"capabilities"`
}

func ComputePolicy(now time.Time, e *Entitlement) Policy {
	state := ComputeAccessState(now, e)

	p := Policy{
		State:        state,
		Capabilities: CapabilitiesFor(state),
	}
	if e != nil {
		p.Plan = e.Plan
		p.ExpiresAt = e.ExpiresAt
	}
	if state == AccessActive && e.ExpiresAt != nil {
		days := int(math.Ceil(e.ExpiresAt.Sub(now).Hours() / 24))
		p.DaysRemaining = &days
	}
	return p
}
