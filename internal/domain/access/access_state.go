package access

import (
	"time"

	"bot-access/internal/domain/plans"
)

// ComputeAccessState interprets a stored entitlement at a point in time.
func ComputeAccessState(now time.Time, e *Entitlement) AccessState {
	if e == nil || e.Plan == "" {
		return AccessNone
	}

	if e.ExpiresAt == nil {
		if e.Plan == plans.Lifetime {
			return AccessLifetime
		}
		// Non-lifetime rows must carry an expiry; treat anything else as lapsed.
		return AccessExpired
	}

	if now.Before(*e.ExpiresAt) {
		return AccessActive
	}
	return AccessExpired
}
