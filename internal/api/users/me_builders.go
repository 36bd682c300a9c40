package users

import (
	"bot-access/internal/domain/access"
	"bot-access/internal/domain/plans"
	"bot-access/internal/domain/users"
)

func BuildUserDTO(u *users.User) UserDTO {
	return UserDTO{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Lastname: u.Lastname,
		Role:     u.Role,
	}
}

func BuildPlanDTO(e *access.Entitlement) *PlanDTO {
	if e == nil || !e.Plan.Valid() {
		return nil
	}
	return &PlanDTO{
		Key:       e.Plan.String(),
		Label:     plans.Label(e.Plan),
		Amount:    plans.PriceFor(e.Plan),
		Recurring: plans.IsRecurring(e.Plan),
		GrantedAt: e.GrantedAt,
		ExpiresAt: e.ExpiresAt,
	}
}

func BuildAccessDTO(p access.Policy) AccessDTO {
	caps := p.Capabilities
	if caps == nil {
		caps = []string{}
	}
	return AccessDTO{
		State:         string(p.State),
		DaysRemaining: p.DaysRemaining,
		Capabilities:  caps,
	}
}
