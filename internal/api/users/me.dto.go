package users

import "time"

type MeResponse struct {
	User   UserDTO   `json:"user"`
	Plan   *PlanDTO  `json:"plan"`
	Access AccessDTO `json:"access"`
}

/* ---------- USER ---------- */

type UserDTO struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Lastname string `json:"lastname"`
	Role     string `json:"role"`
}

/* ---------- PLAN ---------- */

type PlanDTO struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Amount    int64      `json:"amount"`
	Recurring bool       `json:"recurring"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

/* ---------- ACCESS ---------- */

type AccessDTO struct {
	State         string   `json:"state"` // none|active|lifetime|expired
	DaysRemaining *int     `json:"days_remaining"`
	Capabilities  []string `json:"capabilities"`
}
