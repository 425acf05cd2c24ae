package domain

import "time"

// Role defines principal permission level
type Role string

const (
	RoleUser  Role = "user"  // Regular account
	RoleAdmin Role = "admin" // Elevated account, may change avatar and manage cache
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Principal represents an account record owned by the user directory
type Principal struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never serialize
	Role         Role      `json:"role"`
	Active       bool      `json:"is_active"`
	Verified     bool      `json:"is_verified"`
	Avatar       *string   `json:"avatar,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PrincipalSummary provides a safe view of a principal (no password hash)
type PrincipalSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Active    bool      `json:"is_active"`
	Verified  bool      `json:"is_verified"`
	Avatar    *string   `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ToSummary converts a Principal to PrincipalSummary
func (p *Principal) ToSummary() *PrincipalSummary {
	return &PrincipalSummary{
		ID:        p.ID,
		Email:     p.Email,
		Role:      p.Role,
		Active:    p.Active,
		Verified:  p.Verified,
		Avatar:    p.Avatar,
		CreatedAt: p.CreatedAt,
	}
}

// IsAdmin checks if the principal has admin privileges
func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
