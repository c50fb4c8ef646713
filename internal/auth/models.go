package auth

import (
	"github.com/golang-jwt/jwt/v4"
)

type Role string

const (
	RoleGuest Role = "GUEST"
	RoleAdmin Role = "ADMIN"
)

func IsValidRole(role string) bool {
	switch role {
	case string(RoleGuest), string(RoleAdmin):
		return true
	default:
		return false
	}
}

// Identity is the already-verified caller handed to the booking core.
// GuestID is stable across sessions; nothing provider-specific leaks past it.
type Identity struct {
	GuestID string `json:"guest_id"`
	Email   string `json:"email,omitempty"`
	Role    Role   `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// JWTClaims represents JWT token claims minted by the identity bridge
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Type   string `json:"type"` // "access" or "refresh"
	jwt.RegisteredClaims
}
