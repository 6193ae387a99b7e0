// Package auth gates login on verification state and issues access tokens.
// The gate is the authoritative enforcement point: verification records are
// advisory until checked here.
package auth

import (
	"time"

	"aegis/internal/verification"
)

// User is the minimal identity the gate needs from the user directory.
type User struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Role      verification.Role `json:"role"`
	CreatedAt time.Time         `json:"created_at"`
}

// LoginResult is returned once the gate passes.
type LoginResult struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
}
