package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/bank-cards/internal/utils"
	"github.com/google/uuid"
)

// Role grants access to admin endpoints
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole parses a role name case-insensitively
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(value))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", utils.ErrInvalidArgument, value)
}

// User represents a card owner or administrator
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	FullName     string    `db:"full_name" json:"full_name"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"` // Not serialized
	Role         Role      `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Principal is the authenticated caller of a request
type Principal struct {
	UserID   uuid.UUID
	Username string
	Role     Role
}

// IsAdmin reports whether the principal holds the admin role
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
