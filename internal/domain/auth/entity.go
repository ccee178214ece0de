// internal/domain/auth/entity.go
package auth

import (
	"context"
	"time"
)

const (
	RoleAdministrator = "Administrator"
	RoleAttendant     = "Attendant"
)

// Operator is a staff account that can sign in to the admin surface.
type Operator struct {
	ID           int64     `json:"user_id" db:"user_id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// OperatorRepository stores operator accounts.
type OperatorRepository interface {
	FindByUsername(ctx context.Context, username string) (*Operator, error)
	// Ensure creates the operator unless the username exists. The stored
	// row is returned either way.
	Ensure(ctx context.Context, op *Operator) (*Operator, error)
}

func ValidRole(role string) bool {
	return role == RoleAdministrator || role == RoleAttendant
}
