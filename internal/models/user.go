package models

import (
	"time"

	"github.com/google/uuid"
)

// Platform roles known to the seeder and the handlers.
// Stored as plain strings so new roles don't require a migration.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Username       string
	HashedPassword string
	Roles          []string
}

// Principal is the verified identity attached to a request.
// Transient: produced by the credential verifier or parsed from
// an access token, never persisted.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Roles    []string
}

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
