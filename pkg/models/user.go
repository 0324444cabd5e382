package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a principal that can author and approve entities. Session
// issuance lives outside this module; the core only consults the stored
// password hash through the auth package when a mutation requires
// re-authentication.
type User struct {
	ID           uuid.UUID `json:"id"`
	UserName     string    `json:"userName"`
	FullName     string    `json:"fullName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
