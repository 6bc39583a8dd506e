package models

import "time"

// Role names the account collection and the authorization role at once.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

type Account struct {
	ID             string
	Role           Role
	Name           string
	Email          string
	PasswordHash   []byte
	CurrentToken   *string
	TokenExpiresAt *time.Time
	CreatedAt      time.Time
}

// HoldsToken reports whether token is the account's single active session token.
func (a Account) HoldsToken(token string) bool {
	return a.CurrentToken != nil && *a.CurrentToken == token
}
