package domain

import (
	"strings"
	"time"
)

// Role is the self-declared role sent by the simple-login flow.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the recognised roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// User models an account known to the identity service.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	IsStaff      bool       `json:"is_staff"`
	PasswordHash string     `json:"-"`
	LastLogin    *time.Time `json:"last_login"`
	DateJoined   time.Time  `json:"date_joined"`
}

// HasUsableCredential reports whether a password has ever been set.
// Accounts provisioned by simple login start without one.
func (u *User) HasUsableCredential() bool {
	return u.PasswordHash != ""
}

// ApplyDisplayName splits name on whitespace: the first token becomes the
// first name and the remaining tokens, joined by a single space, the last
// name. A single token leaves LastName untouched; a blank name changes nothing.
func (u *User) ApplyDisplayName(name string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return
	}
	u.FirstName = parts[0]
	if len(parts) > 1 {
		u.LastName = strings.Join(parts[1:], " ")
	}
}

// Principal is the authenticated caller as asserted by a verified access token.
type Principal struct {
	UserID   string
	Username string
	Email    string
	IsStaff  bool
}
