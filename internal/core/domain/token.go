package domain

import "time"

// TokenType distinguishes access from refresh tokens inside the token_type claim.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the custom facts embedded in issued tokens. They mirror the
// user at issuance time and are not updated afterwards.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsStaff  bool   `json:"is_staff"`
}

// ClaimsFor snapshots the claim-bearing fields of u.
func ClaimsFor(u *User) Claims {
	return Claims{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		IsStaff:  u.IsStaff,
	}
}

// TokenPair is an access/refresh pair minted for one user.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	Claims       Claims
}

// VerifiedToken is the result of parsing and verifying a signed token.
type VerifiedToken struct {
	ID        string
	Type      TokenType
	Claims    Claims
	ExpiresAt time.Time
}
