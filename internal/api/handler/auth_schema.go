package handler

import "time"

type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password" validate:"required"`
}

// identifier picks the login identifier: identifier, else email, else username.
func (r loginRequest) identifier() string {
	switch {
	case r.Identifier != "":
		return r.Identifier
	case r.Email != "":
		return r.Email
	default:
		return r.Username
	}
}

// simpleLoginRequest names only the fields the flow reads; anything else the
// client sends (studentId, phone, ...) is dropped by the decoder.
type simpleLoginRequest struct {
	Email string `json:"email" validate:"required"`
	Role  string `json:"role"  validate:"required,oneof=student admin"`
	Name  string `json:"name"`
}

type signupRequest struct {
	Username  string `json:"username"   validate:"required,max=150"`
	Email     string `json:"email"      validate:"required,email"`
	Password  string `json:"password"   validate:"required,max=72"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name"`
}

type refreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type userResponse struct {
	ID         string     `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	IsStaff    bool       `json:"is_staff"`
	LastLogin  *time.Time `json:"last_login"`
	DateJoined time.Time  `json:"date_joined"`
}

type claimsResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsStaff  bool   `json:"is_staff"`
}

type loginResponse struct {
	Access  string         `json:"access"`
	Refresh string         `json:"refresh"`
	Claims  claimsResponse `json:"claims"`
	User    userResponse   `json:"user"`
}

type simpleLoginResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    userResponse `json:"user"`
}

type accessResponse struct {
	Access string `json:"access"`
}

// errorResponse mirrors the envelope rendered by the API error handler.
type errorResponse struct {
	Error string `json:"error"`
}
