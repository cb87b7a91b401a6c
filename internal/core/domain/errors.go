package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")
	ErrValidation         = errors.New("validation failed")
	ErrTokenInvalid       = errors.New("token is invalid or expired")
	ErrForbidden          = errors.New("access forbidden")
)
