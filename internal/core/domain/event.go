package domain

import "time"

// AuthEventKind enumerates the authentication activity we audit.
type AuthEventKind string

const (
	EventLoginSucceeded      AuthEventKind = "login_succeeded"
	EventLoginFailed         AuthEventKind = "login_failed"
	EventSimpleLogin         AuthEventKind = "simple_login"
	EventUserProvisioned     AuthEventKind = "user_provisioned"
	EventCredentialBootstrap AuthEventKind = "credential_bootstrapped"
	EventStaffGranted        AuthEventKind = "staff_granted"
	EventUserSignedUp        AuthEventKind = "user_signed_up"
	EventRefreshTokenRevoked AuthEventKind = "refresh_token_revoked"
)

// AuthEvent records one authentication-related fact for the audit trail.
type AuthEvent struct {
	Kind       AuthEventKind
	Username   string
	Identifier string // raw identifier supplied by the caller, when relevant
	OccurredAt time.Time
}
