package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

const (
	flowCredentialed = "credentialed"
	flowSimple       = "simple"
)

// AuthService resolves login requests to exactly one user, applies the
// first-login bootstrap rules and hands the user to the token issuer.
type AuthService struct {
	users    ports.UserRepository
	tokens   ports.TokenIssuer
	hasher   ports.PasswordHasher
	denylist ports.TokenDenylist
	activity ports.ActivityRecorder
	logger   zerolog.Logger
	now      func() time.Time
}

func NewAuthService(
	users ports.UserRepository,
	tokens ports.TokenIssuer,
	hasher ports.PasswordHasher,
	denylist ports.TokenDenylist,
	activity ports.ActivityRecorder,
	logger zerolog.Logger,
) *AuthService {
	if activity == nil {
		activity = discardRecorder{}
	}
	return &AuthService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		denylist: denylist,
		activity: activity,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates identifier (an email or a username) with secret.
//
// The identifier is resolved by email first, then by username. When it
// resolves to a user that has never had a credential, a non-empty secret is
// stored as that user's credential before validation. Validation always runs
// against the resolved user's username; an unresolved identifier is passed
// through unchanged and fails validation.
func (s *AuthService) Login(ctx context.Context, identifier, secret string) (*ports.LoginResult, error) {
	resolved, err := s.resolveIdentifier(ctx, identifier)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(flowCredentialed, "error").Inc()
		return nil, err
	}

	username := identifier
	if resolved != nil {
		if secret != "" && !resolved.HasUsableCredential() {
			if err := s.bootstrapCredential(ctx, resolved, secret); err != nil {
				metrics.LoginsTotal.WithLabelValues(flowCredentialed, "error").Inc()
				return nil, err
			}
		}
		username = resolved.Username
	}

	user, err := s.authenticate(ctx, username, secret)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues(flowCredentialed, "invalid_credentials").Inc()
			s.record(domain.EventLoginFailed, username, identifier)
		} else {
			metrics.LoginsTotal.WithLabelValues(flowCredentialed, "error").Inc()
		}
		return nil, err
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		metrics.LoginsTotal.WithLabelValues(flowCredentialed, "error").Inc()
		return nil, fmt.Errorf("login: %w", err)
	}
	user.LastLogin = &now

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(flowCredentialed, "error").Inc()
		return nil, fmt.Errorf("login: issue tokens: %w", err)
	}

	metrics.LoginsTotal.WithLabelValues(flowCredentialed, "success").Inc()
	s.record(domain.EventLoginSucceeded, user.Username, identifier)
	s.logger.Debug().Str("username", user.Username).Msg("credentialed login succeeded")

	return &ports.LoginResult{Tokens: pair, User: user}, nil
}

// SimpleLogin finds or provisions the account keyed by the supplied email
// and issues tokens without checking any credential.
func (s *AuthService) SimpleLogin(ctx context.Context, in ports.SimpleLoginInput) (*ports.LoginResult, error) {
	if in.Email == "" || !in.Role.Valid() {
		metrics.LoginsTotal.WithLabelValues(flowSimple, "validation_error").Inc()
		return nil, fmt.Errorf("%w: email and role are required", domain.ErrValidation)
	}

	now := s.now()
	user, err := s.findOrProvision(ctx, in.Email, now)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(flowSimple, "error").Inc()
		return nil, err
	}

	if in.Name != "" {
		user.ApplyDisplayName(in.Name)
	}
	if user.Email == "" {
		user.Email = in.Email
	}
	if in.Role == domain.RoleAdmin && !user.IsStaff {
		// Staff is only ever granted here, never revoked.
		user.IsStaff = true
		s.record(domain.EventStaffGranted, user.Username, in.Email)
		s.logger.Info().Str("username", user.Username).Msg("staff granted via simple login")
	}
	user.LastLogin = &now

	if err := s.users.Save(ctx, user); err != nil {
		metrics.LoginsTotal.WithLabelValues(flowSimple, "error").Inc()
		return nil, fmt.Errorf("simple login: save user: %w", err)
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues(flowSimple, "error").Inc()
		return nil, fmt.Errorf("simple login: issue tokens: %w", err)
	}

	metrics.LoginsTotal.WithLabelValues(flowSimple, "success").Inc()
	s.record(domain.EventSimpleLogin, user.Username, in.Email)

	return &ports.LoginResult{Tokens: pair, User: user}, nil
}

// Signup creates a credentialed account.
func (s *AuthService) Signup(ctx context.Context, in ports.SignupInput) (*domain.User, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", domain.ErrValidation)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	created, err := s.users.Create(ctx, &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		DateJoined:   s.now(),
	})
	if err != nil {
		return nil, err
	}

	metrics.UsersProvisionedTotal.WithLabelValues("signup").Inc()
	s.record(domain.EventUserSignedUp, created.Username, in.Email)
	s.logger.Info().Str("username", created.Username).Msg("user signed up")

	return created, nil
}

// Me returns the current record of the authenticated caller.
func (s *AuthService) Me(ctx context.Context, principal domain.Principal) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", domain.ErrTokenInvalid)
		}
		return nil, err
	}
	return user, nil
}

// ListUsers returns every account. Only staff may call it; staff status is
// checked against the stored record, not the token snapshot.
func (s *AuthService) ListUsers(ctx context.Context, principal domain.Principal) ([]*domain.User, error) {
	caller, err := s.Me(ctx, principal)
	if err != nil {
		return nil, err
	}
	if !caller.IsStaff {
		return nil, domain.ErrForbidden
	}
	return s.users.List(ctx)
}

// Refresh exchanges a valid, non-revoked refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	verified, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	user, err := s.users.FindByID(ctx, verified.Claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", fmt.Errorf("%w: user no longer exists", domain.ErrTokenInvalid)
		}
		return "", err
	}

	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return "", fmt.Errorf("refresh: issue access token: %w", err)
	}
	return access, nil
}

// Logout revokes a refresh token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	verified, err := s.verifyRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	if err := s.denylist.Revoke(ctx, verified.ID, verified.ExpiresAt); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.record(domain.EventRefreshTokenRevoked, verified.Claims.Username, "")
	return nil
}

// resolveIdentifier looks identifier up by email, then by username. A miss
// on both is a normal outcome and yields (nil, nil).
func (s *AuthService) resolveIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	if identifier == "" {
		return nil, nil
	}

	user, err := s.users.FindByEmail(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("resolve identifier: %w", err)
	}

	user, err = s.users.FindByUsername(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("resolve identifier: %w", err)
}

// bootstrapCredential sets secret as the user's first credential. The store
// write is conditional, so a concurrent bootstrap that lands first wins and
// this login is then validated against the winner's credential.
func (s *AuthService) bootstrapCredential(ctx context.Context, user *domain.User, secret string) error {
	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return err
	}

	applied, err := s.users.SetCredentialIfUnusable(ctx, user.ID, hash)
	if err != nil {
		return fmt.Errorf("bootstrap credential: %w", err)
	}
	if !applied {
		metrics.CredentialBootstrapsTotal.WithLabelValues("lost_race").Inc()
		return nil
	}

	metrics.CredentialBootstrapsTotal.WithLabelValues("applied").Inc()
	s.record(domain.EventCredentialBootstrap, user.Username, "")
	s.logger.Info().Str("username", user.Username).Msg("credential bootstrapped on first login")
	return nil
}

// authenticate is the standard username/secret validation.
func (s *AuthService) authenticate(ctx context.Context, username, secret string) (*domain.User, error) {
	if username == "" || secret == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if !user.HasUsableCredential() {
		return nil, domain.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, secret); err != nil {
		return nil, err
	}
	return user, nil
}

// findOrProvision returns the account whose username is email, creating it
// when absent. A unique-violation from a concurrent insert means another
// request created it first, so the record is re-fetched.
func (s *AuthService) findOrProvision(ctx context.Context, email string, now time.Time) (*domain.User, error) {
	user, created, err := s.users.FindOrCreateByUsername(ctx, &domain.User{
		Username:   email,
		Email:      email,
		DateJoined: now,
	})
	if errors.Is(err, domain.ErrUserExists) {
		user, err = s.users.FindByUsername(ctx, email)
		created = false
	}
	if err != nil {
		return nil, fmt.Errorf("simple login: provision user: %w", err)
	}

	if created {
		metrics.UsersProvisionedTotal.WithLabelValues("simple_login").Inc()
		s.record(domain.EventUserProvisioned, user.Username, email)
		s.logger.Info().Str("username", user.Username).Msg("user provisioned via simple login")
	}
	return user, nil
}

func (s *AuthService) verifyRefresh(ctx context.Context, refreshToken string) (*domain.VerifiedToken, error) {
	verified, err := s.tokens.Verify(refreshToken, domain.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	revoked, err := s.denylist.IsRevoked(ctx, verified.ID)
	if err != nil {
		return nil, fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: token has been revoked", domain.ErrTokenInvalid)
	}
	return verified, nil
}

func (s *AuthService) record(kind domain.AuthEventKind, username, identifier string) {
	s.activity.Record(domain.AuthEvent{
		Kind:       kind,
		Username:   username,
		Identifier: identifier,
		OccurredAt: s.now(),
	})
}

type discardRecorder struct{}

func (discardRecorder) Record(domain.AuthEvent) {}
