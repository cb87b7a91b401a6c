// Package token mints and verifies the HS256 access/refresh tokens handed
// out after login.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/pkg/metrics"
)

const (
	DefaultAccessTTL  = 5 * time.Minute
	DefaultRefreshTTL = 24 * time.Hour
)

// Config controls token signing and lifetimes.
type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// claims is the signed payload: registered claims plus the user snapshot.
type claims struct {
	jwt.RegisteredClaims
	domain.Claims
	TokenType domain.TokenType `json:"token_type"`
}

// JWTIssuer implements ports.TokenIssuer.
type JWTIssuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewJWTIssuer(cfg Config) *JWTIssuer {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &JWTIssuer{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
}

// IssuePair mints an access and a refresh token carrying the same claims.
func (i *JWTIssuer) IssuePair(user *domain.User) (domain.TokenPair, error) {
	access, err := i.sign(user, domain.TokenTypeAccess, i.accessTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := i.sign(user, domain.TokenTypeRefresh, i.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		Claims:       domain.ClaimsFor(user),
	}, nil
}

func (i *JWTIssuer) IssueAccess(user *domain.User) (string, error) {
	return i.sign(user, domain.TokenTypeAccess, i.accessTTL)
}

// Verify parses token and checks signature, expiry, issuer and token type.
// Every failure is reported as domain.ErrTokenInvalid.
func (i *JWTIssuer) Verify(token string, want domain.TokenType) (*domain.VerifiedToken, error) {
	parsed := &claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	_, err := jwt.ParseWithClaims(token, parsed, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", domain.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	if parsed.TokenType != want {
		return nil, fmt.Errorf("%w: expected %s token", domain.ErrTokenInvalid, want)
	}
	if parsed.ID == "" || parsed.UserID == "" {
		return nil, fmt.Errorf("%w: missing claims", domain.ErrTokenInvalid)
	}

	return &domain.VerifiedToken{
		ID:        parsed.ID,
		Type:      parsed.TokenType,
		Claims:    parsed.Claims,
		ExpiresAt: parsed.ExpiresAt.Time,
	}, nil
}

func (i *JWTIssuer) sign(user *domain.User, typ domain.TokenType, ttl time.Duration) (string, error) {
	now := i.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Claims:    domain.ClaimsFor(user),
		TokenType: typ,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	metrics.TokensIssuedTotal.WithLabelValues(string(typ)).Inc()
	return signed, nil
}
