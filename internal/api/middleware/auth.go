package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// PrincipalKey is the echo context key holding the authenticated domain.Principal.
const PrincipalKey = "principal"

// TokenVerifier is the part of the token issuer the middleware needs.
type TokenVerifier interface {
	Verify(token string, want domain.TokenType) (*domain.VerifiedToken, error)
}

// Auth validates the bearer access token and injects the caller as a
// domain.Principal. Refresh tokens are rejected.
func Auth(verifier TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			verified, err := verifier.Verify(parts[1], domain.TokenTypeAccess)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(PrincipalKey, domain.Principal{
				UserID:   verified.Claims.UserID,
				Username: verified.Claims.Username,
				Email:    verified.Claims.Email,
				IsStaff:  verified.Claims.IsStaff,
			})

			return next(c)
		}
	}
}
