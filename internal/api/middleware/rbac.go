package middleware

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// UserResolver loads the stored account behind a principal.
type UserResolver interface {
	Me(ctx context.Context, principal domain.Principal) (*domain.User, error)
}

// RequireStaff rejects callers whose stored account is not staff. The token
// claim is ignored so a grant or revocation applies to tokens already issued.
func RequireStaff(users UserResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := c.Get(PrincipalKey).(domain.Principal)
			if !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}

			user, err := users.Me(c.Request().Context(), p)
			if err != nil {
				return err
			}
			if !user.IsStaff {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
