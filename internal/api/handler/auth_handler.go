package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login authenticates an email or username with a password and returns a token pair.
//
// @Summary      Credentialed login
// @Description  The identifier is resolved by email first, then by username. An account that has never had a password adopts the supplied one.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.authService.Login(c.Request().Context(), req.identifier(), req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, loginResponse{
		Access:  res.Tokens.AccessToken,
		Refresh: res.Tokens.RefreshToken,
		Claims:  toClaimsResponse(res.Tokens.Claims),
		User:    toUserResponse(res.User),
	})
}

// SimpleLogin finds or provisions the account for an email and returns a token pair.
//
// @Summary      Simple login
// @Description  No password is checked. The admin role grants staff status, which is never revoked. Unknown fields are ignored.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      simpleLoginRequest  true  "Email, role and optional display name"
// @Success      200   {object}  simpleLoginResponse
// @Failure      400   {object}  errorResponse
// @Router       /api/auth/simple-login [post]
func (h *AuthHandler) SimpleLogin(c echo.Context) error {
	var req simpleLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.authService.SimpleLogin(c.Request().Context(), ports.SimpleLoginInput{
		Email: req.Email,
		Role:  domain.Role(req.Role),
		Name:  req.Name,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, simpleLoginResponse{
		Access:  res.Tokens.AccessToken,
		Refresh: res.Tokens.RefreshToken,
		User:    toUserResponse(res.User),
	})
}

// Signup creates a new account with a password.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "New account"
// @Success      201   {object}  userResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.authService.Signup(c.Request().Context(), ports.SignupInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, toUserResponse(user))
}

// Refresh exchanges a refresh token for a new access token.
//
// @Summary      Refresh access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  true  "Refresh token"
// @Success      200   {object}  accessResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /api/auth/token/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	access, err := h.authService.Refresh(c.Request().Context(), req.Refresh)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, accessResponse{Access: access})
}

// Logout revokes a refresh token.
//
// @Summary      Log out
// @Tags         auth
// @Accept       json
// @Param        body  body  refreshRequest  true  "Refresh token to revoke"
// @Success      204
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	if err := h.authService.Logout(c.Request().Context(), req.Refresh); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated caller.
//
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200   {object}  userResponse
// @Failure      401   {object}  errorResponse
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}

	user, err := h.authService.Me(c.Request().Context(), principal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(user))
}

// ListUsers returns every account, most recently active first.
//
// @Summary      List users
// @Description  Staff status is read from the stored account, so grants apply to tokens already issued.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200   {array}   userResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /api/auth/users [get]
func (h *AuthHandler) ListUsers(c echo.Context) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}

	users, err := h.authService.ListUsers(c.Request().Context(), principal)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponses(users))
}
