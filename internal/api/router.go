package api

import (
	"sync"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/99minutos/identity-service/docs"
	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/api/middleware"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// Dependencies are the wired collaborators the HTTP layer serves.
type Dependencies struct {
	AuthService ports.AuthService
	Verifier    middleware.TokenVerifier
	Health      *handler.HealthDependenciesHandler
	Logger      zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Logger))
	e.Use(httpMetrics())

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(deps.AuthService)
	requireAuth := middleware.Auth(deps.Verifier)

	auth := e.Group("/api/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/simple-login", authHandler.SimpleLogin)
	auth.POST("/signup", authHandler.Signup)
	auth.POST("/token/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/me", authHandler.Me, requireAuth)
	auth.GET("/users", authHandler.ListUsers, requireAuth, middleware.RequireStaff(deps.AuthService))

	// --- Health probes (no auth required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness) // liveness  – is the process alive?
	if deps.Health != nil {
		e.GET("/health/ready", deps.Health.Readiness) // readiness – are Mongo and Redis up?
	}

	// --- Operations ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

var (
	httpMetricsOnce sync.Once
	httpMetricsMW   echo.MiddlewareFunc
)

// httpMetrics builds the request metrics middleware once; its collectors
// live in the default registry and cannot be registered twice.
func httpMetrics() echo.MiddlewareFunc {
	httpMetricsOnce.Do(func() {
		httpMetricsMW = echoprometheus.NewMiddleware("identity")
	})
	return httpMetricsMW
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Status >= 500 {
				evt = log.Error().Err(v.Error)
			}
			evt.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
