package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/middleware"
)

// PublicPrefixes lists the path prefixes the gate lets through unauthenticated.
var PublicPrefixes = []string{
	"/register",
	"/login",
	"/refresh",
	"/logout",
	"/forgot-password",
	"/reset-password",
	"/verify-email",
	"/health",
}

type Deps struct {
	AuthHandler *AuthHTTP
	Gate        *middleware.Gate
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.Use(d.Gate.Middleware())

	e.POST("/register", d.AuthHandler.Register)
	e.POST("/login", d.AuthHandler.Login)
	e.POST("/refresh", d.AuthHandler.Refresh)
	e.POST("/logout", d.AuthHandler.LogOut)
	e.POST("/forgot-password", d.AuthHandler.ForgotPassword)
	e.POST("/reset-password", d.AuthHandler.ResetPassword)
	e.GET("/verify-email", d.AuthHandler.VerifyEmail)

	e.GET("/me", d.AuthHandler.Me)
}
