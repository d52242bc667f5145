package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/internal/events"
	"github.com/Skotchmaster/auth_service/internal/middleware"
	"github.com/Skotchmaster/auth_service/internal/service"
	"github.com/Skotchmaster/auth_service/pkg/logging"
	"github.com/Skotchmaster/auth_service/pkg/tokens"
)

type AuthHTTP struct {
	Svc      *service.AuthService
	Producer *events.Producer
}

func (h *AuthHTTP) publishEvent(ctx context.Context, key string, event map[string]interface{}) {
	if h.Producer == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(pubCtx, events.UserEventsTopic, key, event); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "error", err)
	}
}

func (h *AuthHTTP) setSessionCookies(c echo.Context, res *service.LoginResult) {
	c.SetCookie(CreateCookie("accessToken", res.AccessToken, "/", res.AccessExp))
	c.SetCookie(CreateCookie("refreshToken", res.RefreshToken, "/", res.RefreshExp))
}

func clearSessionCookies(c echo.Context) {
	c.SetCookie(DeleteCookie("accessToken", "/"))
	c.SetCookie(DeleteCookie("refreshToken", "/"))
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
		case errors.Is(err, service.ErrDuplicateAccount):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			l.Error("register_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	h.publishEvent(ctx, user.ID.String(), map[string]interface{}{
		"type":     "user_registered",
		"user_id":  user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "user registered successfully",
		"user":    user,
	})
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	res, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
		case errors.Is(err, service.ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
		case errors.Is(err, service.ErrEmailNotVerified):
			return echo.NewHTTPError(http.StatusForbidden, "email not verified")
		default:
			l.Error("login_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	h.setSessionCookies(c, res)
	h.publishEvent(ctx, req.Email, map[string]interface{}{
		"type": "user_logged_in",
	})

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  res.AccessToken,
		"refresh_token": res.RefreshToken,
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	refreshCookie, err := c.Cookie("refreshToken")
	if err != nil || refreshCookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	res, err := h.Svc.Refresh(ctx, refreshCookie.Value)
	if err != nil {
		// Any refresh failure forces a logout.
		clearSessionCookies(c)
		switch {
		case errors.Is(err, service.ErrInvalidRefreshToken),
			errors.Is(err, tokens.ErrInvalidToken),
			errors.Is(err, tokens.ErrExpiredToken):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired refresh token")
		default:
			l.Error("refresh_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	h.setSessionCookies(c, res)
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  res.AccessToken,
		"refresh_token": res.RefreshToken,
	})
}

func (h *AuthHTTP) LogOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if refreshCookie, err := c.Cookie("refreshToken"); err == nil {
		_ = h.Svc.LogOut(ctx, refreshCookie.Value)
	}
	clearSessionCookies(c)

	l.Info("logged_out")
	return c.JSON(http.StatusOK, echo.Map{
		"message": "logged out",
	})
}

func (h *AuthHTTP) ForgotPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_forgot_password")

	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.RequestPasswordReset(ctx, req.Email); err != nil {
		if errors.Is(err, service.ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
		}
		l.Error("forgot_password_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "if the email exists, a reset link has been sent",
	})
}

func (h *AuthHTTP) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_reset_password")

	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if err := h.Svc.ResetPassword(ctx, req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
		case errors.Is(err, service.ErrInvalidOrExpiredToken):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
		default:
			l.Error("reset_password_failed", "status", 500, "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "password reset successful",
	})
}

func (h *AuthHTTP) VerifyEmail(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_verify_email")

	token := c.QueryParam("token")
	if token == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token missing")
	}

	if err := h.Svc.VerifyEmail(ctx, token); err != nil {
		if errors.Is(err, service.ErrInvalidOrExpiredToken) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
		}
		l.Error("verify_email_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "email verified successfully",
	})
}

func (h *AuthHTTP) Me(c echo.Context) error {
	ctx := c.Request().Context()

	subject, _ := c.Get(middleware.CtxUserID).(string)
	if subject == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	user, err := h.Svc.Me(ctx, subject)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user": user,
	})
}
