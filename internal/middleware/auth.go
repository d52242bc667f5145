package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/auth_service/pkg/tokens"
)

const CtxUserID = "user_id"

// Gate validates access tokens on protected paths and annotates the request
// with the verified subject. Paths under a public prefix pass through
// untouched. Every rejection is the same generic 401; which check failed is
// never revealed.
type Gate struct {
	Codec          *tokens.Codec
	PublicPrefixes []string
}

func NewGate(codec *tokens.Codec, publicPrefixes []string) *Gate {
	return &Gate{Codec: codec, PublicPrefixes: publicPrefixes}
}

func (g *Gate) isPublic(path string) bool {
	for _, prefix := range g.PublicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// extractToken prefers the access cookie, falling back to a bearer header.
func extractToken(c echo.Context) string {
	if cookie, err := c.Cookie("accessToken"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return after
	}
	return ""
}

func (g *Gate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if g.isPublic(c.Request().URL.Path) {
				return next(c)
			}

			tokenStr := extractToken(c)
			if tokenStr == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			subject, err := g.Codec.VerifyAccess(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			c.Set(CtxUserID, subject)
			c.Request().Header.Set("X-User-Id", subject)

			return next(c)
		}
	}
}
