package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mkravch/buyrate/internal/authz"
)

const (
	ctxUserID = "userID"
	ctxRole   = "role"
)

type Middleware struct {
	JWTSecret []byte
}

// RequireAuth rejects requests without a valid Bearer access token and puts
// the actor identity into the echo context.
func (m *Middleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided")
		}

		userID, role, err := ParseAccessToken(raw, m.JWTSecret)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
		}

		SetActor(c, userID, role)
		return next(c)
	}
}

func SetActor(c echo.Context, userID uint, role authz.Role) {
	c.Set(ctxUserID, userID)
	c.Set(ctxRole, role)
}

// Actor returns the authenticated identity placed by RequireAuth. ok is false
// on anonymous requests.
func Actor(c echo.Context) (userID uint, role authz.Role, ok bool) {
	userID, ok = c.Get(ctxUserID).(uint)
	if !ok {
		return 0, "", false
	}
	role, ok = c.Get(ctxRole).(authz.Role)
	return userID, role, ok
}
