package handler

import (
	"context"
	"net/http"

	"github.com/haatos/simple-cd/internal/store"
	"github.com/labstack/echo/v4"
)

type SessionUserServicer interface {
	GetUserBySessionID(ctx context.Context, sessionID string) (*store.User, error)
}

type SessionCookieServicer interface {
	GetSessionID(c echo.Context) (string, error)
}

// SessionMiddleware resolves the session cookie into a user and puts
// it on the request context. An invalid or expired session is not an
// error here; the user is simply anonymous.
func SessionMiddleware(
	userService SessionUserServicer,
	cookieService SessionCookieServicer,
) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sessionID, err := cookieService.GetSessionID(c)
			if err == nil && sessionID != "" {
				if u, err := userService.GetUserBySessionID(
					c.Request().Context(), sessionID,
				); err == nil {
					c.Set("user", u)
				}
			}
			return next(c)
		}
	}
}

func IsAuthenticated(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if getCtxUser(c) == nil {
			return newError(c, nil, http.StatusUnauthorized, "not logged in")
		}
		return next(c)
	}
}

func RoleMiddleware(requiredRole store.Role) func(next echo.HandlerFunc) echo.HandlerFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := getCtxUser(c)
			if u == nil || int64(u.UserRoleID) < int64(requiredRole) {
				return newError(c, nil, http.StatusForbidden, "invalid permissions")
			}
			return next(c)
		}
	}
}
