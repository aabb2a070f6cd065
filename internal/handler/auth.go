package handler

import (
	"context"
	"net/http"

	"github.com/haatos/simple-cd/internal/store"
	"github.com/labstack/echo/v4"
)

type AuthCookieServicer interface {
	SetSessionCookie(echo.Context, string) error
	RemoveSessionCookie(echo.Context)
}

type UserAuthServicer interface {
	CreateAuthSession(ctx context.Context, userID int64) (*store.AuthSession, error)
	GetUserByUsernameAndPassword(ctx context.Context, username, password string) (*store.User, error)
	Logout(ctx context.Context, userID int64) error
}

func SetupAuthRoutes(
	g *echo.Group,
	userService UserAuthServicer,
	cookieService AuthCookieServicer,
) {
	h := NewAuthHandler(userService, cookieService)
	g.POST("/api/auth/login", h.PostLogin)
	g.POST("/api/auth/logout", h.PostLogout, IsAuthenticated)
	g.GET("/api/auth/me", h.GetMe, IsAuthenticated)
}

type AuthHandler struct {
	userService   UserAuthServicer
	cookieService AuthCookieServicer
}

func NewAuthHandler(
	userService UserAuthServicer,
	cookieService AuthCookieServicer,
) *AuthHandler {
	return &AuthHandler{userService, cookieService}
}

func (h *AuthHandler) PostLogin(c echo.Context) error {
	lp := new(LoginParams)
	if err := c.Bind(lp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid login data")
	}

	u, err := h.userService.GetUserByUsernameAndPassword(
		c.Request().Context(),
		lp.Username,
		lp.Password,
	)
	if err != nil {
		return newError(c, err, http.StatusUnauthorized, "invalid username or password")
	}

	s, err := h.userService.CreateAuthSession(c.Request().Context(), u.UserID)
	if err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to create session")
	}

	if err := h.cookieService.SetSessionCookie(c, s.AuthSessionID); err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to set session cookie")
	}

	return c.JSON(http.StatusOK, u)
}

func (h *AuthHandler) PostLogout(c echo.Context) error {
	u := getCtxUser(c)
	if err := h.userService.Logout(c.Request().Context(), u.UserID); err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to log out")
	}
	h.cookieService.RemoveSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) GetMe(c echo.Context) error {
	return c.JSON(http.StatusOK, getCtxUser(c))
}
