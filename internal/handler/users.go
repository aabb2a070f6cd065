package handler

import (
	"context"
	"net/http"

	"github.com/haatos/simple-cd/internal/store"
	"github.com/labstack/echo/v4"
)

type UserServicer interface {
	CreateUser(ctx context.Context, userRoleID store.Role, username, password string) (*store.User, error)
	GetUserByID(ctx context.Context, userID int64) (*store.User, error)
	ListUsers(ctx context.Context) ([]*store.User, error)
	UpdateUserRole(ctx context.Context, userID int64, role store.Role) error
	ChangeUserPassword(ctx context.Context, userID int64, oldPassword, newPassword string) error
	ResetUserPassword(ctx context.Context, userID int64, newPassword string) error
	DeleteUser(ctx context.Context, u *store.User) error
}

func SetupUserRoutes(g *echo.Group, userService UserServicer) {
	h := NewUserHandler(userService)
	g.GET("/api/users", h.GetUsers, IsAuthenticated, RoleMiddleware(store.Admin))
	g.POST("/api/users", h.PostUser, IsAuthenticated, RoleMiddleware(store.Admin))
	g.PATCH("/api/users/:user_id/role", h.PatchUserRole, IsAuthenticated, RoleMiddleware(store.Admin))
	g.PATCH("/api/users/:user_id/password", h.PatchUserPassword, IsAuthenticated)
	g.POST("/api/users/:user_id/password/reset", h.PostResetUserPassword, IsAuthenticated, RoleMiddleware(store.Admin))
	g.DELETE("/api/users/:user_id", h.DeleteUser, IsAuthenticated, RoleMiddleware(store.Admin))
}

type UserHandler struct {
	userService UserServicer
}

func NewUserHandler(userService UserServicer) *UserHandler {
	return &UserHandler{userService}
}

func (h *UserHandler) GetUsers(c echo.Context) error {
	users, err := h.userService.ListUsers(c.Request().Context())
	if err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to list users")
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) PostUser(c echo.Context) error {
	up := new(UserParams)
	if err := c.Bind(up); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid user data")
	}
	if up.Username == "" || up.Password == "" {
		return newError(c, nil, http.StatusBadRequest, "username and password are required")
	}
	if up.UserRoleID >= store.Superuser {
		return newError(c, nil, http.StatusBadRequest, "invalid role")
	}
	if up.UserRoleID == 0 {
		up.UserRoleID = store.Operator
	}

	u, err := h.userService.CreateUser(
		c.Request().Context(), up.UserRoleID, up.Username, up.Password,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return newError(c, err, http.StatusConflict, "username is taken")
		}
		return newError(c, err, http.StatusInternalServerError, "unable to create user")
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *UserHandler) PatchUserRole(c echo.Context) error {
	pp := new(PatchUserParams)
	if err := c.Bind(pp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid user data")
	}
	if pp.RoleID >= store.Superuser {
		return newError(c, nil, http.StatusBadRequest, "invalid role")
	}

	target, err := h.userService.GetUserByID(c.Request().Context(), pp.UserID)
	if err != nil {
		return newError(c, err, http.StatusNotFound, "user not found")
	}
	if target.IsSuperuser() {
		return newError(c, nil, http.StatusBadRequest, "cannot change superuser's role")
	}

	if err := h.userService.UpdateUserRole(c.Request().Context(), pp.UserID, pp.RoleID); err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to update role")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) PatchUserPassword(c echo.Context) error {
	pp := new(PatchUserPasswordParams)
	if err := c.Bind(pp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid user data")
	}
	u := getCtxUser(c)
	if u.UserID != pp.UserID {
		return newError(c, nil, http.StatusForbidden, "invalid permissions")
	}
	if pp.Password != pp.PasswordConfirm {
		return newError(c, nil, http.StatusBadRequest, "passwords do not match")
	}

	if err := h.userService.ChangeUserPassword(
		c.Request().Context(), pp.UserID, pp.OldPassword, pp.Password,
	); err != nil {
		return newError(c, err, http.StatusBadRequest, "unable to change password")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) PostResetUserPassword(c echo.Context) error {
	pp := new(PatchUserPasswordParams)
	if err := c.Bind(pp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid user data")
	}
	if pp.Password != pp.PasswordConfirm {
		return newError(c, nil, http.StatusBadRequest, "passwords do not match")
	}

	if err := h.userService.ResetUserPassword(
		c.Request().Context(), pp.UserID, pp.Password,
	); err != nil {
		return newError(c, err, http.StatusBadRequest, "unable to reset password")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *UserHandler) DeleteUser(c echo.Context) error {
	up := new(UserParams)
	if err := c.Bind(up); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid user data")
	}

	target, err := h.userService.GetUserByID(c.Request().Context(), up.UserID)
	if err != nil {
		return newError(c, err, http.StatusNotFound, "user not found")
	}
	if target.IsSuperuser() {
		return newError(c, nil, http.StatusBadRequest, "cannot delete superuser")
	}

	if err := h.userService.DeleteUser(c.Request().Context(), target); err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to delete user")
	}
	return c.NoContent(http.StatusNoContent)
}
