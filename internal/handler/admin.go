package handler

import (
	"context"
	"net/http"

	"github.com/haatos/simple-cd/internal/store"
	"github.com/labstack/echo/v4"
)

type UserCountServicer interface {
	CountUsers(ctx context.Context) (int64, error)
}

type BuildCountServicer interface {
	CountBuilds(ctx context.Context) (int64, error)
	CountActiveBuilds(ctx context.Context) (int64, error)
}

func SetupAdminRoutes(g *echo.Group, userStore UserCountServicer, buildStore BuildCountServicer) {
	h := NewAdminHandler(userStore, buildStore)
	g.GET("/api/admin/stats", h.GetDashboardStats, IsAuthenticated, RoleMiddleware(store.Admin))
}

type AdminHandler struct {
	userStore  UserCountServicer
	buildStore BuildCountServicer
}

func NewAdminHandler(userStore UserCountServicer, buildStore BuildCountServicer) *AdminHandler {
	return &AdminHandler{userStore, buildStore}
}

// GetDashboardStats returns the counters the admin dashboard shows.
func (h *AdminHandler) GetDashboardStats(c echo.Context) error {
	users, err := h.userStore.CountUsers(c.Request().Context())
	if err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to read stats")
	}
	activeBuilds, err := h.buildStore.CountActiveBuilds(c.Request().Context())
	if err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to read stats")
	}
	totalBuilds, err := h.buildStore.CountBuilds(c.Request().Context())
	if err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to read stats")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"users":         users,
		"active_builds": activeBuilds,
		"total_builds":  totalBuilds,
	})
}
