package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/haatos/simple-cd/internal/store"
	"github.com/labstack/echo/v4"
)

const maxBuildsPerPage = 20

type BuildReadServicer interface {
	ReadBuildByID(ctx context.Context, buildID string) (*store.Build, error)
	ReadDeployedBuild(ctx context.Context) (*store.Build, error)
	ListBuildsPaginated(ctx context.Context, limit, offset int64) ([]store.Build, error)
	ListUserBuildsPaginated(ctx context.Context, userID, limit, offset int64) ([]store.Build, error)
	CountBuilds(ctx context.Context) (int64, error)
	CountUserBuilds(ctx context.Context, userID int64) (int64, error)
	ListBuildLogs(ctx context.Context, buildID string) ([]store.BuildLog, error)
}

type BuildDeleteServicer interface {
	DeleteBuild(ctx context.Context, buildID string) error
}

func SetupBuildRoutes(
	g *echo.Group,
	buildStore BuildReadServicer,
	deployService BuildDeleteServicer,
) {
	h := NewBuildHandler(buildStore, deployService)
	g.GET("/api/builds", h.GetBuilds, IsAuthenticated)
	g.GET("/api/builds/deployed", h.GetDeployedBuild, IsAuthenticated)
	g.GET("/api/builds/:build_id", h.GetBuild, IsAuthenticated)
	g.GET("/api/builds/:build_id/logs", h.GetBuildLogs, IsAuthenticated)
	g.DELETE("/api/builds/:build_id", h.DeleteBuild, IsAuthenticated, RoleMiddleware(store.Admin))
}

type BuildHandler struct {
	buildStore    BuildReadServicer
	deployService BuildDeleteServicer
}

func NewBuildHandler(
	buildStore BuildReadServicer,
	deployService BuildDeleteServicer,
) *BuildHandler {
	return &BuildHandler{buildStore, deployService}
}

// GetBuilds lists builds newest first. Operators see only their own
// builds; admins see everything.
func (h *BuildHandler) GetBuilds(c echo.Context) error {
	lp := new(ListBuildsParams)
	if err := c.Bind(lp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid page")
	}
	if lp.Page < 1 {
		lp.Page = 1
	}
	offset := (lp.Page - 1) * maxBuildsPerPage

	u := getCtxUser(c)
	var (
		builds []store.Build
		total  int64
		err    error
	)
	if u.IsAdmin() {
		builds, err = h.buildStore.ListBuildsPaginated(c.Request().Context(), maxBuildsPerPage, offset)
		if err == nil {
			total, err = h.buildStore.CountBuilds(c.Request().Context())
		}
	} else {
		builds, err = h.buildStore.ListUserBuildsPaginated(
			c.Request().Context(), u.UserID, maxBuildsPerPage, offset,
		)
		if err == nil {
			total, err = h.buildStore.CountUserBuilds(c.Request().Context(), u.UserID)
		}
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newError(c, err, http.StatusInternalServerError, "unable to list builds")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"builds": builds,
		"page":   lp.Page,
		"total":  total,
	})
}

func (h *BuildHandler) GetDeployedBuild(c echo.Context) error {
	b, err := h.buildStore.ReadDeployedBuild(c.Request().Context())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(c, err, http.StatusNotFound, "nothing is deployed")
		}
		return newError(c, err, http.StatusInternalServerError, "unable to read deployed build")
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BuildHandler) GetBuild(c echo.Context) error {
	bp := new(BuildParams)
	if err := c.Bind(bp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid build id")
	}

	b, err := h.buildStore.ReadBuildByID(c.Request().Context(), bp.BuildID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(c, err, http.StatusNotFound, "build not found")
		}
		return newError(c, err, http.StatusInternalServerError, "unable to read build")
	}

	u := getCtxUser(c)
	if !u.IsAdmin() && b.BuildUserID != u.UserID {
		return newError(c, nil, http.StatusForbidden, "invalid permissions")
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BuildHandler) GetBuildLogs(c echo.Context) error {
	bp := new(BuildParams)
	if err := c.Bind(bp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid build id")
	}

	b, err := h.buildStore.ReadBuildByID(c.Request().Context(), bp.BuildID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(c, err, http.StatusNotFound, "build not found")
		}
		return newError(c, err, http.StatusInternalServerError, "unable to read build")
	}

	u := getCtxUser(c)
	if !u.IsAdmin() && b.BuildUserID != u.UserID {
		return newError(c, nil, http.StatusForbidden, "invalid permissions")
	}

	logs, err := h.buildStore.ListBuildLogs(c.Request().Context(), bp.BuildID)
	if err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to list build logs")
	}
	return c.JSON(http.StatusOK, logs)
}

func (h *BuildHandler) DeleteBuild(c echo.Context) error {
	bp := new(BuildParams)
	if err := c.Bind(bp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid build id")
	}
	if err := h.deployService.DeleteBuild(c.Request().Context(), bp.BuildID); err != nil {
		return deployError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
