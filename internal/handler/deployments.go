package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/haatos/simple-cd/internal"
	"github.com/haatos/simple-cd/internal/service"
	"github.com/haatos/simple-cd/internal/store"
	"github.com/labstack/echo/v4"
)

type DeployServicer interface {
	StartDeployment(ctx context.Context, userID int64) (*store.Build, error)
	Redeploy(ctx context.Context, userID int64, buildID string) (*store.Build, error)
	Pause(buildID string) error
	Resume(buildID string) error
	Cancel(buildID string) error
}

func SetupDeployRoutes(
	g *echo.Group,
	deployService DeployServicer,
	clients *service.SSEClientMap[service.LogMessage],
) {
	h := NewDeployHandler(deployService, clients)
	g.POST("/api/deployments", h.PostDeployment, IsAuthenticated, RoleMiddleware(store.Admin))
	g.POST("/api/builds/:build_id/redeploy", h.PostRedeploy, IsAuthenticated, RoleMiddleware(store.Admin))
	g.POST("/api/builds/:build_id/pause", h.PostPause, IsAuthenticated, RoleMiddleware(store.Admin))
	g.POST("/api/builds/:build_id/resume", h.PostResume, IsAuthenticated, RoleMiddleware(store.Admin))
	g.POST("/api/builds/:build_id/cancel", h.PostCancel, IsAuthenticated, RoleMiddleware(store.Admin))
	g.GET("/api/deploy/logs/sse", h.GetDeployLogs, IsAuthenticated)
}

type DeployHandler struct {
	deployService DeployServicer
	clients       *service.SSEClientMap[service.LogMessage]
}

func NewDeployHandler(
	deployService DeployServicer,
	clients *service.SSEClientMap[service.LogMessage],
) *DeployHandler {
	return &DeployHandler{deployService, clients}
}

// deployError maps pipeline control errors to their status codes.
func deployError(c echo.Context, err error) error {
	switch err.(type) {
	case service.ErrNotFound:
		return newError(c, err, http.StatusNotFound, err.Error())
	case service.ErrAlreadyPaused, service.ErrNotPaused, service.ErrBuildRunning:
		return newError(c, err, http.StatusBadRequest, err.Error())
	case service.ErrDeploymentInProgress, service.ErrAlreadyRegistered:
		return newError(c, err, http.StatusConflict, err.Error())
	default:
		if errors.Is(err, sql.ErrNoRows) {
			return newError(c, err, http.StatusNotFound, "build not found")
		}
		return newError(c, err, http.StatusInternalServerError, "deployment request failed")
	}
}

func (h *DeployHandler) PostDeployment(c echo.Context) error {
	u := getCtxUser(c)
	b, err := h.deployService.StartDeployment(c.Request().Context(), u.UserID)
	if err != nil {
		return deployError(c, err)
	}
	return c.JSON(http.StatusAccepted, b)
}

func (h *DeployHandler) PostRedeploy(c echo.Context) error {
	bp := new(BuildParams)
	if err := c.Bind(bp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid build id")
	}
	u := getCtxUser(c)
	b, err := h.deployService.Redeploy(c.Request().Context(), u.UserID, bp.BuildID)
	if err != nil {
		return deployError(c, err)
	}
	return c.JSON(http.StatusAccepted, b)
}

func (h *DeployHandler) PostPause(c echo.Context) error {
	bp := new(BuildParams)
	if err := c.Bind(bp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid build id")
	}
	if err := h.deployService.Pause(bp.BuildID); err != nil {
		return deployError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "paused"})
}

func (h *DeployHandler) PostResume(c echo.Context) error {
	bp := new(BuildParams)
	if err := c.Bind(bp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid build id")
	}
	if err := h.deployService.Resume(bp.BuildID); err != nil {
		return deployError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "resumed"})
}

func (h *DeployHandler) PostCancel(c echo.Context) error {
	bp := new(BuildParams)
	if err := c.Bind(bp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid build id")
	}
	if err := h.deployService.Cancel(bp.BuildID); err != nil {
		return deployError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "cancelled"})
}

// GetDeployLogs streams pipeline output lines over SSE until the
// client disconnects.
func (h *DeployHandler) GetDeployLogs(c echo.Context) error {
	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id := uuid.NewString()
	ch := h.clients.AddClient(id)
	defer h.clients.RemoveClient(id)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.Request().Context().Done():
			// client disconnected
			return nil
		case msg := <-ch:
			data, err := json.Marshal(msg)
			if err != nil {
				log.Println("err marshaling event data:", err)
				continue
			}
			event := &Event{
				ID:    []byte(msg.BuildID),
				Event: []byte(internal.DeployLogEvent),
				Data:  data,
			}
			if err := event.MarshalTo(w); err != nil {
				log.Println("err marshaling event data:", err)
			}
			w.Flush()
		case <-ticker.C:
			// keep the connection from idling out
			event := &Event{Comment: []byte("keepalive")}
			if err := event.MarshalTo(w); err != nil {
				log.Println("err marshaling event data:", err)
			}
			w.Flush()
		}
	}
}
