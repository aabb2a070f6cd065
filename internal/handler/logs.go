package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/haatos/simple-cd/internal/store"
	"github.com/labstack/echo/v4"
)

const maxAuditLogsPerPage = 50

type AuditLogServicer interface {
	ListAuditLogsPaginated(ctx context.Context, limit, offset int64) ([]store.AuditLog, error)
	CountAuditLogs(ctx context.Context) (int64, error)
	DeleteAuditLog(ctx context.Context, auditLogID int64) error
	DeleteAllAuditLogs(ctx context.Context) error
}

func SetupAuditLogRoutes(g *echo.Group, auditStore AuditLogServicer) {
	h := NewAuditLogHandler(auditStore)
	g.GET("/api/logs", h.GetAuditLogs, IsAuthenticated, RoleMiddleware(store.Admin))
	g.GET("/api/logs/levels", h.GetAuditLogLevels, IsAuthenticated, RoleMiddleware(store.Admin))
	g.DELETE("/api/logs/:log_id", h.DeleteAuditLog, IsAuthenticated, RoleMiddleware(store.Admin))
	g.DELETE("/api/logs", h.DeleteAllAuditLogs, IsAuthenticated, RoleMiddleware(store.Admin))
}

type AuditLogHandler struct {
	auditStore AuditLogServicer
}

func NewAuditLogHandler(auditStore AuditLogServicer) *AuditLogHandler {
	return &AuditLogHandler{auditStore}
}

// GetAuditLogs lists panel events newest first.
func (h *AuditLogHandler) GetAuditLogs(c echo.Context) error {
	lp := new(ListAuditLogsParams)
	if err := c.Bind(lp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid page")
	}
	if lp.Page < 1 {
		lp.Page = 1
	}
	offset := (lp.Page - 1) * maxAuditLogsPerPage

	logs, err := h.auditStore.ListAuditLogsPaginated(c.Request().Context(), maxAuditLogsPerPage, offset)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newError(c, err, http.StatusInternalServerError, "unable to list logs")
	}
	total, err := h.auditStore.CountAuditLogs(c.Request().Context())
	if err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to list logs")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"logs":  logs,
		"page":  lp.Page,
		"total": total,
	})
}

func (h *AuditLogHandler) GetAuditLogLevels(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"levels": store.AuditLevels()})
}

func (h *AuditLogHandler) DeleteAuditLog(c echo.Context) error {
	lp := new(AuditLogParams)
	if err := c.Bind(lp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid log id")
	}
	if err := h.auditStore.DeleteAuditLog(c.Request().Context(), lp.AuditLogID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(c, err, http.StatusBadRequest, "log not found")
		}
		return newError(c, err, http.StatusInternalServerError, "unable to delete log")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuditLogHandler) DeleteAllAuditLogs(c echo.Context) error {
	if err := h.auditStore.DeleteAllAuditLogs(c.Request().Context()); err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to clear logs")
	}
	return c.NoContent(http.StatusNoContent)
}
