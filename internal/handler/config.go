package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/haatos/simple-cd/internal/store"
	"github.com/labstack/echo/v4"
)

type CredentialServicer interface {
	CreateCredential(ctx context.Context, username, description, sshPrivateKey, sudoPassword string) (*store.Credential, error)
	GetCredentialByID(ctx context.Context, credentialID int64) (*store.Credential, error)
	UpdateCredential(ctx context.Context, credentialID int64, username, description, sshPrivateKey, sudoPassword string) error
	DeleteCredential(ctx context.Context, credentialID int64) error
}

func SetupConfigRoutes(
	g *echo.Group,
	kvStore *store.KeyValueStore,
	credentialService CredentialServicer,
) {
	h := NewConfigHandler(kvStore, credentialService)
	g.GET("/api/config", h.GetConfig, IsAuthenticated, RoleMiddleware(store.Admin))
	g.PUT("/api/config/:config_key", h.PutConfigEntry, IsAuthenticated, RoleMiddleware(store.Admin))
	g.DELETE("/api/config/:config_key", h.DeleteConfigEntry, IsAuthenticated, RoleMiddleware(store.Admin))
	g.POST("/api/credentials", h.PostCredential, IsAuthenticated, RoleMiddleware(store.Admin))
	g.PUT("/api/credentials/:credential_id", h.PutCredential, IsAuthenticated, RoleMiddleware(store.Admin))
	g.DELETE("/api/credentials/:credential_id", h.DeleteCredential, IsAuthenticated, RoleMiddleware(store.Admin))
}

type ConfigHandler struct {
	kvStore           *store.KeyValueStore
	credentialService CredentialServicer
}

func NewConfigHandler(
	kvStore *store.KeyValueStore,
	credentialService CredentialServicer,
) *ConfigHandler {
	return &ConfigHandler{kvStore, credentialService}
}

func (h *ConfigHandler) GetConfig(c echo.Context) error {
	entries, err := h.kvStore.List(c.Request().Context())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newError(c, err, http.StatusInternalServerError, "unable to list config")
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *ConfigHandler) PutConfigEntry(c echo.Context) error {
	cp := new(ConfigEntryParams)
	if err := c.Bind(cp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid config data")
	}
	if cp.Key == "" {
		return newError(c, nil, http.StatusBadRequest, "config key is required")
	}
	if err := h.kvStore.Set(c.Request().Context(), cp.Key, cp.Value, nil); err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to store config entry")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ConfigHandler) DeleteConfigEntry(c echo.Context) error {
	cp := new(ConfigEntryParams)
	if err := c.Bind(cp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid config data")
	}
	if err := h.kvStore.Delete(c.Request().Context(), cp.Key); err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to delete config entry")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ConfigHandler) PostCredential(c echo.Context) error {
	cp := new(CredentialParams)
	if err := c.Bind(cp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid credential data")
	}
	if cp.Username == "" || cp.SSHPrivateKey == "" {
		return newError(c, nil, http.StatusBadRequest, "username and ssh private key are required")
	}

	cred, err := h.credentialService.CreateCredential(
		c.Request().Context(), cp.Username, cp.Description, cp.SSHPrivateKey, cp.SudoPassword,
	)
	if err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to create credential")
	}
	return c.JSON(http.StatusCreated, cred)
}

func (h *ConfigHandler) PutCredential(c echo.Context) error {
	cp := new(CredentialParams)
	if err := c.Bind(cp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid credential data")
	}
	if _, err := h.credentialService.GetCredentialByID(c.Request().Context(), cp.CredentialID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(c, err, http.StatusNotFound, "credential not found")
		}
		return newError(c, err, http.StatusInternalServerError, "unable to read credential")
	}

	if err := h.credentialService.UpdateCredential(
		c.Request().Context(), cp.CredentialID, cp.Username, cp.Description, cp.SSHPrivateKey, cp.SudoPassword,
	); err != nil {
		return newError(c, err, http.StatusInternalServerError, "unable to update credential")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ConfigHandler) DeleteCredential(c echo.Context) error {
	cp := new(CredentialParams)
	if err := c.Bind(cp); err != nil {
		return newError(c, err, http.StatusBadRequest, "invalid credential data")
	}
	if err := h.credentialService.DeleteCredential(c.Request().Context(), cp.CredentialID); err != nil {
		if isForeignKeyConstraintError(err) {
			return newError(c, err, http.StatusConflict, "credential is in use")
		}
		return newError(c, err, http.StatusInternalServerError, "unable to delete credential")
	}
	return c.NoContent(http.StatusNoContent)
}
