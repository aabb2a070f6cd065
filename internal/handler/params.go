package handler

import "github.com/haatos/simple-cd/internal/store"

type LoginParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserParams struct {
	UserID          int64      `param:"user_id"`
	UserRoleID      store.Role `json:"user_role_id"`
	Username        string     `json:"username"`
	Password        string     `json:"password"`
	PasswordConfirm string     `json:"password_confirm"`
}

type PatchUserParams struct {
	UserID int64      `param:"user_id"`
	RoleID store.Role `json:"role_id"`
}

type PatchUserPasswordParams struct {
	UserID          int64  `param:"user_id"`
	OldPassword     string `json:"old_password"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

type CredentialParams struct {
	CredentialID  int64  `param:"credential_id"`
	Username      string `json:"username"`
	Description   string `json:"description"`
	SSHPrivateKey string `json:"ssh_private_key"`
	SudoPassword  string `json:"sudo_password"`
}

type BuildParams struct {
	BuildID string `param:"build_id"`
}

type ListBuildsParams struct {
	Page int64 `query:"page"`
}

type ConfigEntryParams struct {
	Key   string `param:"config_key" json:"config_key"`
	Value string `json:"config_value"`
}

type AuditLogParams struct {
	AuditLogID int64 `param:"log_id"`
}

type ListAuditLogsParams struct {
	Page int64 `query:"page"`
}
