package store

import "context"

// Credential holds the SSH identity used to reach the deployment
// target. Key material and the optional sudo password are stored
// AES-encrypted.
type Credential struct {
	CredentialID      int64  `json:"credential_id"`
	Username          string `json:"username"`
	Description       string `json:"description"`
	SSHPrivateKeyHash string `json:"-"`
	SudoPasswordHash  string `json:"-"`
}

type CredentialStore interface {
	CreateCredential(ctx context.Context, username, description, sshPrivateKeyHash, sudoPasswordHash string) (*Credential, error)
	ReadCredentialByID(ctx context.Context, credentialID int64) (*Credential, error)
	ReadDeployCredential(ctx context.Context) (*Credential, error)
	UpdateCredential(ctx context.Context, credentialID int64, username, description, sshPrivateKeyHash, sudoPasswordHash string) error
	DeleteCredential(ctx context.Context, credentialID int64) error
}
