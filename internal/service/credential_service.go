package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/haatos/simple-cd/internal/security"
	"github.com/haatos/simple-cd/internal/store"
)

// DeployCredential is a decrypted ssh identity, held in memory only
// for the duration of one pipeline run.
type DeployCredential struct {
	Username     string
	PrivateKey   []byte
	SudoPassword string
}

type CredentialService struct {
	credentialStore store.CredentialStore
	encrypter       security.Encrypter
}

func NewCredentialService(
	s store.CredentialStore,
	encrypter security.Encrypter,
) *CredentialService {
	return &CredentialService{credentialStore: s, encrypter: encrypter}
}

func (s *CredentialService) CreateCredential(
	ctx context.Context,
	username, description, sshPrivateKey, sudoPassword string,
) (*store.Credential, error) {
	keyHash := s.encrypter.EncryptAES(sshPrivateKey)
	sudoHash := ""
	if sudoPassword != "" {
		sudoHash = s.encrypter.EncryptAES(sudoPassword)
	}
	return s.credentialStore.CreateCredential(ctx, username, description, keyHash, sudoHash)
}

func (s *CredentialService) GetCredentialByID(
	ctx context.Context,
	credentialID int64,
) (*store.Credential, error) {
	return s.credentialStore.ReadCredentialByID(ctx, credentialID)
}

// GetDeployCredential reads and decrypts the credential used to reach
// the deployment target.
func (s *CredentialService) GetDeployCredential(ctx context.Context) (*DeployCredential, error) {
	c, err := s.credentialStore.ReadDeployCredential(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("no deploy credential configured")
		}
		return nil, err
	}
	key, err := s.encrypter.DecryptAES(c.SSHPrivateKeyHash)
	if err != nil {
		return nil, err
	}
	dc := &DeployCredential{Username: c.Username, PrivateKey: key}
	if c.SudoPasswordHash != "" {
		sudo, err := s.encrypter.DecryptAES(c.SudoPasswordHash)
		if err != nil {
			return nil, err
		}
		dc.SudoPassword = string(sudo)
	}
	return dc, nil
}

func (s *CredentialService) UpdateCredential(
	ctx context.Context,
	credentialID int64,
	username, description, sshPrivateKey, sudoPassword string,
) error {
	keyHash := s.encrypter.EncryptAES(sshPrivateKey)
	sudoHash := ""
	if sudoPassword != "" {
		sudoHash = s.encrypter.EncryptAES(sudoPassword)
	}
	return s.credentialStore.UpdateCredential(ctx, credentialID, username, description, keyHash, sudoHash)
}

func (s *CredentialService) DeleteCredential(ctx context.Context, credentialID int64) error {
	return s.credentialStore.DeleteCredential(ctx, credentialID)
}
