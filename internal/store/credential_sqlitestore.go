package store

import (
	"context"
	"database/sql"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type CredentialSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewCredentialSQLiteStore(rdb, rwdb *sql.DB) *CredentialSQLiteStore {
	return &CredentialSQLiteStore{rdb, rwdb}
}

func (store *CredentialSQLiteStore) CreateCredential(
	ctx context.Context,
	username, description, sshPrivateKeyHash, sudoPasswordHash string,
) (*Credential, error) {
	c := &Credential{
		Username:          username,
		Description:       description,
		SSHPrivateKeyHash: sshPrivateKeyHash,
		SudoPasswordHash:  sudoPasswordHash,
	}
	query := `insert into credentials (
		username,
		description,
		ssh_private_key_hash,
		sudo_password_hash
	)
	values ($1, $2, $3, $4)
	returning credential_id`
	err := sqlscan.Get(
		ctx, store.rwdb, c, query,
		c.Username, c.Description, c.SSHPrivateKeyHash, c.SudoPasswordHash,
	)
	return c, err
}

func (store *CredentialSQLiteStore) ReadCredentialByID(
	ctx context.Context,
	credentialID int64,
) (*Credential, error) {
	c := new(Credential)
	query := `select * from credentials where credential_id = $1`
	if err := sqlscan.Get(ctx, store.rdb, c, query, credentialID); err != nil {
		return nil, err
	}
	return c, nil
}

// ReadDeployCredential returns the single credential the panel uses to
// reach the deployment target.
func (store *CredentialSQLiteStore) ReadDeployCredential(ctx context.Context) (*Credential, error) {
	c := new(Credential)
	query := `select * from credentials order by credential_id limit 1`
	if err := sqlscan.Get(ctx, store.rdb, c, query); err != nil {
		return nil, err
	}
	return c, nil
}

func (store *CredentialSQLiteStore) UpdateCredential(
	ctx context.Context,
	credentialID int64,
	username, description, sshPrivateKeyHash, sudoPasswordHash string,
) error {
	query := `update credentials
	set username = $1,
		description = $2,
		ssh_private_key_hash = $3,
		sudo_password_hash = $4
	where credential_id = $5`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		username, description, sshPrivateKeyHash, sudoPasswordHash, credentialID,
	)
	return err
}

func (store *CredentialSQLiteStore) DeleteCredential(
	ctx context.Context,
	credentialID int64,
) error {
	query := `delete from credentials where credential_id = $1`
	_, err := store.rwdb.ExecContext(ctx, query, credentialID)
	return err
}
