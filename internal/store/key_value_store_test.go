package store

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/haatos/simple-cd/internal"
	"github.com/haatos/simple-cd/internal/util"
	"github.com/stretchr/testify/suite"
)

type keyValueStoreSuite struct {
	kvs *KeyValueStore
	db  *sql.DB
	suite.Suite
}

func TestKeyValueStore(t *testing.T) {
	suite.Run(t, new(keyValueStoreSuite))
}

func (suite *keyValueStoreSuite) SetupSuite() {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		log.Fatal(err)
	}
	suite.db = db
	RunMigrations(db, internal.MigrationsDir)
	suite.kvs = NewKeyValueStore(db, db)
}

func (suite *keyValueStoreSuite) TearDownSuite() {
	_ = suite.db.Close()
}

func (suite *keyValueStoreSuite) TestKeyValueStore_SetGet() {
	suite.Run("success - set, overwrite, get", func() {
		// act
		suite.NoError(suite.kvs.Set(context.Background(), "banner", "maintenance tonight", nil))
		suite.NoError(suite.kvs.Set(context.Background(), "banner", "maintenance cancelled", nil))

		// assert
		e, err := suite.kvs.Get(context.Background(), "banner")
		suite.NoError(err)
		suite.Equal("maintenance cancelled", e.ConfigValue)
	})
	suite.Run("failure - missing key", func() {
		// act
		_, err := suite.kvs.Get(context.Background(), "no-such-key")

		// assert
		suite.True(errors.Is(err, sql.ErrNoRows))
	})
}

func (suite *keyValueStoreSuite) TestKeyValueStore_RemoveExpired() {
	// arrange
	expired := util.AsPtr(time.Now().UTC().Add(-time.Hour))
	suite.NoError(suite.kvs.Set(context.Background(), "stale", "x", expired))
	suite.NoError(suite.kvs.Set(context.Background(), "fresh", "y", nil))

	// act
	suite.NoError(suite.kvs.RemoveExpired(context.Background()))

	// assert
	_, err := suite.kvs.Get(context.Background(), "stale")
	suite.True(errors.Is(err, sql.ErrNoRows))
	_, err = suite.kvs.Get(context.Background(), "fresh")
	suite.NoError(err)
}
