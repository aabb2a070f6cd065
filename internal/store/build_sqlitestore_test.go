package store

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/haatos/simple-cd/internal"
	"github.com/stretchr/testify/suite"
	_ "modernc.org/sqlite"
)

type buildSQLiteStoreSuite struct {
	buildStore *BuildSQLiteStore
	db         *sql.DB
	user       *User
	suite.Suite
}

func TestBuildSQLiteStore(t *testing.T) {
	suite.Run(t, new(buildSQLiteStoreSuite))
}

func (suite *buildSQLiteStoreSuite) SetupSuite() {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		log.Fatal(err)
	}
	suite.db = db
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		log.Fatal(err)
	}

	RunMigrations(db, internal.MigrationsDir)

	suite.buildStore = NewBuildSQLiteStore(db, db)
	userStore := NewUserSQLiteStore(db, db)
	u, err := userStore.CreateUser(context.Background(), Admin, "buildtestadmin", "hash")
	if err != nil {
		log.Fatal(err)
	}
	suite.user = u
}

func (suite *buildSQLiteStoreSuite) TearDownSuite() {
	_ = suite.db.Close()
}

func (suite *buildSQLiteStoreSuite) createBuild() *Build {
	b, err := suite.buildStore.CreateBuild(
		context.Background(),
		uuid.NewString(),
		uuid.NewString(),
		"cicd-run",
		"cicd-run-backend:latest",
		`["cicd-run-backend:latest","cicd-run-frontend:latest"]`,
		suite.user.UserID,
	)
	suite.Require().NoError(err)
	return b
}

func (suite *buildSQLiteStoreSuite) TestBuildSQLiteStore_CreateBuild() {
	suite.Run("success - build created pending", func() {
		// act
		b := suite.createBuild()

		// assert
		suite.Equal(StatusPending, b.Status)
		suite.False(b.IsDeployed)
		suite.False(b.CreatedOn.IsZero())
	})
	suite.Run("failure - invalid user id", func() {
		// act
		_, err := suite.buildStore.CreateBuild(
			context.Background(),
			uuid.NewString(), uuid.NewString(), "cicd-run", "", "[]", 999999,
		)

		// assert
		suite.Error(err)
	})
}

func (suite *buildSQLiteStoreSuite) TestBuildSQLiteStore_UpdateBuildStatus() {
	// arrange
	b := suite.createBuild()

	// act
	err := suite.buildStore.UpdateBuildStatus(context.Background(), b.BuildID, StatusRunning)

	// assert
	suite.NoError(err)
	r, err := suite.buildStore.ReadBuildByID(context.Background(), b.BuildID)
	suite.NoError(err)
	suite.Equal(StatusRunning, r.Status)
}

func (suite *buildSQLiteStoreSuite) TestBuildSQLiteStore_MarkDeployed() {
	suite.Run("success - exactly one build flagged deployed", func() {
		// arrange
		first := suite.createBuild()
		second := suite.createBuild()
		suite.NoError(suite.buildStore.MarkDeployed(context.Background(), first.BuildID))

		// act
		err := suite.buildStore.MarkDeployed(context.Background(), second.BuildID)

		// assert
		suite.NoError(err)
		deployed, err := suite.buildStore.ReadDeployedBuild(context.Background())
		suite.NoError(err)
		suite.Equal(second.BuildID, deployed.BuildID)
		suite.Equal(StatusSuccess, deployed.Status)

		previous, err := suite.buildStore.ReadBuildByID(context.Background(), first.BuildID)
		suite.NoError(err)
		suite.False(previous.IsDeployed)
	})
	suite.Run("failure - unknown build id", func() {
		// act
		err := suite.buildStore.MarkDeployed(context.Background(), "no-such-build")

		// assert
		suite.Error(err)
		suite.True(errors.Is(err, sql.ErrNoRows))
	})
}

func (suite *buildSQLiteStoreSuite) TestBuildSQLiteStore_AppendBuildLog() {
	// arrange
	b := suite.createBuild()
	lines := []string{"> [app] git pull\n", "Already up to date.\n", "task complete\n"}

	// act
	for _, line := range lines {
		suite.NoError(suite.buildStore.AppendBuildLog(context.Background(), b.BuildID, line))
	}

	// assert
	logs, err := suite.buildStore.ListBuildLogs(context.Background(), b.BuildID)
	suite.NoError(err)
	suite.Len(logs, len(lines))
	for i := range logs {
		suite.Equal(lines[i], logs[i].Line)
		if i > 0 {
			suite.Greater(logs[i].LogID, logs[i-1].LogID)
		}
	}
}

func (suite *buildSQLiteStoreSuite) TestBuildSQLiteStore_ListUserBuildsPaginated() {
	// arrange
	userStore := NewUserSQLiteStore(suite.db, suite.db)
	u, err := userStore.CreateUser(context.Background(), Operator, "buildtestoperator", "hash")
	suite.Require().NoError(err)
	ownID := uuid.NewString()
	_, err = suite.buildStore.CreateBuild(
		context.Background(), ownID, uuid.NewString(), "cicd-run", "", "[]", u.UserID,
	)
	suite.Require().NoError(err)
	suite.createBuild()

	// act
	builds, err := suite.buildStore.ListUserBuildsPaginated(context.Background(), u.UserID, 10, 0)

	// assert
	suite.NoError(err)
	suite.Len(builds, 1)
	suite.Equal(ownID, builds[0].BuildID)

	count, err := suite.buildStore.CountUserBuilds(context.Background(), u.UserID)
	suite.NoError(err)
	suite.EqualValues(1, count)
}

func (suite *buildSQLiteStoreSuite) TestBuildSQLiteStore_DeleteBuild() {
	// arrange
	b := suite.createBuild()
	suite.NoError(suite.buildStore.AppendBuildLog(context.Background(), b.BuildID, "line\n"))

	// act
	err := suite.buildStore.DeleteBuild(context.Background(), b.BuildID)

	// assert
	suite.NoError(err)
	_, err = suite.buildStore.ReadBuildByID(context.Background(), b.BuildID)
	suite.True(errors.Is(err, sql.ErrNoRows))
	logs, err := suite.buildStore.ListBuildLogs(context.Background(), b.BuildID)
	suite.NoError(err)
	suite.Empty(logs)
}

func (suite *buildSQLiteStoreSuite) TestBuildSQLiteStore_PruneBuildLogs() {
	// arrange
	b := suite.createBuild()
	suite.NoError(suite.buildStore.UpdateBuildStatus(context.Background(), b.BuildID, StatusFailed))
	suite.NoError(suite.buildStore.AppendBuildLog(context.Background(), b.BuildID, "old line\n"))

	// act
	n, err := suite.buildStore.PruneBuildLogs(
		context.Background(),
		time.Now().UTC().Add(24*time.Hour),
	)

	// assert
	suite.NoError(err)
	suite.GreaterOrEqual(n, int64(1))
	logs, err := suite.buildStore.ListBuildLogs(context.Background(), b.BuildID)
	suite.NoError(err)
	suite.Empty(logs)
}
