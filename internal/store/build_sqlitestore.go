package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/haatos/simple-cd/internal"
)

type BuildSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewBuildSQLiteStore(rdb, rwdb *sql.DB) *BuildSQLiteStore {
	return &BuildSQLiteStore{rdb, rwdb}
}

func (store *BuildSQLiteStore) CreateBuild(
	ctx context.Context,
	buildID, deploymentID, projectName, image, images string,
	userID int64,
) (*Build, error) {
	b := &Build{
		BuildID:      buildID,
		BuildUserID:  userID,
		DeploymentID: deploymentID,
		ProjectName:  projectName,
		Status:       StatusPending,
		Image:        image,
		Images:       images,
	}
	query := `insert into builds (
		build_id,
		build_user_id,
		deployment_id,
		project_name,
		status,
		image,
		images
	)
	values ($1, $2, $3, $4, $5, $6, $7)
	returning created_on, updated_on`
	if err := sqlscan.Get(
		ctx, store.rwdb, b, query,
		b.BuildID, b.BuildUserID, b.DeploymentID, b.ProjectName, b.Status, b.Image, b.Images,
	); err != nil {
		return nil, err
	}
	return b, nil
}

func (store *BuildSQLiteStore) ReadBuildByID(ctx context.Context, buildID string) (*Build, error) {
	b := new(Build)
	query := "select * from builds where build_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, b, query, buildID); err != nil {
		return nil, err
	}
	return b, nil
}

func (store *BuildSQLiteStore) ReadDeployedBuild(ctx context.Context) (*Build, error) {
	b := new(Build)
	query := "select * from builds where is_deployed = 1 limit 1"
	if err := sqlscan.Get(ctx, store.rdb, b, query); err != nil {
		return nil, err
	}
	return b, nil
}

func (store *BuildSQLiteStore) UpdateBuildStatus(
	ctx context.Context,
	buildID string,
	status BuildStatus,
) error {
	query := `update builds
	set status = $1,
		updated_on = $2
	where build_id = $3`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		status,
		time.Now().UTC().Format(internal.DBTimestampLayout),
		buildID,
	)
	return err
}

// MarkDeployed clears the deployed flag on every build and flags this
// one as the live deployment in a single transaction, so readers never
// observe two deployed builds.
func (store *BuildSQLiteStore) MarkDeployed(ctx context.Context, buildID string) error {
	tx, err := store.rwdb.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx, "update builds set is_deployed = 0 where is_deployed = 1",
	); err != nil {
		return err
	}

	now := time.Now().UTC().Format(internal.DBTimestampLayout)
	res, err := tx.ExecContext(
		ctx,
		`update builds
		set is_deployed = 1,
			status = $1,
			updated_on = $2
		where build_id = $3`,
		StatusSuccess, now, buildID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return sql.ErrNoRows
	}

	return tx.Commit()
}

func (store *BuildSQLiteStore) DeleteBuild(ctx context.Context, buildID string) error {
	query := "delete from builds where build_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, buildID)
	return err
}

func (store *BuildSQLiteStore) ListBuildsPaginated(
	ctx context.Context,
	limit, offset int64,
) ([]Build, error) {
	query := `select * from builds
	order by created_on desc limit $1 offset $2`
	builds := make([]Build, 0)
	err := sqlscan.Select(ctx, store.rdb, &builds, query, limit, offset)
	return builds, err
}

func (store *BuildSQLiteStore) ListUserBuildsPaginated(
	ctx context.Context,
	userID, limit, offset int64,
) ([]Build, error) {
	query := `select * from builds
	where build_user_id = $1
	order by created_on desc limit $2 offset $3`
	builds := make([]Build, 0)
	err := sqlscan.Select(ctx, store.rdb, &builds, query, userID, limit, offset)
	return builds, err
}

func (store *BuildSQLiteStore) CountBuilds(ctx context.Context) (int64, error) {
	var count int64
	query := "select count(*) from builds"
	err := sqlscan.Get(ctx, store.rdb, &count, query)
	return count, err
}

func (store *BuildSQLiteStore) CountUserBuilds(ctx context.Context, userID int64) (int64, error) {
	var count int64
	query := "select count(*) from builds where build_user_id = $1"
	err := sqlscan.Get(ctx, store.rdb, &count, query, userID)
	return count, err
}

func (store *BuildSQLiteStore) AppendBuildLog(ctx context.Context, buildID, line string) error {
	query := "insert into build_logs (log_build_id, line) values ($1, $2)"
	_, err := store.rwdb.ExecContext(ctx, query, buildID, line)
	return err
}

func (store *BuildSQLiteStore) ListBuildLogs(
	ctx context.Context,
	buildID string,
) ([]BuildLog, error) {
	query := `select * from build_logs
	where log_build_id = $1
	order by log_id`
	logs := make([]BuildLog, 0)
	err := sqlscan.Select(ctx, store.rdb, &logs, query, buildID)
	return logs, err
}

func (store *BuildSQLiteStore) PruneBuildLogs(
	ctx context.Context,
	olderThan time.Time,
) (int64, error) {
	query := `delete from build_logs
	where created_on < $1
	and log_build_id not in (select build_id from builds where status in ($2, $3))`
	res, err := store.rwdb.ExecContext(
		ctx, query,
		olderThan.Format(internal.DBTimestampLayout),
		StatusRunning, StatusPaused,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountActiveBuilds counts builds whose pipeline has not reached a
// terminal state.
func (store *BuildSQLiteStore) CountActiveBuilds(ctx context.Context) (int64, error) {
	var count int64
	query := "select count(*) from builds where status in ($1, $2, $3)"
	err := sqlscan.Get(ctx, store.rdb, &count, query, StatusPending, StatusRunning, StatusPaused)
	return count, err
}
