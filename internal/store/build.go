package store

import (
	"context"
	"time"
)

type BuildStatus string

const (
	StatusPending   BuildStatus = "pending"
	StatusRunning   BuildStatus = "running"
	StatusPaused    BuildStatus = "paused"
	StatusSuccess   BuildStatus = "success"
	StatusFailed    BuildStatus = "failed"
	StatusCancelled BuildStatus = "cancelled"
)

// IsTerminal reports whether no further status transition is allowed.
func (s BuildStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCancelled
}

// Build is one persisted deployment attempt. Logs live in the
// append-only build_logs table, ordered by log_id.
type Build struct {
	BuildID      string `param:"build_id" json:"build_id"`
	BuildUserID  int64  `json:"build_user_id"`
	DeploymentID string `json:"deployment_id"`
	ProjectName  string `json:"project_name"`
	Status       BuildStatus `json:"status"`
	Image        string      `json:"image"`
	Images       string      `json:"images"`
	IsDeployed   bool        `json:"is_deployed"`
	CreatedOn    time.Time   `json:"created_on"`
	UpdatedOn    time.Time   `json:"updated_on"`
}

type BuildLog struct {
	LogID      int64     `json:"log_id"`
	LogBuildID string    `json:"-"`
	Line       string    `json:"line"`
	CreatedOn  time.Time `json:"created_on"`
}

type BuildWriter interface {
	CreateBuild(ctx context.Context, buildID, deploymentID, projectName, image, images string, userID int64) (*Build, error)
	UpdateBuildStatus(ctx context.Context, buildID string, status BuildStatus) error
	MarkDeployed(ctx context.Context, buildID string) error
	DeleteBuild(ctx context.Context, buildID string) error
}

type BuildReader interface {
	ReadBuildByID(ctx context.Context, buildID string) (*Build, error)
	ReadDeployedBuild(ctx context.Context) (*Build, error)
	ListBuildsPaginated(ctx context.Context, limit, offset int64) ([]Build, error)
	ListUserBuildsPaginated(ctx context.Context, userID, limit, offset int64) ([]Build, error)
	CountBuilds(ctx context.Context) (int64, error)
	CountUserBuilds(ctx context.Context, userID int64) (int64, error)
	CountActiveBuilds(ctx context.Context) (int64, error)
}

type BuildLogWriter interface {
	AppendBuildLog(ctx context.Context, buildID, line string) error
	PruneBuildLogs(ctx context.Context, olderThan time.Time) (int64, error)
}

type BuildLogReader interface {
	ListBuildLogs(ctx context.Context, buildID string) ([]BuildLog, error)
}

type BuildStore interface {
	BuildWriter
	BuildReader
	BuildLogWriter
	BuildLogReader
}
