package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haatos/simple-cd/internal"
	"github.com/haatos/simple-cd/internal/settings"
	"github.com/haatos/simple-cd/internal/store"
	"github.com/haatos/simple-cd/internal/types"
)

const defaultPausePoll = 500 * time.Millisecond

// ImageChecker is implemented by runners that can tell whether the
// deployment target already holds the pipeline's images.
type ImageChecker interface {
	RemoteImagesPresent(images []string) bool
}

// runnerFactory opens whatever connections a pipeline run needs and
// returns the runner plus a cleanup. Swapped out in tests.
type runnerFactory func(ctx context.Context, registry *ControlRegistry) (TaskRunner, func(), error)

// DeployService owns the deployment pipeline: it creates build
// records, runs the ordered task list in a background goroutine and
// exposes the pause/resume/cancel controls.
type DeployService struct {
	buildStore  store.BuildStore
	credentials *CredentialService
	registry    *ControlRegistry
	clients     *SSEClientMap[LogMessage]
	audit       *AuditService

	newRunner runnerFactory
	pausePoll time.Duration
}

func NewDeployService(
	buildStore store.BuildStore,
	credentials *CredentialService,
	registry *ControlRegistry,
	clients *SSEClientMap[LogMessage],
	audit *AuditService,
) *DeployService {
	s := &DeployService{
		buildStore:  buildStore,
		credentials: credentials,
		registry:    registry,
		clients:     clients,
		audit:       audit,
		pausePoll:   defaultPausePoll,
	}
	s.newRunner = s.sshRunner
	return s
}

func (s *DeployService) sshRunner(ctx context.Context, registry *ControlRegistry) (TaskRunner, func(), error) {
	cred, err := s.credentials.GetDeployCredential(ctx)
	if err != nil {
		return nil, nil, err
	}
	username := cred.Username
	if username == "" {
		username = settings.Settings.SSHUser()
	}
	client, err := ConnectSSH(username, cred.PrivateKey)
	if err != nil {
		return nil, nil, err
	}
	return NewTaskRunner(registry, client, cred.SudoPassword),
		func() { client.Close() },
		nil
}

// StartDeployment creates a fresh build for the configured manifest
// and launches its pipeline. Only one pipeline runs at a time.
func (s *DeployService) StartDeployment(ctx context.Context, userID int64) (*store.Build, error) {
	manifest, err := types.ReadDeployManifest(internal.DeployManifestPath)
	if err != nil {
		return nil, err
	}
	return s.launch(ctx, userID, manifest, uuid.NewString(), false)
}

// Redeploy launches a new build that repeats an earlier one. The new
// build shares the source build's deployment id. When the target still
// holds the images, the transfer tasks are skipped.
func (s *DeployService) Redeploy(ctx context.Context, userID int64, buildID string) (*store.Build, error) {
	source, err := s.buildStore.ReadBuildByID(ctx, buildID)
	if err != nil {
		return nil, err
	}
	if !source.Status.IsTerminal() {
		return nil, ErrBuildRunning{BuildID: buildID}
	}
	manifest, err := types.ReadDeployManifest(internal.DeployManifestPath)
	if err != nil {
		return nil, err
	}
	return s.launch(ctx, userID, manifest, source.DeploymentID, true)
}

func (s *DeployService) launch(
	ctx context.Context,
	userID int64,
	manifest *types.DeployManifest,
	deploymentID string,
	redeploy bool,
) (*store.Build, error) {
	if s.registry.Active() {
		return nil, ErrDeploymentInProgress{}
	}

	images, err := json.Marshal(manifest.Images)
	if err != nil {
		return nil, err
	}
	build, err := s.buildStore.CreateBuild(
		ctx,
		uuid.NewString(),
		deploymentID,
		manifest.ProjectName,
		manifest.PrimaryImage(),
		string(images),
		userID,
	)
	if err != nil {
		return nil, err
	}

	// the emptiness check and the insert are one atomic registry
	// operation; the Active check above is only a fast path
	if err := s.registry.RegisterExclusive(build.BuildID); err != nil {
		if derr := s.buildStore.DeleteBuild(ctx, build.BuildID); derr != nil {
			log.Println("err deleting unstarted build:", derr)
		}
		return nil, ErrDeploymentInProgress{}
	}

	s.audit.Info(ctx, &userID, "deployment of %s started (build %s)", manifest.ProjectName, build.BuildID)
	go s.run(build, manifest, redeploy)
	return build, nil
}

// run executes one pipeline to its terminal state. It owns the
// registry entry and removes it on exit.
func (s *DeployService) run(build *store.Build, manifest *types.DeployManifest, redeploy bool) {
	ctx := context.Background()
	defer s.registry.Unregister(build.BuildID)

	logf := s.logSink(build.BuildID)
	logf(fmt.Sprintf("deployment of %s started\n", manifest.ProjectName))

	// the pipeline is live from here on; a slow ssh dial must not leave
	// the build looking pending
	if err := s.buildStore.UpdateBuildStatus(ctx, build.BuildID, store.StatusRunning); err != nil {
		log.Println("err updating build status:", err)
	}

	runner, cleanup, err := s.newRunner(ctx, s.registry)
	if err != nil {
		s.finish(ctx, build, err, logf)
		return
	}
	defer cleanup()

	skipTransfer := false
	if redeploy && len(manifest.Images) > 0 {
		if checker, ok := runner.(ImageChecker); ok && checker.RemoteImagesPresent(manifest.Images) {
			skipTransfer = true
			logf(fmt.Sprintf(
				"images already present on %s, skipping transfer\n", settings.Settings.SSHTarget))
		}
	}

	err = s.executeTasks(ctx, build.BuildID, BuildDeployTasks(manifest, skipTransfer), runner, logf)
	s.finish(ctx, build, err, logf)
}

// executeTasks runs the task list in order. Before each task it waits
// at the boundary for a pause to lift; a task error stops the run and
// no later task starts.
func (s *DeployService) executeTasks(
	ctx context.Context,
	buildID string,
	tasks []Task,
	runner TaskRunner,
	logf LogFunc,
) error {
	for _, t := range tasks {
		if err := s.waitAtBoundary(ctx, buildID, logf); err != nil {
			return err
		}
		if err := runner.RunTask(buildID, t, logf); err != nil {
			return err
		}
	}
	return nil
}

// waitAtBoundary blocks between tasks while the pipeline is paused.
// Cancellation is checked first on every poll, so a cancel always wins
// over a pause.
func (s *DeployService) waitAtBoundary(ctx context.Context, buildID string, logf LogFunc) error {
	pauseLogged := false
	for {
		if s.registry.IsCancelled(buildID) {
			return DeployCancelError{Message: "deployment cancelled"}
		}
		if !s.registry.IsPaused(buildID) {
			if pauseLogged {
				if err := s.buildStore.UpdateBuildStatus(ctx, buildID, store.StatusRunning); err != nil {
					log.Println("err updating build status:", err)
				}
				logf("pipeline resumed\n")
			}
			return nil
		}
		if !pauseLogged {
			if err := s.buildStore.UpdateBuildStatus(ctx, buildID, store.StatusPaused); err != nil {
				log.Println("err updating build status:", err)
			}
			logf("pipeline paused\n")
			pauseLogged = true
		}
		time.Sleep(s.pausePoll)
	}
}

// finish persists the terminal state exactly once per run.
func (s *DeployService) finish(ctx context.Context, build *store.Build, runErr error, logf LogFunc) {
	if runErr == nil {
		if err := s.buildStore.MarkDeployed(ctx, build.BuildID); err != nil {
			log.Println("err marking build deployed:", err)
		}
		logf("deployment finished\n")
		s.audit.Info(ctx, &build.BuildUserID, "build %s of %s deployed", build.BuildID, build.ProjectName)
		return
	}

	status := store.StatusFailed
	var cancelErr DeployCancelError
	if errors.As(runErr, &cancelErr) || s.registry.IsCancelled(build.BuildID) {
		status = store.StatusCancelled
	}
	if err := s.buildStore.UpdateBuildStatus(ctx, build.BuildID, status); err != nil {
		log.Println("err updating build status:", err)
	}
	logf(fmt.Sprintf("LOG: %s\n", runErr.Error()))
	if status == store.StatusCancelled {
		logf("deployment cancelled\n")
		s.audit.Warning(ctx, &build.BuildUserID, "build %s of %s cancelled", build.BuildID, build.ProjectName)
	} else {
		logf("deployment failed\n")
		s.audit.Error(ctx, &build.BuildUserID, "build %s of %s failed: %v", build.BuildID, build.ProjectName, runErr)
	}
}

// logSink persists each line to the build's log before broadcasting it
// to live viewers, so the stored log is a superset of what any viewer
// saw.
func (s *DeployService) logSink(buildID string) LogFunc {
	return func(line string) {
		if err := s.buildStore.AppendBuildLog(context.Background(), buildID, line); err != nil {
			log.Println("err appending build log:", err)
		}
		s.clients.SendToClients(LogMessage{BuildID: buildID, Line: strings.TrimSuffix(line, "\n")})
	}
}

// Pause flags the running pipeline to hold at its next task boundary.
// The running task is not interrupted.
func (s *DeployService) Pause(buildID string) error {
	return s.registry.Pause(buildID)
}

func (s *DeployService) Resume(buildID string) error {
	return s.registry.Resume(buildID)
}

// Cancel terminates the running pipeline: the current task's process
// is killed and no later task starts.
func (s *DeployService) Cancel(buildID string) error {
	return s.registry.Cancel(buildID)
}

// DeleteBuild removes a terminal build and its logs. A build with a
// live pipeline cannot be deleted.
func (s *DeployService) DeleteBuild(ctx context.Context, buildID string) error {
	build, err := s.buildStore.ReadBuildByID(ctx, buildID)
	if err != nil {
		return err
	}
	if !build.Status.IsTerminal() {
		return ErrBuildRunning{BuildID: buildID}
	}
	return s.buildStore.DeleteBuild(ctx, buildID)
}
