package service

import (
	"fmt"
	"path"
	"strings"

	"github.com/haatos/simple-cd/internal/settings"
	"github.com/haatos/simple-cd/internal/types"
)

type TaskKind string

const (
	TaskShell         TaskKind = "shell"
	TaskImageTransfer TaskKind = "image_transfer"
	TaskRemoteCommand TaskKind = "remote_command"
	TaskCopyFile      TaskKind = "copy_file"
	TaskEnvFile       TaskKind = "env_file"
)

// Task is one step of a pipeline. Tasks are data: the executor is a
// generic interpreter over the ordered list, constructed once per run
// and never mutated.
type Task struct {
	Kind TaskKind

	// shell
	Command string
	Args    []string
	Dir     string

	// image transfer
	Image   string
	UseSudo bool

	// remote command
	RemoteCommand string

	// file copy
	LocalPath  string
	RemotePath string

	// env file materialization
	EnvPath    string
	EnvContent string
}

// Describe renders the announcement line emitted before the task runs.
func (t Task) Describe() string {
	switch t.Kind {
	case TaskImageTransfer:
		return fmt.Sprintf("> [%s] docker save %s | ssh %s \"docker load\"\n",
			path.Base(t.Dir), t.Image, settings.Settings.SSHTarget)
	case TaskRemoteCommand:
		return fmt.Sprintf("> [remote] ssh %s \"%s\"\n",
			settings.Settings.SSHTarget, t.RemoteCommand)
	case TaskCopyFile:
		return fmt.Sprintf("> [sftp] %s -> %s:%s\n",
			t.LocalPath, settings.Settings.SSHTarget, t.RemotePath)
	case TaskEnvFile:
		return fmt.Sprintf("> [env] materializing %s\n", t.EnvPath)
	default:
		return fmt.Sprintf("> [%s] %s %s\n",
			path.Base(t.Dir), t.Command, strings.Join(t.Args, " "))
	}
}

// BuildDeployTasks constructs the ordered pipeline for a full
// deployment: refresh the checkout, run the backend tests, build the
// compose stack against the target's docker daemon, transfer every
// image, then bring the stack up remotely. Later tasks depend on the
// artifacts of earlier ones, so the order is a correctness requirement.
func BuildDeployTasks(m *types.DeployManifest, skipTransfer bool) []Task {
	appRoot := settings.Settings.AppRoot
	composeDir := path.Join(appRoot, m.ComposeDir)
	backendDir := path.Join(appRoot, m.BackendDir)
	remotePath := settings.Settings.RemotePath

	tasks := []Task{
		{Kind: TaskShell, Dir: appRoot, Command: "git", Args: []string{"pull"}},
		{Kind: TaskShell, Dir: appRoot, Command: "git", Args: []string{"submodule", "sync", "--recursive"}},
		{Kind: TaskShell, Dir: appRoot, Command: "git", Args: []string{"submodule", "update", "--init", "--recursive", "--remote"}},
		{Kind: TaskShell, Dir: backendDir, Command: "mvn", Args: []string{"test"}},
		{Kind: TaskShell, Dir: composeDir, Command: "docker-compose", Args: []string{"up", "-d", "--build"}},
	}

	if !skipTransfer {
		for _, image := range m.Images {
			tasks = append(tasks, Task{
				Kind:    TaskImageTransfer,
				Dir:     composeDir,
				Image:   image,
				UseSudo: m.UseSudo,
			})
		}
	}

	tasks = append(tasks, Task{
		Kind:          TaskRemoteCommand,
		Dir:           composeDir,
		RemoteCommand: fmt.Sprintf("mkdir -p %s", remotePath),
	})

	if m.EnvFile != "" {
		tasks = append(tasks, Task{
			Kind:       TaskEnvFile,
			Dir:        composeDir,
			EnvPath:    path.Join(composeDir, m.EnvFile),
			EnvContent: m.EnvContent,
		})
		tasks = append(tasks, Task{
			Kind:       TaskCopyFile,
			Dir:        composeDir,
			LocalPath:  path.Join(composeDir, m.EnvFile),
			RemotePath: path.Join(remotePath, m.EnvFile),
		})
	}

	tasks = append(tasks,
		Task{
			Kind:       TaskCopyFile,
			Dir:        composeDir,
			LocalPath:  path.Join(composeDir, m.ComposeFile),
			RemotePath: path.Join(remotePath, m.ComposeFile),
		},
		Task{
			Kind: TaskRemoteCommand,
			Dir:  composeDir,
			RemoteCommand: fmt.Sprintf(
				"cd %s && docker-compose -f %s up -d", remotePath, m.ComposeFile,
			),
		},
	)

	return tasks
}
