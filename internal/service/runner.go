package service

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/haatos/simple-cd/internal/settings"
	"github.com/haatos/simple-cd/internal/util"
)

// LogFunc receives one pipeline output line. The executor persists the
// line to the build record and hands it to the live broadcaster.
type LogFunc func(line string)

// TaskRunner executes a single pipeline task, streaming its output to
// the log sink. Implementations record the live process in the control
// registry so an external cancel can terminate it.
type TaskRunner interface {
	RunTask(buildID string, t Task, logf LogFunc) error
}

type cmdHandle struct {
	cmd *exec.Cmd
}

// Kill terminates the whole process group. Build tools (git, mvn,
// docker-compose) fork children that inherit the output pipes; killing
// only the direct child would leave orphans holding the pipes open and
// the runner blocked on them.
func (h cmdHandle) Kill() error {
	if h.cmd.Process == nil {
		return nil
	}
	if err := syscall.Kill(-h.cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return h.cmd.Process.Kill()
	}
	return nil
}

// runLocalCommand starts one local process, scans stdout and stderr
// into the log sink and maps the exit code. Output from the two
// streams interleaves best-effort, but every line is flushed before
// the function returns.
func runLocalCommand(registry *ControlRegistry, buildID string, t Task, logf LogFunc) error {
	if exists, _ := util.PathExists(t.Dir); !exists {
		return MissingWorkingDirectoryError{Path: t.Dir}
	}

	logf(t.Describe())

	cmd := exec.Command(t.Command, t.Args...)
	cmd.Dir = t.Dir
	// docker builds run against the target VM's daemon
	cmd.Env = append(os.Environ(), "DOCKER_HOST="+settings.Settings.DockerHost())
	// own process group so a cancel reaches every descendant
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	if ok := registry.SetProcess(buildID, cmdHandle{cmd}); !ok {
		_ = cmd.Wait()
		return DeployCancelError{Message: "task cancelled before start"}
	}
	defer registry.ClearProcess(buildID)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanLines(stdout, "", logf)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanLines(stderr, "LOG: ", logf)
	}()
	wg.Wait()

	err = cmd.Wait()
	if registry.IsCancelled(buildID) {
		return DeployCancelError{Message: "task cancelled"}
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return ProcessError{ExitCode: exitErr.ExitCode(), Command: t.Command}
		}
		return err
	}
	return nil
}

func scanLines(r io.Reader, prefix string, logf LogFunc) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		logf(prefix + scanner.Text() + "\n")
	}
}
