package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/haatos/simple-cd/internal/settings"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const transferTimeout = 30 * time.Minute

// taskRunner is the production TaskRunner: local commands via os/exec,
// remote operations over one ssh client held for the whole pipeline.
type taskRunner struct {
	registry     *ControlRegistry
	client       *ssh.Client
	sudoPassword string
}

func NewTaskRunner(registry *ControlRegistry, client *ssh.Client, sudoPassword string) TaskRunner {
	return &taskRunner{registry: registry, client: client, sudoPassword: sudoPassword}
}

// ConnectSSH dials the deployment target with the stored credential.
func ConnectSSH(username string, privateKey []byte) (*ssh.Client, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("err parsing ssh private key: %w", err)
	}
	cc := &ssh.ClientConfig{
		User:            username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}
	return ssh.Dial("tcp", settings.Settings.SSHHost(), cc)
}

func (tr *taskRunner) RunTask(buildID string, t Task, logf LogFunc) error {
	switch t.Kind {
	case TaskImageTransfer:
		return tr.transferImage(buildID, t, logf)
	case TaskRemoteCommand:
		return tr.runRemoteCommand(buildID, t, logf)
	case TaskCopyFile:
		return tr.copyFile(buildID, t, logf)
	case TaskEnvFile:
		return tr.materializeEnvFile(t, logf)
	default:
		return runLocalCommand(tr.registry, buildID, t, logf)
	}
}

type sessionHandle struct {
	sess *ssh.Session
}

func (h sessionHandle) Kill() error {
	_ = h.sess.Signal(ssh.SIGKILL)
	return h.sess.Close()
}

// closerHandle adapts anything closeable into a process handle; a
// cancel closing the underlying connection aborts the in-flight I/O.
type closerHandle struct {
	c io.Closer
}

func (h closerHandle) Kill() error {
	return h.c.Close()
}

type transferHandle struct {
	save *exec.Cmd
	sess *ssh.Session
}

func (h transferHandle) Kill() error {
	if h.save.Process != nil {
		_ = h.save.Process.Kill()
	}
	_ = h.sess.Signal(ssh.SIGKILL)
	return h.sess.Close()
}

// transferImage pipes `docker save` straight into a remote
// `docker load` without staging the image locally. Both subprocesses
// are torn down on every outcome. A timeout terminates this transfer
// only; it does not flag the control entry cancelled, so a later
// redeploy is not blocked by a stale flag.
func (tr *taskRunner) transferImage(buildID string, t Task, logf LogFunc) error {
	logf(t.Describe())

	save := exec.Command("docker", "save", t.Image)
	save.Dir = t.Dir
	saveOut, err := save.StdoutPipe()
	if err != nil {
		return err
	}
	saveErr, err := save.StderrPipe()
	if err != nil {
		return err
	}

	sess, err := tr.client.NewSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	remoteIn, err := sess.StdinPipe()
	if err != nil {
		return err
	}
	remoteOut, err := sess.StdoutPipe()
	if err != nil {
		return err
	}
	remoteErr, err := sess.StderrPipe()
	if err != nil {
		return err
	}

	remoteCmd := "docker load"
	if t.UseSudo {
		remoteCmd = "sudo -S docker load"
	}
	if err := sess.Start(remoteCmd); err != nil {
		return err
	}
	if err := save.Start(); err != nil {
		return err
	}

	handle := transferHandle{save: save, sess: sess}
	if ok := tr.registry.SetProcess(buildID, handle); !ok {
		_ = save.Wait()
		return DeployCancelError{Message: "image transfer cancelled before start"}
	}
	defer tr.registry.ClearProcess(buildID)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanLines(saveErr, "LOG[docker save]: ", logf)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanLines(remoteOut, "", logf)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanLines(remoteErr, "LOG[ssh]: ", logf)
	}()

	go func() {
		if t.UseSudo && tr.sudoPassword != "" {
			if _, err := io.WriteString(remoteIn, tr.sudoPassword+"\n"); err != nil {
				logf(fmt.Sprintf("LOG: err writing sudo password: %v\n", err))
			}
		}
		_, _ = io.Copy(remoteIn, saveOut)
		remoteIn.Close()
	}()

	done := make(chan error, 1)
	go func() {
		done <- sess.Wait()
	}()

	select {
	case <-time.After(transferTimeout):
		_ = handle.Kill()
		_ = save.Wait()
		// pipes are closed by the kill; drain before the final line
		wg.Wait()
		logf(fmt.Sprintf("image transfer of %s expired\n", t.Image))
		return TransferTimeoutError{Image: t.Image}
	case err := <-done:
		_ = save.Wait()
		wg.Wait()
		if tr.registry.IsCancelled(buildID) {
			return DeployCancelError{Message: "image transfer cancelled"}
		}
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				return RemoteCommandError{ExitCode: exitErr.ExitStatus(), Command: remoteCmd}
			}
			return err
		}
		logf(fmt.Sprintf("image %s transferred to %s\n", t.Image, settings.Settings.SSHTarget))
		return nil
	}
}

// runRemoteCommand runs one command on the target via a single
// non-interactive ssh session.
func (tr *taskRunner) runRemoteCommand(buildID string, t Task, logf LogFunc) error {
	logf(t.Describe())

	sess, err := tr.client.NewSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	stdout, err := sess.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		return err
	}

	if err := sess.Start(t.RemoteCommand); err != nil {
		return err
	}
	if ok := tr.registry.SetProcess(buildID, sessionHandle{sess}); !ok {
		return DeployCancelError{Message: "remote command cancelled before start"}
	}
	defer tr.registry.ClearProcess(buildID)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanLines(stdout, "", logf)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanLines(stderr, "LOG[ssh]: ", logf)
	}()

	// drain the output before reporting completion so no tail line of
	// this command lands after the next task's announcement
	err = sess.Wait()
	wg.Wait()
	if err != nil {
		if tr.registry.IsCancelled(buildID) {
			return DeployCancelError{Message: "remote command cancelled"}
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return RemoteCommandError{ExitCode: exitErr.ExitStatus(), Command: t.RemoteCommand}
		}
		return err
	}

	logf("remote command finished\n")
	return nil
}

// copyFile copies exactly one local file to the target over sftp. The
// sftp client is recorded in the registry so a cancel aborts a copy in
// flight instead of waiting for it to finish.
func (tr *taskRunner) copyFile(buildID string, t Task, logf LogFunc) error {
	logf(t.Describe())

	local, err := os.Open(t.LocalPath)
	if err != nil {
		return CopyError{Path: t.LocalPath, Err: err}
	}
	defer local.Close()

	sftpClient, err := sftp.NewClient(tr.client)
	if err != nil {
		return CopyError{Path: t.LocalPath, Err: err}
	}
	defer sftpClient.Close()

	if ok := tr.registry.SetProcess(buildID, closerHandle{sftpClient}); !ok {
		return DeployCancelError{Message: "file copy cancelled before start"}
	}
	defer tr.registry.ClearProcess(buildID)

	remote, err := sftpClient.Create(t.RemotePath)
	if err != nil {
		return CopyError{Path: t.RemotePath, Err: err}
	}
	defer remote.Close()

	if _, err := io.Copy(remote, local); err != nil {
		if tr.registry.IsCancelled(buildID) {
			return DeployCancelError{Message: "file copy cancelled"}
		}
		return CopyError{Path: t.RemotePath, Err: err}
	}

	logf(fmt.Sprintf("file copied to %s\n", t.RemotePath))
	return nil
}

func (tr *taskRunner) materializeEnvFile(t Task, logf LogFunc) error {
	logf(t.Describe())
	if err := os.WriteFile(t.EnvPath, []byte(t.EnvContent), 0600); err != nil {
		return err
	}
	return nil
}

// RemoteImagesPresent checks whether every image already exists on the
// target, so a redeploy can skip the transfer tasks. The check takes
// no lock against concurrent deployments; see the redeploy notes.
func (tr *taskRunner) RemoteImagesPresent(images []string) bool {
	if len(images) == 0 {
		return false
	}
	sess, err := tr.client.NewSession()
	if err != nil {
		return false
	}
	defer sess.Close()
	cmd := "docker image inspect " + strings.Join(images, " ")
	return sess.Run(cmd) == nil
}
