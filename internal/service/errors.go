package service

import "fmt"

// Control registry protocol errors. These are returned synchronously
// to the control request and never affect a running pipeline.
type ErrAlreadyRegistered struct {
	BuildID string
}

func (e ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("a pipeline is already registered for build %s", e.BuildID)
}

type ErrNotFound struct {
	BuildID string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("no running pipeline for build %s", e.BuildID)
}

type ErrAlreadyPaused struct {
	BuildID string
}

func (e ErrAlreadyPaused) Error() string {
	return fmt.Sprintf("pipeline for build %s is already paused", e.BuildID)
}

type ErrNotPaused struct {
	BuildID string
}

func (e ErrNotPaused) Error() string {
	return fmt.Sprintf("pipeline for build %s is not paused", e.BuildID)
}

type ErrDeploymentInProgress struct{}

func (e ErrDeploymentInProgress) Error() string {
	return "a deployment is already in progress"
}

type ErrBuildRunning struct {
	BuildID string
}

func (e ErrBuildRunning) Error() string {
	return fmt.Sprintf("build %s has a running pipeline", e.BuildID)
}

// Task errors. Any of these is terminal for the pipeline run.
type ProcessError struct {
	ExitCode int
	Command  string
}

func (e ProcessError) Error() string {
	return fmt.Sprintf("command '%s' failed with code %d", e.Command, e.ExitCode)
}

type RemoteCommandError struct {
	ExitCode int
	Command  string
}

func (e RemoteCommandError) Error() string {
	return fmt.Sprintf("remote command '%s' failed with code %d", e.Command, e.ExitCode)
}

type CopyError struct {
	Path string
	Err  error
}

func (e CopyError) Error() string {
	return fmt.Sprintf("copying %s failed: %v", e.Path, e.Err)
}

func (e CopyError) Unwrap() error {
	return e.Err
}

type TransferTimeoutError struct {
	Image string
}

func (e TransferTimeoutError) Error() string {
	return fmt.Sprintf("image transfer of %s timed out", e.Image)
}

type MissingWorkingDirectoryError struct {
	Path string
}

func (e MissingWorkingDirectoryError) Error() string {
	return fmt.Sprintf("working directory %s does not exist", e.Path)
}

// DeployCancelError marks a user-initiated termination; it surfaces as
// build status cancelled rather than failed.
type DeployCancelError struct {
	Message string
}

func (e DeployCancelError) Error() string {
	return e.Message
}
