package service

import (
	"sync"
)

// ProcessHandle is the piece of a live task an external cancel can
// reach: killing it unblocks the executor's wait on the task.
// *exec.Cmd based processes and ssh sessions both satisfy it.
type ProcessHandle interface {
	Kill() error
}

// ControlEntry is the rendezvous point between the control API and
// one in-flight pipeline. It exists only while the pipeline executes.
type ControlEntry struct {
	Paused    bool
	Cancelled bool

	process ProcessHandle
}

// ControlRegistry maps build ids to control entries. Control requests
// (pause/resume/cancel) and the executor mutate entries concurrently;
// a single mutex with short critical sections guards the whole table.
type ControlRegistry struct {
	mu      sync.Mutex
	entries map[string]*ControlEntry
}

func NewControlRegistry() *ControlRegistry {
	return &ControlRegistry{
		entries: make(map[string]*ControlEntry),
	}
}

// Register creates a fresh entry for the build. A second concurrent
// pipeline for the same build is rejected.
func (r *ControlRegistry) Register(buildID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[buildID]; ok {
		return ErrAlreadyRegistered{BuildID: buildID}
	}
	r.entries[buildID] = &ControlEntry{}
	return nil
}

// RegisterExclusive creates an entry only while the table is empty.
// The emptiness check and the insert happen under one lock, so two
// deployments racing to start cannot both claim the table.
func (r *ControlRegistry) RegisterExclusive(buildID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) > 0 {
		return ErrDeploymentInProgress{}
	}
	r.entries[buildID] = &ControlEntry{}
	return nil
}

func (r *ControlRegistry) Pause(buildID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[buildID]
	if !ok {
		return ErrNotFound{BuildID: buildID}
	}
	if entry.Paused {
		return ErrAlreadyPaused{BuildID: buildID}
	}
	entry.Paused = true
	return nil
}

func (r *ControlRegistry) Resume(buildID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[buildID]
	if !ok {
		return ErrNotFound{BuildID: buildID}
	}
	if !entry.Paused {
		return ErrNotPaused{BuildID: buildID}
	}
	entry.Paused = false
	return nil
}

// Cancel flags the entry cancelled and terminates the live process, if
// any. Cancelling an already-cancelled entry is a no-op success.
func (r *ControlRegistry) Cancel(buildID string) error {
	r.mu.Lock()
	entry, ok := r.entries[buildID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound{BuildID: buildID}
	}
	if entry.Cancelled {
		r.mu.Unlock()
		return nil
	}
	entry.Cancelled = true
	process := entry.process
	entry.process = nil
	r.mu.Unlock()

	if process != nil {
		// killing outside the lock; a kill on docker/ssh can block
		_ = process.Kill()
	}
	return nil
}

// Unregister removes the entry; called only by the executor when the
// pipeline reaches a terminal state.
func (r *ControlRegistry) Unregister(buildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, buildID)
}

// SetProcess records the currently running process for the build so a
// cancel can terminate it. If the entry was cancelled while the
// process was starting, the process is killed immediately and false is
// returned.
func (r *ControlRegistry) SetProcess(buildID string, p ProcessHandle) bool {
	r.mu.Lock()
	entry, ok := r.entries[buildID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if entry.Cancelled {
		r.mu.Unlock()
		if p != nil {
			_ = p.Kill()
		}
		return false
	}
	entry.process = p
	r.mu.Unlock()
	return true
}

// ClearProcess detaches the finished process from the entry.
func (r *ControlRegistry) ClearProcess(buildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[buildID]; ok {
		entry.process = nil
	}
}

func (r *ControlRegistry) IsCancelled(buildID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[buildID]
	return ok && entry.Cancelled
}

func (r *ControlRegistry) IsPaused(buildID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[buildID]
	return ok && entry.Paused
}

// Active reports whether any pipeline currently holds an entry.
func (r *ControlRegistry) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries) > 0
}
