package service

import (
	"sync"
	"testing"
	"time"

	"github.com/haatos/simple-cd/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (lc *lineCollector) logf(line string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.lines = append(lc.lines, line)
}

func (lc *lineCollector) all() []string {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return append([]string(nil), lc.lines...)
}

func TestRunLocalCommand(t *testing.T) {
	if settings.Settings == nil {
		settings.Settings = settings.NewSettings()
	}

	t.Run("success - output and announcement collected", func(t *testing.T) {
		// arrange
		r := NewControlRegistry()
		require.NoError(t, r.Register("b1"))
		defer r.Unregister("b1")
		lc := new(lineCollector)
		task := Task{Kind: TaskShell, Dir: t.TempDir(), Command: "sh", Args: []string{"-c", "echo hello"}}

		// act
		err := runLocalCommand(r, "b1", task, lc.logf)

		// assert
		assert.NoError(t, err)
		lines := lc.all()
		require.NotEmpty(t, lines)
		assert.Contains(t, lines[0], "sh -c echo hello")
		assert.Contains(t, lines, "hello\n")
	})
	t.Run("success - stderr lines are prefixed", func(t *testing.T) {
		// arrange
		r := NewControlRegistry()
		require.NoError(t, r.Register("b1"))
		defer r.Unregister("b1")
		lc := new(lineCollector)
		task := Task{Kind: TaskShell, Dir: t.TempDir(), Command: "sh", Args: []string{"-c", "echo oops 1>&2"}}

		// act
		err := runLocalCommand(r, "b1", task, lc.logf)

		// assert
		assert.NoError(t, err)
		assert.Contains(t, lc.all(), "LOG: oops\n")
	})
	t.Run("failure - nonzero exit maps to ProcessError", func(t *testing.T) {
		// arrange
		r := NewControlRegistry()
		require.NoError(t, r.Register("b1"))
		defer r.Unregister("b1")
		lc := new(lineCollector)
		task := Task{Kind: TaskShell, Dir: t.TempDir(), Command: "sh", Args: []string{"-c", "exit 3"}}

		// act
		err := runLocalCommand(r, "b1", task, lc.logf)

		// assert
		var procErr ProcessError
		require.ErrorAs(t, err, &procErr)
		assert.Equal(t, 3, procErr.ExitCode)
		assert.Equal(t, "sh", procErr.Command)
	})
	t.Run("failure - missing working directory is checked up front", func(t *testing.T) {
		// arrange
		r := NewControlRegistry()
		require.NoError(t, r.Register("b1"))
		defer r.Unregister("b1")
		task := Task{Kind: TaskShell, Dir: "/does/not/exist", Command: "sh", Args: []string{"-c", "true"}}

		// act
		err := runLocalCommand(r, "b1", task, func(string) {})

		// assert
		assert.ErrorAs(t, err, &MissingWorkingDirectoryError{})
	})
	t.Run("cancel kills the live process and its children", func(t *testing.T) {
		// arrange
		r := NewControlRegistry()
		require.NoError(t, r.Register("b1"))
		defer r.Unregister("b1")
		lc := new(lineCollector)
		// the grandchild inherits the output pipes; if it survived the
		// kill, the runner would block on them until the sleep expired
		task := Task{Kind: TaskShell, Dir: t.TempDir(), Command: "sh", Args: []string{"-c", "sleep 30 & wait"}}

		done := make(chan error, 1)
		go func() {
			done <- runLocalCommand(r, "b1", task, lc.logf)
		}()

		// act
		time.Sleep(200 * time.Millisecond)
		require.NoError(t, r.Cancel("b1"))

		// assert
		select {
		case err := <-done:
			assert.ErrorAs(t, err, &DeployCancelError{})
		case <-time.After(5 * time.Second):
			t.Fatal("cancel did not terminate the process")
		}
	})
}
