package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeProcess struct {
	killed int
}

func (p *fakeProcess) Kill() error {
	p.killed++
	return nil
}

func TestControlRegistry_Register(t *testing.T) {
	t.Run("success - fresh entry", func(t *testing.T) {
		// arrange
		r := NewControlRegistry()

		// act
		err := r.Register("b1")

		// assert
		assert.NoError(t, err)
		assert.False(t, r.IsPaused("b1"))
		assert.False(t, r.IsCancelled("b1"))
		assert.True(t, r.Active())
	})
	t.Run("failure - duplicate registration", func(t *testing.T) {
		// arrange
		r := NewControlRegistry()
		assert.NoError(t, r.Register("b1"))

		// act
		err := r.Register("b1")

		// assert
		assert.ErrorAs(t, err, &ErrAlreadyRegistered{})
	})
}

func TestControlRegistry_RegisterExclusive(t *testing.T) {
	t.Run("success - empty table", func(t *testing.T) {
		// arrange
		r := NewControlRegistry()

		// act
		err := r.RegisterExclusive("b1")

		// assert
		assert.NoError(t, err)
		assert.True(t, r.Active())
	})
	t.Run("failure - another pipeline holds the table", func(t *testing.T) {
		// arrange
		r := NewControlRegistry()
		assert.NoError(t, r.RegisterExclusive("b1"))

		// act
		err := r.RegisterExclusive("b2")

		// assert
		assert.ErrorAs(t, err, &ErrDeploymentInProgress{})
		assert.ErrorAs(t, r.Pause("b2"), &ErrNotFound{})
	})
	t.Run("success - table free again after unregister", func(t *testing.T) {
		// arrange
		r := NewControlRegistry()
		assert.NoError(t, r.RegisterExclusive("b1"))
		r.Unregister("b1")

		// act + assert
		assert.NoError(t, r.RegisterExclusive("b2"))
	})
}

func TestControlRegistry_PauseResume(t *testing.T) {
	t.Run("success - pause then resume", func(t *testing.T) {
		// arrange
		r := NewControlRegistry()
		assert.NoError(t, r.Register("b1"))

		// act + assert
		assert.NoError(t, r.Pause("b1"))
		assert.True(t, r.IsPaused("b1"))
		assert.NoError(t, r.Resume("b1"))
		assert.False(t, r.IsPaused("b1"))
	})
	t.Run("failure - pause twice", func(t *testing.T) {
		r := NewControlRegistry()
		assert.NoError(t, r.Register("b1"))
		assert.NoError(t, r.Pause("b1"))

		err := r.Pause("b1")

		assert.ErrorAs(t, err, &ErrAlreadyPaused{})
	})
	t.Run("failure - resume while not paused", func(t *testing.T) {
		r := NewControlRegistry()
		assert.NoError(t, r.Register("b1"))

		err := r.Resume("b1")

		assert.ErrorAs(t, err, &ErrNotPaused{})
	})
	t.Run("failure - unknown build", func(t *testing.T) {
		r := NewControlRegistry()

		assert.ErrorAs(t, r.Pause("nope"), &ErrNotFound{})
		assert.ErrorAs(t, r.Resume("nope"), &ErrNotFound{})
		assert.ErrorAs(t, r.Cancel("nope"), &ErrNotFound{})
	})
}

func TestControlRegistry_Cancel(t *testing.T) {
	t.Run("success - cancel kills the live process once", func(t *testing.T) {
		// arrange
		r := NewControlRegistry()
		assert.NoError(t, r.Register("b1"))
		p := &fakeProcess{}
		assert.True(t, r.SetProcess("b1", p))

		// act
		err := r.Cancel("b1")

		// assert
		assert.NoError(t, err)
		assert.True(t, r.IsCancelled("b1"))
		assert.Equal(t, 1, p.killed)
	})
	t.Run("success - second cancel is a no-op", func(t *testing.T) {
		// arrange
		r := NewControlRegistry()
		assert.NoError(t, r.Register("b1"))
		p := &fakeProcess{}
		assert.True(t, r.SetProcess("b1", p))
		assert.NoError(t, r.Cancel("b1"))

		// act
		err := r.Cancel("b1")

		// assert
		assert.NoError(t, err)
		assert.Equal(t, 1, p.killed)
	})
	t.Run("process registered after cancel is killed immediately", func(t *testing.T) {
		// arrange
		r := NewControlRegistry()
		assert.NoError(t, r.Register("b1"))
		assert.NoError(t, r.Cancel("b1"))
		p := &fakeProcess{}

		// act
		ok := r.SetProcess("b1", p)

		// assert
		assert.False(t, ok)
		assert.Equal(t, 1, p.killed)
	})
}

func TestControlRegistry_Unregister(t *testing.T) {
	// arrange
	r := NewControlRegistry()
	assert.NoError(t, r.Register("b1"))

	// act
	r.Unregister("b1")

	// assert
	assert.False(t, r.Active())
	assert.ErrorAs(t, r.Pause("b1"), &ErrNotFound{})
	assert.NoError(t, r.Register("b1"))
}
