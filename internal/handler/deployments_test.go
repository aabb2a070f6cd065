package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haatos/simple-cd/internal/service"
	"github.com/haatos/simple-cd/internal/store"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockDeployService struct {
	mock.Mock
}

func (m *MockDeployService) StartDeployment(ctx context.Context, userID int64) (*store.Build, error) {
	args := m.Called(ctx, userID)
	var b *store.Build
	if args.Get(0) != nil {
		b = args.Get(0).(*store.Build)
	}
	return b, args.Error(1)
}

func (m *MockDeployService) Redeploy(ctx context.Context, userID int64, buildID string) (*store.Build, error) {
	args := m.Called(ctx, userID, buildID)
	var b *store.Build
	if args.Get(0) != nil {
		b = args.Get(0).(*store.Build)
	}
	return b, args.Error(1)
}

func (m *MockDeployService) Pause(buildID string) error {
	return m.Called(buildID).Error(0)
}

func (m *MockDeployService) Resume(buildID string) error {
	return m.Called(buildID).Error(0)
}

func (m *MockDeployService) Cancel(buildID string) error {
	return m.Called(buildID).Error(0)
}

func newDeployTestContext(
	t *testing.T,
	method, target string,
	user *store.User,
) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user", user)
	return c, rec
}

func operatorUser() *store.User {
	return &store.User{UserID: 7, UserRoleID: store.Operator, Username: "operator"}
}

func TestDeployHandler_PostDeployment(t *testing.T) {
	t.Run("success - deployment accepted", func(t *testing.T) {
		// arrange
		u := operatorUser()
		expected := &store.Build{BuildID: "b1", Status: store.StatusPending}
		mockService := new(MockDeployService)
		mockService.On("StartDeployment", mock.Anything, u.UserID).Return(expected, nil)

		c, rec := newDeployTestContext(t, http.MethodPost, "/api/deployments", u)
		h := NewDeployHandler(mockService, service.NewSSEClientMap[service.LogMessage]())

		// act
		err := h.PostDeployment(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), `"build_id":"b1"`)
	})
	t.Run("failure - another deployment in progress", func(t *testing.T) {
		// arrange
		u := operatorUser()
		mockService := new(MockDeployService)
		mockService.On("StartDeployment", mock.Anything, u.UserID).
			Return(nil, service.ErrDeploymentInProgress{})

		c, _ := newDeployTestContext(t, http.MethodPost, "/api/deployments", u)
		h := NewDeployHandler(mockService, service.NewSSEClientMap[service.LogMessage]())

		// act
		err := h.PostDeployment(c)

		// assert
		httpErr, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusConflict, httpErr.Code)
	})
}

func TestDeployHandler_PostPause(t *testing.T) {
	t.Run("success - pipeline paused", func(t *testing.T) {
		// arrange
		mockService := new(MockDeployService)
		mockService.On("Pause", "b1").Return(nil)

		c, rec := newDeployTestContext(t, http.MethodPost, "/api/builds/b1/pause", operatorUser())
		c.SetParamNames("build_id")
		c.SetParamValues("b1")
		h := NewDeployHandler(mockService, service.NewSSEClientMap[service.LogMessage]())

		// act
		err := h.PostPause(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	t.Run("failure - no running pipeline", func(t *testing.T) {
		// arrange
		mockService := new(MockDeployService)
		mockService.On("Pause", "b1").Return(service.ErrNotFound{BuildID: "b1"})

		c, _ := newDeployTestContext(t, http.MethodPost, "/api/builds/b1/pause", operatorUser())
		c.SetParamNames("build_id")
		c.SetParamValues("b1")
		h := NewDeployHandler(mockService, service.NewSSEClientMap[service.LogMessage]())

		// act
		err := h.PostPause(c)

		// assert
		httpErr, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusNotFound, httpErr.Code)
	})
	t.Run("failure - already paused", func(t *testing.T) {
		// arrange
		mockService := new(MockDeployService)
		mockService.On("Pause", "b1").Return(service.ErrAlreadyPaused{BuildID: "b1"})

		c, _ := newDeployTestContext(t, http.MethodPost, "/api/builds/b1/pause", operatorUser())
		c.SetParamNames("build_id")
		c.SetParamValues("b1")
		h := NewDeployHandler(mockService, service.NewSSEClientMap[service.LogMessage]())

		// act
		err := h.PostPause(c)

		// assert
		httpErr, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})
}

func TestDeployHandler_PostResume(t *testing.T) {
	t.Run("failure - not paused", func(t *testing.T) {
		// arrange
		mockService := new(MockDeployService)
		mockService.On("Resume", "b1").Return(service.ErrNotPaused{BuildID: "b1"})

		c, _ := newDeployTestContext(t, http.MethodPost, "/api/builds/b1/resume", operatorUser())
		c.SetParamNames("build_id")
		c.SetParamValues("b1")
		h := NewDeployHandler(mockService, service.NewSSEClientMap[service.LogMessage]())

		// act
		err := h.PostResume(c)

		// assert
		httpErr, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})
}

func TestDeployHandler_PostCancel(t *testing.T) {
	t.Run("success - cancel is idempotent", func(t *testing.T) {
		// arrange
		mockService := new(MockDeployService)
		mockService.On("Cancel", "b1").Return(nil).Twice()

		h := NewDeployHandler(mockService, service.NewSSEClientMap[service.LogMessage]())

		for n := 0; n < 2; n++ {
			c, rec := newDeployTestContext(t, http.MethodPost, "/api/builds/b1/cancel", operatorUser())
			c.SetParamNames("build_id")
			c.SetParamValues("b1")

			// act
			err := h.PostCancel(c)

			// assert
			assert.NoError(t, err)
			assert.Equal(t, http.StatusOK, rec.Code)
		}
		mockService.AssertExpectations(t)
	})
}

func TestDeployHandler_PostRedeploy(t *testing.T) {
	t.Run("failure - source build still running", func(t *testing.T) {
		// arrange
		u := operatorUser()
		mockService := new(MockDeployService)
		mockService.On("Redeploy", mock.Anything, u.UserID, "b1").
			Return(nil, service.ErrBuildRunning{BuildID: "b1"})

		c, _ := newDeployTestContext(t, http.MethodPost, "/api/builds/b1/redeploy", u)
		c.SetParamNames("build_id")
		c.SetParamValues("b1")
		h := NewDeployHandler(mockService, service.NewSSEClientMap[service.LogMessage]())

		// act
		err := h.PostRedeploy(c)

		// assert
		httpErr, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	})
}
