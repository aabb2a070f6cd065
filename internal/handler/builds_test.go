package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haatos/simple-cd/internal/store"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type fakeBuildReader struct {
	builds     map[string]*store.Build
	all        []store.Build
	byUser     map[int64][]store.Build
	logsByID   map[string][]store.BuildLog
	deployedID string
}

func (f *fakeBuildReader) ReadBuildByID(ctx context.Context, buildID string) (*store.Build, error) {
	if b, ok := f.builds[buildID]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeBuildReader) ReadDeployedBuild(ctx context.Context) (*store.Build, error) {
	return f.ReadBuildByID(ctx, f.deployedID)
}

func (f *fakeBuildReader) ListBuildsPaginated(ctx context.Context, limit, offset int64) ([]store.Build, error) {
	return f.all, nil
}

func (f *fakeBuildReader) ListUserBuildsPaginated(ctx context.Context, userID, limit, offset int64) ([]store.Build, error) {
	return f.byUser[userID], nil
}

func (f *fakeBuildReader) CountBuilds(ctx context.Context) (int64, error) {
	return int64(len(f.all)), nil
}

func (f *fakeBuildReader) CountUserBuilds(ctx context.Context, userID int64) (int64, error) {
	return int64(len(f.byUser[userID])), nil
}

func (f *fakeBuildReader) ListBuildLogs(ctx context.Context, buildID string) ([]store.BuildLog, error) {
	return f.logsByID[buildID], nil
}

func newBuildTestContext(
	t *testing.T,
	target string,
	user *store.User,
) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user", user)
	return c, rec
}

func TestBuildHandler_GetBuilds(t *testing.T) {
	reader := &fakeBuildReader{
		all: []store.Build{
			{BuildID: "b1", BuildUserID: 7},
			{BuildID: "b2", BuildUserID: 8},
		},
		byUser: map[int64][]store.Build{
			7: {{BuildID: "b1", BuildUserID: 7}},
		},
	}

	t.Run("success - admin sees all builds", func(t *testing.T) {
		// arrange
		admin := &store.User{UserID: 1, UserRoleID: store.Admin}
		c, rec := newBuildTestContext(t, "/api/builds", admin)
		h := NewBuildHandler(reader, nil)

		// act
		err := h.GetBuilds(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"b1"`)
		assert.Contains(t, rec.Body.String(), `"b2"`)
		assert.Contains(t, rec.Body.String(), `"total":2`)
	})
	t.Run("success - operator sees only own builds", func(t *testing.T) {
		// arrange
		op := &store.User{UserID: 7, UserRoleID: store.Operator}
		c, rec := newBuildTestContext(t, "/api/builds", op)
		h := NewBuildHandler(reader, nil)

		// act
		err := h.GetBuilds(c)

		// assert
		assert.NoError(t, err)
		assert.Contains(t, rec.Body.String(), `"b1"`)
		assert.NotContains(t, rec.Body.String(), `"b2"`)
		assert.Contains(t, rec.Body.String(), `"total":1`)
	})
}

func TestBuildHandler_GetBuild(t *testing.T) {
	reader := &fakeBuildReader{
		builds: map[string]*store.Build{
			"b1": {BuildID: "b1", BuildUserID: 7, Status: store.StatusSuccess},
		},
	}

	t.Run("success - owner reads own build", func(t *testing.T) {
		// arrange
		op := &store.User{UserID: 7, UserRoleID: store.Operator}
		c, rec := newBuildTestContext(t, "/api/builds/b1", op)
		c.SetParamNames("build_id")
		c.SetParamValues("b1")
		h := NewBuildHandler(reader, nil)

		// act
		err := h.GetBuild(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"build_id":"b1"`)
	})
	t.Run("failure - operator reads another user's build", func(t *testing.T) {
		// arrange
		op := &store.User{UserID: 8, UserRoleID: store.Operator}
		c, _ := newBuildTestContext(t, "/api/builds/b1", op)
		c.SetParamNames("build_id")
		c.SetParamValues("b1")
		h := NewBuildHandler(reader, nil)

		// act
		err := h.GetBuild(c)

		// assert
		httpErr, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
	})
	t.Run("failure - unknown build", func(t *testing.T) {
		// arrange
		admin := &store.User{UserID: 1, UserRoleID: store.Admin}
		c, _ := newBuildTestContext(t, "/api/builds/nope", admin)
		c.SetParamNames("build_id")
		c.SetParamValues("nope")
		h := NewBuildHandler(reader, nil)

		// act
		err := h.GetBuild(c)

		// assert
		httpErr, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusNotFound, httpErr.Code)
	})
}

func TestBuildHandler_GetBuildLogs(t *testing.T) {
	// arrange
	reader := &fakeBuildReader{
		builds: map[string]*store.Build{
			"b1": {BuildID: "b1", BuildUserID: 7, Status: store.StatusSuccess},
		},
		logsByID: map[string][]store.BuildLog{
			"b1": {
				{LogID: 1, Line: "> [app] git pull\n"},
				{LogID: 2, Line: "deployment finished\n"},
			},
		},
	}
	admin := &store.User{UserID: 1, UserRoleID: store.Admin}
	c, rec := newBuildTestContext(t, "/api/builds/b1/logs", admin)
	c.SetParamNames("build_id")
	c.SetParamValues("b1")
	h := NewBuildHandler(reader, nil)

	// act
	err := h.GetBuildLogs(c)

	// assert
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "git pull")
	assert.Contains(t, rec.Body.String(), "deployment finished")
}

func TestRoleMiddleware(t *testing.T) {
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	t.Run("failure - operator hitting admin route", func(t *testing.T) {
		// arrange
		c, _ := newBuildTestContext(t, "/api/users", &store.User{UserID: 7, UserRoleID: store.Operator})

		// act
		err := RoleMiddleware(store.Admin)(next)(c)

		// assert
		httpErr, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
	})
	t.Run("success - admin passes through", func(t *testing.T) {
		// arrange
		c, rec := newBuildTestContext(t, "/api/users", &store.User{UserID: 1, UserRoleID: store.Admin})

		// act
		err := RoleMiddleware(store.Admin)(next)(c)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
