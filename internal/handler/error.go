package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	switch e := err.(type) {
	case *echo.HTTPError:
		c.Logger().Errorf(
			"handler internal error %s [%d]: %+v\n",
			c.Request().URL.Path, e.Code, e.Internal,
		)
		if err := c.JSON(e.Code, echo.Map{"error": e.Message}); err != nil {
			log.Printf("err returning json: %+v\n", err)
		}
	default:
		c.Logger().Errorf("handler error: %+v\n", e)
		if err := c.JSON(
			http.StatusInternalServerError,
			echo.Map{"error": "something went terribly wrong"},
		); err != nil {
			log.Printf("err returning json: %+v\n", err)
		}
	}
}

func isUniqueConstraintError(err error) bool {
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

func isForeignKeyConstraintError(err error) bool {
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code() == sqlite3.SQLITE_CONSTRAINT_TRIGGER ||
			sqErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
	}
	return false
}

func newError(c echo.Context, err error, status int, message string) error {
	e := echo.NewHTTPError(status, message)
	if err != nil {
		e = e.WithInternal(err)
	}
	return e
}
