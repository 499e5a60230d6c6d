package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskflow/domain"
)

const sessionContextKey = "session"

// requireSession resolves the caller's session and stores it on the context.
// Requests without a live session are handed to deny.
func requireSession(id Identity, deny func(c echo.Context, err error) error) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := tokenFromRequest(c.Request())
			if err != nil {
				return deny(c, err)
			}
			s, err := id.Authenticate(c.Request().Context(), token)
			if err != nil {
				return deny(c, err)
			}
			c.Set(sessionContextKey, s)
			return next(c)
		}
	}
}

// redirectToEntry sends browsers without a session back to the login view.
func redirectToEntry(c echo.Context, _ error) error {
	return c.Redirect(http.StatusFound, "/")
}

func unauthorized(c echo.Context, err error) error {
	if statusForError(err) == http.StatusServiceUnavailable {
		return writeError(c, err)
	}
	return c.JSON(http.StatusUnauthorized, errorResponse{Error: err.Error()})
}

func sessionFrom(c echo.Context) domain.Session {
	s, _ := c.Get(sessionContextKey).(domain.Session)
	return s
}
