package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"taskflow/board"
	"taskflow/domain"
	"taskflow/feed"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusForError maps gateway and store failures onto HTTP statuses.
func statusForError(err error) int {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		switch authErr.Kind {
		case domain.AuthInvalidCredentials, domain.AuthInvalidToken:
			return http.StatusUnauthorized
		case domain.AuthEmailInUse:
			return http.StatusConflict
		case domain.AuthUnavailable:
			return http.StatusServiceUnavailable
		default:
			return http.StatusBadRequest
		}
	}
	var storeErr *domain.StoreError
	if errors.As(err, &storeErr) {
		return http.StatusBadGateway
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	switch {
	case errors.Is(err, board.ErrBoardNotFound):
		return http.StatusNotFound
	case errors.Is(err, feed.ErrInvalidName), errors.Is(err, feed.ErrEmptyFile):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func messageForError(err error, status int) string {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if msg, ok := httpErr.Message.(string); ok {
			return msg
		}
	}
	if status == http.StatusInternalServerError {
		return http.StatusText(status)
	}
	return err.Error()
}

func writeError(c echo.Context, err error) error {
	status := statusForError(err)
	return c.JSON(status, errorResponse{Error: messageForError(err, status)})
}
