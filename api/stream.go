package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

// streamBoard pushes a board snapshot to the client after every change until
// the client disconnects or the board is discarded.
func (h *handlers) streamBoard(c echo.Context) error {
	owner := sessionFrom(c).UserKey
	id := c.Param("id")
	ch, unsubscribe, err := h.Boards.Subscribe(owner, id)
	if err != nil {
		return writeError(c, err)
	}
	defer unsubscribe()

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}
	c.Response().WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	for {
		snap, err := h.Boards.Snapshot(owner, id)
		if err != nil {
			return nil
		}
		data, err := sonic.Marshal(snap)
		if err != nil {
			h.Logger.WithError(err).Error("encode board snapshot")
			return err
		}
		if _, err := c.Response().Write([]byte("data: ")); err != nil {
			return err
		}
		if _, err := c.Response().Write(data); err != nil {
			return err
		}
		if _, err := c.Response().Write([]byte("\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		select {
		case <-ctx.Done():
			return nil
		case _, open := <-ch:
			if !open {
				return nil
			}
		}
	}
}
