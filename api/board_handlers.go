package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"taskflow/domain"
)

type mountResponse struct {
	ID    string          `json:"id"`
	Board domain.Snapshot `json:"board"`
}

type createTaskRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type moveTaskRequest struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
}

func parseCategory(raw string) (domain.Category, error) {
	cat, ok := domain.ParseCategory(raw)
	if !ok {
		return "", echo.NewHTTPError(http.StatusBadRequest, "unknown category "+raw)
	}
	return cat, nil
}

func (h *handlers) mountBoard(c echo.Context) error {
	s := sessionFrom(c)
	id := h.Boards.Mount(s.UserKey)
	snap, err := h.Boards.Snapshot(s.UserKey, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, mountResponse{ID: id, Board: snap})
}

func (h *handlers) getBoard(c echo.Context) error {
	snap, err := h.Boards.Snapshot(sessionFrom(c).UserKey, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *handlers) unmountBoard(c echo.Context) error {
	h.Boards.Unmount(sessionFrom(c).UserKey, c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) createTask(c echo.Context) error {
	var req createTaskRequest
	if err := h.readBody(c, &req); err != nil {
		return writeError(c, err)
	}
	var task domain.Task
	err := h.Boards.Do(sessionFrom(c).UserKey, c.Param("id"), func(b *domain.Board) {
		id := b.CreateTask(req.Name, req.Description)
		task = domain.Task{ID: id, Name: req.Name, Description: req.Description}
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *handlers) moveTask(c echo.Context) error {
	var req moveTaskRequest
	if err := h.readBody(c, &req); err != nil {
		return writeError(c, err)
	}
	from, err := parseCategory(req.From)
	if err != nil {
		return writeError(c, err)
	}
	to, err := parseCategory(req.To)
	if err != nil {
		return writeError(c, err)
	}
	err = h.Boards.Do(sessionFrom(c).UserKey, c.Param("id"), func(b *domain.Board) {
		b.MoveTask(req.ID, from, to)
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handlers) deleteTask(c echo.Context) error {
	from, err := parseCategory(c.Param("category"))
	if err != nil {
		return writeError(c, err)
	}
	taskID := c.Param("taskId")
	err = h.Boards.Do(sessionFrom(c).UserKey, c.Param("id"), func(b *domain.Board) {
		b.DeleteTask(taskID, from)
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
