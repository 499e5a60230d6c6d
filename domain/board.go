package domain

import (
	"github.com/google/uuid"
)

// Board holds tasks grouped by category in arrival order. It is not safe for
// concurrent use; callers serialize access (see board.Registry).
type Board struct {
	columns map[Category][]Task
	newID   func() string
}

// Snapshot is a copy of a board's columns suitable for rendering.
type Snapshot struct {
	Pending   []Task `json:"pending"`
	Completed []Task `json:"completed"`
	Done      []Task `json:"done"`
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	b := &Board{
		columns: make(map[Category][]Task, 3),
		newID:   newTaskID,
	}
	for _, c := range Categories() {
		b.columns[c] = []Task{}
	}
	return b
}

func newTaskID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CreateTask appends a new task to the pending column and returns its id.
// Empty names are accepted.
func (b *Board) CreateTask(name, description string) string {
	t := Task{ID: b.newID(), Name: name, Description: description}
	b.columns[CategoryPending] = append(b.columns[CategoryPending], t)
	return t.ID
}

// MoveTask moves the task with id from one column to the end of another.
// It does nothing when the task is not in from, when from equals to, or when
// either column is unknown.
func (b *Board) MoveTask(id string, from, to Category) {
	if from == to {
		return
	}
	src, ok := b.columns[from]
	if !ok {
		return
	}
	dst, ok := b.columns[to]
	if !ok {
		return
	}
	idx := indexOf(src, id)
	if idx < 0 {
		return
	}
	t := src[idx]
	b.columns[from] = without(src, idx)
	b.columns[to] = append(dst, t)
}

// DeleteTask removes the task with id from the given column if present.
func (b *Board) DeleteTask(id string, from Category) {
	src, ok := b.columns[from]
	if !ok {
		return
	}
	idx := indexOf(src, id)
	if idx < 0 {
		return
	}
	b.columns[from] = without(src, idx)
}

// Tasks returns a copy of the tasks in column c.
func (b *Board) Tasks(c Category) []Task {
	src := b.columns[c]
	out := make([]Task, len(src))
	copy(out, src)
	return out
}

// Len returns the number of tasks across all columns.
func (b *Board) Len() int {
	n := 0
	for _, col := range b.columns {
		n += len(col)
	}
	return n
}

// Snapshot copies the current columns.
func (b *Board) Snapshot() Snapshot {
	return Snapshot{
		Pending:   b.Tasks(CategoryPending),
		Completed: b.Tasks(CategoryCompleted),
		Done:      b.Tasks(CategoryDone),
	}
}

func indexOf(tasks []Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// without returns a fresh slice so snapshots taken earlier never observe the
// removal.
func without(tasks []Task, idx int) []Task {
	out := make([]Task, 0, len(tasks)-1)
	out = append(out, tasks[:idx]...)
	return append(out, tasks[idx+1:]...)
}
