package domain

// Category names one column of the task board.
type Category string

const (
	CategoryPending   Category = "pending"
	CategoryCompleted Category = "completed"
	CategoryDone      Category = "done"
)

// Categories returns the board columns in display order.
func Categories() []Category {
	return []Category{CategoryPending, CategoryCompleted, CategoryDone}
}

// ParseCategory reports whether s names a board column.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories() {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Task represents a single board item. Its category is the column holding it.
type Task struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
