package types

// TaskFields holds the user-editable attributes of a task.
type TaskFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Task is a task record as persisted in the task file.
// The ID is assigned at creation and never changes afterwards.
type Task struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Fields returns the task without its id.
func (t Task) Fields() TaskFields {
	return TaskFields{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
	}
}

// TaskUpdate is a partial set of task fields. Nil fields are left unchanged.
type TaskUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// Apply merges the set fields of u into t and returns the result.
func (u TaskUpdate) Apply(t Task) Task {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	return t
}
