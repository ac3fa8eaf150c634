package models

import "time"

type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Task belongs to exactly one project. Either IsOpenToAll is set or the
// assignee list controls who may track time against it.
type Task struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Name        string    `json:"name"`
	IsOpenToAll bool      `json:"is_open_to_all"`
	AssigneeIDs []int64   `json:"assignee_ids,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsAssignable reports whether the user may track time against the task.
func (t *Task) IsAssignable(userID int64) bool {
	if t.IsOpenToAll {
		return true
	}
	for _, id := range t.AssigneeIDs {
		if id == userID {
			return true
		}
	}
	return false
}
