package store

import "github.com/nibzard/tasktrack/internal/task"

// Draft holds the unsaved contents of the create form.
type Draft struct {
	Title       string
	Description string
}

// State is everything a view needs to render. Values returned by
// Store.State are copies.
type State struct {
	Tasks   []task.Task
	Loading bool
	Saving  bool
	// Err is the most recent error message, or empty.
	Err   string
	Draft Draft
}

// Total is the number of tasks in the collection.
func (s State) Total() int {
	return len(s.Tasks)
}

// Remaining is the number of tasks not yet completed.
func (s State) Remaining() int {
	return task.Remaining(s.Tasks)
}

func (s State) clone() State {
	s.Tasks = task.Clone(s.Tasks)
	return s
}
