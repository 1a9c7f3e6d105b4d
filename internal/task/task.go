package task

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// naiveLayouts are accepted for created_at values that carry no zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Task represents a single task as returned by the backend.
type Task struct {
	ID          int64     `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description" yaml:"description,omitempty"`
	Completed   bool      `json:"completed" yaml:"completed"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// UnmarshalJSON decodes a task, tolerating created_at values without a zone.
func (t *Task) UnmarshalJSON(data []byte) error {
	type wire struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Completed   bool   `json:"completed"`
		CreatedAt   string `json:"created_at"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	created, err := ParseTimestamp(w.CreatedAt)
	if err != nil {
		return fmt.Errorf("task %d: %w", w.ID, err)
	}
	*t = Task{
		ID:          w.ID,
		Title:       w.Title,
		Description: w.Description,
		Completed:   w.Completed,
		CreatedAt:   created,
	}
	return nil
}

// ParseTimestamp parses an RFC 3339 timestamp, or a naive ISO-8601 one as UTC.
// An empty string yields the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid created_at %q", s)
}

// SortNewestFirst orders tasks by descending id in place.
func SortNewestFirst(tasks []Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].ID > tasks[j].ID
	})
}

// IndexOf returns the position of the task with the given id, or -1.
func IndexOf(tasks []Task, id int64) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// Find returns the task with the given id.
func Find(tasks []Task, id int64) (Task, bool) {
	if i := IndexOf(tasks, id); i >= 0 {
		return tasks[i], true
	}
	return Task{}, false
}

// Remaining counts tasks that are not completed.
func Remaining(tasks []Task) int {
	n := 0
	for _, t := range tasks {
		if !t.Completed {
			n++
		}
	}
	return n
}

// Without returns a copy of tasks with the given id removed.
func Without(tasks []Task, id int64) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

// Clone returns a copy of the slice. A nil slice stays nil.
func Clone(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	copy(out, tasks)
	return out
}
