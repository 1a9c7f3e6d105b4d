// Package store keeps the local task collection consistent with the task
// service.
//
// Toggles and deletions are applied locally before the backend answers and
// rolled back if it refuses. Creations wait for the backend because the
// server assigns ids. Every operation clears the previous error first and
// leaves at most one error message in the state.
//
// The mutex guards each local read-modify-write step and is never held
// across a request. Operations therefore interleave at request boundaries:
// whichever response lands last decides the final state.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/nibzard/tasktrack/internal/api"
	"github.com/nibzard/tasktrack/internal/task"
)

// ErrTitleRequired is returned by Create when the trimmed title is empty.
var ErrTitleRequired = errors.New("Title is required.")

// Remote is the subset of the task service the store needs.
type Remote interface {
	ListTasks(ctx context.Context) ([]task.Task, error)
	CreateTask(ctx context.Context, title, description string) (task.Task, error)
	SetCompleted(ctx context.Context, id int64, completed bool) (task.Task, error)
	DeleteTask(ctx context.Context, id int64) error
	Health(ctx context.Context) (api.Health, error)
}

// RollbackRecorder is told about every optimistic change that was undone.
type RollbackRecorder interface {
	ObserveRollback(op string)
}

// Store owns the task collection and the flags shown alongside it.
type Store struct {
	remote    Remote
	logger    *log.Logger
	recorder  RollbackRecorder
	mu        sync.Mutex
	state     State
	listeners []func(State)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for operation outcomes.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRollbackRecorder reports rollbacks, typically to metrics.
func WithRollbackRecorder(r RollbackRecorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// New creates a store. The state starts out loading, since nothing has been
// fetched yet.
func New(remote Remote, opts ...Option) *Store {
	s := &Store{
		remote: remote,
		logger: log.New(io.Discard),
		state:  State{Loading: true, Tasks: []task.Task{}},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to be called with a copy of the state after every
// change. fn runs with no lock held.
func (s *Store) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// update runs fn under the lock and then notifies listeners.
func (s *Store) update(fn func(st *State)) {
	s.mu.Lock()
	fn(&s.state)
	snapshot := s.state.clone()
	listeners := append([]func(State){}, s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

// Load replaces the collection with the server's, newest first.
func (s *Store) Load(ctx context.Context) error {
	s.update(func(st *State) {
		st.Err = ""
		st.Loading = true
	})

	tasks, err := s.remote.ListTasks(ctx)

	s.update(func(st *State) {
		st.Loading = false
		if err != nil {
			st.Err = err.Error()
			return
		}
		task.SortNewestFirst(tasks)
		st.Tasks = tasks
	})
	if err != nil {
		s.logger.Warn("load failed", "err", err)
		return err
	}
	s.logger.Debug("loaded tasks", "count", len(tasks))
	return nil
}

// Create validates the title locally, then creates the task and prepends
// the server's copy. The draft is cleared on success.
func (s *Store) Create(ctx context.Context, title, description string) (task.Task, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if title == "" {
		s.update(func(st *State) {
			st.Err = ErrTitleRequired.Error()
		})
		return task.Task{}, ErrTitleRequired
	}

	s.update(func(st *State) {
		st.Err = ""
		st.Saving = true
	})

	created, err := s.remote.CreateTask(ctx, title, description)

	s.update(func(st *State) {
		st.Saving = false
		if err != nil {
			st.Err = err.Error()
			return
		}
		// A load that raced ahead may already hold this id.
		st.Tasks = append([]task.Task{created}, task.Without(st.Tasks, created.ID)...)
		st.Draft = Draft{}
	})
	if err != nil {
		s.logger.Warn("create failed", "title", title, "err", err)
		return task.Task{}, err
	}
	s.logger.Info("task created", "id", created.ID)
	return created, nil
}

// ToggleCompleted flips t's completion locally, then asks the server to
// store the negation of t.Completed.
func (s *Store) ToggleCompleted(ctx context.Context, t task.Task) error {
	return s.StartToggle(t).Resolve(ctx)
}

// Remove deletes t locally, then on the server.
func (s *Store) Remove(ctx context.Context, t task.Task) error {
	return s.StartRemove(t).Resolve(ctx)
}

// StartToggle applies the optimistic toggle and returns the pending change.
// The local flip is visible in State as soon as StartToggle returns.
func (s *Store) StartToggle(t task.Task) *Pending {
	want := !t.Completed
	return s.begin(mutation{
		op:     "toggle",
		taskID: t.ID,
		apply: func(tasks []task.Task) []task.Task {
			if i := task.IndexOf(tasks, t.ID); i >= 0 {
				tasks[i].Completed = !tasks[i].Completed
			}
			return tasks
		},
		remote: func(ctx context.Context) (*task.Task, error) {
			updated, err := s.remote.SetCompleted(ctx, t.ID, want)
			if err != nil {
				return nil, err
			}
			return &updated, nil
		},
		reconcile: func(tasks []task.Task, canonical task.Task) []task.Task {
			if i := task.IndexOf(tasks, canonical.ID); i >= 0 {
				tasks[i] = canonical
			}
			return tasks
		},
		rollback: func(current, _ []task.Task) []task.Task {
			if i := task.IndexOf(current, t.ID); i >= 0 {
				current[i].Completed = t.Completed
			}
			return current
		},
	})
}

// StartRemove applies the optimistic delete and returns the pending change.
func (s *Store) StartRemove(t task.Task) *Pending {
	return s.begin(mutation{
		op:     "remove",
		taskID: t.ID,
		apply: func(tasks []task.Task) []task.Task {
			return task.Without(tasks, t.ID)
		},
		remote: func(ctx context.Context) (*task.Task, error) {
			return nil, s.remote.DeleteTask(ctx, t.ID)
		},
		rollback: func(_, snapshot []task.Task) []task.Task {
			return snapshot
		},
	})
}

// SetDraft stores the create form contents.
func (s *Store) SetDraft(title, description string) {
	s.update(func(st *State) {
		st.Draft = Draft{Title: title, Description: description}
	})
}

// ClearDraft empties the create form and dismisses the error.
func (s *Store) ClearDraft() {
	s.update(func(st *State) {
		st.Draft = Draft{}
		st.Err = ""
	})
}

// Health asks the backend for its status. It leaves the state untouched.
func (s *Store) Health(ctx context.Context) (api.Health, error) {
	h, err := s.remote.Health(ctx)
	if err != nil {
		return api.Health{}, fmt.Errorf("health check: %w", err)
	}
	return h, nil
}
