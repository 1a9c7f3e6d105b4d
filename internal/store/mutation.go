package store

import (
	"context"
	"errors"
	"sync"

	"github.com/nibzard/tasktrack/internal/task"
)

// ErrAlreadyResolved is returned when a Pending change is resolved twice.
var ErrAlreadyResolved = errors.New("pending change already resolved")

// mutation describes one optimistic change. apply, reconcile and rollback
// receive slices they may modify and return the new collection.
type mutation struct {
	op     string
	taskID int64
	apply  func(tasks []task.Task) []task.Task
	// remote returns the server's canonical task, or nil when there is none.
	remote    func(ctx context.Context) (*task.Task, error)
	reconcile func(tasks []task.Task, canonical task.Task) []task.Task
	rollback  func(current, snapshot []task.Task) []task.Task
}

// Pending is an optimistic change that is visible locally and waiting for
// the server.
type Pending struct {
	store    *Store
	m        mutation
	snapshot []task.Task
	once     sync.Once
}

// begin snapshots the collection and applies the change locally.
func (s *Store) begin(m mutation) *Pending {
	p := &Pending{store: s, m: m}
	s.update(func(st *State) {
		st.Err = ""
		p.snapshot = task.Clone(st.Tasks)
		st.Tasks = m.apply(task.Clone(st.Tasks))
	})
	return p
}

// Resolve sends the change to the server. On success the canonical task, if
// any, replaces the local entry. On failure the change is rolled back and the
// error becomes the state's message.
func (p *Pending) Resolve(ctx context.Context) error {
	err := ErrAlreadyResolved
	p.once.Do(func() {
		err = p.resolve(ctx)
	})
	return err
}

func (p *Pending) resolve(ctx context.Context) error {
	s := p.store
	canonical, err := p.m.remote(ctx)

	if err != nil {
		s.update(func(st *State) {
			st.Tasks = p.m.rollback(task.Clone(st.Tasks), task.Clone(p.snapshot))
			st.Err = err.Error()
		})
		if s.recorder != nil {
			s.recorder.ObserveRollback(p.m.op)
		}
		s.logger.Warn("rolled back", "op", p.m.op, "id", p.m.taskID, "err", err)
		return err
	}

	if canonical != nil && p.m.reconcile != nil {
		s.update(func(st *State) {
			st.Tasks = p.m.reconcile(task.Clone(st.Tasks), *canonical)
		})
	}
	s.logger.Debug("confirmed", "op", p.m.op, "id", p.m.taskID)
	return nil
}

// TaskID is the id of the task this change affects.
func (p *Pending) TaskID() int64 {
	return p.m.taskID
}
