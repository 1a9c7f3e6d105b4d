package store

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/nibzard/tasktrack/internal/api"
	"github.com/nibzard/tasktrack/internal/apitest"
	"github.com/nibzard/tasktrack/internal/task"
)

func newTestStore(t *testing.T, seed ...task.Task) (*Store, *apitest.Server) {
	t.Helper()
	srv := apitest.NewServer(t)
	srv.Seed(seed...)
	return New(api.New(srv.URL)), srv
}

func ids(tasks []task.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mustLoad(t *testing.T, s *Store) {
	t.Helper()
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestNewStartsLoading(t *testing.T) {
	s := New(nil)
	st := s.State()
	if !st.Loading {
		t.Error("expected a fresh store to be loading")
	}
	if st.Tasks == nil || len(st.Tasks) != 0 {
		t.Errorf("expected empty task list, got %v", st.Tasks)
	}
}

func TestLoad(t *testing.T) {
	t.Run("sorts newest first and clears loading", func(t *testing.T) {
		s, _ := newTestStore(t,
			task.Task{ID: 2, Title: "b"},
			task.Task{ID: 9, Title: "c"},
			task.Task{ID: 1, Title: "a"},
		)
		mustLoad(t, s)

		st := s.State()
		if got, want := ids(st.Tasks), []int64{9, 2, 1}; !equalIDs(got, want) {
			t.Errorf("ids: got %v, want %v", got, want)
		}
		if st.Loading {
			t.Error("loading should be false after success")
		}
		if st.Err != "" {
			t.Errorf("unexpected error %q", st.Err)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		s, _ := newTestStore(t, task.Task{ID: 1, Title: "a"}, task.Task{ID: 2, Title: "b", Completed: true})
		mustLoad(t, s)
		first := s.State().Tasks
		mustLoad(t, s)
		second := s.State().Tasks

		if len(first) != len(second) {
			t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
		}
		for i := range first {
			if first[i].ID != second[i].ID || first[i].Completed != second[i].Completed || first[i].Title != second[i].Title {
				t.Errorf("position %d differs: %+v vs %+v", i, first[i], second[i])
			}
		}
	})

	t.Run("failure keeps collection and surfaces error", func(t *testing.T) {
		s, srv := newTestStore(t, task.Task{ID: 1, Title: "a"})
		mustLoad(t, s)

		srv.FailNext(http.MethodGet, http.StatusInternalServerError, "database down")
		err := s.Load(context.Background())
		if err == nil {
			t.Fatal("expected error")
		}

		st := s.State()
		if st.Err != "HTTP 500 Internal Server Error - database down" {
			t.Errorf("Err: got %q", st.Err)
		}
		if st.Loading {
			t.Error("loading should be false after failure")
		}
		if got := ids(st.Tasks); !equalIDs(got, []int64{1}) {
			t.Errorf("collection changed: %v", got)
		}
	})

	t.Run("clears a previous error", func(t *testing.T) {
		s, srv := newTestStore(t)
		srv.FailNext(http.MethodGet, http.StatusBadGateway, "")
		_ = s.Load(context.Background())
		if s.State().Err == "" {
			t.Fatal("expected error after failed load")
		}
		mustLoad(t, s)
		if s.State().Err != "" {
			t.Errorf("error not cleared: %q", s.State().Err)
		}
	})
}

func TestCreate(t *testing.T) {
	t.Run("blank title makes no request", func(t *testing.T) {
		for _, title := range []string{"", "   ", "\t\n"} {
			s, srv := newTestStore(t, task.Task{ID: 1, Title: "a"})
			mustLoad(t, s)
			before := srv.TotalHits()

			_, err := s.Create(context.Background(), title, "desc")
			if !errors.Is(err, ErrTitleRequired) {
				t.Fatalf("Create(%q): got %v, want ErrTitleRequired", title, err)
			}
			if srv.TotalHits() != before {
				t.Errorf("Create(%q) made a request", title)
			}
			st := s.State()
			if st.Err != "Title is required." {
				t.Errorf("Err: got %q", st.Err)
			}
			if got := ids(st.Tasks); !equalIDs(got, []int64{1}) {
				t.Errorf("collection changed: %v", got)
			}
		}
	})

	t.Run("success prepends trimmed task and clears draft", func(t *testing.T) {
		s, srv := newTestStore(t, task.Task{ID: 1, Title: "a"}, task.Task{ID: 2, Title: "b"})
		mustLoad(t, s)
		s.SetDraft("  new  ", "  details ")

		created, err := s.Create(context.Background(), "  new  ", "  details ")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if created.ID != 3 || created.Title != "new" || created.Description != "details" {
			t.Errorf("created: got %+v", created)
		}

		st := s.State()
		if got, want := ids(st.Tasks), []int64{3, 2, 1}; !equalIDs(got, want) {
			t.Errorf("ids: got %v, want %v", got, want)
		}
		if st.Draft != (Draft{}) {
			t.Errorf("draft not cleared: %+v", st.Draft)
		}
		if st.Saving {
			t.Error("saving should be false after success")
		}
		if stored := srv.Tasks(); len(stored) != 3 || stored[2].Title != "new" {
			t.Errorf("server state: %+v", stored)
		}
	})

	t.Run("failure leaves collection and draft", func(t *testing.T) {
		s, srv := newTestStore(t, task.Task{ID: 1, Title: "a"})
		mustLoad(t, s)
		s.SetDraft("keep me", "")
		srv.FailNext(http.MethodPost, http.StatusServiceUnavailable, "")

		_, err := s.Create(context.Background(), "keep me", "")
		if err == nil {
			t.Fatal("expected error")
		}
		st := s.State()
		if got := ids(st.Tasks); !equalIDs(got, []int64{1}) {
			t.Errorf("collection changed: %v", got)
		}
		if st.Err != "HTTP 503 Service Unavailable" {
			t.Errorf("Err: got %q", st.Err)
		}
		if st.Draft.Title != "keep me" {
			t.Errorf("draft lost: %+v", st.Draft)
		}
		if st.Saving {
			t.Error("saving should be false after failure")
		}
	})
}

func TestToggleCompleted(t *testing.T) {
	t.Run("flips immediately and reverts on failure", func(t *testing.T) {
		s, srv := newTestStore(t, task.Task{ID: 2, Title: "b"})
		mustLoad(t, s)
		srv.FailNext(http.MethodPatch, http.StatusInternalServerError, "")

		orig := s.State().Tasks[0]
		pending := s.StartToggle(orig)
		if !s.State().Tasks[0].Completed {
			t.Fatal("toggle not applied before the request resolved")
		}

		err := pending.Resolve(context.Background())
		if err == nil {
			t.Fatal("expected error")
		}
		st := s.State()
		if st.Tasks[0].Completed {
			t.Error("toggle not reverted after failure")
		}
		if !strings.Contains(st.Err, "HTTP") {
			t.Errorf("Err: got %q, want it to mention HTTP", st.Err)
		}
	})

	t.Run("success keeps the server copy", func(t *testing.T) {
		s, srv := newTestStore(t, task.Task{ID: 1, Title: "a"}, task.Task{ID: 2, Title: "b"})
		mustLoad(t, s)

		if err := s.ToggleCompleted(context.Background(), s.State().Tasks[1]); err != nil {
			t.Fatalf("ToggleCompleted: %v", err)
		}
		st := s.State()
		if got, want := ids(st.Tasks), []int64{2, 1}; !equalIDs(got, want) {
			t.Errorf("order changed: %v", got)
		}
		if !st.Tasks[1].Completed || st.Tasks[0].Completed {
			t.Errorf("wrong task toggled: %+v", st.Tasks)
		}
		if stored := srv.Tasks(); !stored[0].Completed {
			t.Error("server not updated")
		}
	})

	t.Run("clears previous error", func(t *testing.T) {
		s, _ := newTestStore(t, task.Task{ID: 1, Title: "a"})
		mustLoad(t, s)
		_, _ = s.Create(context.Background(), " ", "")
		pending := s.StartToggle(s.State().Tasks[0])
		if s.State().Err != "" {
			t.Errorf("error not cleared at start: %q", s.State().Err)
		}
		_ = pending.Resolve(context.Background())
	})
}

func TestRemove(t *testing.T) {
	t.Run("removes immediately and restores snapshot on failure", func(t *testing.T) {
		s, srv := newTestStore(t,
			task.Task{ID: 1, Title: "a"},
			task.Task{ID: 2, Title: "b", Completed: true},
			task.Task{ID: 3, Title: "c"},
		)
		mustLoad(t, s)
		srv.FailNext(http.MethodDelete, http.StatusInternalServerError, "nope")

		pending := s.StartRemove(s.State().Tasks[1])
		if got, want := ids(s.State().Tasks), []int64{3, 1}; !equalIDs(got, want) {
			t.Fatalf("after optimistic delete: got %v, want %v", got, want)
		}

		if err := pending.Resolve(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		st := s.State()
		if got, want := ids(st.Tasks), []int64{3, 2, 1}; !equalIDs(got, want) {
			t.Errorf("after rollback: got %v, want %v", got, want)
		}
		if !st.Tasks[1].Completed {
			t.Error("restored task lost its fields")
		}
		if st.Err != "HTTP 500 Internal Server Error - nope" {
			t.Errorf("Err: got %q", st.Err)
		}
	})

	t.Run("success stays removed", func(t *testing.T) {
		s, srv := newTestStore(t, task.Task{ID: 1, Title: "a"}, task.Task{ID: 2, Title: "b"})
		mustLoad(t, s)

		if err := s.Remove(context.Background(), s.State().Tasks[0]); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if got := ids(s.State().Tasks); !equalIDs(got, []int64{1}) {
			t.Errorf("got %v", got)
		}
		if stored := srv.Tasks(); len(stored) != 1 || stored[0].ID != 1 {
			t.Errorf("server state: %+v", stored)
		}
	})

	t.Run("failure for missing task restores it", func(t *testing.T) {
		s, srv := newTestStore(t, task.Task{ID: 1, Title: "a"})
		mustLoad(t, s)
		// Removed behind our back; the server answers 404.
		srv.FailNext(http.MethodDelete, http.StatusNotFound, `{"detail":"Task not found"}`)

		err := s.Remove(context.Background(), s.State().Tasks[0])
		if !api.IsStatus(err, http.StatusNotFound) {
			t.Fatalf("expected 404, got %v", err)
		}
		if got := ids(s.State().Tasks); !equalIDs(got, []int64{1}) {
			t.Errorf("got %v", got)
		}
	})
}

func TestPendingResolveTwice(t *testing.T) {
	s, _ := newTestStore(t, task.Task{ID: 1, Title: "a"})
	mustLoad(t, s)

	p := s.StartToggle(s.State().Tasks[0])
	if p.TaskID() != 1 {
		t.Errorf("TaskID: got %d", p.TaskID())
	}
	if err := p.Resolve(context.Background()); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if err := p.Resolve(context.Background()); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second Resolve: got %v", err)
	}
}

func TestClearDraft(t *testing.T) {
	s, _ := newTestStore(t)
	s.SetDraft("t", "d")
	_, _ = s.Create(context.Background(), "", "")

	s.ClearDraft()
	st := s.State()
	if st.Draft != (Draft{}) || st.Err != "" {
		t.Errorf("got draft %+v err %q", st.Draft, st.Err)
	}
}

func TestStateIsACopy(t *testing.T) {
	s, _ := newTestStore(t, task.Task{ID: 1, Title: "a"})
	mustLoad(t, s)

	st := s.State()
	st.Tasks[0].Title = "mutated"
	if s.State().Tasks[0].Title != "a" {
		t.Error("State must return a copy")
	}
}

func TestSubscribe(t *testing.T) {
	s, _ := newTestStore(t, task.Task{ID: 1, Title: "a"})
	var mu sync.Mutex
	var seen []State
	s.Subscribe(func(st State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, st)
	})

	mustLoad(t, s)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(seen))
	}
	if !seen[0].Loading || seen[1].Loading {
		t.Errorf("loading flags: %v then %v", seen[0].Loading, seen[1].Loading)
	}
	if len(seen[1].Tasks) != 1 {
		t.Errorf("final notification tasks: %v", seen[1].Tasks)
	}
}

func TestHealth(t *testing.T) {
	s, srv := newTestStore(t)
	h, err := s.Health(context.Background())
	if err != nil || h.Status != "ok" {
		t.Fatalf("Health: %+v, %v", h, err)
	}

	srv.FailNext(http.MethodGet, http.StatusServiceUnavailable, "")
	if _, err := s.Health(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if s.State().Err != "" {
		t.Error("health failures must not touch the error slot")
	}
}

type rollbackCounter struct {
	mu  sync.Mutex
	ops []string
}

func (r *rollbackCounter) ObserveRollback(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func TestRollbackRecorder(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.Seed(task.Task{ID: 1, Title: "a"}, task.Task{ID: 2, Title: "b"})
	rec := &rollbackCounter{}
	s := New(api.New(srv.URL), WithRollbackRecorder(rec))
	mustLoad(t, s)

	srv.FailNext(http.MethodPatch, http.StatusInternalServerError, "")
	srv.FailNext(http.MethodDelete, http.StatusInternalServerError, "")
	_ = s.ToggleCompleted(context.Background(), s.State().Tasks[0])
	_ = s.Remove(context.Background(), s.State().Tasks[1])
	_ = s.ToggleCompleted(context.Background(), s.State().Tasks[1])

	if got := rec.ops; len(got) != 2 || got[0] != "toggle" || got[1] != "remove" {
		t.Errorf("rollbacks: got %v", got)
	}
}

// stubRemote lets tests script the backend's answers.
type stubRemote struct {
	setCompleted func(ctx context.Context, id int64, completed bool) (task.Task, error)
}

func (r *stubRemote) ListTasks(context.Context) ([]task.Task, error) { return nil, nil }

func (r *stubRemote) CreateTask(context.Context, string, string) (task.Task, error) {
	return task.Task{}, errors.New("not scripted")
}

func (r *stubRemote) SetCompleted(ctx context.Context, id int64, completed bool) (task.Task, error) {
	return r.setCompleted(ctx, id, completed)
}

func (r *stubRemote) DeleteTask(context.Context, int64) error { return nil }

func (r *stubRemote) Health(context.Context) (api.Health, error) { return api.Health{Status: "ok"}, nil }

func seedState(s *Store, tasks ...task.Task) {
	s.update(func(st *State) {
		st.Loading = false
		st.Tasks = tasks
	})
}

func TestToggleReconcilesWithServerCopy(t *testing.T) {
	remote := &stubRemote{
		setCompleted: func(_ context.Context, id int64, completed bool) (task.Task, error) {
			return task.Task{ID: id, Title: "normalized", Completed: completed}, nil
		},
	}
	s := New(remote)
	seedState(s, task.Task{ID: 4, Title: "raw"})

	if err := s.ToggleCompleted(context.Background(), s.State().Tasks[0]); err != nil {
		t.Fatalf("ToggleCompleted: %v", err)
	}
	got := s.State().Tasks[0]
	if got.Title != "normalized" || !got.Completed {
		t.Errorf("got %+v", got)
	}
}

func TestToggleSendsNegationOfGivenTask(t *testing.T) {
	var sent []bool
	remote := &stubRemote{
		setCompleted: func(_ context.Context, id int64, completed bool) (task.Task, error) {
			sent = append(sent, completed)
			return task.Task{ID: id, Completed: completed}, nil
		},
	}
	s := New(remote)
	seedState(s, task.Task{ID: 1, Completed: true})

	_ = s.ToggleCompleted(context.Background(), task.Task{ID: 1, Completed: true})
	if len(sent) != 1 || sent[0] != false {
		t.Errorf("sent: %v", sent)
	}
}

func TestConcurrentTogglesLastResponseWins(t *testing.T) {
	first := make(chan struct{})
	remote := &stubRemote{
		setCompleted: func(_ context.Context, id int64, completed bool) (task.Task, error) {
			if completed {
				// The first request answers only after the second finished.
				<-first
			}
			return task.Task{ID: id, Completed: completed}, nil
		},
	}
	s := New(remote)
	seedState(s, task.Task{ID: 1})

	p1 := s.StartToggle(s.State().Tasks[0])
	p2 := s.StartToggle(s.State().Tasks[0])
	if s.State().Tasks[0].Completed {
		t.Fatal("two optimistic flips should cancel out")
	}

	done := make(chan error, 1)
	go func() { done <- p1.Resolve(context.Background()) }()

	if err := p2.Resolve(context.Background()); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	close(first)
	if err := <-done; err != nil {
		t.Fatalf("first Resolve: %v", err)
	}

	if !s.State().Tasks[0].Completed {
		t.Error("the response that landed last should decide the state")
	}
}

func TestIndependentTasksDoNotInterfere(t *testing.T) {
	s, srv := newTestStore(t, task.Task{ID: 1, Title: "a"}, task.Task{ID: 2, Title: "b"})
	mustLoad(t, s)
	srv.FailNext(http.MethodPatch, http.StatusInternalServerError, "")

	st := s.State()
	p1 := s.StartToggle(st.Tasks[0])
	if err := p1.Resolve(context.Background()); err == nil {
		t.Fatal("expected first toggle to fail")
	}
	p2 := s.StartToggle(st.Tasks[1])
	if err := p2.Resolve(context.Background()); err != nil {
		t.Fatalf("second toggle: %v", err)
	}

	final := s.State()
	if final.Tasks[0].Completed {
		t.Error("failed toggle was not reverted")
	}
	if !final.Tasks[1].Completed {
		t.Error("successful toggle was lost")
	}
	if final.Err != "" {
		t.Errorf("second operation should clear the error, got %q", final.Err)
	}
}
