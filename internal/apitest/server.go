// Package apitest provides an in-memory task service for tests.
//
// Server implements the same REST contract as the real backend: list,
// create, patch completion, delete and health. Failures can be injected per
// HTTP method so callers can exercise rollback paths.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gorilla/mux"

	"github.com/nibzard/tasktrack/internal/task"
)

// timestampLayout matches the naive UTC timestamps of the reference backend.
const timestampLayout = "2006-01-02T15:04:05.000000"

type failure struct {
	status int
	body   string
}

// wireTask is the server-side encoding of a task.
type wireTask struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	CreatedAt   string `json:"created_at"`
}

// Server is an httptest server backed by an in-memory task map.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	tasks    map[int64]task.Task
	nextID   int64
	failures map[string][]failure
	hits     map[string]int
	now      func() time.Time
}

// NewServer starts a server and closes it when the test ends.
func NewServer(tb testing.TB) *Server {
	tb.Helper()
	s := &Server{
		tasks:    make(map[int64]task.Task),
		nextID:   1,
		failures: make(map[string][]failure),
		hits:     make(map[string]int),
		now:      func() time.Time { return time.Now().UTC() },
	}
	router := mux.NewRouter()
	registerRoutes(router, s)
	s.Server = httptest.NewServer(router)
	tb.Cleanup(s.Close)
	return s
}

func registerRoutes(router *mux.Router, s *Server) {
	router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	router.HandleFunc("/tasks", s.listTasks).Methods(http.MethodGet)
	router.HandleFunc("/tasks", s.createTask).Methods(http.MethodPost)
	router.HandleFunc("/tasks/{taskID:[0-9]+}", s.getTask).Methods(http.MethodGet)
	router.HandleFunc("/tasks/{taskID:[0-9]+}", s.patchTask).Methods(http.MethodPatch)
	router.HandleFunc("/tasks/{taskID:[0-9]+}", s.deleteTask).Methods(http.MethodDelete)
}

// Seed stores tasks as-is and advances the id counter past them.
func (s *Server) Seed(tasks ...task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = s.now()
		}
		s.tasks[t.ID] = t
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
	}
}

// FailNext makes the next request with the given method answer status and
// body instead of being handled. Calls queue up in order.
func (s *Server) FailNext(method string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = append(s.failures[method], failure{status: status, body: body})
}

// Hits returns how many requests arrived for a method, failed ones included.
func (s *Server) Hits(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method]
}

// TotalHits returns the number of requests of any method.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.hits {
		n += v
	}
	return n
}

// Tasks returns the stored tasks ordered by ascending id.
func (s *Server) Tasks() []task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *Server) sortedLocked() []task.Task {
	out := make([]task.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// intercept records the hit and serves an injected failure if one is queued.
func (s *Server) intercept(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	s.hits[r.Method]++
	queue := s.failures[r.Method]
	if len(queue) == 0 {
		s.mu.Unlock()
		return false
	}
	f := queue[0]
	s.failures[r.Method] = queue[1:]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(f.status)
	_, _ = w.Write([]byte(f.body))
	return true
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	s.mu.Lock()
	tasks := s.sortedLocked()
	s.mu.Unlock()

	out := make([]wireTask, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toWire(t))
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	var payload struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithDetail(w, http.StatusUnprocessableEntity, "Invalid request payload")
		return
	}
	if n := utf8.RuneCountInString(payload.Title); n < 1 || n > 120 {
		respondWithDetail(w, http.StatusUnprocessableEntity, "title must be 1-120 characters")
		return
	}
	if utf8.RuneCountInString(payload.Description) > 500 {
		respondWithDetail(w, http.StatusUnprocessableEntity, "description must be at most 500 characters")
		return
	}

	s.mu.Lock()
	t := task.Task{
		ID:          s.nextID,
		Title:       payload.Title,
		Description: payload.Description,
		CreatedAt:   s.now(),
	}
	s.tasks[t.ID] = t
	s.nextID++
	s.mu.Unlock()

	respondWithJSON(w, http.StatusCreated, toWire(t))
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	t, ok := s.lookup(r)
	if !ok {
		respondWithDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	respondWithJSON(w, http.StatusOK, toWire(t))
}

func (s *Server) patchTask(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	id, _ := strconv.ParseInt(mux.Vars(r)["taskID"], 10, 64)

	var completed *bool
	if raw := r.URL.Query().Get("completed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			respondWithDetail(w, http.StatusUnprocessableEntity, "completed must be a boolean")
			return
		}
		completed = &v
	}

	s.mu.Lock()
	t, ok := s.tasks[id]
	if ok && completed != nil {
		t.Completed = *completed
		s.tasks[id] = t
	}
	s.mu.Unlock()

	if !ok {
		respondWithDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	respondWithJSON(w, http.StatusOK, toWire(t))
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, r) {
		return
	}
	id, _ := strconv.ParseInt(mux.Vars(r)["taskID"], 10, 64)

	s.mu.Lock()
	_, ok := s.tasks[id]
	delete(s.tasks, id)
	s.mu.Unlock()

	if !ok {
		respondWithDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookup(r *http.Request) (task.Task, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["taskID"], 10, 64)
	if err != nil {
		return task.Task{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

func toWire(t task.Task) wireTask {
	return wireTask{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt.UTC().Format(timestampLayout),
	}
}

// respondWithJSON writes payload as a JSON response.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func respondWithDetail(w http.ResponseWriter, code int, detail string) {
	respondWithJSON(w, code, map[string]string{"detail": detail})
}
