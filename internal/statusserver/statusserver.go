// Package statusserver provides the optional `--status-addr` HTTP
// endpoint that reports a run's current job status as JSON, for CI
// dashboards to poll instead of scraping console output.
package statusserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

// JobStatus is one job's reported state at a point in the run.
type JobStatus struct {
	Name     string `json:"name"`
	State    string `json:"state"` // pending, running, skipped, ok, failed
	ExitCode int    `json:"exit_code,omitempty"`
}

// RunStatus is the full snapshot backing GET /jobs.
type RunStatus struct {
	RunID     string      `json:"run_id"`
	Profile   string      `json:"profile"`
	StartedAt time.Time   `json:"started_at"`
	Jobs      []JobStatus `json:"jobs"`
	Done      bool        `json:"done"`
}

// HealthResponse is the /health endpoint's body shape.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the JSON error envelope shape.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Store is the thread-safe status snapshot the HTTP handlers read from.
// cmd/arcana resets it once a plan is built and records each job's
// final state after the executor returns.
type Store struct {
	mu     sync.RWMutex
	status RunStatus
	plan   []string
}

// NewStore returns a Store seeded with profile and the planned job names,
// in planned order, all initially pending.
func NewStore(profile string, jobNames []string) *Store {
	s := &Store{}
	s.Reset(profile, jobNames)
	return s
}

// Reset reseeds the store for a new plan/run, so a single Store (and the
// Server wrapping it) can be reused across `--watch` re-runs rather than
// swapped out from under the HTTP handlers on every re-plan. Each reset
// mints a fresh RunID so concurrent --status-addr consumers can tell a
// watch-triggered re-run apart from the one before it.
func (s *Store) Reset(profile string, jobNames []string) {
	jobs := make([]JobStatus, len(jobNames))
	plan := make([]string, len(jobNames))
	for i, name := range jobNames {
		jobs[i] = JobStatus{Name: name, State: "pending"}
		plan[i] = name
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = RunStatus{RunID: uuid.NewString(), Profile: profile, StartedAt: nowFunc(), Jobs: jobs}
	s.plan = plan
}

// RunID returns the current run's identifier, minted by the last Reset.
func (s *Store) RunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.RunID
}

// nowFunc is overridable so tests can pin a deterministic timestamp.
var nowFunc = time.Now

// SetJobState updates the named job's state and exit code.
func (s *Store) SetJobState(name, state string, exitCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.status.Jobs {
		if s.status.Jobs[i].Name == name {
			s.status.Jobs[i].State = state
			s.status.Jobs[i].ExitCode = exitCode
			return
		}
	}
}

// Finish marks the run as complete.
func (s *Store) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Done = true
}

// Snapshot returns a copy of the current status.
func (s *Store) Snapshot() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]JobStatus, len(s.status.Jobs))
	copy(jobs, s.status.Jobs)
	snap := s.status
	snap.Jobs = jobs
	return snap
}

// Plan returns the planned job names in execution order.
func (s *Store) Plan() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	plan := make([]string, len(s.plan))
	copy(plan, s.plan)
	return plan
}

// Job returns the named job's current status and whether it was found.
func (s *Store) Job(name string) (JobStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, j := range s.status.Jobs {
		if j.Name == name {
			return j, true
		}
	}
	return JobStatus{}, false
}

// Server serves the status endpoint over HTTP.
type Server struct {
	store  *Store
	router chi.Router
}

// NewServer builds a Server backed by store.
func NewServer(store *Store) *Server {
	s := &Server{store: store}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/plan", s.handlePlan)
	r.Get("/jobs", s.handleJobs)
	r.Get("/jobs/{name}", s.handleJob)

	s.router = r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Plan())
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := s.store.Job(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "unknown job " + name})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
