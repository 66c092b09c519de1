package dashboard

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// RunStatus is the lifecycle state of a triggered run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailure RunStatus = "failure"
	RunError   RunStatus = "error"
)

// Run records one run triggered from the menu.
type Run struct {
	ID         string     `json:"id"`
	Steps      []string   `json:"steps"`
	Policy     string     `json:"policy"`
	Debug      bool       `json:"debug"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

func (r *Run) clone() Run {
	dst := *r
	dst.Steps = slices.Clone(r.Steps)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		dst.FinishedAt = &t
	}
	return dst
}

// RunStore is a concurrency-safe in-memory history of runs. It keeps at most
// limit runs, evicting the oldest first.
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]*Run
	order []string // insertion order
	limit int
}

// NewRunStore returns an empty RunStore. A non-positive limit keeps every run.
func NewRunStore(limit int) *RunStore {
	return &RunStore{
		runs:  make(map[string]*Run),
		limit: limit,
	}
}

// Create stores a new run. It returns an error if the ID is taken.
func (s *RunStore) Create(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %q already exists", run.ID)
	}
	stored := run.clone()
	s.runs[run.ID] = &stored
	s.order = append(s.order, run.ID)

	if s.limit > 0 {
		for len(s.order) > s.limit {
			delete(s.runs, s.order[0])
			s.order = s.order[1:]
		}
	}
	return nil
}

// Get returns a copy of the run with the given ID.
func (s *RunStore) Get(id string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return r.clone(), true
}

// Update applies fn to the stored run under the write lock.
func (s *RunStore) Update(id string, fn func(*Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("run %q not found", id)
	}
	fn(r)
	return nil
}

// Delete removes a run. Unknown IDs are ignored.
func (s *RunStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return
	}
	delete(s.runs, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
}

// List returns copies of all runs in the order they were created.
func (s *RunStore) List() []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Run, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.runs[id].clone())
	}
	return out
}
