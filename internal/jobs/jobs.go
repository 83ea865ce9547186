// Package jobs tracks background rebuild jobs started by uploads.
package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status represents the state of a rebuild job.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Job tracks one background index rebuild.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Filename string `json:"filename"`

	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetStatus updates the job state atomically. err is recorded only for
// StatusFailed.
func (j *Job) SetStatus(status Status, err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Error = err
	j.UpdatedAt = time.Now()
}

// Snapshot is a read-only, JSON-safe copy of job state.
type Snapshot struct {
	ID        string    `json:"job_id"`
	Filename  string    `json:"filename"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:        j.ID,
		Filename:  j.Filename,
		Status:    j.Status,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// Store is a thread-safe in-memory job registry with TTL eviction.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

// Create registers a new queued job for the uploaded filename.
func (s *Store) Create(filename string) *Job {
	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return job
}

func (s *Store) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes jobs idle past the TTL.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// StartCleanupLoop runs Cleanup periodically until stop is closed.
func (s *Store) StartCleanupLoop(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Cleanup()
			case <-stop:
				return
			}
		}
	}()
}
