package fill

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrJobNotFound = errors.New("fill job not found")

// Job is a pending fill. The document server fetches Script once while
// building the document.
type Job struct {
	ID         string    `json:"id"`
	TemplateID string    `json:"template_id"`
	Model      string    `json:"model"`
	FileName   string    `json:"file_name"`
	Script     string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Jobs keeps fill jobs in memory until they expire.
type Jobs struct {
	mu   sync.Mutex
	jobs map[string]Job
	ttl  time.Duration
	now  func() time.Time
}

// NewJobs creates an empty job table whose entries live for ttl.
func NewJobs(ttl time.Duration) *Jobs {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Jobs{jobs: make(map[string]Job), ttl: ttl, now: time.Now}
}

// Add stores job under a fresh ID and returns it with ID and CreatedAt set.
func (j *Jobs) Add(job Job) Job {
	job.ID = uuid.NewString()
	job.CreatedAt = j.now()
	j.mu.Lock()
	j.jobs[job.ID] = job
	j.mu.Unlock()
	return job
}

// Get returns a live job.
func (j *Jobs) Get(id string) (Job, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	job, ok := j.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	if j.now().Sub(job.CreatedAt) > j.ttl {
		delete(j.jobs, id)
		return Job{}, ErrJobNotFound
	}
	return job, nil
}

// Remove drops a job; unknown IDs are ignored.
func (j *Jobs) Remove(id string) {
	j.mu.Lock()
	delete(j.jobs, id)
	j.mu.Unlock()
}

func (j *Jobs) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.jobs)
}

// Cleanup removes expired jobs and returns how many were dropped.
func (j *Jobs) Cleanup() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	n := 0
	for id, job := range j.jobs {
		if now.Sub(job.CreatedAt) > j.ttl {
			delete(j.jobs, id)
			n++
		}
	}
	return n
}

// Run calls Cleanup every interval until ctx is done.
func (j *Jobs) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			j.Cleanup()
		}
	}
}
