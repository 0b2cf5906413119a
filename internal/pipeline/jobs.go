package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of a build job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusAssembling JobStatus = "assembling"
	StatusConverting JobStatus = "converting"
	StatusChunking   JobStatus = "chunking"
	StatusWriting    JobStatus = "writing"
	StatusRendering  JobStatus = "rendering"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusUnchanged  JobStatus = "unchanged"
)

// Job tracks the state of a single build of one format.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	Format string `json:"format"`
	Sample bool   `json:"sample"`
	Single bool   `json:"single"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`
	Title  string    `json:"title"`

	Progress Progress `json:"progress"`
	Outputs  []string `json:"outputs"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	errors   []string
	warnings []string
}

// Progress tracks build progress.
type Progress struct {
	TotalChunks   int      `json:"total_chunks"`
	ChunksWritten int      `json:"chunks_written"`
	Pages         int      `json:"pages,omitempty"`
	Warnings      []string `json:"warnings"`
	Errors        []string `json:"errors"`
}

// NewJob returns a queued job for format.
func NewJob(format string) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Format:    format,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// LastHash returns the content hash of the most recent completed build
// of format, empty when there is none.
func (s *JobStore) LastHash(format string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *Job
	for _, job := range s.jobs {
		snap := job.Snapshot()
		if snap.Format != format || snap.Status != StatusCompleted {
			continue
		}
		if latest == nil || job.CreatedAt.After(latest.CreatedAt) {
			latest = job
		}
	}
	if latest == nil {
		return ""
	}
	return latest.Snapshot().ContentHash
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.UpdatedAt) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// AddWarning records a non-fatal problem.
func (j *Job) AddWarning(w string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.warnings = append(j.warnings, w)
	j.Progress.Warnings = j.warnings
	j.UpdatedAt = time.Now()
}

// IncrChunksWritten atomically increments chunks written.
func (j *Job) IncrChunksWritten(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksWritten += n
	j.UpdatedAt = time.Now()
}

// SetTotalChunks records total chunk count.
func (j *Job) SetTotalChunks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = n
	j.UpdatedAt = time.Now()
}

// SetPages records the page count of a rendered PDF.
func (j *Job) SetPages(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Pages = n
	j.UpdatedAt = time.Now()
}

// AddOutput records a file the build produced.
func (j *Job) AddOutput(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Outputs = append(j.Outputs, path)
	j.UpdatedAt = time.Now()
}

// SetContentHash records the hash of the converted markup.
func (j *Job) SetContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string        `json:"job_id"`
	Format      string        `json:"format"`
	Status      JobStatus     `json:"status"`
	Phase       string        `json:"phase"`
	Title       string        `json:"title"`
	Progress    Progress      `json:"progress"`
	Outputs     []string      `json:"outputs"`
	ContentHash string        `json:"content_hash,omitempty"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	warns := j.Progress.Warnings
	if warns == nil {
		warns = []string{}
	}
	return JobSnapshot{
		ID:     j.ID,
		Format: j.Format,
		Status: j.Status,
		Phase:  j.Phase,
		Title:  j.Title,
		Progress: Progress{
			TotalChunks:   j.Progress.TotalChunks,
			ChunksWritten: j.Progress.ChunksWritten,
			Pages:         j.Progress.Pages,
			Warnings:      append([]string(nil), warns...),
			Errors:        append([]string(nil), errs...),
		},
		Outputs:     append([]string(nil), j.Outputs...),
		ContentHash: j.ContentHash,
		Elapsed:     j.UpdatedAt.Sub(j.CreatedAt),
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
