package api

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "complete"
	JobStatusFailed     = "failed"
)

// GenerationJob tracks one asynchronous pack-generation request that the
// frontend polls.
type GenerationJob struct {
	ID        string    `json:"jobId"`
	Status    string    `json:"status"`
	Step      string    `json:"step,omitempty"`
	Message   string    `json:"message,omitempty"`
	PackID    string    `json:"packId,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type JobManager struct {
	mu   sync.RWMutex
	jobs map[string]*GenerationJob
}

func NewJobManager() *JobManager {
	return &JobManager{jobs: make(map[string]*GenerationJob)}
}

func (m *JobManager) CreateJob() (string, *GenerationJob) {
	now := time.Now().UTC()
	job := &GenerationJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	return job.ID, job.clone()
}

func (m *JobManager) GetJob(id string) (*GenerationJob, bool) {
	m.mu.RLock()
	job, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

func (m *JobManager) MarkProcessing(id, step, message string) {
	m.withJob(id, func(job *GenerationJob) {
		job.Status = JobStatusProcessing
		job.Step = step
		job.Message = message
	})
}

func (m *JobManager) MarkComplete(id, packID string) {
	m.withJob(id, func(job *GenerationJob) {
		job.Status = JobStatusComplete
		job.Step = "done"
		job.Message = ""
		job.PackID = packID
	})
}

func (m *JobManager) MarkFailed(id, msg string) {
	m.withJob(id, func(job *GenerationJob) {
		job.Status = JobStatusFailed
		job.Error = strings.TrimSpace(msg)
	})
}

func (m *JobManager) withJob(id string, fn func(job *GenerationJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = time.Now().UTC()
}

func (j *GenerationJob) clone() *GenerationJob {
	copied := *j
	return &copied
}
