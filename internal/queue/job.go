package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypePostAnalysis runs the comment pipeline over one post's images
	JobTypePostAnalysis JobType = "post_analysis"
)

// DefaultMaxRetries bounds how often a rate-limited job is requeued
const DefaultMaxRetries = 3

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID      `json:"id"`
	Type       JobType        `json:"type"`
	PostID     uuid.UUID      `json:"post_id"`
	OwnerID    string         `json:"owner_id"`
	NotBefore  *time.Time     `json:"not_before,omitempty"`
	NotAfter   *time.Time     `json:"not_after,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
}

// NewPostAnalysisJob creates a job analyzing postID on behalf of ownerID
func NewPostAnalysisJob(postID uuid.UUID, ownerID string) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       JobTypePostAnalysis,
		PostID:     postID,
		OwnerID:    ownerID,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now(),
		MaxRetries: DefaultMaxRetries,
	}
}

// ShouldProcess reports whether the job is inside its processing window
func (j *Job) ShouldProcess() bool {
	now := time.Now()
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}
	return !j.IsExpired()
}

// IsExpired checks if the job has passed NotAfter
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}
	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}

// Delay schedules the job to run no earlier than d from now
func (j *Job) Delay(d time.Duration) {
	notBefore := time.Now().Add(d)
	j.NotBefore = &notBefore
}
