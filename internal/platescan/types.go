package platescan

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a processing job.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
)

// Job records one upload going through detection and encoding.
type Job struct {
	ID             string     `json:"id"`
	Filename       string     `json:"filename"`        // name the upload was stored under
	SourceName     string     `json:"source_name"`     // name the client sent
	ResultName     string     `json:"result_name,omitempty"`
	Status         JobStatus  `json:"status"`
	Stage          string     `json:"stage,omitempty"` // last stage reached: "save" | "queue" | "detect" | "encode"
	Error          *string    `json:"error,omitempty"`
	ProcessingTime float64    `json:"processing_time"` // seconds, 2 decimals
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// OriginalURL is the public path of the stored upload.
func (j *Job) OriginalURL() string { return "/uploads/" + j.Filename }

// ResultURL is the public path of the encoded result, or "" before encoding.
func (j *Job) ResultURL() string {
	if j.ResultName == "" {
		return ""
	}
	return "/result/" + j.ResultName
}

// Fail marks the job failed at stage with err.
func (j *Job) Fail(stage string, err error) {
	msg := err.Error()
	now := time.Now()
	j.Status = JobStatusFailed
	j.Stage = stage
	j.Error = &msg
	j.CompletedAt = &now
}

// GenerateID generates a random ID with the given prefix.
func GenerateID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
