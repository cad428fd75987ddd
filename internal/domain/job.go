package domain

import (
	"encoding/json"
	"time"
)

// JobStatus is the canonical lifecycle state of a provider job.
type JobStatus string

const (
	JobStatusInQueue    JobStatus = "in_queue"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal reports whether the job can no longer change.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Staying in the same non-terminal state is allowed.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusInQueue:
		return next == JobStatusInQueue || next == JobStatusInProgress || next.IsTerminal()
	case JobStatusInProgress:
		return next == JobStatusInProgress || next.IsTerminal()
	default:
		return false
	}
}

// JobLog is a single provider log line.
type JobLog struct {
	Message   string    `json:"message"`
	Level     string    `json:"level,omitempty"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Job is the provider-side view of one submitted generation.
type Job struct {
	RequestID     string         `json:"request_id"`
	ModelID       string         `json:"model_id"`
	Status        JobStatus      `json:"status"`
	QueuePosition *int           `json:"queue_position,omitempty"`
	Logs          []JobLog       `json:"logs,omitempty"`
	Metrics       map[string]any `json:"metrics,omitempty"`
	Result        *Output        `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// Submission is returned by a successful submit.
type Submission struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url,omitempty"`
	ResponseURL string `json:"response_url,omitempty"`
	CancelURL   string `json:"cancel_url,omitempty"`
}

// File is one produced media file.
type File struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// Output is the normalized result of a completed job. Raw keeps the
// provider payload verbatim.
type Output struct {
	Images []File          `json:"images,omitempty"`
	Video  *File           `json:"video,omitempty"`
	Seed   *int64          `json:"seed,omitempty"`
	Prompt string          `json:"prompt,omitempty"`
	Raw    json.RawMessage `json:"raw,omitempty"`
}

// Files flattens the output into a single ordered list.
func (o *Output) Files() []File {
	if o == nil {
		return nil
	}
	files := make([]File, 0, len(o.Images)+1)
	files = append(files, o.Images...)
	if o.Video != nil {
		files = append(files, *o.Video)
	}
	return files
}
