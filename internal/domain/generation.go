package domain

import "time"

// Generation is the persisted record of one user generation. It mirrors the
// provider Job and keeps the outcome once the job is terminal.
type Generation struct {
	ID           string
	UserID       string
	ModelID      string
	Kind         GenerationKind
	RequestID    string
	Status       JobStatus
	Prompt       string
	RequestJSON  []byte
	ResultJSON   []byte
	ErrorCode    string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GenerationPatch carries the fields an update may change. Nil fields are
// left untouched.
type GenerationPatch struct {
	RequestID    *string
	Status       *JobStatus
	ResultJSON   []byte
	ErrorCode    *string
	ErrorMessage *string
}
