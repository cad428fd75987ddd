package fal

import (
	"strings"

	"genstudio/internal/domain"
)

// NormalizeStatus maps a provider status string onto the canonical
// lifecycle. It never fails: anything unrecognised is reported as in_queue
// so polling continues until the deadline.
func NormalizeStatus(raw string) domain.JobStatus {
	s := strings.ToUpper(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "CANCEL"):
		return domain.JobStatusCancelled
	case strings.Contains(s, "FAIL"):
		return domain.JobStatusFailed
	case strings.Contains(s, "COMPLETE"):
		return domain.JobStatusCompleted
	case strings.Contains(s, "PROGRESS"):
		return domain.JobStatusInProgress
	default:
		return domain.JobStatusInQueue
	}
}
