package fal

import (
	"testing"

	"genstudio/internal/domain"
)

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]domain.JobStatus{
		"IN_QUEUE":               domain.JobStatusInQueue,
		"queued":                 domain.JobStatusInQueue,
		"IN_PROGRESS":            domain.JobStatusInProgress,
		"in-progress":            domain.JobStatusInProgress,
		"running":                domain.JobStatusInQueue,
		"COMPLETED":              domain.JobStatusCompleted,
		"complete":               domain.JobStatusCompleted,
		"FAILED":                 domain.JobStatusFailed,
		"error":                  domain.JobStatusInQueue,
		"ERROR_RETRYING":         domain.JobStatusInQueue,
		"SUCCEEDED":              domain.JobStatusInQueue,
		"CANCELLED":              domain.JobStatusCancelled,
		"canceled":               domain.JobStatusCancelled,
		"CANCELLATION_REQUESTED": domain.JobStatusCancelled,
		"":                       domain.JobStatusInQueue,
		"WARMING_UP":             domain.JobStatusInQueue,
	}
	for raw, want := range tests {
		if got := NormalizeStatus(raw); got != want {
			t.Errorf("NormalizeStatus(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestNormalizeError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail string", `{"detail":"bad prompt"}`, "bad prompt"},
		{"detail list", `{"detail":[{"loc":["body","image_url"],"msg":"invalid url"}]}`, "image_url: invalid url"},
		{"message", `{"message":"quota exceeded"}`, "quota exceeded"},
		{"nested error", `{"error":{"message":"model offline"}}`, "model offline"},
		{"error string", `{"error":"boom"}`, "boom"},
		{"plain text", `service unavailable`, "service unavailable"},
		{"html falls back to status", `<html>502</html>`, "Bad Gateway"},
		{"empty", ``, "Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeError(502, []byte(tt.body)); got != tt.want {
				t.Fatalf("normalizeError = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAppID(t *testing.T) {
	cases := map[string]string{
		"fal-ai/flux/dev":                   "fal-ai/flux",
		"fal-ai/veo3":                       "fal-ai/veo3",
		"/fal-ai/kling-video/v2.1/pro/i2v/": "fal-ai/kling-video",
	}
	for in, want := range cases {
		if got := appID(in); got != want {
			t.Errorf("appID(%q) = %q, want %q", in, got, want)
		}
	}
}
