package fal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"genstudio/internal/domain"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = &domain.Error{Code: domain.CodeMissingCredentials, Message: "fal: api key is required"}

const maxErrorMessage = 300

// normalizeError extracts a human readable message from an arbitrary error
// body. Known shapes are tried in order; the raw text is the last resort.
func normalizeError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	var doc any
	if len(trimmed) > 0 && json.Unmarshal(body, &doc) == nil {
		if msg := messageFrom(doc); msg != "" {
			return truncate(msg)
		}
	}
	if trimmed != "" && !strings.HasPrefix(trimmed, "<") {
		return truncate(trimmed)
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}

func messageFrom(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if msg := messageFrom(item); msg != "" {
				parts = append(parts, msg)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		for _, key := range []string{"detail", "message", "msg", "error", "error_message", "code", "status"} {
			if inner, ok := t[key]; ok {
				if msg := messageFrom(inner); msg != "" {
					if loc, ok := t["loc"].([]any); ok && key == "msg" && len(loc) > 0 {
						return fmt.Sprintf("%s: %s", fmt.Sprint(loc[len(loc)-1]), msg)
					}
					return msg
				}
			}
		}
	}
	return ""
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxErrorMessage {
		return s
	}
	return string(r[:maxErrorMessage]) + "…"
}

func providerError(code domain.ErrorCode, op string, status int, body []byte, requestID string) *domain.Error {
	msg := normalizeError(status, body)
	return &domain.Error{
		Code:       code,
		Message:    fmt.Sprintf("fal: %s failed (%d): %s", op, status, msg),
		HTTPStatus: status,
		RequestID:  requestID,
	}
}

func transportError(code domain.ErrorCode, op, requestID string, err error) *domain.Error {
	return &domain.Error{
		Code:      code,
		Message:   fmt.Sprintf("fal: %s request", op),
		RequestID: requestID,
		Err:       err,
	}
}

// stillRunning reports whether a result fetch was rejected because the job
// has not finished yet.
func stillRunning(status int, body []byte) bool {
	if status == http.StatusAccepted {
		return true
	}
	if status != http.StatusBadRequest && status != http.StatusConflict {
		return false
	}
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "in progress") ||
		strings.Contains(lower, "in_progress") ||
		strings.Contains(lower, "in_queue") ||
		strings.Contains(lower, "still")
}

// alreadyTerminal reports whether a cancel was refused because the job had
// already finished.
func alreadyTerminal(status int, body []byte) bool {
	if strings.Contains(strings.ToUpper(string(body)), "ALREADY_COMPLETED") {
		return true
	}
	switch status {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}
