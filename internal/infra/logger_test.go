package infra

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		env, raw string
		want     zerolog.Level
	}{
		{"development", "", zerolog.DebugLevel},
		{"production", "", zerolog.InfoLevel},
		{"production", "warn", zerolog.WarnLevel},
		{"development", " ERROR ", zerolog.ErrorLevel},
		{"production", "chatty", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := logLevel(tt.env, tt.raw); got != tt.want {
			t.Errorf("logLevel(%q, %q) = %s, want %s", tt.env, tt.raw, got, tt.want)
		}
	}
}
