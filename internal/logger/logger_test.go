package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestFromContextReturnsStoredLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithContext(context.Background(), zerolog.New(&buf))

	// Callers hold the logger in a local before chaining level methods.
	log := FromContext(ctx)
	log.Warn().Str("path", "/docs/search").Msg("auth.rejected")

	out := buf.String()
	if !strings.Contains(out, "auth.rejected") || !strings.Contains(out, "/docs/search") {
		t.Errorf("log output missing expected fields: %q", out)
	}
}

func TestFromContextWithoutLoggerIsSilent(t *testing.T) {
	log := FromContext(context.Background())
	// Must not panic and must not write anywhere.
	log.Error().Msg("dropped")

	if log.GetLevel() != zerolog.Disabled {
		t.Errorf("fallback logger level = %v, want disabled", log.GetLevel())
	}
}

func TestTruncateAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"short", "short"},
		{"exactlytwelve", "exactlyt...elve"},
		{"4Nd1mYrBPYtJx8UHg12345", "4Nd1mYrB...2345"},
	}
	for _, tt := range tests {
		if got := TruncateAddress(tt.in); got != tt.want {
			t.Errorf("TruncateAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
