package logging

import (
	"strings"
	"testing"
)

func TestIsDatedLogFile(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		prefix   string
		want     bool
	}{
		{
			name:     "valid dated log file",
			filename: "codedeck.2026-01-23.log",
			prefix:   "codedeck",
			want:     true,
		},
		{
			name:     "symlink file (just prefix.log)",
			filename: "codedeck.log",
			prefix:   "codedeck",
			want:     false,
		},
		{
			name:     "wrong prefix",
			filename: "other.2026-01-23.log",
			prefix:   "codedeck",
			want:     false,
		},
		{
			name:     "wrong extension",
			filename: "codedeck.2026-01-23.txt",
			prefix:   "codedeck",
			want:     false,
		},
		{
			name:     "empty filename",
			filename: "",
			prefix:   "codedeck",
			want:     false,
		},
		{
			name:     "extra suffix after date",
			filename: "codedeck.2026-01-23.old.log",
			prefix:   "codedeck",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isDatedLogFile(tt.filename, tt.prefix); got != tt.want {
				t.Errorf("isDatedLogFile(%q, %q) = %v, want %v", tt.filename, tt.prefix, got, tt.want)
			}
		})
	}
}

func TestSanitizeFields(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		key    string
		want   any
	}{
		{
			name:   "redacts token keys",
			fields: map[string]any{"auth_token": "abc123"},
			key:    "auth_token",
			want:   "[REDACTED]",
		},
		{
			name:   "redacts mixed-case password keys",
			fields: map[string]any{"UserPassword": "hunter2"},
			key:    "UserPassword",
			want:   "[REDACTED]",
		},
		{
			name:   "passes through plain keys",
			fields: map[string]any{"workspace": "/tmp/proj"},
			key:    "workspace",
			want:   "/tmp/proj",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeFields(tt.fields)
			if got[tt.key] != tt.want {
				t.Errorf("sanitizeFields()[%q] = %v, want %v", tt.key, got[tt.key], tt.want)
			}
		})
	}
}

func TestSanitizeFieldsTruncatesLongValues(t *testing.T) {
	long := strings.Repeat("x", MaxFieldValueLength+100)
	got := sanitizeFields(map[string]any{"output": long})

	s, ok := got["output"].(string)
	if !ok {
		t.Fatalf("expected string value, got %T", got["output"])
	}
	if len(s) >= len(long) {
		t.Errorf("value not truncated: len=%d", len(s))
	}
	if !strings.HasSuffix(s, "...[truncated]") {
		t.Errorf("truncated value missing marker: %q", s[len(s)-20:])
	}
}

func TestSanitizeFieldsNil(t *testing.T) {
	if got := sanitizeFields(nil); got != nil {
		t.Errorf("sanitizeFields(nil) = %v, want nil", got)
	}
}
