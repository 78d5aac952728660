package timeparse

import (
	"testing"
	"time"
)

func TestParseCompact(t *testing.T) {
	// Wednesday, January 15, 2025, 10:00 local.
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"-1d", time.Date(2025, 1, 14, 10, 0, 0, 0, time.Local)},
		{"+2w", time.Date(2025, 1, 29, 10, 0, 0, 0, time.Local)},
		{"6h", time.Date(2025, 1, 15, 16, 0, 0, 0, time.Local)},
		{"-3m", time.Date(2024, 10, 15, 10, 0, 0, 0, time.Local)},
		{"1y", time.Date(2026, 1, 15, 10, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in, now)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseNaturalLanguage(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local)

	tests := []struct {
		in      string
		wantDay int
	}{
		{"yesterday", 14},
		{"tomorrow", 16},
		{"3 days ago", 12},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in, now)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.in, err)
			continue
		}
		if got.Day() != tt.wantDay {
			t.Errorf("Parse(%q) day = %d, want %d", tt.in, got.Day(), tt.wantDay)
		}
	}
}

func TestParseAbsolute(t *testing.T) {
	now := time.Now()

	got, err := Parse("2025-03-01", now)
	if err != nil {
		t.Fatalf("Parse date-only: %v", err)
	}
	if got.Year() != 2025 || got.Month() != time.March || got.Day() != 1 {
		t.Errorf("Parse date-only = %v", got)
	}
	// The day segment must not be misread as a clock time.
	if got.Hour() != 0 || got.Minute() != 0 {
		t.Errorf("Parse date-only time = %02d:%02d, want midnight", got.Hour(), got.Minute())
	}

	got, err = Parse("2025-03-01T14:30:00Z", now)
	if err != nil {
		t.Fatalf("Parse RFC3339: %v", err)
	}
	if got.Hour() != 14 || got.Minute() != 30 {
		t.Errorf("Parse RFC3339 = %v", got)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse("not a date at all", time.Now()); err == nil {
		t.Error("expected error for unparseable input")
	}
	if _, err := Parse("", time.Now()); err == nil {
		t.Error("expected error for empty input")
	}
}
