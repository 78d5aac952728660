package ui

import (
	"fmt"
	"strings"
	"testing"
)

func numberedLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("step %d", i+1)
	}
	return strings.Join(lines, "\n")
}

func TestTruncateLinesShortTextUnchanged(t *testing.T) {
	text := numberedLines(10)
	if got := TruncateLines(text, 15, 5); got != text {
		t.Errorf("text within limit was modified:\n%s", got)
	}
	if got := TruncateLines("", 15, 5); got != "" {
		t.Errorf("empty text = %q, want empty", got)
	}
}

func TestTruncateLinesKeepsBothEnds(t *testing.T) {
	got := TruncateLines(numberedLines(40), 15, 5)

	for i := 1; i <= 5; i++ {
		if !strings.Contains(got, fmt.Sprintf("step %d", i)) {
			t.Errorf("missing leading line %d", i)
		}
	}
	for i := 36; i <= 40; i++ {
		if !strings.Contains(got, fmt.Sprintf("step %d", i)) {
			t.Errorf("missing trailing line %d", i)
		}
	}
	if strings.Contains(got, "step 20\n") {
		t.Error("middle line survived truncation")
	}
	if !strings.Contains(got, "30 lines hidden") {
		t.Errorf("hidden-count marker missing:\n%s", got)
	}
}

func TestTruncateLinesTightBudgetFallsBackToHead(t *testing.T) {
	// maxLines too small for begin+end+marker: plain head truncation.
	got := TruncateLines(numberedLines(40), 4, 5)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("head truncation missing ellipsis: %q", got)
	}
	if strings.Contains(got, "step 5") {
		t.Errorf("head truncation kept too much: %q", got)
	}
}

func TestTruncateCharsShortTextUnchanged(t *testing.T) {
	text := "a short description"
	if got := TruncateChars(text, 500, 200); got != text {
		t.Errorf("short text modified: %q", got)
	}
}

func TestTruncateCharsKeepsBothEnds(t *testing.T) {
	text := strings.Repeat("lead ", 100) + strings.Repeat("tail ", 100)
	got := TruncateChars(text, 500, 200)

	if !strings.Contains(got, "chars hidden") {
		t.Errorf("hidden-count marker missing: %q", got)
	}
	if !strings.HasPrefix(got, "lead ") {
		t.Errorf("beginning lost: %q", got[:20])
	}
	if !strings.HasSuffix(strings.TrimRight(got, " "), "tail") {
		t.Errorf("end lost: %q", got[len(got)-20:])
	}
}

func TestTruncateSimple(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"fits", 10, "fits"},
		{"exactly ten chars!", 18, "exactly ten chars!"},
		{"weft tracker issue title", 10, "weft tr..."},
		{"anything", 3, "..."},
		{"héllo wörld", 8, "héllo..."}, // rune-counted, not byte-counted
	}
	for _, tc := range tests {
		if got := TruncateSimple(tc.in, tc.maxLen); got != tc.want {
			t.Errorf("TruncateSimple(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}

func TestWrapText(t *testing.T) {
	got := WrapText("the quick brown fox jumps over the lazy dog", 15)
	for _, line := range strings.Split(got, "\n") {
		if len(line) > 15 {
			t.Errorf("line exceeds width: %q", line)
		}
	}
	if strings.ReplaceAll(got, "\n", " ") != "the quick brown fox jumps over the lazy dog" {
		t.Errorf("wrapping lost words: %q", got)
	}
}

func TestWrapTextPreservesExistingBreaks(t *testing.T) {
	in := "first paragraph\n\nsecond paragraph"
	if got := WrapText(in, 80); got != in {
		t.Errorf("existing breaks not preserved: %q", got)
	}
}

func TestWrapTextOverlongWord(t *testing.T) {
	long := strings.Repeat("x", 30)
	got := WrapText("short "+long, 10)
	if !strings.Contains(got, long) {
		t.Errorf("overlong word was split: %q", got)
	}
}

func TestShouldTruncate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLines int
		maxChars int
		want     bool
	}{
		{"under both", "short", 10, 100, false},
		{"over chars", strings.Repeat("a", 101), 10, 100, true},
		{"over lines", numberedLines(11), 10, 0, true},
		{"zero thresholds ignored", numberedLines(50), 0, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldTruncate(tc.text, tc.maxLines, tc.maxChars); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
