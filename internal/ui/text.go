package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Default truncation settings
const (
	DefaultMaxLines     = 15  // max lines for description display
	DefaultContextLines = 5   // lines shown at each end when truncating
	DefaultMaxChars     = 500 // max chars for inline truncation
	DefaultContextChars = 200 // chars shown at each end when truncating
)

// TruncateLines truncates text to maxLines, keeping context from the
// beginning and end with a hidden-line marker in between. Text already
// within the limit is returned unchanged.
func TruncateLines(text string, maxLines, contextLines int) string {
	if text == "" {
		return text
	}

	lines := strings.Split(text, "\n")
	totalLines := len(lines)
	if totalLines <= maxLines {
		return text
	}

	if contextLines < 1 {
		contextLines = DefaultContextLines
	}
	// Not enough room for both ends plus the marker: plain head truncation.
	if maxLines < contextLines*2+3 {
		return strings.Join(lines[:maxLines], "\n") + "\n..."
	}

	hidden := totalLines - contextLines*2

	var b strings.Builder
	b.WriteString(strings.Join(lines[:contextLines], "\n"))
	b.WriteString("\n")
	b.WriteString(RenderMuted(strings.Repeat("─", 40)))
	b.WriteString("\n")
	b.WriteString(RenderMuted(fmt.Sprintf("... (%d lines hidden, use --full to see all) ...", hidden)))
	b.WriteString("\n")
	b.WriteString(RenderMuted(strings.Repeat("─", 40)))
	b.WriteString("\n")
	b.WriteString(strings.Join(lines[totalLines-contextLines:], "\n"))
	return b.String()
}

// TruncateChars truncates text to maxChars, keeping context from the
// beginning and end. Breaks at word boundaries where possible.
func TruncateChars(text string, maxChars, contextChars int) string {
	if text == "" {
		return text
	}

	runeCount := utf8.RuneCountInString(text)
	if runeCount <= maxChars {
		return text
	}

	if contextChars < 50 {
		contextChars = DefaultContextChars
	}
	const markerLen = 50 // approximate marker width
	if maxChars < contextChars*2+markerLen {
		return truncateAtWordBoundary(text, maxChars-3) + "..."
	}

	runes := []rune(text)
	beginText := truncateAtWordBoundary(string(runes[:contextChars]), contextChars)
	endText := truncateFromWordBoundary(string(runes[runeCount-contextChars:]), contextChars)

	hidden := runeCount - utf8.RuneCountInString(beginText) - utf8.RuneCountInString(endText)
	return beginText + "\n" +
		RenderMuted(fmt.Sprintf("... (%d chars hidden) ...", hidden)) +
		"\n" + endText
}

// TruncateSimple performs plain end truncation with a "..." suffix.
// UTF-8 safe.
func TruncateSimple(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(text)
	return string(runes[:maxLen-3]) + "..."
}

// WrapText wraps text at word boundaries to fit within maxWidth,
// preserving existing line breaks.
func WrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = 80
	}

	var b strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(wrapLine(line, maxWidth))
	}
	return b.String()
}

func wrapLine(line string, maxWidth int) string {
	if utf8.RuneCountInString(line) <= maxWidth {
		return line
	}

	var b strings.Builder
	currentLen := 0
	for _, word := range strings.Fields(line) {
		wordLen := utf8.RuneCountInString(word)
		switch {
		case currentLen == 0:
			// First word on the line goes in even when too long.
			b.WriteString(word)
			currentLen = wordLen
		case currentLen+1+wordLen <= maxWidth:
			b.WriteString(" ")
			b.WriteString(word)
			currentLen += 1 + wordLen
		default:
			b.WriteString("\n")
			b.WriteString(word)
			currentLen = wordLen
		}
	}
	return b.String()
}

// truncateAtWordBoundary truncates to approximately maxLen runes,
// preferring to break at whitespace.
func truncateAtWordBoundary(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}

	runes := []rune(text)
	if maxLen >= len(runes) {
		return text
	}

	lastSpace := -1
	for i := maxLen - 1; i >= maxLen-50 && i >= 0; i-- {
		if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '\t' {
			lastSpace = i
			break
		}
	}
	if lastSpace > 0 {
		return strings.TrimRight(string(runes[:lastSpace]), " \t")
	}
	return string(runes[:maxLen])
}

// truncateFromWordBoundary drops runes from the beginning down to
// approximately maxLen, preferring to break at whitespace.
func truncateFromWordBoundary(text string, maxLen int) string {
	runeCount := utf8.RuneCountInString(text)
	if runeCount <= maxLen {
		return text
	}

	runes := []rune(text)
	startPos := runeCount - maxLen
	for i := startPos; i < startPos+50 && i < runeCount; i++ {
		if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '\t' {
			return strings.TrimLeft(string(runes[i+1:]), " \t")
		}
	}
	return string(runes[startPos:])
}

// ShouldTruncate reports whether text exceeds either threshold. Zero
// thresholds are ignored.
func ShouldTruncate(text string, maxLines, maxChars int) bool {
	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		return true
	}
	if maxLines > 0 && strings.Count(text, "\n")+1 > maxLines {
		return true
	}
	return false
}
