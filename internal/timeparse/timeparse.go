// Package timeparse resolves user-supplied time expressions for --since
// style flags. Parsing is layered: compact durations first, then absolute
// timestamps, then natural language.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// compactRe matches [+-]?<digits><unit> where unit is h, d, w, m, or y.
var compactRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

var nlp = func() *when.Parser {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)
	return p
}()

// Parse resolves s relative to now. Accepted forms, tried in order:
//
//	-1d, +2w, 6h          compact offsets
//	2025-03-01            date only (midnight local)
//	RFC3339 timestamps
//	"yesterday", "3 days ago", "next monday at 9am"
//
// Absolute formats run before the NLP layer: when partially matches ISO
// dates (it reads the day segment as a clock time), so exact forms must
// win.
func Parse(s string, now time.Time) (time.Time, error) {
	if m := compactRe.FindStringSubmatch(s); m != nil {
		return applyCompact(m, now)
	}

	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	if r, err := nlp.Parse(s, now); err == nil && r != nil {
		return r.Time, nil
	}

	return time.Time{}, fmt.Errorf("cannot parse time expression %q", s)
}

func applyCompact(m []string, now time.Time) (time.Time, error) {
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration amount %q", m[2])
	}
	if m[1] == "-" {
		n = -n
	}
	switch m[3] {
	case "h":
		return now.Add(time.Duration(n) * time.Hour), nil
	case "d":
		return now.AddDate(0, 0, n), nil
	case "w":
		return now.AddDate(0, 0, n*7), nil
	case "m":
		return now.AddDate(0, n, 0), nil
	case "y":
		return now.AddDate(n, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("unknown duration unit %q", m[3])
}
